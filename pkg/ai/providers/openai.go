package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/config"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
)

const (
	openAIDefaultAPIURL             = "https://api.openai.com/v1"
	openAIDefaultModel              = "gpt-4o"
	openAIDefaultTimeout            = 60
	openAIDefaultTranscriptionModel = "whisper-1"
	openAIDefaultSpeechModel        = "tts-1"
	openAIDefaultVoice              = "nova"
)

func init() {
	ai.RegisterProvider(ai.ProviderInfo{
		Type:        ai.ProviderOpenAI,
		Name:        "OpenAI",
		Description: "OpenAI chat completions, Whisper transcription and TTS",
		RequiresKey: true,
		Audio:       true,
	}, NewOpenAIProvider)
}

// OpenAIProvider implements the Provider, Transcriber and Synthesizer
// interfaces using the OpenAI API directly.
type OpenAIProvider struct {
	client             openai.Client
	defaultModel       string
	defaultTemperature float64
	defaultMaxTokens   int
	transcriptionModel string
	speechModel        string
	voice              string
}

// NewOpenAIProvider creates a new OpenAI provider from config.
func NewOpenAIProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	return newOpenAIProviderWithHTTPClient(cfg.Config, nil)
}

func newOpenAIProviderWithHTTPClient(cfg config.Config, httpClient *http.Client) (*OpenAIProvider, error) {
	providerCfg := cfg.Providers.OpenAI

	apiKey := strings.TrimSpace(providerCfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api_key is required (set OPENAI_API_KEY or providers.openai.api_key)")
	}

	apiURL := strings.TrimSpace(providerCfg.APIURL)
	if apiURL == "" {
		apiURL = openAIDefaultAPIURL
	}

	model := strings.TrimSpace(providerCfg.Model)
	if model == "" {
		model = openAIDefaultModel
	}

	timeout := providerCfg.APITimeoutSeconds
	if timeout <= 0 {
		timeout = openAIDefaultTimeout
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(apiURL),
		option.WithHTTPClient(httpClient),
	}

	client := openai.NewClient(opts...)

	slog.Debug("openai_provider_ready",
		"model", model,
		"api_url", apiURL,
		"timeout_seconds", timeout,
	)
	return &OpenAIProvider{
		client:             client,
		defaultModel:       model,
		defaultTemperature: cfg.Chat.Temperature,
		defaultMaxTokens:   cfg.Chat.MaxTokens,
		transcriptionModel: firstNonEmpty(cfg.Speech.TranscriptionModel, openAIDefaultTranscriptionModel),
		speechModel:        firstNonEmpty(cfg.Speech.SpeechModel, openAIDefaultSpeechModel),
		voice:              firstNonEmpty(cfg.Speech.Voice, openAIDefaultVoice),
	}, nil
}

// CreateChatCompletion sends a non-streaming chat completion request.
func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.ChatResponse, error) {
	params, err := p.buildChatParams(req)
	if err != nil {
		return ai.ChatResponse{}, err
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ai.ChatResponse{}, err
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return ai.ChatResponse{
		Content: content,
		Model:   resp.Model,
	}, nil
}

// CreateChatCompletionStream sends a streaming chat completion request.
func (p *OpenAIProvider) CreateChatCompletionStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	params, err := p.buildChatParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &openAIStream{stream: stream}, nil
}

// Transcribe uploads an audio file to the transcription endpoint.
func (p *OpenAIProvider) Transcribe(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	resp, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(p.transcriptionModel),
	})
	if err != nil {
		return "", err
	}

	return resp.Text, nil
}

// Synthesize renders text to mp3 and writes it to outPath.
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}

	// Voice is written raw so custom voice ids pass through untouched.
	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input: text,
		Model: openai.SpeechModel(p.speechModel),
	}, option.WithJSONSet("voice", p.voice))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create audio directory: %w", err)
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("write audio file: %w", err)
	}
	return out.Close()
}

func (p *OpenAIProvider) buildChatParams(req ai.ChatRequest) (openai.ChatCompletionNewParams, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}
	if strings.TrimSpace(model) == "" {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("messages are required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		param, err := toChatMessageParam(msg)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, param)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}

	temperature := p.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = openai.Float(temperature)

	maxTokens := p.defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	return params, nil
}

func toChatMessageParam(msg ai.Message) (openai.ChatCompletionMessageParamUnion, error) {
	role := strings.ToLower(strings.TrimSpace(msg.Role))
	switch role {
	case ai.RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case ai.RoleUser:
		return openai.UserMessage(msg.Content), nil
	case ai.RoleAssistant:
		return openai.AssistantMessage(msg.Content), nil
	case ai.RoleDeveloper:
		return openai.DeveloperMessage(msg.Content), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role: %s", msg.Role)
	}
}

type openAIStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *openAIStream) Next() bool {
	return s.stream.Next()
}

// Content returns the text delta of the current chunk; role-only and
// finish chunks carry none and yield "".
func (s *openAIStream) Content() string {
	chunk := s.stream.Current()
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

func (s *openAIStream) Err() error {
	return s.stream.Err()
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Ensure interface compliance
var (
	_ ai.Provider    = (*OpenAIProvider)(nil)
	_ ai.Transcriber = (*OpenAIProvider)(nil)
	_ ai.Synthesizer = (*OpenAIProvider)(nil)
)
