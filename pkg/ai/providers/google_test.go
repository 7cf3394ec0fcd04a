package providers

import (
	"context"
	"errors"
	"iter"
	"math"
	"strings"
	"testing"
	"time"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/config"

	"google.golang.org/genai"
)

type fakeGemini struct {
	reply     *genai.GenerateContentResponse
	replyErr  error
	chunks    iter.Seq2[*genai.GenerateContentResponse, error]
	model     string
	contents  []*genai.Content
	genConfig *genai.GenerateContentConfig
}

func (f *fakeGemini) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.genConfig = model, contents, cfg
	return f.reply, f.replyErr
}

func (f *fakeGemini) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.model, f.contents, f.genConfig = model, contents, cfg
	if f.chunks == nil {
		return func(yield func(*genai.GenerateContentResponse, error) bool) {}
	}
	return f.chunks
}

func geminiText(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
		}},
	}
}

func geminiChunks(texts ...string) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, text := range texts {
			if !yield(geminiText(&genai.Part{Text: text}), nil) {
				return
			}
		}
	}
}

func collectStream(t *testing.T, stream ai.ChatStream) string {
	t.Helper()
	defer stream.Close()

	var out strings.Builder
	for stream.Next() {
		out.WriteString(stream.Content())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Unexpected stream error: %v", err)
	}
	return out.String()
}

func TestNewGoogleProvider_RequiresAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLMProvider = "google"

	if _, err := NewGoogleProvider(ai.ProviderConfig{Type: ai.ProviderGoogle, Config: cfg}); err == nil {
		t.Fatal("Expected error when Google API key is missing")
	}
}

func TestNewGoogleProvider_UsesChatDefaults(t *testing.T) {
	orig := newGoogleClient
	t.Cleanup(func() { newGoogleClient = orig })

	var clientCfg *genai.ClientConfig
	newGoogleClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
		clientCfg = cfg
		return &genai.Client{}, nil
	}

	cfg := config.Default()
	cfg.LLMProvider = "google"
	cfg.Providers.Google.APIKey = "gem-key"
	cfg.Providers.Google.Model = " "
	cfg.Providers.Google.APITimeoutSeconds = 0
	cfg.Chat.Temperature = 0.4
	cfg.Chat.MaxTokens = 512

	provider, err := NewGoogleProvider(ai.ProviderConfig{Type: ai.ProviderGoogle, Config: cfg})
	if err != nil {
		t.Fatalf("NewGoogleProvider() error: %v", err)
	}
	gp, ok := provider.(*GoogleProvider)
	if !ok {
		t.Fatalf("Expected *GoogleProvider, got %T", provider)
	}

	if clientCfg == nil || clientCfg.APIKey != "gem-key" || clientCfg.Backend != genai.BackendGeminiAPI {
		t.Fatalf("Unexpected client config: %+v", clientCfg)
	}
	if gp.defaultModel != googleDefaultModel {
		t.Fatalf("Expected model %q, got %q", googleDefaultModel, gp.defaultModel)
	}
	if gp.defaultTimeout != 60*time.Second {
		t.Fatalf("Expected timeout 60s, got %s", gp.defaultTimeout)
	}
	if gp.defaultTemperature != 0.4 || gp.defaultMaxTokens != 512 {
		t.Fatalf("Expected chat defaults 0.4/512, got %v/%d", gp.defaultTemperature, gp.defaultMaxTokens)
	}
}

func TestGoogleProvider_CreateChatCompletion_Conversation(t *testing.T) {
	fake := &fakeGemini{reply: geminiText(&genai.Part{Text: "sure"})}
	provider := &GoogleProvider{models: fake, defaultModel: "gemini-test", defaultTemperature: 0.7, defaultMaxTokens: 1000}

	temp := 0.3
	maxTokens := 64
	resp, err := provider.CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: "be brief"},
			{Role: ai.RoleUser, Content: "hi"},
			{Role: ai.RoleAssistant, Content: "hello"},
			{Role: ai.RoleDeveloper, Content: "no emoji"},
			{Role: ai.RoleUser, Content: "again"},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error: %v", err)
	}

	if resp.Content != "sure" || resp.Model != "gemini-test" {
		t.Fatalf("Unexpected response %+v", resp)
	}
	if len(fake.contents) != 3 {
		t.Fatalf("Expected 3 turns, got %d", len(fake.contents))
	}
	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, role := range wantRoles {
		if fake.contents[i].Role != role {
			t.Fatalf("turn %d: expected role %q, got %q", i, role, fake.contents[i].Role)
		}
	}

	cfg := fake.genConfig
	if cfg == nil || cfg.SystemInstruction == nil {
		t.Fatal("Expected system instruction")
	}
	if got := cfg.SystemInstruction.Parts[0].Text; got != "be brief\n\nno emoji" {
		t.Fatalf("Expected merged system instruction, got %q", got)
	}
	if cfg.Temperature == nil || math.Abs(float64(*cfg.Temperature)-0.3) > 0.0001 {
		t.Fatalf("Expected temperature 0.3, got %v", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 64 {
		t.Fatalf("Expected max output tokens 64, got %d", cfg.MaxOutputTokens)
	}
	if cfg.ThinkingConfig == nil || cfg.ThinkingConfig.ThinkingBudget == nil || *cfg.ThinkingConfig.ThinkingBudget != 0 {
		t.Fatal("Expected thinking disabled")
	}
}

func TestGoogleProvider_SystemOnlyBecomesUserTurn(t *testing.T) {
	fake := &fakeGemini{reply: geminiText(&genai.Part{Text: "hi there"})}
	provider := &GoogleProvider{models: fake, defaultModel: "gemini-test"}

	_, err := provider.CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: ai.RoleSystem, Content: "You are helpful."}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error: %v", err)
	}

	if len(fake.contents) != 1 || fake.contents[0].Role != genai.RoleUser {
		t.Fatalf("Expected a single user turn, got %+v", fake.contents)
	}
	if fake.contents[0].Parts[0].Text != "You are helpful." {
		t.Fatalf("Expected system text as user turn, got %q", fake.contents[0].Parts[0].Text)
	}
	if fake.genConfig.SystemInstruction != nil {
		t.Fatal("Expected no system instruction when it was moved into contents")
	}
}

func TestGoogleProvider_SkipsThoughtParts(t *testing.T) {
	fake := &fakeGemini{reply: geminiText(
		&genai.Part{Text: "pondering", Thought: true},
		&genai.Part{Text: "answer"},
	)}
	provider := &GoogleProvider{models: fake, defaultModel: "gemini-test"}

	resp, err := provider.CreateChatCompletion(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "q"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error: %v", err)
	}
	if resp.Content != "answer" {
		t.Fatalf("Expected only visible text, got %q", resp.Content)
	}
}

func TestGoogleProvider_RejectsEmptyMessages(t *testing.T) {
	provider := &GoogleProvider{models: &fakeGemini{}, defaultModel: "gemini-test"}

	if _, err := provider.CreateChatCompletion(context.Background(), ai.ChatRequest{}); err == nil {
		t.Fatal("Expected error for empty messages")
	}
}

func TestGoogleProvider_Stream(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   string
	}{
		{name: "deltas", chunks: []string{"Hel", "lo"}, want: "Hello"},
		{name: "cumulative", chunks: []string{"Hel", "Hello"}, want: "Hello"},
		{name: "empty chunk skipped", chunks: []string{"a", "", "b"}, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGemini{chunks: geminiChunks(tt.chunks...)}
			provider := &GoogleProvider{models: fake, defaultModel: "gemini-test"}

			stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
				Messages: []ai.Message{{Role: ai.RoleUser, Content: "go"}},
			})
			if err != nil {
				t.Fatalf("CreateChatCompletionStream() error: %v", err)
			}
			if got := collectStream(t, stream); got != tt.want {
				t.Fatalf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGoogleProvider_StreamError(t *testing.T) {
	boom := errors.New("quota exceeded")
	fake := &fakeGemini{chunks: func(yield func(*genai.GenerateContentResponse, error) bool) {
		if !yield(geminiText(&genai.Part{Text: "part"}), nil) {
			return
		}
		yield(nil, boom)
	}}
	provider := &GoogleProvider{models: fake, defaultModel: "gemini-test"}

	stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "go"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	defer stream.Close()

	if !stream.Next() || stream.Content() != "part" {
		t.Fatal("Expected first fragment before the error")
	}
	if stream.Next() {
		t.Fatal("Expected Next() to stop on error")
	}
	if !errors.Is(stream.Err(), boom) {
		t.Fatalf("Expected %v, got %v", boom, stream.Err())
	}
}

func TestGoogleProvider_StreamCloseEarly(t *testing.T) {
	fake := &fakeGemini{chunks: geminiChunks("a", "b", "c", "d")}
	provider := &GoogleProvider{models: fake, defaultModel: "gemini-test"}

	stream, err := provider.CreateChatCompletionStream(context.Background(), ai.ChatRequest{
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "go"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream() error: %v", err)
	}
	if !stream.Next() {
		t.Fatal("Expected first fragment")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if stream.Next() {
		t.Fatal("Expected no fragments after Close")
	}
}
