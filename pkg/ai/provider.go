package ai

import (
	"context"
	"errors"
)

// Chat roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleDeveloper = "developer"
)

// ErrUnsupported is returned when a provider lacks a capability (audio, streaming).
var ErrUnsupported = errors.New("not supported by provider")

// Message represents a single chat message for LLM requests.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest defines the input to an LLM chat completion.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// ChatResponse is a normalized response from an LLM.
type ChatResponse struct {
	Content string
	Model   string
}

// ChatStream exposes a streaming response interface.
type ChatStream interface {
	Next() bool
	Content() string
	Err() error
	Close() error
}

// Provider defines the LLM interface used by the app.
type Provider interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (ChatResponse, error)
	CreateChatCompletionStream(ctx context.Context, req ChatRequest) (ChatStream, error)
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (string, error)
}

// Synthesizer renders text to an audio file at outPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

// ValidRole reports whether role is accepted in a conversation.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleDeveloper:
		return true
	}
	return false
}

// AudioCapabilities returns the audio interfaces p implements. A missing
// capability comes back as a nil interface.
func AudioCapabilities(p Provider) (Transcriber, Synthesizer) {
	t, _ := p.(Transcriber)
	s, _ := p.(Synthesizer)
	return t, s
}
