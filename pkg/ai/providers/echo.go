package providers

import (
	"context"

	"chatrelay/pkg/ai"
)

const echoEmptyReply = "Hello! Ask me anything."

func init() {
	ai.RegisterProvider(ai.ProviderInfo{
		Type:        ai.ProviderEcho,
		Name:        "Echo",
		Description: "Offline dry-run provider that echoes the last user message",
		RequiresKey: false,
	}, NewEchoProvider)
}

// EchoProvider answers without any network access. Replies are deterministic
// so streamed and non-streamed output always agree.
type EchoProvider struct{}

// NewEchoProvider creates the dry-run provider.
func NewEchoProvider(cfg ai.ProviderConfig) (ai.Provider, error) {
	return &EchoProvider{}, nil
}

// CreateChatCompletion returns the echo reply in one piece.
func (p *EchoProvider) CreateChatCompletion(ctx context.Context, req ai.ChatRequest) (ai.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return ai.ChatResponse{}, err
	}
	return ai.ChatResponse{
		Content: echoReply(req.Messages),
		Model:   "echo",
	}, nil
}

// CreateChatCompletionStream streams the echo reply word by word.
func (p *EchoProvider) CreateChatCompletionStream(ctx context.Context, req ai.ChatRequest) (ai.ChatStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &echoStream{
		ctx:   ctx,
		parts: splitWords(echoReply(req.Messages)),
		index: -1,
	}, nil
}

func echoReply(messages []ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			return "You said: " + messages[i].Content
		}
	}
	return echoEmptyReply
}

// splitWords cuts s before every space so the parts concatenate back to s.
func splitWords(s string) []string {
	var parts []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == ' ' {
			parts = append(parts, s[start:i])
			start = i
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

type echoStream struct {
	ctx   context.Context
	parts []string
	index int
	err   error
}

func (s *echoStream) Next() bool {
	if s.err != nil {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.index+1 >= len(s.parts) {
		return false
	}
	s.index++
	return true
}

func (s *echoStream) Content() string {
	if s.index < 0 || s.index >= len(s.parts) {
		return ""
	}
	return s.parts[s.index]
}

func (s *echoStream) Err() error {
	return s.err
}

func (s *echoStream) Close() error {
	s.index = len(s.parts)
	return nil
}

// Ensure interface compliance
var _ ai.Provider = (*EchoProvider)(nil)
