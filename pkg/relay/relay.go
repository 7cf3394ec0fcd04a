// Package relay forwards conversations to a hosted completion service and
// hands the answer back either whole or as a lazy sequence of text fragments.
//
// Neither entry point returns an error. Failures are logged and replaced by a
// single apology string, so callers always have something to show the user.
package relay

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logging"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	apologyPrefix = "I apologize, but I encountered an error: "
)

// ErrEmptyResponse is reported when the service answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// Options are the request parameters sent with every conversation.
type Options struct {
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// DefaultOptions returns the fixed request parameters.
func DefaultOptions() Options {
	return Options{
		Model:        DefaultModel,
		SystemPrompt: config.DefaultSystemPrompt,
		Temperature:  DefaultTemperature,
		MaxTokens:    DefaultMaxTokens,
	}
}

// OptionsFromConfig derives request parameters from the chat section and the
// active provider's model.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Model:        cfg.Model(),
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
	}
}

// Relay submits conversations to a provider. It is safe for concurrent use.
type Relay struct {
	provider ai.Provider
	opts     Options
}

// New creates a relay. Blank model, prompt and non-positive max tokens fall
// back to the defaults; temperature is taken as given.
func New(provider ai.Provider, opts Options) *Relay {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = config.DefaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Relay{provider: provider, opts: opts}
}

// Options returns the parameters the relay sends.
func (r *Relay) Options() Options {
	return r.opts
}

// Apology formats err the way it is shown to users.
func Apology(err error) string {
	return apologyPrefix + err.Error()
}

// IsApology reports whether s is an apology produced by the relay.
func IsApology(s string) bool {
	return strings.HasPrefix(s, apologyPrefix)
}

// Complete returns the full reply to conv, or an apology on failure.
func (r *Relay) Complete(ctx context.Context, conv []ai.Message) string {
	req := r.request(conv)
	r.logRequest(ctx, "relay_complete_start", req)

	resp, err := r.provider.CreateChatCompletion(ctx, req)
	if err == nil && resp.Content == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		slog.Error("relay_complete_error", "model", req.Model, "error", err)
		return Apology(err)
	}

	slog.Info("relay_complete_done",
		"model", req.Model,
		"response_chars", len(resp.Content),
	)
	return resp.Content
}

// Stream returns the reply to conv as a sequence of non-empty fragments.
//
// The request is sent when iteration starts. If the service fails, the
// sequence ends with exactly one apology fragment. Stopping early closes the
// underlying stream. The sequence can be ranged over once; later ranges
// yield nothing.
func (r *Relay) Stream(ctx context.Context, conv []ai.Message) iter.Seq[string] {
	req := r.request(conv)
	var consumed atomic.Bool

	return func(yield func(string) bool) {
		if !consumed.CompareAndSwap(false, true) {
			slog.Warn("relay_stream_reused", "model", req.Model)
			return
		}

		r.logRequest(ctx, "relay_stream_start", req)

		stream, err := r.provider.CreateChatCompletionStream(ctx, req)
		if err != nil {
			slog.Error("relay_stream_create_error", "model", req.Model, "error", err)
			yield(Apology(err))
			return
		}
		defer stream.Close()

		fragments := 0
		for stream.Next() {
			delta := stream.Content()
			if delta == "" {
				continue
			}
			fragments++
			if !yield(delta) {
				slog.Debug("relay_stream_abandoned", "fragments", fragments)
				return
			}
		}

		err = stream.Err()
		if err == nil && fragments == 0 {
			err = ErrEmptyResponse
		}
		if err != nil {
			slog.Error("relay_stream_error",
				"model", req.Model,
				"fragments", fragments,
				"error", err,
			)
			yield(Apology(err))
			return
		}

		slog.Info("relay_stream_done", "model", req.Model, "fragments", fragments)
	}
}

// request copies conv behind the system message; conv itself is never touched.
func (r *Relay) request(conv []ai.Message) ai.ChatRequest {
	messages := make([]ai.Message, 0, len(conv)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: r.opts.SystemPrompt})
	messages = append(messages, conv...)

	temperature := r.opts.Temperature
	maxTokens := r.opts.MaxTokens
	return ai.ChatRequest{
		Model:       r.opts.Model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}

func (r *Relay) logRequest(ctx context.Context, msg string, req ai.ChatRequest) {
	logger := slog.Default()
	if !logger.Enabled(ctx, slog.LevelDebug) {
		slog.Info(msg, "model", req.Model, "message_count", len(req.Messages))
		return
	}

	logger.Debug(msg,
		"model", req.Model,
		"message_count", len(req.Messages),
		"estimated_tokens", ai.EstimateTokens(req.Model, req.Messages),
	)
	if logger.Enabled(ctx, logging.LevelTrace) {
		logger.Log(ctx, logging.LevelTrace, "relay_prompt",
			"messages_full", dumpMessages(req.Messages),
		)
	}
}

func dumpMessages(messages []ai.Message) string {
	var sb strings.Builder
	for i, msg := range messages {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", i, msg.Role, msg.Content)
	}
	return sb.String()
}
