package ai

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the role/separator tokens chat models add per message.
const perMessageOverhead = 4

var encoders sync.Map // model -> *tiktoken.Tiktoken, or nil when unavailable

// EstimateTokens returns an approximate prompt token count for messages.
// It uses the model's BPE encoding when one can be loaded and falls back to
// a character based estimate otherwise.
func EstimateTokens(model string, messages []Message) int {
	enc := encoderFor(model)
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead
		if enc != nil {
			total += len(enc.Encode(msg.Content, nil, nil))
			continue
		}
		total += approxTokens(msg.Content)
	}
	return total
}

func encoderFor(model string) *tiktoken.Tiktoken {
	if cached, ok := encoders.Load(model); ok {
		enc, _ := cached.(*tiktoken.Tiktoken)
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Debug("token_encoder_unavailable", "model", model, "error", err)
		enc = nil
	}
	encoders.Store(model, enc)
	return enc
}

// approxTokens assumes roughly four characters per token.
func approxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
