package assistant

import (
	"context"
	"strings"

	"github.com/yanqian/pave-study/pkg/metrics"
)

// LLM sends a prompt, optional schema and safety policy to a generative model.
type LLM interface {
	Generate(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// LLMMessage is a chat turn sent to the model. Role is user, assistant or system.
type LLMMessage struct {
	Role    string
	Content string
}

// Schema forces JSON output matching Definition.
type Schema struct {
	Name       string
	Definition map[string]any
}

// LLMRequest is one model call.
type LLMRequest struct {
	Model       string
	System      string
	Messages    []LLMMessage
	Schema      *Schema
	Temperature float32
}

// LLMResponse carries the raw model text. Structured is true when the
// provider honoured the schema.
type LLMResponse struct {
	Text       string
	Structured bool
	Usage      metrics.TokenUsage
}

type modelKey struct{}

// WithModel overrides the model for calls made with ctx.
func WithModel(ctx context.Context, model string) context.Context {
	model = strings.TrimSpace(model)
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelKey{}, model)
}

func modelFrom(ctx context.Context, fallback string) string {
	if model, ok := ctx.Value(modelKey{}).(string); ok && model != "" {
		return model
	}
	return fallback
}

// chatMessages converts history into model turns, dropping function turns.
func chatMessages(history []HistoryMessage) []LLMMessage {
	out := make([]LLMMessage, 0, len(history))
	for _, msg := range history {
		text := msg.Text()
		if text == "" {
			continue
		}
		switch msg.Role {
		case RoleUser:
			out = append(out, LLMMessage{Role: "user", Content: text})
		case RoleModel:
			out = append(out, LLMMessage{Role: "assistant", Content: text})
		case RoleSystem:
			out = append(out, LLMMessage{Role: "system", Content: text})
		}
	}
	return out
}

// stripFences removes markdown code fences and surrounding prose from a JSON answer.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

// extractJSON returns the outermost JSON object or array found in text.
func extractJSON(text string) string {
	text = stripFences(text)
	if text == "" {
		return ""
	}
	if text[0] == '{' || text[0] == '[' {
		return text
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}
