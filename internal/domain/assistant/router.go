package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/yanqian/pave-study/pkg/errors"
)

// RouterConfig tunes intent classification.
type RouterConfig struct {
	Model        string
	Temperature  float32
	HistoryTurns int
	MaxCount     int
}

// Router classifies a user message into an intent plus entities.
type Router struct {
	cfg    RouterConfig
	llm    LLM
	logger *slog.Logger
}

// NewRouter constructs the intent router.
func NewRouter(cfg RouterConfig, llm LLM, logger *slog.Logger) *Router {
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = 0
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 20
	}
	return &Router{cfg: cfg, llm: llm, logger: logger.With("component", "assistant.router")}
}

var routerSchema = &Schema{
	Name: "router_decision",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": intentNames(),
			},
			"entities": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"materia": map[string]any{"type": []string{"string", "null"}},
					"topico":  map[string]any{"type": []string{"string", "null"}},
					"ano":     map[string]any{"type": []string{"integer", "null"}},
				},
				"required":             []string{"materia", "topico", "ano"},
				"additionalProperties": false,
			},
			"questionCount": map[string]any{"type": []string{"integer", "null"}},
			"reasoning":     map[string]any{"type": []string{"string", "null"}},
		},
		"required":             []string{"intent", "entities", "questionCount", "reasoning"},
		"additionalProperties": false,
	},
}

func intentNames() []string {
	out := make([]string, len(Intents))
	for i, intent := range Intents {
		out[i] = string(intent)
	}
	return out
}

// Classify asks the model for a decision. Only transport failures are errors;
// unparseable output degrades to DESCONHECIDO.
func (r *Router) Classify(ctx context.Context, history []HistoryMessage, latest string) (RouterDecision, error) {
	resp, err := r.llm.Generate(ctx, LLMRequest{
		Model:       modelFrom(ctx, r.cfg.Model),
		System:      routerSystemPrompt,
		Messages:    []LLMMessage{{Role: "user", Content: r.buildPrompt(history, latest)}},
		Schema:      routerSchema,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return RouterDecision{}, apperrors.Wrap(apperrors.CodeLLM, "intent classification failed", err)
	}
	if !resp.Usage.IsZero() {
		r.logger.Debug("router token usage", "total", resp.Usage.TotalTokens)
	}
	if !resp.Structured {
		r.logger.Warn("router response was not schema constrained, parsing as text")
	}
	decision, ok := parseDecision(resp.Text, r.cfg.MaxCount)
	if !ok {
		r.logger.Warn("router response could not be parsed", "text", truncate(resp.Text, 200))
		return RouterDecision{Intent: IntentUnknown, Degraded: true}, nil
	}
	r.logger.Info("intent classified", "intent", decision.Intent, "reasoning", decision.Reasoning)
	return decision, nil
}

func (r *Router) buildPrompt(history []HistoryMessage, latest string) string {
	var b strings.Builder
	trailing := history
	if len(trailing) > r.cfg.HistoryTurns {
		trailing = trailing[len(trailing)-r.cfg.HistoryTurns:]
	}
	if len(trailing) > 0 {
		b.WriteString("Histórico recente da conversa:\n")
		for _, msg := range trailing {
			text := msg.Text()
			if text == "" {
				continue
			}
			fmt.Fprintf(&b, "[%s] %s\n", msg.Role, text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Mensagem atual do estudante:\n")
	b.WriteString(strings.TrimSpace(latest))
	return b.String()
}

type rawDecision struct {
	Intent        string          `json:"intent"`
	Entities      map[string]any  `json:"entities"`
	QuestionCount json.RawMessage `json:"questionCount"`
	Reasoning     *string         `json:"reasoning"`
}

func parseDecision(text string, maxCount int) (RouterDecision, bool) {
	payload := extractJSON(text)
	if payload == "" {
		return RouterDecision{}, false
	}
	var raw rawDecision
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return RouterDecision{}, false
	}
	if strings.TrimSpace(raw.Intent) == "" {
		return RouterDecision{}, false
	}
	decision := RouterDecision{
		Intent:   ParseIntent(raw.Intent),
		Entities: coerceEntities(raw.Entities),
	}
	if raw.Reasoning != nil {
		decision.Reasoning = strings.TrimSpace(*raw.Reasoning)
	}
	if n, ok := coerceInt(raw.QuestionCount); ok {
		n = clamp(n, 1, maxCount)
		decision.QuestionCount = &n
	}
	return decision, true
}

func coerceEntities(raw map[string]any) *Entities {
	out := &Entities{}
	if raw == nil {
		return out
	}
	if v, ok := raw["materia"].(string); ok {
		out.Materia = strings.TrimSpace(v)
	}
	if v, ok := raw["topico"].(string); ok {
		out.Topico = strings.TrimSpace(v)
	}
	switch v := raw["ano"].(type) {
	case float64:
		if ano, ok := floatToInt(v); ok && v == math.Trunc(v) && ano > 0 {
			out.Ano = &ano
		}
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			out.Ano = &parsed
		}
	}
	return out
}

func coerceInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return floatToInt(number)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// floatToInt rejects values a model may emit that do not fit a 32-bit int.
func floatToInt(v float64) (int, bool) {
	if math.IsNaN(v) || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
