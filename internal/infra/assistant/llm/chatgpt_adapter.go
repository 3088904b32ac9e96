package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	domain "github.com/yanqian/pave-study/internal/domain/assistant"
	"github.com/yanqian/pave-study/internal/infra/llm/chatgpt"
	"github.com/yanqian/pave-study/pkg/metrics"
)

// ChatGPTLLM adapts the ChatGPT client to the assistant domain.
type ChatGPTLLM struct {
	client       *chatgpt.Client
	model        string
	temperature  float32
	safetyPolicy string
}

// NewChatGPTLLM constructs the adapter. The safety policy is sent as the
// first system message of every call.
func NewChatGPTLLM(client *chatgpt.Client, model string, temperature float32, safetyPolicy string) *ChatGPTLLM {
	return &ChatGPTLLM{
		client:       client,
		model:        model,
		temperature:  temperature,
		safetyPolicy: strings.TrimSpace(safetyPolicy),
	}
}

// Generate sends a chat completion request, asking for strict JSON when a schema is given.
func (l *ChatGPTLLM) Generate(ctx context.Context, req domain.LLMRequest) (domain.LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = l.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = l.temperature
	}
	payload := chatgpt.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		Messages:    make([]chatgpt.Message, 0, len(req.Messages)+2),
	}
	if l.safetyPolicy != "" {
		payload.Messages = append(payload.Messages, chatgpt.Message{Role: "system", Content: l.safetyPolicy})
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.Messages = append(payload.Messages, chatgpt.Message{Role: "system", Content: system})
	}
	for _, msg := range req.Messages {
		payload.Messages = append(payload.Messages, chatgpt.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	if req.Schema != nil {
		payload.ResponseFormat = &chatgpt.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &chatgpt.JSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Definition,
				Strict: true,
			},
		}
	}

	resp, err := l.client.CreateChatCompletion(ctx, payload)
	if err != nil {
		return domain.LLMResponse{}, err
	}
	out := domain.LLMResponse{
		Usage: metrics.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out, nil
	}
	out.Text = strings.TrimSpace(resp.Choices[0].Message.Content)
	out.Structured = req.Schema != nil && json.Valid([]byte(out.Text))
	return out, nil
}

var _ domain.LLM = (*ChatGPTLLM)(nil)

// ErrUnavailable is returned when no model provider is configured.
var ErrUnavailable = errors.New("llm provider not configured")

// UnavailableLLM fails every call so the assistant surfaces a service error.
type UnavailableLLM struct{}

// Generate always returns ErrUnavailable.
func (UnavailableLLM) Generate(context.Context, domain.LLMRequest) (domain.LLMResponse, error) {
	return domain.LLMResponse{}, ErrUnavailable
}

var _ domain.LLM = UnavailableLLM{}
