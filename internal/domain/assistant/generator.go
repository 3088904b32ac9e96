package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/pave-study/internal/domain/question"
	apperrors "github.com/yanqian/pave-study/pkg/errors"
	"github.com/yanqian/pave-study/pkg/util"
)

const generatedReference = "Questão gerada por IA"

// GeneratorConfig tunes question and flashcard generation.
type GeneratorConfig struct {
	Model          string
	Temperature    float32
	MaxQuestions   int
	FlashcardBatch int
	MaxFlashcards  int
}

// QuestionRequest describes the questions to generate.
type QuestionRequest struct {
	Subject     string
	Topic       string
	CustomTopic string
	Count       int
}

// GenerationResult holds generated questions. RawText is set when no
// strategy could parse the model output.
type GenerationResult struct {
	Questions  []question.Record
	Commentary string
	RawText    string
}

// Generator produces new questions and flashcards through the LLM.
type Generator struct {
	cfg      GeneratorConfig
	llm      LLM
	primary  questionParser
	fallback questionParser
	now      func() time.Time
	logger   *slog.Logger
}

// NewGenerator constructs the content generator.
func NewGenerator(cfg GeneratorConfig, llm LLM, logger *slog.Logger) *Generator {
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 5
	}
	if cfg.FlashcardBatch <= 0 {
		cfg.FlashcardBatch = 5
	}
	if cfg.MaxFlashcards <= 0 {
		cfg.MaxFlashcards = 20
	}
	return &Generator{
		cfg:      cfg,
		llm:      llm,
		primary:  structuredParser{},
		fallback: legacyParser{},
		now:      util.NowUTC,
		logger:   logger.With("component", "assistant.generator"),
	}
}

var questionSchema = &Schema{
	Name: "generated_questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"comentario": map[string]any{"type": []string{"string", "null"}},
			"questoes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"enunciado": map[string]any{"type": "string"},
						"alternativas": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"letra": map[string]any{"type": "string"},
									"texto": map[string]any{"type": "string"},
								},
								"required":             []string{"letra", "texto"},
								"additionalProperties": false,
							},
						},
						"resposta_letra": map[string]any{"type": "string"},
						"materia":        map[string]any{"type": []string{"string", "null"}},
						"topico":         map[string]any{"type": []string{"string", "null"}},
					},
					"required":             []string{"enunciado", "alternativas", "resposta_letra", "materia", "topico"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"comentario", "questoes"},
		"additionalProperties": false,
	},
}

var flashcardSchema = &Schema{
	Name: "flashcards",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"flashcards": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"term":       map[string]any{"type": "string"},
						"definition": map[string]any{"type": "string"},
					},
					"required":             []string{"term", "definition"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"flashcards"},
		"additionalProperties": false,
	},
}

// GenerateQuestions asks the model for count questions. Structured JSON is
// parsed first; free text falls back to the legacy parser.
func (g *Generator) GenerateQuestions(ctx context.Context, req QuestionRequest) (GenerationResult, error) {
	count := clamp(req.Count, 1, g.cfg.MaxQuestions)
	subject := strings.TrimSpace(req.Subject)
	topic := strings.TrimSpace(req.CustomTopic)
	if topic == "" {
		topic = strings.TrimSpace(req.Topic)
	}
	if topic == "" && subject == "" {
		return GenerationResult{}, apperrors.Wrap(apperrors.CodeInvalidInput, "topic cannot be empty", nil)
	}

	resp, err := g.llm.Generate(ctx, LLMRequest{
		Model:       modelFrom(ctx, g.cfg.Model),
		System:      questionSystemPrompt,
		Messages:    []LLMMessage{{Role: "user", Content: questionPrompt(subject, topic, count)}},
		Schema:      questionSchema,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return GenerationResult{}, apperrors.Wrap(apperrors.CodeLLM, "question generation failed", err)
	}
	g.logUsage("questions", resp)

	parsed, recognized := g.primary.TryParse(resp.Text)
	if recognized {
		if len(parsed.Questions) == 0 {
			return GenerationResult{}, apperrors.Wrap(apperrors.CodeGeneration, "model returned no valid questions", nil)
		}
	} else {
		g.logger.Warn("generation response was not structured, trying legacy parser")
		parsed, recognized = g.fallback.TryParse(resp.Text)
		if !recognized {
			g.logger.Warn("legacy parser found no complete question")
			return GenerationResult{RawText: strings.TrimSpace(resp.Text)}, nil
		}
	}

	questions := parsed.Questions
	if len(questions) > count {
		questions = questions[:count]
	}
	stamp := g.now().UnixMilli()
	for i := range questions {
		q := &questions[i]
		q.ID = fmt.Sprintf("gen-%d-%d", stamp, i)
		if q.Materia == "" {
			q.Materia = subject
		}
		if q.Topico == "" {
			q.Topico = topic
		}
		if q.Referencia == "" {
			q.Referencia = generatedReference
		}
	}
	return GenerationResult{Questions: questions, Commentary: parsed.Commentary}, nil
}

// GenerateFlashcards asks the model for count flashcards about topic.
func (g *Generator) GenerateFlashcards(ctx context.Context, topic string, count int) ([]Flashcard, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "topic cannot be empty", nil)
	}
	if count <= 0 {
		count = g.cfg.FlashcardBatch
	}
	count = clamp(count, 1, g.cfg.MaxFlashcards)

	resp, err := g.llm.Generate(ctx, LLMRequest{
		Model:       modelFrom(ctx, g.cfg.Model),
		System:      flashcardSystemPrompt,
		Messages:    []LLMMessage{{Role: "user", Content: fmt.Sprintf("Crie %d flashcards sobre: %s", count, topic)}},
		Schema:      flashcardSchema,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLLM, "flashcard generation failed", err)
	}
	g.logUsage("flashcards", resp)

	cards, ok := parseFlashcards(resp.Text)
	if !ok {
		return nil, apperrors.Wrap(apperrors.CodeGeneration, "flashcard response was not valid JSON", nil)
	}
	if len(cards) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeGeneration, "model returned no valid flashcards", nil)
	}
	if len(cards) > count {
		cards = cards[:count]
	}
	return cards, nil
}

func (g *Generator) logUsage(kind string, resp LLMResponse) {
	if resp.Usage.IsZero() {
		return
	}
	g.logger.Info("generation token usage", "kind", kind, "prompt", resp.Usage.PromptTokens, "completion", resp.Usage.CompletionTokens, "total", resp.Usage.TotalTokens)
}

func questionPrompt(subject, topic string, count int) string {
	if subject == "" {
		subject = "Geral"
	}
	noun := "questão inédita"
	if count > 1 {
		noun = "questões inéditas"
	}
	return fmt.Sprintf("Crie %d %s de múltipla escolha.\nMatéria: %s\nTema: %s", count, noun, subject, topic)
}

func parseFlashcards(text string) ([]Flashcard, bool) {
	payload := extractJSON(text)
	if payload == "" {
		return nil, false
	}
	var raw []Flashcard
	if payload[0] == '[' {
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return nil, false
		}
	} else {
		var env struct {
			Flashcards []Flashcard `json:"flashcards"`
		}
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return nil, false
		}
		raw = env.Flashcards
	}
	cards := make([]Flashcard, 0, len(raw))
	for _, card := range raw {
		card.Term = strings.TrimSpace(card.Term)
		card.Definition = strings.TrimSpace(card.Definition)
		if card.Term == "" || card.Definition == "" {
			continue
		}
		cards = append(cards, card)
	}
	return cards, true
}
