package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/pave-study/internal/domain/question"
)

// DisplayCardPaveInfo tells the client to render the PAVE information card.
const DisplayCardPaveInfo = "pave_info"

// Searcher finds existing questions.
type Searcher interface {
	Search(ctx context.Context, filter question.SearchFilter) (question.Page[question.Record], error)
}

// ContentGenerator creates new study material.
type ContentGenerator interface {
	GenerateQuestions(ctx context.Context, req QuestionRequest) (GenerationResult, error)
	GenerateFlashcards(ctx context.Context, topic string, count int) ([]Flashcard, error)
}

// ExecutorConfig tunes intent dispatch.
type ExecutorConfig struct {
	Model        string
	Temperature  float32
	SearchLimit  int
	HistoryTurns int
}

// Executor dispatches a router decision and assembles the response.
type Executor struct {
	cfg       ExecutorConfig
	search    Searcher
	generator ContentGenerator
	llm       LLM
	logger    *slog.Logger
}

// NewExecutor constructs the executor.
func NewExecutor(cfg ExecutorConfig, search Searcher, generator ContentGenerator, llm LLM, logger *slog.Logger) *Executor {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	return &Executor{
		cfg:       cfg,
		search:    search,
		generator: generator,
		llm:       llm,
		logger:    logger.With("component", "assistant.executor"),
	}
}

// Execute never fails: branch errors and panics become a degraded commentary.
func (e *Executor) Execute(ctx context.Context, decision RouterDecision, userQuery string, history []HistoryMessage) (payload ResponsePayload) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("executor branch panicked", "intent", decision.Intent, "panic", r)
			payload = newPayload(msgInternalFailure)
		}
	}()

	switch decision.Intent {
	case IntentSearch:
		return e.searchQuestions(ctx, decision, userQuery)
	case IntentCreateQuestion:
		return e.createQuestions(ctx, decision, userQuery)
	case IntentCreateFlashcards:
		return e.createFlashcards(ctx, decision, userQuery)
	case IntentInfo:
		info := newPayload(msgPaveInfo)
		info.DisplayCard = DisplayCardPaveInfo
		return info
	case IntentChat:
		return e.converse(ctx, userQuery, history)
	default:
		if decision.Degraded {
			return newPayload(msgDegraded)
		}
		return newPayload(msgClarify)
	}
}

func (e *Executor) searchQuestions(ctx context.Context, decision RouterDecision, userQuery string) ResponsePayload {
	ent := decision.entities()
	filter := question.SearchFilter{
		Query:   ent.Topico,
		Materia: ent.Materia,
		Ano:     ent.Ano,
		Page:    1,
		Limit:   decision.count(e.cfg.SearchLimit),
	}
	if ent.IsEmpty() {
		filter.Query = strings.TrimSpace(userQuery)
	}
	page, err := e.search.Search(ctx, filter)
	if err != nil {
		e.logger.Warn("search branch failed", "error", err)
		return newPayload(msgSearchFailed)
	}
	if len(page.Items) == 0 {
		return newPayload(msgSearchEmpty)
	}
	payload := newPayload(searchCommentary(len(page.Items), ent))
	payload.Questions = page.Items
	return payload
}

func searchCommentary(n int, ent Entities) string {
	var b strings.Builder
	if n == 1 {
		b.WriteString("Encontrei 1 questão")
	} else {
		fmt.Fprintf(&b, "Encontrei %d questões", n)
	}
	if ent.Materia != "" {
		fmt.Fprintf(&b, " de %s", ent.Materia)
	}
	if ent.Topico != "" {
		fmt.Fprintf(&b, " sobre %s", ent.Topico)
	}
	if ent.Ano != nil {
		fmt.Fprintf(&b, " (%d)", *ent.Ano)
	}
	b.WriteString(". Bons estudos!")
	return b.String()
}

func (e *Executor) createQuestions(ctx context.Context, decision RouterDecision, userQuery string) ResponsePayload {
	ent := decision.entities()
	req := QuestionRequest{
		Subject: ent.Materia,
		Topic:   ent.Topico,
		Count:   decision.count(1),
	}
	if req.Subject == "" {
		req.Subject = "Geral"
	}
	if req.Topic == "" {
		req.CustomTopic = strings.TrimSpace(userQuery)
	}
	result, err := e.generator.GenerateQuestions(ctx, req)
	if err != nil {
		e.logger.Warn("question generation branch failed", "error", err)
		return newPayload(msgGenerateFailed)
	}
	if len(result.Questions) == 0 {
		if result.RawText != "" {
			return newPayload(result.RawText)
		}
		return newPayload(msgGenerateFailed)
	}
	commentary := result.Commentary
	if commentary == "" {
		subject := req.Topic
		if subject == "" {
			subject = req.Subject
		}
		if len(result.Questions) == 1 {
			commentary = fmt.Sprintf("Aqui está uma questão nova sobre %s:", subject)
		} else {
			commentary = fmt.Sprintf("Aqui estão %d questões novas sobre %s:", len(result.Questions), subject)
		}
	}
	payload := newPayload(commentary)
	payload.Questions = result.Questions
	return payload
}

func (e *Executor) createFlashcards(ctx context.Context, decision RouterDecision, userQuery string) ResponsePayload {
	ent := decision.entities()
	topic := ent.Topico
	if topic == "" {
		topic = ent.Materia
	}
	if topic == "" {
		topic = strings.TrimSpace(userQuery)
	}
	cards, err := e.generator.GenerateFlashcards(ctx, topic, decision.count(0))
	if err != nil {
		e.logger.Warn("flashcard branch failed", "error", err)
		return newPayload(msgFlashcardFailed)
	}
	payload := newPayload(fmt.Sprintf("Aqui estão %d flashcards sobre %s.", len(cards), topic))
	payload.Flashcards = cards
	return payload
}

func (e *Executor) converse(ctx context.Context, userQuery string, history []HistoryMessage) ResponsePayload {
	if e.llm == nil {
		return newPayload(msgChatFallback)
	}
	trailing := history
	if e.cfg.HistoryTurns > 0 && len(trailing) > e.cfg.HistoryTurns {
		trailing = trailing[len(trailing)-e.cfg.HistoryTurns:]
	}
	messages := chatMessages(trailing)
	if len(messages) == 0 || messages[len(messages)-1].Role != "user" {
		messages = append(messages, LLMMessage{Role: "user", Content: userQuery})
	}
	resp, err := e.llm.Generate(ctx, LLMRequest{
		Model:       modelFrom(ctx, e.cfg.Model),
		System:      chatSystemPrompt,
		Messages:    messages,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		e.logger.Warn("chat reply failed", "error", err)
		return newPayload(msgChatFallback)
	}
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return newPayload(msgChatFallback)
	}
	return newPayload(reply)
}
