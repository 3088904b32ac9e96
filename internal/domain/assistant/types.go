package assistant

import (
	"strings"

	"github.com/yanqian/pave-study/internal/domain/question"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentSearch           Intent = "BUSCAR_QUESTAO"
	IntentCreateQuestion   Intent = "CRIAR_QUESTAO"
	IntentCreateFlashcards Intent = "CRIAR_FLASHCARDS"
	IntentInfo             Intent = "INFO_PAVE"
	IntentChat             Intent = "CONVERSAR"
	IntentUnknown          Intent = "DESCONHECIDO"
)

// Intents lists the closed set in prompt order.
var Intents = []Intent{IntentSearch, IntentCreateQuestion, IntentCreateFlashcards, IntentInfo, IntentChat, IntentUnknown}

// ParseIntent maps raw model output onto the closed set. Anything else is DESCONHECIDO.
func ParseIntent(raw string) Intent {
	candidate := Intent(strings.ToUpper(strings.TrimSpace(raw)))
	for _, intent := range Intents {
		if intent == candidate {
			return intent
		}
	}
	return IntentUnknown
}

// Entities are the structured parameters extracted by the router.
type Entities struct {
	Materia string `json:"materia,omitempty"`
	Topico  string `json:"topico,omitempty"`
	Ano     *int   `json:"ano,omitempty"`
}

// IsEmpty reports whether no entity was extracted.
func (e *Entities) IsEmpty() bool {
	return e == nil || (e.Materia == "" && e.Topico == "" && e.Ano == nil)
}

// RouterDecision is the outcome of intent classification.
type RouterDecision struct {
	Intent        Intent    `json:"intent"`
	Entities      *Entities `json:"entities"`
	QuestionCount *int      `json:"questionCount,omitempty"`
	Reasoning     string    `json:"reasoning,omitempty"`
	// Degraded is set when the model output could not be parsed.
	Degraded bool `json:"-"`
}

func (d RouterDecision) entities() Entities {
	if d.Entities == nil {
		return Entities{}
	}
	return *d.Entities
}

func (d RouterDecision) count(fallback int) int {
	if d.QuestionCount != nil && *d.QuestionCount > 0 {
		return *d.QuestionCount
	}
	return fallback
}

// Flashcard is a term and its definition.
type Flashcard struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Conversation roles accepted in the history.
const (
	RoleUser     = "user"
	RoleModel    = "model"
	RoleFunction = "function"
	RoleSystem   = "system"
)

// Part is one text fragment of a history message.
type Part struct {
	Text string `json:"text"`
}

// HistoryMessage is one conversation turn.
type HistoryMessage struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text joins the message parts.
func (m HistoryMessage) Text() string {
	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n")
}

// ResponsePayload is returned by the assistant. Arrays are never nil.
type ResponsePayload struct {
	Commentary  *string           `json:"commentary"`
	Questions   []question.Record `json:"questions"`
	Flashcards  []Flashcard       `json:"flashcards"`
	DisplayCard string            `json:"displayCard,omitempty"`
}

func newPayload(commentary string) ResponsePayload {
	payload := ResponsePayload{
		Questions:  []question.Record{},
		Flashcards: []Flashcard{},
	}
	if commentary != "" {
		payload.Commentary = &commentary
	}
	return payload
}

// AskRequest is the /ask body.
type AskRequest struct {
	History   []HistoryMessage `json:"history"`
	ModelName string           `json:"modelName,omitempty"`
}
