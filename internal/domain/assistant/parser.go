package assistant

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yanqian/pave-study/internal/domain/question"
)

// parsedQuestions is what a parsing strategy extracts from model text.
type parsedQuestions struct {
	Questions  []question.Record
	Commentary string
}

// questionParser turns model text into questions. ok reports whether the
// strategy recognized the text; a recognized text may still hold no valid question.
type questionParser interface {
	TryParse(text string) (parsedQuestions, bool)
}

// structuredParser reads schema constrained JSON.
type structuredParser struct{}

type generatedQuestion struct {
	Enunciado     string                  `json:"enunciado"`
	Corpo         []question.ContentBlock `json:"corpo"`
	Alternativas  []question.Alternative  `json:"alternativas"`
	RespostaLetra string                  `json:"resposta_letra"`
	Materia       string                  `json:"materia"`
	Topico        string                  `json:"topico"`
}

type questionEnvelope struct {
	Comentario *string           `json:"comentario"`
	Questoes   []json.RawMessage `json:"questoes"`
	Questions  []json.RawMessage `json:"questions"`
}

// TryParse recognizes text that is JSON on its own, or prose embedding JSON
// that holds at least one object. Bracketed prose such as "[2]" is left to
// the legacy parser.
func (structuredParser) TryParse(text string) (parsedQuestions, bool) {
	payload := extractJSON(text)
	if payload == "" {
		return parsedQuestions{}, false
	}
	standalone := payload == stripFences(text)
	var (
		items   []json.RawMessage
		out     parsedQuestions
		objects int
	)
	if payload[0] == '[' {
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return parsedQuestions{}, false
		}
	} else {
		var env questionEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			return parsedQuestions{}, false
		}
		if env.Comentario != nil {
			out.Commentary = strings.TrimSpace(*env.Comentario)
		}
		items = env.Questoes
		if items == nil {
			items = env.Questions
		}
		if items == nil {
			items = []json.RawMessage{json.RawMessage(payload)}
		}
	}
	for _, item := range items {
		if !isJSONObject(item) {
			continue
		}
		objects++
		var gq generatedQuestion
		if err := json.Unmarshal(item, &gq); err != nil {
			continue
		}
		if rec, ok := gq.record(); ok {
			out.Questions = append(out.Questions, rec)
		}
	}
	if !standalone && objects == 0 {
		return parsedQuestions{}, false
	}
	return out, true
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func (g generatedQuestion) record() (question.Record, bool) {
	rec := question.Record{
		Materia:       g.Materia,
		Topico:        g.Topico,
		Corpo:         g.Corpo,
		Alternativas:  g.Alternativas,
		RespostaLetra: g.RespostaLetra,
	}
	if stem := strings.TrimSpace(g.Enunciado); stem != "" {
		rec.Corpo = append([]question.ContentBlock{{Tipo: question.BlockText, Conteudo: stem}}, rec.Corpo...)
	}
	rec.Normalize()
	if rec.Stem() == "" {
		return question.Record{}, false
	}
	if err := rec.Validate(); err != nil {
		return question.Record{}, false
	}
	return rec, true
}

// legacyParser reads free text with an Enunciado block, lettered
// alternatives and a Resposta Correta or Gabarito line.
type legacyParser struct{}

var (
	legacyBlockMarker = regexp.MustCompile(`(?i)\benunciado\s*[:\-]`)
	legacyStem        = regexp.MustCompile(`(?s)(?i:enunciado)\s*[:\-]?\s*(.+?)\n\s*\(?[A-Ea-e]\s*[\)\.\-:]`)
	legacyAlternative = regexp.MustCompile(`(?m)^\s*\(?([A-Ea-e])\s*[\)\.\-:]\s*(.+?)\s*$`)
	legacyAnswer      = regexp.MustCompile(`(?i)(?:resposta\s+correta|gabarito)\s*[:\-]?\s*(?:letra\s+)?\(?([A-E])\b`)
)

func (legacyParser) TryParse(text string) (parsedQuestions, bool) {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out parsedQuestions
	blocks := splitLegacyBlocks(text)
	if len(blocks) == 0 {
		return parsedQuestions{}, false
	}
	if loc := legacyBlockMarker.FindStringIndex(text); loc != nil {
		out.Commentary = strings.TrimSpace(text[:loc[0]])
	}
	for _, block := range blocks {
		if rec, ok := parseLegacyBlock(block); ok {
			out.Questions = append(out.Questions, rec)
		}
	}
	if len(out.Questions) == 0 {
		return parsedQuestions{}, false
	}
	return out, true
}

func splitLegacyBlocks(text string) []string {
	locs := legacyBlockMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if legacyStem.MatchString(text) {
			return []string{text}
		}
		return nil
	}
	blocks := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, text[loc[0]:end])
	}
	return blocks
}

func parseLegacyBlock(block string) (question.Record, bool) {
	stemLoc := legacyStem.FindStringSubmatchIndex(block)
	if stemLoc == nil {
		return question.Record{}, false
	}
	stem := strings.TrimSpace(block[stemLoc[2]:stemLoc[3]])
	if stem == "" {
		return question.Record{}, false
	}

	answerLoc := legacyAnswer.FindStringSubmatchIndex(block[stemLoc[3]:])
	if answerLoc == nil {
		return question.Record{}, false
	}
	answer := strings.ToUpper(block[stemLoc[3]+answerLoc[2] : stemLoc[3]+answerLoc[3]])
	region := block[stemLoc[3] : stemLoc[3]+answerLoc[0]]

	seen := map[string]struct{}{}
	var alternatives []question.Alternative
	for _, m := range legacyAlternative.FindAllStringSubmatch(region, -1) {
		letter := strings.ToUpper(m[1])
		if _, dup := seen[letter]; dup {
			continue
		}
		seen[letter] = struct{}{}
		alternatives = append(alternatives, question.Alternative{Letra: letter, Texto: strings.TrimSpace(m[2])})
	}

	rec := question.Record{
		Corpo:         []question.ContentBlock{{Tipo: question.BlockText, Conteudo: stem}},
		Alternativas:  alternatives,
		RespostaLetra: answer,
	}
	if err := rec.Validate(); err != nil {
		return question.Record{}, false
	}
	return rec, true
}
