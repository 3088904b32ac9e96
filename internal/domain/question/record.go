package question

import (
	"errors"
	"fmt"
	"strings"
)

// BlockType identifies the kind of a body block.
type BlockType string

const (
	BlockText  BlockType = "texto"
	BlockImage BlockType = "imagem"
)

const (
	minAlternatives = 2
	maxAlternatives = 5
)

// ContentBlock is one element of a question body.
type ContentBlock struct {
	Tipo     BlockType `json:"tipo"`
	Conteudo string    `json:"conteudo,omitempty"`
	URL      string    `json:"url,omitempty"`
	Legenda  string    `json:"legenda,omitempty"`
}

// IsText reports whether the block carries markdown text.
func (b ContentBlock) IsText() bool {
	switch strings.ToLower(string(b.Tipo)) {
	case string(BlockText), "text", "":
		return true
	}
	return false
}

// Alternative is a lettered answer option.
type Alternative struct {
	Letra string `json:"letra"`
	Texto string `json:"texto"`
}

// Record is a multiple choice exam question.
type Record struct {
	ID            string         `json:"id"`
	Ano           *int           `json:"ano,omitempty"`
	Etapa         *int           `json:"etapa,omitempty"`
	Materia       string         `json:"materia"`
	Topico        string         `json:"topico"`
	Corpo         []ContentBlock `json:"corpo"`
	Alternativas  []Alternative  `json:"alternativas"`
	RespostaLetra string         `json:"resposta_letra"`
	Referencia    string         `json:"referencia,omitempty"`
}

// ErrInvalidRecord marks records that break the alternatives/answer invariant.
var ErrInvalidRecord = errors.New("invalid question record")

// Normalize trims text fields and upper-cases alternative letters in place.
func (r *Record) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Materia = strings.TrimSpace(r.Materia)
	r.Topico = strings.TrimSpace(r.Topico)
	r.Referencia = strings.TrimSpace(r.Referencia)
	r.RespostaLetra = normalizeLetter(r.RespostaLetra)
	for i := range r.Alternativas {
		r.Alternativas[i].Letra = normalizeLetter(r.Alternativas[i].Letra)
		r.Alternativas[i].Texto = strings.TrimSpace(r.Alternativas[i].Texto)
	}
	for i := range r.Corpo {
		if r.Corpo[i].Tipo == "" {
			r.Corpo[i].Tipo = BlockText
		}
	}
}

// Validate checks that the record has 2..5 uniquely lettered alternatives and
// that the answer letter is one of them.
func (r Record) Validate() error {
	n := len(r.Alternativas)
	if n < minAlternatives || n > maxAlternatives {
		return fmt.Errorf("%w: %d alternatives", ErrInvalidRecord, n)
	}
	seen := make(map[string]struct{}, n)
	for _, alt := range r.Alternativas {
		letter := normalizeLetter(alt.Letra)
		if letter == "" {
			return fmt.Errorf("%w: alternative without letter", ErrInvalidRecord)
		}
		if _, dup := seen[letter]; dup {
			return fmt.Errorf("%w: duplicate letter %s", ErrInvalidRecord, letter)
		}
		seen[letter] = struct{}{}
	}
	answer := normalizeLetter(r.RespostaLetra)
	if answer == "" {
		return fmt.Errorf("%w: missing resposta_letra", ErrInvalidRecord)
	}
	if _, ok := seen[answer]; !ok {
		return fmt.Errorf("%w: resposta_letra %s not among alternatives", ErrInvalidRecord, answer)
	}
	return nil
}

// Stem joins the text blocks of the body.
func (r Record) Stem() string {
	parts := make([]string, 0, len(r.Corpo))
	for _, block := range r.Corpo {
		if !block.IsText() {
			continue
		}
		if text := strings.TrimSpace(block.Conteudo); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// CorrectAlternative returns the alternative matching the answer letter.
func (r Record) CorrectAlternative() (Alternative, bool) {
	answer := normalizeLetter(r.RespostaLetra)
	for _, alt := range r.Alternativas {
		if normalizeLetter(alt.Letra) == answer {
			return alt, true
		}
	}
	return Alternative{}, false
}

func normalizeLetter(letter string) string {
	letter = strings.TrimSpace(letter)
	letter = strings.Trim(letter, "()).:")
	return strings.ToUpper(strings.TrimSpace(letter))
}
