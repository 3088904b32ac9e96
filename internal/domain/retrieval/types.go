package retrieval

import (
	"github.com/yanqian/pave-study/internal/domain/question"
)

// Vector is an embedding tied to a question id.
type Vector struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Metadata is stored next to each vector. Strings are folded.
type Metadata struct {
	Materia string `json:"materia,omitempty"`
	Topico  string `json:"topico,omitempty"`
	Ano     *int   `json:"ano,omitempty"`
	Etapa   *int   `json:"etapa,omitempty"`
}

// MetadataFromRecord builds folded metadata for a record.
func MetadataFromRecord(r question.Record) Metadata {
	return Metadata{
		Materia: question.Fold(r.Materia),
		Topico:  question.Fold(r.Topico),
		Ano:     r.Ano,
		Etapa:   r.Etapa,
	}
}

// MetadataFilter restricts a vector query with equality predicates.
type MetadataFilter struct {
	Materia string
	Ano     *int
	Etapa   *int
}

// FilterFromSearch folds the structured part of a search filter.
func FilterFromSearch(f question.SearchFilter) MetadataFilter {
	return MetadataFilter{
		Materia: question.Fold(f.Materia),
		Ano:     f.Ano,
		Etapa:   f.Etapa,
	}
}

// IsEmpty reports whether no predicate is set.
func (f MetadataFilter) IsEmpty() bool {
	return f.Materia == "" && f.Ano == nil && f.Etapa == nil
}

// Matches evaluates the filter against stored metadata.
func (f MetadataFilter) Matches(m Metadata) bool {
	if f.Materia != "" && f.Materia != m.Materia {
		return false
	}
	if f.Ano != nil && (m.Ano == nil || *m.Ano != *f.Ano) {
		return false
	}
	if f.Etapa != nil && (m.Etapa == nil || *m.Etapa != *f.Etapa) {
		return false
	}
	return true
}

// Match is a scored vector hit.
type Match struct {
	ID    string
	Score float64
}

// ReindexResult summarizes a reindex run.
type ReindexResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Batches   int `json:"batches"`
}

// FilterOptions lists the distinct values available for structured filters.
type FilterOptions struct {
	Anos     []int    `json:"anos"`
	Materias []string `json:"materias"`
	Etapas   []int    `json:"etapas"`
}
