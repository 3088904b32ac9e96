package question

import "strings"

// SearchFilter narrows a search over the corpus.
type SearchFilter struct {
	Query   string
	Materia string
	Ano     *int
	Etapa   *int
	Page    int
	Limit   int
}

// HasQuery reports whether a free-text query was supplied.
func (f SearchFilter) HasQuery() bool {
	return strings.TrimSpace(f.Query) != ""
}

// HasStructured reports whether any metadata filter was supplied.
func (f SearchFilter) HasStructured() bool {
	return strings.TrimSpace(f.Materia) != "" || f.Ano != nil || f.Etapa != nil
}

// Matches applies the structured filters with AND semantics.
func (f SearchFilter) Matches(r Record) bool {
	if m := strings.TrimSpace(f.Materia); m != "" && !SameFold(m, r.Materia) {
		return false
	}
	if f.Ano != nil && (r.Ano == nil || *r.Ano != *f.Ano) {
		return false
	}
	if f.Etapa != nil && (r.Etapa == nil || *r.Etapa != *f.Etapa) {
		return false
	}
	return true
}

// Page is one slice of a paginated result.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	TotalPages  int
	TotalItems  int
	Limit       int
}

// Paginate slices items for the requested page. Page and limit below one are
// treated as one. A page past the end yields no items but keeps accurate totals.
func Paginate[T any](items []T, page, limit int) Page[T] {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	total := len(items)
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}
	out := Page[T]{
		Items:       []T{},
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		Limit:       limit,
	}
	if page > totalPages {
		return out
	}
	start := (page - 1) * limit
	end := min(start+limit, total)
	out.Items = append(out.Items, items[start:end]...)
	return out
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int {
	return &v
}
