package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/yanqian/pave-study/internal/domain/question"
	apperrors "github.com/yanqian/pave-study/pkg/errors"
)

// Config holds the hybrid search policy.
type Config struct {
	TopK         int
	MinScore     float64
	DefaultLimit int
}

// Engine resolves search filters into paginated question records.
type Engine struct {
	cfg      Config
	embedder Embedder
	index    VectorIndex
	store    QuestionStore
	logger   *slog.Logger
}

// NewEngine constructs the hybrid search engine.
func NewEngine(cfg Config, embedder Embedder, index VectorIndex, store QuestionStore, logger *slog.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		index:    index,
		store:    store,
		logger:   logger.With("component", "retrieval.engine"),
	}
}

// Search runs the semantic path when a query is present and the keyword path otherwise.
func (e *Engine) Search(ctx context.Context, filter question.SearchFilter) (question.Page[question.Record], error) {
	limit := e.limit(filter)
	if !filter.HasQuery() && !filter.HasStructured() {
		return question.Paginate([]question.Record{}, filter.Page, limit), nil
	}
	if !filter.HasQuery() {
		return e.List(ctx, filter)
	}

	query := strings.TrimSpace(filter.Query)
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return question.Page[question.Record]{}, apperrors.Wrap(apperrors.CodeEmbedding, "failed to embed query", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return question.Page[question.Record]{}, apperrors.Wrap(apperrors.CodeEmbedding, "embedding service returned no vector", nil)
	}

	matches, err := e.index.Query(ctx, vectors[0], e.cfg.TopK, FilterFromSearch(filter))
	if err != nil {
		return question.Page[question.Record]{}, apperrors.Wrap(apperrors.CodeIndex, "vector query failed", err)
	}
	confident := confidentMatches(matches, e.cfg.MinScore)
	e.logger.Debug("vector query complete", "matches", len(matches), "confident", len(confident), "minScore", e.cfg.MinScore)
	if len(confident) == 0 {
		return question.Paginate([]question.Record{}, filter.Page, limit), nil
	}

	records, err := e.store.All(ctx)
	if err != nil {
		return question.Page[question.Record]{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load questions", err)
	}
	byID := make(map[string]question.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	results := make([]question.Record, 0, len(confident))
	seen := make(map[string]struct{}, len(confident))
	for _, match := range confident {
		if _, dup := seen[match.ID]; dup {
			continue
		}
		seen[match.ID] = struct{}{}
		rec, ok := byID[match.ID]
		if !ok {
			e.logger.Debug("dropping stale vector match", "id", match.ID)
			continue
		}
		if !filter.Matches(rec) {
			continue
		}
		results = append(results, rec)
	}
	return question.Paginate(results, filter.Page, limit), nil
}

// List filters the corpus by metadata only. Without filters it browses the whole corpus.
func (e *Engine) List(ctx context.Context, filter question.SearchFilter) (question.Page[question.Record], error) {
	records, err := e.store.All(ctx)
	if err != nil {
		return question.Page[question.Record]{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load questions", err)
	}
	results := make([]question.Record, 0, len(records))
	for _, rec := range records {
		if filter.Matches(rec) {
			results = append(results, rec)
		}
	}
	return question.Paginate(results, filter.Page, e.limit(filter)), nil
}

// FilterOptions scans the corpus for distinct ano, materia and etapa values.
func (e *Engine) FilterOptions(ctx context.Context) (FilterOptions, error) {
	records, err := e.store.All(ctx)
	if err != nil {
		return FilterOptions{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load questions", err)
	}
	opts := FilterOptions{Anos: []int{}, Materias: []string{}, Etapas: []int{}}
	anos := map[int]struct{}{}
	etapas := map[int]struct{}{}
	materias := map[string]struct{}{}
	for _, rec := range records {
		if rec.Ano != nil {
			if _, ok := anos[*rec.Ano]; !ok {
				anos[*rec.Ano] = struct{}{}
				opts.Anos = append(opts.Anos, *rec.Ano)
			}
		}
		if rec.Etapa != nil {
			if _, ok := etapas[*rec.Etapa]; !ok {
				etapas[*rec.Etapa] = struct{}{}
				opts.Etapas = append(opts.Etapas, *rec.Etapa)
			}
		}
		if key := question.Fold(rec.Materia); key != "" {
			if _, ok := materias[key]; !ok {
				materias[key] = struct{}{}
				opts.Materias = append(opts.Materias, strings.TrimSpace(rec.Materia))
			}
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(opts.Anos)))
	sort.Ints(opts.Etapas)
	sort.SliceStable(opts.Materias, func(i, j int) bool {
		return question.Fold(opts.Materias[i]) < question.Fold(opts.Materias[j])
	})
	return opts, nil
}

func (e *Engine) limit(filter question.SearchFilter) int {
	if filter.Limit > 0 {
		return filter.Limit
	}
	return e.cfg.DefaultLimit
}

// confidentMatches drops matches below minScore and orders the rest by score
// descending with id as tie-break.
func confidentMatches(matches []Match, minScore float64) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Score < minScore {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

var _ SearchService = (*Engine)(nil)
