package retrieval

import (
	"context"

	"github.com/yanqian/pave-study/internal/domain/question"
)

// Embedder produces embeddings for free form text. Output order matches input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores question vectors and answers nearest neighbour queries.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors []Vector) error
	Query(ctx context.Context, values []float32, topK int, filter MetadataFilter) ([]Match, error)
}

// QuestionStore yields the full question corpus.
type QuestionStore interface {
	All(ctx context.Context) ([]question.Record, error)
}

// JobQueue enqueues background work.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// SearchService is the read side consumed by transports.
type SearchService interface {
	Search(ctx context.Context, filter question.SearchFilter) (question.Page[question.Record], error)
	List(ctx context.Context, filter question.SearchFilter) (question.Page[question.Record], error)
	FilterOptions(ctx context.Context) (FilterOptions, error)
}

// IndexService is the write side consumed by transports and workers.
type IndexService interface {
	ReindexAll(ctx context.Context) (ReindexResult, error)
	Schedule(ctx context.Context) error
}
