package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/pave-study/internal/domain/question"
	apperrors "github.com/yanqian/pave-study/pkg/errors"
	"github.com/yanqian/pave-study/pkg/util"
)

// JobReindex is the queue job name handled by Indexer.HandleJob.
const JobReindex = "reindex_questions"

// IndexerConfig controls batch embedding.
type IndexerConfig struct {
	BatchSize int
}

// Indexer embeds the corpus and writes it to the vector index.
type Indexer struct {
	cfg      IndexerConfig
	embedder Embedder
	index    VectorIndex
	store    QuestionStore
	queue    JobQueue
	logger   *slog.Logger
}

// NewIndexer constructs an Indexer. queue may be nil when async reindexing is disabled.
func NewIndexer(cfg IndexerConfig, embedder Embedder, index VectorIndex, store QuestionStore, queue JobQueue, logger *slog.Logger) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Indexer{
		cfg:      cfg,
		embedder: embedder,
		index:    index,
		store:    store,
		queue:    queue,
		logger:   logger.With("component", "retrieval.indexer"),
	}
}

// EmbeddingText composes the text embedded for a record: subject, topic,
// text blocks, alternatives and the correct alternative.
func EmbeddingText(r question.Record) string {
	parts := make([]string, 0, len(r.Corpo)+len(r.Alternativas)+3)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	add(r.Materia)
	add(r.Topico)
	for _, block := range r.Corpo {
		if block.IsText() {
			add(block.Conteudo)
		}
	}
	for _, alt := range r.Alternativas {
		add(alt.Texto)
	}
	if correct, ok := r.CorrectAlternative(); ok {
		add(correct.Texto)
	}
	return strings.Join(parts, "\n")
}

type indexItem struct {
	record question.Record
	text   string
}

// Reindex embeds records in sequential batches and upserts the vectors.
// A failed embedding batch counts its items as failed; a failed upsert aborts.
func (i *Indexer) Reindex(ctx context.Context, records []question.Record) (ReindexResult, error) {
	var result ReindexResult
	items := make([]indexItem, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			result.Skipped++
			i.logger.Warn("skipping invalid question", "id", rec.ID, "error", err)
			continue
		}
		text := EmbeddingText(rec)
		if text == "" {
			result.Skipped++
			i.logger.Warn("skipping question without embeddable text", "id", rec.ID)
			continue
		}
		items = append(items, indexItem{record: rec, text: text})
	}

	for start := 0; start < len(items); start += i.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return result, apperrors.Wrap(apperrors.CodeIndex, "reindex cancelled", err)
		}
		end := start + i.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		result.Batches++

		vectors := i.embedBatch(ctx, batch, result.Batches)
		upserts := make([]Vector, 0, len(batch))
		for idx, item := range batch {
			if len(vectors[idx]) == 0 {
				result.Failed++
				continue
			}
			upserts = append(upserts, Vector{
				ID:       item.record.ID,
				Values:   vectors[idx],
				Metadata: MetadataFromRecord(item.record),
			})
		}
		if len(upserts) == 0 {
			continue
		}
		if err := i.index.Upsert(ctx, upserts); err != nil {
			return result, apperrors.Wrap(apperrors.CodeIndex, "vector upsert failed", err)
		}
		result.Processed += len(upserts)
	}

	i.logger.Info("reindex complete", "processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed, "batches", result.Batches)
	return result, nil
}

// embedBatch always returns one slot per item; failed items are nil.
func (i *Indexer) embedBatch(ctx context.Context, batch []indexItem, number int) [][]float32 {
	out := make([][]float32, len(batch))
	texts := make([]string, len(batch))
	for idx, item := range batch {
		texts[idx] = item.text
	}
	vectors, err := i.embedder.Embed(ctx, texts)
	if err != nil {
		i.logger.Warn("embedding batch failed", "batch", number, "size", len(batch), "error", err)
		return out
	}
	if len(vectors) != len(batch) {
		i.logger.Warn("embedding result count mismatch", "batch", number, "expected", len(batch), "got", len(vectors))
		return out
	}
	copy(out, vectors)
	return out
}

// ReindexAll loads the corpus from the store and reindexes it.
func (i *Indexer) ReindexAll(ctx context.Context) (ReindexResult, error) {
	records, err := i.store.All(ctx)
	if err != nil {
		return ReindexResult{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load questions", err)
	}
	if len(records) == 0 {
		return ReindexResult{}, apperrors.Wrap(apperrors.CodeNotFound, "question corpus is empty", nil)
	}
	return i.Reindex(ctx, records)
}

// Schedule enqueues a background reindex.
func (i *Indexer) Schedule(ctx context.Context) error {
	if i.queue == nil {
		return apperrors.Wrap(apperrors.CodeQueueUnavailable, "async indexing is not configured", nil)
	}
	payload := map[string]any{"requestedAt": util.NowUTC().UnixMilli()}
	if err := i.queue.Enqueue(ctx, JobReindex, payload); err != nil {
		return apperrors.Wrap(apperrors.CodeQueueUnavailable, "failed to enqueue reindex job", err)
	}
	i.logger.Info("reindex job enqueued")
	return nil
}

// HandleJob is the queue handler for reindex jobs.
func (i *Indexer) HandleJob(ctx context.Context, name string, payload map[string]any) {
	if name != JobReindex {
		i.logger.Warn("ignoring unknown job", "name", name)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	start := time.Now()
	result, err := i.ReindexAll(ctx)
	if err != nil {
		i.logger.Error("background reindex failed", "error", err, "requestedAt", payload["requestedAt"])
		return
	}
	i.logger.Info("background reindex finished", "processed", result.Processed, "duration_ms", time.Since(start).Milliseconds())
}

var _ IndexService = (*Indexer)(nil)
