package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/pave-study/internal/domain/question"
	"github.com/yanqian/pave-study/internal/domain/retrieval"
)

// Source reads corpus documents.
type Source interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config selects which documents make up the corpus.
type Config struct {
	Keys        []string
	Prefix      string
	Concurrency int
}

// Store aggregates every source document into one flat question list.
type Store struct {
	source Source
	cfg    Config
	logger *slog.Logger
}

// NewStore constructs the store. Explicit keys win over prefix discovery.
func NewStore(source Source, cfg Config, logger *slog.Logger) *Store {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Store{
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "retrieval.corpus"),
	}
}

// All fetches every source concurrently. A failing source contributes no
// records; the rest are flattened in key order with duplicate ids dropped.
func (s *Store) All(ctx context.Context) ([]question.Record, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	partials := make([][]question.Record, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			records, err := s.load(gctx, key)
			if err != nil {
				s.logger.Warn("corpus source unavailable", "key", key, "error", err)
				return nil
			}
			partials[i] = records
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]question.Record, 0)
	seen := make(map[string]struct{})
	for i, records := range partials {
		for _, rec := range records {
			if _, dup := seen[rec.ID]; dup {
				s.logger.Warn("duplicate question id", "id", rec.ID, "key", keys[i])
				continue
			}
			seen[rec.ID] = struct{}{}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	if len(s.cfg.Keys) > 0 {
		return s.cfg.Keys, nil
	}
	listed, err := s.source.List(ctx, s.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list corpus sources: %w", err)
	}
	keys := make([]string, 0, len(listed))
	for _, key := range listed {
		if strings.EqualFold(path.Ext(key), ".json") {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) load(ctx context.Context, key string) ([]question.Record, error) {
	rc, err := s.source.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	raws, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	records := make([]question.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := ParseRecord(raw)
		if err != nil {
			s.logger.Warn("skipping invalid question", "key", key, "position", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeDocument splits a corpus document into raw records. Documents are
// either a JSON array or an object with a "questions" array.
func DecodeDocument(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if data[0] == '{' {
		var envelope struct {
			Questions []json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		if envelope.Questions == nil {
			return nil, fmt.Errorf("object document without questions array")
		}
		return envelope.Questions, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	return raws, nil
}

// ParseRecord decodes, normalizes and validates one record.
func ParseRecord(raw json.RawMessage) (question.Record, error) {
	var rec question.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return question.Record{}, err
	}
	rec.Normalize()
	if rec.ID == "" {
		return question.Record{}, fmt.Errorf("%w: missing id", question.ErrInvalidRecord)
	}
	if err := rec.Validate(); err != nil {
		return question.Record{}, err
	}
	return rec, nil
}

var _ retrieval.QuestionStore = (*Store)(nil)
