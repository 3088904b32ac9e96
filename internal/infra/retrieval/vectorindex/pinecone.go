package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/pave-study/internal/domain/retrieval"
)

const pineconeUpsertBatch = 100

// PineconeConfig addresses a Pinecone index data plane.
type PineconeConfig struct {
	APIKey     string
	APIVersion string
	Host       string
	Namespace  string
	Timeout    time.Duration
}

// PineconeIndex talks to the Pinecone REST data plane.
type PineconeIndex struct {
	cfg    PineconeConfig
	base   string
	http   *http.Client
	logger *slog.Logger
}

// NewPineconeIndex constructs the index client. Host may omit the scheme.
func NewPineconeIndex(cfg PineconeConfig, logger *slog.Logger) (*PineconeIndex, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing pinecone api key")
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("missing pinecone index host")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = "2025-10"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &PineconeIndex{
		cfg:    cfg,
		base:   host,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "retrieval.vectorindex.pinecone"),
	}, nil
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

type upsertResponse struct {
	UpsertedCount int64 `json:"upsertedCount"`
}

type queryRequest struct {
	Namespace       string         `json:"namespace,omitempty"`
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type queryMatch struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type queryResponse struct {
	Matches []queryMatch `json:"matches"`
}

// Upsert sends vectors in chunks of pineconeUpsertBatch.
func (p *PineconeIndex) Upsert(ctx context.Context, vectors []retrieval.Vector) error {
	for start := 0; start < len(vectors); start += pineconeUpsertBatch {
		end := min(start+pineconeUpsertBatch, len(vectors))
		req := upsertRequest{Namespace: p.cfg.Namespace, Vectors: make([]pineconeVector, 0, end-start)}
		for _, v := range vectors[start:end] {
			req.Vectors = append(req.Vectors, pineconeVector{ID: v.ID, Values: v.Values, Metadata: metadataMap(v.Metadata)})
		}
		resp, err := doJSON[upsertResponse](ctx, p, "/vectors/upsert", req)
		if err != nil {
			return err
		}
		p.logger.Debug("pinecone upsert", "sent", len(req.Vectors), "upserted", resp.UpsertedCount)
	}
	return nil
}

// Query returns up to topK matches restricted by $eq metadata predicates.
func (p *PineconeIndex) Query(ctx context.Context, values []float32, topK int, filter retrieval.MetadataFilter) ([]retrieval.Match, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	if topK <= 0 {
		topK = 10
	}
	resp, err := doJSON[queryResponse](ctx, p, "/query", queryRequest{
		Namespace: p.cfg.Namespace,
		Vector:    values,
		TopK:      topK,
		Filter:    filterMap(filter),
	})
	if err != nil {
		return nil, err
	}
	out := make([]retrieval.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if strings.TrimSpace(m.ID) != "" {
			out = append(out, retrieval.Match{ID: m.ID, Score: m.Score})
		}
	}
	return out, nil
}

func metadataMap(m retrieval.Metadata) map[string]any {
	out := map[string]any{}
	if m.Materia != "" {
		out["materia"] = m.Materia
	}
	if m.Topico != "" {
		out["topico"] = m.Topico
	}
	if m.Ano != nil {
		out["ano"] = *m.Ano
	}
	if m.Etapa != nil {
		out["etapa"] = *m.Etapa
	}
	return out
}

func filterMap(f retrieval.MetadataFilter) map[string]any {
	if f.IsEmpty() {
		return nil
	}
	out := map[string]any{}
	if f.Materia != "" {
		out["materia"] = map[string]any{"$eq": f.Materia}
	}
	if f.Ano != nil {
		out["ano"] = map[string]any{"$eq": *f.Ano}
	}
	if f.Etapa != nil {
		out["etapa"] = map[string]any{"$eq": *f.Etapa}
	}
	return out
}

func doJSON[T any](ctx context.Context, p *PineconeIndex, path string, body any) (*T, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-Api-Version", p.cfg.APIVersion)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pinecone http %d: %s", resp.StatusCode, string(raw))
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pinecone decode error: %w", err)
	}
	return &out, nil
}

var _ retrieval.VectorIndex = (*PineconeIndex)(nil)
