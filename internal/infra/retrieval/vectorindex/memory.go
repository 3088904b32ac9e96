package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/yanqian/pave-study/internal/domain/retrieval"
)

// MemoryIndex keeps vectors in a map and scores them by brute-force cosine similarity.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string]retrieval.Vector
}

// NewMemoryIndex constructs an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string]retrieval.Vector)}
}

// Upsert stores copies of the vectors, replacing prior entries with the same id.
func (m *MemoryIndex) Upsert(_ context.Context, vectors []retrieval.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		values := make([]float32, len(v.Values))
		copy(values, v.Values)
		v.Values = values
		m.vectors[v.ID] = v
	}
	return nil
}

// Query returns up to topK matches passing filter, best first.
func (m *MemoryIndex) Query(_ context.Context, values []float32, topK int, filter retrieval.MetadataFilter) ([]retrieval.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matches := make([]retrieval.Match, 0, len(m.vectors))
	for id, v := range m.vectors {
		if !filter.Matches(v.Metadata) {
			continue
		}
		matches = append(matches, retrieval.Match{ID: id, Score: cosineSimilarity(values, v.Values)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Len reports the number of stored vectors.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	den := math.Sqrt(magA) * math.Sqrt(magB)
	if den == 0 {
		return 0
	}
	return dot / den
}

var _ retrieval.VectorIndex = (*MemoryIndex)(nil)
