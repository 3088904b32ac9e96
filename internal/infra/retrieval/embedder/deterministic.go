package embedder

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/yanqian/pave-study/internal/domain/question"
	"github.com/yanqian/pave-study/internal/domain/retrieval"
)

// DeterministicEmbedder avoids network calls by hashing folded text into a unit vector.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 32
	}
	return &DeterministicEmbedder{dim: dim}
}

// Embed converts each text into a pseudo-random vector. Equal texts after
// folding yield equal vectors.
func (e *DeterministicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, e.dim)
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(question.Fold(text)))
		seed := hash.Sum64()
		var norm float64
		for j := 0; j < e.dim; j++ {
			seed = seed*1099511628211 + 1469598103934665603
			vector[j] = float32(seed%997)/997.0 - 0.5
			norm += float64(vector[j]) * float64(vector[j])
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vector {
				vector[j] *= scale
			}
		}
		vectors[i] = vector
	}
	return vectors, nil
}

var _ retrieval.Embedder = (*DeterministicEmbedder)(nil)
