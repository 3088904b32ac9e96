package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/pave-study/internal/domain/retrieval"
	"github.com/yanqian/pave-study/internal/infra/llm/chatgpt"
)

const defaultMaxBatchTokens = 200_000

// ChatGPTEmbedder calls the OpenAI-compatible embeddings API.
type ChatGPTEmbedder struct {
	client         *chatgpt.Client
	model          string
	maxBatchTokens int
	count          func(string) int
	logger         *slog.Logger
}

// NewChatGPTEmbedder constructs an embedder backed by the ChatGPT client.
// Requests are split so each stays under maxBatchTokens.
func NewChatGPTEmbedder(client *chatgpt.Client, model string, maxBatchTokens int, logger *slog.Logger) *ChatGPTEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBatchTokens <= 0 {
		maxBatchTokens = defaultMaxBatchTokens
	}
	logger = logger.With("component", "retrieval.embedder.chatgpt")
	return &ChatGPTEmbedder{
		client:         client,
		model:          strings.TrimSpace(model),
		maxBatchTokens: maxBatchTokens,
		count:          tokenCounter(logger),
		logger:         logger,
	}
}

// Embed requests embeddings for texts, preserving input order.
func (e *ChatGPTEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var (
		out         = make([][]float32, 0, len(texts))
		batch       []string
		batchTokens int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		resp, err := e.client.CreateEmbedding(ctx, chatgpt.EmbeddingRequest{
			Model: e.model,
			Input: batch,
		})
		if err != nil {
			return fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return fmt.Errorf("embedding result count mismatch: expected %d got %d", len(batch), len(resp.Data))
		}
		sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		for _, item := range resp.Data {
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			out = append(out, vec)
		}
		e.logger.Debug("embedding batch complete", "inputs", len(batch), "tokens", resp.Usage.TotalTokens)
		batch = batch[:0]
		batchTokens = 0
		return nil
	}

	for _, text := range texts {
		tokens := e.count(text)
		if tokens > e.maxBatchTokens {
			return nil, fmt.Errorf("text too large for embedding request: tokens=%d", tokens)
		}
		if batchTokens+tokens > e.maxBatchTokens && len(batch) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		batch = append(batch, text)
		batchTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ retrieval.Embedder = (*ChatGPTEmbedder)(nil)

// tokenCounter lazily loads the cl100k_base encoding and falls back to a
// rune heuristic when the encoding cannot be loaded.
func tokenCounter(logger *slog.Logger) func(string) int {
	var (
		once sync.Once
		enc  *tiktoken.Tiktoken
	)
	return func(text string) int {
		once.Do(func() {
			var err error
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				logger.Warn("tiktoken encoding unavailable, estimating tokens", "error", err)
			}
		})
		if enc == nil {
			return estimateTokens(text)
		}
		return len(enc.Encode(text, nil, nil))
	}
}

// estimateTokens provides a rough, upper-biased token count.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}
