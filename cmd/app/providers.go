package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/pave-study/internal/domain/assistant"
	"github.com/yanqian/pave-study/internal/domain/retrieval"
	"github.com/yanqian/pave-study/internal/infra/assistant/llm"
	"github.com/yanqian/pave-study/internal/infra/config"
	"github.com/yanqian/pave-study/internal/infra/llm/chatgpt"
	"github.com/yanqian/pave-study/internal/infra/retrieval/corpus"
	"github.com/yanqian/pave-study/internal/infra/retrieval/embedder"
	"github.com/yanqian/pave-study/internal/infra/retrieval/queue"
	"github.com/yanqian/pave-study/internal/infra/retrieval/storage"
	"github.com/yanqian/pave-study/internal/infra/retrieval/vectorindex"
)

func provideChatGPTClient(cfg *config.Config, logger *slog.Logger) *chatgpt.Client {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		logger.Warn("llm api key not set, model calls disabled")
		return nil
	}
	client, err := chatgpt.NewClientWithTimeout(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.RequestTimeout)
	if err != nil {
		logger.Error("failed to build chatgpt client, model calls disabled", "error", err)
		return nil
	}
	return client
}

func provideLLM(cfg *config.Config, client *chatgpt.Client) assistant.LLM {
	if client == nil {
		return llm.UnavailableLLM{}
	}
	return llm.NewChatGPTLLM(client, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.SafetyPolicy)
}

func provideEmbedder(cfg *config.Config, client *chatgpt.Client, logger *slog.Logger) retrieval.Embedder {
	if client == nil {
		logger.Info("using deterministic embedder", "dim", cfg.Indexing.VectorDim)
		return embedder.NewDeterministicEmbedder(cfg.Indexing.VectorDim)
	}
	return embedder.NewChatGPTEmbedder(client, cfg.LLM.EmbeddingModel, cfg.Indexing.MaxBatchTokens, logger)
}

func provideObjectStorage(cfg *config.Config, logger *slog.Logger) (storage.ObjectStorage, error) {
	return storage.FromConfig(cfg.Corpus, logger)
}

func provideQuestionStore(cfg *config.Config, source storage.ObjectStorage, logger *slog.Logger) retrieval.QuestionStore {
	return corpus.NewStore(source, corpus.Config{
		Keys:        cfg.Corpus.Keys,
		Prefix:      cfg.Corpus.Prefix,
		Concurrency: cfg.Corpus.Concurrency,
	}, logger)
}

// provideVectorIndex falls back to the in-memory index when the configured
// backend cannot be reached. The cleanup closes the postgres pool.
func provideVectorIndex(cfg *config.Config, logger *slog.Logger) (retrieval.VectorIndex, func()) {
	noop := func() {}
	switch strings.ToLower(cfg.Vector.Provider) {
	case "postgres":
		index, pool, err := newPostgresIndex(cfg)
		if err != nil {
			logger.Error("postgres vector index unavailable, using memory index", "error", err)
			return vectorindex.NewMemoryIndex(), noop
		}
		logger.Info("postgres vector index enabled", "table", cfg.Vector.Postgres.Table)
		return index, pool.Close
	case "pinecone":
		pc := cfg.Vector.Pinecone
		index, err := vectorindex.NewPineconeIndex(vectorindex.PineconeConfig{
			APIKey:     pc.APIKey,
			APIVersion: pc.APIVersion,
			Host:       pc.Host,
			Namespace:  pc.Namespace,
			Timeout:    pc.Timeout,
		}, logger)
		if err != nil {
			logger.Error("pinecone vector index unavailable, using memory index", "error", err)
			return vectorindex.NewMemoryIndex(), noop
		}
		logger.Info("pinecone vector index enabled", "host", pc.Host)
		return index, noop
	default:
		logger.Info("using memory vector index")
		return vectorindex.NewMemoryIndex(), noop
	}
}

func newPostgresIndex(cfg *config.Config) (*vectorindex.PostgresIndex, *pgxpool.Pool, error) {
	dsn := strings.TrimSpace(cfg.Vector.Postgres.DSN)
	if dsn == "" {
		return nil, nil, fmt.Errorf("vector.postgres.dsn not set")
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	if cfg.Vector.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Vector.Postgres.MaxConns
	}
	if cfg.Vector.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Vector.Postgres.MinConns
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	index, err := vectorindex.NewPostgresIndex(pool, cfg.Vector.Postgres.Table)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := index.EnsureSchema(ctx, cfg.Indexing.VectorDim); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return index, pool, nil
}

// provideJobQueue returns a nil queue when background jobs are disabled.
// The cleanup stops the valkey consumer and closes the client.
func provideJobQueue(cfg *config.Config, logger *slog.Logger) (queue.HandlerQueue, func()) {
	noop := func() {}
	if !cfg.Queue.Enabled {
		logger.Info("job queue disabled")
		return nil, noop
	}
	if strings.TrimSpace(cfg.Queue.Addr) == "" {
		logger.Info("job queue: in-process")
		return queue.NewImmediateQueue(nil), noop
	}
	opt, err := buildValkeyOptions(cfg.Queue.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, using in-process queue", "error", err)
		return queue.NewImmediateQueue(nil), noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, using in-process queue", "error", err)
		return queue.NewImmediateQueue(nil), noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, using in-process queue", "error", err)
		client.Close()
		return queue.NewImmediateQueue(nil), noop
	}
	logger.Info("job queue: valkey", "addr", cfg.Queue.Addr, "key", cfg.Queue.Key)
	q := queue.NewValkeyQueue(client, cfg.Queue.Key, logger)
	return q, func() {
		q.Close()
		client.Close()
	}
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideSearchConfig(cfg *config.Config) retrieval.Config {
	return retrieval.Config{
		TopK:         cfg.Search.TopK,
		MinScore:     cfg.Search.MinScore,
		DefaultLimit: cfg.Search.DefaultLimit,
	}
}

func provideIndexer(cfg *config.Config, emb retrieval.Embedder, index retrieval.VectorIndex, store retrieval.QuestionStore, jobs queue.HandlerQueue, logger *slog.Logger) *retrieval.Indexer {
	var jobQueue retrieval.JobQueue
	if jobs != nil {
		jobQueue = jobs
	}
	indexer := retrieval.NewIndexer(retrieval.IndexerConfig{BatchSize: cfg.Indexing.BatchSize}, emb, index, store, jobQueue, logger)
	if jobs != nil {
		jobs.SetHandler(indexer.HandleJob)
	}
	return indexer
}

func provideRouterConfig(cfg *config.Config) assistant.RouterConfig {
	return assistant.RouterConfig{
		Model:        cfg.LLM.Model,
		HistoryTurns: cfg.Assistant.HistoryTurns,
		MaxCount:     cfg.Assistant.MaxCount,
	}
}

func provideGeneratorConfig(cfg *config.Config) assistant.GeneratorConfig {
	return assistant.GeneratorConfig{
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxQuestions:   cfg.Assistant.MaxQuestions,
		FlashcardBatch: cfg.Assistant.FlashcardBatch,
		MaxFlashcards:  cfg.Assistant.MaxFlashcards,
	}
}

func provideExecutorConfig(cfg *config.Config) assistant.ExecutorConfig {
	return assistant.ExecutorConfig{
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		SearchLimit:  cfg.Assistant.SearchLimit,
		HistoryTurns: cfg.Assistant.HistoryTurns,
	}
}

func provideAssistantConfig(cfg *config.Config) assistant.Config {
	return assistant.Config{
		AllowedModels:  cfg.LLM.AllowedModels,
		RequestTimeout: cfg.LLM.RequestTimeout,
	}
}
