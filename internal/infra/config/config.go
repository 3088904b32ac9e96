package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Assistant AssistantConfig `yaml:"assistant"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Vector    VectorConfig    `yaml:"vector"`
	Queue     QueueConfig     `yaml:"queue"`
	Admin     AdminConfig     `yaml:"admin"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	CORSOrigins  []string        `yaml:"corsOrigins"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	Retry        RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains ChatGPT/OpenAI settings.
type LLMConfig struct {
	APIKey         string        `yaml:"apiKey"`
	BaseURL        string        `yaml:"baseUrl"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	Temperature    float32       `yaml:"temperature"`
	SafetyPolicy   string        `yaml:"safetyPolicy"`
	AllowedModels  []string      `yaml:"allowedModels"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// SearchConfig holds the hybrid search policy constants.
type SearchConfig struct {
	TopK         int     `yaml:"topK"`
	MinScore     float64 `yaml:"minScore"`
	DefaultLimit int     `yaml:"defaultLimit"`
	MaxLimit     int     `yaml:"maxLimit"`
}

// IndexingConfig controls the batch embedding job.
type IndexingConfig struct {
	BatchSize      int  `yaml:"batchSize"`
	MaxBatchTokens int  `yaml:"maxBatchTokens"`
	VectorDim      int  `yaml:"vectorDim"`
	ReindexOnStart bool `yaml:"reindexOnStart"`
}

// AssistantConfig tunes routing and generation.
type AssistantConfig struct {
	HistoryTurns   int `yaml:"historyTurns"`
	MaxCount       int `yaml:"maxCount"`
	SearchLimit    int `yaml:"searchLimit"`
	MaxQuestions   int `yaml:"maxQuestions"`
	FlashcardBatch int `yaml:"flashcardBatch"`
	MaxFlashcards  int `yaml:"maxFlashcards"`
}

// CorpusConfig locates the question source documents.
type CorpusConfig struct {
	Backend     string   `yaml:"backend"`
	Dir         string   `yaml:"dir"`
	Prefix      string   `yaml:"prefix"`
	Keys        []string `yaml:"keys"`
	Concurrency int      `yaml:"concurrency"`
	R2          R2Config `yaml:"r2"`
}

// R2Config holds S3-compatible object storage credentials.
type R2Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// VectorConfig selects and configures the vector index.
type VectorConfig struct {
	Provider string         `yaml:"provider"`
	Postgres PostgresConfig `yaml:"postgres"`
	Pinecone PineconeConfig `yaml:"pinecone"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// PineconeConfig targets a Pinecone index data plane.
type PineconeConfig struct {
	APIKey     string        `yaml:"apiKey"`
	APIVersion string        `yaml:"apiVersion"`
	Host       string        `yaml:"host"`
	Namespace  string        `yaml:"namespace"`
	Timeout    time.Duration `yaml:"timeout"`
}

// QueueConfig contains connection information for the job queue.
type QueueConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Key     string `yaml:"key"`
}

// AdminConfig protects privileged endpoints.
type AdminConfig struct {
	Header     string `yaml:"header"`
	Secret     string `yaml:"secret"`
	SecretHash string `yaml:"secretHash"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	if v := os.Getenv("HTTP_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORSOrigins = splitList(v)
	}
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setBool(&cfg.HTTP.Retry.Enabled, "HTTP_RETRY_ENABLED")
	setInt(&cfg.HTTP.Retry.MaxAttempts, "HTTP_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.HTTP.Retry.BaseBackoff, "HTTP_RETRY_BASE_BACKOFF")

	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	setString(&cfg.LLM.SafetyPolicy, "LLM_SAFETY_POLICY")
	if v := os.Getenv("LLM_ALLOWED_MODELS"); v != "" {
		cfg.LLM.AllowedModels = splitList(v)
	}
	setDuration(&cfg.LLM.RequestTimeout, "LLM_REQUEST_TIMEOUT")

	setInt(&cfg.Search.TopK, "SEARCH_TOP_K")
	if v := os.Getenv("SEARCH_MIN_SCORE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.MinScore = parsed
		}
	}
	setInt(&cfg.Search.DefaultLimit, "SEARCH_DEFAULT_LIMIT")
	setInt(&cfg.Search.MaxLimit, "SEARCH_MAX_LIMIT")

	setInt(&cfg.Indexing.BatchSize, "INDEX_BATCH_SIZE")
	setInt(&cfg.Indexing.MaxBatchTokens, "INDEX_MAX_BATCH_TOKENS")
	setInt(&cfg.Indexing.VectorDim, "INDEX_VECTOR_DIM")
	setBool(&cfg.Indexing.ReindexOnStart, "INDEX_ON_START")

	setInt(&cfg.Assistant.HistoryTurns, "ASSISTANT_HISTORY_TURNS")
	setInt(&cfg.Assistant.SearchLimit, "ASSISTANT_SEARCH_LIMIT")
	setInt(&cfg.Assistant.FlashcardBatch, "ASSISTANT_FLASHCARD_BATCH")

	setString(&cfg.Corpus.Backend, "CORPUS_BACKEND")
	setString(&cfg.Corpus.Dir, "CORPUS_DIR")
	setString(&cfg.Corpus.Prefix, "CORPUS_PREFIX")
	if v := os.Getenv("CORPUS_KEYS"); v != "" {
		cfg.Corpus.Keys = splitList(v)
	}
	setInt(&cfg.Corpus.Concurrency, "CORPUS_CONCURRENCY")
	setString(&cfg.Corpus.R2.Endpoint, "R2_ENDPOINT")
	setString(&cfg.Corpus.R2.AccessKey, "R2_ACCESS_KEY")
	setString(&cfg.Corpus.R2.SecretKey, "R2_SECRET_KEY")
	setString(&cfg.Corpus.R2.Bucket, "R2_BUCKET")
	setString(&cfg.Corpus.R2.Region, "R2_REGION")

	setString(&cfg.Vector.Provider, "VECTOR_PROVIDER")
	setString(&cfg.Vector.Postgres.DSN, "VECTOR_POSTGRES_DSN")
	setString(&cfg.Vector.Postgres.Table, "VECTOR_POSTGRES_TABLE")
	if v := os.Getenv("VECTOR_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Vector.Postgres.MaxConns = int32(parsed)
		}
	}
	setString(&cfg.Vector.Pinecone.APIKey, "PINECONE_API_KEY")
	setString(&cfg.Vector.Pinecone.Host, "PINECONE_INDEX_HOST")
	setString(&cfg.Vector.Pinecone.Namespace, "PINECONE_NAMESPACE")

	setBool(&cfg.Queue.Enabled, "QUEUE_ENABLED")
	setString(&cfg.Queue.Addr, "QUEUE_ADDR")
	setString(&cfg.Queue.Key, "QUEUE_KEY")

	setString(&cfg.Admin.Header, "ADMIN_HEADER")
	setString(&cfg.Admin.Secret, "ADMIN_SECRET")
	setString(&cfg.Admin.SecretHash, "ADMIN_SECRET_HASH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 2,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/index-questions",
				},
			},
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.3,
			SafetyPolicy:   "Recuse conteúdo de ódio, assédio, sexual explícito ou perigoso. Mantenha o tom adequado para estudantes do ensino médio.",
			RequestTimeout: 45 * time.Second,
		},
		Search: SearchConfig{
			TopK:         40,
			MinScore:     0.5,
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Indexing: IndexingConfig{
			BatchSize:      50,
			MaxBatchTokens: 200_000,
			VectorDim:      1536,
			ReindexOnStart: true,
		},
		Assistant: AssistantConfig{
			HistoryTurns:   6,
			MaxCount:       20,
			SearchLimit:    5,
			MaxQuestions:   5,
			FlashcardBatch: 5,
			MaxFlashcards:  20,
		},
		Corpus: CorpusConfig{
			Backend:     "local",
			Dir:         "data",
			Prefix:      "questions/",
			Concurrency: 4,
		},
		Vector: VectorConfig{
			Provider: "memory",
			Postgres: PostgresConfig{
				Table:    "question_vectors",
				MaxConns: 4,
			},
			Pinecone: PineconeConfig{
				APIVersion: "2025-10",
				Namespace:  "questions",
				Timeout:    30 * time.Second,
			},
		},
		Queue: QueueConfig{
			Key: "pave:jobs",
		},
		Admin: AdminConfig{
			Header: "X-Index-Secret",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if c.LLM.RequestTimeout < 0 {
		return errors.New("llm.requestTimeout cannot be negative")
	}
	if c.Search.TopK <= 0 {
		return errors.New("search.topK must be positive")
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return errors.New("search.minScore must be within [0,1]")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return errors.New("search.defaultLimit must be positive and not exceed search.maxLimit")
	}
	if c.Indexing.BatchSize <= 0 {
		return errors.New("indexing.batchSize must be positive")
	}
	if c.Assistant.HistoryTurns < 0 {
		return errors.New("assistant.historyTurns cannot be negative")
	}
	if c.Assistant.MaxQuestions <= 0 || c.Assistant.FlashcardBatch <= 0 {
		return errors.New("assistant.maxQuestions and assistant.flashcardBatch must be positive")
	}
	switch c.Corpus.Backend {
	case "local":
		if strings.TrimSpace(c.Corpus.Dir) == "" {
			return errors.New("corpus.dir cannot be empty for the local backend")
		}
	case "r2":
		if strings.TrimSpace(c.Corpus.R2.Endpoint) == "" || strings.TrimSpace(c.Corpus.R2.Bucket) == "" {
			return errors.New("corpus.r2.endpoint and corpus.r2.bucket are required for the r2 backend")
		}
	case "memory":
	default:
		return fmt.Errorf("corpus.backend %q is not supported", c.Corpus.Backend)
	}
	switch c.Vector.Provider {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Vector.Postgres.DSN) == "" {
			return errors.New("vector.postgres.dsn cannot be empty for the postgres provider")
		}
	case "pinecone":
		if strings.TrimSpace(c.Vector.Pinecone.APIKey) == "" || strings.TrimSpace(c.Vector.Pinecone.Host) == "" {
			return errors.New("vector.pinecone.apiKey and vector.pinecone.host are required for the pinecone provider")
		}
	default:
		return fmt.Errorf("vector.provider %q is not supported", c.Vector.Provider)
	}
	if c.Queue.Enabled && strings.TrimSpace(c.Queue.Addr) == "" {
		return errors.New("queue.addr cannot be empty when the queue is enabled")
	}
	if strings.TrimSpace(c.Admin.Header) == "" {
		return errors.New("admin.header cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	return nil
}
