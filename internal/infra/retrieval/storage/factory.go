package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yanqian/pave-study/internal/infra/config"
)

// FromConfig builds the object storage selected by corpus.backend.
func FromConfig(cfg config.CorpusConfig, logger *slog.Logger) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "r2":
		r2 := cfg.R2
		store, err := NewR2Storage(r2.Endpoint, r2.AccessKey, r2.SecretKey, r2.Bucket, r2.Region, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("corpus storage: r2", "bucket", r2.Bucket)
		return store, nil
	case "memory":
		logger.Info("corpus storage: memory")
		return NewMemoryStorage(), nil
	case "", "local":
		logger.Info("corpus storage: local", "dir", cfg.Dir)
		return NewLocalStorage(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown corpus backend %q", cfg.Backend)
	}
}
