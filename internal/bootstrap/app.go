package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/pave-study/internal/domain/retrieval"
	"github.com/yanqian/pave-study/internal/infra/config"
	apperrors "github.com/yanqian/pave-study/pkg/errors"
)

// App owns the HTTP server lifecycle and the startup reindex.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	indexer retrieval.IndexService
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, indexer retrieval.IndexService) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, indexer: indexer}
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	if a.cfg.Indexing.ReindexOnStart {
		go a.warmIndex(ctx)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// warmIndex embeds the corpus once so search works without a manual reindex.
func (a *App) warmIndex(ctx context.Context) {
	start := time.Now()
	result, err := a.indexer.ReindexAll(ctx)
	switch {
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		a.logger.Warn("startup reindex skipped, corpus is empty")
	case err != nil:
		a.logger.Error("startup reindex failed", "error", err)
	default:
		a.logger.Info("startup reindex finished", "processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed, "duration_ms", time.Since(start).Milliseconds())
	}
}
