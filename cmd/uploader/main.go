// Command uploader publishes local question files to the configured corpus storage.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/yanqian/pave-study/internal/infra/config"
	"github.com/yanqian/pave-study/internal/infra/retrieval/corpus"
	"github.com/yanqian/pave-study/internal/infra/retrieval/storage"
	"github.com/yanqian/pave-study/pkg/logger"
)

type options struct {
	dir     string
	prefix  string
	prune   bool
	reindex bool
	server  string
	secret  string
}

func main() {
	var opts options
	flag.StringVar(&opts.dir, "dir", "questions", "directory containing question *.json files")
	flag.StringVar(&opts.prefix, "prefix", "", "object key prefix (defaults to corpus.prefix)")
	flag.BoolVar(&opts.prune, "prune", false, "delete remote files under the prefix that no longer exist locally")
	flag.BoolVar(&opts.reindex, "reindex", false, "ask the server to rebuild the vector index after upload")
	flag.StringVar(&opts.server, "server", "http://localhost:8080", "base URL of the running server for -reindex")
	flag.StringVar(&opts.secret, "secret", "", "index secret for -reindex (defaults to admin.secret)")
	flag.Parse()

	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if opts.prefix == "" {
		opts.prefix = cfg.Corpus.Prefix
	}
	if opts.secret == "" {
		opts.secret = cfg.Admin.Secret
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.FromConfig(cfg.Corpus, log)
	if err != nil {
		log.Error("failed to open corpus storage", "error", err)
		os.Exit(1)
	}
	if err := run(ctx, store, opts, cfg.Admin.Header, log); err != nil {
		log.Error("upload failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store storage.ObjectStorage, opts options, header string, log *slog.Logger) error {
	files, err := filepath.Glob(filepath.Join(opts.dir, "*.json"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .json files in %s", opts.dir)
	}
	sort.Strings(files)

	uploaded := make(map[string]struct{}, len(files))
	for _, file := range files {
		key, err := uploadFile(ctx, store, file, opts.prefix, log)
		if err != nil {
			return err
		}
		uploaded[key] = struct{}{}
	}

	if opts.prune {
		if err := prune(ctx, store, opts.prefix, uploaded, log); err != nil {
			return err
		}
	}
	if opts.reindex {
		return triggerReindex(ctx, opts.server, header, opts.secret, log)
	}
	return nil
}

func uploadFile(ctx context.Context, store storage.ObjectStorage, file, prefix string, log *slog.Logger) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	raws, err := corpus.DecodeDocument(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", file, err)
	}
	valid := 0
	for idx, raw := range raws {
		if _, err := corpus.ParseRecord(raw); err != nil {
			log.Warn("invalid question", "file", file, "index", idx, "error", err)
			continue
		}
		valid++
	}
	key := path.Join(prefix, filepath.Base(file))
	if _, err := store.Put(ctx, key, data, "application/json"); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	log.Info("uploaded", "key", key, "questions", len(raws), "valid", valid)
	return key, nil
}

func prune(ctx context.Context, store storage.ObjectStorage, prefix string, keep map[string]struct{}, log *slog.Logger) error {
	remote, err := store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", prefix, err)
	}
	for _, key := range remote {
		if _, ok := keep[key]; ok || !strings.HasSuffix(key, ".json") {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		log.Info("pruned", "key", key)
	}
	return nil
}

func triggerReindex(ctx context.Context, server, header, secret string, log *slog.Logger) error {
	url := strings.TrimRight(server, "/") + "/index-questions?async=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set(header, secret)
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reindex request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("reindex returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	log.Info("reindex scheduled", "status", resp.StatusCode)
	return nil
}
