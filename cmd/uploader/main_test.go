package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/pave-study/internal/infra/retrieval/storage"
)

const sampleFile = `[{"id":"q1","materia":"Física","corpo":[{"tipo":"texto","conteudo":"2+2?"}],"alternativas":[{"letra":"A","texto":"4"},{"letra":"B","texto":"5"}],"resposta_letra":"A"}]`

func TestRunUploadsAndPrunes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fisica.json"), []byte(sampleFile), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	store := storage.NewMemoryStorage()
	ctx := context.Background()
	_, err := store.Put(ctx, "questions/old.json", []byte("[]"), "application/json")
	require.NoError(t, err)
	_, err = store.Put(ctx, "questions/readme.md", []byte("x"), "text/markdown")
	require.NoError(t, err)

	err = run(ctx, store, options{dir: dir, prefix: "questions/", prune: true}, "X-Index-Secret", discardLogger())
	require.NoError(t, err)

	keys, err := store.List(ctx, "questions/")
	require.NoError(t, err)
	require.Equal(t, []string{"questions/fisica.json", "questions/readme.md"}, keys)
}

func TestRunRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))

	err := run(context.Background(), storage.NewMemoryStorage(), options{dir: dir, prefix: "questions/"}, "X-Index-Secret", discardLogger())
	require.Error(t, err)
}

func TestRunEmptyDir(t *testing.T) {
	err := run(context.Background(), storage.NewMemoryStorage(), options{dir: t.TempDir()}, "X-Index-Secret", discardLogger())
	require.Error(t, err)
}

func TestTriggerReindex(t *testing.T) {
	var gotSecret, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("X-Index-Secret")
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	require.NoError(t, triggerReindex(context.Background(), srv.URL+"/", "X-Index-Secret", "s3cret", discardLogger()))
	require.Equal(t, "s3cret", gotSecret)
	require.Equal(t, "async=true", gotQuery)

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer denied.Close()
	require.Error(t, triggerReindex(context.Background(), denied.URL, "X-Index-Secret", "", discardLogger()))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
