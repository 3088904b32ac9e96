package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yanqian/pave-study/internal/domain/assistant"
	"github.com/yanqian/pave-study/internal/domain/question"
	"github.com/yanqian/pave-study/internal/domain/retrieval"
	"github.com/yanqian/pave-study/internal/infra/config"
	apperrors "github.com/yanqian/pave-study/pkg/errors"
)

func TestRouter_AskSuccess(t *testing.T) {
	commentary := "Olá!"
	svc := &stubAssistant{askFn: func(_ context.Context, req assistant.AskRequest) (assistant.ResponsePayload, error) {
		require.Len(t, req.History, 1)
		require.Equal(t, "oi", req.History[0].Text())
		require.Equal(t, "gpt-4o-mini", req.ModelName)
		return assistant.ResponsePayload{Commentary: &commentary, Questions: []question.Record{}, Flashcards: []assistant.Flashcard{}}, nil
	}}
	deps := newTestDeps()
	deps.assistant = svc

	rec := performRequest(http.MethodPost, "/ask", `{"history":[{"role":"user","parts":[{"text":"oi"}]}],"modelName":"gpt-4o-mini"}`, nil, newRouterUnderTest(t, deps))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"commentary":"Olá!","questions":[],"flashcards":[]}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRouter_AskErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "malformed json", body: `{"history":"x"}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "invalid input", body: `{"history":[]}`, err: apperrors.Wrap(apperrors.CodeInvalidInput, "history cannot be empty", nil), status: http.StatusBadRequest, code: "invalid_request"},
		{name: "llm failure", body: `{"history":[]}`, err: apperrors.Wrap(apperrors.CodeLLM, "router unavailable", errors.New("timeout")), status: http.StatusServiceUnavailable, code: "llm_unavailable"},
		{name: "unexpected", body: `{"history":[]}`, err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.assistant = &stubAssistant{askFn: func(context.Context, assistant.AskRequest) (assistant.ResponsePayload, error) {
				return assistant.ResponsePayload{}, tc.err
			}}
			rec := performRequest(http.MethodPost, "/ask", tc.body, nil, newRouterUnderTest(t, deps))
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.code, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
		})
	}
}

func TestRouter_SearchPaginatesSubject(t *testing.T) {
	records := make([]question.Record, 0, 20)
	for i := 0; i < 15; i++ {
		records = append(records, testRecord("bio", i, "Biologia"))
	}
	for i := 0; i < 5; i++ {
		records = append(records, testRecord("fis", i, "Física"))
	}
	deps := newTestDeps()
	deps.search = retrieval.NewEngine(retrieval.Config{}, nil, nil, staticStore(records), newTestLogger())

	rec := performRequest(http.MethodGet, "/search-questions?materia=Biologia&page=2&limit=10", "", nil, newRouterUnderTest(t, deps))
	require.Equal(t, http.StatusOK, rec.Code)

	var body questionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Questions, 5)
	require.Equal(t, pagination{CurrentPage: 2, TotalPages: 2, TotalItems: 15, Limit: 10}, body.Pagination)
}

func TestRouter_SearchHugePageReturnsEmptyItems(t *testing.T) {
	records := make([]question.Record, 0, 3)
	for i := 0; i < 3; i++ {
		records = append(records, testRecord("bio", i, "Biologia"))
	}
	deps := newTestDeps()
	deps.search = retrieval.NewEngine(retrieval.Config{}, nil, nil, staticStore(records), newTestLogger())

	rec := performRequest(http.MethodGet, "/search-questions?materia=Biologia&page=9223372036854775807&limit=10", "", nil, newRouterUnderTest(t, deps))
	require.Equal(t, http.StatusOK, rec.Code)

	var body questionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Questions)
	require.Equal(t, 1, body.Pagination.TotalPages)
	require.Equal(t, 3, body.Pagination.TotalItems)
}

func TestRouter_SearchParsesQueryParameters(t *testing.T) {
	var got question.SearchFilter
	deps := newTestDeps()
	deps.search = &stubSearch{searchFn: func(_ context.Context, f question.SearchFilter) (question.Page[question.Record], error) {
		got = f
		return question.Paginate([]question.Record{}, f.Page, f.Limit), nil
	}}
	server := newRouterUnderTest(t, deps)

	rec := performRequest(http.MethodGet, "/api/search-questions?query=+mitose+&materia=Biologia&ano=2021&etapa=3&page=0&limit=500", "", nil, server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "mitose", got.Query)
	require.Equal(t, "Biologia", got.Materia)
	require.Equal(t, 2021, *got.Ano)
	require.Equal(t, 3, *got.Etapa)
	require.Equal(t, 1, got.Page)
	require.Equal(t, 100, got.Limit)
	require.JSONEq(t, `{"questions":[],"pagination":{"currentPage":1,"totalPages":1,"totalItems":0,"limit":100}}`, rec.Body.String())

	rec = performRequest(http.MethodGet, "/search-questions?ano=dois-mil", "", nil, server)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_SearchUpstreamFailure(t *testing.T) {
	deps := newTestDeps()
	deps.search = &stubSearch{searchFn: func(context.Context, question.SearchFilter) (question.Page[question.Record], error) {
		return question.Page[question.Record]{}, apperrors.Wrap(apperrors.CodeEmbedding, "failed to embed query", errors.New("quota"))
	}}

	rec := performRequest(http.MethodGet, "/search-questions?query=x", "", nil, newRouterUnderTest(t, deps))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "search_failed", body["error"]["code"])
	require.Contains(t, body["error"]["message"], "quota")
}

func TestRouter_ListQuestionsIgnoresQuery(t *testing.T) {
	var got question.SearchFilter
	deps := newTestDeps()
	deps.search = &stubSearch{listFn: func(_ context.Context, f question.SearchFilter) (question.Page[question.Record], error) {
		got = f
		return question.Paginate([]question.Record{{ID: "q1"}}, f.Page, f.Limit), nil
	}}

	rec := performRequest(http.MethodGet, "/questions?query=ignored&materia=Química", "", nil, newRouterUnderTest(t, deps))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, got.Query)
	require.Equal(t, "Química", got.Materia)
	require.Equal(t, 10, got.Limit)
}

func TestRouter_IndexQuestionsRequiresSecret(t *testing.T) {
	deps := newTestDeps()
	server := newRouterUnderTest(t, deps)

	rec := performRequest(http.MethodPost, "/index-questions", "", nil, server)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])

	rec = performRequest(http.MethodPost, "/index-questions", "", map[string]string{"X-Index-Secret": "wrong"}, server)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, deps.index.reindexCalls)
}

func TestRouter_IndexQuestionsSync(t *testing.T) {
	deps := newTestDeps()
	deps.index.reindexFn = func(context.Context) (retrieval.ReindexResult, error) {
		return retrieval.ReindexResult{Processed: 12, Batches: 1}, nil
	}

	rec := performRequest(http.MethodPost, "/index-questions", "", map[string]string{"X-Index-Secret": "s3cret"}, newRouterUnderTest(t, deps))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Message string                  `json:"message"`
		Result  retrieval.ReindexResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "12 questões indexadas com sucesso.", body.Message)
	require.Equal(t, 12, body.Result.Processed)
}

func TestRouter_IndexQuestionsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "empty corpus", err: apperrors.Wrap(apperrors.CodeNotFound, "corpus is empty", nil), status: http.StatusNotFound, code: "empty_corpus"},
		{name: "fatal upsert", err: apperrors.Wrap(apperrors.CodeIndex, "upsert failed", errors.New("down")), status: http.StatusInternalServerError, code: "index_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.index.reindexFn = func(context.Context) (retrieval.ReindexResult, error) {
				return retrieval.ReindexResult{}, tc.err
			}
			rec := performRequest(http.MethodPost, "/index-questions", "", map[string]string{"X-Index-Secret": "s3cret"}, newRouterUnderTest(t, deps))
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.code, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
		})
	}
}

func TestRouter_IndexQuestionsAsync(t *testing.T) {
	deps := newTestDeps()
	server := newRouterUnderTest(t, deps)

	rec := performRequest(http.MethodPost, "/index-questions?async=true", "", map[string]string{"X-Index-Secret": "s3cret"}, server)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, deps.index.scheduleCalls)
	require.Zero(t, deps.index.reindexCalls)

	deps.index.scheduleFn = func(context.Context) error {
		return apperrors.Wrap(apperrors.CodeQueueUnavailable, "job queue not configured", nil)
	}
	rec = performRequest(http.MethodPost, "/index-questions?async=true", "", map[string]string{"X-Index-Secret": "s3cret"}, server)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_IndexQuestionsAcceptsBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	require.NoError(t, err)
	deps := newTestDeps()
	cfg := newTestConfig()
	cfg.Admin = config.AdminConfig{Header: "X-Admin", SecretHash: string(hash)}

	server := NewRouter(cfg, NewHandler(cfg, deps.assistant, deps.search, deps.index, newTestLogger()))
	rec := performRequest(http.MethodPost, "/index-questions", "", map[string]string{"X-Admin": "hashed-secret"}, server)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(http.MethodPost, "/index-questions", "", map[string]string{"X-Admin": "nope"}, server)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_FilterOptionsAndHealth(t *testing.T) {
	deps := newTestDeps()
	deps.search = &stubSearch{optionsFn: func(context.Context) (retrieval.FilterOptions, error) {
		return retrieval.FilterOptions{Anos: []int{2022, 2021}, Materias: []string{"Biologia"}, Etapas: []int{1}}, nil
	}}
	server := newRouterUnderTest(t, deps)

	rec := performRequest(http.MethodGet, "/get-filter-options", "", nil, server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"anos":[2022,2021],"materias":["Biologia"],"etapas":[1]}`, rec.Body.String())

	rec = performRequest(http.MethodGet, "/healthz", "", nil, server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWithRetryRetriesOnlyGet(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	wrapped := withRetry(handler, config.RetryConfig{Enabled: true, MaxAttempts: 2}, newTestLogger())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/questions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.Equal(t, 2, calls)

	calls = 0
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", bytes.NewBufferString(`{}`)))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, 1, calls)
}

func TestWithRetryDoesNotReplayDomainFailures(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	wrapped := withRetry(handler, config.RetryConfig{Enabled: true, MaxAttempts: 3}, newTestLogger())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search-questions?query=x", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, 1, calls)
}

func TestFromDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "mapped code", err: apperrors.Wrap(apperrors.CodeForbidden, "nope", nil), status: http.StatusForbidden, code: "forbidden"},
		{name: "unmapped code", err: apperrors.Wrap(apperrors.CodeStorage, "read failed", errors.New("eof")), status: http.StatusInternalServerError, code: "list_failed"},
		{name: "plain error", err: errors.New("boom"), status: http.StatusInternalServerError, code: "list_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			httpErr := fromDomainError(tc.err, "list_failed")
			require.Equal(t, tc.status, httpErr.Status)
			require.Equal(t, tc.code, httpErr.Code)
			require.Equal(t, tc.err.Error(), httpErr.Message)
		})
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := newIPRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 2})
	now := time.Unix(1_700_000_000, 0)

	_, ok := limiter.allow("10.0.0.1", now)
	require.True(t, ok)
	_, ok = limiter.allow("10.0.0.1", now)
	require.True(t, ok)
	wait, ok := limiter.allow("10.0.0.1", now)
	require.False(t, ok)
	require.InDelta(t, float64(time.Second), float64(wait), float64(time.Millisecond))

	_, ok = limiter.allow("10.0.0.2", now)
	require.True(t, ok)
	_, ok = limiter.allow("10.0.0.1", now.Add(2*time.Second))
	require.True(t, ok)
}

func TestRouter_EchoesRequestID(t *testing.T) {
	rec := performRequest(http.MethodGet, "/healthz", "", map[string]string{"X-Request-ID": "req-42"}, newRouterUnderTest(t, newTestDeps()))
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = performRequest(http.MethodGet, "/healthz", "", nil, newRouterUnderTest(t, newTestDeps()))
	require.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestResolveOrigin(t *testing.T) {
	require.Equal(t, "*", resolveOrigin("https://a.dev", nil))
	require.Equal(t, "https://b.dev", resolveOrigin("https://b.dev", []string{"https://a.dev", "https://b.dev"}))
	require.Equal(t, "https://a.dev", resolveOrigin("https://evil.dev", []string{"https://a.dev"}))
}

func performRequest(method, path, body string, headers map[string]string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

type testDeps struct {
	assistant assistant.Service
	search    retrieval.SearchService
	index     *stubIndexer
}

func newTestDeps() *testDeps {
	return &testDeps{
		assistant: &stubAssistant{},
		search:    &stubSearch{},
		index:     &stubIndexer{},
	}
}

func newTestConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Search: config.SearchConfig{DefaultLimit: 10, MaxLimit: 100},
		Admin:  config.AdminConfig{Header: "X-Index-Secret", Secret: "s3cret"},
	}
}

func newRouterUnderTest(t *testing.T, deps *testDeps) *http.Server {
	t.Helper()
	cfg := newTestConfig()
	handler := NewHandler(cfg, deps.assistant, deps.search, deps.index, newTestLogger())
	return NewRouter(cfg, handler)
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func testRecord(prefix string, i int, materia string) question.Record {
	return question.Record{
		ID:            prefix + "-" + string(rune('a'+i)),
		Materia:       materia,
		Alternativas:  []question.Alternative{{Letra: "A", Texto: "1"}, {Letra: "B", Texto: "2"}},
		RespostaLetra: "A",
	}
}

type staticStore []question.Record

func (s staticStore) All(context.Context) ([]question.Record, error) {
	return s, nil
}

type stubAssistant struct {
	askFn func(ctx context.Context, req assistant.AskRequest) (assistant.ResponsePayload, error)
}

func (s *stubAssistant) Ask(ctx context.Context, req assistant.AskRequest) (assistant.ResponsePayload, error) {
	if s.askFn != nil {
		return s.askFn(ctx, req)
	}
	return assistant.ResponsePayload{}, nil
}

type stubSearch struct {
	searchFn  func(ctx context.Context, f question.SearchFilter) (question.Page[question.Record], error)
	listFn    func(ctx context.Context, f question.SearchFilter) (question.Page[question.Record], error)
	optionsFn func(ctx context.Context) (retrieval.FilterOptions, error)
}

func (s *stubSearch) Search(ctx context.Context, f question.SearchFilter) (question.Page[question.Record], error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, f)
	}
	return question.Paginate([]question.Record{}, f.Page, f.Limit), nil
}

func (s *stubSearch) List(ctx context.Context, f question.SearchFilter) (question.Page[question.Record], error) {
	if s.listFn != nil {
		return s.listFn(ctx, f)
	}
	return question.Paginate([]question.Record{}, f.Page, f.Limit), nil
}

func (s *stubSearch) FilterOptions(ctx context.Context) (retrieval.FilterOptions, error) {
	if s.optionsFn != nil {
		return s.optionsFn(ctx)
	}
	return retrieval.FilterOptions{Anos: []int{}, Materias: []string{}, Etapas: []int{}}, nil
}

type stubIndexer struct {
	reindexFn     func(ctx context.Context) (retrieval.ReindexResult, error)
	scheduleFn    func(ctx context.Context) error
	reindexCalls  int
	scheduleCalls int
}

func (s *stubIndexer) ReindexAll(ctx context.Context) (retrieval.ReindexResult, error) {
	s.reindexCalls++
	if s.reindexFn != nil {
		return s.reindexFn(ctx)
	}
	return retrieval.ReindexResult{}, nil
}

func (s *stubIndexer) Schedule(ctx context.Context) error {
	s.scheduleCalls++
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx)
	}
	return nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}
