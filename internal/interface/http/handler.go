package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/pave-study/internal/domain/assistant"
	"github.com/yanqian/pave-study/internal/domain/question"
	"github.com/yanqian/pave-study/internal/domain/retrieval"
	"github.com/yanqian/pave-study/internal/infra/config"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	assistantSvc assistant.Service
	searchSvc    retrieval.SearchService
	indexSvc     retrieval.IndexService
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, assistantSvc assistant.Service, searchSvc retrieval.SearchService, indexSvc retrieval.IndexService, logger *slog.Logger) *Handler {
	defaultLimit := cfg.Search.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	maxLimit := cfg.Search.MaxLimit
	if maxLimit < defaultLimit {
		maxLimit = 100
	}
	return &Handler{
		assistantSvc: assistantSvc,
		searchSvc:    searchSvc,
		indexSvc:     indexSvc,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger.With("component", "http.handler"),
	}
}

type pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
	Limit       int `json:"limit"`
}

type questionsResponse struct {
	Questions  []question.Record `json:"questions"`
	Pagination pagination        `json:"pagination"`
}

func newQuestionsResponse(page question.Page[question.Record]) questionsResponse {
	return questionsResponse{
		Questions: page.Items,
		Pagination: pagination{
			CurrentPage: page.CurrentPage,
			TotalPages:  page.TotalPages,
			TotalItems:  page.TotalItems,
			Limit:       page.Limit,
		},
	}
}

// Ask routes a chat turn through the assistant.
func (h *Handler) Ask(c *gin.Context) {
	var req assistant.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badRequest(err))
		return
	}

	resp, err := h.assistantSvc.Ask(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err, "internal_error"))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SearchQuestions runs the hybrid search.
func (h *Handler) SearchQuestions(c *gin.Context) {
	filter, err := h.parseFilter(c, true)
	if err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	page, err := h.searchSvc.Search(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, fromDomainError(err, "search_failed"))
		return
	}
	c.JSON(http.StatusOK, newQuestionsResponse(page))
}

// ListQuestions filters the corpus by metadata without embedding.
func (h *Handler) ListQuestions(c *gin.Context) {
	filter, err := h.parseFilter(c, false)
	if err != nil {
		abortWithError(c, badRequest(err))
		return
	}
	page, err := h.searchSvc.List(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, fromDomainError(err, "list_failed"))
		return
	}
	c.JSON(http.StatusOK, newQuestionsResponse(page))
}

// IndexQuestions rebuilds the vector index, inline or through the job queue.
func (h *Handler) IndexQuestions(c *gin.Context) {
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if err := h.indexSvc.Schedule(c.Request.Context()); err != nil {
			abortWithError(c, fromDomainError(err, "index_failed"))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Reindexação agendada."})
		return
	}

	result, err := h.indexSvc.ReindexAll(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err, "index_failed"))
		return
	}
	message := fmt.Sprintf("%d questões indexadas com sucesso.", result.Processed)
	if result.Skipped > 0 || result.Failed > 0 {
		message = fmt.Sprintf("%d questões indexadas, %d ignoradas, %d com falha.", result.Processed, result.Skipped, result.Failed)
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "result": result})
}

// FilterOptions lists the distinct filter values present in the corpus.
func (h *Handler) FilterOptions(c *gin.Context) {
	opts, err := h.searchSvc.FilterOptions(c.Request.Context())
	if err != nil {
		abortWithError(c, fromDomainError(err, "filter_options_failed"))
		return
	}
	c.JSON(http.StatusOK, opts)
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) parseFilter(c *gin.Context, withQuery bool) (question.SearchFilter, error) {
	filter := question.SearchFilter{
		Materia: strings.TrimSpace(c.Query("materia")),
	}
	if withQuery {
		filter.Query = strings.TrimSpace(c.Query("query"))
	}
	var err error
	if filter.Ano, err = optionalInt(c, "ano"); err != nil {
		return filter, err
	}
	if filter.Etapa, err = optionalInt(c, "etapa"); err != nil {
		return filter, err
	}
	page, err := optionalInt(c, "page")
	if err != nil {
		return filter, err
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		return filter, err
	}
	filter.Page = 1
	if page != nil && *page >= 1 {
		filter.Page = *page
	}
	filter.Limit = h.defaultLimit
	if limit != nil && *limit >= 1 {
		filter.Limit = min(*limit, h.maxLimit)
	}
	return filter, nil
}

func optionalInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &v, nil
}
