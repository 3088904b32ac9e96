package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/pave-study/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.CORSOrigins),
		errorHandlingMiddleware(handler.logger),
	)
	router.GET("/healthz", handler.Healthz)

	limited := rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger)
	admin := adminMiddleware(cfg.Admin, handler.logger)
	for _, group := range []*gin.RouterGroup{router.Group("/"), router.Group("/api")} {
		group.POST("/ask", limited, handler.Ask)
		group.GET("/search-questions", limited, handler.SearchQuestions)
		group.GET("/questions", limited, handler.ListQuestions)
		group.GET("/get-filter-options", handler.FilterOptions)
		group.POST("/index-questions", admin, handler.IndexQuestions)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
