package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/yanqian/pave-study/pkg/errors"
)

// Service answers chat requests through the router and executor.
type Service interface {
	Ask(ctx context.Context, req AskRequest) (ResponsePayload, error)
}

// Classifier decides the intent of the latest message.
type Classifier interface {
	Classify(ctx context.Context, history []HistoryMessage, latest string) (RouterDecision, error)
}

// Dispatcher runs a decision.
type Dispatcher interface {
	Execute(ctx context.Context, decision RouterDecision, userQuery string, history []HistoryMessage) ResponsePayload
}

// Config holds request level policy.
type Config struct {
	AllowedModels  []string
	RequestTimeout time.Duration
}

type service struct {
	cfg      Config
	router   Classifier
	executor Dispatcher
	logger   *slog.Logger
}

// NewService is a wire provider for the assistant domain.
func NewService(cfg Config, router Classifier, executor Dispatcher, logger *slog.Logger) Service {
	return &service{cfg: cfg, router: router, executor: executor, logger: logger.With("component", "assistant.service")}
}

func (s *service) Ask(ctx context.Context, req AskRequest) (ResponsePayload, error) {
	if len(req.History) == 0 {
		return ResponsePayload{}, apperrors.Wrap(apperrors.CodeInvalidInput, "history cannot be empty", nil)
	}
	last := req.History[len(req.History)-1]
	latest := last.Text()
	if last.Role != RoleUser || latest == "" {
		return ResponsePayload{}, apperrors.Wrap(apperrors.CodeInvalidInput, "last message must be a user message with text", nil)
	}
	model := strings.TrimSpace(req.ModelName)
	if model != "" && !s.modelAllowed(model) {
		return ResponsePayload{}, apperrors.Wrap(apperrors.CodeInvalidInput, "model "+model+" is not allowed", nil)
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	ctx = WithModel(ctx, model)

	decision, err := s.router.Classify(ctx, req.History[:len(req.History)-1], latest)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return ResponsePayload{}, err
		}
		return ResponsePayload{}, apperrors.Wrap(apperrors.CodeLLM, "intent classification failed", err)
	}
	payload := s.executor.Execute(ctx, decision, latest, req.History)
	s.logger.Info("ask handled", "intent", decision.Intent, "questions", len(payload.Questions), "flashcards", len(payload.Flashcards))
	return payload, nil
}

func (s *service) modelAllowed(model string) bool {
	if len(s.cfg.AllowedModels) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedModels {
		if strings.EqualFold(strings.TrimSpace(allowed), model) {
			return true
		}
	}
	return false
}
