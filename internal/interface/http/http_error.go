package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yanqian/pave-study/pkg/errors"
)

// HTTPError is the transport view of a failure: status plus the public error code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

type errorMapping struct {
	status int
	code   string
}

// Domain codes with a dedicated status. Anything else becomes a 500 with the
// endpoint's fallback code.
var domainErrors = map[string]errorMapping{
	apperrors.CodeInvalidInput:     {http.StatusBadRequest, "invalid_request"},
	apperrors.CodeLLM:              {http.StatusServiceUnavailable, "llm_unavailable"},
	apperrors.CodeNotFound:         {http.StatusNotFound, "empty_corpus"},
	apperrors.CodeForbidden:        {http.StatusForbidden, "forbidden"},
	apperrors.CodeQueueUnavailable: {http.StatusServiceUnavailable, "queue_unavailable"},
}

func fromDomainError(err error, fallbackCode string) *HTTPError {
	mapping := errorMapping{status: http.StatusInternalServerError, code: fallbackCode}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if m, ok := domainErrors[appErr.Code]; ok {
			mapping = m
		}
	}
	return NewHTTPError(mapping.status, mapping.code, errMessage(err), err)
}

func badRequest(err error) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
