package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType indicates which configuration field most likely caused the error.
type ErrorType string

const (
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// ErrNotConfigured is returned by every call when no API key is set.
var ErrNotConfigured = errors.New("LLM API key is not configured")

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int    // HTTP status code if known
	Model      string // Model name if known
	Endpoint   string // Endpoint URL if known; only the host is printed
}

func (e *Error) Error() string {
	parts := []string{string(e.Type)}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Endpoint != "" {
		if u, err := url.Parse(e.Endpoint); err == nil && u.Host != "" {
			parts = append(parts, "endpoint="+u.Host)
		}
	}
	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable lets the retry package decide without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// statusCode pulls the HTTP status out of the provider SDK error types.
func statusCode(err error) int {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return oaiAPI.HTTPStatusCode
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}
	var antReq *anthropic.RequestError
	if errors.As(err, &antReq) {
		return antReq.StatusCode
	}
	return 0
}

// ClassifyError categorizes an error and returns a structured Error.
// Typed status codes from the SDKs win; message matching covers the rest.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	return classify(err, statusCode(err))
}

func classify(err error, code int) *Error {
	with := func(t ErrorType, msg string, retryable bool) *Error {
		e := NewError(t, msg, retryable, err)
		e.StatusCode = code
		return e
	}

	if errors.Is(err, ErrNotConfigured) {
		return with(ErrorTypeAuth, "not configured", false)
	}
	if errors.Is(err, context.Canceled) {
		return with(ErrorTypeUnknown, "request cancelled", false)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return with(ErrorTypeEndpoint, "request timeout", true)
	}

	switch {
	case code == 401 || code == 403:
		return with(ErrorTypeAuth, "authentication failed", false)
	case code == 404:
		if strings.Contains(strings.ToLower(err.Error()), "model") {
			return with(ErrorTypeModel, "model not found", false)
		}
		return with(ErrorTypeEndpoint, "endpoint not found", false)
	case code == 429:
		return with(ErrorTypeUnknown, "rate limited", true)
	case code >= 500:
		return with(ErrorTypeEndpoint, "server error", true)
	case code >= 400:
		return with(ErrorTypeUnknown, "bad request", false)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "invalid x-api-key"):
		return with(ErrorTypeAuth, "authentication failed", false)
	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return with(ErrorTypeModel, "model not found", false)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return with(ErrorTypeEndpoint, "connection failed", true)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return with(ErrorTypeEndpoint, "request timeout", true)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "overloaded"):
		return with(ErrorTypeUnknown, "rate limited", true)
	}
	return with(ErrorTypeUnknown, "llm error", false)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
