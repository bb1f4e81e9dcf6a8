package agent

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RetryClass indicates whether an error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"
	RetryClassNonRetryable RetryClass = "non_retryable"
)

// ProviderError wraps a provider failure with classification metadata.
type ProviderError struct {
	Err        error
	Class      RetryClass
	HTTPStatus int
	RetryAfter string
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("provider error: %s", e.Class)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapProviderError classifies a provider failure. HTTP 5xx, 429 and network
// faults are retryable; other 4xx (auth, quota, bad request) are not.
func WrapProviderError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	return &ProviderError{
		Err:        err,
		Class:      classifyProviderError(err, httpStatus),
		HTTPStatus: httpStatus,
		RetryAfter: retryAfter,
	}
}

func classifyProviderError(err error, httpStatus int) RetryClass {
	switch {
	case httpStatus == http.StatusTooManyRequests:
		return RetryClassRetryable
	case httpStatus >= 500:
		return RetryClassRetryable
	case httpStatus >= 400:
		return RetryClassNonRetryable
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "429"),
		strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "too many requests"):
		return RetryClassRetryable
	case strings.Contains(errStr, "500"),
		strings.Contains(errStr, "502"),
		strings.Contains(errStr, "503"),
		strings.Contains(errStr, "504"),
		strings.Contains(errStr, "internal server error"),
		strings.Contains(errStr, "bad gateway"),
		strings.Contains(errStr, "service unavailable"),
		strings.Contains(errStr, "gateway timeout"):
		return RetryClassRetryable
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "broken pipe"),
		strings.Contains(errStr, "temporary failure"):
		return RetryClassRetryable
	case strings.Contains(errStr, "401"),
		strings.Contains(errStr, "403"),
		strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "invalid api key"):
		return RetryClassNonRetryable
	}
	return RetryClassNonRetryable
}

// ClassifyError returns the retry class of any error, honouring an embedded
// ProviderError classification.
func ClassifyError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return classifyProviderError(err, 0)
}

// RetryAfterHint extracts a server-requested delay from the error, or 0.
func RetryAfterHint(err error) time.Duration {
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.RetryAfter == "" {
		return 0
	}
	var seconds int
	if _, scanErr := fmt.Sscanf(pe.RetryAfter, "%d", &seconds); scanErr == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, parseErr := time.Parse(time.RFC1123, pe.RetryAfter); parseErr == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// RetryExhaustedError reports that every retry attempt failed.
type RetryExhaustedError struct {
	Err      error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// ToolValidationError reports tool arguments that failed schema validation.
type ToolValidationError struct {
	ToolName string
	Problems []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool %s validation failed: %s", e.ToolName, strings.Join(e.Problems, "; "))
}
