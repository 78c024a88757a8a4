package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrInvalidAdapter is returned when an explicit adapter lacks an identifier
// or a constructor.
var ErrInvalidAdapter = errors.New("adapter must provide an identifier and a constructor")

// ProviderNotFoundError is returned when no route matches the model.
type ProviderNotFoundError struct {
	Model string
}

func (e *ProviderNotFoundError) Error() string {
	return fmt.Sprintf("No provider found for model %s", e.Model)
}

// AdapterDisabledError is returned when the resolved adapter is not enabled.
type AdapterDisabledError struct {
	Provider ProviderID
}

func (e *AdapterDisabledError) Error() string {
	return fmt.Sprintf("Provider %s is disabled. Enable it in configuration first.", e.Provider)
}

// APIKeyNotFoundError is returned when the adapter has no credential.
type APIKeyNotFoundError struct {
	Provider ProviderID
	EnvKey   string
}

func (e *APIKeyNotFoundError) Error() string {
	return fmt.Sprintf("API key not found. Make sure to set %s environment variable.", e.EnvKey)
}

// APIError is returned in strict mode when an invocation fails for good.
// Message is the adapter-normalized text.
type APIError struct {
	Provider ProviderID
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// TransientError marks a failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Retryable reports true.
func (e *TransientError) Retryable() bool {
	return true
}

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsRetryable reports whether any error in err's chain declares itself
// retryable.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}

// RetryableStatus reports whether an HTTP status code is transient.
func RetryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code >= http.StatusInternalServerError:
		return true
	}
	return false
}

// IsTransportFailure reports whether err looks like a connection-level
// failure rather than a response from the vendor.
func IsTransportFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
