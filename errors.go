package prefetch

import (
	"errors"
	"fmt"
)

// Error categories surfaced through RequestError.Type.
const (
	// ErrorTypeNetwork covers transport failures: connection refused, DNS,
	// broken reads. StatusCode is always 0.
	ErrorTypeNetwork = "Network"
	// ErrorTypeTimeout covers attempts that exceeded their deadline or were
	// aborted. StatusCode is always 0.
	ErrorTypeTimeout = "Timeout"
	// ErrorTypeHTTPStatus covers non-2xx responses.
	ErrorTypeHTTPStatus = "HTTPStatus"
	// ErrorTypeInterceptor covers unrecovered interceptor chain rejections.
	ErrorTypeInterceptor = "Interceptor"
	// ErrorTypeValidation covers invalid configuration and unencodable or
	// undecodable payloads.
	ErrorTypeValidation = "Validation"
)

// RequestError is the single error shape surfaced to callers. Raw transport
// errors never escape the client; they appear as Cause.
type RequestError struct {
	Type    string
	Message string
	// StatusCode is the HTTP status for HTTPStatus errors and 0 for
	// network/timeout failures.
	StatusCode int
	Config     *RequestConfig
	Cause      error
}

// Error implements error.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error categories for errors.Is.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*RequestError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsRetryable reports whether err is worth another attempt: timeouts,
// transport failures and server-class (500-599) responses. Client-class
// (4xx) failures never retry.
func IsRetryable(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	switch reqErr.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	case ErrorTypeHTTPStatus:
		return reqErr.StatusCode >= 500 && reqErr.StatusCode <= 599
	default:
		return false
	}
}

// normalizeError coerces err into a *RequestError, filling in the config
// echo. Errors thrown by interceptor stages arrive here as plain errors.
func normalizeError(err error, cfg *RequestConfig, fallbackType string) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Config == nil {
			reqErr.Config = cfg
		}
		return reqErr
	}
	return &RequestError{
		Type:    fallbackType,
		Message: err.Error(),
		Config:  cfg,
		Cause:   err,
	}
}
