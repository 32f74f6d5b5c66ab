// Package errs defines the error taxonomy shared by the REST pipeline, the order gateway
// and the user data stream.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrExchangeUnavailable is returned by liveness probes when the exchange answers with
// anything other than HTTP 200.
var ErrExchangeUnavailable = errors.New("exchange unavailable")

// TransportError wraps connection level failures (refused, reset, timeout).
// Always retryable for idempotent calls.
type TransportError struct {
	Op    string
	cause error
}

// NewTransportError wraps err as a transport failure of op.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, cause: err}
}

func (e *TransportError) Error() string {
	if e.cause == nil {
		return "transport: " + e.Op
	}
	return "transport: " + e.Op + ": " + e.cause.Error()
}

func (e *TransportError) Unwrap() error { return e.cause }

// Timeout reports whether the failure was a deadline or net timeout.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.cause, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.cause, &ne) && ne.Timeout()
}

// ProtocolError is an unexpected HTTP status or an undecodable body.
type ProtocolError struct {
	Op     string
	Status int
	Body   string
	cause  error
}

// NewProtocolError builds a ProtocolError carrying the raw body for diagnostics.
func NewProtocolError(op string, status int, body string, cause error) *ProtocolError {
	return &ProtocolError{Op: op, Status: status, Body: strings.TrimSpace(body), cause: cause}
}

func (e *ProtocolError) Error() string {
	parts := []string{"protocol: " + e.Op}
	if e.Status > 0 {
		parts = append(parts, "status="+strconv.Itoa(e.Status))
	}
	if e.Body != "" {
		parts = append(parts, "body="+strconv.Quote(e.Body))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *ProtocolError) Unwrap() error { return e.cause }

// Fatal reports whether retrying cannot help. Only gateway-side 5xx answers are
// treated as transient.
func (e *ProtocolError) Fatal() bool {
	switch e.Status {
	case 500, 502, 503, 504:
		return false
	default:
		return true
	}
}

// ProcessingError is a business error decoded from an HTTP 400 `{code,msg}` body.
type ProcessingError struct {
	Code        int
	Message     string
	Recoverable bool
}

// NewProcessingError classifies code through the static code table.
func NewProcessingError(code int, msg string) *ProcessingError {
	return &ProcessingError{Code: code, Message: msg, Recoverable: !IsUnrecoverableCode(code)}
}

func (e *ProcessingError) Error() string {
	kind := "recoverable"
	if !e.Recoverable {
		kind = "unrecoverable"
	}
	return fmt.Sprintf("processing (%s): code=%d msg=%q", kind, e.Code, e.Message)
}

// ConfigurationError marks missing credentials or signing failures. Fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return "configuration: " + e.Field + ": " + e.Reason
}

// ValidationError is a request rejected locally before it reaches the exchange.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return "validation: " + e.Field + ": " + e.Reason
}

// IsRetryable reports whether err belongs to the retry-on set: transport failures,
// recoverable processing errors and non-fatal protocol errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}
	var pre *ProtocolError
	if errors.As(err, &pre) {
		return !pre.Fatal()
	}
	return false
}

// IsUnrecoverable reports whether err is a processing error that must never be retried.
func IsUnrecoverable(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe) && !pe.Recoverable
}

// Kind returns a short label used in logs and metric labels.
func Kind(err error) string {
	var (
		te  *TransportError
		pre *ProtocolError
		pe  *ProcessingError
		ce  *ConfigurationError
		ve  *ValidationError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		if te.Timeout() {
			return "timeout"
		}
		return "transport"
	case errors.As(err, &pe):
		if pe.Recoverable {
			return "processing"
		}
		return "processing_unrecoverable"
	case errors.As(err, &pre):
		return "protocol"
	case errors.As(err, &ce):
		return "configuration"
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, ErrExchangeUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
