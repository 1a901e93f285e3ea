package es

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

var (
	ErrIncompatibleAssessors = errors.New("incompatible success assessors")
	ErrInvalidWork           = errors.New("invalid work")
)

// WorkError is a response status outside 2xx and outside the work's ignore
// set. For bulk items Body is the item object the engine returned.
type WorkError struct {
	Kind          WorkKind
	StatusCode    int
	StatusMessage string
	Body          map[string]interface{}
}

func (e *WorkError) Error() string {
	msg := fmt.Sprintf("%s failed with status %d", e.Kind, e.StatusCode)
	if e.StatusMessage != "" {
		msg += " (" + e.StatusMessage + ")"
	}
	if reason := e.Reason(); reason != "" {
		msg += ": " + reason
	}
	return msg
}

// Reason extracts "type: reason" from the engine's error object when present.
func (e *WorkError) Reason() string {
	if e.Body == nil {
		return ""
	}
	switch engineErr := e.Body["error"].(type) {
	case string:
		return engineErr
	case map[string]interface{}:
		parts := make([]string, 0, 2)
		if errType := cast.ToString(engineErr["type"]); errType != "" {
			parts = append(parts, errType)
		}
		if reason := cast.ToString(engineErr["reason"]); reason != "" {
			parts = append(parts, reason)
		}
		return strings.Join(parts, ": ")
	}
	return ""
}

// ProtocolError means a bulk response could not be correlated with its
// request. Every work of the batch fails with it.
type ProtocolError struct {
	Reason   string
	Expected int
	Actual   int
}

func (e *ProtocolError) Error() string {
	if e.Expected != e.Actual {
		return fmt.Sprintf("bulk protocol error: %s (expected %d items, got %d)", e.Reason, e.Expected, e.Actual)
	}
	return "bulk protocol error: " + e.Reason
}

// TransportError wraps anything that prevented a response from arriving:
// connection failures, timeouts, cancelled contexts.
type TransportError struct {
	Cause error
}

func NewTransportError(cause error) *TransportError {
	var transportErr *TransportError
	if errors.As(cause, &transportErr) {
		return transportErr
	}
	return &TransportError{Cause: cause}
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

type ConfigError struct {
	Reason string
	cause  error
}

func NewIncompatibleAssessorsError(kind WorkKind, current, submitted *SuccessAssessor) *ConfigError {
	return &ConfigError{
		Reason: fmt.Sprintf("%s works cannot share a batch: %s vs %s", kind, current, submitted),
		cause:  ErrIncompatibleAssessors,
	}
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return e.cause
}

func invalidWork(kind WorkKind, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidWork, "%s: %s", kind, fmt.Sprintf(format, args...))
}
