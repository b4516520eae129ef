package llm

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	// KindTransport covers network failures reaching the provider.
	KindTransport ErrorKind = iota
	// KindProvider covers non-2xx answers from the provider.
	KindProvider
	// KindMalformed covers replies that break the messages contract.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindProvider:
		return "Provider"
	case KindMalformed:
		return "Malformed"
	default:
		return "Unknown"
	}
}

// ErrNoCredential is returned when no provider API key is configured.
var ErrNoCredential = errors.New("API key not configured")

type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NewErrorWithCause(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Kind, e.Message)}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status: %d", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}
	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind == kind
	}
	return false
}
