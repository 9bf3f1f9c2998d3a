package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrRetrievalUnavailable marks a search backend that cannot be reached or built.
	// Retrieval absorbs it; callers only see it when they query a backend directly.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationTransport marks a failed completion call. Parse problems never use it.
	ErrGenerationTransport = errors.New("generation transport failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

var kindLabels = []struct {
	kind  error
	label string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrUnsupportedFormat, "unsupported_format"},
	{ErrGenerationTransport, "generation_transport"},
	{ErrRetrievalUnavailable, "retrieval_unavailable"},
	{ErrTemporary, "temporary"},
}

// KindLabel names the first semantic kind err carries, for log fields. Errors
// without a kind are "internal".
func KindLabel(err error) string {
	for _, k := range kindLabels {
		if errors.Is(err, k.kind) {
			return k.label
		}
	}
	return "internal"
}
