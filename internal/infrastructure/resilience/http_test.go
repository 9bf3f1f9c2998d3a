package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		class ErrorClassification
	}{
		{"unavailable", &HTTPStatusError{StatusCode: http.StatusServiceUnavailable}, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"bad request", &HTTPStatusError{StatusCode: http.StatusBadRequest}, ErrorClassification{}},
		{"wrapped 429", fmt.Errorf("embed: %w", &HTTPStatusError{StatusCode: http.StatusTooManyRequests}), ErrorClassification{Retryable: true, RecordFailure: true}},
		{"canceled", context.Canceled, ErrorClassification{}},
		{"unknown", errors.New("decode"), ErrorClassification{RecordFailure: true}},
	}
	for _, tc := range cases {
		if got := ClassifyHTTPError(tc.err); got != tc.class {
			t.Fatalf("%s: ClassifyHTTPError() = %+v, want %+v", tc.name, got, tc.class)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := WrapTemporaryIfNeeded("qdrant search", &HTTPStatusError{StatusCode: http.StatusBadGateway}, ClassifyHTTPError)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary, got %v", err)
	}
	permanent := WrapTemporaryIfNeeded("qdrant search", &HTTPStatusError{StatusCode: http.StatusNotFound}, ClassifyHTTPError)
	if domain.IsKind(permanent, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary: %v", permanent)
	}
}
