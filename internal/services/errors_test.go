package services_test

import (
	"errors"
	"fmt"
	"testing"

	"loom/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := services.Wrap(services.ErrTransient, "analyzer", "deep-analysis", "llm call failed", cause)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "analyzer", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("nil marker should default to transient, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", services.Wrap(services.ErrRateLimited, "llm", "complete", "429", nil), true},
		{"timeout", services.ErrTimeout, true},
		{"transient", services.ErrTransient, true},
		{"validation", services.Wrap(services.ErrValidation, "atoms", "load", "bad record", nil), false},
		{"configuration", services.ErrConfiguration, false},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.want {
			t.Errorf("%s: Retryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
