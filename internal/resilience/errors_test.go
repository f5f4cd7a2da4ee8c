package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("service unavailable"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}

	wrapped := fmt.Errorf("call failed: %w", err)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_MessagePatterns(t *testing.T) {
	cases := []struct {
		msg       string
		transient bool
	}{
		{"read tcp: connection reset by peer", true},
		{"Post api.anthropic.com: i/o timeout", true},
		{"api error: overloaded", true},
		{"429: rate limit exceeded", true},
		{"invalid request body", false},
		{"record not found", false},
	}

	for _, tc := range cases {
		if got := IsTransient(errors.New(tc.msg)); got != tc.transient {
			t.Errorf("IsTransient(%q) = %v, want %v", tc.msg, got, tc.transient)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}
