package resilience

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/depguard/service"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrMaxRetriesExceeded", ErrMaxRetriesExceeded},
		{"ErrRateLimitExceeded", ErrRateLimitExceeded},
		{"ErrTimeout", ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.err.Error(), "resilience: ") {
				t.Errorf("%s message %q lacks package prefix", tt.name, tt.err.Error())
			}
		})
	}
}

func TestRateLimitError(t *testing.T) {
	err := fmt.Errorf("calling: %w", &RateLimitError{
		Service:    service.VectorSearch,
		Reason:     ReasonBurst,
		RetryAfter: 15 * time.Second,
	})

	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Error("errors.Is(err, ErrRateLimitExceeded) = false, want true")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = true, want false")
	}
	if !strings.Contains(err.Error(), "vectorSearch") {
		t.Errorf("Error() = %q, want service name", err.Error())
	}
}
