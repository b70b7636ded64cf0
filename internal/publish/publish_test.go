package publish

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAsRateLimitThroughWrapping(t *testing.T) {
	t.Parallel()
	base := errors.New("FLOOD_WAIT_30")
	err := fmt.Errorf("upload: %w", &RateLimitError{Wait: 30 * time.Second, Err: base})

	wait, ok := AsRateLimit(err)
	if !ok || wait != 30*time.Second {
		t.Fatalf("AsRateLimit = %v, %v", wait, ok)
	}
	if !errors.Is(err, base) {
		t.Fatal("RateLimitError should unwrap to its cause")
	}
	if _, ok := AsRateLimit(errors.New("boom")); ok {
		t.Fatal("plain error reported as rate limit")
	}
}
