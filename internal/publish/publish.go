// Package publish defines the sink a composed badge is uploaded to.
//
// Drivers live in subpackages: mtproto sets the badge as a Telegram profile
// photo, dirsink writes files for dry runs.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weatherbadge/internal/state"
)

// Publisher uploads encoded badges and removes earlier uploads.
type Publisher interface {
	// Upload publishes a PNG and returns a handle for later deletion.
	// A quota refusal is reported as *RateLimitError.
	Upload(ctx context.Context, png []byte) (state.AssetHandle, error)
	// Delete removes all handles in one call.
	Delete(ctx context.Context, handles []state.AssetHandle) error
	// Close releases the upstream session.
	Close() error
}

// RateLimitError means the upstream refused the call for Wait.
type RateLimitError struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("publish: rate limited for %s: %v", e.Wait, e.Err)
	}
	return fmt.Sprintf("publish: rate limited for %s", e.Wait)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AsRateLimit extracts the wait from err, if err carries a RateLimitError.
func AsRateLimit(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.Wait, true
	}
	return 0, false
}
