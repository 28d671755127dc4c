// Package retry provides a bounded retry helper for startup paths that talk
// to external systems, where a transient refusal should not kill the daemon.
package retry

import (
	"context"
	"time"

	"github.com/verdant-network/walletnode/ulogger"
)

// Retry calls f until it succeeds, attempts are exhausted, or ctx is
// canceled. The backoff doubles after each failed attempt.
func Retry[T any](ctx context.Context, logger ulogger.Logger, attempts int, backoff time.Duration, what string, f func() (T, error)) (T, error) {
	var result T

	var err error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			logger.Infof("retrying %s (attempt %d of %d)", what, i+1, attempts)
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	return result, err
}
