package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdant-network/walletnode/errors"
	"github.com/verdant-network/walletnode/ulogger"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0

	result, err := Retry(context.Background(), ulogger.TestLogger{}, 5, time.Millisecond, "flaky op", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.NewServiceUnavailableError("not yet")
		}

		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0

	_, err := Retry(context.Background(), ulogger.TestLogger{}, 3, time.Millisecond, "doomed op", func() (int, error) {
		calls++
		return 0, errors.NewServiceUnavailableError("still down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable))
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Retry(ctx, ulogger.TestLogger{}, 10, time.Hour, "canceled op", func() (int, error) {
		calls++
		cancel()

		return 0, errors.NewServiceUnavailableError("down")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
