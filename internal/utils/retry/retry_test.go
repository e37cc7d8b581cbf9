package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection reset")
var errFatal = errors.New("404 not found")

func classify(err error) Action {
	if errors.Is(err, errFatal) {
		return Stop
	}
	return Retry
}

func TestDo(t *testing.T) {
	policy := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		got, err := Do(context.Background(), policy, classify, func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errTransient
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), policy, classify, func(ctx context.Context) (int, error) {
			calls++
			return 0, errFatal
		})
		var perm *PermanentError
		assert.ErrorAs(t, err, &perm)
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		retried := 0
		p := policy
		p.OnRetry = func(int, error, time.Duration) { retried++ }
		_, err := Do(context.Background(), p, classify, func(ctx context.Context) (int, error) {
			calls++
			return 0, errTransient
		})
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retried)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := Policy{MaxAttempts: 5, InitialBackoff: time.Hour}
		_, err := Do(ctx, p, classify, func(ctx context.Context) (int, error) {
			return 0, errTransient
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
