package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_RetriesOnce(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), Policy{MaxRetries: 1, Interval: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 1, Interval: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestDo_Permanent(t *testing.T) {
	bad := errors.New("bad input")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxRetries: 3, Interval: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, Permanent(bad)
	})
	require.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptTimeout(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Timeout: 5 * time.Millisecond, MaxRetries: 1, Interval: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls, "each attempt gets its own deadline")
}
