package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/laneview/pkg/observability"
)

func TestSafeGo_Success(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), observability.NewNopLogger(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGo did not execute function")
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	result := make(chan error, 1)

	SafeGo(context.Background(), observability.NewNopLogger(), 50*time.Millisecond, "slow task", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			result <- nil
		case <-ctx.Done():
			result <- ctx.Err()
		}
		return nil
	})

	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not cancelled")
	}
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	reached := atomic.Bool{}
	done := make(chan struct{})

	SafeGo(context.Background(), observability.NewNopLogger(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		reached.Store(true)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	assert.True(t, reached.Load())
}

func TestSafeGoNoError(t *testing.T) {
	done := make(chan struct{})
	SafeGoNoError(context.Background(), observability.NewNopLogger(), time.Second, "noerr", func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeGoNoError did not execute function")
	}
}

func TestBatch_CollectsAllErrors(t *testing.T) {
	var processed atomic.Int32
	items := []int{1, 2, 3, 4, 5, 6}

	errs := Batch(context.Background(), observability.NewNopLogger(), items, 2, "numbers", time.Second,
		func(ctx context.Context, n int) error {
			processed.Add(1)
			if n%2 == 0 {
				return errors.New("even")
			}
			return nil
		})

	assert.Equal(t, int32(6), processed.Load())
	assert.Len(t, errs, 3)
}

func TestBatch_RecoversPanics(t *testing.T) {
	errs := Batch(context.Background(), observability.NewNopLogger(), []string{"ok", "bad"}, 0, "strings", time.Second,
		func(ctx context.Context, s string) error {
			if s == "bad" {
				panic("bad item")
			}
			return nil
		})

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "bad item")
}

func TestBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	errs := Batch(ctx, observability.NewNopLogger(), []int{1, 2}, 1, "cancelled", time.Second,
		func(ctx context.Context, n int) error {
			called.Store(true)
			return nil
		})

	assert.False(t, called.Load())
	assert.Len(t, errs, 2)
}
