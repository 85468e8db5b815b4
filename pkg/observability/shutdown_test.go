package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)

	sm = NewShutdownManager(NewNopLogger(), nil, time.Second)
	assert.Equal(t, time.Second, sm.shutdownTimeout)
}

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, time.Second)

	var order []string
	for _, name := range []string{"storage", "flush scheduler", "watcher"} {
		name := name
		sm.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown())
	assert.Equal(t, []string{"watcher", "flush scheduler", "storage"}, order)
}

func TestShutdownManager_CollectsErrorsAndRunsOnce(t *testing.T) {
	sm := NewShutdownManager(NewNopLogger(), nil, time.Second)

	calls := 0
	sm.Register("storage", func(ctx context.Context) error {
		calls++
		return errors.New("close failed")
	})
	sm.Register("otel", func(ctx context.Context) error {
		calls++
		return nil
	})

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage: close failed")

	assert.Equal(t, err, sm.Shutdown())
	assert.Equal(t, 2, calls)
}

func TestShutdownManager_StopsServer(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Start()
	defer ts.Close()

	server := ts.Config
	sm := NewShutdownManager(NewNopLogger(), server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.WaitAndShutdown(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}
