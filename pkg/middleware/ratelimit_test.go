package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/laneview/pkg/observability"
)

var testConfig = RateLimitConfig{
	RequestsPerWindow: 10,
	WindowDuration:    time.Second,
	BurstSize:         2,
}

func allowN(t *testing.T, limiter Limiter, key string, n int) int {
	t.Helper()
	allowed := 0
	for i := 0; i < n; i++ {
		d, err := limiter.Allow(context.Background(), key)
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	return allowed
}

func TestMemoryRateLimiter_Allow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewMemoryRateLimiterWithClock(testConfig, clock)

	expected := testConfig.RequestsPerWindow + testConfig.BurstSize
	assert.Equal(t, expected, allowN(t, limiter, "ip:1.2.3.4", expected+5))
	assert.Equal(t, 0, limiter.Remaining("ip:1.2.3.4"))

	// Other keys have their own bucket
	assert.Equal(t, 1, allowN(t, limiter, "ip:5.6.7.8", 1))

	clock.Advance(time.Second)
	d, err := limiter.Allow(context.Background(), "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "tokens refill after a window")
	assert.Equal(t, testConfig.RequestsPerWindow-1, d.Remaining)
	assert.Equal(t, testConfig.RequestsPerWindow, d.Limit)
}

func TestMemoryRateLimiter_Remaining(t *testing.T) {
	limiter := NewMemoryRateLimiterWithClock(testConfig, clockwork.NewFakeClock())

	initial := limiter.Remaining("key")
	assert.Equal(t, testConfig.RequestsPerWindow+testConfig.BurstSize, initial)

	allowN(t, limiter, "key", 1)
	assert.Equal(t, initial-1, limiter.Remaining("key"))
}

func TestMemoryRateLimiter_Cleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewMemoryRateLimiterWithClock(testConfig, clock)

	for _, key := range []string{"a", "b", "c"} {
		allowN(t, limiter, key, 1)
	}
	assert.Len(t, limiter.buckets, 3)

	clock.Advance(3 * time.Second)
	limiter.Cleanup()
	assert.Empty(t, limiter.buckets)
}

func TestMemoryRateLimiter_StartCleanup(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewMemoryRateLimiterWithClock(testConfig, clock)
	allowN(t, limiter, "a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartCleanup(ctx)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(3 * time.Second)

	assert.Eventually(t, func() bool {
		limiter.mu.RLock()
		defer limiter.mu.RUnlock()
		return len(limiter.buckets) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRedisRateLimiter(client, testConfig, "")
	ctx := context.Background()

	expected := testConfig.RequestsPerWindow + testConfig.BurstSize
	assert.Equal(t, expected, allowN(t, limiter, "ip:1.2.3.4", expected+3))
	assert.True(t, mr.Exists("ratelimit:ip:1.2.3.4"))

	d, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.Reset, time.Duration(0))
	assert.LessOrEqual(t, d.Reset, time.Second)

	mr.FastForward(time.Second)
	assert.Equal(t, 1, allowN(t, limiter, "ip:1.2.3.4", 1), "a new window starts after expiry")

	allowN(t, limiter, "ip:9.9.9.9", 1)
	require.NoError(t, limiter.Reset(ctx, "ip:9.9.9.9"))
	assert.False(t, mr.Exists("ratelimit:ip:9.9.9.9"))

	assert.NoError(t, limiter.HealthCheck(ctx))
	mr.Close()
	_, err = limiter.Allow(ctx, "ip:1.2.3.4")
	assert.Error(t, err)
	assert.Error(t, limiter.HealthCheck(ctx))
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewMemoryRateLimiterWithClock(RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}, clockwork.NewFakeClock())

	handler := RateLimitMiddleware(limiter, observability.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/detections/volume/total", nil)
	req.RemoteAddr = "10.0.0.1:4321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":60}`, rec.Body.String())

	// Another client is unaffected
	other := httptest.NewRequest(http.MethodGet, "/api/detections/volume/total", nil)
	other.RemoteAddr = "10.0.0.2:4321"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	called := false
	handler := RateLimitMiddleware(failingLimiter{}, observability.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.5:5555", "192.168.1.5"},
		{"remote without port", nil, "192.168.1.5", "192.168.1.5"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
