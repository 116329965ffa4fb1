package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Set(offset time.Duration) {
	c.now = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC).Add(offset)
}

func newManualClock() *manualClock {
	c := &manualClock{}
	c.Set(0)
	return c
}

// backends builds one limiter per storage driver on the same clock.
func backends(t *testing.T, limit int64, period time.Duration, clock *manualClock) map[string]*Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]*Limiter{
		"memory": NewMemory(limit, period, nil, WithClock(clock.Now)),
		"redis":  NewRedis(rdb, limit, period, nil, WithClock(clock.Now)),
	}
}

func exhaust(t *testing.T, l *Limiter, accountID int64, limit int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < limit; i++ {
		require.NoError(t, l.Allow(ctx, accountID), "hit %d", i+1)
	}
	assert.ErrorIs(t, l.Allow(ctx, accountID), ErrRateLimited)
}

func TestLimiterPerAccount(t *testing.T) {
	ctx := context.Background()
	for name, l := range backends(t, 3, time.Minute, newManualClock()) {
		t.Run(name, func(t *testing.T) {
			exhaust(t, l, 1, 3)

			// Another account has its own budget.
			assert.NoError(t, l.Allow(ctx, 2))

			require.NoError(t, l.Reset(ctx, 1))
			assert.NoError(t, l.Allow(ctx, 1))
		})
	}
}

func TestLimiterRollingWindow(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	for name, l := range backends(t, 2, time.Second, clock) {
		t.Run(name, func(t *testing.T) {
			clock.Set(0)
			require.NoError(t, l.Allow(ctx, 1))
			clock.Set(900 * time.Millisecond)
			require.NoError(t, l.Allow(ctx, 1))

			// The first action has aged out; the one at 900ms still counts.
			clock.Set(1050 * time.Millisecond)
			require.NoError(t, l.Allow(ctx, 1))
			err := l.Allow(ctx, 1)
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.Contains(t, err.Error(), "retry in 1s")

			clock.Set(1900 * time.Millisecond)
			assert.NoError(t, l.Allow(ctx, 1))
		})
	}
}

func TestLimiterRefusalIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	for name, l := range backends(t, 1, time.Second, clock) {
		t.Run(name, func(t *testing.T) {
			clock.Set(10 * time.Second)
			require.NoError(t, l.Allow(ctx, 5))
			clock.Set(10*time.Second + 500*time.Millisecond)
			assert.ErrorIs(t, l.Allow(ctx, 5), ErrRateLimited)
			clock.Set(11 * time.Second)
			assert.NoError(t, l.Allow(ctx, 5))
		})
	}
}

func TestIPMiddleware(t *testing.T) {
	h := IPMiddleware(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/plants", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:4000"))
	assert.Equal(t, http.StatusTooManyRequests, call("192.0.2.1:4001"))
	assert.Equal(t, http.StatusNoContent, call("192.0.2.2:4000"))

	open := IPMiddleware(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
