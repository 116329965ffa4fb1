package ratelimit

import (
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// IPMiddleware throttles every HTTP request by client address in fixed
// windows and answers 429 once a window is spent. It is a coarse flood guard
// in front of the API; per-account budgets are enforced by Limiter.
func IPMiddleware(limit int64, period time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if period <= 0 {
		period = time.Minute
	}
	store := memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          keyPrefix + ":ip",
		CleanUpInterval: time.Minute,
	})
	mw := stdlib.NewMiddleware(limiter.New(store, limiter.Rate{Period: period, Limit: limit}))
	return mw.Handler
}
