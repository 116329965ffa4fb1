// Package ratelimit caps how often one account may trigger high-frequency
// actions such as announcements and quantity submissions.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrRateLimited = errors.New("too many requests")

const keyPrefix = "ffarm:ratelimit"

// window is a sliding log of accepted actions per key. hit records now only
// when fewer than limit actions fall inside (now-period, now]; a refused
// action leaves the log untouched and reports the oldest entry still
// counted.
type window interface {
	hit(ctx context.Context, key string, now time.Time, limit int64, period time.Duration) (bool, time.Time, error)
	reset(ctx context.Context, key string) error
}

// Limiter counts actions per account over a rolling period. Accounts never
// share counters.
type Limiter struct {
	store  window
	limit  int64
	period time.Duration
	now    func() time.Time
	log    *slog.Logger
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func newLimiter(store window, limit int64, period time.Duration, logger *slog.Logger, opts []Option) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = 20
	}
	if period <= 0 {
		period = time.Minute
	}
	l := &Limiter{store: store, limit: limit, period: period, now: time.Now, log: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func NewMemory(limit int64, period time.Duration, logger *slog.Logger, opts ...Option) *Limiter {
	return newLimiter(&memoryLog{hits: make(map[string][]time.Time)}, limit, period, logger, opts)
}

// NewRedis shares the log across processes through a Redis sorted set per
// account.
func NewRedis(client redis.UniversalClient, limit int64, period time.Duration, logger *slog.Logger, opts ...Option) *Limiter {
	return newLimiter(&redisLog{client: client}, limit, period, logger, opts)
}

// Allow records one action for accountID and fails with ErrRateLimited once
// limit actions already fall inside the trailing period.
func (l *Limiter) Allow(ctx context.Context, accountID int64) error {
	now := l.now()
	ok, oldest, err := l.store.hit(ctx, keyFor(accountID), now, l.limit, l.period)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !ok {
		retry := oldest.Add(l.period).Sub(now).Round(time.Second)
		if retry < 0 {
			retry = 0
		}
		l.log.Warn("rate limit exceeded", "account_id", accountID, "limit", l.limit, "retry_in", retry.String())
		return fmt.Errorf("%w: retry in %s", ErrRateLimited, retry)
	}
	return nil
}

// Reset clears the account's log.
func (l *Limiter) Reset(ctx context.Context, accountID int64) error {
	return l.store.reset(ctx, keyFor(accountID))
}

func keyFor(accountID int64) string {
	return keyPrefix + ":" + strconv.FormatInt(accountID, 10)
}

type memoryLog struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func (m *memoryLog) hit(_ context.Context, key string, now time.Time, limit int64, period time.Duration) (bool, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-period)
	log := m.hits[key]
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	log = log[i:]
	if int64(len(log)) >= limit {
		m.hits[key] = log
		return false, log[0], nil
	}
	m.hits[key] = append(log, now)
	return true, time.Time{}, nil
}

func (m *memoryLog) reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.hits, key)
	m.mu.Unlock()
	return nil
}

// slidingLog trims, counts and conditionally appends in one round trip so
// concurrent processes cannot both take the last slot. Scores are unix
// milliseconds and are passed in as strings.
var slidingLog = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	return {0, oldest[2]}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1}
`)

type redisLog struct {
	client redis.UniversalClient
}

func (r *redisLog) hit(ctx context.Context, key string, now time.Time, limit int64, period time.Duration) (bool, time.Time, error) {
	nowMs := now.UnixMilli()
	args := []any{
		strconv.FormatInt(nowMs-period.Milliseconds(), 10),
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(limit, 10),
		strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString(),
		strconv.FormatInt(period.Milliseconds(), 10),
	}
	res, err := slidingLog.Run(ctx, r.client, []string{key}, args...).Slice()
	if err != nil {
		return false, time.Time{}, err
	}
	if len(res) == 0 {
		return false, time.Time{}, fmt.Errorf("empty sliding log reply")
	}
	if allowed, _ := res[0].(int64); allowed == 1 {
		return true, time.Time{}, nil
	}
	oldest := now
	if len(res) > 1 {
		if raw, ok := res[1].(string); ok {
			if ms, err := strconv.ParseFloat(raw, 64); err == nil {
				oldest = time.UnixMilli(int64(ms))
			}
		}
	}
	return false, oldest, nil
}

func (r *redisLog) reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
