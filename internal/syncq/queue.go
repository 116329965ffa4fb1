// Package syncq is the ordered intake queue for account commands. One
// consumer executes commands in submission order, at most one at a time.
package syncq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("command queue closed")

type Command struct {
	ID        string
	Name      string
	AccountID int64
	Submitted time.Time

	ctx    context.Context
	run    func(ctx context.Context) (any, error)
	result chan result
}

type result struct {
	value any
	err   error
}

type Queue struct {
	log *slog.Logger

	mu      sync.Mutex
	pending []*Command
	closed  bool
	wake    chan struct{}
}

func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{log: logger, wake: make(chan struct{}, 1)}
}

// Len reports how many commands are waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Submit enqueues fn and waits for the consumer to run it. If ctx ends
// before the command starts, the command is dropped.
func (q *Queue) Submit(ctx context.Context, name string, accountID int64, fn func(ctx context.Context) (any, error)) (any, error) {
	cmd := &Command{
		ID:        uuid.NewString(),
		Name:      name,
		AccountID: accountID,
		Submitted: time.Now(),
		ctx:       ctx,
		run:       fn,
		result:    make(chan result, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.pending = append(q.pending, cmd)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case r := <-cmd.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do is Submit with a typed result.
func Do[T any](ctx context.Context, q *Queue, name string, accountID int64, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := q.Submit(ctx, name, accountID, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (q *Queue) pop() *Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	cmd := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return cmd
}

// Run consumes commands until ctx ends. Commands still waiting at shutdown
// fail with ErrQueueClosed; the command already running finishes first.
func (q *Queue) Run(ctx context.Context) {
	q.log.Info("command queue started")
	for {
		if ctx.Err() != nil {
			q.shutdown()
			return
		}
		cmd := q.pop()
		if cmd == nil {
			select {
			case <-ctx.Done():
				q.shutdown()
				return
			case <-q.wake:
			}
			continue
		}
		q.execute(cmd)
	}
}

func (q *Queue) execute(cmd *Command) {
	if err := cmd.ctx.Err(); err != nil {
		cmd.result <- result{err: err}
		return
	}
	start := time.Now()
	value, err := q.safeRun(cmd)
	q.log.Debug("command done",
		"command", cmd.Name,
		"command_id", cmd.ID,
		"account_id", cmd.AccountID,
		"wait_ms", start.Sub(cmd.Submitted).Milliseconds(),
		"run_ms", time.Since(start).Milliseconds(),
		"ok", err == nil,
	)
	cmd.result <- result{value: value, err: err}
}

func (q *Queue) safeRun(cmd *Command) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("command panicked", "command", cmd.Name, "command_id", cmd.ID, "account_id", cmd.AccountID, "panic", r)
			err = fmt.Errorf("command %s panicked: %v", cmd.Name, r)
		}
	}()
	return cmd.run(cmd.ctx)
}

func (q *Queue) shutdown() {
	q.mu.Lock()
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, cmd := range pending {
		cmd.result <- result{err: ErrQueueClosed}
	}
	q.log.Info("command queue stopped", "dropped", len(pending))
}
