package notify

import (
	"context"
	"errors"
	"log/slog"

	"ffarm/internal/farm"
)

// LogSink writes every notification to the structured log.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{log: logger}
}

func (s *LogSink) Notify(_ context.Context, n farm.Notification) error {
	s.log.Info("notification",
		"account_id", n.AccountID,
		"chat_id", n.ChatID,
		"kind", n.Kind,
		"text", Render(n),
	)
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []farm.Notifier

func (f Fanout) Notify(ctx context.Context, n farm.Notification) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
