// Package notify delivers end-of-batch notifications and opens the output
// folder in the platform file browser. Everything here is best effort: a
// failed notification never fails the run.
package notify

import (
	"context"
	"log/slog"
)

// Notifier reports a finished batch. title is the short headline, body the
// per-item summary.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Multi fans one notification out to every configured notifier. Individual
// failures are logged and swallowed.
type Multi struct {
	log       *slog.Logger
	notifiers []Notifier
}

var _ Notifier = (*Multi)(nil)

// NewMulti creates a fan-out notifier.
func NewMulti(log *slog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{
		log:       log.With(slog.String("package", "notify")),
		notifiers: notifiers,
	}
}

// Notify delivers to every notifier and always returns nil.
func (m *Multi) Notify(ctx context.Context, title, body string) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, title, body); err != nil {
			m.log.WarnContext(ctx, "notifier failed", slog.Any("error", err))
		}
	}

	return nil
}
