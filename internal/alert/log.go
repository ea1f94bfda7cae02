package alert

import (
	"context"
	"log/slog"
)

// LogDispatcher writes alerts to the structured log. It is the channel of
// last resort and is always available.
type LogDispatcher struct {
	name   string
	logger *slog.Logger
}

// NewLogDispatcher creates a log channel.
func NewLogDispatcher(name string, logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{name: name, logger: logger.With("channel", name)}
}

func (d *LogDispatcher) Name() string { return d.name }

func (d *LogDispatcher) Dispatch(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.logger.WarnContext(ctx, a.Message,
		"id", a.ID,
		"triggered_at", a.TriggeredAt,
		"count", a.Count,
	)
	return nil
}
