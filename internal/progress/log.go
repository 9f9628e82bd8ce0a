package progress

import (
	"log/slog"

	"vidgrab/internal/entity"
)

// Log writes progress events as structured log lines.
type Log struct {
	log *slog.Logger
}

// NewLog creates a log-backed sink.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With(slog.String("package", "progress"))}
}

// Start logs that an item began downloading.
func (l *Log) Start(item entity.Item) {
	l.log.Info("download started", slog.Any("item", item))
}

// Update logs one progress event at debug level.
func (l *Log) Update(update entity.ProgressUpdate) {
	l.log.Debug("download progress",
		slog.Any("item", update.Item),
		slog.Float64("percent", update.Percent),
		slog.Int64("bytes_downloaded", update.BytesDownloaded))
}

// Finish logs the terminal outcome for an item.
func (l *Log) Finish(outcome entity.Outcome) {
	if outcome.Succeeded {
		l.log.Info("download finished", slog.Any("outcome", outcome))

		return
	}

	l.log.Warn("download failed", slog.Any("outcome", outcome))
}

// Wait is a no-op; log lines are written synchronously.
func (l *Log) Wait() {}
