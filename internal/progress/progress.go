// Package progress delivers per-item download progress to the user. The
// Bars sink renders one terminal progress bar per item; the Log sink writes
// structured log lines instead, for runs without a usable terminal.
package progress

import "vidgrab/internal/entity"

// Sink consumes the progress events of one batch. Implementations must
// tolerate concurrent calls for different items.
type Sink interface {
	// Start announces an item before its first byte is transferred.
	Start(item entity.Item)
	// Update reports transfer progress for a started item.
	Update(update entity.ProgressUpdate)
	// Finish reports the terminal outcome for a started item.
	Finish(outcome entity.Outcome)
}

type noopSink struct{}

func (noopSink) Start(entity.Item)            {}
func (noopSink) Update(entity.ProgressUpdate) {}
func (noopSink) Finish(entity.Outcome)        {}

// Noop returns a sink that discards every event.
func Noop() Sink {
	return noopSink{}
}
