package progress

import (
	"fmt"
	"sync"
	"time"

	"vidgrab/internal/entity"
	"vidgrab/pkg/calc"

	"github.com/fatih/color"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// fullScale drives bars in percent units so updates without a byte total
// still render.
const fullScale = 100

// itemBar pairs an mpb bar with the byte counters its stats decorator
// renders. The decorator runs on the render goroutine, so the counters are
// guarded.
type itemBar struct {
	bar *mpb.Bar

	mu         sync.Mutex
	started    time.Time
	downloaded int64
	total      *int64
}

func (ib *itemBar) record(update entity.ProgressUpdate) {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	ib.downloaded = update.BytesDownloaded
	if update.BytesTotal != nil {
		ib.total = update.BytesTotal
	}
}

// stats renders the right-hand readout: bytes, speed and, once the total is
// known, the ETA.
func (ib *itemBar) stats() string {
	ib.mu.Lock()
	downloaded, total, started := ib.downloaded, ib.total, ib.started
	ib.mu.Unlock()

	if downloaded <= 0 {
		return ""
	}

	speed := calc.HumanSpeed(calc.Speed(downloaded, started))

	if total == nil || *total <= 0 {
		return fmt.Sprintf("%s  %s", calc.HumanBytes(downloaded), speed)
	}

	eta := calc.ETA(downloaded, *total, started).Round(time.Second)

	return fmt.Sprintf("%s / %s  %s  ETA %s",
		calc.HumanBytes(downloaded), calc.HumanBytes(*total), speed, eta)
}

// Bars renders one terminal progress bar per item. A Bars value serves a
// single batch: call Wait after the batch to let the last frames flush.
type Bars struct {
	pbp *mpb.Progress

	mu   sync.Mutex
	bars map[string]*itemBar // keyed by item ID
}

// NewBars creates a bar container writing to the colorized stdout.
func NewBars() *Bars {
	return &Bars{
		pbp:  mpb.New(mpb.WithAutoRefresh(), mpb.WithOutput(color.Output)),
		bars: make(map[string]*itemBar),
	}
}

// Start adds a bar for the item.
func (b *Bars) Start(item entity.Item) {
	ib := &itemBar{started: time.Now()}

	ib.bar = b.pbp.AddBar(fullScale,
		mpb.PrependDecorators(decor.Name(fmt.Sprintf("%.60s", item.Title), decor.WCSyncSpaceR)),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Any(func(decor.Statistics) string { return ib.stats() }, decor.WCSyncSpaceR),
		),
	)

	b.mu.Lock()
	b.bars[item.ID] = ib
	b.mu.Unlock()
}

// Update advances the item's bar. Updates for unknown items are dropped.
func (b *Bars) Update(update entity.ProgressUpdate) {
	b.mu.Lock()
	ib := b.bars[update.Item.ID]
	b.mu.Unlock()

	if ib == nil {
		return
	}

	ib.record(update)
	ib.bar.SetCurrent(int64(update.Percent))
}

// Finish completes the item's bar, or aborts it on failure so the bar stays
// visibly unfinished.
func (b *Bars) Finish(outcome entity.Outcome) {
	b.mu.Lock()
	ib := b.bars[outcome.Item.ID]
	delete(b.bars, outcome.Item.ID)
	b.mu.Unlock()

	if ib == nil {
		return
	}

	if outcome.Succeeded {
		ib.bar.SetCurrent(fullScale)

		return
	}

	ib.bar.Abort(false)
}

// Wait blocks until every bar has rendered its final frame.
func (b *Bars) Wait() {
	b.pbp.Wait()
}
