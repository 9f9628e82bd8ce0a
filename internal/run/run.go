// Package run coordinates one download batch. A bounded pool of workers
// pulls items off a queue, each worker drives the engine through a retry
// loop, and the batch completes only when every dispatched item has produced
// exactly one outcome. One item failing permanently never aborts the others.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vidgrab/internal/consts"
	"vidgrab/internal/engine"
	"vidgrab/internal/entity"
	"vidgrab/internal/errs"
	"vidgrab/internal/observability"
	"vidgrab/internal/progress"
	"vidgrab/internal/proxy"
	"vidgrab/pkg/gen"
)

// Batch is one unit of work for the Coordinator: the resolved items, the
// options shared read-only by all workers, and the credential file carried
// over from resolution, if any.
type Batch struct {
	Items      []entity.Item
	Options    entity.RunOptions
	CookieFile string
}

// Coordinator dispatches batches to a bounded worker pool.
type Coordinator struct {
	log     *slog.Logger
	eng     engine.Engine
	proxies *proxy.Rotation
	metrics *observability.Metrics
}

// New creates a Coordinator. proxies may be nil when no proxies are
// configured; a nil metrics gets a private registry.
func New(log *slog.Logger, eng engine.Engine, proxies *proxy.Rotation, metrics *observability.Metrics) *Coordinator {
	if metrics == nil {
		metrics = observability.New()
	}

	return &Coordinator{
		log:     log.With(slog.String("package", "run")),
		eng:     eng,
		proxies: proxies,
		metrics: metrics,
	}
}

// RunBatch downloads every item in the batch with at most
// Options.MaxParallel concurrent engine invocations and returns one outcome
// per dispatched item. Completion order is unconstrained. A nil sink
// discards progress events.
func (c *Coordinator) RunBatch(ctx context.Context, batch Batch, sink progress.Sink) ([]entity.Outcome, error) {
	if len(batch.Items) == 0 {
		return nil, errs.ErrNoItems
	}

	if sink == nil {
		sink = progress.Noop()
	}

	opts := batch.Options
	opts.Normalize()

	c.metrics.RecordRunStarted(len(batch.Items))
	stop := c.metrics.RunTimer()
	defer stop()

	log := c.log.With(slog.String("run_id", gen.RunID()))
	log.InfoContext(ctx, "batch started", slog.Int("items", len(batch.Items)), slog.Any("options", opts))

	jobs := make(chan entity.Item)
	results := make(chan entity.Outcome, len(batch.Items))

	var wg sync.WaitGroup
	for i := range opts.MaxParallel {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()
			c.worker(ctx, log, workerID, opts, batch.CookieFile, jobs, results, sink)
		}(i)
	}

	go func() {
		defer close(jobs)

		for _, item := range batch.Items {
			select {
			case jobs <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]entity.Outcome, 0, len(batch.Items))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}

	log.InfoContext(ctx, "batch finished",
		slog.Int("items", len(batch.Items)),
		slog.Int("succeeded", countSucceeded(outcomes)))

	if err := ctx.Err(); err != nil {
		return outcomes, fmt.Errorf("batch interrupted: %w", err)
	}

	return outcomes, nil
}

func (c *Coordinator) worker(ctx context.Context, log *slog.Logger, workerID int, opts entity.RunOptions, cookieFile string, jobs <-chan entity.Item, results chan<- entity.Outcome, sink progress.Sink) {
	log = log.With(slog.Int("worker_id", workerID))

	for item := range jobs {
		results <- c.processItem(ctx, log, item, opts, cookieFile, sink)
	}
}

func (c *Coordinator) processItem(ctx context.Context, log *slog.Logger, item entity.Item, opts entity.RunOptions, cookieFile string, sink progress.Sink) entity.Outcome {
	item = c.refreshTitle(ctx, item, cookieFile)

	sink.Start(item)
	c.metrics.RecordItemStarted()

	outcome := c.download(ctx, log, item, opts, cookieFile, sink)

	if outcome.Succeeded {
		c.metrics.RecordItemSucceeded()
	} else {
		c.metrics.RecordItemFailed()
	}

	sink.Finish(outcome)

	return outcome
}

// refreshTitle fills in a display title for items that resolution passed
// through untitled, so the sink has a label before bytes start flowing.
// Best effort: on any failure the url stays as the title.
func (c *Coordinator) refreshTitle(ctx context.Context, item entity.Item, cookieFile string) entity.Item {
	if item.Title != "" && item.Title != item.URL {
		return item
	}

	info, err := c.eng.Metadata(ctx, item.URL, engine.MetadataOptions{CookieFile: cookieFile})
	if err != nil || info.Title == "" {
		return item
	}

	item.Title = info.Title

	return item
}

func (c *Coordinator) download(ctx context.Context, log *slog.Logger, item entity.Item, opts entity.RunOptions, cookieFile string, sink progress.Sink) entity.Outcome {
	onProgress := func(downloaded int64, total *int64, percent float64) {
		sink.Update(entity.ProgressUpdate{
			Item:            item,
			BytesDownloaded: downloaded,
			BytesTotal:      total,
			Percent:         percent,
		})
	}

	var lastErr error

	for attempt := 1; attempt <= opts.RetryLimit; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(consts.DefaultRetryBackoff):
			case <-ctx.Done():
				return entity.Outcome{Item: item, Succeeded: false, AttemptsUsed: attempt - 1, Err: lastErr}
			}
		}

		proxyURL := c.nextProxy(ctx)

		err := c.eng.Download(ctx, engine.DownloadRequest{
			URL:        item.URL,
			Options:    opts,
			CookieFile: cookieFile,
			ProxyURL:   proxyURL,
		}, onProgress)
		c.metrics.RecordAttempt(err)
		c.markProxy(proxyURL, err)

		if err == nil {
			log.InfoContext(ctx, "item downloaded", "item", item, slog.Int("attempt", attempt))

			return entity.Outcome{Item: item, Succeeded: true, AttemptsUsed: attempt}
		}

		lastErr = err

		log.WarnContext(ctx, "download attempt failed",
			"item", item,
			slog.Int("attempt", attempt),
			slog.Int("retry_limit", opts.RetryLimit),
			slog.Any("error", err))
	}

	return entity.Outcome{Item: item, Succeeded: false, AttemptsUsed: opts.RetryLimit, Err: lastErr}
}

func (c *Coordinator) nextProxy(ctx context.Context) string {
	if c.proxies == nil || !c.proxies.HasProxies() {
		return ""
	}

	proxyURL, err := c.proxies.Next()
	if err != nil {
		c.log.DebugContext(ctx, "no proxy available, connecting directly", slog.Any("error", err))

		return ""
	}

	return proxyURL
}

// markProxy reports the attempt result back to the rotation. Only failures
// that look like the proxy's fault take it out of rotation; content-level
// failures such as a removed video do not.
func (c *Coordinator) markProxy(proxyURL string, err error) {
	if c.proxies == nil || proxyURL == "" {
		return
	}

	switch {
	case err == nil:
		c.proxies.MarkSuccess(proxyURL)
	case errors.Is(err, errs.ErrRateLimited), errors.Is(err, errs.ErrTransient):
		c.proxies.MarkFailed(proxyURL)
		c.metrics.RecordProxyFailure(proxyURL)
	}

	c.metrics.SetProxiesAvailable(c.proxies.AvailableCount())
}

func countSucceeded(outcomes []entity.Outcome) int {
	n := 0

	for _, outcome := range outcomes {
		if outcome.Succeeded {
			n++
		}
	}

	return n
}
