package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vidgrab/internal/consts"
	"vidgrab/pkg/calc"
)

// Mock is an in-memory Engine for tests. Downloads are simulated with a
// ticking progress loop, and individual URLs can be scripted to fail or to
// require a cookie file. It also records call counts and the peak number of
// concurrent downloads.
type Mock struct {
	log *slog.Logger

	mu            sync.Mutex
	simulateTime  time.Duration
	infos         map[string]*Info
	failures      map[string]*scriptedFailure
	failMetadata  map[string]error
	cookieGate    map[string]error
	metadataCalls map[string]int
	downloadCalls map[string]int

	active        atomic.Int64
	maxConcurrent atomic.Int64
}

type scriptedFailure struct {
	remaining int
	err       error
}

// NewMock creates a new mock engine instance.
func NewMock(log *slog.Logger) *Mock {
	return &Mock{
		log:           log.With(slog.String("package", "engine"), slog.String("engine", consts.EngineMock)),
		simulateTime:  consts.DefaultSimulateTime,
		infos:         make(map[string]*Info),
		failures:      make(map[string]*scriptedFailure),
		failMetadata:  make(map[string]error),
		cookieGate:    make(map[string]error),
		metadataCalls: make(map[string]int),
		downloadCalls: make(map[string]int),
	}
}

// SetSimulateTime sets how long one simulated download takes.
func (m *Mock) SetSimulateTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.simulateTime = d
}

// SetInfo scripts the metadata returned for url.
func (m *Mock) SetInfo(url string, info *Info) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.infos[url] = info
}

// FailFirst scripts the next n Download calls for url to fail with err.
func (m *Mock) FailFirst(url string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures[url] = &scriptedFailure{remaining: n, err: err}
}

// RequireCookie scripts url to fail with err until a cookie file is attached.
func (m *Mock) RequireCookie(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cookieGate[url] = err
}

// FailMetadata scripts every Metadata call for url to fail with err.
func (m *Mock) FailMetadata(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failMetadata[url] = err
}

// MetadataCalls returns how many times Metadata was invoked for url.
func (m *Mock) MetadataCalls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.metadataCalls[url]
}

// DownloadCalls returns how many times Download was invoked for url.
func (m *Mock) DownloadCalls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.downloadCalls[url]
}

// MaxConcurrent returns the peak number of downloads in flight at once.
func (m *Mock) MaxConcurrent() int {
	return int(m.maxConcurrent.Load())
}

// Metadata returns the scripted Info for url, or a minimal single-item Info
// when none was scripted.
func (m *Mock) Metadata(ctx context.Context, url string, opts MetadataOptions) (*Info, error) {
	m.mu.Lock()
	m.metadataCalls[url]++
	metaErr := m.failMetadata[url]
	gateErr := m.cookieGate[url]
	info := m.infos[url]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if metaErr != nil {
		return nil, metaErr
	}

	if gateErr != nil && opts.CookieFile == "" {
		return nil, gateErr
	}

	if info != nil {
		return info, nil
	}

	return &Info{ID: "mock", Title: url}, nil
}

// Download simulates fetching one item, honoring scripted failures and the
// cookie gate.
func (m *Mock) Download(ctx context.Context, req DownloadRequest, onProgress ProgressFunc) error {
	m.mu.Lock()
	m.downloadCalls[req.URL]++
	gateErr := m.cookieGate[req.URL]
	duration := m.simulateTime

	var scriptErr error

	if failure := m.failures[req.URL]; failure != nil && failure.remaining > 0 {
		failure.remaining--
		scriptErr = failure.err
	}
	m.mu.Unlock()

	if gateErr != nil && req.CookieFile == "" {
		return gateErr
	}

	if scriptErr != nil {
		m.log.DebugContext(ctx, "scripted failure", slog.String("url", req.URL), slog.Any("error", scriptErr))

		return scriptErr
	}

	cur := m.active.Add(1)
	defer m.active.Add(-1)

	for {
		peak := m.maxConcurrent.Load()
		if cur <= peak || m.maxConcurrent.CompareAndSwap(peak, cur) {
			break
		}
	}

	return simulateDownload(ctx, duration, onProgress)
}

// simulateDownload emits evenly spaced progress updates over duration.
func simulateDownload(ctx context.Context, duration time.Duration, onProgress ProgressFunc) error {
	const steps = 10

	totalBytes := int64(1 << 20)

	ticker := time.NewTicker(duration / steps)
	defer ticker.Stop()

	for step := 1; step <= steps; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if onProgress != nil {
				downloaded := totalBytes * int64(step) / steps
				onProgress(downloaded, &totalBytes, float64(calc.Progress(downloaded, totalBytes)))
			}
		}
	}

	return nil
}
