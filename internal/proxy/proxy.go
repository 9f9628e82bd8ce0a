// Package proxy provides proxy rotation for engine requests with failure
// tracking and backoff.
package proxy

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"vidgrab/internal/errs"
)

// proxyState tracks per-proxy failure history.
type proxyState struct {
	failures     int
	backoffUntil time.Time
}

// Rotation hands out proxies round-robin. A proxy marked as failed leaves
// the rotation until its backoff expires.
type Rotation struct {
	log     *slog.Logger
	backoff time.Duration

	mu      sync.Mutex
	proxies map[string]*proxyState
	order   []string // insertion order for stable rotation
	cursor  int
}

// NewRotation creates a rotation over urls. Unparseable entries are logged
// and skipped.
func NewRotation(log *slog.Logger, urls []string, backoff time.Duration) *Rotation {
	rot := &Rotation{
		log:     log.With(slog.String("package", "proxy")),
		backoff: backoff,
		proxies: make(map[string]*proxyState, len(urls)),
		order:   make([]string, 0, len(urls)),
	}

	for _, raw := range urls {
		if _, err := url.Parse(raw); err != nil {
			rot.log.Warn("skipping invalid proxy url", slog.String("proxy", raw), slog.Any("error", err))

			continue
		}

		if _, exists := rot.proxies[raw]; exists {
			continue
		}

		rot.proxies[raw] = &proxyState{}
		rot.order = append(rot.order, raw)
	}

	return rot
}

// Next returns the next proxy that is not backing off, advancing the
// rotation. It returns errs.ErrNoProxiesAvailable when every proxy is out.
func (r *Rotation) Next() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	for i := range len(r.order) {
		idx := (r.cursor + i) % len(r.order)
		proxyURL := r.order[idx]

		if now.Before(r.proxies[proxyURL].backoffUntil) {
			continue
		}

		r.cursor = (idx + 1) % len(r.order)

		return proxyURL, nil
	}

	return "", errs.ErrNoProxiesAvailable
}

// MarkFailed takes a proxy out of the rotation for the backoff period.
func (r *Rotation) MarkFailed(proxyURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.proxies[proxyURL]
	if !exists {
		return
	}

	state.failures++
	state.backoffUntil = time.Now().Add(r.backoff)

	r.log.Warn("proxy backing off",
		slog.String("proxy", proxyURL),
		slog.Int("failure_count", state.failures),
		slog.Duration("backoff", r.backoff))
}

// MarkSuccess clears the failure history for a proxy.
func (r *Rotation) MarkSuccess(proxyURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.proxies[proxyURL]
	if !exists {
		return
	}

	state.failures = 0
	state.backoffUntil = time.Time{}
}

// HasProxies reports whether any proxies are configured.
func (r *Rotation) HasProxies() bool {
	return len(r.order) > 0
}

// Count returns the total number of configured proxies.
func (r *Rotation) Count() int {
	return len(r.order)
}

// AvailableCount returns the number of proxies currently in the rotation.
func (r *Rotation) AvailableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	available := 0

	for _, proxyURL := range r.order {
		if !now.Before(r.proxies[proxyURL].backoffUntil) {
			available++
		}
	}

	return available
}
