// Package engine adapts the external extraction-and-download engine. The
// real engine is the yt-dlp binary driven over a subprocess boundary; a mock
// implementation backs the tests. Failures are classified onto the errs kind
// sentinels so that callers can branch with errors.Is instead of matching
// message text. Context cancellation and a missing binary pass through as
// themselves.
package engine

import (
	"context"

	"vidgrab/internal/entity"
)

// ProgressFunc receives progress events during one download attempt. total
// is nil when the engine does not report a total size.
type ProgressFunc func(downloaded int64, total *int64, percent float64)

// MetadataOptions parameterizes a metadata-only extraction.
type MetadataOptions struct {
	// FlatPlaylist lists collection entries without resolving each child.
	FlatPlaylist bool
	// CookieFile attaches a credential artifact, see
	// https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string
	ProxyURL   string
}

// DownloadRequest parameterizes one download attempt for one item.
type DownloadRequest struct {
	URL        string
	Options    entity.RunOptions
	CookieFile string
	ProxyURL   string
}

// Engine is the boundary to the external extraction-and-download engine.
type Engine interface {
	// Metadata performs a metadata-only extraction: no bytes are transferred.
	Metadata(ctx context.Context, url string, opts MetadataOptions) (*Info, error)
	// Download fetches one item into Options.OutputDir, reporting progress
	// through onProgress until it returns.
	Download(ctx context.Context, req DownloadRequest, onProgress ProgressFunc) error
}
