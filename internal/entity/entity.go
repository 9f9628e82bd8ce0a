// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"

	"vidgrab/internal/consts"
	"vidgrab/pkg/gen"
)

// Item represents one resolved downloadable resource.
type Item struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// NewItem builds an Item for url. The title is best-effort display text and
// falls back to the url itself when empty.
func NewItem(url, title string) Item {
	if title == "" {
		title = url
	}

	return Item{
		ID:    gen.UUIDv5(url, "item"),
		URL:   url,
		Title: title,
	}
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (i Item) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", i.ID),
		slog.String("url", i.URL),
		slog.String("title", i.Title),
	)
}

// PostProcessor is one post-download transformation directive handed to the
// engine, e.g. audio extraction via the external transcoder.
type PostProcessor struct {
	Kind    string `json:"kind"`
	Codec   string `json:"codec,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// SubtitleOptions requests subtitle download alongside the media.
type SubtitleOptions struct {
	Languages     []string `json:"languages"`
	Format        string   `json:"format"`
	AutoGenerated bool     `json:"autoGenerated"`
}

// ThumbnailOptions requests thumbnail download and embedding.
type ThumbnailOptions struct {
	Embed       bool `json:"embed"`
	HighQuality bool `json:"highQuality"`
}

// RunOptions parameterizes one batch. It is built once per run, validated by
// Normalize, and shared read-only across all workers. Partial-transfer
// continuation is on unless NoResume is set.
type RunOptions struct {
	OutputDir      string            `json:"outputDir"`
	FormatSelector string            `json:"formatSelector"`
	OutputTemplate string            `json:"outputTemplate"`
	PostProcessors []PostProcessor   `json:"postProcessors,omitempty"`
	Subtitles      *SubtitleOptions  `json:"subtitles,omitempty"`
	Thumbnail      *ThumbnailOptions `json:"thumbnail,omitempty"`
	RetryLimit     int               `json:"retryLimit"`
	MaxParallel    int               `json:"maxParallel"`
	NoResume       bool              `json:"noResume,omitempty"`
}

// Normalize applies defaults and lower bounds. It must be called once before
// the options are shared with workers.
func (o *RunOptions) Normalize() {
	if o.FormatSelector == "" {
		o.FormatSelector = consts.SelectorBest
	}

	if o.OutputTemplate == "" {
		o.OutputTemplate = consts.DefaultOutputTemplate
	}

	if o.RetryLimit < 1 {
		o.RetryLimit = consts.DefaultRetryLimit
	}

	if o.MaxParallel < 1 {
		o.MaxParallel = consts.DefaultMaxParallel
	}
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (o RunOptions) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("output_dir", o.OutputDir),
		slog.String("format", o.FormatSelector),
		slog.Int("retry_limit", o.RetryLimit),
		slog.Int("max_parallel", o.MaxParallel),
		slog.Bool("resume", !o.NoResume),
		slog.Int("post_processors", len(o.PostProcessors)),
		slog.Bool("subtitles", o.Subtitles != nil),
		slog.Bool("thumbnail", o.Thumbnail != nil),
	)
}

// Outcome is the terminal result for one dispatched item.
type Outcome struct {
	Item         Item  `json:"item"`
	Succeeded    bool  `json:"succeeded"`
	AttemptsUsed int   `json:"attemptsUsed"`
	Err          error `json:"-"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (o Outcome) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Any("item", o.Item),
		slog.Bool("succeeded", o.Succeeded),
		slog.Int("attempts_used", o.AttemptsUsed),
	}
	if o.Err != nil {
		attrs = append(attrs, slog.String("error", o.Err.Error()))
	}

	return slog.GroupValue(attrs...)
}

// ProgressUpdate is one progress event for one item during one attempt.
// BytesTotal is nil when the engine does not report a total.
type ProgressUpdate struct {
	Item            Item    `json:"item"`
	BytesDownloaded int64   `json:"bytesDownloaded"`
	BytesTotal      *int64  `json:"bytesTotal,omitempty"`
	Percent         float64 `json:"percent"`
}
