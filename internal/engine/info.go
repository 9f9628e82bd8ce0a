package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"vidgrab/pkg/maths"
	"vidgrab/pkg/ptr"
)

// Info is the result of a metadata-only extraction.
type Info struct {
	ID       string
	Title    string
	Uploader string
	Entries  []Entry
	Formats  []Format
}

// IsCollection reports whether the extracted URL expands into child items.
func (i *Info) IsCollection() bool {
	return len(i.Entries) > 0
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", i.ID),
		slog.String("title", i.Title),
		slog.Int("entries", len(i.Entries)),
		slog.Int("formats", len(i.Formats)),
	)
}

// Entry is one child of a collection.
type Entry struct {
	URL   string
	Title string
}

// Format is one stream descriptor offered for an item.
type Format struct {
	ID         string
	Ext        string
	Resolution string
	FPS        int
	VCodec     string
	ACodec     string
	ABR        int
	FileSize   *int64
	Note       string
}

// infoJSON mirrors the single-document JSON yt-dlp prints for -J. Fields are
// pointers because yt-dlp omits or nulls most of them depending on extractor.
type infoJSON struct {
	Type     *string      `json:"_type"`
	ID       *string      `json:"id"`
	Title    *string      `json:"title"`
	Uploader *string      `json:"uploader"`
	Entries  []entryJSON  `json:"entries"`
	Formats  []formatJSON `json:"formats"`
}

type entryJSON struct {
	ID         *string `json:"id"`
	URL        *string `json:"url"`
	WebpageURL *string `json:"webpage_url"`
	Title      *string `json:"title"`
}

type formatJSON struct {
	FormatID       *string  `json:"format_id"`
	Ext            *string  `json:"ext"`
	Resolution     *string  `json:"resolution"`
	FPS            *float64 `json:"fps"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
	ABR            *float64 `json:"abr"`
	FileSize       *int64   `json:"filesize"`
	FileSizeApprox *float64 `json:"filesize_approx"`
	FormatNote     *string  `json:"format_note"`
}

// ParseMetadata decodes the -J output of the engine into an Info. Collection
// children carry their webpage URL when the flat listing provides one.
func ParseMetadata(data []byte) (*Info, error) {
	var raw infoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal info: %w", err)
	}

	info := &Info{
		ID:       ptr.Deref(raw.ID),
		Title:    ptr.Deref(raw.Title),
		Uploader: ptr.Deref(raw.Uploader),
	}

	for _, e := range raw.Entries {
		url := ptr.Deref(e.URL)
		if url == "" {
			url = ptr.Deref(e.WebpageURL)
		}
		if url == "" {
			continue
		}

		info.Entries = append(info.Entries, Entry{
			URL:   url,
			Title: ptr.Deref(e.Title),
		})
	}

	for _, f := range raw.Formats {
		format := Format{
			ID:         ptr.Deref(f.FormatID),
			Ext:        ptr.Deref(f.Ext),
			Resolution: ptr.Deref(f.Resolution),
			FPS:        maths.RoundFloat64ToInt(ptr.Deref(f.FPS)),
			VCodec:     ptr.Deref(f.VCodec),
			ACodec:     ptr.Deref(f.ACodec),
			ABR:        maths.RoundFloat64ToInt(ptr.Deref(f.ABR)),
			Note:       ptr.Deref(f.FormatNote),
		}

		switch {
		case f.FileSize != nil:
			format.FileSize = f.FileSize
		case f.FileSizeApprox != nil:
			format.FileSize = ptr.Of(int64(ptr.Deref(f.FileSizeApprox)))
		}

		info.Formats = append(info.Formats, format)
	}

	return info, nil
}
