// Package linkfile reads link-list files. Plain text files carry one url
// per line; m3u/m3u8 playlists are decoded and their entry URIs collected.
package linkfile

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vidgrab/internal/errs"
	"vidgrab/pkg/urls"

	"github.com/grafov/m3u8"
)

// Reader parses link-list files into download candidates.
type Reader struct {
	log *slog.Logger
}

// New creates a link file reader.
func New(log *slog.Logger) *Reader {
	return &Reader{log: log.With(slog.String("package", "linkfile"))}
}

// Read returns the absolute http(s) URLs listed in the file at path. The
// format is picked by extension: m3u and m3u8 decode as playlists,
// everything else as one url per line. A file yielding no usable URLs is an
// error.
func (r *Reader) Read(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open link file: %w", err)
	}
	defer file.Close()

	var links []string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u", ".m3u8":
		links, err = r.readPlaylist(file)
	default:
		links, err = r.readLines(file)
	}

	if err != nil {
		return nil, err
	}

	if len(links) == 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrLinkFileEmpty, path)
	}

	return links, nil
}

// readLines collects one url per line, ignoring blanks and # comments.
// Lines without a recognized scheme cannot be downloaded and are skipped.
func (r *Reader) readLines(file io.Reader) ([]string, error) {
	var links []string

	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++

		line := urls.CleanLink(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !urls.HasScheme(line) {
			skipped++
			r.log.Warn("skipping line without a recognized scheme",
				slog.Int("line", lineNo),
				slog.String("text", line))

			continue
		}

		links = append(links, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read link file: %w", err)
	}

	if skipped > 0 {
		r.log.Warn("link file lines skipped", slog.Int("count", skipped))
	}

	return links, nil
}

// readPlaylist collects segment URIs from a media playlist or variant URIs
// from a master playlist. Relative URIs are skipped since the engine needs
// absolute URLs.
func (r *Reader) readPlaylist(file io.Reader) ([]string, error) {
	playlist, listType, err := m3u8.DecodeFrom(file, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrPlaylistFormat, err)
	}

	var raw []string

	switch listType {
	case m3u8.MEDIA:
		media, ok := playlist.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, errs.ErrPlaylistFormat
		}

		for _, segment := range media.Segments {
			if segment != nil {
				raw = append(raw, segment.URI)
			}
		}
	case m3u8.MASTER:
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, errs.ErrPlaylistFormat
		}

		for _, variant := range master.Variants {
			if variant != nil {
				raw = append(raw, variant.URI)
			}
		}
	default:
		return nil, errs.ErrPlaylistFormat
	}

	links := make([]string, 0, len(raw))
	skipped := 0

	for _, uri := range raw {
		if !urls.HasScheme(uri) {
			skipped++

			continue
		}

		links = append(links, uri)
	}

	if skipped > 0 {
		r.log.Warn("skipped relative playlist entries", slog.Int("count", skipped))
	}

	return links, nil
}
