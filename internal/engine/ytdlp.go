package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"vidgrab/internal/config"
	"vidgrab/internal/consts"
	"vidgrab/internal/depmanager"
	"vidgrab/internal/errs"
	"vidgrab/pkg/shellquote"

	"golang.org/x/time/rate"
)

const fullProgress = 100

var (
	maxOutputSize = 10 * 1024 * 1024 // 10 MiB scanner buffer
	bufSize       = 4096             // 4 KiB buffer size

	// reProgress matches yt-dlp --newline progress lines:
	//   [download]  50.0% of  100.00MiB at  10.00MiB/s ETA 00:05
	reProgress = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%(?:\s+of\s+~?\s*([0-9.]+)\s*(KiB|MiB|GiB|TiB|B))?`)
)

// sizeUnits maps yt-dlp size suffixes to byte multipliers.
var sizeUnits = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
}

// Marker sets scanned against lowercased yt-dlp output, most specific first.
var (
	authMarkers = []string{
		"sign in",
		"log in",
		"login",
		"private",
		"premium",
		"cookies",
		"members-only",
		"authentication",
	}

	rateMarkers = []string{
		"429",
		"too many requests",
		"rate limit",
		"rate-limit",
	}

	notFoundMarkers = []string{
		"404",
		"not found",
		"video unavailable",
		"no longer available",
		"does not exist",
		"has been removed",
		"account terminated",
	}

	transientMarkers = []string{
		"timed out",
		"timeout",
		"connection reset",
		"connection refused",
		"temporary failure",
		"network is unreachable",
		"unable to download webpage",
		"503",
		"502",
	}
)

// YTDLP drives the yt-dlp binary over a subprocess boundary.
type YTDLP struct {
	log    *slog.Logger
	cfg    *config.Config
	depMgr *depmanager.Manager
}

// NewYTDLP creates a new yt-dlp engine instance.
func NewYTDLP(log *slog.Logger, cfg *config.Config, depMgr *depmanager.Manager) Engine {
	return &YTDLP{
		log:    log.With(slog.String("package", "engine"), slog.String("engine", consts.EngineYTDLP)),
		cfg:    cfg,
		depMgr: depMgr,
	}
}

// Metadata runs a metadata-only extraction and parses the JSON document the
// engine prints.
func (e *YTDLP) Metadata(ctx context.Context, rawURL string, opts MetadataOptions) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.MetadataTimeout)
	defer cancel()

	args := buildMetadataArgs(rawURL, opts)
	binPath := e.binaryPath()

	e.log.DebugContext(ctx, "executing yt-dlp", slog.String("cmd", shellquote.Join(binPath, args)))

	cmd := exec.CommandContext(ctx, binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cerr := classify(err, stderr.String())
		e.log.ErrorContext(ctx, "yt-dlp metadata failed", slog.String("url", rawURL), slog.Any("error", cerr))

		return nil, cerr
	}

	info, err := ParseMetadata(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrMetadataParse, err)
	}

	return info, nil
}

// Download fetches one item, streaming progress lines from the subprocess
// back through onProgress.
func (e *YTDLP) Download(ctx context.Context, req DownloadRequest, onProgress ProgressFunc) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.DownloadTimeout)
	defer cancel()

	args := buildDownloadArgs(req)
	if dir := e.ffmpegDir(); dir != "" {
		args = append([]string{"--ffmpeg-location", dir}, args...)
	}

	binPath := e.binaryPath()

	log := e.log.With(slog.String("url", req.URL))
	log.DebugContext(ctx, "executing yt-dlp", slog.String("cmd", shellquote.Join(binPath, args)))

	cmd := exec.CommandContext(ctx, binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return classify(err, "")
	}

	var (
		stderrBuf strings.Builder
		wg        sync.WaitGroup
	)

	// Read stdout (progress lines)
	wg.Go(func() {
		e.handleProgress(ctx, stdout, onProgress)
	})

	// Read stderr (error diagnostics)
	wg.Go(func() {
		io.Copy(&stderrBuf, stderr)
	})

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		cerr := classify(err, stderrBuf.String())
		log.ErrorContext(ctx, "yt-dlp failed", slog.Any("error", cerr))

		return cerr
	}

	return nil
}

// binaryPath prefers the managed binary over the configured fallback.
func (e *YTDLP) binaryPath() string {
	if e.depMgr != nil {
		if path := e.depMgr.GetInstalledPath(depmanager.BinaryYTdlp); path != "" {
			return path
		}
	}

	return e.cfg.Engine.Binary
}

// ffmpegDir points yt-dlp at the managed ffmpeg install. Empty when there is
// no managed install; yt-dlp then resolves ffmpeg from PATH on its own.
func (e *YTDLP) ffmpegDir() string {
	if e.depMgr == nil {
		return ""
	}

	if path := e.depMgr.GetInstalledPath(depmanager.BinaryFFmpeg); path != "" {
		return filepath.Dir(path)
	}

	return ""
}

func (e *YTDLP) handleProgress(ctx context.Context, reader io.Reader, onProgress ProgressFunc) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, bufSize), maxOutputSize)
	scanner.Split(splitLinesAny)

	limiter := rate.NewLimiter(rate.Every(consts.DefaultProgressFreq), 1)

	for scanner.Scan() {
		percent, total, ok := parseProgressLine(scanner.Text())
		if !ok {
			continue
		}

		// Rate limit updates, but always deliver the terminal one.
		if percent < fullProgress && !limiter.Allow() {
			continue
		}

		var downloaded int64
		if total != nil {
			downloaded = int64(float64(*total) * percent / fullProgress)
		}

		e.log.DebugContext(ctx, "download progress", slog.Float64("percent", percent))

		if onProgress != nil {
			onProgress(downloaded, total, percent)
		}
	}
}

func buildMetadataArgs(rawURL string, opts MetadataOptions) []string {
	args := []string{"-J", "--no-warnings"}

	if opts.FlatPlaylist {
		args = append(args, "--flat-playlist")
	}

	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}

	if opts.ProxyURL != "" {
		args = append(args, "--proxy", opts.ProxyURL)
	}

	return append(args, rawURL)
}

func buildDownloadArgs(req DownloadRequest) []string {
	opts := req.Options

	args := []string{
		"--newline",
		"--progress",
		"--no-warnings",
		"--no-playlist",
		"-f", opts.FormatSelector,
		"-o", filepath.Join(opts.OutputDir, opts.OutputTemplate),
	}

	if opts.NoResume {
		args = append(args, "--no-continue")
	} else {
		args = append(args, "--continue")
	}

	for _, pp := range opts.PostProcessors {
		if pp.Kind != consts.PostProcessorExtractAudio {
			continue
		}

		args = append(args, "-x", "--audio-format", pp.Codec)
		if pp.Quality != "" {
			args = append(args, "--audio-quality", pp.Quality)
		}
	}

	if subs := opts.Subtitles; subs != nil {
		args = append(args, "--write-subs")

		if subs.AutoGenerated {
			args = append(args, "--write-auto-subs")
		}

		if len(subs.Languages) > 0 {
			args = append(args, "--sub-langs", strings.Join(subs.Languages, ","))
		}

		if subs.Format != "" {
			args = append(args, "--sub-format", subs.Format, "--convert-subs", subs.Format)
		}
	}

	if thumb := opts.Thumbnail; thumb != nil {
		if thumb.HighQuality {
			args = append(args, "--write-all-thumbnails")
		} else {
			args = append(args, "--write-thumbnail")
		}

		if thumb.Embed {
			args = append(args, "--embed-thumbnail")
		}
	}

	if req.CookieFile != "" {
		args = append(args, "--cookies", req.CookieFile)
	}

	if req.ProxyURL != "" {
		args = append(args, "--proxy", req.ProxyURL)
	}

	return append(args, req.URL)
}

// classify maps a failed engine invocation onto one of the errs failure
// kinds by scanning the process output for known markers. Context
// cancellation and a missing binary pass through as themselves.
func classify(err error, output string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("yt-dlp: %w", err)
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: %v", errs.ErrBinaryNotFound, err)
	}

	lower := strings.ToLower(output)

	kind := errs.ErrUnknown

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = errs.ErrTransient
	case containsAny(lower, authMarkers):
		kind = errs.ErrAuthRequired
	case containsAny(lower, rateMarkers):
		kind = errs.ErrRateLimited
	case containsAny(lower, notFoundMarkers):
		kind = errs.ErrNotFound
	case containsAny(lower, transientMarkers):
		kind = errs.ErrTransient
	}

	return fmt.Errorf("yt-dlp: %s: %w", summarizeOutput(output, err), kind)
}

func containsAny(lower string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}

// summarizeOutput picks one line of engine output for the error message,
// preferring lines yt-dlp marked as errors.
func summarizeOutput(output string, err error) string {
	var first string

	for line := range strings.SplitSeq(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if first == "" {
			first = line
		}

		if strings.Contains(line, "ERROR:") {
			return line
		}
	}

	if first != "" {
		return first
	}

	return err.Error()
}

// ParseProgress extracts the completion percentage from a yt-dlp progress
// line. Returns false when the line does not report progress.
func ParseProgress(line string) (float64, bool) {
	percent, _, ok := parseProgressLine(line)

	return percent, ok
}

func parseProgressLine(line string) (float64, *int64, bool) {
	matches := reProgress.FindStringSubmatch(strings.TrimSpace(line))
	if matches == nil {
		return 0, nil, false
	}

	percent, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, nil, false
	}

	var total *int64

	if matches[2] != "" {
		if size, ok := parseSize(matches[2], matches[3]); ok {
			total = &size
		}
	}

	return percent, total, true
}

// parseSize converts a yt-dlp size like "100.00" + "MiB" to bytes.
func parseSize(num, unit string) (int64, bool) {
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}

	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, false
	}

	return int64(value * mult), true
}

// splitLinesAny splits on \n, \r or \r\n so carriage-return progress
// rewrites are scanned as individual lines.
func splitLinesAny(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1

		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					advance = i + 2
				}
			} else if !atEOF {
				// Lone \r at the buffer edge, need more data to detect \r\n.
				return 0, nil, nil
			}
		}

		return advance, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}
