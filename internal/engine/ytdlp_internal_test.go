package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"vidgrab/internal/config"
	"vidgrab/internal/consts"
	"vidgrab/internal/depmanager"
	"vidgrab/internal/entity"
	"vidgrab/internal/errs"
)

func TestClassify(t *testing.T) {
	errExit := errors.New("exit status 1")

	tests := []struct {
		name   string
		err    error
		output string
		want   error
	}{
		{
			name:   "age gate",
			err:    errExit,
			output: "ERROR: [youtube] abc: Sign in to confirm your age",
			want:   errs.ErrAuthRequired,
		},
		{
			name:   "private video",
			err:    errExit,
			output: "ERROR: [youtube] abc: Private video. Sign in if you've been granted access",
			want:   errs.ErrAuthRequired,
		},
		{
			name:   "rate limited",
			err:    errExit,
			output: "ERROR: unable to download video data: HTTP Error 429: Too Many Requests",
			want:   errs.ErrRateLimited,
		},
		{
			name:   "video unavailable",
			err:    errExit,
			output: "ERROR: [youtube] abc: Video unavailable",
			want:   errs.ErrNotFound,
		},
		{
			name:   "http 404",
			err:    errExit,
			output: "ERROR: unable to download video data: HTTP Error 404: Not Found",
			want:   errs.ErrNotFound,
		},
		{
			name:   "network timeout",
			err:    errExit,
			output: "ERROR: unable to download webpage: <urlopen error timed out>",
			want:   errs.ErrTransient,
		},
		{
			name:   "deadline exceeded",
			err:    context.DeadlineExceeded,
			output: "",
			want:   errs.ErrTransient,
		},
		{
			name:   "unrecognized output",
			err:    errExit,
			output: "ERROR: something odd happened",
			want:   errs.ErrUnknown,
		},
		{
			name:   "canceled passes through",
			err:    context.Canceled,
			output: "",
			want:   context.Canceled,
		},
		{
			name:   "missing binary",
			err:    exec.ErrNotFound,
			output: "",
			want:   errs.ErrBinaryNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err, tc.output)
			if !errors.Is(got, tc.want) {
				t.Errorf("classify() = %v, want errors.Is %v", got, tc.want)
			}
		})
	}
}

func TestClassifyKindIsExclusive(t *testing.T) {
	got := classify(errors.New("exit status 1"), "ERROR: HTTP Error 429: Too Many Requests")

	for _, kind := range []error{errs.ErrAuthRequired, errs.ErrNotFound, errs.ErrTransient, errs.ErrUnknown} {
		if errors.Is(got, kind) {
			t.Errorf("classify() also matches %v, want only %v", kind, errs.ErrRateLimited)
		}
	}
}

func TestBuildMetadataArgs(t *testing.T) {
	tests := []struct {
		name string
		url  string
		opts MetadataOptions
		want []string
	}{
		{
			name: "plain",
			url:  "https://example.com/v/1",
			opts: MetadataOptions{},
			want: []string{"-J", "--no-warnings", "https://example.com/v/1"},
		},
		{
			name: "flat playlist with cookies and proxy",
			url:  "https://example.com/playlist/9",
			opts: MetadataOptions{
				FlatPlaylist: true,
				CookieFile:   "/tmp/cookies.txt",
				ProxyURL:     "socks5://127.0.0.1:1080",
			},
			want: []string{
				"-J", "--no-warnings", "--flat-playlist",
				"--cookies", "/tmp/cookies.txt",
				"--proxy", "socks5://127.0.0.1:1080",
				"https://example.com/playlist/9",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := buildMetadataArgs(tc.url, tc.opts)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildDownloadArgs(t *testing.T) {
	tests := []struct {
		name string
		req  DownloadRequest
		want []string
	}{
		{
			name: "video defaults",
			req: DownloadRequest{
				URL: "https://example.com/v/1",
				Options: entity.RunOptions{
					OutputDir:      "/downloads",
					FormatSelector: consts.SelectorBest,
					OutputTemplate: consts.DefaultOutputTemplate,
				},
			},
			want: []string{
				"--newline", "--progress", "--no-warnings", "--no-playlist",
				"-f", consts.SelectorBest,
				"-o", "/downloads/%(title).100s.%(ext)s",
				"--continue",
				"https://example.com/v/1",
			},
		},
		{
			name: "audio extraction without resume",
			req: DownloadRequest{
				URL: "https://example.com/v/2",
				Options: entity.RunOptions{
					OutputDir:      "/music",
					FormatSelector: consts.SelectorBestAudio,
					OutputTemplate: consts.DefaultOutputTemplate,
					PostProcessors: []entity.PostProcessor{
						{Kind: consts.PostProcessorExtractAudio, Codec: "mp3", Quality: "192"},
					},
					NoResume: true,
				},
			},
			want: []string{
				"--newline", "--progress", "--no-warnings", "--no-playlist",
				"-f", consts.SelectorBestAudio,
				"-o", "/music/%(title).100s.%(ext)s",
				"--no-continue",
				"-x", "--audio-format", "mp3", "--audio-quality", "192",
				"https://example.com/v/2",
			},
		},
		{
			name: "subtitles thumbnail cookies and proxy",
			req: DownloadRequest{
				URL: "https://example.com/v/3",
				Options: entity.RunOptions{
					OutputDir:      "/downloads",
					FormatSelector: "22",
					OutputTemplate: consts.DefaultOutputTemplate,
					Subtitles: &entity.SubtitleOptions{
						Languages:     []string{"en", "de"},
						Format:        "srt",
						AutoGenerated: true,
					},
					Thumbnail: &entity.ThumbnailOptions{Embed: true},
				},
				CookieFile: "/tmp/cookies.txt",
				ProxyURL:   "socks5://127.0.0.1:1080",
			},
			want: []string{
				"--newline", "--progress", "--no-warnings", "--no-playlist",
				"-f", "22",
				"-o", "/downloads/%(title).100s.%(ext)s",
				"--continue",
				"--write-subs", "--write-auto-subs",
				"--sub-langs", "en,de",
				"--sub-format", "srt", "--convert-subs", "srt",
				"--write-thumbnail", "--embed-thumbnail",
				"--cookies", "/tmp/cookies.txt",
				"--proxy", "socks5://127.0.0.1:1080",
				"https://example.com/v/3",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := buildDownloadArgs(tc.req)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseProgressLineTotal(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantTotal int64
		wantNil   bool
	}{
		{
			name:      "mebibytes",
			line:      "[download]  50.0% of  100.00MiB at  10.00MiB/s ETA 00:05",
			wantTotal: 100 << 20,
		},
		{
			name:      "estimated gibibytes",
			line:      "[download]  23.4% of ~ 1.50GiB at  10.00MiB/s ETA 02:30",
			wantTotal: 3 << 29,
		},
		{
			name:    "no total",
			line:    "[download]  12.0% of ~  N/A at  1.00MiB/s",
			wantNil: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, total, ok := parseProgressLine(tc.line)
			if !ok {
				t.Fatal("parseProgressLine() ok = false, want true")
			}

			if tc.wantNil {
				if total != nil {
					t.Fatalf("got total = %d, want nil", *total)
				}

				return
			}

			if total == nil {
				t.Fatalf("got total = nil, want %d", tc.wantTotal)
			}

			if *total != tc.wantTotal {
				t.Errorf("got total = %d, want %d", *total, tc.wantTotal)
			}
		})
	}
}

func TestFFmpegDir(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"yt-dlp", "ffmpeg", "ffprobe"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	t.Setenv("PATH", tmpDir)

	cfg := &config.Config{}

	mgr := depmanager.New(slog.Default(), cfg)
	if err := mgr.SetSystemBinaries(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eng := &YTDLP{log: slog.Default(), cfg: cfg, depMgr: mgr}
	if got := eng.ffmpegDir(); got != tmpDir {
		t.Errorf("got %q, want %q", got, tmpDir)
	}

	bare := &YTDLP{log: slog.Default(), cfg: cfg}
	if got := bare.ffmpegDir(); got != "" {
		t.Errorf("got %q, want empty without a manager", got)
	}
}
