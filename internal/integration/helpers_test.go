//go:build integration
// +build integration

package integration_test

import (
	_ "embed"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"vidgrab/internal/config"
	"vidgrab/internal/depmanager"
	"vidgrab/internal/engine"
)

//go:embed testdata/fake-ytdlp.sh
var fakeYTDLPScript string

const fakeVideoURL = "https://example.com/watch?v=vid-123"

type engineFixture struct {
	cfg      *config.Config
	log      *slog.Logger
	eng      engine.Engine
	outDir   string
	outFile  string
	argsFile string
}

// newEngineFixture stands up a managed binary directory holding a fake
// yt-dlp plus stub ffmpeg binaries, and an engine wired to them. mode picks
// the fake's scenario.
func newEngineFixture(t *testing.T, mode string) *engineFixture {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake yt-dlp helper is a shell script")
	}

	baseDir := t.TempDir()
	binsDir := filepath.Join(baseDir, "bins")
	outDir := filepath.Join(baseDir, "downloads")

	for _, dir := range []string{binsDir, outDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config new: %v", err)
	}

	cfg.DepManager.BinsDir = binsDir
	cfg.DepManager.UseSystemBinaries = false
	// No checksum sources keeps the install fully offline.
	cfg.DepManager.YTdlpSHA256SumsURL = ""
	cfg.DepManager.FFmpegSHA256SumsURL = ""
	cfg.Dir.Downloads = outDir
	cfg.Dir.CookieFile = ""

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	depMgr := depmanager.New(log, cfg)

	if err := os.WriteFile(depMgr.GetBinaryPath(depmanager.BinaryYTdlp), []byte(fakeYTDLPScript), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}

	for _, name := range []depmanager.BinaryName{depmanager.BinaryFFmpeg, depmanager.BinaryFFprobe} {
		if err := os.WriteFile(depMgr.GetBinaryPath(name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write fake %s: %v", name, err)
		}
	}

	if err := depMgr.InstallAll(t.Context()); err != nil {
		t.Fatalf("install binaries: %v", err)
	}

	argsFile := filepath.Join(baseDir, "args.log")
	t.Setenv("VIDGRAB_FAKE_MODE", mode)
	t.Setenv("VIDGRAB_FAKE_ARGS_FILE", argsFile)

	return &engineFixture{
		cfg:      cfg,
		log:      log,
		eng:      engine.NewYTDLP(log, cfg, depMgr),
		outDir:   outDir,
		outFile:  filepath.Join(outDir, "Fake Video [vid-123].mp4"),
		argsFile: argsFile,
	}
}

func (fx *engineFixture) recordedArgs(t *testing.T) string {
	t.Helper()

	data, err := os.ReadFile(fx.argsFile)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}

	return string(data)
}
