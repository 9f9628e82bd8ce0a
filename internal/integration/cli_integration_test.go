//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"vidgrab/internal/cli"
	"vidgrab/internal/linkfile"
	"vidgrab/internal/progress"
	"vidgrab/internal/resolver"
	"vidgrab/internal/run"
	"vidgrab/internal/runconfig"
)

type scriptedInput struct {
	lines []string
	next  int
}

func (s *scriptedInput) Line(string) (string, error) {
	if s.next >= len(s.lines) {
		return "", io.EOF
	}

	line := s.lines[s.next]
	s.next++

	return strings.TrimSpace(line), nil
}

type recordingNotifier struct {
	bodies []string
}

func (n *recordingNotifier) Notify(_ context.Context, _, body string) error {
	n.bodies = append(n.bodies, body)

	return nil
}

type silentSink struct {
	progress.Sink
}

func (silentSink) Wait() {}

// TestMenuDrivenDownload walks the whole stack: menu input through the
// resolver and coordinator down to a real yt-dlp subprocess (the fake one).
func TestMenuDrivenDownload(t *testing.T) {
	fx := newEngineFixture(t, "success")

	runCfg := runconfig.NewManager(fx.log, runconfig.NewFileStore(t.TempDir()), runconfig.RunConfig{
		OutputDirectory: fx.outDir,
		MaxParallel:     2,
		RetryLimit:      2,
	})

	out := &bytes.Buffer{}
	notes := &recordingNotifier{}

	var opened []string

	app := cli.New(fx.log, fx.cfg, cli.Deps{
		RunConfig: runCfg,
		Engine:    fx.eng,
		Resolver:  resolver.New(fx.log, fx.cfg, fx.eng, nil, nil),
		Runner:    run.New(fx.log, fx.eng, nil, nil),
		Links:     linkfile.New(fx.log),
		Notifier:  notes,
		Input: &scriptedInput{lines: []string{
			"2",          // start downloading
			"",           // confirm the current target
			fakeVideoURL, // one link
			"",           // done entering links
			"b",          // best quality
			"n",          // no subtitles
			"n",          // no thumbnail
			"n",          // no second run
		}},
		Output:  out,
		NewSink: func() cli.BatchSink { return silentSink{progress.Noop()} },
		OpenFolder: func(_ context.Context, dir string) error {
			opened = append(opened, dir)

			return nil
		},
	})

	app.Run(t.Context())

	if _, err := os.Stat(fx.outFile); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}

	if len(notes.bodies) != 1 || notes.bodies[0] != "1 of 1 downloads finished" {
		t.Errorf("notifications = %v, want one '1 of 1 downloads finished'", notes.bodies)
	}

	if len(opened) != 1 || opened[0] != fx.outDir {
		t.Errorf("opened folders = %v, want [%s]", opened, fx.outDir)
	}

	output := out.String()

	for _, want := range []string{"Fetching available formats...", "All 1 downloads finished."} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}

	if got := runCfg.Current().LastUsedPath; got != fx.outDir {
		t.Errorf("LastUsedPath = %q, want %q", got, fx.outDir)
	}
}
