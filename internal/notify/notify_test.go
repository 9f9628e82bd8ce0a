package notify_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"vidgrab/internal/notify"
)

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(context.Context, string, string) error {
	s.calls++

	return s.err
}

func TestMultiDeliversToAllDespiteFailures(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	failing := &stubNotifier{err: errors.New("no dbus session")}
	working := &stubNotifier{}

	multi := notify.NewMulti(log, failing, working)

	if err := multi.Notify(t.Context(), "All done", "2 of 2 items downloaded"); err != nil {
		t.Fatalf("Notify() error = %v, want nil", err)
	}

	if failing.calls != 1 || working.calls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", failing.calls, working.calls)
	}
}

func TestMultiEmpty(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := notify.NewMulti(log).Notify(t.Context(), "All done", ""); err != nil {
		t.Fatalf("Notify() error = %v, want nil", err)
	}
}
