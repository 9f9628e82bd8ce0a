package resolver_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"vidgrab/internal/config"
	"vidgrab/internal/engine"
	"vidgrab/internal/errs"
	"vidgrab/internal/resolver"
)

const (
	testVideoURL    = "https://example.com/watch?v=abc123"
	testPlaylistURL = "https://example.com/playlist?list=xyz"
)

func newTestResolver(t *testing.T, prompt resolver.CredentialFunc) (*resolver.Resolver, *engine.Mock) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config.New() failed: %v", err)
	}

	cfg.Dir.CookieFile = ""

	mock := engine.NewMock(log)

	return resolver.New(log, cfg, mock, prompt, nil), mock
}

func writeCookieFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte("# Netscape HTTP Cookie File\n"), 0o644); err != nil {
		t.Fatalf("write cookie file: %v", err)
	}

	return path
}

func TestResolveSingle(t *testing.T) {
	res, mock := newTestResolver(t, nil)
	mock.SetInfo(testVideoURL, &engine.Info{ID: "abc123", Title: "My Video"})

	items, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	if items[0].URL != testVideoURL {
		t.Errorf("got URL = %q, want %q", items[0].URL, testVideoURL)
	}

	if items[0].Title != "My Video" {
		t.Errorf("got Title = %q, want %q", items[0].Title, "My Video")
	}

	if items[0].ID == "" {
		t.Error("got empty item ID")
	}
}

func TestResolveIdempotent(t *testing.T) {
	res, mock := newTestResolver(t, nil)
	mock.SetInfo(testVideoURL, &engine.Info{ID: "abc123", Title: "My Video"})

	first, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("first Resolve() failed: %v", err)
	}

	second, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("second Resolve() failed: %v", err)
	}

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("got %d and %d items, want 1 and 1", len(first), len(second))
	}

	if first[0] != second[0] {
		t.Errorf("got different items across resolves: %+v vs %+v", first[0], second[0])
	}
}

func TestResolveCollection(t *testing.T) {
	res, mock := newTestResolver(t, nil)
	mock.SetInfo(testPlaylistURL, &engine.Info{
		ID:    "xyz",
		Title: "Road Trip Mix",
		Entries: []engine.Entry{
			{URL: "https://example.com/watch?v=one", Title: "First"},
			{URL: "https://example.com/watch?v=two", Title: "Second"},
			{URL: "https://example.com/watch?v=three", Title: "Third"},
		},
	})

	items, err := res.Resolve(t.Context(), testPlaylistURL)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	if items[1].URL != "https://example.com/watch?v=two" {
		t.Errorf("got URL = %q, want second entry URL", items[1].URL)
	}

	if items[2].Title != "Third" {
		t.Errorf("got Title = %q, want %q", items[2].Title, "Third")
	}
}

func TestResolveRejectsBadURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want error
	}{
		{name: "empty", url: "", want: errs.ErrEmptyURL},
		{name: "whitespace only", url: "   ", want: errs.ErrEmptyURL},
		{name: "no scheme", url: "example.com/watch?v=abc", want: errs.ErrInvalidScheme},
		{name: "ftp scheme", url: "ftp://example.com/file", want: errs.ErrInvalidScheme},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, _ := newTestResolver(t, nil)

			if _, err := res.Resolve(t.Context(), tc.url); !errors.Is(err, tc.want) {
				t.Errorf("Resolve(%q) error = %v, want %v", tc.url, err, tc.want)
			}
		})
	}
}

func TestResolveNonAuthFailurePassesThrough(t *testing.T) {
	prompted := false
	prompt := func(_ context.Context, _ string) (string, error) {
		prompted = true

		return writeCookieFile(t), nil
	}

	res, mock := newTestResolver(t, prompt)
	mock.FailMetadata(testVideoURL, errs.ErrNotFound)

	items, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 passed-through item", len(items))
	}

	if items[0].URL != testVideoURL || items[0].Title != testVideoURL {
		t.Errorf("got item %+v, want url passed through with url as title", items[0])
	}

	if prompted {
		t.Error("prompt invoked for a non-auth failure")
	}
}

func TestResolveAuthRetry(t *testing.T) {
	cookieFile := writeCookieFile(t)

	prompted := 0
	prompt := func(_ context.Context, _ string) (string, error) {
		prompted++

		return cookieFile, nil
	}

	res, mock := newTestResolver(t, prompt)
	mock.SetInfo(testVideoURL, &engine.Info{ID: "abc123", Title: "Members Only"})
	mock.RequireCookie(testVideoURL, errs.ErrAuthRequired)

	items, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	if items[0].Title != "Members Only" {
		t.Errorf("got Title = %q, want %q", items[0].Title, "Members Only")
	}

	if prompted != 1 {
		t.Errorf("prompt invoked %d times, want 1", prompted)
	}

	if got := mock.MetadataCalls(testVideoURL); got != 2 {
		t.Errorf("got %d metadata calls, want 2", got)
	}

	if got := res.CookieFile(); got != cookieFile {
		t.Errorf("CookieFile() = %q, want %q", got, cookieFile)
	}

	// the session cookie now applies without another prompt
	if _, err := res.Resolve(t.Context(), testVideoURL); err != nil {
		t.Fatalf("second Resolve() failed: %v", err)
	}

	if prompted != 1 {
		t.Errorf("prompt invoked %d times after second resolve, want 1", prompted)
	}
}

func TestResolveAuthDeclined(t *testing.T) {
	prompt := func(_ context.Context, _ string) (string, error) {
		return "", nil
	}

	res, mock := newTestResolver(t, prompt)
	mock.RequireCookie(testVideoURL, errs.ErrAuthRequired)

	items, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(items) != 0 {
		t.Errorf("got %d items, want 0 for a declined credential", len(items))
	}

	if got := mock.MetadataCalls(testVideoURL); got != 1 {
		t.Errorf("got %d metadata calls, want 1", got)
	}
}

func TestResolveAuthMissingCookieFile(t *testing.T) {
	prompt := func(_ context.Context, _ string) (string, error) {
		return filepath.Join(t.TempDir(), "missing.txt"), nil
	}

	res, mock := newTestResolver(t, prompt)
	mock.RequireCookie(testVideoURL, errs.ErrAuthRequired)

	items, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(items) != 0 {
		t.Errorf("got %d items, want 0 for a missing cookie file", len(items))
	}

	// no retry without a usable credential
	if got := mock.MetadataCalls(testVideoURL); got != 1 {
		t.Errorf("got %d metadata calls, want 1", got)
	}
}

func TestResolveAuthRetryStillFails(t *testing.T) {
	cookieFile := writeCookieFile(t)

	prompt := func(_ context.Context, _ string) (string, error) {
		return cookieFile, nil
	}

	res, mock := newTestResolver(t, prompt)
	mock.FailMetadata(testVideoURL, errs.ErrAuthRequired)

	items, err := res.Resolve(t.Context(), testVideoURL)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if len(items) != 0 {
		t.Errorf("got %d items, want 0 when the retry stays gated", len(items))
	}

	if got := mock.MetadataCalls(testVideoURL); got != 2 {
		t.Errorf("got %d metadata calls, want 2", got)
	}

	// a cookie file that did not work is not kept for the session
	if got := res.CookieFile(); got != "" {
		t.Errorf("CookieFile() = %q, want empty", got)
	}
}
