package runconfig_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"testing"

	"vidgrab/internal/errs"
	"vidgrab/internal/runconfig"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func testDefaults() runconfig.RunConfig {
	return runconfig.RunConfig{
		OutputDirectory: "/base",
		MaxParallel:     2,
		RetryLimit:      3,
	}
}

func newTestManager(t *testing.T) (*runconfig.Manager, *runconfig.FileStore) {
	t.Helper()

	store := runconfig.NewFileStore(t.TempDir())
	mgr := runconfig.NewManager(testLogger(), store, testDefaults())

	return mgr, store
}

func TestManagerFirstRunCreatesFile(t *testing.T) {
	mgr, store := newTestManager(t)

	if _, err := os.Stat(store.Path()); err != nil {
		t.Fatalf("config file not created on first run: %v", err)
	}

	got := mgr.Current()
	if got.OutputDirectory != "/base" || got.MaxParallel != 2 || got.RetryLimit != 3 {
		t.Errorf("Current() = %+v, want defaults", got)
	}
}

func TestManagerCategoryLifecycle(t *testing.T) {
	mgr, _ := newTestManager(t)

	if err := mgr.AddCategory("Music", "/m"); err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}

	if err := mgr.AddCategory("Music", "/other"); !errors.Is(err, errs.ErrCategoryExists) {
		t.Errorf("duplicate AddCategory() error = %v, want %v", err, errs.ErrCategoryExists)
	}

	if err := mgr.AddCategory("  ", "/x"); !errors.Is(err, errs.ErrCategoryName) {
		t.Errorf("blank AddCategory() error = %v, want %v", err, errs.ErrCategoryName)
	}

	if err := mgr.SetDefaultCategory("Music"); err != nil {
		t.Fatalf("SetDefaultCategory() error = %v", err)
	}

	if err := mgr.SetDefaultCategory("Nope"); !errors.Is(err, errs.ErrCategoryNotFound) {
		t.Errorf("SetDefaultCategory(missing) error = %v, want %v", err, errs.ErrCategoryNotFound)
	}

	if err := mgr.RenameCategory("Music", "Tunes"); err != nil {
		t.Fatalf("RenameCategory() error = %v", err)
	}

	got := mgr.Current()
	if got.DefaultCategory != "Tunes" {
		t.Errorf("default did not follow rename: %q", got.DefaultCategory)
	}

	if got.Categories["Tunes"] != "/m" {
		t.Errorf("Categories[Tunes] = %q, want /m", got.Categories["Tunes"])
	}

	if err := mgr.SetCategoryPath("Tunes", "/tunes"); err != nil {
		t.Fatalf("SetCategoryPath() error = %v", err)
	}

	if err := mgr.DeleteCategory("Tunes"); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	got = mgr.Current()
	if got.DefaultCategory != "" {
		t.Errorf("default not cleared by delete: %q", got.DefaultCategory)
	}

	if err := mgr.DeleteCategory("Tunes"); !errors.Is(err, errs.ErrCategoryNotFound) {
		t.Errorf("DeleteCategory(missing) error = %v, want %v", err, errs.ErrCategoryNotFound)
	}
}

// Every mutation must land in the file immediately, not at process exit.
func TestManagerWriteThrough(t *testing.T) {
	mgr, store := newTestManager(t)

	if err := mgr.AddCategory("Podcasts", "/p"); err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}

	mgr.SetLastUsed("/recent")

	fresh := runconfig.NewManager(testLogger(), store, testDefaults())

	got := fresh.Current()
	if got.Categories["Podcasts"] != "/p" {
		t.Errorf("reloaded Categories[Podcasts] = %q, want /p", got.Categories["Podcasts"])
	}

	if got.LastUsedPath != "/recent" {
		t.Errorf("reloaded LastUsedPath = %q, want /recent", got.LastUsedPath)
	}
}

func TestManagerEffectiveTarget(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, mgr *runconfig.Manager)
		want  string
	}{
		{
			name: "default category wins",
			setup: func(t *testing.T, mgr *runconfig.Manager) {
				t.Helper()
				if err := mgr.AddCategory("Music", "/m"); err != nil {
					t.Fatal(err)
				}
				if err := mgr.SetDefaultCategory("Music"); err != nil {
					t.Fatal(err)
				}
				mgr.SetLastUsed("/x")
			},
			want: "/m",
		},
		{
			name: "last used when no default",
			setup: func(t *testing.T, mgr *runconfig.Manager) {
				t.Helper()
				mgr.SetLastUsed("/x")
			},
			want: "/x",
		},
		{
			name:  "base path when nothing else",
			setup: func(_ *testing.T, _ *runconfig.Manager) {},
			want:  "/base",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, _ := newTestManager(t)
			tt.setup(t, mgr)

			if got := mgr.EffectiveTarget(); got != tt.want {
				t.Errorf("EffectiveTarget() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Loading and re-saving an untouched config must not churn the file.
func TestFileStoreRoundTripStable(t *testing.T) {
	mgr, store := newTestManager(t)

	if err := mgr.AddCategory("Music", "/m"); err != nil {
		t.Fatal(err)
	}

	if err := mgr.AddCategory("Clips", "/c"); err != nil {
		t.Fatal(err)
	}

	if err := mgr.SetDefaultCategory("Music"); err != nil {
		t.Fatal(err)
	}

	original, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read config file: %v", err)
	}

	for i := range 2 {
		cfg, err := store.Load()
		if err != nil {
			t.Fatalf("Load() round %d: %v", i, err)
		}

		if err := store.Save(cfg); err != nil {
			t.Fatalf("Save() round %d: %v", i, err)
		}

		rewritten, err := os.ReadFile(store.Path())
		if err != nil {
			t.Fatalf("read config file round %d: %v", i, err)
		}

		if !bytes.Equal(original, rewritten) {
			t.Fatalf("round %d changed the file\nbefore:\n%s\nafter:\n%s", i, original, rewritten)
		}
	}
}

func TestManagerUnreadableFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	store := runconfig.NewFileStore(dir)

	garbage := []byte("outputDirectory: [this is not\n\tvalid yaml")
	if err := os.WriteFile(store.Path(), garbage, 0o644); err != nil {
		t.Fatal(err)
	}

	mgr := runconfig.NewManager(testLogger(), store, testDefaults())

	got := mgr.Current()
	if got.OutputDirectory != "/base" || got.MaxParallel != 2 {
		t.Errorf("Current() = %+v, want session defaults", got)
	}

	after, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(garbage, after) {
		t.Error("unreadable config file was rewritten; it should be left for the user to inspect")
	}
}

func TestManagerNormalizesHandEdits(t *testing.T) {
	dir := t.TempDir()
	store := runconfig.NewFileStore(dir)

	edited := []byte("outputDirectory: /edited\nmaxParallel: 0\nretryLimit: -2\ndefaultCategory: Ghost\n")
	if err := os.WriteFile(store.Path(), edited, 0o644); err != nil {
		t.Fatal(err)
	}

	mgr := runconfig.NewManager(testLogger(), store, testDefaults())

	got := mgr.Current()
	if got.OutputDirectory != "/edited" {
		t.Errorf("OutputDirectory = %q, want /edited", got.OutputDirectory)
	}

	if got.MaxParallel != 2 || got.RetryLimit != 3 {
		t.Errorf("limits = (%d, %d), want defaults (2, 3)", got.MaxParallel, got.RetryLimit)
	}

	if got.DefaultCategory != "" {
		t.Errorf("DefaultCategory = %q, want cleared", got.DefaultCategory)
	}
}

// failingStore accepts loads but rejects every save.
type failingStore struct {
	saveErr error
	saves   int
}

var _ runconfig.Store = (*failingStore)(nil)

func (s *failingStore) Load() (runconfig.RunConfig, error) {
	return runconfig.RunConfig{}, os.ErrNotExist
}

func (s *failingStore) Save(runconfig.RunConfig) error {
	s.saves++

	return s.saveErr
}

func TestManagerSaveFailureKeepsChange(t *testing.T) {
	store := &failingStore{saveErr: errors.New("disk full")}
	mgr := runconfig.NewManager(testLogger(), store, testDefaults())

	if err := mgr.AddCategory("Music", "/m"); err != nil {
		t.Fatalf("AddCategory() error = %v, want nil despite failing save", err)
	}

	if got := mgr.Current().Categories["Music"]; got != "/m" {
		t.Errorf("Categories[Music] = %q, want /m kept in memory", got)
	}

	if store.saves == 0 {
		t.Error("save was never attempted")
	}
}
