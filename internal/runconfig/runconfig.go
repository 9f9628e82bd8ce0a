// Package runconfig owns the configuration that lives across runs: the base
// download directory, named category directories, the default category, the
// last-used path, and the retry/parallelism bounds that seed each batch.
// Every mutation is written through to the store immediately; a failed save
// is logged and the change kept in memory for the session.
package runconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"vidgrab/internal/errs"
)

// RunConfig is the persisted cross-run configuration.
type RunConfig struct {
	OutputDirectory string            `yaml:"outputDirectory"`
	MaxParallel     int               `yaml:"maxParallel"`
	RetryLimit      int               `yaml:"retryLimit"`
	Categories      map[string]string `yaml:"categories,omitempty"`
	DefaultCategory string            `yaml:"defaultCategory,omitempty"`
	LastUsedPath    string            `yaml:"lastUsedPath,omitempty"`
}

func (c RunConfig) clone() RunConfig {
	c.Categories = maps.Clone(c.Categories)

	return c
}

// Store persists one RunConfig document.
type Store interface {
	Load() (RunConfig, error)
	Save(RunConfig) error
}

// Manager serializes access to the run configuration and writes every
// mutation through to the store.
type Manager struct {
	log   *slog.Logger
	store Store

	mu  sync.RWMutex
	cfg RunConfig
}

// NewManager loads the configuration once. A missing file is created with
// the given defaults; an unreadable one degrades to the defaults for this
// session without touching the file.
func NewManager(log *slog.Logger, store Store, defaults RunConfig) *Manager {
	m := &Manager{
		log:   log.With(slog.String("package", "runconfig")),
		store: store,
	}

	cfg, err := store.Load()

	switch {
	case errors.Is(err, fs.ErrNotExist):
		m.cfg = defaults.clone()
		m.persist()
	case err != nil:
		m.log.Warn("run config unreadable, using defaults for this session", slog.Any("error", err))
		m.cfg = defaults.clone()
	default:
		m.cfg = m.normalize(cfg, defaults)
	}

	return m
}

// normalize repairs a loaded config so the run invariants hold even after
// hand edits: empty or non-positive fields fall back to the defaults, and a
// default category that no longer exists is cleared.
func (m *Manager) normalize(cfg, defaults RunConfig) RunConfig {
	if cfg.OutputDirectory == "" {
		cfg.OutputDirectory = defaults.OutputDirectory
	}

	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = defaults.MaxParallel
	}

	if cfg.RetryLimit < 1 {
		cfg.RetryLimit = defaults.RetryLimit
	}

	if cfg.DefaultCategory != "" {
		if _, ok := cfg.Categories[cfg.DefaultCategory]; !ok {
			m.log.Warn("default category no longer exists, clearing it",
				slog.String("category", cfg.DefaultCategory))
			cfg.DefaultCategory = ""
		}
	}

	return cfg
}

// persist writes the current config through to the store. Callers hold the
// write lock. Save failures must not fail the mutation, so they are logged
// and swallowed.
func (m *Manager) persist() {
	if err := m.store.Save(m.cfg.clone()); err != nil {
		m.log.Warn("run config save failed, changes kept in memory", slog.Any("error", err))
	}
}

// Current returns a copy of the configuration.
func (m *Manager) Current() RunConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.cfg.clone()
}

// Categories returns a copy of the category map.
func (m *Manager) Categories() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.cfg.Categories)
}

// AddCategory creates a named download directory.
func (m *Manager) AddCategory(name, path string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.ErrCategoryName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cfg.Categories[name]; ok {
		return fmt.Errorf("%w: %s", errs.ErrCategoryExists, name)
	}

	if m.cfg.Categories == nil {
		m.cfg.Categories = make(map[string]string)
	}

	m.cfg.Categories[name] = strings.TrimSpace(path)
	m.persist()

	return nil
}

// RenameCategory renames a category, carrying the default marker along when
// it pointed at the old name.
func (m *Manager) RenameCategory(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return errs.ErrCategoryName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path, ok := m.cfg.Categories[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrCategoryNotFound, oldName)
	}

	if _, ok := m.cfg.Categories[newName]; ok && newName != oldName {
		return fmt.Errorf("%w: %s", errs.ErrCategoryExists, newName)
	}

	delete(m.cfg.Categories, oldName)
	m.cfg.Categories[newName] = path

	if m.cfg.DefaultCategory == oldName {
		m.cfg.DefaultCategory = newName
	}

	m.persist()

	return nil
}

// SetCategoryPath changes where an existing category points.
func (m *Manager) SetCategoryPath(name, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cfg.Categories[name]; !ok {
		return fmt.Errorf("%w: %s", errs.ErrCategoryNotFound, name)
	}

	m.cfg.Categories[name] = strings.TrimSpace(path)
	m.persist()

	return nil
}

// DeleteCategory removes a category. When it was the default, the default
// marker is cleared as well.
func (m *Manager) DeleteCategory(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cfg.Categories[name]; !ok {
		return fmt.Errorf("%w: %s", errs.ErrCategoryNotFound, name)
	}

	delete(m.cfg.Categories, name)

	if m.cfg.DefaultCategory == name {
		m.cfg.DefaultCategory = ""
	}

	m.persist()

	return nil
}

// SetDefaultCategory marks an existing category as the target used when no
// interactive choice is made.
func (m *Manager) SetDefaultCategory(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cfg.Categories[name]; !ok {
		return fmt.Errorf("%w: %s", errs.ErrCategoryNotFound, name)
	}

	m.cfg.DefaultCategory = name
	m.persist()

	return nil
}

// ClearDefaultCategory removes the default category marker.
func (m *Manager) ClearDefaultCategory() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.DefaultCategory = ""
	m.persist()
}

// SetBasePath changes the base download directory.
func (m *Manager) SetBasePath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.OutputDirectory = strings.TrimSpace(path)
	m.persist()
}

// SetLimits updates the persisted parallelism and retry bounds. Values
// below one are raised to one.
func (m *Manager) SetLimits(maxParallel, retryLimit int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.MaxParallel = max(maxParallel, 1)
	m.cfg.RetryLimit = max(retryLimit, 1)
	m.persist()
}

// SetLastUsed records the directory the user just confirmed. Called on every
// target selection, before the batch starts.
func (m *Manager) SetLastUsed(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.LastUsedPath = strings.TrimSpace(path)
	m.persist()
}

// EffectiveTarget resolves the output directory for a run: the default
// category's path when set, else the last-used path, else the base download
// directory.
func (m *Manager) EffectiveTarget() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cfg.DefaultCategory != "" {
		if path, ok := m.cfg.Categories[m.cfg.DefaultCategory]; ok {
			return path
		}
	}

	if m.cfg.LastUsedPath != "" {
		return m.cfg.LastUsedPath
	}

	return m.cfg.OutputDirectory
}
