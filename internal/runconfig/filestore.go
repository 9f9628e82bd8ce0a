package runconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"vidgrab/internal/consts"

	"gopkg.in/yaml.v2"
)

const fileHeader = `# vidgrab run configuration.
# Managed by the interactive menu; hand edits are picked up on next start.
`

// FileStore persists the run configuration as a YAML file. Marshaling is
// deterministic (sorted map keys), so saving an unchanged config rewrites
// the file byte for byte.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store under dir using the standard file name.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, consts.RunConfigFileName)}
}

// Path returns the file the store reads and writes.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads and decodes the config file. A missing file surfaces as
// fs.ErrNotExist in the error chain.
func (s *FileStore) Load() (RunConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read run config: %w", err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse run config %s: %w", s.path, err)
	}

	return cfg, nil
}

// Save encodes and writes the config file, creating the directory when
// needed.
func (s *FileStore) Save(cfg RunConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := os.WriteFile(s.path, append([]byte(fileHeader), data...), 0o644); err != nil {
		return fmt.Errorf("write run config: %w", err)
	}

	return nil
}
