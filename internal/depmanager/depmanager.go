// Package depmanager bootstraps the external binaries the engine shells out
// to. It downloads yt-dlp and ffmpeg release builds into a managed directory
// and keeps them fresh. Published checksums are used only to detect when new
// versions are available, not to verify downloads.
package depmanager

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"vidgrab/internal/config"
	"vidgrab/internal/errs"

	"github.com/ulikunitz/xz"
)

// BinaryName identifies a managed binary.
type BinaryName string

// Managed binaries. FFprobe ships inside the ffmpeg release archive and is
// installed alongside it.
const (
	BinaryYTdlp   BinaryName = "yt-dlp"
	BinaryFFmpeg  BinaryName = "ffmpeg"
	BinaryFFprobe BinaryName = "ffprobe"
)

// Platform operating system names and architectures.
const (
	platformLinux   = "linux"
	platformWindows = "windows"
	archARM64       = "arm64"
	archAMD64       = "amd64"
)

// Internal constants for binary management.
const (
	// downloadTimeout is the HTTP client timeout for downloading binaries.
	downloadTimeout = 10 * time.Minute
	// filePermExecutable is the file permission for executable binaries.
	filePermExecutable = 0o755
	// filePermReadWrite is the file permission for regular files.
	filePermReadWrite = 0o644
	// sha256HexLength is the expected length of a SHA256 hex string.
	sha256HexLength = 64
	// sha256SumsFieldCount is the expected field count in SHA256SUMS format.
	sha256SumsFieldCount = 2
	// savedSumsFilename is the filename for saved checksums.
	savedSumsFilename = ".sha256sums.json"
)

// Platform represents the OS and architecture combination.
type Platform struct {
	OS   string
	Arch string
}

// String returns the platform string in format "os/arch".
func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// Manager installs and updates binary dependencies.
type Manager struct {
	log      *slog.Logger
	cfg      *config.Config
	platform Platform
	client   *http.Client

	mu        sync.RWMutex
	shaSums   map[string]string     // filename -> sha256 hash (fetched from remote)
	savedSums map[string]string     // filename -> sha256 hash (saved from previous run)
	binPaths  map[BinaryName]string // binary name -> installed path

	isUpdating bool
}

// New creates a new dependency manager.
func New(log *slog.Logger, cfg *config.Config) *Manager {
	return &Manager{
		log: log.With(slog.String("package", "depmanager")),
		cfg: cfg,
		platform: Platform{
			OS:   runtime.GOOS,
			Arch: runtime.GOARCH,
		},
		client: &http.Client{
			Timeout: downloadTimeout,
		},
		shaSums:   make(map[string]string),
		savedSums: make(map[string]string),
		binPaths:  make(map[BinaryName]string),
	}
}

// Start makes the engine binaries available. Managed installs are the
// default; when the platform has no managed builds or the install fails, the
// binaries already on the system PATH are used instead.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.DepManager.UseSystemBinaries {
		return m.SetSystemBinaries()
	}

	err := m.InstallAll(ctx)
	if err == nil {
		m.StartUpdateChecker(ctx)

		return nil
	}

	m.log.WarnContext(ctx, "managed install failed, trying system binaries", slog.Any("error", err))

	if pathErr := m.SetSystemBinaries(); pathErr != nil {
		return fmt.Errorf("install binaries: %w", err)
	}

	return nil
}

// SetSystemBinaries resolves every managed binary from the system PATH.
func (m *Manager) SetSystemBinaries() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	binaries := []BinaryName{BinaryYTdlp, BinaryFFmpeg, BinaryFFprobe}

	for _, binary := range binaries {
		path, err := exec.LookPath(string(binary))
		if err != nil {
			return fmt.Errorf("%s not found in system PATH: %w", binary, err)
		}

		m.binPaths[binary] = path
	}

	return nil
}

// InstallAll downloads missing binaries into the bin dir. Binaries already
// present are kept as-is; the update checker decides later whether to
// replace them.
func (m *Manager) InstallAll(ctx context.Context) error {
	log := m.log

	err := os.MkdirAll(m.cfg.DepManager.BinsDir, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create bins directory: %w", err)
	}

	// Checksums saved by the previous run drive the update comparison.
	err = m.loadSavedSums()
	if err != nil {
		log.DebugContext(ctx, "no saved checksums found, first run", slog.Any("error", err))
	}

	binaries := []BinaryName{BinaryYTdlp, BinaryFFmpeg, BinaryFFprobe}

	for _, binary := range binaries {
		if m.isBinaryExists(binary) {
			m.setInstalledPath(binary, m.GetBinaryPath(binary))
			log.DebugContext(ctx, "binary already exists", slog.String("binary", string(binary)))

			continue
		}

		err = m.downloadAndInstall(ctx, binary)
		if err != nil {
			return fmt.Errorf("download and install %s: %w", binary, err)
		}
	}

	log.InfoContext(ctx, "all binaries are installed", slog.Any("binaries", m.installedPaths()))

	// Fetch and save checksums for future update checks.
	err = m.FetchSHASums(ctx)
	if err != nil {
		log.WarnContext(ctx, "failed to fetch checksums", slog.Any("error", err))

		return nil
	}

	err = m.saveSums()
	if err != nil {
		log.WarnContext(ctx, "failed to save checksums", slog.Any("error", err))
	}

	return nil
}

// GetBinaryPath returns the path a binary installs to under the bin dir.
func (m *Manager) GetBinaryPath(name BinaryName) string {
	return filepath.Join(m.cfg.DepManager.BinsDir, m.platformFilename(string(name)))
}

// GetInstalledPath returns the resolved path for a binary, or empty when it
// is not installed.
func (m *Manager) GetInstalledPath(name BinaryName) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.binPaths[name]
}

// installedPaths returns a snapshot of the resolved binary paths.
func (m *Manager) installedPaths() map[BinaryName]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.binPaths)
}

// StartUpdateChecker starts a background goroutine that periodically checks
// for updates. It compares fetched checksums with saved checksums and
// redownloads a binary when they differ.
func (m *Manager) StartUpdateChecker(ctx context.Context) {
	if m.cfg.DepManager.UpdateInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.DepManager.UpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkAndUpdate(ctx)
			}
		}
	}()
}

// FetchSHASums fetches and parses SHA256 sums from the configured URLs.
func (m *Manager) FetchSHASums(ctx context.Context) error {
	sumsURLs, err := m.CollectSHASumsURLs()
	if err != nil {
		return fmt.Errorf("collect SHA sums URLs: %w", err)
	}

	for _, url := range sumsURLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := m.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch SHA sums: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()

			return fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		if err := m.ParseSHASums(string(body)); err != nil {
			return err
		}
	}

	return nil
}

// CollectSHASumsURLs collects SHA256 sums URLs from the configuration.
func (m *Manager) CollectSHASumsURLs() ([]string, error) {
	var sumsURLs []string

	sources := []string{
		m.cfg.DepManager.YTdlpSHA256SumsURL,
		m.cfg.DepManager.FFmpegSHA256SumsURL,
	}

	for _, raw := range sources {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if strings.Contains(raw, ",") {
			for part := range strings.SplitSeq(raw, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					sumsURLs = append(sumsURLs, part)
				}
			}
		} else {
			sumsURLs = append(sumsURLs, raw)
		}
	}

	if len(sumsURLs) == 0 {
		return nil, fmt.Errorf("no SHA256 sums URLs configured")
	}

	return sumsURLs, nil
}

// ParseSHASums parses SHA256 sums from content in the format "hash  filename".
func (m *Manager) ParseSHASums(content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != sha256SumsFieldCount {
			continue
		}

		hash := parts[0]
		filename := parts[1]

		if len(hash) != sha256HexLength {
			continue
		}

		m.shaSums[filename] = hash
	}

	m.log.Debug("parsed SHA256 sums", slog.Int("count", len(m.shaSums)))

	return nil
}

// checkAndUpdate checks for updates and downloads new versions if available.
func (m *Manager) checkAndUpdate(ctx context.Context) {
	if m.isUpdating {
		return
	}

	m.isUpdating = true
	defer func() { m.isUpdating = false }()

	log := m.log

	err := m.FetchSHASums(ctx)
	if err != nil {
		log.WarnContext(ctx, "update check: failed to fetch checksums", slog.Any("error", err))

		return
	}

	updates := m.findUpdates()
	if len(updates) == 0 {
		log.DebugContext(ctx, "update check: no updates available")

		return
	}

	log.InfoContext(ctx, "update check: updates available", slog.Any("binaries", updates))

	for _, binary := range updates {
		if err := m.downloadAndInstall(ctx, binary); err != nil {
			log.ErrorContext(ctx, "update check: failed to update binary",
				slog.String("binary", string(binary)),
				slog.Any("error", err))

			continue
		}

		log.InfoContext(ctx, "update check: binary updated", slog.String("binary", string(binary)))
	}

	if err := m.saveSums(); err != nil {
		log.WarnContext(ctx, "update check: failed to save checksums", slog.Any("error", err))
	}
}

// findUpdates compares fetched checksums with saved checksums and returns
// binaries that need updating.
func (m *Manager) findUpdates() []BinaryName {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// ffprobe rides in the ffmpeg archive, so the ffmpeg checksum covers it.
	binaryFiles := map[BinaryName][]string{
		BinaryYTdlp:  {m.getDownloadFilename(BinaryYTdlp)},
		BinaryFFmpeg: {m.getDownloadFilename(BinaryFFmpeg)},
	}

	var updates []BinaryName

	for binary, files := range binaryFiles {
		for _, filename := range files {
			newHash, hasNew := m.shaSums[filename]
			oldHash, hasOld := m.savedSums[filename]

			if hasNew && (!hasOld || newHash != oldHash) {
				updates = append(updates, binary)

				break
			}
		}
	}

	return updates
}

// isBinaryExists checks if a binary file exists and has non-zero size.
func (m *Manager) isBinaryExists(name BinaryName) bool {
	binPath := m.GetBinaryPath(name)
	info, err := os.Stat(binPath)

	return err == nil && info.Size() > 0
}

func (m *Manager) setInstalledPath(name BinaryName, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.binPaths[name] = path
}

// downloadAndInstall downloads and installs one binary, along with anything
// else bundled in the same release archive.
func (m *Manager) downloadAndInstall(ctx context.Context, name BinaryName) error {
	log := m.log.With(slog.String("binary", string(name)))

	url, err := m.getBinaryURL(name)
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "downloading binary", slog.String("url", url))

	installed, err := m.downloadDependency(ctx, url, name)
	if err != nil {
		return fmt.Errorf("download dependency: %w", err)
	}

	err = m.makeExecutable(installed)
	if err != nil {
		return fmt.Errorf("make executable: %w", err)
	}

	for _, path := range installed {
		m.setInstalledPath(binaryFromFilename(filepath.Base(path)), path)
	}

	log.InfoContext(ctx, "binary installed", slog.Any("paths", installed))

	return nil
}

// binaryFromFilename maps an installed filename back to its binary name.
func binaryFromFilename(filename string) BinaryName {
	return BinaryName(strings.TrimSuffix(filename, ".exe"))
}

// makeExecutable sets the executable permission on the installed binaries.
func (m *Manager) makeExecutable(binPaths []string) error {
	for _, path := range binPaths {
		err := os.Chmod(path, filePermExecutable)
		if err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	}

	return nil
}

// loadSavedSums loads saved checksums from file.
func (m *Manager) loadSavedSums() error {
	filePath := filepath.Join(m.cfg.DepManager.BinsDir, savedSumsFilename)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read checksums file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := json.Unmarshal(data, &m.savedSums); err != nil {
		return fmt.Errorf("unmarshal checksums: %w", err)
	}

	return nil
}

// saveSums saves current checksums to file for future comparison.
func (m *Manager) saveSums() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.shaSums, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshal checksums: %w", err)
	}

	filePath := filepath.Join(m.cfg.DepManager.BinsDir, savedSumsFilename)

	if err := os.WriteFile(filePath, data, filePermReadWrite); err != nil {
		return fmt.Errorf("write checksums file: %w", err)
	}

	m.mu.Lock()
	m.savedSums = maps.Clone(m.shaSums)
	m.mu.Unlock()

	return nil
}

// getDownloadFilename returns the filename as it appears in SHA256SUMS for a
// binary.
func (m *Manager) getDownloadFilename(name BinaryName) string {
	switch name {
	case BinaryYTdlp:
		switch {
		case m.platform.OS == platformLinux && m.platform.Arch == archARM64:
			return "yt-dlp_linux_aarch64"
		case m.platform.OS == platformLinux:
			return "yt-dlp_linux"
		default:
			return "yt-dlp"
		}
	case BinaryFFmpeg, BinaryFFprobe:
		switch {
		case m.platform.OS == platformLinux && m.platform.Arch == archARM64:
			return "ffmpeg-master-latest-linuxarm64-gpl.tar.xz"
		case m.platform.OS == platformLinux:
			return "ffmpeg-master-latest-linux64-gpl.tar.xz"
		default:
			return "ffmpeg"
		}
	}

	return string(name)
}

func (m *Manager) getBinaryURL(name BinaryName) (string, error) {
	cfg := m.cfg.DepManager

	switch name {
	case BinaryYTdlp:
		return m.selectURL(cfg.YTdlpLinuxARM64, cfg.YTdlpLinuxAMD64)
	case BinaryFFmpeg, BinaryFFprobe:
		// One archive carries both.
		return m.selectURL(cfg.FFmpegLinuxARM64, cfg.FFmpegLinuxAMD64)
	default:
		return "", fmt.Errorf("no download url for %s", name)
	}
}

// selectURL picks the download URL for the current platform. Managed
// installs only ship linux builds; other platforms bring system binaries.
func (m *Manager) selectURL(linuxARM64, linuxAMD64 string) (string, error) {
	if m.platform.OS != platformLinux {
		return "", fmt.Errorf("managed install: %w: %s", errs.ErrUnsupportedPlatform, m.platform)
	}

	if m.platform.Arch == archARM64 && linuxARM64 != "" {
		return linuxARM64, nil
	}

	if linuxAMD64 != "" {
		return linuxAMD64, nil
	}

	return "", fmt.Errorf("managed install: %w: no url configured for %s", errs.ErrUnsupportedPlatform, m.platform)
}

// downloadDependency fetches one release artifact and installs its binaries.
// Returns the installed paths.
func (m *Manager) downloadDependency(ctx context.Context, url string, name BinaryName) ([]string, error) {
	binPath := m.GetBinaryPath(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	destDir := filepath.Dir(binPath)

	tmpFile, err := os.CreateTemp(destDir, "download-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	tmpPath := tmpFile.Name()

	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if !isArchive(url) {
		if err := os.Rename(tmpPath, binPath); err != nil {
			return nil, fmt.Errorf("rename: %w", err)
		}

		return []string{binPath}, nil
	}

	targets := m.archiveTargets(name)

	if err := m.extractFiles(tmpPath, destDir, url, targets); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	installed := make([]string, 0, len(targets))
	for target := range targets {
		installed = append(installed, filepath.Join(destDir, target))
	}

	return installed, nil
}

func isArchive(url string) bool {
	return strings.HasSuffix(url, ".zip") ||
		strings.HasSuffix(url, ".tar.xz") ||
		strings.HasSuffix(url, ".tar.gz")
}

// archiveTargets returns the archive member filenames to install for a
// binary. A download triggered by either ffmpeg or ffprobe pulls both out of
// the shared archive.
func (m *Manager) archiveTargets(name BinaryName) map[string]struct{} {
	targets := make(map[string]struct{})

	switch name {
	case BinaryFFmpeg, BinaryFFprobe:
		targets[m.platformFilename(string(BinaryFFmpeg))] = struct{}{}
		targets[m.platformFilename(string(BinaryFFprobe))] = struct{}{}
	default:
		targets[m.platformFilename(string(name))] = struct{}{}
	}

	return targets
}

// platformFilename appends the executable suffix on Windows.
func (m *Manager) platformFilename(stem string) string {
	if m.platform.OS == platformWindows {
		return stem + ".exe"
	}

	return stem
}

func (m *Manager) extractFiles(archivePath, destDir, url string, targets map[string]struct{}) error {
	switch {
	case strings.HasSuffix(url, ".zip"):
		return m.extractFromZip(archivePath, destDir, targets)
	case strings.HasSuffix(url, ".tar.xz"):
		return m.extractFromTarXZ(archivePath, destDir, targets)
	case strings.HasSuffix(url, ".tar.gz"):
		return m.extractFromTarGZ(archivePath, destDir, targets)
	default:
		return fmt.Errorf("unsupported archive format: %s", url)
	}
}

func (m *Manager) extractFromZip(zipPath, destDir string, targets map[string]struct{}) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer reader.Close()

	extracted := 0

	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}

		filename := file.FileInfo().Name()
		if _, ok := targets[filename]; !ok {
			continue
		}

		fileReader, err := file.Open()
		if err != nil {
			return fmt.Errorf("open file in zip: %w", err)
		}

		err = writeExtractedFile(filepath.Join(destDir, filename), fileReader)
		fileReader.Close()

		if err != nil {
			return err
		}

		extracted++

		if extracted == len(targets) {
			return nil
		}
	}

	if extracted == 0 {
		return fmt.Errorf("no target files found in zip archive")
	}

	return nil
}

func (m *Manager) extractFromTarXZ(tarXZPath, destDir string, targets map[string]struct{}) error {
	file, err := os.Open(tarXZPath)
	if err != nil {
		return fmt.Errorf("open tar.xz: %w", err)
	}
	defer file.Close()

	xzReader, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("create xz reader: %w", err)
	}

	return m.extractTarSelected(xzReader, destDir, targets)
}

func (m *Manager) extractFromTarGZ(tarGZPath, destDir string, targets map[string]struct{}) error {
	file, err := os.Open(tarGZPath)
	if err != nil {
		return fmt.Errorf("open tar.gz: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzReader.Close()

	return m.extractTarSelected(gzReader, destDir, targets)
}

func (m *Manager) extractTarSelected(reader io.Reader, destDir string, targets map[string]struct{}) error {
	tarReader := tar.NewReader(reader)
	extracted := 0

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		filename := filepath.Base(header.Name)
		if _, ok := targets[filename]; !ok {
			continue
		}

		err = writeExtractedFile(filepath.Join(destDir, filename), tarReader)
		if err != nil {
			return err
		}

		extracted++

		if extracted == len(targets) {
			return nil
		}
	}

	if extracted == 0 {
		return fmt.Errorf("no target files found in tar archive")
	}

	return nil
}

// writeExtractedFile writes one archive member to disk with executable
// permissions.
func writeExtractedFile(destPath string, src io.Reader) error {
	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermExecutable)
	if err != nil {
		return fmt.Errorf("create dest file: %w", err)
	}

	_, err = io.Copy(outFile, src)
	if cerr := outFile.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("extract file: %w", err)
	}

	return nil
}
