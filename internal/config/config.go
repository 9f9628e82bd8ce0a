// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	App        App
	Dir        Dir
	Engine     Engine
	DepManager DepManager
	Proxy      Proxy
	Metrics    Metrics
	Notify     Notify
}

// App holds application-wide configuration.
type App struct {
	LogLevel string `env:"VIDGRAB_APP_LOG_LEVEL" envDefault:"info"`
	// LogFormat selects "text" or "json" log output.
	LogFormat string `env:"VIDGRAB_APP_LOG_FORMAT" envDefault:"text"`
	// CrashCooldown is how long the menu waits before restarting after an
	// unexpected failure.
	CrashCooldown time.Duration `env:"VIDGRAB_APP_CRASH_COOLDOWN" envDefault:"5s"`
}

// Dir holds directory paths for the persisted run config and cookie file.
type Dir struct {
	// Config is where config.yml lives.
	Config string `env:"VIDGRAB_DIR_CONFIG" envDefault:"."`

	// Downloads is the base download directory, used until the run config
	// learns a default category or last-used path.
	Downloads string `env:"VIDGRAB_DIR_DOWNLOADS" envDefault:"./downloads"`

	// must contain cookies.txt file
	// see: https://github.com/yt-dlp/yt-dlp/wiki/FAQ#how-do-i-pass-cookies-to-yt-dlp
	CookieFile string `env:"VIDGRAB_DIR_COOKIE_FILE" envDefault:""`
}

// SetAbsPaths converts all directory paths to absolute paths.
func (c *Dir) SetAbsPaths() error {
	var err error
	if c.Config, err = filepath.Abs(c.Config); err != nil {
		return fmt.Errorf("config dir: %w", err)
	}

	if c.Downloads, err = filepath.Abs(c.Downloads); err != nil {
		return fmt.Errorf("downloads dir: %w", err)
	}

	if c.CookieFile != "" {
		if c.CookieFile, err = filepath.Abs(c.CookieFile); err != nil {
			return fmt.Errorf("cookie file: %w", err)
		}
	}

	return nil
}

// Engine holds configuration for the external extraction engine.
type Engine struct {
	// Binary is the yt-dlp executable name or path. The dependency manager
	// may replace this with a bootstrapped binary at startup.
	Binary string `env:"VIDGRAB_ENGINE_BINARY" envDefault:"yt-dlp"`
	// MetadataTimeout bounds one metadata-only extraction.
	MetadataTimeout time.Duration `env:"VIDGRAB_ENGINE_METADATA_TIMEOUT" envDefault:"90s"`
	// DownloadTimeout bounds one download attempt.
	DownloadTimeout time.Duration `env:"VIDGRAB_ENGINE_DOWNLOAD_TIMEOUT" envDefault:"2h"`
}

// Metrics holds the optional Prometheus listener configuration.
type Metrics struct {
	// Addr enables the /metrics listener when non-empty, e.g. ":9090".
	Addr            string        `env:"VIDGRAB_METRICS_ADDR"             envDefault:""`
	ShutdownTimeout time.Duration `env:"VIDGRAB_METRICS_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Notify holds completion notification configuration.
type Notify struct {
	// Desktop enables the platform desktop notification.
	Desktop bool `env:"VIDGRAB_NOTIFY_DESKTOP" envDefault:"true"`
	// TelegramToken and TelegramChatID enable the Telegram notifier when both are set.
	TelegramToken  string `env:"VIDGRAB_NOTIFY_TELEGRAM_TOKEN"   envDefault:""`
	TelegramChatID string `env:"VIDGRAB_NOTIFY_TELEGRAM_CHAT_ID" envDefault:""`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}

	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Dir.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set absolute paths: %w", err)
	}

	err = cfg.DepManager.SetAbsPaths()
	if err != nil {
		return nil, fmt.Errorf("set dep manager absolute paths: %w", err)
	}

	cfg.Proxy.parseList()

	return cfg, nil
}

// DepManager holds binary dependency management configuration.
type DepManager struct {
	// BinsDir is the directory where binaries are stored
	BinsDir string `env:"VIDGRAB_DEPMANAGER_BINS_DIR" envDefault:"./bins"`
	// UseSystemBinaries indicates whether to use system-installed binaries or download them.
	UseSystemBinaries bool `env:"VIDGRAB_DEPMANAGER_USE_SYSTEM_BINARIES" envDefault:"false"`
	// UpdateInterval is how often to check for binary updates
	UpdateInterval time.Duration `env:"VIDGRAB_DEPMANAGER_UPDATE_INTERVAL" envDefault:"24h"`

	// ffmpeg binary URLs per platform.
	FFmpegSHA256SumsURL string `env:"VIDGRAB_DEPMANAGER_FFMPEG_SHA256SUMS_URL" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/checksums.sha256"`                        //nolint:lll
	FFmpegLinuxARM64    string `env:"VIDGRAB_DEPMANAGER_FFMPEG_LINUX_ARM64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linuxarm64-gpl.tar.xz"` //nolint:lll
	FFmpegLinuxAMD64    string `env:"VIDGRAB_DEPMANAGER_FFMPEG_LINUX_AMD64" envDefault:"https://github.com/BtbN/FFmpeg-Builds/releases/latest/download/ffmpeg-master-latest-linux64-gpl.tar.xz"`    //nolint:lll

	// yt-dlp binary URLs per platform.
	YTdlpSHA256SumsURL string `env:"VIDGRAB_DEPMANAGER_YTDLP_SHA256SUMS_URL" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/SHA2-256SUMS"`      //nolint:lll
	YTdlpLinuxARM64    string `env:"VIDGRAB_DEPMANAGER_YTDLP_LINUX_ARM64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux_aarch64"` //nolint:lll
	YTdlpLinuxAMD64    string `env:"VIDGRAB_DEPMANAGER_YTDLP_LINUX_AMD64" envDefault:"https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp_linux"`         //nolint:lll
}

// SetAbsPaths converts the BinsDir path to an absolute path.
func (d *DepManager) SetAbsPaths() error {
	var err error
	if d.BinsDir, err = filepath.Abs(d.BinsDir); err != nil {
		return fmt.Errorf("bins dir: %w", err)
	}

	return nil
}

// Proxy holds proxy configuration for download requests.
type Proxy struct {
	// List is a comma-separated list of proxy URLs in socks5h format
	List string `env:"VIDGRAB_PROXY_LIST" envDefault:""`
	// FailureBackoff is how long a failed proxy stays out of rotation
	FailureBackoff time.Duration `env:"VIDGRAB_PROXY_FAILURE_BACKOFF" envDefault:"30s"`

	// Proxies is the parsed list of proxy URLs
	Proxies []string `env:"-"`
}

// parseList parses the comma-separated proxy list.
func (p *Proxy) parseList() {
	if p.List == "" {
		return
	}

	for proxy := range strings.SplitSeq(p.List, ",") {
		proxy = strings.TrimSpace(proxy)
		if proxy != "" {
			p.Proxies = append(p.Proxies, proxy)
		}
	}
}
