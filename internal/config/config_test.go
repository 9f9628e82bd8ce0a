package config_test

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidgrab/internal/config"
)

//go:embed testdata/.env.custom
var envCustom []byte

func parseEnv(r io.Reader) (map[string]string, error) {
	env := make(map[string]string)
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid line %d: %q", lineNo, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		env[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env: %w", err)
	}

	return env, nil
}

func applyEnv(t *testing.T, env map[string]string) {
	t.Helper()

	for key, value := range env {
		t.Setenv(key, value)
	}
}

func TestNew(t *testing.T) {
	env, err := parseEnv(bytes.NewReader(envCustom))
	if err != nil {
		t.Fatalf("parseEnv() failed: %v", err)
	}

	applyEnv(t, env)

	got, err := config.New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if !filepath.IsAbs(got.Dir.Config) {
		t.Errorf("expected absolute config dir, got %s", got.Dir.Config)
	}

	if !filepath.IsAbs(got.Dir.CookieFile) {
		t.Errorf("expected absolute cookie file path, got %s", got.Dir.CookieFile)
	}

	if !filepath.IsAbs(got.Dir.Downloads) {
		t.Errorf("expected absolute downloads dir, got %s", got.Dir.Downloads)
	}

	if filepath.Base(got.Dir.Downloads) != "media" {
		t.Errorf("expected downloads dir named media, got %s", got.Dir.Downloads)
	}

	if got.App.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", got.App.LogLevel)
	}

	if got.Engine.Binary != "/usr/local/bin/yt-dlp" {
		t.Errorf("unexpected engine binary: %s", got.Engine.Binary)
	}

	want := []string{"socks5h://127.0.0.1:1080", "socks5h://127.0.0.1:1081"}
	if len(got.Proxy.Proxies) != len(want) {
		t.Fatalf("expected %d proxies, got %d", len(want), len(got.Proxy.Proxies))
	}
	for i := range want {
		if got.Proxy.Proxies[i] != want[i] {
			t.Errorf("proxy %d: got %s, want %s", i, got.Proxy.Proxies[i], want[i])
		}
	}
}

func TestNewDefaults(t *testing.T) {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "VIDGRAB_") {
			t.Setenv(name, "") // register for restore
			os.Unsetenv(name)
		}
	}

	got, err := config.New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got.App.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", got.App.LogLevel)
	}

	if got.Engine.Binary != "yt-dlp" {
		t.Errorf("expected default engine binary yt-dlp, got %s", got.Engine.Binary)
	}

	if got.Metrics.Addr != "" {
		t.Errorf("expected metrics listener disabled by default, got %s", got.Metrics.Addr)
	}

	if !got.Notify.Desktop {
		t.Error("expected desktop notifications enabled by default")
	}

	if len(got.Proxy.Proxies) != 0 {
		t.Errorf("expected no proxies by default, got %v", got.Proxy.Proxies)
	}
}
