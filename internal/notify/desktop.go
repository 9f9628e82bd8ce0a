package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"

	"vidgrab/internal/errs"
)

// Desktop shows the platform desktop notification by shelling out to the
// native notifier.
type Desktop struct {
	log *slog.Logger
}

var _ Notifier = (*Desktop)(nil)

// NewDesktop creates the desktop notifier for the current platform.
func NewDesktop(log *slog.Logger) *Desktop {
	return &Desktop{log: log.With(slog.String("package", "notify"))}
}

// Notify runs the platform notifier and waits for it to finish.
func (d *Desktop) Notify(ctx context.Context, title, body string) error {
	args := desktopCommand(runtime.GOOS, title, body)
	if args == nil {
		return fmt.Errorf("desktop notification: %w: %s", errs.ErrUnsupportedPlatform, runtime.GOOS)
	}

	d.log.DebugContext(ctx, "desktop notification", slog.String("notifier", args[0]))

	if err := exec.CommandContext(ctx, args[0], args[1:]...).Run(); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	return nil
}

// desktopCommand returns the notifier invocation for the platform, or nil
// when the platform has none.
func desktopCommand(goos, title, body string) []string {
	switch goos {
	case "linux":
		return []string{"notify-send", title, body}
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)

		return []string{"osascript", "-e", script}
	case "windows":
		return []string{"powershell", "-NoProfile", "-Command", balloonScript(title, body)}
	default:
		return nil
	}
}

// balloonScript builds the PowerShell snippet showing a tray balloon tip.
// Single quotes inside PowerShell single-quoted strings are doubled.
func balloonScript(title, body string) string {
	quote := func(s string) string {
		return strings.ReplaceAll(s, "'", "''")
	}

	return fmt.Sprintf("Add-Type -AssemblyName System.Windows.Forms; "+
		"Add-Type -AssemblyName System.Drawing; "+
		"$n = New-Object System.Windows.Forms.NotifyIcon; "+
		"$n.Icon = [System.Drawing.SystemIcons]::Information; "+
		"$n.Visible = $true; "+
		"$n.ShowBalloonTip(5000, '%s', '%s', 'Info')",
		quote(title), quote(body))
}

// OpenFolder shows dir in the platform file browser. The browser is started
// and not waited for.
func OpenFolder(ctx context.Context, dir string) error {
	args := openFolderCommand(runtime.GOOS, dir)
	if args == nil {
		return fmt.Errorf("open folder: %w: %s", errs.ErrUnsupportedPlatform, runtime.GOOS)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open folder: %w", err)
	}

	go func() {
		_ = cmd.Wait()
	}()

	return nil
}

func openFolderCommand(goos, dir string) []string {
	switch goos {
	case "linux":
		return []string{"xdg-open", dir}
	case "darwin":
		return []string{"open", dir}
	case "windows":
		return []string{"explorer", dir}
	default:
		return nil
	}
}
