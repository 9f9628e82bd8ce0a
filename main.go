// entry point of the application
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"vidgrab/internal/cli"
	"vidgrab/internal/config"
	"vidgrab/internal/consts"
	"vidgrab/internal/depmanager"
	"vidgrab/internal/engine"
	"vidgrab/internal/linkfile"
	"vidgrab/internal/notify"
	"vidgrab/internal/observability"
	"vidgrab/internal/progress"
	"vidgrab/internal/proxy"
	"vidgrab/internal/resolver"
	"vidgrab/internal/run"
	"vidgrab/internal/runconfig"
	httpserver "vidgrab/pkg/http/server"
	"vidgrab/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		slog.Error("config new", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Options{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	input, err := cli.NewReadline()
	if err != nil {
		log.ErrorContext(ctx, "terminal unavailable", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
	defer input.Close()

	depMgr := depmanager.New(log, cfg)

	log.InfoContext(ctx, "checking yt-dlp and ffmpeg installs, this may take some time...")

	if err := depMgr.Start(ctx); err != nil {
		log.ErrorContext(ctx, "no usable yt-dlp/ffmpeg install", slog.Any("error", err))
		stop()
		os.Exit(1)
	}

	metrics := observability.New()

	var metricsSrv *httpserver.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = httpserver.New(metrics.Handler(), httpserver.Options{
			Addr:            cfg.Metrics.Addr,
			ShutdownTimeout: cfg.Metrics.ShutdownTimeout,
		})

		go func() {
			if err := <-metricsSrv.Err(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener failed", slog.String("addr", cfg.Metrics.Addr), slog.Any("error", err))
			}
		}()

		log.InfoContext(ctx, "metrics listener started", slog.String("addr", cfg.Metrics.Addr))
	}

	var proxies *proxy.Rotation
	if len(cfg.Proxy.Proxies) > 0 {
		proxies = proxy.NewRotation(log, cfg.Proxy.Proxies, cfg.Proxy.FailureBackoff)
		metrics.SetProxiesAvailable(proxies.Count())

		log.InfoContext(ctx, "proxy rotation initialized", slog.Int("proxy_count", proxies.Count()))
	}

	eng := engine.NewYTDLP(log, cfg, depMgr)

	runCfg := runconfig.NewManager(log, runconfig.NewFileStore(cfg.Dir.Config), runconfig.RunConfig{
		OutputDirectory: cfg.Dir.Downloads,
		MaxParallel:     consts.DefaultMaxParallel,
		RetryLimit:      consts.DefaultRetryLimit,
	})

	deps := cli.Deps{
		RunConfig: runCfg,
		Engine:    eng,
		Resolver:  resolver.New(log, cfg, eng, cli.CredentialPrompt(input, color.Output), metrics),
		Runner:    run.New(log, eng, proxies, metrics),
		Links:     linkfile.New(log),
		Notifier:  buildNotifier(log, cfg),
		Input:     input,
	}

	// Without a terminal the bar renderer degrades badly, log lines instead.
	if color.NoColor {
		deps.NewSink = func() cli.BatchSink { return progress.NewLog(log) }
	}

	app := cli.New(log, cfg, deps)

	app.Run(ctx)

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(); err != nil {
			log.Error(err.Error())
		}
	}

	log.InfoContext(ctx, "vidgrab shut down")
}

// buildNotifier assembles the configured completion notifiers. nil disables
// notifications entirely.
func buildNotifier(log *slog.Logger, cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Notify.Desktop {
		notifiers = append(notifiers, notify.NewDesktop(log))
	}

	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		tg, err := notify.NewTelegram(log, cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			log.Warn("telegram notifier disabled", slog.Any("error", err))
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	if len(notifiers) == 0 {
		return nil
	}

	return notify.NewMulti(log, notifiers...)
}
