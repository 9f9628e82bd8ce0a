// Package cli drives the interactive terminal session: the main menu,
// category management, link entry, format selection and the download run
// itself. It owns no download logic, it only wires user decisions into the
// resolver and the run coordinator.
//
// A session survives its own failures. Any error or panic that escapes a
// menu pass is reported, the app cools down briefly, and the menu restarts.
// Only an explicit exit, closed input or a canceled context end the loop.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"

	"vidgrab/internal/config"
	"vidgrab/internal/consts"
	"vidgrab/internal/engine"
	"vidgrab/internal/entity"
	"vidgrab/internal/errs"
	"vidgrab/internal/linkfile"
	"vidgrab/internal/notify"
	"vidgrab/internal/progress"
	"vidgrab/internal/resolver"
	"vidgrab/internal/run"
	"vidgrab/internal/runconfig"
)

var (
	headline = color.New(color.FgCyan, color.Bold)
	accent   = color.New(color.FgGreen)
	warnText = color.New(color.FgYellow)
	failText = color.New(color.FgRed)
)

// BatchSink renders download progress for one batch and must be drained
// with Wait after the batch completes.
type BatchSink interface {
	progress.Sink
	Wait()
}

// Deps are the collaborators the menu drives. Output defaults to the
// color-capable stdout, NewSink to a fresh progress bar set per batch,
// OpenFolder to the platform file browser, and a nil Notifier disables
// notifications.
type Deps struct {
	RunConfig  *runconfig.Manager
	Engine     engine.Engine
	Resolver   *resolver.Resolver
	Runner     *run.Coordinator
	Links      *linkfile.Reader
	Notifier   notify.Notifier
	Input      LineReader
	Output     io.Writer
	NewSink    func() BatchSink
	OpenFolder func(ctx context.Context, dir string) error
}

// App is the interactive frontend. One App serves the whole process
// lifetime; per-batch state lives on the stack of a session.
type App struct {
	log  *slog.Logger
	cfg  *config.Config
	deps Deps
	out  io.Writer
	in   LineReader
}

// New creates the interactive app.
func New(log *slog.Logger, cfg *config.Config, deps Deps) *App {
	if deps.Output == nil {
		deps.Output = color.Output
	}

	if deps.NewSink == nil {
		deps.NewSink = func() BatchSink { return progress.NewBars() }
	}

	if deps.OpenFolder == nil {
		deps.OpenFolder = notify.OpenFolder
	}

	return &App{
		log:  log.With(slog.String("package", "cli")),
		cfg:  cfg,
		deps: deps,
		out:  deps.Output,
		in:   deps.Input,
	}
}

// Run drives the menu until the user exits or the context is canceled.
// A session that dies is reported and the menu restarts after a cooldown.
func (a *App) Run(ctx context.Context) {
	for {
		err := a.session(ctx)
		if err == nil {
			return
		}

		if ctx.Err() != nil || quitInput(err) {
			return
		}

		a.log.Error("session failed, restarting menu", slog.Any("error", err))
		failText.Fprintf(a.out, "\nCrash: %v\n", err)

		cooldown := a.cfg.App.CrashCooldown
		if cooldown <= 0 {
			cooldown = consts.DefaultCrashCooldown
		}

		fmt.Fprintf(a.out, "Restarting in %s...\n", cooldown)

		select {
		case <-time.After(cooldown):
		case <-ctx.Done():
			return
		}
	}
}

// session runs menu passes until the user exits. A panic anywhere below the
// menu surfaces as an ordinary error so Run can restart the session.
func (a *App) session(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		headline.Fprintln(a.out, "\n=== Main Menu ===")
		fmt.Fprintln(a.out, " 1. Manage categories")
		fmt.Fprintln(a.out, " 2. Start downloading")
		fmt.Fprintln(a.out, " 3. Exit")

		choice, err := a.in.Line("Select option: ")
		if err != nil {
			return err
		}

		switch choice {
		case "1":
			if err := a.manageCategories(); err != nil {
				return err
			}
		case "2":
			if err := a.downloadFlow(ctx); err != nil {
				return err
			}

			again, err := a.in.Line("\nStart another download? (y/N): ")
			if err != nil {
				return err
			}

			if !strings.EqualFold(again, "y") {
				return nil
			}
		case "3":
			return nil
		default:
			warnText.Fprintln(a.out, "Unknown option.")
		}
	}
}

// downloadFlow is one complete download pass: target, links, options,
// resolution, the batch itself and the wrap-up.
func (a *App) downloadFlow(ctx context.Context) error {
	target, err := a.chooseTarget()
	if err != nil {
		return err
	}

	links, err := a.collectLinks()
	if err != nil {
		return err
	}

	if len(links) == 0 {
		warnText.Fprintln(a.out, "No links provided.")

		return nil
	}

	opts, ok, err := a.chooseRunOptions(ctx, links[0], target)
	if err != nil {
		return err
	}

	if !ok {
		warnText.Fprintln(a.out, "Canceled.")

		return nil
	}

	items, err := a.resolveAll(ctx, links)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		warnText.Fprintln(a.out, "Nothing to download after resolving the links.")

		return nil
	}

	headline.Fprintf(a.out, "\nDownloading %d items, %d in parallel, into %s\n",
		len(items), opts.MaxParallel, opts.OutputDir)

	sink := a.deps.NewSink()

	outcomes, runErr := a.deps.Runner.RunBatch(ctx, run.Batch{
		Items:      items,
		Options:    opts,
		CookieFile: a.deps.Resolver.CookieFile(),
	}, sink)

	sink.Wait()

	if len(outcomes) > 0 {
		a.printSummary(outcomes)
	}

	if runErr != nil {
		return runErr
	}

	a.notifyDone(ctx, opts.OutputDir, outcomes)

	return nil
}

// resolveAll expands every link into downloadable items. A link that fails
// to resolve is skipped with a warning, never aborting the others.
func (a *App) resolveAll(ctx context.Context, links []string) ([]entity.Item, error) {
	var items []entity.Item

	for _, link := range links {
		resolved, err := a.deps.Resolver.Resolve(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}

			warnText.Fprintf(a.out, "Skipping %s: %v\n", link, err)

			continue
		}

		items = append(items, resolved...)
	}

	return items, nil
}

// printSummary lists the outcome of every item with its final status.
func (a *App) printSummary(outcomes []entity.Outcome) {
	fmt.Fprintln(a.out)

	ok := 0

	for _, outcome := range outcomes {
		if outcome.Succeeded {
			ok++

			accent.Fprintf(a.out, "ok      %s\n", outcome.Item.Title)

			continue
		}

		failText.Fprintf(a.out, "failed  %s: %s (%d attempts)\n",
			outcome.Item.Title, failureReason(outcome.Err), outcome.AttemptsUsed)
	}

	if ok == len(outcomes) {
		accent.Fprintf(a.out, "\nAll %d downloads finished.\n", ok)

		return
	}

	headline.Fprintf(a.out, "\n%d of %d downloads finished.\n", ok, len(outcomes))
}

// failureReason renders the classified failure kind for the summary line.
func failureReason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, errs.ErrAuthRequired):
		return "authentication required"
	case errors.Is(err, errs.ErrNotFound):
		return "content not found"
	case errors.Is(err, errs.ErrRateLimited):
		return "rate limited"
	case errors.Is(err, errs.ErrTransient):
		return "network trouble"
	default:
		return err.Error()
	}
}

// notifyDone announces the finished batch and opens the output folder. Both
// are best effort.
func (a *App) notifyDone(ctx context.Context, dir string, outcomes []entity.Outcome) {
	ok := 0

	for _, outcome := range outcomes {
		if outcome.Succeeded {
			ok++
		}
	}

	if a.deps.Notifier != nil {
		body := fmt.Sprintf("%d of %d downloads finished", ok, len(outcomes))

		if err := a.deps.Notifier.Notify(ctx, "vidgrab", body); err != nil {
			a.log.Warn("notification failed", slog.Any("error", err))
		}
	}

	if err := a.deps.OpenFolder(ctx, dir); err != nil {
		a.log.Debug("open folder failed", slog.String("dir", dir), slog.Any("error", err))
	}
}
