package cli

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"vidgrab/internal/runconfig"
	"vidgrab/pkg/urls"
)

// chooseTarget resolves the output directory for the run. Confirming any
// choice records it as the last-used path right away, so a crash later in
// the session does not lose it.
func (a *App) chooseTarget() (string, error) {
	for {
		label, path := a.currentTarget()

		headline.Fprintf(a.out, "\nCurrent target: [%s] %s\n", label, path)
		fmt.Fprintln(a.out, "Enter=use  C=choose category  P=type a path  M=manage categories")

		choice, err := a.in.Line("> ")
		if err != nil {
			return "", err
		}

		switch strings.ToLower(choice) {
		case "":
			a.deps.RunConfig.SetLastUsed(path)

			return path, nil
		case "c":
			picked, err := a.pickCategory()
			if err != nil {
				return "", err
			}

			if picked != "" {
				a.deps.RunConfig.SetLastUsed(picked)

				return picked, nil
			}
		case "p":
			typed, err := a.in.Line("Download folder: ")
			if err != nil {
				return "", err
			}

			typed = urls.CleanLink(typed)
			if typed != "" {
				a.deps.RunConfig.SetLastUsed(typed)

				return typed, nil
			}
		case "m":
			if err := a.manageCategories(); err != nil {
				return "", err
			}
		default:
			warnText.Fprintln(a.out, "Enter = use, C = category, P = path, M = manage.")
		}
	}
}

// currentTarget labels the effective target the way the precedence resolves
// it: the default category by name, else "last used", else "base".
func (a *App) currentTarget() (label, path string) {
	cfg := a.deps.RunConfig.Current()
	path = a.deps.RunConfig.EffectiveTarget()

	switch {
	case cfg.DefaultCategory != "" && cfg.Categories[cfg.DefaultCategory] == path:
		return cfg.DefaultCategory, path
	case cfg.LastUsedPath != "" && cfg.LastUsedPath == path:
		return "last used", path
	default:
		return "base", path
	}
}

// pickCategory returns the path of the chosen category, or empty when the
// user skips. A configured default category gets a one-key fast path.
func (a *App) pickCategory() (string, error) {
	cfg := a.deps.RunConfig.Current()

	if path, ok := cfg.Categories[cfg.DefaultCategory]; ok && cfg.DefaultCategory != "" {
		accent.Fprintf(a.out, "Default category: %s -> %s\n", cfg.DefaultCategory, path)

		use, err := a.in.Line("Use default? (Enter = yes, N = no): ")
		if err != nil {
			return "", err
		}

		if !strings.EqualFold(use, "n") {
			return path, nil
		}
	}

	if len(cfg.Categories) == 0 {
		ans, err := a.in.Line("No categories defined. Y adds one now, Enter skips: ")
		if err != nil {
			return "", err
		}

		if !strings.EqualFold(ans, "y") {
			return "", nil
		}

		if err := a.manageCategories(); err != nil {
			return "", err
		}

		cfg = a.deps.RunConfig.Current()
		if len(cfg.Categories) == 0 {
			return "", nil
		}
	}

	names := slices.Sorted(maps.Keys(cfg.Categories))

	fmt.Fprintln(a.out, "\nAvailable categories:")

	for i, name := range names {
		fmt.Fprintf(a.out, " %d. %s -> %s\n", i+1, name, cfg.Categories[name])
	}

	choice, err := a.in.Line("Enter index, or Enter to skip: ")
	if err != nil {
		return "", err
	}

	if choice == "" {
		return "", nil
	}

	idx, convErr := strconv.Atoi(choice)
	if convErr != nil || idx < 1 || idx > len(names) {
		warnText.Fprintln(a.out, "Invalid selection, keeping the current target.")

		return "", nil
	}

	return cfg.Categories[names[idx-1]], nil
}

// manageCategories runs the category editor until the user backs out. Every
// mutation is written through to disk by the run config manager.
func (a *App) manageCategories() error {
	for {
		cfg := a.deps.RunConfig.Current()
		names := slices.Sorted(maps.Keys(cfg.Categories))

		a.printCategories(cfg, names)
		fmt.Fprintln(a.out, "A=add  R=rename  E=edit path  D=delete  S=set default  U=unset default")
		fmt.Fprintln(a.out, "P=base path  L=limits  B=back")

		choice, err := a.in.Line("> ")
		if err != nil {
			return err
		}

		switch strings.ToLower(choice) {
		case "a":
			err = a.addCategory()
		case "r":
			err = a.renameCategory(names)
		case "e":
			err = a.editCategoryPath(names)
		case "d":
			err = a.deleteCategory(names)
		case "s":
			err = a.setDefaultCategory(names)
		case "u":
			a.deps.RunConfig.ClearDefaultCategory()
		case "p":
			err = a.setBasePath()
		case "l":
			err = a.setLimits()
		case "b":
			return nil
		default:
			warnText.Fprintln(a.out, "Unknown option.")
		}

		if err != nil {
			return err
		}
	}
}

func (a *App) printCategories(cfg runconfig.RunConfig, names []string) {
	headline.Fprintln(a.out, "\nCategories")

	if len(names) == 0 {
		fmt.Fprintln(a.out, "  (none)")

		return
	}

	tw := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)

	for i, name := range names {
		marker := " "
		if name == cfg.DefaultCategory {
			marker = "*"
		}

		fmt.Fprintf(tw, "  %d.\t%s %s\t%s\n", i+1, marker, name, cfg.Categories[name])
	}

	tw.Flush()
}

func (a *App) addCategory() error {
	name, err := a.in.Line("Category name: ")
	if err != nil {
		return err
	}

	path, err := a.in.Line("Category path: ")
	if err != nil {
		return err
	}

	path = urls.CleanLink(path)
	if path == "" {
		warnText.Fprintln(a.out, "No path given, nothing added.")

		return nil
	}

	if addErr := a.deps.RunConfig.AddCategory(name, path); addErr != nil {
		warnText.Fprintf(a.out, "Not added: %v\n", addErr)

		return nil
	}

	accent.Fprintf(a.out, "Added %s -> %s\n", name, path)

	return nil
}

func (a *App) renameCategory(names []string) error {
	idx, ok, err := a.pickIndex("Category index to rename: ", len(names))
	if err != nil || !ok {
		return err
	}

	newName, err := a.in.Line("New name (Enter cancels): ")
	if err != nil {
		return err
	}

	if newName == "" {
		return nil
	}

	if renameErr := a.deps.RunConfig.RenameCategory(names[idx], newName); renameErr != nil {
		warnText.Fprintf(a.out, "Not renamed: %v\n", renameErr)

		return nil
	}

	accent.Fprintf(a.out, "Renamed %s -> %s\n", names[idx], newName)

	return nil
}

func (a *App) editCategoryPath(names []string) error {
	idx, ok, err := a.pickIndex("Category index to edit: ", len(names))
	if err != nil || !ok {
		return err
	}

	path, err := a.in.Line("New path (Enter cancels): ")
	if err != nil {
		return err
	}

	path = urls.CleanLink(path)
	if path == "" {
		return nil
	}

	if setErr := a.deps.RunConfig.SetCategoryPath(names[idx], path); setErr != nil {
		warnText.Fprintf(a.out, "Not changed: %v\n", setErr)

		return nil
	}

	accent.Fprintf(a.out, "%s now points to %s\n", names[idx], path)

	return nil
}

func (a *App) deleteCategory(names []string) error {
	idx, ok, err := a.pickIndex("Category index to delete: ", len(names))
	if err != nil || !ok {
		return err
	}

	confirm, err := a.in.Line(fmt.Sprintf("Delete %q? Type YES to confirm: ", names[idx]))
	if err != nil {
		return err
	}

	if confirm != "YES" {
		warnText.Fprintln(a.out, "Delete canceled.")

		return nil
	}

	if delErr := a.deps.RunConfig.DeleteCategory(names[idx]); delErr != nil {
		warnText.Fprintf(a.out, "Not deleted: %v\n", delErr)

		return nil
	}

	accent.Fprintf(a.out, "Deleted %s\n", names[idx])

	return nil
}

func (a *App) setDefaultCategory(names []string) error {
	idx, ok, err := a.pickIndex("Category index to set as default: ", len(names))
	if err != nil || !ok {
		return err
	}

	if setErr := a.deps.RunConfig.SetDefaultCategory(names[idx]); setErr != nil {
		warnText.Fprintf(a.out, "Not set: %v\n", setErr)

		return nil
	}

	accent.Fprintf(a.out, "Default category is now %s\n", names[idx])

	return nil
}

func (a *App) setBasePath() error {
	path, err := a.in.Line("Base download path (Enter cancels): ")
	if err != nil {
		return err
	}

	path = urls.CleanLink(path)
	if path == "" {
		return nil
	}

	a.deps.RunConfig.SetBasePath(path)
	accent.Fprintf(a.out, "Base path set to %s\n", path)

	return nil
}

func (a *App) setLimits() error {
	cfg := a.deps.RunConfig.Current()

	parallel, err := a.askInt(fmt.Sprintf("Parallel downloads [%d]: ", cfg.MaxParallel), cfg.MaxParallel)
	if err != nil {
		return err
	}

	retries, err := a.askInt(fmt.Sprintf("Retries per item [%d]: ", cfg.RetryLimit), cfg.RetryLimit)
	if err != nil {
		return err
	}

	a.deps.RunConfig.SetLimits(parallel, retries)

	cfg = a.deps.RunConfig.Current()
	accent.Fprintf(a.out, "Limits set: %d parallel, %d retries\n", cfg.MaxParallel, cfg.RetryLimit)

	return nil
}

// pickIndex asks for a 1-based index into a list of n entries and converts
// it to a slice offset. ok=false means the input was unusable and the caller
// should re-render its menu.
func (a *App) pickIndex(prompt string, n int) (int, bool, error) {
	if n == 0 {
		warnText.Fprintln(a.out, "No categories defined.")

		return 0, false, nil
	}

	line, err := a.in.Line(prompt)
	if err != nil {
		return 0, false, err
	}

	idx, convErr := strconv.Atoi(line)
	if convErr != nil || idx < 1 || idx > n {
		warnText.Fprintln(a.out, "Index out of range.")

		return 0, false, nil
	}

	return idx - 1, true, nil
}

// askInt reads an integer, keeping the fallback on empty or bad input.
func (a *App) askInt(prompt string, fallback int) (int, error) {
	line, err := a.in.Line(prompt)
	if err != nil {
		return 0, err
	}

	if line == "" {
		return fallback, nil
	}

	n, convErr := strconv.Atoi(line)
	if convErr != nil {
		warnText.Fprintln(a.out, "Not a number, keeping the current value.")

		return fallback, nil
	}

	return n, nil
}
