package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vidgrab/pkg/urls"
)

// collectLinks gathers download links until an empty line. A line may be a
// pasted URL, the path of a link file, or F to be asked for a file path
// explicitly. Lines without a recognized scheme are skipped with a warning.
func (a *App) collectLinks() ([]string, error) {
	headline.Fprintln(a.out, "\nPaste links, one per line. A line may also name a link file.")
	fmt.Fprintln(a.out, "Empty line finishes, F prompts for a link file path.")

	var links []string

	for {
		line, err := a.in.Line("> ")
		if err != nil {
			return nil, err
		}

		line = urls.CleanLink(line)
		if line == "" {
			return links, nil
		}

		if strings.EqualFold(line, "f") {
			path, err := a.in.Line("Link file path: ")
			if err != nil {
				return nil, err
			}

			links = a.appendFromFile(links, urls.CleanLink(path))

			continue
		}

		if isLinkFile(line) {
			links = a.appendFromFile(links, line)

			continue
		}

		if !urls.HasScheme(line) {
			warnText.Fprintf(a.out, "Skipping line without a recognized scheme: %s\n", line)

			continue
		}

		links = append(links, line)
	}
}

func (a *App) appendFromFile(links []string, path string) []string {
	fromFile, err := a.deps.Links.Read(path)
	if err != nil {
		warnText.Fprintf(a.out, "Link file unusable: %v\n", err)

		return links
	}

	accent.Fprintf(a.out, "Added %d links from %s\n", len(fromFile), path)

	return append(links, fromFile...)
}

// isLinkFile reports whether a pasted line names a readable link file rather
// than a URL.
func isLinkFile(line string) bool {
	if urls.HasScheme(line) {
		return false
	}

	switch strings.ToLower(filepath.Ext(line)) {
	case ".txt", ".m3u", ".m3u8":
	default:
		return false
	}

	_, err := os.Stat(line)

	return err == nil
}
