// Package urls provides utility functions for working with URLs.
package urls

import (
	"net/url"
	"strings"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// HasScheme reports whether raw starts with a recognized scheme prefix.
// Input lines that fail this check are skipped rather than resolved.
func HasScheme(raw string) bool {
	return strings.HasPrefix(raw, schemeHTTP+"://") || strings.HasPrefix(raw, schemeHTTPS+"://")
}

// Normalize trims spaces, parses and returns the URL in string format.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.String()
}

// CleanLink strips the artifacts terminals add to dragged-and-dropped paths:
// surrounding quotes, a "file://" prefix, and the "PATH=" prefix some
// Windows shells prepend.
func CleanLink(raw string) string {
	line := strings.TrimSpace(raw)
	line = strings.Trim(line, `"'`)

	if len(line) >= 4 && strings.EqualFold(line[:4], "path") {
		line = strings.TrimLeft(line[4:], "= :")
		line = strings.TrimSpace(line)
		line = strings.Trim(line, `"'`)
	}

	return strings.TrimPrefix(line, "file://")
}
