package artifacts

import (
	"fmt"
	"path"
	"strings"
)

// cleanName validates a slash-separated artifact name of the form
// <run-id>/<file>. Absolute names and parent references are refused.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	cleaned := path.Clean(name)
	if cleaned != name || strings.HasPrefix(cleaned, "../") || cleaned == ".." || cleaned == "." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return cleaned, nil
}

// ContentType guesses the media type of an artifact from its extension
func ContentType(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
