package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// TruncateRunes returns at most n code points of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s.-]`)

// SanitizeFilename strips directories and special characters and replaces
// spaces with underscores.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}

// FileType returns the lowercase extension of name without the dot.
func FileType(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
