package textutil

import (
	"path/filepath"
	"strings"
)

// SanitizeFileName reduces an untrusted upload name to a safe base name made of
// letters, digits, dots, dashes and underscores. Returns fallback when nothing
// usable remains.
func SanitizeFileName(name, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return fallback
	}
	return out
}
