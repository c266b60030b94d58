package util

import (
	"errors"
	"strings"
)

// ErrInvalidName is returned for names that are empty or try to leave their directory.
var ErrInvalidName = errors.New("invalid file name")

// SanitizeFileName maps a user supplied name to a single safe path segment.
// Letters (including accented ones), digits, '.', '-' and '_' are kept; runs of anything
// else collapse to one '_'.
func SanitizeFileName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.Contains(trimmed, "..") {
		return "", ErrInvalidName
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastUnderscore := false
	for _, r := range trimmed {
		if keepRune(r) {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return "", ErrInvalidName
	}
	return out, nil
}

func keepRune(r rune) bool {
	switch {
	case r == '.' || r == '-' || r == '_':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= 0xC0 && r <= 0x24F && r != 0xD7 && r != 0xF7:
		// Latin-1 supplement and Latin Extended-A/B letters.
		return true
	default:
		return false
	}
}
