package hoard

import (
	"path/filepath"
	"strings"
)

// shortHashLen is the number of hash hex characters used to disambiguate
// colliding display names.
const shortHashLen = 8

// SanitizeName makes a display name safe to use as a single path component.
// Separators and control characters are replaced, surrounding whitespace is
// trimmed, and an empty result falls back to "download".
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == filepath.Separator:
			b.WriteRune('-')
		case r < 0x20 || r == 0x7f:
			// drop control characters
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "download"
	}
	return out
}

// SuffixedName returns the collision fallback for a display name: the short
// form of the content hash is inserted before the extension. The result is
// deterministic given the same hash, so a second placement of the same file
// lands on the same name.
func SuffixedName(name, hash string) string {
	short := hash
	if len(short) > shortHashLen {
		short = short[:shortHashLen]
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "-" + short + ext
}
