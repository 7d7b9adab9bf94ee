// Package domainlist reads third-party domain lists (hosts files and plain
// newline-delimited lists) into normalized domain keys.
package domainlist

import (
	"strings"
	"unicode"

	"github.com/haukened/siteguard/internal/guard/common/domainkey"
)

// isValidFQDN checks whether name looks like a registrable host name:
//   - at most 255 characters
//   - at least two labels, each 1 to 63 characters
//   - the first label starts with a letter or digit
func isValidFQDN(name string) bool {
	if len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
	}
	first := []rune(labels[0])
	return unicode.IsLetter(first[0]) || unicode.IsDigit(first[0])
}

// normalizeEntry strips list wildcard markers and normalizes the rest.
// Subdomains are covered by parent-domain inheritance, so "*.a.com" is "a.com".
func normalizeEntry(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "*.")
	s = strings.TrimPrefix(s, ".")
	return domainkey.Normalize(s)
}

// cleanLine removes a BOM and any comment, reporting whether anything is left.
func cleanLine(line string) (string, bool) {
	line = strings.TrimPrefix(line, "\uFEFF")
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	return line, line != ""
}
