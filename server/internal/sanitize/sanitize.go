package sanitize

import (
	"strings"
	"unicode/utf8"
)

// characters that are not allowed in a path segment on at least one platform
var replacer = strings.NewReplacer(
	`\`, "_",
	`/`, "_",
	`*`, "_",
	`?`, "_",
	`:`, "_",
	`"`, "_",
	`<`, "_",
	`>`, "_",
	`|`, "_",
)

const fallbackTitle = "playlist"

// Name replaces every reserved character of s with an underscore.
func Name(s string) string {
	return replacer.Replace(s)
}

// Title sanitizes s for use as a directory prefix. Blank titles become
// "playlist" and the result is cut to at most max runes (max <= 0 means
// no limit).
func Title(s string, max int) string {
	s = strings.TrimSpace(Name(s))
	if s == "" {
		return fallbackTitle
	}

	if max > 0 && utf8.RuneCountInString(s) > max {
		s = strings.TrimSpace(string([]rune(s)[:max]))
	}

	return s
}
