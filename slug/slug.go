// Package slug derives filesystem-safe names for downloaded images.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxLength = 100

var (
	nonAlnum   = regexp.MustCompile("[^a-z0-9-]+")
	hyphenRuns = regexp.MustCompile("-+")

	// Decompose, drop combining marks, recompose. Turns "café" into "cafe".
	deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Generate lowercases s, strips accents and everything that is not
// [a-z0-9-], and collapses separators into single hyphens. Returns ""
// when nothing survives.
func Generate(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}

	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = nonAlnum.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > maxLength {
		s = strings.TrimRight(s[:maxLength], "-")
	}
	return s
}

// FromImageURL slugs the filename portion of an image URL, without its
// extension or query string.
func FromImageURL(url string) string {
	filename := url
	if idx := strings.LastIndex(filename, "/"); idx != -1 {
		filename = filename[idx+1:]
	}
	if idx := strings.Index(filename, "?"); idx != -1 {
		filename = filename[:idx]
	}
	if idx := strings.LastIndex(filename, "."); idx != -1 {
		filename = filename[:idx]
	}
	return Generate(filename)
}

// FromImage names a search result image. The title wins when it slugs
// to something non-empty; otherwise the URL filename is used.
func FromImage(title, url string) string {
	if s := Generate(title); s != "" {
		return s
	}
	return FromImageURL(url)
}
