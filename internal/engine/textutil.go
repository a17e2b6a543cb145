package engine

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "SecondBrain-App"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// TruncationMarker is appended by Clamp when text exceeds its budget.
const TruncationMarker = "\n...[truncated]..."

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Clamp caps s at max runes and appends TruncationMarker when it cuts.
// The result is at most max+len(TruncationMarker) runes long, and
// Clamp(Clamp(s, n), n) == Clamp(s, n).
func Clamp(s string, max int) string {
	if max < 0 {
		max = 0
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i] + TruncationMarker
		}
		n++
	}
	return s
}

// CleanHTML strips HTML tags and trims whitespace.
func CleanHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// DecodeEntities unescapes HTML entities (&amp;, &#39;, ...).
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}

// CollapseSpace replaces every whitespace run with a single space and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
