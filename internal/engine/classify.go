package engine

import "strings"

// Platform identifies which extractor handles a URL.
type Platform int

const (
	PlatformGeneric Platform = iota // no specialized extractor
	PlatformYouTube
	PlatformX
	PlatformInstagram
	PlatformLinkedIn
	PlatformGitHub
)

var platformNames = [...]string{
	PlatformGeneric:   "generic",
	PlatformYouTube:   "youtube",
	PlatformX:         "x",
	PlatformInstagram: "instagram",
	PlatformLinkedIn:  "linkedin",
	PlatformGitHub:    "github",
}

func (p Platform) String() string {
	if p < 0 || int(p) >= len(platformNames) {
		return "unknown"
	}
	return platformNames[p]
}

// platformHosts is checked in order; the first matching fragment wins.
var platformHosts = []struct {
	platform  Platform
	fragments []string
}{
	{PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{PlatformX, []string{"twitter.com", "x.com"}},
	{PlatformInstagram, []string{"instagram.com"}},
	{PlatformLinkedIn, []string{"linkedin.com"}},
	{PlatformGitHub, []string{"github.com"}},
}

// Classify maps a URL to its platform by case-insensitive substring match.
// Pure string matching, no IO. Unknown input resolves to PlatformGeneric.
func Classify(rawURL string) Platform {
	u := strings.ToLower(rawURL)
	for _, ph := range platformHosts {
		for _, f := range ph.fragments {
			if strings.Contains(u, f) {
				return ph.platform
			}
		}
	}
	return PlatformGeneric
}
