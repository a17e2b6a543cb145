package sources

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
)

// Watch-page player response parsing and caption track handling.

var (
	errPlayerResponseMissing = errors.New("ytInitialPlayerResponse not found in watch page")
	errNoCaptionTracks       = errors.New("no caption tracks")
)

// playerResponseRe marks the start of the player response JSON in watch page HTML.
var playerResponseRe = regexp.MustCompile(`ytInitialPlayerResponse\s*=\s*`)

type ytPlayerResponse struct {
	VideoDetails *struct {
		Title            string `json:"title"`
		ShortDescription string `json:"shortDescription"`
	} `json:"videoDetails"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

func (r *ytPlayerResponse) tracks() []captionTrack {
	if r == nil || r.Captions == nil {
		return nil
	}
	return r.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

// --- Timedtext XML types ---

// ytTrackList is the body of timedtext?type=list.
type ytTrackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
		Kind     string `xml:"kind,attr"`
	} `xml:"track"`
}

type ytTimedText struct {
	Lines []ytLine `xml:"text"`
}

type ytLine struct {
	Text string `xml:",chardata"`
}

// parsePlayerResponse locates and decodes ytInitialPlayerResponse in page.
func parsePlayerResponse(page []byte) (*ytPlayerResponse, error) {
	loc := playerResponseRe.FindIndex(page)
	if loc == nil {
		return nil, errPlayerResponseMissing
	}
	raw := extractJSON(page[loc[1]:])
	if raw == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}
	var resp ytPlayerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &resp, nil
}

// extractJSON returns the balanced {...} object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// pickTrackIndex chooses an English track, else an auto-generated one,
// else the first. langs[i] and kinds[i] describe track i.
func pickTrackIndex(langs, kinds []string) int {
	for i, l := range langs {
		if strings.HasPrefix(l, "en") {
			return i
		}
	}
	for i, k := range kinds {
		if k == "asr" {
			return i
		}
	}
	return 0
}

func pickCaptionTrack(tracks []captionTrack) captionTrack {
	langs := make([]string, len(tracks))
	kinds := make([]string, len(tracks))
	for i, t := range tracks {
		langs[i], kinds[i] = t.LanguageCode, t.Kind
	}
	return tracks[pickTrackIndex(langs, kinds)]
}

// parseTrackList returns the preferred language code from a timedtext listing.
func parseTrackList(body []byte) (string, error) {
	var list ytTrackList
	if err := xml.Unmarshal(body, &list); err != nil {
		return "", fmt.Errorf("parse track list: %w", err)
	}
	if len(list.Tracks) == 0 {
		return "", errNoCaptionTracks
	}
	langs := make([]string, len(list.Tracks))
	kinds := make([]string, len(list.Tracks))
	for i, t := range list.Tracks {
		langs[i], kinds[i] = t.LangCode, t.Kind
	}
	return list.Tracks[pickTrackIndex(langs, kinds)].LangCode, nil
}

// parseTimedText joins caption lines into one entity-decoded transcript.
func parseTimedText(body []byte) (string, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}
	var sb strings.Builder
	for _, line := range tt.Lines {
		text := engine.CollapseSpace(engine.DecodeEntities(engine.CleanHTML(line.Text)))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
