package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
)

const (
	defaultYouTubeBase   = "https://www.youtube.com"
	defaultTimedTextBase = "https://video.google.com/timedtext"

	// YouTubeEvidenceChars caps the title+description+transcript block.
	YouTubeEvidenceChars = 12000
	ytDescriptionChars   = 2000
)

var errInvalidYouTubeURL = errors.New("invalid YouTube URL")

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`v=([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`shorts/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`embed/([0-9A-Za-z_-]{11})`),
}

// extractVideoID returns the 11-char video ID from any accepted URL shape.
func extractVideoID(u string) (string, error) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(u); m != nil {
			return m[1], nil
		}
	}
	return "", errInvalidYouTubeURL
}

type ytVideoMeta struct {
	Title       string
	Description string
}

var unknownVideoMeta = ytVideoMeta{Title: "Unknown", Description: "Unavailable"}

// YouTubeExtractor summarizes a video from captions when it has them and
// from a transcription of its audio otherwise.
type YouTubeExtractor struct {
	gw            engine.Gateway
	media         engine.MediaSource
	fetch         *engine.Fetcher
	watchBase     string
	timedTextBase string
}

// Summarize never swallows terminal failures; the caller converts them.
func (y *YouTubeExtractor) Summarize(ctx context.Context, rawURL string) (string, error) {
	id, err := extractVideoID(rawURL)
	if err != nil {
		return "", err
	}

	meta, player := y.fetchMeta(ctx, id)

	transcript, err := y.fetchCaptions(ctx, id, player)
	if err == nil && transcript != "" {
		engine.IncrCaptionHit()
		slog.Info("youtube: using captions", slog.String("id", id), slog.Int("chars", len(transcript)))
	} else {
		slog.Warn("youtube: no captions, transcribing audio", slog.String("id", id), slog.Any("reason", err))
		transcript, err = y.transcribeAudio(ctx, id, meta)
		if err != nil {
			return "", err
		}
	}

	evidence := engine.Clamp(formatVideoEvidence(meta, transcript), YouTubeEvidenceChars)
	return y.gw.Generate(ctx,
		"Summarize the following video metadata and transcript into 2-3 concise sentences "+
			"highlighting the key theme and value. Reply with the summary only.",
		engine.TextPart(evidence))
}

// fetchMeta reads title and description from the watch page. Failures give
// placeholder metadata; the player response is returned for caption lookup.
func (y *YouTubeExtractor) fetchMeta(ctx context.Context, id string) (ytVideoMeta, *ytPlayerResponse) {
	page, err := y.fetch.GetPage(ctx, y.watchBase+"/watch?v="+id)
	if err != nil {
		slog.Warn("youtube: watch page failed", slog.String("id", id), slog.Any("error", err))
		return unknownVideoMeta, nil
	}
	player, err := parsePlayerResponse(page)
	if err != nil {
		slog.Warn("youtube: player response", slog.String("id", id), slog.Any("error", err))
		return unknownVideoMeta, nil
	}

	meta := ytVideoMeta{Title: "Untitled"}
	if d := player.VideoDetails; d != nil {
		if d.Title != "" {
			meta.Title = engine.DecodeEntities(d.Title)
		}
		meta.Description = engine.DecodeEntities(d.ShortDescription)
	}
	return meta, player
}

// fetchCaptions returns the transcript from the player's caption tracks,
// falling back to the public timed-text listing.
func (y *YouTubeExtractor) fetchCaptions(ctx context.Context, id string, player *ytPlayerResponse) (string, error) {
	if tracks := player.tracks(); len(tracks) > 0 {
		track := pickCaptionTrack(tracks)
		body, err := y.fetch.Get(ctx, track.BaseURL, nil, 2<<20)
		if err == nil {
			if text, perr := parseTimedText(body); perr == nil && text != "" {
				return text, nil
			}
		}
		slog.Debug("youtube: player caption track failed", slog.String("id", id), slog.Any("error", err))
	}

	listURL := y.timedTextBase + "?" + url.Values{"type": {"list"}, "v": {id}, "hl": {"en"}}.Encode()
	body, err := y.fetch.Get(ctx, listURL, nil, 1<<20)
	if err != nil {
		return "", fmt.Errorf("timedtext list: %w", err)
	}
	lang, err := parseTrackList(body)
	if err != nil {
		return "", err
	}

	trackURL := y.timedTextBase + "?" + url.Values{"lang": {lang}, "v": {id}}.Encode()
	body, err = y.fetch.Get(ctx, trackURL, nil, 2<<20)
	if err != nil {
		return "", fmt.Errorf("timedtext track: %w", err)
	}
	return parseTimedText(body)
}

// transcribeAudio downloads the audio stream and asks the gateway for a
// first-pass transcription and summary. The audio file is always removed.
func (y *YouTubeExtractor) transcribeAudio(ctx context.Context, id string, meta ytVideoMeta) (string, error) {
	asset, err := y.media.DownloadYouTubeAudio(ctx, id, defaultYouTubeBase+"/watch?v="+id)
	if err != nil {
		return "", fmt.Errorf("youtube audio: %w", err)
	}
	return engine.WithTempAsset(asset, func(a *engine.TempAsset) (string, error) {
		data, err := a.Read()
		if err != nil {
			return "", fmt.Errorf("read audio: %w", err)
		}
		instruction := fmt.Sprintf("Transcribe this video's audio and summarize it clearly. "+
			"Include the key points and tone in under 2 paragraphs.\n\nVideo info:\nTitle: %s\nDescription: %s",
			engine.Clamp(meta.Title, 300), engine.Clamp(meta.Description, ytDescriptionChars))
		out, err := y.gw.Generate(ctx, instruction, engine.MediaPart(data, a.MIMEType))
		if err != nil {
			return "", fmt.Errorf("transcribe audio: %w", err)
		}
		return out, nil
	})
}

func formatVideoEvidence(meta ytVideoMeta, transcript string) string {
	var sb strings.Builder
	sb.WriteString("Title: " + meta.Title + "\n")
	sb.WriteString("Description: " + meta.Description + "\n")
	sb.WriteString("Transcript / Captions:\n")
	sb.WriteString(transcript)
	return sb.String()
}
