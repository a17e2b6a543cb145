package sources

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Rishika-Mashetty/second-brain/internal/engine"
)

const (
	linkedInFailed   = "⚠️ Failed to summarize LinkedIn post."
	linkedInTooShort = "⚠️ Unable to summarize — LinkedIn post content not accessible or too short."

	// LinkedInMinDescription is the shortest post body worth an LLM call.
	LinkedInMinDescription = 20
)

// LinkedInSelectors lists the DOM fallbacks for a LinkedIn post, in
// priority order.
var LinkedInSelectors = struct {
	Author     []string
	Containers []string
	Hashtags   string
}{
	Author: []string{
		"span.feed-shared-actor__name",
		"div.update-components-actor__title span",
	},
	Containers: []string{
		"div.update-components-text",
		"div.feed-shared-update-v2__description-wrapper",
	},
	Hashtags: "a[href*='/feed/hashtag/']",
}

var linkedInNoiseRe = regexp.MustCompile(`(?i)See more|\.\.\.more|…more`)

var linkedInOpts = engine.RenderOptions{
	NavTimeout:  90 * time.Second,
	ScrollSteps: 5,
	ScrollDelay: 2 * time.Second,
	Width:       1280,
	Height:      900,
}

type linkedInPost struct {
	Author      string
	Title       string
	Description string
	Hashtags    string
}

// LinkedInExtractor scrolls a post into view and summarizes its text.
type LinkedInExtractor struct {
	gw     engine.Gateway
	render engine.Renderer
	opts   engine.RenderOptions
}

// Summarize returns a summary or one of the LinkedIn placeholders.
func (e *LinkedInExtractor) Summarize(ctx context.Context, rawURL string) (string, error) {
	raw, err := e.render.Render(ctx, rawURL, e.opts)
	if err != nil {
		slog.Warn("linkedin: render failed", slog.String("url", rawURL), slog.Any("error", err))
		return linkedInFailed, nil
	}
	post, err := parseLinkedInPost(raw)
	if err != nil {
		slog.Warn("linkedin: parse failed", slog.Any("error", err))
		return linkedInFailed, nil
	}

	if len([]rune(post.Description)) < LinkedInMinDescription {
		slog.Info("linkedin: post content too short", slog.String("url", rawURL))
		return linkedInTooShort, nil
	}

	out, err := e.gw.Generate(ctx, linkedInInstruction, engine.TextPart(post.evidence()))
	if err != nil {
		slog.Warn("linkedin: summarize failed", slog.Any("error", err))
		return linkedInFailed, nil
	}
	return out, nil
}

func parseLinkedInPost(raw string) (linkedInPost, error) {
	p, err := parsePage(raw)
	if err != nil {
		return linkedInPost{}, fmt.Errorf("parse DOM: %w", err)
	}

	var tags []string
	p.doc.Find(LinkedInSelectors.Hashtags).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			tags = append(tags, t)
		}
	})

	return linkedInPost{
		Author:      engine.FirstNonEmpty(p.firstText(LinkedInSelectors.Author...), "Unknown"),
		Title:       cleanLinkedIn(engine.FirstNonEmpty(p.og.Title, p.firstText("title"), "LinkedIn Post")),
		Description: cleanLinkedIn(p.walkText(LinkedInSelectors.Containers, 2)),
		Hashtags:    strings.Join(tags, " "),
	}, nil
}

func cleanLinkedIn(s string) string {
	return strings.TrimSpace(linkedInNoiseRe.ReplaceAllString(engine.CollapseSpace(s), ""))
}

const linkedInInstruction = `You are a professional summarizer. Summarize this LinkedIn post in 2-3 sentences.
Capture the key idea, purpose, and context (professional, technical, or motivational tone).
Exclude UI or login details. Focus only on what the post communicates. Reply with the summary only.`

func (p linkedInPost) evidence() string {
	return fmt.Sprintf("Author: %s\nTitle: %s\nContent: %s\nHashtags: %s",
		engine.Clamp(p.Author, 200),
		engine.Clamp(p.Title, 300),
		engine.Clamp(p.Description, 8000),
		engine.Clamp(p.Hashtags, 500))
}
