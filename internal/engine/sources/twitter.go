package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/Rishika-Mashetty/second-brain/internal/engine"
	twitter "github.com/anatolykoptev/go-twitter"
)

const (
	defaultOEmbedURL = "https://publish.twitter.com/oembed"
	xLinkPrefix      = "🐦 X post"
)

var statusIDRe = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// TweetLookup resolves a status ID to its text and author handle.
type TweetLookup func(ctx context.Context, statusID string) (text, author string, err error)

// TwitterLookup searches the conversation of a status through the
// go-twitter account pool and returns the root tweet.
func TwitterLookup(tw *twitter.Client) TweetLookup {
	if tw == nil {
		return nil
	}
	return func(ctx context.Context, statusID string) (string, string, error) {
		tweets, err := tw.SearchTimeline(ctx, "conversation_id:"+statusID, 5)
		if err != nil {
			return "", "", fmt.Errorf("twitter search: %w", err)
		}
		for _, t := range tweets {
			if t.ID == statusID {
				return t.Text, t.AuthorID, nil
			}
		}
		return "", "", errors.New("tweet not found in conversation")
	}
}

type tweetEvidence struct {
	Author string
	Text   string
}

// XExtractor summarizes a post when its text can be read without a
// session, and otherwise returns a direct link.
type XExtractor struct {
	gw        engine.Gateway
	fetch     *engine.Fetcher
	lookup    TweetLookup
	oembedURL string
}

// Summarize never errors: the worst case is the link affordance.
func (x *XExtractor) Summarize(ctx context.Context, rawURL string) (string, error) {
	ev, err := x.fetchOEmbed(ctx, rawURL)
	if err != nil {
		slog.Warn("x: oembed failed", slog.String("url", rawURL), slog.Any("error", err))
	}
	if ev.Text == "" && x.lookup != nil {
		if m := statusIDRe.FindStringSubmatch(rawURL); m != nil {
			text, author, lerr := x.lookup(ctx, m[1])
			if lerr != nil {
				slog.Warn("x: conversation lookup failed", slog.String("id", m[1]), slog.Any("error", lerr))
			} else {
				ev.Text = text
				ev.Author = engine.FirstNonEmpty(ev.Author, author)
			}
		}
	}

	if strings.TrimSpace(ev.Text) == "" || x.gw == nil || !x.gw.Configured() {
		return xLink(ev.Author, rawURL), nil
	}

	out, err := x.gw.Generate(ctx,
		"Summarize this X (Twitter) post in 1-2 concise sentences. Capture its main point and tone. Reply with the summary only.",
		engine.TextPart(fmt.Sprintf("Author: %s\nPost: %s", engine.Clamp(ev.Author, 200), engine.Clamp(ev.Text, 4000))))
	if err != nil {
		slog.Warn("x: summarize failed", slog.Any("error", err))
		return xLink(ev.Author, rawURL), nil
	}
	return out, nil
}

type oembedResponse struct {
	AuthorName string `json:"author_name"`
	HTML       string `json:"html"`
}

func (x *XExtractor) fetchOEmbed(ctx context.Context, rawURL string) (tweetEvidence, error) {
	q := url.Values{"url": {rawURL}, "omit_script": {"1"}, "dnt": {"true"}}
	var resp oembedResponse
	if err := x.fetch.GetJSON(ctx, x.oembedURL+"?"+q.Encode(), nil, &resp); err != nil {
		return tweetEvidence{}, err
	}
	text, err := parseTweetEmbed(resp.HTML)
	if err != nil {
		return tweetEvidence{Author: resp.AuthorName}, err
	}
	return tweetEvidence{Author: resp.AuthorName, Text: text}, nil
}

// parseTweetEmbed reads the post body out of the embed widget markup.
func parseTweetEmbed(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	p := doc.Find("blockquote p").First()
	p.Find("br").ReplaceWithHtml(" ")
	return engine.CollapseSpace(p.Text()), nil
}

func xLink(author, rawURL string) string {
	if author = strings.TrimSpace(author); author != "" {
		return fmt.Sprintf("%s by %s — open on X: %s", xLinkPrefix, author, rawURL)
	}
	return xLinkPrefix + " — open on X: " + rawURL
}
