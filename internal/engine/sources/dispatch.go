package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
)

// Placeholders returned by the dispatcher itself.
const (
	SummaryFailed        = "⚠️ Failed to generate summary for this URL."
	GenericLink          = "Generic link – no specialized extractor available yet."
	SummaryNotConfigured = "⚠️ Summarization is not configured (missing LLM API key)."
)

var placeholders = map[string]bool{
	SummaryFailed:        true,
	GenericLink:          true,
	SummaryNotConfigured: true,
	instagramFailed:      true,
	linkedInFailed:       true,
	linkedInTooShort:     true,
	githubFailed:         true,
}

// IsPlaceholder reports whether s is a fixed fallback string rather than a
// generated summary.
func IsPlaceholder(s string) bool {
	return placeholders[s] || strings.HasPrefix(s, xLinkPrefix)
}

// Deps carries every handle the extractors need. Zero-valued base URLs
// default to the public endpoints.
type Deps struct {
	Gateway     engine.Gateway
	Renderer    engine.Renderer
	Media       engine.MediaSource
	Fetcher     *engine.Fetcher
	TweetLookup TweetLookup
	GithubToken string

	GitHubAPIBase string
	GitHubRawBase string
	YouTubeBase   string
	TimedTextBase string
	OEmbedURL     string

	// Render and pacing overrides, mainly for tests.
	CaptionHeuristics *CaptionHeuristics
	InstagramPage     *engine.RenderOptions
	InstagramEmbed    *engine.RenderOptions
	LinkedIn          *engine.RenderOptions
	GitHubSpacing     time.Duration
}

// Dispatcher routes a URL to its platform extractor.
type Dispatcher struct {
	gw        engine.Gateway
	youtube   *YouTubeExtractor
	instagram *InstagramExtractor
	linkedin  *LinkedInExtractor
	github    *GitHubExtractor
	x         *XExtractor
}

// NewDispatcher wires the extractors from d.
func NewDispatcher(d Deps) *Dispatcher {
	if d.Fetcher == nil {
		d.Fetcher = engine.NewFetcher(nil, nil, 0)
	}
	if d.Renderer == nil {
		d.Renderer = &engine.RodRenderer{}
	}
	if d.Media == nil {
		d.Media = engine.NewMediaAcquirer(engine.Config{}, d.Fetcher)
	}
	heur := DefaultCaptionHeuristics
	if d.CaptionHeuristics != nil {
		heur = *d.CaptionHeuristics
	}
	spacing := d.GitHubSpacing
	if spacing == 0 {
		spacing = sampleSpacing
	}

	return &Dispatcher{
		gw: d.Gateway,
		youtube: &YouTubeExtractor{
			gw:            d.Gateway,
			media:         d.Media,
			fetch:         d.Fetcher,
			watchBase:     orDefault(d.YouTubeBase, defaultYouTubeBase),
			timedTextBase: orDefault(d.TimedTextBase, defaultTimedTextBase),
		},
		instagram: &InstagramExtractor{
			gw:        d.Gateway,
			render:    d.Renderer,
			media:     d.Media,
			heur:      heur,
			pageOpts:  optsOr(d.InstagramPage, instagramPageOpts),
			embedOpts: optsOr(d.InstagramEmbed, instagramEmbedOpts),
		},
		linkedin: &LinkedInExtractor{
			gw:     d.Gateway,
			render: d.Renderer,
			opts:   optsOr(d.LinkedIn, linkedInOpts),
		},
		github: &GitHubExtractor{
			gw:      d.Gateway,
			fetch:   d.Fetcher,
			token:   d.GithubToken,
			apiBase: orDefault(d.GitHubAPIBase, defaultGitHubAPI),
			rawBase: orDefault(d.GitHubRawBase, defaultGitHubRaw),
			spacing: spacing,
		},
		x: &XExtractor{
			gw:        d.Gateway,
			fetch:     d.Fetcher,
			lookup:    d.TweetLookup,
			oembedURL: orDefault(d.OEmbedURL, defaultOEmbedURL),
		},
	}
}

// ExtractSummary classifies rawURL and runs its extractor. It always
// returns a non-empty string: a summary or a fixed placeholder. Extractor
// errors and panics never escape.
func (d *Dispatcher) ExtractSummary(ctx context.Context, rawURL string) (summary string) {
	platform := engine.Classify(rawURL)
	engine.IncrExtraction(platform)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("extract: panic recovered",
				slog.String("platform", platform.String()),
				slog.Any("panic", r))
			engine.IncrExtractFailure()
			summary = SummaryFailed
		}
	}()

	if platform == engine.PlatformGeneric {
		slog.Info("extract: no extractor", slog.String("url", rawURL))
		return GenericLink
	}

	if platform != engine.PlatformX && (d.gw == nil || !d.gw.Configured()) {
		return SummaryNotConfigured
	}

	var out string
	err := engine.TrackOperation(ctx, "extract_"+platform.String(), func(ctx context.Context) error {
		var err error
		out, err = d.run(ctx, platform, rawURL)
		return err
	})
	if err != nil || out == "" {
		slog.Warn("extract: failed",
			slog.String("platform", platform.String()),
			slog.String("url", rawURL),
			slog.Any("error", err))
		engine.IncrExtractFailure()
		return SummaryFailed
	}
	return out
}

func (d *Dispatcher) run(ctx context.Context, p engine.Platform, rawURL string) (string, error) {
	slog.Info("extract: start", slog.String("platform", p.String()), slog.String("url", rawURL))
	switch p {
	case engine.PlatformYouTube:
		return d.youtube.Summarize(ctx, rawURL)
	case engine.PlatformX:
		return d.x.Summarize(ctx, rawURL)
	case engine.PlatformInstagram:
		return d.instagram.Summarize(ctx, rawURL)
	case engine.PlatformLinkedIn:
		return d.linkedin.Summarize(ctx, rawURL)
	case engine.PlatformGitHub:
		return d.github.Summarize(ctx, rawURL)
	}
	return "", fmt.Errorf("no extractor for platform %s", p)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func optsOr(o *engine.RenderOptions, def engine.RenderOptions) engine.RenderOptions {
	if o == nil {
		return def
	}
	return *o
}
