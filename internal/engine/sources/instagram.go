package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
)

const (
	instagramFailed = "⚠️ Failed to summarize Instagram post."
	noAudioContent  = "No audio content found."

	instagramTranscribePrompt = "Transcribe the spoken words from this Instagram video accurately."
)

var (
	instagramPageOpts = engine.RenderOptions{
		NavTimeout: 60 * time.Second,
		Settle:     7 * time.Second,
	}
	instagramEmbedOpts = engine.RenderOptions{
		NavTimeout:   60 * time.Second,
		WaitSelector: "article",
		WaitTimeout:  25 * time.Second,
	}
)

type instagramPost struct {
	Author     string
	Title      string
	Caption    string
	Hashtags   string
	VideoURL   string
	Transcript string
}

// InstagramExtractor renders the public post page and its embed view,
// transcribes an attached video, and summarizes the merged evidence.
type InstagramExtractor struct {
	gw        engine.Gateway
	render    engine.Renderer
	media     engine.MediaSource
	heur      CaptionHeuristics
	pageOpts  engine.RenderOptions
	embedOpts engine.RenderOptions
}

// Summarize returns a summary or the Instagram placeholder; it never errors.
func (e *InstagramExtractor) Summarize(ctx context.Context, rawURL string) (string, error) {
	out, err := e.summarize(ctx, rawURL)
	if err != nil {
		slog.Warn("instagram: extraction failed", slog.String("url", rawURL), slog.Any("error", err))
		return instagramFailed, nil
	}
	return out, nil
}

func (e *InstagramExtractor) summarize(ctx context.Context, rawURL string) (string, error) {
	visible, errA := e.publicPass(ctx, rawURL)
	if errA != nil {
		slog.Warn("instagram: public page pass failed", slog.Any("error", errA))
	}
	embed, errB := e.embedPass(ctx, embedURL(rawURL))
	if errB != nil {
		slog.Warn("instagram: embed pass failed", slog.Any("error", errB))
	}
	if errA != nil && errB != nil {
		return "", errors.Join(errA, errB)
	}

	post := mergeInstagram(visible, embed)

	post.Transcript = noAudioContent
	if post.VideoURL != "" {
		transcript, err := e.transcribeVideo(ctx, post.VideoURL)
		if err != nil {
			return "", err
		}
		post.Transcript = transcript
	}

	return e.gw.Generate(ctx, instagramInstruction, engine.TextPart(post.evidence()))
}

// publicPass reads author and a heuristic caption from the post page.
func (e *InstagramExtractor) publicPass(ctx context.Context, rawURL string) (instagramPost, error) {
	raw, err := e.render.Render(ctx, rawURL, e.pageOpts)
	if err != nil {
		return instagramPost{}, fmt.Errorf("render post: %w", err)
	}
	return parseInstagramPage(raw, e.heur)
}

// embedPass reads author, caption, title and video from the embed view.
func (e *InstagramExtractor) embedPass(ctx context.Context, u string) (instagramPost, error) {
	raw, err := e.render.Render(ctx, u, e.embedOpts)
	if err != nil {
		return instagramPost{}, fmt.Errorf("render embed: %w", err)
	}
	return parseInstagramEmbed(raw)
}

func (e *InstagramExtractor) transcribeVideo(ctx context.Context, videoURL string) (string, error) {
	asset, err := e.media.DownloadVideo(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	return engine.WithTempAsset(asset, func(a *engine.TempAsset) (string, error) {
		data, err := a.Read()
		if err != nil {
			return "", fmt.Errorf("read video: %w", err)
		}
		return e.gw.Generate(ctx, instagramTranscribePrompt, engine.MediaPart(data, a.MIMEType))
	})
}

func parseInstagramPage(raw string, h CaptionHeuristics) (instagramPost, error) {
	p, err := parsePage(raw)
	if err != nil {
		return instagramPost{}, err
	}
	post := instagramPost{
		Author:  p.firstText("header a", "h2 a", "span[dir='auto']"),
		Caption: h.caption(p, "span, div"),
	}
	post.Hashtags = extractHashtags(post.Caption)
	return post, nil
}

func parseInstagramEmbed(raw string) (instagramPost, error) {
	p, err := parsePage(raw)
	if err != nil {
		return instagramPost{}, err
	}
	video := p.firstAttr("video", "src")
	if strings.HasPrefix(video, "blob:") {
		video = ""
	}
	return instagramPost{
		Author:   p.firstText("a[href*='/']", "header span"),
		Caption:  engine.FirstNonEmpty(p.firstText("h1"), p.og.Description, "No caption found"),
		Title:    engine.FirstNonEmpty(p.firstText("title"), "Instagram Post"),
		VideoURL: engine.FirstNonEmpty(video, p.ogVideo()),
	}, nil
}

// mergeInstagram prefers the public page's author and caption, and always
// takes title and video from the embed view.
func mergeInstagram(visible, embed instagramPost) instagramPost {
	return instagramPost{
		Author:   engine.FirstNonEmpty(visible.Author, embed.Author, "Unknown"),
		Caption:  engine.FirstNonEmpty(visible.Caption, embed.Caption),
		Hashtags: visible.Hashtags,
		Title:    engine.FirstNonEmpty(embed.Title, "Instagram Post"),
		VideoURL: embed.VideoURL,
	}
}

// embedURL appends embed/ to the post path. Share parameters such as
// ?igsh= and fragments are dropped.
func embedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(raw, "/") + "/embed/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/") + "/embed/"
	u.RawPath = ""
	return u.String()
}

const instagramInstruction = `You are summarizing an Instagram reel or post.
Summarize the content in 2-3 natural, concise sentences.
Mention its theme, subject, and emotional tone.
Do not describe login pages, empty views, or access errors.
Keep the summary realistic and human-friendly. Reply with the summary only.`

func (p instagramPost) evidence() string {
	var sb strings.Builder
	sb.WriteString("Author: " + engine.Clamp(p.Author, 200) + "\n")
	sb.WriteString("Title: " + engine.Clamp(p.Title, 300) + "\n")
	sb.WriteString("Caption: " + engine.Clamp(p.Caption, 4000) + "\n")
	sb.WriteString("Hashtags: " + engine.Clamp(p.Hashtags, 500) + "\n")
	sb.WriteString("Transcript: " + engine.Clamp(p.Transcript, 6000))
	return sb.String()
}
