package linkserver

import (
	"context"
	"log/slog"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
	"github.com/Rishika-Mashetty/second-brain/internal/engine/sources"
	"github.com/Rishika-Mashetty/second-brain/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Summarizer turns a URL into a summary string; it never fails.
type Summarizer interface {
	ExtractSummary(ctx context.Context, url string) string
}

// RegisterTools registers the link tools on the given MCP server:
// summarize_url, classify_url, ask_saved_links.
func RegisterTools(server *mcp.Server, s Summarizer, gw engine.Gateway) {
	registerSummarizeURL(server, s)
	registerClassifyURL(server)
	registerAskSavedLinks(server, gw)
}

type SummarizeURLInput struct {
	URL     string `json:"url" jsonschema:"Link to summarize (YouTube, X/Twitter, Instagram, LinkedIn or GitHub)"`
	Comment string `json:"comment,omitempty" jsonschema:"Free-text note saved alongside the link; returned unchanged"`
	Refresh bool   `json:"refresh,omitempty" jsonschema:"Ignore a cached summary and extract again (default: false)"`
}

type SummarizeURLOutput struct {
	URL      string `json:"url"`
	Platform string `json:"platform"`
	Summary  string `json:"summary"`
	Comment  string `json:"comment,omitempty"`
	Cached   bool   `json:"cached,omitempty"`
}

func registerSummarizeURL(server *mcp.Server, s Summarizer) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize_url",
		Description: "Summarize a saved link. Detects the platform (YouTube, X/Twitter, Instagram, LinkedIn, GitHub), pulls content through captions, APIs or a headless browser, transcribes media when needed, and returns a 2-3 sentence summary. Unsupported links get a fixed placeholder instead of an error.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SummarizeURLInput) (*mcp.CallToolResult, SummarizeURLOutput, error) {
		out, err := summarizeURL(ctx, s, input)
		return nil, out, err
	})
}

// summarizeURL never returns a tool error: an empty or unusable url
// classifies as generic and gets the generic placeholder.
func summarizeURL(ctx context.Context, s Summarizer, input SummarizeURLInput) (SummarizeURLOutput, error) {
	u := toolutil.NormURL(input.URL)
	if u == "" {
		return SummarizeURLOutput{Platform: engine.PlatformGeneric.String(), Summary: sources.GenericLink, Comment: input.Comment}, nil
	}
	cacheKey := engine.CacheKey("summarize_url", u)
	if !input.Refresh {
		if out, ok := toolutil.CacheLoadJSON[SummarizeURLOutput](ctx, cacheKey); ok {
			out.Comment = input.Comment
			out.Cached = true
			return out, nil
		}
	}

	out := SummarizeURLOutput{
		URL:      u,
		Platform: engine.Classify(u).String(),
		Summary:  s.ExtractSummary(ctx, u),
		Comment:  input.Comment,
	}

	// Placeholders are not cached so a later call can succeed.
	if !sources.IsPlaceholder(out.Summary) {
		cached := out
		cached.Comment = ""
		toolutil.CacheStoreJSON(ctx, cacheKey, cached)
	} else {
		slog.Debug("summarize_url: placeholder not cached", slog.String("platform", out.Platform))
	}
	return out, nil
}

type ClassifyURLInput struct {
	URL string `json:"url" jsonschema:"Link to classify"`
}

type ClassifyURLOutput struct {
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

func registerClassifyURL(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_url",
		Description: "Detect which platform a link belongs to: youtube, x, instagram, linkedin, github, or generic. Pure string matching, no network access.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ClassifyURLInput) (*mcp.CallToolResult, ClassifyURLOutput, error) {
		return nil, ClassifyURLOutput{URL: input.URL, Platform: engine.Classify(input.URL).String()}, nil
	})
}
