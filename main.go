// second-brain: link summarization MCP server.
//
// Exposes three MCP tools: summarize_url, classify_url, ask_saved_links.
// A link is classified by platform, its content pulled through captions,
// REST APIs or a headless browser, and condensed by an LLM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
	"github.com/Rishika-Mashetty/second-brain/internal/engine/sources"
	"github.com/Rishika-Mashetty/second-brain/internal/linkserver"
	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	twitter "github.com/anatolykoptev/go-twitter"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	dispatcher, gw := initEngine()

	slog.Info("starting second-brain", slog.String("port", mcpPort))

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "second-brain",
		Version: version,
	}, nil)

	linkserver.RegisterTools(server, dispatcher, gw)
	slog.Info("tools registered", slog.Int("count", 3))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "second-brain",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() (*sources.Dispatcher, engine.Gateway) {
	c := engine.Config{
		LLMAPIKey:          env.Str("LLM_API_KEY", env.Str("GEMINI_API_KEY", "")),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:           env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMMediaModel:      env.Str("LLM_MEDIA_MODEL", "gemini-2.0-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 4096),
		FetchTimeout:       env.Duration("FETCH_TIMEOUT", 20*time.Second),
		GithubToken:        env.Str("GITHUB_TOKEN", ""),
		BrowserURL:         env.Str("BROWSER_URL", ""),
		BrowserBin:         env.Str("BROWSER_BIN", ""),
		YTDLPPath:          env.Str("YTDLP_PATH", "yt-dlp"),
		MediaTempDir:       env.Str("MEDIA_TMP_DIR", ""),
		MediaMaxBytes:      int64(env.Int("MEDIA_MAX_BYTES", 100<<20)),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(20))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	// Twitter client is only used when accounts are configured; oEmbed covers the rest.
	if accounts := twitter.ParseAccounts(env.Str("TWITTER_ACCOUNTS", "")); len(accounts) > 0 {
		tw, err := twitter.NewClient(twitter.ClientConfig{Accounts: accounts})
		if err != nil {
			slog.Warn("twitter client init failed", slog.Any("error", err))
		} else {
			c.TwitterClient = tw
			slog.Info("twitter client ready", slog.Int("pool_size", tw.Pool().Size()))
		}
	}

	c.Defaults()

	gw, err := engine.NewLLMGateway(context.Background(), c)
	if err != nil {
		slog.Error("llm gateway init failed, summarization disabled", slog.Any("error", err))
		gw = &engine.LLMGateway{}
	}

	fetcher := engine.NewFetcher(c.HTTPClient, c.BrowserClient, c.FetchTimeout)

	engine.InitCache(
		env.Str("REDIS_URL", ""),
		env.Duration("CACHE_TTL", 24*time.Hour),
		env.Int("CACHE_MAX_ENTRIES", 1000),
		env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
	)

	d := sources.NewDispatcher(sources.Deps{
		Gateway:     gw,
		Renderer:    &engine.RodRenderer{RemoteURL: c.BrowserURL, Bin: c.BrowserBin},
		Media:       engine.NewMediaAcquirer(c, fetcher),
		Fetcher:     fetcher,
		TweetLookup: sources.TwitterLookup(c.TwitterClient),
		GithubToken: c.GithubToken,
	})
	return d, gw
}
