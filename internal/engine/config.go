package engine

import (
	"net/http"
	"time"

	twitter "github.com/anatolykoptev/go-twitter"
)

// Config holds all engine configuration, injected from main.
// Nothing in the engine reads it from package state; constructors take
// the fields they need.
type Config struct {
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMMediaModel      string // model used for audio/video transcription
	LLMTemperature     float64
	LLMMaxTokens       int
	FetchTimeout       time.Duration
	GithubToken        string
	BrowserURL         string // remote Chrome DevTools URL; empty = launch locally
	BrowserBin         string // local Chrome binary; empty = rod launcher default
	YTDLPPath          string
	MediaTempDir       string // parent dir for per-call temp media; empty = os.TempDir()
	MediaMaxBytes      int64
	HTTPClient         *http.Client
	BrowserClient      *BrowserClient  // nil = plain net/http for page fetches
	TwitterClient      *twitter.Client // nil = oEmbed only
}

// Defaults fills zero values with the engine's standard limits.
func (c *Config) Defaults() {
	if c.LLMAPIBase == "" {
		c.LLMAPIBase = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if c.LLMModel == "" {
		c.LLMModel = "gemini-2.5-flash"
	}
	if c.LLMMediaModel == "" {
		c.LLMMediaModel = "gemini-2.0-flash"
	}
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = 4096
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 20 * time.Second
	}
	if c.YTDLPPath == "" {
		c.YTDLPPath = "yt-dlp"
	}
	if c.MediaMaxBytes <= 0 {
		c.MediaMaxBytes = 100 << 20
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}
