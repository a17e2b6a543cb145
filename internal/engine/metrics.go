package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	Extractions     [len(platformNames)]atomic.Int64
	ExtractFailures atomic.Int64
	LLMCalls        atomic.Int64
	LLMMediaCalls   atomic.Int64
	LLMErrors       atomic.Int64
	FetchRequests   atomic.Int64
	FetchErrors     atomic.Int64
	BrowserRenders  atomic.Int64
	BrowserErrors   atomic.Int64
	MediaDownloads  atomic.Int64
	MediaErrors     atomic.Int64
	CaptionHits     atomic.Int64
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	m := map[string]int64{
		"extract_failures": metrics.ExtractFailures.Load(),
		"llm_calls":        metrics.LLMCalls.Load(),
		"llm_media_calls":  metrics.LLMMediaCalls.Load(),
		"llm_errors":       metrics.LLMErrors.Load(),
		"fetch_requests":   metrics.FetchRequests.Load(),
		"fetch_errors":     metrics.FetchErrors.Load(),
		"browser_renders":  metrics.BrowserRenders.Load(),
		"browser_errors":   metrics.BrowserErrors.Load(),
		"media_downloads":  metrics.MediaDownloads.Load(),
		"media_errors":     metrics.MediaErrors.Load(),
		"caption_hits":     metrics.CaptionHits.Load(),
		"cache_hits":       hits,
		"cache_misses":     misses,
	}
	for i, name := range platformNames {
		m["extract_"+name] = metrics.Extractions[i].Load()
	}
	return m
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := make([]string, 0, len(platformNames)+13)
	for _, name := range platformNames {
		keys = append(keys, "extract_"+name)
	}
	keys = append(keys,
		"extract_failures",
		"llm_calls", "llm_media_calls", "llm_errors",
		"fetch_requests", "fetch_errors",
		"browser_renders", "browser_errors",
		"media_downloads", "media_errors",
		"caption_hits",
		"cache_hits", "cache_misses",
	)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// IncrExtraction counts one dispatched extraction for p.
func IncrExtraction(p Platform) {
	if p >= 0 && int(p) < len(platformNames) {
		metrics.Extractions[p].Add(1)
	}
}

func IncrExtractFailure() { metrics.ExtractFailures.Add(1) }
func IncrCaptionHit()     { metrics.CaptionHits.Add(1) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 30*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
