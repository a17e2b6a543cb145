// Package toolutil provides shared helper functions for the MCP tools.
package toolutil

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
)

// CacheLoadJSON tries to load a cached value of type T from the engine cache.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	var out T
	data, ok := engine.CacheGet(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it in the engine cache.
func CacheStoreJSON[T any](ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	engine.CacheSet(ctx, key, data)
}

// NormURL trims whitespace and drops a URL fragment so equivalent links
// share a cache key. Unparseable input is returned trimmed.
func NormURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
