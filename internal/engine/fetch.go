package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
)

// BrowserClient is the Chrome-TLS-fingerprinted client from go-stealth.
type BrowserClient = stealth.BrowserClient

// DefaultRetryConfig bounds retries of idempotent GETs.
var DefaultRetryConfig = stealth.DefaultRetryConfig

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }

func RetryDo[T any](ctx context.Context, rc stealth.RetryConfig, fn func() (T, error)) (T, error) {
	return stealth.RetryDo(ctx, rc, fn)
}

func RetryHTTP(ctx context.Context, rc stealth.RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Code)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

const defaultBodyLimit = 8 << 20

// Fetcher performs bounded, retried GET requests for the extractors.
type Fetcher struct {
	client  *http.Client
	browser *BrowserClient
	timeout time.Duration
}

// NewFetcher builds a Fetcher. browser may be nil; page fetches then go
// through client.
func NewFetcher(client *http.Client, browser *BrowserClient, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{client: client, browser: browser, timeout: timeout}
}

// Get fetches url with the given headers and returns at most limit bytes
// of a 2xx body. limit <= 0 uses an 8MB cap.
func (f *Fetcher) Get(ctx context.Context, url string, headers map[string]string, limit int64) ([]byte, error) {
	metrics.FetchRequests.Add(1)
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultBodyLimit
	}
	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", UserAgentBot)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return f.client.Do(req)
	})
	if err != nil {
		metrics.FetchErrors.Add(1)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FetchErrors.Add(1)
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// GetJSON fetches url and decodes the JSON body into v.
func (f *Fetcher) GetJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	body, err := f.Get(ctx, url, headers, 0)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// GetPage fetches an HTML page the way a browser would. The stealth
// client is preferred when configured since several platforms reject
// non-browser TLS fingerprints; otherwise a Chrome UA is sent over net/http.
func (f *Fetcher) GetPage(ctx context.Context, url string) ([]byte, error) {
	if f.browser == nil {
		return f.Get(ctx, url, map[string]string{
			"User-Agent":      UserAgentChrome,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		}, 0)
	}

	metrics.FetchRequests.Add(1)
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	headers := ChromeHeaders()
	headers["accept-language"] = "en-US,en;q=0.9"
	data, err := RetryDo(ctx, DefaultRetryConfig, func() ([]byte, error) {
		d, status, err := f.browser.Do(http.MethodGet, url, headers, nil)
		if err != nil {
			return nil, err
		}
		if status < 200 || status > 299 {
			return nil, &StatusError{Code: status}
		}
		return d, nil
	})
	if err != nil {
		metrics.FetchErrors.Add(1)
		return nil, err
	}
	return data, nil
}

// Download streams url into w, failing once more than max bytes arrive.
// Uses its own timeout since media bodies are far larger than pages.
func (f *Fetcher) Download(ctx context.Context, url string, w io.Writer, max int64, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", UserAgentChrome)

	// The client timeout would cut long downloads; the context bounds it instead.
	client := *f.client
	client.Timeout = 0
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Code: resp.StatusCode}
	}
	n, err := io.Copy(w, io.LimitReader(resp.Body, max+1))
	if err != nil {
		return n, err
	}
	if n > max {
		return n, fmt.Errorf("media exceeds %d bytes", max)
	}
	return n, nil
}
