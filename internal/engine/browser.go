package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RenderOptions controls one headless page load.
type RenderOptions struct {
	NavTimeout   time.Duration // bounds navigation + load wait
	Settle       time.Duration // fixed delay after load for client-side content
	ScrollSteps  int           // viewport-height scrolls after settling
	ScrollDelay  time.Duration // pause after each scroll
	WaitSelector string        // optional element to wait for (best effort)
	WaitTimeout  time.Duration
	Width        int
	Height       int
}

// Renderer loads a URL in a headless browser and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (string, error)
}

// RodRenderer launches a local Chrome for every Render call and shuts it
// down before returning. With RemoteURL set, the external Chrome is shared:
// each call gets its own incognito context and closes only that.
type RodRenderer struct {
	RemoteURL string // DevTools websocket of an external Chrome; empty = launch local
	Bin       string // local Chrome binary; empty = launcher default

	mu     sync.Mutex
	remote *rod.Browser
}

// Render opens a stealth page, navigates, settles, scrolls and returns
// document.documentElement.outerHTML.
func (r *RodRenderer) Render(ctx context.Context, url string, opts RenderOptions) (html string, err error) {
	metrics.BrowserRenders.Add(1)
	defer func() {
		if err != nil {
			metrics.BrowserErrors.Add(1)
		}
	}()

	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}

	b, release, err := r.connect(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	page, err := stealth.Page(b)
	if err != nil {
		return "", fmt.Errorf("browser: create page: %w", err)
	}
	defer page.Close()

	if opts.Width > 0 && opts.Height > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  opts.Width,
			Height: opts.Height,
		}); err != nil {
			slog.Debug("browser: set viewport failed", slog.Any("error", err))
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, opts.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return "", fmt.Errorf("browser: navigate: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		slog.Warn("browser: wait load timeout", slog.String("url", url), slog.Any("error", err))
	}

	if opts.WaitSelector != "" {
		wait := opts.WaitTimeout
		if wait <= 0 {
			wait = 25 * time.Second
		}
		if _, err := page.Context(ctx).Timeout(wait).Element(opts.WaitSelector); err != nil {
			slog.Debug("browser: selector not found", slog.String("selector", opts.WaitSelector))
		}
	}

	if err := sleepCtx(ctx, opts.Settle); err != nil {
		return "", err
	}
	for i := 0; i < opts.ScrollSteps; i++ {
		if _, err := page.Context(ctx).Eval(`() => window.scrollBy(0, window.innerHeight)`); err != nil {
			slog.Debug("browser: scroll failed", slog.Int("step", i), slog.Any("error", err))
			break
		}
		if err := sleepCtx(ctx, opts.ScrollDelay); err != nil {
			return "", err
		}
	}

	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// connect returns the browser scope for one call and the func that tears
// it down.
func (r *RodRenderer) connect(ctx context.Context) (*rod.Browser, func(), error) {
	if r.RemoteURL != "" {
		return r.connectRemote(ctx)
	}

	l := launcher.New().Headless(true).NoSandbox(true)
	if r.Bin != "" {
		l = l.Bin(r.Bin)
	}
	l = l.Set("disable-blink-features", "AutomationControlled")
	u, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("browser: connect: %w", err)
	}

	release := func() {
		if err := b.Close(); err != nil {
			slog.Debug("browser: close failed", slog.Any("error", err))
		}
		l.Cleanup()
	}
	return b, release, nil
}

// connectRemote reuses one connection to the external Chrome and opens an
// incognito context on it. The shared browser itself is never closed here.
func (r *RodRenderer) connectRemote(ctx context.Context) (*rod.Browser, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remote == nil {
		b := rod.New().ControlURL(r.RemoteURL)
		if err := b.Connect(); err != nil {
			return nil, nil, fmt.Errorf("browser: connect: %w", err)
		}
		r.remote = b
	}

	inc, release, err := openIncognito[*rod.Browser](r.remote)
	if err != nil {
		// Stale connection; reconnect on the next call.
		r.remote = nil
		return nil, nil, err
	}
	return inc.Context(ctx), release, nil
}

type incognitoParent[B io.Closer] interface {
	Incognito() (B, error)
}

// openIncognito opens an isolated context on parent. The returned release
// closes that context and leaves parent running.
func openIncognito[B io.Closer](parent incognitoParent[B]) (B, func(), error) {
	inc, err := parent.Incognito()
	if err != nil {
		var zero B
		return zero, nil, fmt.Errorf("browser: incognito: %w", err)
	}
	release := func() {
		if err := inc.Close(); err != nil {
			slog.Debug("browser: close incognito failed", slog.Any("error", err))
		}
	}
	return inc, release, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
