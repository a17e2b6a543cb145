package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
)

type gwCall struct {
	instruction string
	parts       []engine.Part
}

func (c gwCall) text() string {
	var sb strings.Builder
	sb.WriteString(c.instruction)
	for _, p := range c.parts {
		sb.WriteString("\n")
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (c gwCall) hasMedia() bool {
	for _, p := range c.parts {
		if p.IsMedia() {
			return true
		}
	}
	return false
}

// fakeGateway records every call. Text prompts get reply; media prompts
// get mediaReply unless mediaErr is set.
type fakeGateway struct {
	mu           sync.Mutex
	calls        []gwCall
	reply        string
	err          error
	mediaReply   string
	mediaErr     error
	unconfigured bool
}

func (g *fakeGateway) Generate(_ context.Context, instruction string, parts ...engine.Part) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := gwCall{instruction: instruction, parts: parts}
	g.calls = append(g.calls, c)
	if c.hasMedia() {
		return g.mediaReply, g.mediaErr
	}
	return g.reply, g.err
}

func (g *fakeGateway) Configured() bool { return !g.unconfigured }

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) last() gwCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return gwCall{}
	}
	return g.calls[len(g.calls)-1]
}

// fakeRenderer serves frozen DOM snapshots per URL.
type fakeRenderer struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]bool
	panic bool
	urls  []string
}

func (r *fakeRenderer) Render(_ context.Context, url string, _ engine.RenderOptions) (string, error) {
	r.mu.Lock()
	r.urls = append(r.urls, url)
	r.mu.Unlock()
	if r.panic {
		panic("renderer exploded")
	}
	if r.fail[url] {
		return "", errors.New("navigation timeout")
	}
	page, ok := r.pages[url]
	if !ok {
		return "", errors.New("no fixture for " + url)
	}
	return page, nil
}

// fakeMedia writes real files under a test temp dir so cleanup can be
// asserted.
type fakeMedia struct {
	t    *testing.T
	root string
	err  error

	mu    sync.Mutex
	dirs  []string
	calls int
}

func newFakeMedia(t *testing.T) *fakeMedia {
	return &fakeMedia{t: t, root: t.TempDir()}
}

func (m *fakeMedia) create(name, mimeType string) (*engine.TempAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	dir, err := os.MkdirTemp(m.root, "media-*")
	if err != nil {
		m.t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("fake media bytes"), 0o600); err != nil {
		m.t.Fatal(err)
	}
	m.dirs = append(m.dirs, dir)
	return engine.NewTempAsset(dir, path, mimeType), nil
}

func (m *fakeMedia) DownloadYouTubeAudio(_ context.Context, videoID, _ string) (*engine.TempAsset, error) {
	return m.create("audio_"+videoID+".webm", "audio/webm")
}

func (m *fakeMedia) DownloadVideo(_ context.Context, _ string) (*engine.TempAsset, error) {
	return m.create("video.mp4", "video/mp4")
}

// leftovers lists temp dirs that still exist.
func (m *fakeMedia) leftovers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var left []string
	for _, d := range m.dirs {
		if _, err := os.Stat(d); err == nil {
			left = append(left, d)
		}
	}
	return left
}

func (m *fakeMedia) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// testDeps returns Deps with fakes and zero pacing; callers override fields.
func testDeps(gw engine.Gateway, r engine.Renderer, m engine.MediaSource) Deps {
	return Deps{
		Gateway:       gw,
		Renderer:      r,
		Media:         m,
		Fetcher:       engine.NewFetcher(nil, nil, 5*time.Second),
		GitHubSpacing: time.Millisecond,
	}
}

// noMedia fails every download.
type noMedia struct{}

func (noMedia) DownloadYouTubeAudio(context.Context, string, string) (*engine.TempAsset, error) {
	return nil, errors.New("media disabled")
}

func (noMedia) DownloadVideo(context.Context, string) (*engine.TempAsset, error) {
	return nil, errors.New("media disabled")
}
