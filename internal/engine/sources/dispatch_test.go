package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSummaryGenericLinks(t *testing.T) {
	gw := &fakeGateway{reply: "never"}
	r := &fakeRenderer{}
	m := newFakeMedia(t)
	d := NewDispatcher(testDeps(gw, r, m))

	for _, u := range []string{"", "not a url", "https://example.com/post/1", "ftp://files.local/x", "%%%"} {
		t.Run(u, func(t *testing.T) {
			assert.Equal(t, GenericLink, d.ExtractSummary(context.Background(), u))
		})
	}
	assert.Zero(t, gw.count())
	assert.Empty(t, r.urls)
	assert.Zero(t, m.callCount())
}

func TestExtractSummaryNotConfigured(t *testing.T) {
	for name, d := range map[string]*Dispatcher{
		"unconfigured": NewDispatcher(testDeps(&fakeGateway{unconfigured: true}, &fakeRenderer{}, newFakeMedia(t))),
		"nil gateway":  NewDispatcher(testDeps(nil, &fakeRenderer{}, newFakeMedia(t))),
	} {
		t.Run(name, func(t *testing.T) {
			for _, u := range []string{
				"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
				"https://www.instagram.com/p/abc/",
				"https://www.linkedin.com/posts/x",
				"https://github.com/o/r",
			} {
				assert.Equal(t, SummaryNotConfigured, d.ExtractSummary(context.Background(), u), u)
			}
		})
	}
}

func TestExtractSummaryRecoversPanic(t *testing.T) {
	gw := &fakeGateway{reply: "summary"}
	d := NewDispatcher(testDeps(gw, &fakeRenderer{panic: true}, newFakeMedia(t)))

	var out string
	require.NotPanics(t, func() {
		out = d.ExtractSummary(context.Background(), "https://www.linkedin.com/posts/someone_activity-1")
	})
	assert.Equal(t, SummaryFailed, out)
	assert.Zero(t, gw.count())
}

func TestExtractSummaryEmptyOutput(t *testing.T) {
	gw := &fakeGateway{reply: ""}
	r := &fakeRenderer{pages: map[string]string{
		"https://www.linkedin.com/posts/a": linkedInFixture,
	}}
	d := NewDispatcher(testDeps(gw, r, newFakeMedia(t)))

	assert.Equal(t, SummaryFailed, d.ExtractSummary(context.Background(), "https://www.linkedin.com/posts/a"))
}

func TestExtractSummaryInvalidYouTubeURL(t *testing.T) {
	gw := &fakeGateway{reply: "summary"}
	d := NewDispatcher(testDeps(gw, &fakeRenderer{}, newFakeMedia(t)))

	assert.Equal(t, SummaryFailed, d.ExtractSummary(context.Background(), "https://www.youtube.com/feed/trending"))
	assert.Zero(t, gw.count())
}

func TestIsPlaceholder(t *testing.T) {
	for _, s := range []string{
		SummaryFailed, GenericLink, SummaryNotConfigured,
		instagramFailed, linkedInFailed, linkedInTooShort, githubFailed,
		xLink("", "https://x.com/a/status/1"),
	} {
		assert.True(t, IsPlaceholder(s), s)
	}
	assert.False(t, IsPlaceholder("A real summary of the post."))
	assert.False(t, IsPlaceholder(""))
}
