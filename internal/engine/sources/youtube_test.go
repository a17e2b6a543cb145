package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rishika-Mashetty/second-brain/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVideoID = "dQw4w9WgXcQ"

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", testVideoID, false},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", testVideoID, false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", testVideoID, false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", testVideoID, false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", testVideoID, false},
		{"https://www.youtube.com/watch?v=short", "", true},
		{"https://www.youtube.com/@channel", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := extractVideoID(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalidYouTubeURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	in := []byte(`{"a":{"b":"}{"},"c":"quote \" and \\"};var next = {};`)
	assert.Equal(t, `{"a":{"b":"}{"},"c":"quote \" and \\"}`, string(extractJSON(in)))
	assert.Nil(t, extractJSON([]byte(`{"open":`)))
	assert.Nil(t, extractJSON([]byte(`not json`)))
	assert.Nil(t, extractJSON(nil))
}

func watchPage(playerJSON string) string {
	return `<html><head><script>var ytInitialPlayerResponse = ` + playerJSON + `;var meta = {};</script></head><body></body></html>`
}

func TestParsePlayerResponse(t *testing.T) {
	page := watchPage(`{"videoDetails":{"title":"Tom &amp; Jerry","shortDescription":"desc"},` +
		`"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
		`{"baseUrl":"https://x/de","languageCode":"de"},{"baseUrl":"https://x/en","languageCode":"en-GB"}]}}}`)

	resp, err := parsePlayerResponse([]byte(page))
	require.NoError(t, err)
	require.NotNil(t, resp.VideoDetails)
	assert.Equal(t, "Tom &amp; Jerry", resp.VideoDetails.Title)
	require.Len(t, resp.tracks(), 2)
	assert.Equal(t, "https://x/en", pickCaptionTrack(resp.tracks()).BaseURL)

	_, err = parsePlayerResponse([]byte(`<html>nothing here</html>`))
	assert.ErrorIs(t, err, errPlayerResponseMissing)

	var nilResp *ytPlayerResponse
	assert.Nil(t, nilResp.tracks())
}

func TestPickTrackIndex(t *testing.T) {
	tests := []struct {
		name  string
		langs []string
		kinds []string
		want  int
	}{
		{"english first", []string{"fr", "en", "en-US"}, []string{"", "", ""}, 1},
		{"asr fallback", []string{"fr", "de"}, []string{"", "asr"}, 1},
		{"first otherwise", []string{"fr", "de"}, []string{"", ""}, 0},
		{"english beats asr", []string{"de", "en"}, []string{"asr", ""}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickTrackIndex(tt.langs, tt.kinds))
		})
	}
}

func TestParseTrackList(t *testing.T) {
	lang, err := parseTrackList([]byte(`<transcript_list docid="1">` +
		`<track id="0" name="" lang_code="es" kind="asr"/>` +
		`<track id="1" name="" lang_code="en" lang_original="English"/></transcript_list>`))
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	_, err = parseTrackList([]byte(`<transcript_list docid="1"></transcript_list>`))
	assert.ErrorIs(t, err, errNoCaptionTracks)

	_, err = parseTrackList([]byte(`<<<`))
	assert.Error(t, err)
}

func TestParseTimedText(t *testing.T) {
	text, err := parseTimedText([]byte(`<?xml version="1.0" encoding="utf-8" ?><transcript>` +
		`<text start="0" dur="1.5">Hello   there</text>` +
		`<text start="1.5" dur="2">it&amp;#39;s   &lt;b&gt;fine&lt;/b&gt;</text>` +
		`<text start="3.5" dur="1">   </text>` +
		`<text start="4.5" dur="1">bye</text></transcript>`))
	require.NoError(t, err)
	assert.Equal(t, "Hello there it's fine bye", text)
}

// youtubeServer fakes the watch page, caption track and timedtext endpoints.
type youtubeServer struct {
	*httptest.Server
	playerCaptions bool
	timedText      bool
	watchMissing   bool
}

func newYouTubeServer(t *testing.T, ys *youtubeServer) *youtubeServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if ys.watchMissing || r.URL.Query().Get("v") != testVideoID {
			http.NotFound(w, r)
			return
		}
		captions := ""
		if ys.playerCaptions {
			captions = fmt.Sprintf(`,"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/track","languageCode":"en","kind":"asr"}]}}`, ys.URL)
		}
		fmt.Fprint(w, watchPage(`{"videoDetails":{"title":"Never Gonna Give You Up","shortDescription":"Official video"}`+captions+`}`))
	})
	mux.HandleFunc("/track", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<transcript><text start="0" dur="1">never gonna give you up</text></transcript>`)
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case !ys.timedText:
			http.NotFound(w, r)
		case q.Get("type") == "list":
			fmt.Fprint(w, `<transcript_list><track lang_code="en" kind=""/></transcript_list>`)
		case q.Get("lang") == "en" && q.Get("v") == testVideoID:
			fmt.Fprint(w, `<transcript><text>from the timedtext listing</text></transcript>`)
		default:
			http.NotFound(w, r)
		}
	})
	ys.Server = httptest.NewServer(mux)
	t.Cleanup(ys.Close)
	return ys
}

func (ys *youtubeServer) deps(gw engine.Gateway, m engine.MediaSource) Deps {
	d := testDeps(gw, &fakeRenderer{}, m)
	d.Fetcher = engine.NewFetcher(ys.Client(), nil, 5*time.Second)
	d.YouTubeBase = ys.URL
	d.TimedTextBase = ys.URL + "/timedtext"
	return d
}

func TestYouTubeCaptionsSkipMedia(t *testing.T) {
	ys := newYouTubeServer(t, &youtubeServer{playerCaptions: true})
	gw := &fakeGateway{reply: "A classic pop song video."}
	m := newFakeMedia(t)
	d := NewDispatcher(ys.deps(gw, m))

	out := d.ExtractSummary(context.Background(), "https://youtu.be/"+testVideoID)

	assert.Equal(t, gw.reply, out)
	assert.Zero(t, m.callCount(), "captions available: no audio download")
	require.Equal(t, 1, gw.count())
	prompt := gw.last().text()
	assert.Contains(t, prompt, "Title: Never Gonna Give You Up")
	assert.Contains(t, prompt, "Description: Official video")
	assert.Contains(t, prompt, "never gonna give you up")
	assert.False(t, gw.last().hasMedia())
}

func TestYouTubeTimedTextFallback(t *testing.T) {
	ys := newYouTubeServer(t, &youtubeServer{timedText: true})
	gw := &fakeGateway{reply: "summary"}
	m := newFakeMedia(t)
	d := NewDispatcher(ys.deps(gw, m))

	assert.Equal(t, "summary", d.ExtractSummary(context.Background(), "https://www.youtube.com/watch?v="+testVideoID))
	assert.Zero(t, m.callCount())
	assert.Contains(t, gw.last().text(), "from the timedtext listing")
}

func TestYouTubeTranscribesWithoutCaptions(t *testing.T) {
	ys := newYouTubeServer(t, &youtubeServer{})
	gw := &fakeGateway{reply: "Final summary.", mediaReply: "Transcribed speech about music."}
	m := newFakeMedia(t)
	d := NewDispatcher(ys.deps(gw, m))

	out := d.ExtractSummary(context.Background(), "https://www.youtube.com/shorts/"+testVideoID)

	assert.Equal(t, "Final summary.", out)
	assert.Equal(t, 1, m.callCount())
	assert.Empty(t, m.leftovers(), "audio temp file must be removed")
	require.Equal(t, 2, gw.count())
	assert.True(t, gw.calls[0].hasMedia())
	assert.Contains(t, gw.calls[0].instruction, "Title: Never Gonna Give You Up")
	assert.Contains(t, gw.last().text(), "Transcribed speech about music.")
}

func TestYouTubeTranscriptionFailure(t *testing.T) {
	ys := newYouTubeServer(t, &youtubeServer{watchMissing: true})
	gw := &fakeGateway{reply: "unused", mediaErr: errors.New("model overloaded")}
	m := newFakeMedia(t)
	d := NewDispatcher(ys.deps(gw, m))

	out := d.ExtractSummary(context.Background(), "https://www.youtube.com/watch?v="+testVideoID)

	assert.Equal(t, SummaryFailed, out)
	assert.Equal(t, 1, m.callCount())
	assert.Empty(t, m.leftovers(), "audio temp file must be removed on failure")
	require.Equal(t, 1, gw.count())
	assert.Contains(t, gw.calls[0].instruction, "Title: Unknown")
}

func TestYouTubeDownloadFailure(t *testing.T) {
	ys := newYouTubeServer(t, &youtubeServer{})
	gw := &fakeGateway{reply: "unused"}
	m := newFakeMedia(t)
	m.err = errors.New("yt-dlp: exit status 1")
	d := NewDispatcher(ys.deps(gw, m))

	assert.Equal(t, SummaryFailed, d.ExtractSummary(context.Background(), "https://www.youtube.com/watch?v="+testVideoID))
	assert.Zero(t, gw.count())
}
