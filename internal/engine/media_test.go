package engine

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newAsset(t *testing.T) *TempAsset {
	t.Helper()
	dir, err := os.MkdirTemp(t.TempDir(), "asset-*")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("clip"), 0o600); err != nil {
		t.Fatal(err)
	}
	return NewTempAsset(dir, path, "video/mp4")
}

func assertGone(t *testing.T, a *TempAsset) {
	t.Helper()
	if _, err := os.Stat(a.dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp dir %s still exists (stat err = %v)", a.dir, err)
	}
}

func TestWithTempAssetRemovesOnSuccess(t *testing.T) {
	a := newAsset(t)
	out, err := WithTempAsset(a, func(a *TempAsset) (string, error) {
		data, err := a.Read()
		return string(data), err
	})
	if err != nil || out != "clip" {
		t.Fatalf("WithTempAsset = %q, %v", out, err)
	}
	assertGone(t, a)
}

func TestWithTempAssetRemovesOnError(t *testing.T) {
	a := newAsset(t)
	boom := errors.New("transcription failed")
	_, err := WithTempAsset(a, func(*TempAsset) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	assertGone(t, a)
}

func TestWithTempAssetRemovesOnPanic(t *testing.T) {
	a := newAsset(t)
	func() {
		defer func() { _ = recover() }()
		WithTempAsset(a, func(*TempAsset) (string, error) { panic("boom") })
	}()
	assertGone(t, a)
}

func TestTempAssetRemoveNil(t *testing.T) {
	var a *TempAsset
	a.Remove()
}

func TestDownloadYouTubeAudioMissingBinary(t *testing.T) {
	root := t.TempDir()
	m := NewMediaAcquirer(Config{
		YTDLPPath:    filepath.Join(root, "no-such-yt-dlp"),
		MediaTempDir: root,
	}, newTestFetcher())

	asset, err := m.DownloadYouTubeAudio(context.Background(), "dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err == nil {
		asset.Remove()
		t.Fatal("expected error for missing yt-dlp binary")
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("temp root not cleaned, %d entries left", len(entries))
	}
}

func TestDownloadVideo(t *testing.T) {
	payload := bytes.Repeat([]byte{0x42}, 128)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.mp4":
			w.Write(payload)
		case "/empty.mp4":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	root := t.TempDir()
	m := NewMediaAcquirer(Config{MediaTempDir: root, MediaMaxBytes: 1024}, NewFetcher(srv.Client(), nil, 5*time.Second))
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		asset, err := m.DownloadVideo(ctx, srv.URL+"/clip.mp4")
		if err != nil {
			t.Fatalf("DownloadVideo() error = %v", err)
		}
		if asset.MIMEType != "video/mp4" {
			t.Errorf("MIMEType = %q", asset.MIMEType)
		}
		data, err := asset.Read()
		if err != nil || !bytes.Equal(data, payload) {
			t.Errorf("Read() = %d bytes, %v", len(data), err)
		}
		asset.Remove()
		assertGone(t, asset)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := m.DownloadVideo(ctx, srv.URL+"/empty.mp4")
		if !errors.Is(err, ErrMediaMissing) {
			t.Errorf("err = %v, want ErrMediaMissing", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := m.DownloadVideo(ctx, srv.URL+"/gone.mp4")
		if !IsNotFound(err) {
			t.Errorf("err = %v, want 404", err)
		}
	})

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("failed downloads left %d temp dirs", len(entries))
	}
}
