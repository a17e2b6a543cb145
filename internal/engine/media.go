package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrMediaMissing is returned when a download finished but left no file.
var ErrMediaMissing = errors.New("media: downloaded file not found")

const (
	ytdlpTimeout    = 5 * time.Minute
	videoDLTimeout  = 60 * time.Second
	tempDirPattern  = "secondbrain-media-*"
	audioFilePrefix = "audio_"
)

// TempAsset is a media file living in a per-call temp directory.
type TempAsset struct {
	Path     string
	MIMEType string
	dir      string
}

// NewTempAsset wraps an existing file; dir is removed along with it.
func NewTempAsset(dir, path, mimeType string) *TempAsset {
	return &TempAsset{Path: path, MIMEType: mimeType, dir: dir}
}

// Read loads the whole asset into memory.
func (a *TempAsset) Read() ([]byte, error) {
	return os.ReadFile(a.Path)
}

// Remove deletes the asset together with its temp directory.
func (a *TempAsset) Remove() {
	if a == nil || a.dir == "" {
		return
	}
	if err := os.RemoveAll(a.dir); err != nil {
		slog.Warn("media: cleanup failed", slog.String("dir", a.dir), slog.Any("error", err))
	}
}

// MediaSource fetches remote media into temp assets. Callers own the
// returned asset and must release it, typically via WithTempAsset.
type MediaSource interface {
	DownloadYouTubeAudio(ctx context.Context, videoID, pageURL string) (*TempAsset, error)
	DownloadVideo(ctx context.Context, videoURL string) (*TempAsset, error)
}

// MediaAcquirer downloads YouTube audio through yt-dlp and direct video
// URLs over HTTP.
type MediaAcquirer struct {
	fetcher  *Fetcher
	ytdlp    string
	tempRoot string
	maxBytes int64
}

// NewMediaAcquirer builds an acquirer from c.
func NewMediaAcquirer(c Config, fetcher *Fetcher) *MediaAcquirer {
	c.Defaults()
	return &MediaAcquirer{
		fetcher:  fetcher,
		ytdlp:    c.YTDLPPath,
		tempRoot: c.MediaTempDir,
		maxBytes: c.MediaMaxBytes,
	}
}

// DownloadYouTubeAudio runs yt-dlp for the best webm audio stream of
// videoID and returns the resulting file.
func (m *MediaAcquirer) DownloadYouTubeAudio(ctx context.Context, videoID, pageURL string) (asset *TempAsset, err error) {
	metrics.MediaDownloads.Add(1)
	dir, err := os.MkdirTemp(m.tempRoot, tempDirPattern)
	if err != nil {
		metrics.MediaErrors.Add(1)
		return nil, fmt.Errorf("media: temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			metrics.MediaErrors.Add(1)
			os.RemoveAll(dir)
		}
	}()

	out := filepath.Join(dir, audioFilePrefix+videoID+".webm")
	ctx, cancel := context.WithTimeout(ctx, ytdlpTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ytdlp,
		"-f", "bestaudio[ext=webm]",
		"-o", out,
		pageURL,
		"--no-check-certificates",
		"--no-warnings",
	)
	start := time.Now()
	if output, runErr := cmd.CombinedOutput(); runErr != nil {
		return nil, fmt.Errorf("yt-dlp: %w: %s", runErr, TruncateRunes(strings.TrimSpace(string(output)), 300, "..."))
	}
	if _, statErr := os.Stat(out); statErr != nil {
		return nil, ErrMediaMissing
	}

	slog.Info("media: audio downloaded",
		slog.String("video_id", videoID),
		slog.Duration("elapsed", time.Since(start)))
	return &TempAsset{Path: out, MIMEType: "audio/webm", dir: dir}, nil
}

// DownloadVideo saves videoURL to a temp mp4 file, bounded by the
// configured byte cap.
func (m *MediaAcquirer) DownloadVideo(ctx context.Context, videoURL string) (asset *TempAsset, err error) {
	metrics.MediaDownloads.Add(1)
	dir, err := os.MkdirTemp(m.tempRoot, tempDirPattern)
	if err != nil {
		metrics.MediaErrors.Add(1)
		return nil, fmt.Errorf("media: temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			metrics.MediaErrors.Add(1)
			os.RemoveAll(dir)
		}
	}()

	path := filepath.Join(dir, fmt.Sprintf("video_%d.mp4", time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("media: create: %w", err)
	}
	n, dlErr := m.fetcher.Download(ctx, videoURL, f, m.maxBytes, videoDLTimeout)
	if closeErr := f.Close(); dlErr == nil {
		dlErr = closeErr
	}
	if dlErr != nil {
		return nil, fmt.Errorf("media: download video: %w", dlErr)
	}
	if n == 0 {
		return nil, ErrMediaMissing
	}

	slog.Debug("media: video downloaded", slog.Int64("bytes", n))
	return &TempAsset{Path: path, MIMEType: "video/mp4", dir: dir}, nil
}

// WithTempAsset runs fn on asset and removes the asset on every return
// path, including panics inside fn.
func WithTempAsset(asset *TempAsset, fn func(*TempAsset) (string, error)) (string, error) {
	defer asset.Remove()
	return fn(asset)
}
