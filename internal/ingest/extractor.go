package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var ErrFFmpegUnavailable = errors.New("ffmpeg not found in PATH")

// Extractor samples still frames out of a video with ffmpeg.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

func NewExtractor(logger *slog.Logger) (*Extractor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegUnavailable, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	// ffprobe is optional; duration falls back to parsing ffmpeg's banner.
	ffprobePath, _ := exec.LookPath("ffprobe")
	logger.Debug("found ffmpeg", "ffmpeg", ffmpegPath, "ffprobe", ffprobePath)

	return &Extractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}, nil
}

// Duration returns the length of the video in seconds.
func (e *Extractor) Duration(ctx context.Context, videoPath string) (float64, error) {
	if e.ffprobePath != "" {
		cmd := exec.CommandContext(ctx, e.ffprobePath,
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			videoPath)
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		if err := cmd.Run(); err == nil {
			if d, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64); err == nil && d > 0 {
				return d, nil
			}
		}
	}

	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-i", videoPath, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()
	return parseFFmpegDuration(stderr.String())
}

// Extract writes one JPEG per 1/fps seconds of video into a fresh temporary
// directory and returns the files in playback order. The caller removes the
// directory with the returned cleanup func.
func (e *Extractor) Extract(ctx context.Context, videoPath string, fps float64) ([]string, func(), error) {
	if fps <= 0 {
		return nil, nil, fmt.Errorf("invalid frame rate %v", fps)
	}
	if _, err := os.Stat(videoPath); err != nil {
		return nil, nil, fmt.Errorf("video file not accessible: %w", err)
	}

	dir, err := os.MkdirTemp("", "sceneqc-frames-")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	args := []string{
		"-i", videoPath,
		"-vf", "fps=" + strconv.FormatFloat(fps, 'f', -1, 64),
		"-q:v", "2",
		filepath.Join(dir, "frame_%06d.jpg"),
	}
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.logger.Debug("running ffmpeg", "args", args)
	if err := cmd.Run(); err != nil {
		cleanup()
		e.logger.Warn("ffmpeg failed", "stderr", tail(stderr.String(), 2000))
		return nil, nil, fmt.Errorf("failed to extract frames: %w", err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		cleanup()
		return nil, nil, errors.New("ffmpeg produced no frames")
	}
	e.logger.Info("extracted frames", "video", filepath.Base(videoPath), "frames", len(paths), "fps", fps)
	return paths, cleanup, nil
}

// parseFFmpegDuration reads "Duration: HH:MM:SS.ss," from ffmpeg's stderr.
func parseFFmpegDuration(output string) (float64, error) {
	const prefix = "Duration: "
	start := strings.Index(output, prefix)
	if start == -1 {
		return 0, errors.New("duration not found in ffmpeg output")
	}
	start += len(prefix)
	end := strings.Index(output[start:], ",")
	if end == -1 {
		return 0, errors.New("invalid duration format")
	}

	raw := output[start : start+end]
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", raw)
	}
	total := 0.0
	for i, unit := range []float64{3600, 60, 1} {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format: %s", raw)
		}
		total += v * unit
	}
	if total <= 0 {
		return 0, fmt.Errorf("invalid video duration: %s", raw)
	}
	return total, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
