// Package ingest turns uploaded images and videos into frames of a sequence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/storage"
)

var (
	ErrNoImages        = errors.New("no images supplied")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

const DefaultFPS = 1.0

// Upload is one file from a multipart request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type SequenceStore interface {
	GetByID(ctx context.Context, id string) (*models.Sequence, error)
	RefreshTotalFrames(ctx context.Context, id string, duration *float64) error
}

type FrameStore interface {
	CreateBatch(ctx context.Context, frames []models.NewFrame) ([]*models.Frame, error)
	CountBySequence(ctx context.Context, sequenceID string) (int, error)
}

type Service struct {
	sequences  SequenceStore
	frames     FrameStore
	storage    storage.Storage
	extractor  *Extractor
	defaultFPS float64
	logger     *slog.Logger
}

type Config struct {
	// DefaultFPS is the sampling rate for videos of sequences without one.
	DefaultFPS float64
}

// NewService wires the ingest paths. extractor may be nil, in which case
// video ingest reports ErrFFmpegUnavailable.
func NewService(sequences SequenceStore, frames FrameStore, store storage.Storage, extractor *Extractor, config Config, logger *slog.Logger) *Service {
	if config.DefaultFPS <= 0 {
		config.DefaultFPS = DefaultFPS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sequences:  sequences,
		frames:     frames,
		storage:    store,
		extractor:  extractor,
		defaultFPS: config.DefaultFPS,
		logger:     logger.With("component", "ingest"),
	}
}

func (s *Service) VideoEnabled() bool {
	return s.extractor != nil
}

// ImportImages stores the uploads in filename order and appends one frame per
// image to the sequence. Nothing is inserted if any file is rejected.
func (s *Service) ImportImages(ctx context.Context, sequenceID string, uploads []Upload) ([]*models.Frame, error) {
	if len(uploads) == 0 {
		return nil, ErrNoImages
	}
	seq, err := s.sequences.GetByID(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	for _, u := range uploads {
		if !storage.IsImage(u.Filename) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, u.Filename)
		}
	}

	sorted := append([]Upload(nil), uploads...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	existing, err := s.frames.CountBySequence(ctx, seq.ID)
	if err != nil {
		return nil, err
	}
	interval := seq.FrameInterval()
	dir := frameDir(seq.ID)

	keys := make([]string, 0, len(sorted))
	newFrames := make([]models.NewFrame, 0, len(sorted))
	for i, u := range sorted {
		key, err := s.saveUpload(dir, u)
		if err != nil {
			s.discard(keys)
			return nil, err
		}
		keys = append(keys, key)
		newFrames = append(newFrames, models.NewFrame{
			SequenceID:  seq.ID,
			TimestampMS: int64(existing+i) * interval,
			ImageURL:    key,
		})
	}

	return s.commit(ctx, seq.ID, newFrames, keys, nil)
}

// ImportVideo samples the video at the sequence frame rate, stores every
// extracted frame and records the video duration on the sequence.
func (s *Service) ImportVideo(ctx context.Context, sequenceID string, u Upload) ([]*models.Frame, error) {
	if s.extractor == nil {
		return nil, ErrFFmpegUnavailable
	}
	seq, err := s.sequences.GetByID(ctx, sequenceID)
	if err != nil {
		return nil, err
	}

	videoKey, err := s.saveUpload(path.Join("videos", seq.ID), u)
	if err != nil {
		return nil, err
	}
	defer s.discard([]string{videoKey})
	videoPath, err := s.storage.Path(videoKey)
	if err != nil {
		return nil, err
	}

	fps := s.defaultFPS
	if seq.FPS != nil && *seq.FPS > 0 {
		fps = *seq.FPS
	}
	duration, err := s.extractor.Duration(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get video duration: %w", err)
	}
	paths, cleanup, err := s.extractor.Extract(ctx, videoPath, fps)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	existing, err := s.frames.CountBySequence(ctx, seq.ID)
	if err != nil {
		return nil, err
	}
	dir := frameDir(seq.ID)
	keys := make([]string, 0, len(paths))
	newFrames := make([]models.NewFrame, 0, len(paths))
	for i, p := range paths {
		key, err := s.saveLocal(dir, p)
		if err != nil {
			s.discard(keys)
			return nil, err
		}
		keys = append(keys, key)
		newFrames = append(newFrames, models.NewFrame{
			SequenceID:  seq.ID,
			TimestampMS: int64(float64(existing+i) * 1000 / fps),
			ImageURL:    key,
		})
	}

	return s.commit(ctx, seq.ID, newFrames, keys, &duration)
}

func (s *Service) commit(ctx context.Context, sequenceID string, newFrames []models.NewFrame, keys []string, duration *float64) ([]*models.Frame, error) {
	frames, err := s.frames.CreateBatch(ctx, newFrames)
	if err != nil {
		s.discard(keys)
		return nil, err
	}
	if err := s.sequences.RefreshTotalFrames(ctx, sequenceID, duration); err != nil {
		return nil, err
	}
	s.logger.Info("frames ingested", "sequence_id", sequenceID, "frames", len(frames))
	return frames, nil
}

func (s *Service) saveUpload(dir string, u Upload) (string, error) {
	r, err := u.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %s: %w", u.Filename, err)
	}
	defer r.Close()
	return s.storage.SaveFile(r, storage.FileInfo{
		Dir:         dir,
		Filename:    u.Filename,
		ContentType: u.ContentType,
		Size:        u.Size,
	})
}

func (s *Service) saveLocal(dir, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open extracted frame: %w", err)
	}
	defer f.Close()
	return s.storage.SaveFile(f, storage.FileInfo{
		Dir:         dir,
		Filename:    filepath.Base(localPath),
		ContentType: "image/jpeg",
	})
}

func (s *Service) discard(keys []string) {
	for _, key := range keys {
		if err := s.storage.DeleteFile(key); err != nil {
			s.logger.Warn("failed to remove stored file", "key", key, "error", err)
		}
	}
}

func frameDir(sequenceID string) string {
	return path.Join("sequences", sequenceID)
}
