package library

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/heimdex/reelcut/internal/compose"
	"github.com/heimdex/reelcut/internal/export"
	"github.com/heimdex/reelcut/internal/logging"
)

type Service struct {
	repo       Repository
	exportsDir string
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, exportsDir string, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		exportsDir: exportsDir,
		logger:     logging.WithComponent(logger, "library"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ExportsDir is where finished reels are kept.
func (s *Service) ExportsDir() string { return s.exportsDir }

// Begin records a running export.
func (s *Service) Begin(ctx context.Context, exportID, title, project string) (*Entry, error) {
	title = export.SanitizeName(title, export.MaxFileTitleLen)
	if title == "" {
		title = export.DefaultFileTitle
	}
	now := s.now()
	e := &Entry{
		ID:        exportID,
		Title:     title,
		Project:   project,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to record export: %w", err)
	}
	return e, nil
}

// Finish records the terminal result of an export. A completed reel is moved
// into the exports directory first.
func (s *Service) Finish(ctx context.Context, res compose.Result) (*Entry, error) {
	e, err := s.repo.GetEntry(ctx, res.ExportID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("export %s was never recorded", res.ExportID)
	}

	switch res.State {
	case compose.StateCompleted:
		path, size, err := s.relocate(res.OutputPath, e)
		if err != nil {
			e.Status = StatusFailed
			e.Failure = string(compose.FailureRender)
			e.Error = err.Error()
			break
		}
		e.Status = StatusCompleted
		e.Path = path
		e.SizeBytes = size
		e.DurationSeconds = res.Duration.Seconds()
	case compose.StateCancelled:
		e.Status = StatusCancelled
	default:
		e.Status = StatusFailed
		e.Failure = string(res.Failure)
		e.Error = res.Error
	}
	e.UpdatedAt = s.now()

	if err := s.repo.UpdateEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to update export: %w", err)
	}
	s.logger.Info("export recorded",
		"export_id", e.ID,
		"status", e.Status,
		"size", e.HumanSize(),
	)
	return e, nil
}

// Track records h now and its result once it finishes. The returned channel
// yields the final entry, or nil if recording failed.
func (s *Service) Track(ctx context.Context, h *compose.Handle, title, project string) (<-chan *Entry, error) {
	if _, err := s.Begin(ctx, h.ID(), title, project); err != nil {
		return nil, err
	}
	out := make(chan *Entry, 1)
	go func() {
		defer close(out)
		<-h.Done()
		res, _ := h.Result()
		e, err := s.Finish(context.WithoutCancel(ctx), res)
		if err != nil {
			s.logger.Error("failed to record export result", "export_id", h.ID(), "error", err)
			return
		}
		out <- e
	}()
	return out, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]*Entry, error) {
	return s.repo.ListEntries(ctx, limit)
}

// Get returns nil, nil for an unknown id.
func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// relocate moves the rendered file to <exports>/<title>_<id8><ext>. Files
// already in the exports directory stay where they are.
func (s *Service) relocate(src string, e *Entry) (string, int64, error) {
	if src == "" {
		return "", 0, fmt.Errorf("export %s has no output path", e.ID)
	}
	if err := os.MkdirAll(s.exportsDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create exports dir: %w", err)
	}

	dst := src
	if filepath.Dir(filepath.Clean(src)) != filepath.Clean(s.exportsDir) {
		ext := filepath.Ext(src)
		if ext == "" {
			ext = ".mp4"
		}
		dst = filepath.Join(s.exportsDir, export.FileName(e.Title, e.ID, ext))
		if err := moveFile(src, dst); err != nil {
			return "", 0, fmt.Errorf("failed to move export into library: %w", err)
		}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", 0, err
	}
	return dst, info.Size(), nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// EnsureConfig returns the stored value for key, generating and storing one
// when absent.
func EnsureConfig(ctx context.Context, repo Repository, key string, generate func() (string, error)) (string, error) {
	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	value, err := generate()
	if err != nil {
		return "", err
	}
	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}

// RandomHex returns n random bytes hex-encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
