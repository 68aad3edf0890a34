// Package shear deletes optional content from an installation directory and
// rewrites the streaming-install sentinel so the game stops asking for it.
package shear

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sydlexius/shears/internal/content"
	"github.com/sydlexius/shears/internal/event"
	"github.com/sydlexius/shears/internal/filesystem"
)

// SentinelContent is the exact content written to the sentinel file.
const SentinelContent = "[MissionToChunk]\n[FileToChunk]\n"

// Options selects what a shear removes.
type Options struct {
	// MinimumTierToKeep is the highest texture tier that survives. Every
	// texture archive of a strictly higher tier is deleted.
	MinimumTierToKeep content.Tier
	RemoveVideos      bool
	RemoveEvents      bool
}

// Report describes what a shear did. Deletion failures are listed in
// Failed; they do not make the shear fail.
type Report struct {
	ID                string       `json:"id"`
	Dir               string       `json:"dir"`
	MinimumTierToKeep content.Tier `json:"minimum_tier_to_keep"`
	Deleted           []string     `json:"deleted"`
	Failed            []string     `json:"failed,omitempty"`
	RemovedVideos     bool         `json:"removed_videos"`
	RemovedEvents     bool         `json:"removed_events"`
	StartedAt         time.Time    `json:"started_at"`
	CompletedAt       time.Time    `json:"completed_at"`
}

// SentinelError is returned when the sentinel file could not be written.
// It is the only error Shear reports.
type SentinelError struct {
	Path string
	Err  error
}

func (e *SentinelError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *SentinelError) Unwrap() error {
	return e.Err
}

// Executor performs shears.
type Executor struct {
	logger   *slog.Logger
	eventBus *event.Bus
}

// NewExecutor creates an executor that logs to logger.
func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("component", "shear")}
}

// SetEventBus sets the event bus for publishing completed shears.
func (x *Executor) SetEventBus(bus *event.Bus) {
	x.eventBus = bus
}

// Shear deletes the content opts selects from dir and then rewrites the
// sentinel file. Deletions are best-effort; only the sentinel write can fail
// the operation. The caller should rescan dir afterwards.
func Shear(dir string, opts Options) (Report, error) {
	return NewExecutor(slog.Default()).Shear(dir, opts)
}

// Shear deletes the content opts selects from dir and then rewrites the
// sentinel file. See the package-level Shear.
func (x *Executor) Shear(dir string, opts Options) (Report, error) {
	r := Report{
		ID:                uuid.New().String(),
		Dir:               dir,
		MinimumTierToKeep: opts.MinimumTierToKeep,
		StartedAt:         time.Now().UTC(),
	}
	logger := x.logger.With("dir", dir, "shear_id", r.ID)
	logger.Info("shear starting",
		"keep", opts.MinimumTierToKeep.String(),
		"remove_videos", opts.RemoveVideos,
		"remove_events", opts.RemoveEvents)

	x.deleteTextures(logger, dir, opts.MinimumTierToKeep, &r)

	if opts.RemoveVideos {
		x.deleteVideos(logger, dir, &r)
	}
	if opts.RemoveEvents {
		x.deleteEvents(logger, dir, &r)
	}

	sentinel := filepath.Join(dir, content.SentinelFile)
	if err := filesystem.WriteFileAtomic(sentinel, []byte(SentinelContent), 0o644); err != nil {
		logger.Error("sentinel write failed", "path", sentinel, "error", err)
		return r, &SentinelError{Path: sentinel, Err: err}
	}

	r.CompletedAt = time.Now().UTC()
	logger.Info("shear completed", "deleted", len(r.Deleted), "failed", len(r.Failed))

	if x.eventBus != nil {
		x.eventBus.Publish(event.Event{
			Type: event.ShearCompleted,
			Data: map[string]any{"report": r},
		})
	}
	return r, nil
}

func (x *Executor) deleteTextures(logger *slog.Logger, dir string, keep content.Tier, r *Report) {
	// Nothing ranks above Ultra.
	if keep >= content.Ultra {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("listing directory for textures", "error", err)
		return
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t, ok := content.TextureTier(e.Name())
		if !ok || t <= keep {
			continue
		}
		x.removeFile(logger, filepath.Join(dir, e.Name()), r)
	}
}

func (x *Executor) deleteVideos(logger *slog.Logger, dir string, r *Report) {
	videos := filepath.Join(dir, content.VideosDir)
	if _, err := os.Lstat(videos); errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err := os.RemoveAll(videos); err != nil {
		logger.Warn("unable to delete videos", "path", videos, "error", err)
		r.Failed = append(r.Failed, videos)
		return
	}
	r.RemovedVideos = true
	r.Deleted = append(r.Deleted, videos)
}

func (x *Executor) deleteEvents(logger *slog.Logger, dir string, r *Report) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("listing directory for event files", "error", err)
		return
	}

	failedBefore := len(r.Failed)
	for _, e := range entries {
		if e.IsDir() || !content.IsEventFile(e.Name()) {
			continue
		}
		x.removeFile(logger, filepath.Join(dir, e.Name()), r)
	}
	r.RemovedEvents = len(r.Failed) == failedBefore
}

func (x *Executor) removeFile(logger *slog.Logger, path string, r *Report) {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		logger.Warn("unable to delete file", "path", path, "error", err)
		r.Failed = append(r.Failed, path)
		return
	}
	logger.Debug("deleted", "path", path)
	r.Deleted = append(r.Deleted, path)
}
