// Package watcher re-scans an installation when its content changes on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sydlexius/shears/internal/content"
	"github.com/sydlexius/shears/internal/event"
)

// Service watches one installation directory and its videos tree. Bursts of
// filesystem events are coalesced; after the debounce interval the directory
// is scanned and a content.changed event is published when the availability
// differs from the last snapshot.
type Service struct {
	dir          string
	eventBus     *event.Bus
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration
	probeTimeout time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching map[string]bool
	last     content.FeatureAvailability
	scans    int
}

// NewService creates a watcher for dir.
func NewService(dir string, eventBus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		dir:          dir,
		eventBus:     eventBus,
		logger:       logger.With("component", "fs-watcher", "dir", dir),
		debounce:     2 * time.Second,
		pollInterval: 30 * time.Second,
		probeTimeout: 2 * time.Second,
		watching:     make(map[string]bool),
	}
}

// SetDebounce overrides the default debounce interval.
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetPollInterval overrides how often the directory is rescanned when
// fsnotify does not deliver events for it.
func (s *Service) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// Snapshot returns the most recent scan result.
func (s *Service) Snapshot() content.FeatureAvailability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run sets up the watches, publishes the initial snapshot and then blocks
// until ctx is canceled. When fsnotify is unavailable or does not
// deliver events for the directory, it falls back to polling.
func (s *Service) Run(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watching %s: not a directory", s.dir)
	}

	var eventCh <-chan fsnotify.Event
	var errCh <-chan error

	if ProbeFSNotify(s.dir, s.probeTimeout) {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			s.logger.Warn("fsnotify unavailable, polling", "error", err)
		} else {
			defer w.Close() //nolint:errcheck
			s.mu.Lock()
			s.watcher = w
			s.mu.Unlock()
			s.syncWatches()
			eventCh = w.Events
			errCh = w.Errors
		}
	} else {
		s.logger.Warn("fsnotify events not delivered for this path, polling", "interval", s.pollInterval)
	}

	// Watches are in place before the first scan so nothing falls between.
	s.rescan(true)

	// Nil when fsnotify works, so the poll case never fires.
	var pollCh <-chan time.Time
	if eventCh == nil {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
	}

	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	scanPending := false

	s.logger.Info("filesystem watcher starting")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return nil

		case ev, ok := <-eventCh:
			if !ok {
				return nil
			}
			if !s.relevant(ev) {
				continue
			}
			s.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(s.debounce)
			scanPending = true

		case err, ok := <-errCh:
			if !ok {
				return nil
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			if scanPending {
				scanPending = false
				s.syncWatches()
				s.rescan(false)
			}

		case <-pollCh:
			s.rescan(false)
		}
	}
}

// relevant filters out metadata-only changes and the temporary files of
// atomic writes.
func (s *Service) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	switch filepath.Ext(ev.Name) {
	case ".tmp", ".bak":
		return false
	}
	return true
}

// syncWatches watches the installation root and every directory of the
// videos tree, dropping watches on directories that are gone.
func (s *Service) syncWatches() {
	wanted := map[string]bool{s.dir: true}
	videos := filepath.Join(s.dir, content.VideosDir)
	_ = filepath.WalkDir(videos, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("walking videos for watches", "path", path, "error", err)
			}
			return nil
		}
		if d.IsDir() {
			wanted[path] = true
		}
		return nil
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return
	}

	for path := range s.watching {
		if !wanted[path] {
			// fsnotify drops watches on removed directories on its own.
			_ = s.watcher.Remove(path)
			delete(s.watching, path)
		}
	}
	for path := range wanted {
		if s.watching[path] {
			continue
		}
		if err := s.watcher.Add(path); err != nil {
			s.logger.Warn("failed to watch directory", "path", path, "error", err)
			continue
		}
		s.watching[path] = true
	}
}

func (s *Service) rescan(initial bool) {
	fa := content.Scan(s.dir)

	s.mu.Lock()
	changed := initial || fa != s.last
	s.last = fa
	s.scans++
	s.mu.Unlock()

	if !changed {
		s.logger.Debug("rescan found no change")
		return
	}

	s.logger.Info("installation content changed",
		"initial", initial,
		"total_bytes", fa.TotalBytes(),
		"has_marker", fa.HasInstallationMarker)

	if s.eventBus != nil {
		s.eventBus.Publish(event.Event{
			Type: event.ContentChanged,
			Data: map[string]any{
				"dir":          s.dir,
				"initial":      initial,
				"availability": fa,
			},
		})
	}
}
