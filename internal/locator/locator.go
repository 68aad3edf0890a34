// Package locator searches a volume for game installations.
package locator

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// Markers names the two files that must sit side by side in an installation root.
type Markers struct {
	Data       string
	Executable string
}

// DefaultMarkers returns the marker pair of a retail installation.
func DefaultMarkers() Markers {
	return Markers{
		Data:       "datapc64.forge",
		Executable: "RainbowSix.exe",
	}
}

// deniedDirs are never entered: they are restricted without elevation, belong
// to the OS or a vendor tool, or are not worth searching.
var deniedDirs = map[string]struct{}{
	"$RECYCLE.BIN":              {},
	"$Recycle.Bin":              {},
	".Trash-1000":               {},
	"Config.Msi":                {},
	"$Windows.~BT":              {},
	"$Windows.~WS":              {},
	"System Volume Information": {},
	"WindowsApps":               {},
	"Recovery":                  {},
	"MSOCache":                  {},
	"PerfLogs":                  {},
	"Microsoft":                 {},
	"Windows":                   {},
	"ProgramData":               {},
	"Temp":                      {},
	"NVIDIA":                    {},
	"Program Files":             {},
	"Program Files (x86)":       {},
}

// IsDenied reports whether a directory name is on the skip list. Matching is
// exact and case-sensitive.
func IsDenied(name string) bool {
	_, ok := deniedDirs[name]
	return ok
}

// Options tunes a walk. The zero value uses DefaultMarkers.
type Options struct {
	Markers Markers
	// OnFound is called for every installation as soon as it is discovered.
	OnFound func(path string)
	// OnVisit is called for every directory before it is listed.
	OnVisit func(dir string)
}

type walker struct {
	ctx      context.Context
	opts     Options
	logger   *slog.Logger
	progress rate.Sometimes
	visited  int
	found    []string
}

// Walk searches root depth-first for directories that directly contain both
// marker files and returns them in discovery order. Symbolic links are never
// followed. When ctx is canceled the walk stops at the next check and the
// installations found so far are returned.
func Walk(ctx context.Context, root string, opts Options, logger *slog.Logger) []string {
	if opts.Markers == (Markers{}) {
		opts.Markers = DefaultMarkers()
	}
	w := &walker{
		ctx:      ctx,
		opts:     opts,
		logger:   logger.With("component", "locator"),
		progress: rate.Sometimes{Interval: 2 * time.Second},
	}
	w.walk(root)
	return w.found
}

func (w *walker) canceled() bool {
	return w.ctx.Err() != nil
}

func (w *walker) walk(dir string) {
	if w.canceled() {
		return
	}

	w.visited++
	if w.opts.OnVisit != nil {
		w.opts.OnVisit(dir)
	}
	w.progress.Do(func() {
		w.logger.Debug("scanning", "dir", dir, "visited", w.visited, "found", len(w.found))
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			w.logger.Warn("access denied, skipping", "dir", dir)
		} else {
			w.logger.Debug("unreadable directory, skipping", "dir", dir, "error", err)
		}
		return
	}

	var hasData, hasExe bool
	var subdirs []string
	for _, e := range entries {
		if w.canceled() {
			return
		}

		name := e.Name()
		switch name {
		case w.opts.Markers.Data:
			hasData = true
		case w.opts.Markers.Executable:
			hasExe = true
		}

		// DirEntry reports symlinks as such, so IsDir is false for them.
		if e.IsDir() && !IsDenied(name) {
			subdirs = append(subdirs, filepath.Join(dir, name))
		}
	}

	if hasData && hasExe {
		w.logger.Info("installation found", "path", dir)
		w.found = append(w.found, dir)
		if w.opts.OnFound != nil {
			w.opts.OnFound(dir)
		}
	}

	for _, sub := range subdirs {
		if w.canceled() {
			return
		}
		w.walk(sub)
	}
}
