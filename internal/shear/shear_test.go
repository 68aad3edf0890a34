package shear

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/shears/internal/content"
	"github.com/sydlexius/shears/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var tierFiles = map[content.Tier][]string{
	content.Low:      {"datapc64_merged_bnk_textures0.forge"},
	content.Medium:   {"datapc64_merged_bnk_textures1.forge"},
	content.High:     {"datapc64_merged_bnk_textures2.forge", "datapc64_textures2_extra.forge"},
	content.VeryHigh: {"datapc64_merged_bnk_textures3.forge"},
	content.Ultra:    {"datapc64_merged_bnk_textures4.forge"},
}

// setupInstall creates an installation with every tier, videos and event files.
func setupInstall(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := []string{"datapc64.forge", "RainbowSix.exe", "datapc64_events.forge", "datapc64_events.depgraphbin"}
	for _, names := range tierFiles {
		files = append(files, names...)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("data"), 0o644); err != nil {
			t.Fatalf("creating %s: %v", f, err)
		}
	}
	videos := filepath.Join(dir, "videos", "en")
	if err := os.MkdirAll(videos, 0o755); err != nil {
		t.Fatalf("creating videos: %v", err)
	}
	if err := os.WriteFile(filepath.Join(videos, "intro.bk2"), []byte("video"), 0o644); err != nil {
		t.Fatalf("creating video: %v", err)
	}
	return dir
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}
	return false
}

func readSentinel(t *testing.T, dir string) string {
	t.Helper()
	got, err := os.ReadFile(filepath.Join(dir, content.SentinelFile))
	if err != nil {
		t.Fatalf("reading sentinel: %v", err)
	}
	return string(got)
}

func TestShear_KeepMedium(t *testing.T) {
	dir := setupInstall(t)
	x := NewExecutor(testLogger())

	r, err := x.Shear(dir, Options{MinimumTierToKeep: content.Medium})
	if err != nil {
		t.Fatalf("Shear: %v", err)
	}

	for tier, names := range tierFiles {
		for _, name := range names {
			want := tier <= content.Medium
			if got := exists(t, filepath.Join(dir, name)); got != want {
				t.Errorf("%s (%v) exists = %v, want %v", name, tier, got, want)
			}
		}
	}
	if len(r.Deleted) != 4 {
		t.Errorf("Deleted = %v, want 4 files", r.Deleted)
	}
	if len(r.Failed) != 0 {
		t.Errorf("Failed = %v, want none", r.Failed)
	}
	if !exists(t, filepath.Join(dir, "datapc64.forge")) {
		t.Error("untiered archive must be kept")
	}
	if !exists(t, filepath.Join(dir, "videos")) || !exists(t, filepath.Join(dir, "datapc64_events.forge")) {
		t.Error("videos and events must be kept unless requested")
	}
	if got := readSentinel(t, dir); got != SentinelContent {
		t.Errorf("sentinel = %q, want %q", got, SentinelContent)
	}
}

func TestShear_KeepUltraDeletesNoTextures(t *testing.T) {
	dir := setupInstall(t)

	r, err := NewExecutor(testLogger()).Shear(dir, Options{MinimumTierToKeep: content.Ultra})
	if err != nil {
		t.Fatalf("Shear: %v", err)
	}
	if len(r.Deleted) != 0 {
		t.Errorf("Deleted = %v, want none", r.Deleted)
	}
	for _, names := range tierFiles {
		for _, name := range names {
			if !exists(t, filepath.Join(dir, name)) {
				t.Errorf("%s should be kept", name)
			}
		}
	}
	if got := readSentinel(t, dir); got != SentinelContent {
		t.Errorf("sentinel = %q, want %q", got, SentinelContent)
	}
}

func TestShear_KeepLowNeverDeletesLow(t *testing.T) {
	dir := setupInstall(t)

	if _, err := NewExecutor(testLogger()).Shear(dir, Options{MinimumTierToKeep: content.Low}); err != nil {
		t.Fatalf("Shear: %v", err)
	}
	for tier, names := range tierFiles {
		for _, name := range names {
			if got := exists(t, filepath.Join(dir, name)); got != (tier == content.Low) {
				t.Errorf("%s exists = %v", name, got)
			}
		}
	}
}

func TestShear_OptionalCategories(t *testing.T) {
	dir := setupInstall(t)

	r, err := NewExecutor(testLogger()).Shear(dir, Options{
		MinimumTierToKeep: content.Ultra,
		RemoveVideos:      true,
		RemoveEvents:      true,
	})
	if err != nil {
		t.Fatalf("Shear: %v", err)
	}
	if exists(t, filepath.Join(dir, "videos")) {
		t.Error("videos should be removed")
	}
	if exists(t, filepath.Join(dir, "datapc64_events.forge")) || exists(t, filepath.Join(dir, "datapc64_events.depgraphbin")) {
		t.Error("event files should be removed")
	}
	if !r.RemovedVideos || !r.RemovedEvents {
		t.Errorf("RemovedVideos=%v RemovedEvents=%v, want both true", r.RemovedVideos, r.RemovedEvents)
	}

	fa := content.Scan(dir)
	if fa.Videos.Present || fa.Events.Present {
		t.Errorf("rescan still reports videos=%+v events=%+v", fa.Videos, fa.Events)
	}
}

func TestShear_NoVideosDir(t *testing.T) {
	dir := t.TempDir()

	r, err := NewExecutor(testLogger()).Shear(dir, Options{MinimumTierToKeep: content.Ultra, RemoveVideos: true})
	if err != nil {
		t.Fatalf("Shear: %v", err)
	}
	if r.RemovedVideos || len(r.Deleted) != 0 {
		t.Errorf("nothing to remove, got RemovedVideos=%v Deleted=%v", r.RemovedVideos, r.Deleted)
	}
}

func TestShear_OverwritesExistingSentinel(t *testing.T) {
	dir := setupInstall(t)
	old := "[MissionToChunk]\nmission01=chunk3\n[FileToChunk]\ntextures4.forge=chunk9\n"
	if err := os.WriteFile(filepath.Join(dir, content.SentinelFile), []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewExecutor(testLogger()).Shear(dir, Options{MinimumTierToKeep: content.High}); err != nil {
		t.Fatalf("Shear: %v", err)
	}
	if got := readSentinel(t, dir); got != SentinelContent {
		t.Errorf("sentinel = %q, want %q", got, SentinelContent)
	}
}

func TestShear_SentinelFailureIsHardError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")

	_, err := NewExecutor(testLogger()).Shear(dir, Options{MinimumTierToKeep: content.Medium})
	if err == nil {
		t.Fatal("expected error when sentinel cannot be written")
	}
	var se *SentinelError
	if !errors.As(err, &se) {
		t.Fatalf("error = %T, want *SentinelError", err)
	}
	if se.Path != filepath.Join(dir, content.SentinelFile) {
		t.Errorf("Path = %q", se.Path)
	}
}

func TestShear_DeletionFailureDoesNotAbort(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := setupInstall(t)
	locked := filepath.Join(dir, "videos", "en")
	if err := os.Chmod(locked, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	r, err := NewExecutor(testLogger()).Shear(dir, Options{MinimumTierToKeep: content.Medium, RemoveVideos: true})
	if err != nil {
		t.Fatalf("Shear should still succeed: %v", err)
	}
	if r.RemovedVideos {
		t.Error("RemovedVideos should be false when the tree could not be removed")
	}
	if len(r.Failed) == 0 {
		t.Error("expected the videos failure to be reported")
	}
	if exists(t, filepath.Join(dir, "datapc64_merged_bnk_textures4.forge")) {
		t.Error("texture deletion should have run")
	}
	if got := readSentinel(t, dir); got != SentinelContent {
		t.Errorf("sentinel = %q", got)
	}
}

func TestShear_PublishesEvent(t *testing.T) {
	dir := setupInstall(t)
	bus := event.NewBus(testLogger(), 4)
	got := make(chan Report, 1)
	bus.Subscribe(event.ShearCompleted, func(e event.Event) {
		if r, ok := e.Data["report"].(Report); ok {
			got <- r
		}
	})

	x := NewExecutor(testLogger())
	x.SetEventBus(bus)
	r, err := x.Shear(dir, Options{MinimumTierToKeep: content.High})
	if err != nil {
		t.Fatalf("Shear: %v", err)
	}

	stop := make(chan struct{})
	go func() {
		_ = bus.Run(t.Context())
		close(stop)
	}()
	defer func() {
		bus.Stop()
		<-stop
	}()

	select {
	case published := <-got:
		if published.ID != r.ID {
			t.Errorf("published ID = %q, want %q", published.ID, r.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no shear.completed event")
	}
}
