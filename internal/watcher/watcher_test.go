package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sydlexius/shears/internal/content"
	"github.com/sydlexius/shears/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestService(t *testing.T, dir string) (*Service, *recorder, context.Context, context.CancelFunc) {
	t.Helper()
	logger := testLogger()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := event.NewBus(logger, 64)
	rec := &recorder{}
	bus.Subscribe(event.ContentChanged, rec.handle)
	go bus.Run(ctx) //nolint:errcheck

	svc := NewService(dir, bus, logger)
	svc.SetDebounce(50 * time.Millisecond)
	svc.SetPollInterval(50 * time.Millisecond)
	return svc, rec, ctx, cancel
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func availability(t *testing.T, e event.Event) content.FeatureAvailability {
	t.Helper()
	fa, ok := e.Data["availability"].(content.FeatureAvailability)
	if !ok {
		t.Fatalf("availability payload is %T", e.Data["availability"])
	}
	return fa
}

func TestRunPublishesInitialSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "textures1.forge"), 8)

	svc, rec, ctx, cancel := newTestService(t, dir)
	defer cancel()
	go svc.Run(ctx) //nolint:errcheck

	if !waitFor(t, func() bool { return len(rec.snapshot()) >= 1 }) {
		t.Fatal("no initial event")
	}
	e := rec.snapshot()[0]
	if e.Data["initial"] != true {
		t.Errorf("initial = %v, want true", e.Data["initial"])
	}
	if got := availability(t, e).Texture(content.Medium); got != (content.Bucket{Present: true, Bytes: 8}) {
		t.Errorf("Medium = %+v", got)
	}
}

func TestNewArchiveTriggersRescan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "textures0.forge"), 4)

	svc, rec, ctx, cancel := newTestService(t, dir)
	defer cancel()
	go svc.Run(ctx) //nolint:errcheck

	if !waitFor(t, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatal("no initial event")
	}

	writeFile(t, filepath.Join(dir, "textures4.forge"), 16)

	if !waitFor(t, func() bool { return len(rec.snapshot()) >= 2 }) {
		t.Fatal("no change event after adding an archive")
	}
	fa := availability(t, rec.snapshot()[1])
	if !fa.Texture(content.Ultra).Present {
		t.Error("Ultra should be present after the rescan")
	}
	if !svc.Snapshot().Texture(content.Ultra).Present {
		t.Error("Snapshot should reflect the rescan")
	}
}

func TestBurstCoalescesIntoOneRescan(t *testing.T) {
	dir := t.TempDir()

	svc, rec, ctx, cancel := newTestService(t, dir)
	defer cancel()
	go svc.Run(ctx) //nolint:errcheck

	if !waitFor(t, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatal("no initial event")
	}

	for _, name := range []string{"textures1.forge", "textures2.forge", "textures3.forge", "datapc64_events.forge"} {
		writeFile(t, filepath.Join(dir, name), 1)
	}

	if !waitFor(t, func() bool { return len(rec.snapshot()) >= 2 }) {
		t.Fatal("no change event")
	}
	time.Sleep(300 * time.Millisecond)
	if got := len(rec.snapshot()); got != 2 {
		t.Errorf("expected 1 coalesced change event, got %d", got-1)
	}
}

func TestVideosTreeIsWatched(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "videos", "en", "intro.bk2"), 10)

	svc, rec, ctx, cancel := newTestService(t, dir)
	defer cancel()
	go svc.Run(ctx) //nolint:errcheck

	if !waitFor(t, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatal("no initial event")
	}

	writeFile(t, filepath.Join(dir, "videos", "en", "ops.bk2"), 5)

	if !waitFor(t, func() bool { return len(rec.snapshot()) >= 2 }) {
		t.Fatal("no change event for a nested video")
	}
	if got := availability(t, rec.snapshot()[1]).Videos; got != (content.Bucket{Present: true, Bytes: 15}) {
		t.Errorf("Videos = %+v, want {true 15}", got)
	}
}

func TestUnchangedContentIsNotRepublished(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "textures0.forge"), 4)

	svc, rec, ctx, cancel := newTestService(t, dir)
	defer cancel()
	go svc.Run(ctx) //nolint:errcheck

	if !waitFor(t, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatal("no initial event")
	}

	// Not content the scanner counts.
	writeFile(t, filepath.Join(dir, "notes.txt"), 100)
	time.Sleep(400 * time.Millisecond)

	if got := len(rec.snapshot()); got != 1 {
		t.Errorf("expected no change events, got %d", got-1)
	}
}

func TestRescanDetectsChangesWithoutEvents(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(dir, nil, testLogger())

	svc.rescan(true)
	if svc.Snapshot().HasInstallationMarker {
		t.Fatal("empty dir should have no marker")
	}

	writeFile(t, filepath.Join(dir, "datapc64.forge"), 1)
	svc.rescan(false)
	if !svc.Snapshot().HasInstallationMarker {
		t.Error("rescan should pick up the new archive")
	}
}

func TestRunMissingDir(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "gone"), nil, testLogger())
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, ctx, cancel := newTestService(t, t.TempDir())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
