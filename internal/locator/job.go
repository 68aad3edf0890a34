package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sydlexius/shears/internal/event"
)

// State is the lifecycle state of a Job.
type State string

// Job states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

var (
	// ErrJobRunning is returned by Start while a walk is still in progress.
	ErrJobRunning = errors.New("scan already in progress")
	// ErrJobPending is returned by Start when the previous walk finished but
	// its result was never collected with Wait.
	ErrJobPending = errors.New("previous scan result not collected")
	// ErrNotStarted is returned by Wait when there is no walk to collect.
	ErrNotStarted = errors.New("no scan started")
)

// WorkerError reports a panic inside the walk goroutine.
type WorkerError struct {
	Value any
	Stack []byte
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("scan worker panicked: %v", e.Value)
}

// Job runs Walk on a background goroutine. Start it, poll Done from the
// caller's loop, then collect the result with Wait. Stop requests
// cooperative cancellation; Wait must still be called afterwards.
//
// A Job runs one walk at a time and must be collected before it is restarted.
type Job struct {
	logger   *slog.Logger
	opts     Options
	eventBus *event.Bus

	mu      sync.Mutex
	id      string
	root    string
	state   State
	started time.Time
	cancel  context.CancelFunc
	done    chan struct{}
	found   []string
	err     error
}

// NewJob creates an idle job that walks with opts.
func NewJob(logger *slog.Logger, opts Options) *Job {
	return &Job{
		logger: logger.With("component", "scan-job"),
		opts:   opts,
		state:  StateIdle,
	}
}

// SetEventBus sets the event bus for publishing discoveries and completion.
func (j *Job) SetEventBus(bus *event.Bus) {
	j.eventBus = bus
}

// Start begins walking root. The cancellation signal is fresh for every run
// and the elapsed clock restarts.
func (j *Job) Start(ctx context.Context, root string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.done != nil {
		select {
		case <-j.done:
			return ErrJobPending
		default:
			return ErrJobRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.id = uuid.New().String()
	j.root = root
	j.state = StateRunning
	j.started = time.Now()
	j.cancel = cancel
	j.done = make(chan struct{})
	j.found = nil
	j.err = nil

	j.logger.Info("scan starting", "scan_id", j.id, "root", root)
	go j.run(runCtx, j.id, root, j.done)
	return nil
}

func (j *Job) run(ctx context.Context, id, root string, done chan struct{}) {
	var found []string
	var werr error

	defer func() {
		if r := recover(); r != nil {
			werr = &WorkerError{Value: r, Stack: debug.Stack()}
			j.logger.Error("scan worker panicked", "scan_id", id, "panic", r)
		}

		state := StateCompleted
		switch {
		case werr != nil:
			state = StateFailed
		case ctx.Err() != nil:
			state = StateCancelled
			j.logger.Info("scan was cancelled early", "scan_id", id, "found", len(found))
		}

		j.mu.Lock()
		j.found = found
		j.err = werr
		j.state = state
		started := j.started
		j.mu.Unlock()
		elapsed := time.Since(started)

		j.logger.Info("scan finished", "scan_id", id, "state", string(state), "found", len(found), "elapsed", elapsed)
		// Publish before signalling so a joined caller has seen every event.
		defer close(done)
		if j.eventBus != nil {
			j.eventBus.Publish(event.Event{
				Type: event.ScanCompleted,
				Data: map[string]any{
					"scan_id":    id,
					"root":       root,
					"state":      string(state),
					"found":      found,
					"started_at": started.UTC(),
					"elapsed":    elapsed,
				},
			})
		}
	}()

	opts := j.opts
	callerFound := opts.OnFound
	opts.OnFound = func(path string) {
		if callerFound != nil {
			callerFound(path)
		}
		if j.eventBus != nil {
			j.eventBus.Publish(event.Event{
				Type: event.InstallationFound,
				Data: map[string]any{"scan_id": id, "path": path},
			})
		}
	}

	found = Walk(ctx, root, opts, j.logger)
}

// Done reports whether the current walk has finished. It never blocks.
func (j *Job) Done() bool {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// Wait blocks until the walk finishes and returns the installations it
// found. A cancelled walk returns its partial result and a nil error; a
// panicking walk returns a *WorkerError. After Wait the job can be started again.
func (j *Job) Wait() ([]string, error) {
	j.mu.Lock()
	done := j.done
	j.mu.Unlock()
	if done == nil {
		return nil, ErrNotStarted
	}

	<-done

	j.mu.Lock()
	defer j.mu.Unlock()
	found, err := j.found, j.err
	if j.done == done {
		j.cancel()
		j.cancel = nil
		j.done = nil
	}
	return found, err
}

// Stop asks the walk to return early. It does not wait; call Wait.
func (j *Job) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.cancel()
	}
}

// Elapsed returns the wall-clock time since the last Start.
func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started.IsZero() {
		return 0
	}
	return time.Since(j.started)
}

// ID returns the identifier of the most recent run.
func (j *Job) ID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.id
}

// Root returns the directory the most recent run walked.
func (j *Job) Root() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.root
}

// State returns the job's lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// FormatElapsed renders d as MM:SS, or HH:MM:SS once it reaches an hour.
func FormatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	secs %= 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
