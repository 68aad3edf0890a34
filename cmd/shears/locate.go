package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sydlexius/shears/internal/event"
	"github.com/sydlexius/shears/internal/history"
	"github.com/sydlexius/shears/internal/locator"
)

const pollInterval = 250 * time.Millisecond

func (a *app) locateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate <root>",
		Short: "Search a drive or directory for installations",
		Long: `Walk <root> looking for directories that hold both the main data archive
and the game executable. System and vendor directories are skipped and
symbolic links are not followed. Press Ctrl-C to stop early and keep what
was found so far.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLocate(cmd, args[0])
		},
	}
}

func (a *app) runLocate(cmd *cobra.Command, root string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	interactive := term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec // G115: file descriptors fit in int

	sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus(a.logger, 64)
	bus.Subscribe(event.InstallationFound, func(e event.Event) {
		if interactive {
			fmt.Fprint(errOut, "\r\033[K")
		}
		fmt.Fprintf(errOut, "found %v\n", e.Data["path"])
	})
	busCtx, stopBus := context.WithCancel(context.Background())
	busDone := make(chan struct{})
	go func() {
		bus.Run(busCtx) //nolint:errcheck
		close(busDone)
	}()

	job := locator.NewJob(a.logger, locator.Options{Markers: a.markers()})
	job.SetEventBus(bus)

	startedAt := time.Now().UTC()
	// The job gets its own context; Ctrl-C goes through Stop.
	if err := job.Start(context.Background(), root); err != nil {
		stopBus()
		<-busDone
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(errOut, "\nstopping...")
			job.Stop()
			break poll
		case <-ticker.C:
			if job.Done() {
				break poll
			}
			if interactive {
				fmt.Fprintf(errOut, "\r\033[Kscanning %s  %s", root, locator.FormatElapsed(job.Elapsed()))
			}
		}
	}

	found, werr := job.Wait()
	elapsed := job.Elapsed()
	stopBus()
	<-busDone
	if interactive {
		fmt.Fprint(errOut, "\r\033[K")
	}

	state := job.State()
	if svc := a.recorder(); svc != nil {
		rec := history.ScanRecord{
			ID:        job.ID(),
			Root:      root,
			State:     string(state),
			Found:     found,
			StartedAt: startedAt,
			Elapsed:   elapsed,
		}
		if err := svc.RecordScan(context.Background(), rec); err != nil {
			a.logger.Warn("recording scan", "error", err)
		}
	}

	if werr != nil {
		return werr
	}

	verb := "Found"
	if state == locator.StateCancelled {
		verb = "Stopped early; found"
	}
	fmt.Fprintf(out, "%s %d installation(s) in %s\n", verb, len(found), locator.FormatElapsed(elapsed))
	for _, p := range found {
		fmt.Fprintln(out, p)
	}
	return nil
}
