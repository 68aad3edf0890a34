package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/shears/internal/content"
	"github.com/sydlexius/shears/internal/event"
	"github.com/sydlexius/shears/internal/watcher"
)

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Print the installation's content every time it changes",
		Long: `Watch an installation directory and print a fresh content table whenever
the launcher or the game adds or removes archives. Useful to confirm that a
shear sticks after the next update. Press Ctrl-C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			out := cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus := event.NewBus(a.logger, 16)
			bus.Subscribe(event.ContentChanged, func(e event.Event) {
				fa, ok := e.Data["availability"].(content.FeatureAvailability)
				if !ok {
					return
				}
				fmt.Fprintf(out, "%s  %s\n", e.Timestamp.Local().Format(time.TimeOnly), dir)
				if err := printAvailability(out, fa); err != nil {
					a.logger.Warn("printing scan", "error", err)
				}
				fmt.Fprintln(out)
			})

			svc := watcher.NewService(dir, bus, a.logger)
			svc.SetDebounce(a.cfg.Watch.Debounce)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return bus.Run(gctx) })
			g.Go(func() error { return svc.Run(gctx) })
			return g.Wait()
		},
	}
}
