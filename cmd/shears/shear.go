package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sydlexius/shears/internal/content"
	"github.com/sydlexius/shears/internal/shear"
)

// errDeclined is returned when the operator answers no at the prompt.
var errDeclined = errors.New("shear cancelled")

func (a *app) shearCmd() *cobra.Command {
	var (
		keep         string
		removeVideos bool
		removeEvents bool
		yes          bool
	)

	cmd := &cobra.Command{
		Use:   "shear <dir>",
		Short: "Delete texture tiers above --keep and optional content",
		Long: `Delete every texture archive of a higher quality tier than --keep, and
optionally the videos and event content, then write streaminginstall.ini so
the launcher stops offering to download them. Low textures are never deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := content.ParseTier(keep)
			if err != nil {
				return err
			}
			if removeEvents && !a.cfg.Features.Experimental {
				return fmt.Errorf("--remove-events is experimental; set features.experimental: true or SHEARS_EXPERIMENTAL=true")
			}
			return a.runShear(cmd, args[0], shear.Options{
				MinimumTierToKeep: tier,
				RemoveVideos:      removeVideos,
				RemoveEvents:      removeEvents,
			}, yes)
		},
	}

	cmd.Flags().StringVarP(&keep, "keep", "k", "", "highest texture tier to keep: low, medium, high, very-high, ultra")
	cmd.Flags().BoolVar(&removeVideos, "remove-videos", false, "delete the videos directory")
	cmd.Flags().BoolVar(&removeEvents, "remove-events", false, "delete event content (experimental)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	_ = cmd.MarkFlagRequired("keep")
	return cmd
}

func (a *app) runShear(cmd *cobra.Command, dir string, opts shear.Options, yes bool) error {
	out := cmd.OutOrStdout()

	before := content.Scan(dir)
	if !before.HasInstallationMarker {
		return fmt.Errorf("no game archives in %s; refusing to shear", dir)
	}

	sel := content.SelectionForMinimum(opts.MinimumTierToKeep, !opts.RemoveVideos, !opts.RemoveEvents)
	reclaim := sel.Reclaimable(before)
	printPlan(out, opts, reclaim)

	if !yes {
		ok, err := confirm(cmd.InOrStdin(), out)
		if err != nil {
			return err
		}
		if !ok {
			return errDeclined
		}
	}

	exec := shear.NewExecutor(a.logger)
	report, err := exec.Shear(dir, opts)
	if err != nil {
		return err
	}

	if svc := a.recorder(); svc != nil {
		if err := svc.RecordShear(context.Background(), report, reclaim); err != nil {
			a.logger.Warn("recording shear", "error", err)
		}
	}

	fmt.Fprintf(out, "Deleted %d item(s), about %s reclaimed.\n", len(report.Deleted), humanize.IBytes(reclaim))
	for _, p := range report.Failed {
		fmt.Fprintf(out, "  could not delete %s\n", p)
	}
	fmt.Fprintln(out)

	return printAvailability(out, content.Scan(dir))
}

func printPlan(w io.Writer, opts shear.Options, reclaim uint64) {
	if opts.MinimumTierToKeep >= content.Ultra {
		fmt.Fprintln(w, "Keeping every texture tier.")
	} else {
		fmt.Fprintf(w, "Deleting textures above %s.\n", opts.MinimumTierToKeep)
	}
	if opts.RemoveVideos {
		fmt.Fprintln(w, "Deleting videos.")
	}
	if opts.RemoveEvents {
		fmt.Fprintln(w, "Deleting event content.")
	}
	fmt.Fprintf(w, "This frees about %s.\n", humanize.IBytes(reclaim))
}

// confirm asks on the terminal. Without a terminal there is nobody to ask,
// so the caller must pass --yes.
func confirm(in io.Reader, out io.Writer) (bool, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: file descriptors fit in int
		return false, fmt.Errorf("stdin is not a terminal; pass --yes to shear without confirmation")
	}

	fmt.Fprint(out, "Continue? [y/N] ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
