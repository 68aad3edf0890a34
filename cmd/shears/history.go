package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sydlexius/shears/internal/history"
	"github.com/sydlexius/shears/internal/locator"
)

func (a *app) historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past shears and locator scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.historyService()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			shears, err := svc.ListShears(ctx, limit)
			if err != nil {
				return err
			}
			scans, err := svc.ListScans(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printShears(out, shears); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return printScans(out, scans)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of entries to show per list")
	return cmd
}

func printShears(w io.Writer, recs []history.ShearRecord) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No shears recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tDIRECTORY\tKEPT UP TO\tDELETED\tFAILED\tRECLAIMED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			humanize.Time(r.CompletedAt), r.Dir, r.MinimumTierToKeep,
			len(r.Deleted), len(r.Failed), humanize.IBytes(r.ReclaimedBytes))
	}
	return tw.Flush()
}

func printScans(w io.Writer, recs []history.ScanRecord) error {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No scans recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tROOT\tSTATE\tFOUND\tTOOK")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			humanize.Time(r.StartedAt), r.Root, r.State, len(r.Found),
			locator.FormatElapsed(r.Elapsed.Round(time.Second)))
	}
	return tw.Flush()
}
