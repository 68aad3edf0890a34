package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sydlexius/shears/internal/content"
)

func (a *app) scanCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Show which optional content an installation carries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			fa := content.Scan(dir)
			a.logger.Debug("scan finished", "dir", dir, "total_bytes", fa.TotalBytes())

			if asJSON {
				return writeAvailabilityJSON(cmd.OutOrStdout(), dir, fa)
			}
			if !fa.HasInstallationMarker {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: no game archives in %s, is this an installation?\n", dir)
			}
			return printAvailability(cmd.OutOrStdout(), fa)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

type bucketView struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
	Bytes   uint64 `json:"bytes"`
}

type availabilityView struct {
	Dir                   string       `json:"dir"`
	HasInstallationMarker bool         `json:"has_installation_marker"`
	Textures              []bucketView `json:"textures"`
	Videos                bucketView   `json:"videos"`
	Events                bucketView   `json:"events"`
	TotalBytes            uint64       `json:"total_bytes"`
}

func newAvailabilityView(dir string, fa content.FeatureAvailability) availabilityView {
	v := availabilityView{
		Dir:                   dir,
		HasInstallationMarker: fa.HasInstallationMarker,
		Videos:                bucketView{Name: "videos", Present: fa.Videos.Present, Bytes: fa.Videos.Bytes},
		Events:                bucketView{Name: "events", Present: fa.Events.Present, Bytes: fa.Events.Bytes},
		TotalBytes:            fa.TotalBytes(),
	}
	for _, t := range content.AllTiers() {
		b := fa.Texture(t)
		v.Textures = append(v.Textures, bucketView{Name: t.String(), Present: b.Present, Bytes: b.Bytes})
	}
	return v
}

func writeAvailabilityJSON(w io.Writer, dir string, fa content.FeatureAvailability) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newAvailabilityView(dir, fa)); err != nil {
		return fmt.Errorf("encoding scan result: %w", err)
	}
	return nil
}

func printAvailability(w io.Writer, fa content.FeatureAvailability) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTENT\tPRESENT\tSIZE")
	for _, t := range content.AllTiers() {
		name := t.String() + " textures"
		if t == content.Low {
			name += " (always kept)"
		}
		printBucket(tw, name, fa.Texture(t))
	}
	printBucket(tw, "Videos", fa.Videos)
	printBucket(tw, "Events", fa.Events)
	fmt.Fprintf(tw, "Total\t\t%s\n", humanize.IBytes(fa.TotalBytes()))
	return tw.Flush()
}

func printBucket(w io.Writer, name string, b content.Bucket) {
	if !b.Present {
		fmt.Fprintf(w, "%s\tno\t-\n", name)
		return
	}
	fmt.Fprintf(w, "%s\tyes\t%s\n", name, humanize.IBytes(b.Bytes))
}
