package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/matchday-labs/goalscan/internal/model"
)

var scansLimit int

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List recent scan cycles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scans, err := st.ListScans(ctx, scansLimit)
		if err != nil {
			return eris.Wrap(err, "scans")
		}

		if len(scans) == 0 {
			fmt.Fprintln(os.Stderr, "No scans recorded.")
			return nil
		}

		formatScansList(os.Stdout, scans)
		return nil
	},
}

func init() {
	scansCmd.Flags().IntVar(&scansLimit, "limit", 20, "max number of scans to display")
	rootCmd.AddCommand(scansCmd)
}

// formatScansList writes a tabular scan-log listing to w.
func formatScansList(out io.Writer, scans []model.ScanEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tSEEN\tMADE\tERRORS")
	_, _ = fmt.Fprintln(w, "--\t------\t-------\t--------\t----\t----\t------")

	for _, s := range scans {
		dur := ""
		if s.CompletedAt != nil {
			dur = s.CompletedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			shortID(s.ID),
			s.Status,
			s.StartedAt.Format("2006-01-02 15:04"),
			dur,
			s.FixturesSeen,
			s.PredictionsMade,
			s.Errors,
		)
	}
	_ = w.Flush()
}

// shortID compacts a scan UUID to its first block for display.
func shortID(id string) string {
	if head, _, ok := strings.Cut(id, "-"); ok {
		return head
	}
	return id
}
