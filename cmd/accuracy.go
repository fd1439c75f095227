package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/monitoring"
)

var (
	accuracyDays     int
	accuracyLookback int
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Show prediction accuracy and scan-loop health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.AccuracyStats(ctx, accuracyDays)
		if err != nil {
			return eris.Wrap(err, "accuracy")
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, accuracyLookback, accuracyDays)
		if err != nil {
			return eris.Wrap(err, "accuracy: collect metrics")
		}

		formatAccuracyReport(os.Stdout, stats, snap)
		return nil
	},
}

func init() {
	accuracyCmd.Flags().IntVar(&accuracyDays, "days", 30, "trailing window in days")
	accuracyCmd.Flags().IntVar(&accuracyLookback, "lookback-hours", 24, "scan-cycle lookback window in hours")
	rootCmd.AddCommand(accuracyCmd)
}

// formatAccuracyReport writes the accuracy window plus the wider ledger and
// scan-loop snapshot to out.
func formatAccuracyReport(out io.Writer, stats model.AccuracyStats, snap *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%d days\n", stats.WindowDays)
	_, _ = fmt.Fprintf(w, "Matched outcomes:\t%d\n", stats.Total)
	if stats.Total > 0 {
		_, _ = fmt.Fprintf(w, "Over 2.5 accuracy:\t%.1f%% (%d/%d)\n",
			stats.AccuracyOver25*100, stats.CorrectOver25, stats.Total)
		_, _ = fmt.Fprintf(w, "BTTS accuracy:\t%.1f%% (%d/%d)\n",
			stats.AccuracyBTTS*100, stats.CorrectBTTS, stats.Total)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Predictions:\t%d (%d pending, %d finished)\n",
		snap.PredictionsTotal, snap.PredictionsPending, snap.PredictionsFinished)
	_, _ = fmt.Fprintf(w, "Upcoming fixtures:\t%d\n", snap.UpcomingFixtures)
	_, _ = fmt.Fprintf(w, "High confidence:\t%d\n", snap.HighConfidence)
	_, _ = fmt.Fprintf(w, "Scans (last %dh):\t%d (%d complete, %d failed)\n",
		snap.LookbackHours, snap.ScansTotal, snap.ScansComplete, snap.ScansFailed)
	if snap.ScansComplete+snap.ScansFailed > 0 {
		_, _ = fmt.Fprintf(w, "Scan failure rate:\t%.1f%%\n", snap.ScanFailRate*100)
	}
	_ = w.Flush()
}
