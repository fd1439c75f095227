package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/store"
)

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "Inspect the prediction ledger",
	Long:  "Commands for listing and viewing stored predictions and their recorded outcomes.",
}

// -- predictions list --

var predictionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored predictions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		league, _ := cmd.Flags().GetString("league")
		status, _ := cmd.Flags().GetString("status")
		minOver25, _ := cmd.Flags().GetFloat64("min-over25")
		minBTTS, _ := cmd.Flags().GetFloat64("min-btts")
		upcoming, _ := cmd.Flags().GetBool("upcoming")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.PredictionFilter{
			League:        league,
			Status:        model.PredictionStatus(strings.ToUpper(status)),
			MinOver25Prob: minOver25,
			MinBTTSProb:   minBTTS,
			UpcomingOnly:  upcoming,
			Limit:         limit,
			Offset:        offset,
		}

		preds, err := st.ListPredictions(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "predictions list")
		}

		if len(preds) == 0 {
			fmt.Fprintln(os.Stderr, "No predictions found.")
			return nil
		}

		formatPredictionsList(os.Stdout, preds)
		return nil
	},
}

// -- predictions show --

var predictionsShowCmd = &cobra.Command{
	Use:   "show <fixture-id>",
	Short: "Show full details of a prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		fixtureID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid fixture id %q", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pred, err := st.GetPrediction(ctx, fixtureID)
		if err != nil {
			return eris.Wrap(err, "predictions show")
		}
		if pred == nil {
			return eris.Errorf("prediction not found: %d", fixtureID)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pred)
	},
}

func init() {
	predictionsListCmd.Flags().String("league", "", "filter by league name")
	predictionsListCmd.Flags().String("status", "", "filter by status (pending, finished)")
	predictionsListCmd.Flags().Float64("min-over25", 0, "minimum over-2.5 probability")
	predictionsListCmd.Flags().Float64("min-btts", 0, "minimum both-teams-score probability")
	predictionsListCmd.Flags().Bool("upcoming", false, "only predictions with kickoff in the future")
	predictionsListCmd.Flags().Int("limit", 50, "max number of predictions to display")
	predictionsListCmd.Flags().Int("offset", 0, "number of predictions to skip")

	predictionsCmd.AddCommand(predictionsListCmd)
	predictionsCmd.AddCommand(predictionsShowCmd)
	rootCmd.AddCommand(predictionsCmd)
}

// formatPredictionsList writes a tabular prediction list to w.
func formatPredictionsList(out io.Writer, preds []model.Prediction) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIXTURE\tMATCH\tLEAGUE\tKICKOFF\tOVER2.5\tCONF\tBTTS\tSTATUS\tRESULT")
	_, _ = fmt.Fprintln(w, "-------\t-----\t------\t-------\t-------\t----\t----\t------\t------")

	for _, p := range preds {
		match := p.HomeTeam + " v " + p.AwayTeam
		if len(match) > 40 {
			match = match[:37] + "..."
		}

		result := ""
		if p.Outcome != nil {
			result = fmt.Sprintf("%d-%d", p.Outcome.HomeGoals, p.Outcome.AwayGoals)
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\t%.2f\t%s\t%s\n",
			p.FixtureID,
			match,
			p.League,
			p.Kickoff.Format("2006-01-02 15:04"),
			p.Over25Prob,
			p.Over25Confidence,
			p.BTTSProb,
			p.Status,
			result,
		)
	}
	_ = w.Flush()
}
