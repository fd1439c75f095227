package main

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/store"
)

var resultsDays int

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Record final scores for pending predictions",
	Long: `Fetches finished results for the configured leagues over a trailing
window and records outcomes against pending predictions whose fixtures
have been played.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		pending, err := st.ListPredictions(ctx, store.PredictionFilter{
			Status: model.PredictionPending,
			Limit:  10000,
		})
		if err != nil {
			return eris.Wrap(err, "results: list pending")
		}

		now := time.Now().UTC()
		awaiting := make(map[int64]bool, len(pending))
		for _, p := range pending {
			// Only fixtures that have kicked off can have a final score.
			if p.Kickoff.Before(now) {
				awaiting[p.FixtureID] = true
			}
		}

		log := zap.L().With(zap.String("command", "results"))
		if len(awaiting) == 0 {
			log.Info("no pending predictions awaiting results")
			return nil
		}

		feed := newFeedClient()
		from := now.AddDate(0, 0, -resultsDays)

		codes := make([]string, 0, len(cfg.Scan.Leagues))
		for code := range cfg.Scan.Leagues {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		var recorded, feedErrors int
		for _, code := range codes {
			league := cfg.Scan.Leagues[code]
			records, err := feed.CompetitionResults(ctx, league.ID, from, now)
			if err != nil {
				feedErrors++
				log.Error("results fetch failed",
					zap.String("league", league.Name), zap.Error(err))
				continue
			}
			for _, rec := range records {
				if !awaiting[rec.ID] || !rec.Played() {
					continue
				}
				if err := st.RecordOutcome(ctx, rec.ID, *rec.HomeGoals, *rec.AwayGoals); err != nil {
					log.Error("record outcome failed",
						zap.Int64("fixture_id", rec.ID), zap.Error(err))
					continue
				}
				recorded++
				delete(awaiting, rec.ID)
			}
		}

		log.Info("results pass complete",
			zap.Int("recorded", recorded),
			zap.Int("still_pending", len(awaiting)),
			zap.Int("feed_errors", feedErrors),
		)
		return nil
	},
}

func init() {
	resultsCmd.Flags().IntVar(&resultsDays, "days", 7, "trailing window of finished results to fetch")
	rootCmd.AddCommand(resultsCmd)
}
