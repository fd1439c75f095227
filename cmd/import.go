package main

import (
	"context"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/store"
	"github.com/matchday-labs/goalscan/pkg/histdata"
)

var (
	importSeasons   string
	importDivisions string
)

const importBatchSize = 500

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import historical results into the match archive",
	Long: `Downloads season result files from the football-data.co.uk archive and
bulk-upserts them into the matches table. Re-importing a season refreshes
corrected results without duplicating rows.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		seasons := splitAndTrim(importSeasons)
		if len(seasons) == 0 {
			return eris.New("at least one season is required, e.g. --seasons 2324")
		}

		divisions := histdata.Divisions()
		if importDivisions != "" {
			divisions = toUpper(splitAndTrim(importDivisions))
			for _, d := range divisions {
				if _, ok := histdata.LeagueForDivision(d); !ok {
					return eris.Errorf("unknown division %q, supported: %s",
						d, strings.Join(histdata.Divisions(), ", "))
				}
			}
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		archive, ok := st.(store.ArchiveWriter)
		if !ok {
			return eris.Errorf("store driver %q does not support the match archive", cfg.Store.Driver)
		}

		client := histdata.NewClient()
		log := zap.L().With(zap.String("command", "import"))

		var mu sync.Mutex
		var total int64

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(3)

		for _, season := range seasons {
			season := season
			for _, division := range divisions {
				division := division
				g.Go(func() error {
					n, err := importSeason(gCtx, archive, client, season, division)
					if err != nil {
						return err
					}
					mu.Lock()
					total += n
					mu.Unlock()
					log.Info("season imported",
						zap.String("season", season),
						zap.String("division", division),
						zap.Int64("rows", n),
					)
					return nil
				})
			}
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "import")
		}

		log.Info("import complete",
			zap.Int("seasons", len(seasons)),
			zap.Int("divisions", len(divisions)),
			zap.Int64("rows", total),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSeasons, "seasons", "", "comma-separated season codes, e.g. 2223,2324 (required)")
	importCmd.Flags().StringVar(&importDivisions, "divisions", "", "comma-separated division codes (default all supported)")
	_ = importCmd.MarkFlagRequired("seasons")
	rootCmd.AddCommand(importCmd)
}

// importSeason streams one season file into the archive in batches so
// multi-season imports stay bounded in memory.
func importSeason(ctx context.Context, archive store.ArchiveWriter, client histdata.Client, season, division string) (int64, error) {
	rowCh, errCh := client.StreamSeason(ctx, season, division)

	var total int64
	var insertErr error
	batch := make([]model.ArchiveMatch, 0, importBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := archive.InsertArchiveMatches(ctx, batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for m := range rowCh {
		if insertErr != nil {
			continue // keep draining so the producer can finish
		}
		batch = append(batch, m)
		if len(batch) >= importBatchSize {
			insertErr = flush()
		}
	}

	streamErr := <-errCh
	if insertErr != nil {
		return total, insertErr
	}
	if streamErr != nil {
		return total, streamErr
	}
	return total, flush()
}

// splitAndTrim splits a comma-separated flag value into trimmed parts.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// toUpper uppercases each element of a slice.
func toUpper(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToUpper(s)
	}
	return out
}
