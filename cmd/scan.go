package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matchday-labs/goalscan/internal/ensemble"
	"github.com/matchday-labs/goalscan/internal/feature"
	"github.com/matchday-labs/goalscan/internal/notify"
	"github.com/matchday-labs/goalscan/internal/resilience"
	"github.com/matchday-labs/goalscan/internal/scanner"
	"github.com/matchday-labs/goalscan/internal/scoring"
	"github.com/matchday-labs/goalscan/pkg/footballdata"
)

var scanOnce bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the continuous fixture scan loop",
	Long: `Scans upcoming fixtures in the configured leagues on an interval, scores
each one with the loaded model, and persists predictions that clear the
probability threshold. Runs until interrupted; --once runs a single cycle.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		engine, err := loadEngine()
		if err != nil {
			return err
		}
		builder, err := loadBuilder()
		if err != nil {
			return err
		}

		sched, err := scanner.New(
			newFeedClient(), st, builder, engine,
			notify.NewTelegram(cfg.Telegram), cfg.Scan, zap.L(),
		)
		if err != nil {
			return err
		}

		if scanOnce {
			result, err := sched.RunCycle(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("scan cycle complete",
				zap.Int("fixtures_seen", result.FixturesSeen),
				zap.Int("predictions_made", result.PredictionsMade),
				zap.Int("errors", result.Errors),
			)
			return nil
		}

		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		zap.L().Info("scan loop stopped")
		return nil
	},
}

// loadEngine loads the model artifact and wraps it in a scoring engine. A
// missing or malformed artifact refuses to start rather than scanning blind.
func loadEngine() (*scoring.Engine, error) {
	ens, err := ensemble.Load(cfg.Scoring.ModelPath)
	if err != nil {
		return nil, eris.Wrap(err, "load model artifact")
	}
	return scoring.NewEngine(ens, scoring.Config{
		IntervalMargin:  cfg.Scoring.IntervalMargin,
		BTTSDampening:   cfg.Scoring.BTTSDampening,
		BTTSDampenBelow: cfg.Scoring.BTTSDampenBelow,
	}), nil
}

func loadBuilder() (*feature.Builder, error) {
	if cfg.Scoring.LeaguesPath == "" {
		return feature.NewBuilder(feature.DefaultLeagueAverages()), nil
	}
	avgs, err := feature.LoadLeagueAverages(cfg.Scoring.LeaguesPath)
	if err != nil {
		return nil, eris.Wrap(err, "load league averages")
	}
	return feature.NewBuilder(avgs), nil
}

// newFeedClient builds the fixture feed client from configuration. The
// configured per-minute allowance is converted to requests per second.
func newFeedClient() footballdata.Client {
	opts := []footballdata.Option{
		footballdata.WithRateLimit(cfg.Feed.RatePerMinute / 60.0),
		footballdata.WithRetryConfig(resilience.RetryConfig{
			MaxAttempts:    cfg.Feed.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Feed.Retry.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Feed.Retry.MaxBackoffMs) * time.Millisecond,
			Multiplier:     cfg.Feed.Retry.Multiplier,
			JitterFraction: cfg.Feed.Retry.JitterFraction,
		}),
		footballdata.WithBreaker(resilience.NewBreaker(resilience.BreakerConfig{
			FailureThreshold: cfg.Feed.Breaker.FailureThreshold,
			ResetTimeout:     time.Duration(cfg.Feed.Breaker.ResetTimeoutSecs) * time.Second,
		})),
	}
	if cfg.Feed.BaseURL != "" {
		opts = append(opts, footballdata.WithBaseURL(cfg.Feed.BaseURL))
	}
	if cfg.Feed.TimeoutSecs > 0 {
		opts = append(opts, footballdata.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Feed.TimeoutSecs) * time.Second,
		}))
	}
	return footballdata.NewClient(cfg.Feed.Token, opts...)
}

func init() {
	scanCmd.Flags().BoolVar(&scanOnce, "once", false, "run a single scan cycle and exit")
	rootCmd.AddCommand(scanCmd)
}
