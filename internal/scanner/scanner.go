// Package scanner drives the continuous fixture scan loop. Each cycle pulls
// upcoming fixtures for the configured competitions, scores the ones the
// ledger has not seen, and persists predictions that clear the acceptance
// threshold. The loop recovers from per-fixture and per-cycle failures and
// stops only when its context is cancelled.
package scanner

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matchday-labs/goalscan/internal/config"
	"github.com/matchday-labs/goalscan/internal/feature"
	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/notify"
	"github.com/matchday-labs/goalscan/internal/resilience"
	"github.com/matchday-labs/goalscan/internal/scoring"
	"github.com/matchday-labs/goalscan/internal/store"
	"github.com/matchday-labs/goalscan/pkg/footballdata"
)

// State is the scheduler's position in its loop.
type State string

const (
	StateIdle         State = "idle"
	StateScanning     State = "scanning"
	StateSleeping     State = "sleeping"
	StateErrorBackoff State = "error_backoff"
)

const (
	defaultIntervalSecs     = 3600
	defaultErrorBackoffSecs = 60
	defaultHistoryLimit     = 15
)

// Scheduler owns the scan loop. All collaborators are injected; the only
// internal state is the loop position, guarded for concurrent State reads.
type Scheduler struct {
	feed     footballdata.Client
	store    store.Store
	builder  *feature.Builder
	engine   *scoring.Engine
	notifier notify.Notifier
	cfg      config.ScanConfig
	log      *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	state State
}

// Option configures optional Scheduler behavior.
type Option func(*Scheduler)

// WithClock overrides the scheduler's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithSleep overrides the scheduler's delay function.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

// New wires a Scheduler from its collaborators. The feed, store and scoring
// engine are required; a nil builder falls back to the bundled league
// averages and a nil notifier to a no-op.
func New(
	feed footballdata.Client,
	st store.Store,
	builder *feature.Builder,
	engine *scoring.Engine,
	notifier notify.Notifier,
	cfg config.ScanConfig,
	log *zap.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if feed == nil {
		return nil, eris.New("scanner: feed client is required")
	}
	if st == nil {
		return nil, eris.New("scanner: store is required")
	}
	if engine == nil {
		return nil, eris.New("scanner: scoring engine is required")
	}
	if builder == nil {
		builder = feature.NewBuilder(feature.DefaultLeagueAverages())
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if log == nil {
		log = zap.L()
	}

	s := &Scheduler{
		feed:     feed,
		store:    st,
		builder:  builder,
		engine:   engine,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State reports the scheduler's current loop state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run drives scan cycles until ctx is cancelled. A failed cycle backs off
// for the configured interval and resumes; the loop never stops on its own.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scanner: starting scan loop",
		zap.Int("leagues", len(s.cfg.Leagues)),
		zap.Int("look_ahead_days", s.cfg.LookAheadDays),
		zap.Float64("over25_min", s.cfg.Over25Min),
	)

	for {
		if err := ctx.Err(); err != nil {
			s.setState(StateIdle)
			return err
		}

		s.setState(StateScanning)
		result, err := s.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setState(StateIdle)
				return ctx.Err()
			}

			s.setState(StateErrorBackoff)
			backoff := secondsOr(s.cfg.ErrorBackoffSecs, defaultErrorBackoffSecs)
			s.log.Error("scanner: cycle failed, backing off",
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			if sleepErr := s.sleep(ctx, backoff); sleepErr != nil {
				s.setState(StateIdle)
				return sleepErr
			}
			continue
		}

		s.setState(StateSleeping)
		interval := secondsOr(s.cfg.IntervalSecs, defaultIntervalSecs)
		s.log.Info("scanner: cycle complete, sleeping",
			zap.Duration("interval", interval),
			zap.Int("fixtures_seen", result.FixturesSeen),
			zap.Int("predictions_made", result.PredictionsMade),
			zap.Int("errors", result.Errors),
		)
		if err := s.sleep(ctx, interval); err != nil {
			s.setState(StateIdle)
			return err
		}
	}
}

// RunCycle performs one scan over all configured leagues and records it in
// the scan log. League-level feed failures are counted and logged without
// aborting the cycle; only cancellation or a store failure aborts it.
func (s *Scheduler) RunCycle(ctx context.Context) (store.ScanResult, error) {
	var result store.ScanResult

	entry, err := s.store.StartScan(ctx)
	if err != nil {
		return result, eris.Wrap(err, "scanner: start scan")
	}
	log := s.log.With(zap.String("scan_id", entry.ID))
	log.Info("scanner: scanning upcoming fixtures")

	now := s.now().UTC()
	from := now
	to := now.AddDate(0, 0, s.cfg.LookAheadDays)

	// Leagues scan in stable order.
	codes := make([]string, 0, len(s.cfg.Leagues))
	for code := range s.cfg.Leagues {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var cycleErr error
	for _, code := range codes {
		league := s.cfg.Leagues[code]
		if err := s.scanLeague(ctx, log, league, from, to, &result); err != nil {
			if ctx.Err() != nil {
				cycleErr = err
				break
			}
			result.Errors++
			log.Error("scanner: league scan failed",
				zap.String("league", league.Name),
				zap.Error(err),
			)
		}
	}

	if cycleErr != nil {
		// The scan row must not stay running after an interrupted cycle.
		failCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if failErr := s.store.FailScan(failCtx, entry.ID, cycleErr.Error()); failErr != nil {
			log.Warn("scanner: failed to record aborted scan", zap.Error(failErr))
		}
		return result, cycleErr
	}

	if err := s.store.CompleteScan(ctx, entry.ID, result); err != nil {
		return result, eris.Wrap(err, "scanner: complete scan")
	}
	return result, nil
}

// scanLeague fetches one competition's fixtures and processes the scannable
// ones. Per-fixture failures are isolated; an error return means the league
// fetch itself failed or the context was cancelled.
func (s *Scheduler) scanLeague(
	ctx context.Context,
	log *zap.Logger,
	league config.LeagueConfig,
	from, to time.Time,
	result *store.ScanResult,
) error {
	fixtures, err := s.feed.CompetitionMatches(ctx, league.ID, from, to)
	if err != nil {
		return eris.Wrapf(err, "scanner: fetch fixtures for %s", league.Name)
	}
	log.Info("scanner: league fetched",
		zap.String("league", league.Name),
		zap.Int("fixtures", len(fixtures)),
	)

	for _, fx := range fixtures {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fx.Status.Scannable() {
			continue
		}
		if !fx.Kickoff.After(s.now().UTC()) {
			continue
		}

		result.FixturesSeen++

		seen, err := s.store.Exists(ctx, fx.ID)
		if err != nil {
			result.Errors++
			log.Error("scanner: dedup check failed",
				zap.Int64("fixture_id", fx.ID),
				zap.Error(err),
			)
			continue
		}
		if seen {
			continue
		}

		persisted, procErr := s.processFixture(ctx, log, fx, league.Name)
		switch {
		case procErr != nil && ctx.Err() != nil:
			return procErr
		case procErr != nil:
			result.Errors++
			log.Error("scanner: fixture skipped",
				zap.Int64("fixture_id", fx.ID),
				zap.String("home", fx.HomeTeam.Name),
				zap.String("away", fx.AwayTeam.Name),
				zap.Error(procErr),
			)
		case persisted:
			result.PredictionsMade++
		}

		if err := s.pause(ctx, procErr); err != nil {
			return err
		}
	}
	return nil
}

// processFixture scores one unseen fixture and persists the prediction when
// it clears the acceptance threshold. Returns whether a row was stored.
func (s *Scheduler) processFixture(ctx context.Context, log *zap.Logger, fx model.Fixture, league string) (bool, error) {
	limit := s.cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var homeHistory, awayHistory []model.MatchRecord
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		homeHistory, err = s.feed.TeamMatches(gCtx, fx.HomeTeam.ID, limit)
		if err != nil {
			return eris.Wrapf(err, "scanner: history for %s", fx.HomeTeam.Name)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		awayHistory, err = s.feed.TeamMatches(gCtx, fx.AwayTeam.ID, limit)
		if err != nil {
			return eris.Wrapf(err, "scanner: history for %s", fx.AwayTeam.Name)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return false, err
	}

	// A team with no finished matches on record cannot be scored.
	if len(homeHistory) == 0 || len(awayHistory) == 0 {
		log.Debug("scanner: no history, skipping fixture",
			zap.Int64("fixture_id", fx.ID),
			zap.String("home", fx.HomeTeam.Name),
			zap.String("away", fx.AwayTeam.Name),
		)
		return false, nil
	}

	vector := s.builder.Build(fx.HomeTeam.Name, fx.AwayTeam.Name, homeHistory, awayHistory, league)

	scored, err := s.engine.ScoreThresholdEvent(vector)
	if err != nil {
		return false, eris.Wrapf(err, "scanner: score fixture %d", fx.ID)
	}
	btts := s.engine.ScoreBothTeamsScore(vector.LambdaHome, vector.LambdaAway, 1.0)

	if scored.Probability < s.cfg.Over25Min {
		log.Debug("scanner: below threshold",
			zap.Int64("fixture_id", fx.ID),
			zap.Float64("over25_prob", scored.Probability),
			zap.Float64("over25_min", s.cfg.Over25Min),
		)
		return false, nil
	}

	if err := validProbability(scored.Probability); err != nil {
		return false, err
	}
	if err := validProbability(btts); err != nil {
		return false, err
	}

	pred := model.Prediction{
		FixtureID:        fx.ID,
		PredictedAt:      s.now().UTC(),
		HomeTeam:         fx.HomeTeam.Name,
		AwayTeam:         fx.AwayTeam.Name,
		League:           league,
		Kickoff:          fx.Kickoff,
		Over25Prob:       scored.Probability,
		Over25Confidence: scored.Confidence,
		BTTSProb:         btts,
		ExpectedGoals:    vector.ExpectedTotalGoals,
		HomeForm:         vector.HomePointsForm5,
		AwayForm:         vector.AwayPointsForm3,
		Status:           model.PredictionPending,
	}
	if err := s.store.InsertPrediction(ctx, pred); err != nil {
		return false, eris.Wrapf(err, "scanner: persist fixture %d", fx.ID)
	}
	log.Info("scanner: prediction stored",
		zap.Int64("fixture_id", fx.ID),
		zap.String("home", fx.HomeTeam.Name),
		zap.String("away", fx.AwayTeam.Name),
		zap.Float64("over25_prob", scored.Probability),
		zap.Float64("btts_prob", btts),
		zap.Bool("btts_value", btts >= s.cfg.BTTSMin),
		zap.String("confidence", string(scored.Confidence)),
	)

	s.notifier.NotifyPrediction(ctx, &pred)
	return true, nil
}

// pause waits the inter-fixture delay. A rate-limit hint from the feed
// stretches the wait when it exceeds the configured delay.
func (s *Scheduler) pause(ctx context.Context, lastErr error) error {
	delay := time.Duration(s.cfg.FixtureDelaySecs) * time.Second
	if hint, ok := resilience.RetryAfterHint(lastErr); ok && hint > delay {
		delay = hint
	}
	if delay <= 0 {
		return nil
	}
	return s.sleep(ctx, delay)
}

// validProbability rejects values that must never reach the ledger.
func validProbability(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return eris.Errorf("scanner: probability %v out of range", p)
	}
	return nil
}

func secondsOr(secs, fallback int) time.Duration {
	if secs <= 0 {
		secs = fallback
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
