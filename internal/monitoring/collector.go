package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/store"
)

// MetricsSnapshot holds a point-in-time view of ledger and scan-loop health.
type MetricsSnapshot struct {
	// Prediction ledger.
	PredictionsTotal    int `json:"predictions_total"`
	PredictionsPending  int `json:"predictions_pending"`
	PredictionsFinished int `json:"predictions_finished"`
	UpcomingFixtures    int `json:"upcoming_fixtures"`
	HighConfidence      int `json:"high_confidence"`

	// Outcome accuracy over the trailing window.
	OutcomesMatched    int     `json:"outcomes_matched"`
	AccuracyOver25     float64 `json:"accuracy_over25"`
	AccuracyBTTS       float64 `json:"accuracy_btts"`
	AccuracyWindowDays int     `json:"accuracy_window_days"`

	// Scan cycles (within lookback window).
	ScansTotal      int     `json:"scans_total"`
	ScansComplete   int     `json:"scans_complete"`
	ScansFailed     int     `json:"scans_failed"`
	ScansRunning    int     `json:"scans_running"`
	ScanFailRate    float64 `json:"scan_fail_rate"`
	FixturesSeen    int     `json:"fixtures_seen"`
	PredictionsMade int     `json:"predictions_made"`
	ScanErrors      int     `json:"scan_errors"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the prediction store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot. Scan cycles are counted within the lookback
// window; accuracy is aggregated over the trailing accuracyDays window.
func (c *Collector) Collect(ctx context.Context, lookbackHours, accuracyDays int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}

	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	pending, err := c.store.ListPredictions(ctx, store.PredictionFilter{
		Status: model.PredictionPending,
		Limit:  10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pending predictions")
	}

	snap.PredictionsPending = len(pending)
	for _, p := range pending {
		if !p.Kickoff.After(now) {
			continue
		}
		snap.UpcomingFixtures++
		if p.Over25Confidence == model.ConfidenceHigh {
			snap.HighConfidence++
		}
	}

	finished, err := c.store.ListPredictions(ctx, store.PredictionFilter{
		Status: model.PredictionFinished,
		Limit:  10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list finished predictions")
	}
	snap.PredictionsFinished = len(finished)
	snap.PredictionsTotal = snap.PredictionsPending + snap.PredictionsFinished

	stats, err := c.store.AccuracyStats(ctx, accuracyDays)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: accuracy stats")
	}
	snap.OutcomesMatched = stats.Total
	snap.AccuracyOver25 = stats.AccuracyOver25
	snap.AccuracyBTTS = stats.AccuracyBTTS
	snap.AccuracyWindowDays = stats.WindowDays

	scans, err := c.store.ListScans(ctx, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list scans")
	}
	for _, e := range scans {
		if e.StartedAt.Before(cutoff) {
			continue
		}
		snap.ScansTotal++
		switch e.Status {
		case model.ScanComplete:
			snap.ScansComplete++
		case model.ScanFailed:
			snap.ScansFailed++
		case model.ScanRunning:
			snap.ScansRunning++
		}
		snap.FixturesSeen += e.FixturesSeen
		snap.PredictionsMade += e.PredictionsMade
		snap.ScanErrors += e.Errors
	}
	if finishedScans := snap.ScansComplete + snap.ScansFailed; finishedScans > 0 {
		snap.ScanFailRate = float64(snap.ScansFailed) / float64(finishedScans)
	}

	return snap, nil
}
