package model

import "time"

// PredictionStatus tracks a ledger row's lifecycle. A prediction is PENDING
// from insert until an outcome arrives.
type PredictionStatus string

const (
	PredictionPending  PredictionStatus = "PENDING"
	PredictionFinished PredictionStatus = "FINISHED"
)

// Confidence is the three-level band attached to a threshold-event score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ConfidenceFor bands a calibrated probability.
func ConfidenceFor(p float64) Confidence {
	switch {
	case p >= 0.75:
		return ConfidenceHigh
	case p >= 0.65:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Prediction is one ledger record, keyed uniquely by FixtureID.
type Prediction struct {
	FixtureID        int64            `json:"fixture_id"`
	PredictedAt      time.Time        `json:"predicted_at"`
	HomeTeam         string           `json:"home_team"`
	AwayTeam         string           `json:"away_team"`
	League           string           `json:"league"`
	Kickoff          time.Time        `json:"kickoff_utc"`
	Over25Prob       float64          `json:"over25_prob"`
	Over25Confidence Confidence       `json:"over25_confidence"`
	BTTSProb         float64          `json:"btts_prob"`
	ExpectedGoals    float64          `json:"expected_goals"`
	HomeForm         float64          `json:"home_form"`
	AwayForm         float64          `json:"away_form"`
	Status           PredictionStatus `json:"status"`
	Outcome          *Outcome         `json:"outcome,omitempty"`
}

// Outcome is the recorded final result for a predicted fixture, with the two
// ground-truth labels derived from the score.
type Outcome struct {
	FixtureID    int64     `json:"fixture_id"`
	HomeGoals    int       `json:"home_goals"`
	AwayGoals    int       `json:"away_goals"`
	Over25Actual bool      `json:"over25_actual"`
	BTTSActual   bool      `json:"btts_actual"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// NewOutcome derives the ground-truth labels from a final score: total goals
// above two for the threshold event, both sides scoring for BTTS.
func NewOutcome(fixtureID int64, homeGoals, awayGoals int, recordedAt time.Time) Outcome {
	return Outcome{
		FixtureID:    fixtureID,
		HomeGoals:    homeGoals,
		AwayGoals:    awayGoals,
		Over25Actual: homeGoals+awayGoals > 2,
		BTTSActual:   homeGoals > 0 && awayGoals > 0,
		RecordedAt:   recordedAt,
	}
}

// ScoringResult is the ephemeral output of a threshold-event score. It is
// never persisted directly; the scanner folds it into a Prediction.
type ScoringResult struct {
	Probability float64    `json:"probability"`
	Confidence  Confidence `json:"confidence"`
	LowerBound  float64    `json:"lower_bound"`
	UpperBound  float64    `json:"upper_bound"`
}

// AccuracyStats aggregates prediction hit rates over a trailing window.
// The decision boundaries match the shipped model's operating points.
type AccuracyStats struct {
	Total          int     `json:"total"`
	CorrectOver25  int     `json:"correct_over25"`
	CorrectBTTS    int     `json:"correct_btts"`
	AccuracyOver25 float64 `json:"accuracy_over25"`
	AccuracyBTTS   float64 `json:"accuracy_btts"`
	WindowDays     int     `json:"window_days"`
}

// ScanStatus tracks one scan cycle in the scan log.
type ScanStatus string

const (
	ScanRunning  ScanStatus = "running"
	ScanComplete ScanStatus = "complete"
	ScanFailed   ScanStatus = "failed"
)

// ScanEntry is one row of the scan-cycle log.
type ScanEntry struct {
	ID              string     `json:"id"`
	Status          ScanStatus `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	FixturesSeen    int        `json:"fixtures_seen"`
	PredictionsMade int        `json:"predictions_made"`
	Errors          int        `json:"errors"`
	Error           string     `json:"error,omitempty"`
}
