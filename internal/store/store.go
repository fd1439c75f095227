package store

import (
	"context"

	"github.com/matchday-labs/goalscan/internal/model"
)

// Decision boundaries the shipped model was tuned against; accuracy counts a
// prediction correct when it landed on the same side as the label.
const (
	over25DecisionBoundary = 0.65
	bttsDecisionBoundary   = 0.60
)

// PredictionFilter specifies criteria for listing predictions.
type PredictionFilter struct {
	League        string                 `json:"league,omitempty"`
	Status        model.PredictionStatus `json:"status,omitempty"`
	MinOver25Prob float64                `json:"min_over25_prob,omitempty"`
	MinBTTSProb   float64                `json:"min_btts_prob,omitempty"`
	UpcomingOnly  bool                   `json:"upcoming_only,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
	Offset        int                    `json:"offset,omitempty"`
}

// ScanResult carries the counters of a finished scan cycle into the log.
type ScanResult struct {
	FixturesSeen    int `json:"fixtures_seen"`
	PredictionsMade int `json:"predictions_made"`
	Errors          int `json:"errors"`
}

// ArchiveWriter persists historical match results in bulk. Backends implement
// it alongside Store; the importer type-asserts for it rather than widening
// the ledger contract.
type ArchiveWriter interface {
	InsertArchiveMatches(ctx context.Context, matches []model.ArchiveMatch) (int64, error)
}

// Store defines the persistence interface for the fixture ledger.
type Store interface {
	// Predictions
	Exists(ctx context.Context, fixtureID int64) (bool, error)
	InsertPrediction(ctx context.Context, p model.Prediction) error
	GetPrediction(ctx context.Context, fixtureID int64) (*model.Prediction, error)
	ListPredictions(ctx context.Context, filter PredictionFilter) ([]model.Prediction, error)
	RecordOutcome(ctx context.Context, fixtureID int64, homeGoals, awayGoals int) error
	AccuracyStats(ctx context.Context, windowDays int) (model.AccuracyStats, error)

	// Scan-cycle log
	StartScan(ctx context.Context) (*model.ScanEntry, error)
	CompleteScan(ctx context.Context, scanID string, result ScanResult) error
	FailScan(ctx context.Context, scanID string, errMsg string) error
	ListScans(ctx context.Context, limit int) ([]model.ScanEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
