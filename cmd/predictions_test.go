package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/matchday-labs/goalscan/internal/model"
)

func TestFormatPredictionsList(t *testing.T) {
	kickoff := time.Date(2026, 8, 24, 19, 45, 0, 0, time.UTC)
	preds := []model.Prediction{
		{
			FixtureID:        537801,
			HomeTeam:         "Arsenal",
			AwayTeam:         "Chelsea",
			League:           "Premier League",
			Kickoff:          kickoff,
			Over25Prob:       0.81,
			Over25Confidence: model.ConfidenceHigh,
			BTTSProb:         0.64,
			Status:           model.PredictionPending,
		},
		{
			FixtureID:        537802,
			HomeTeam:         "Getafe",
			AwayTeam:         "Sevilla",
			League:           "La Liga",
			Kickoff:          kickoff.Add(-48 * time.Hour),
			Over25Prob:       0.71,
			Over25Confidence: model.ConfidenceMedium,
			BTTSProb:         0.58,
			Status:           model.PredictionFinished,
			Outcome:          &model.Outcome{FixtureID: 537802, HomeGoals: 3, AwayGoals: 1},
		},
	}

	var buf bytes.Buffer
	formatPredictionsList(&buf, preds)

	output := buf.String()
	assert.Contains(t, output, "FIXTURE")
	assert.Contains(t, output, "MATCH")
	assert.Contains(t, output, "OVER2.5")
	assert.Contains(t, output, "Arsenal v Chelsea")
	assert.Contains(t, output, "Premier League")
	assert.Contains(t, output, "2026-08-24 19:45")
	assert.Contains(t, output, "0.81")
	assert.Contains(t, output, "High")
	assert.Contains(t, output, "PENDING")
	assert.Contains(t, output, "Getafe v Sevilla")
	assert.Contains(t, output, "3-1")
}

func TestFormatPredictionsList_LongMatchTruncated(t *testing.T) {
	preds := []model.Prediction{
		{
			FixtureID: 1,
			HomeTeam:  "Wolverhampton Wanderers Under 21s",
			AwayTeam:  "Brighton and Hove Albion Under 21s",
			League:    "Premier League 2",
			Kickoff:   time.Date(2026, 8, 24, 19, 0, 0, 0, time.UTC),
			Status:    model.PredictionPending,
		},
	}

	var buf bytes.Buffer
	formatPredictionsList(&buf, preds)

	output := buf.String()
	assert.Contains(t, output, "...")
	assert.NotContains(t, output, "Brighton and Hove Albion Under 21s")
}
