package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/matchday-labs/goalscan/internal/model"
)

func TestFormatScansList(t *testing.T) {
	started := time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)
	scans := []model.ScanEntry{
		{
			ID:              "0b7a42f9-1c3d-4e5f-8a9b-0c1d2e3f4a5b",
			Status:          model.ScanComplete,
			StartedAt:       started,
			CompletedAt:     &completed,
			FixturesSeen:    14,
			PredictionsMade: 5,
			Errors:          0,
		},
		{
			ID:        "9e8d7c6b-5a4f-3e2d-1c0b-a9f8e7d6c5b4",
			Status:    model.ScanRunning,
			StartedAt: started.Add(time.Hour),
		},
	}

	var buf bytes.Buffer
	formatScansList(&buf, scans)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "DURATION")
	assert.Contains(t, output, "0b7a42f9")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "2026-08-23 06:00")
	assert.Contains(t, output, "1m30s")
	assert.Contains(t, output, "14")
	assert.Contains(t, output, "9e8d7c6b")
	assert.Contains(t, output, "running")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0b7a42f9", shortID("0b7a42f9-1c3d-4e5f-8a9b-0c1d2e3f4a5b"))
	assert.Equal(t, "nodashes", shortID("nodashes"))
}
