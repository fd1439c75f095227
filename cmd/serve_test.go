package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/monitoring"
	"github.com/matchday-labs/goalscan/internal/store"
)

// stubLedger implements store.Store for router tests, recording the filters
// and limits handlers pass through.
type stubLedger struct {
	predictions []model.Prediction
	scans       []model.ScanEntry
	stats       model.AccuracyStats
	lastFilter  store.PredictionFilter
	statsDays   int
	scansLimit  int
	pingErr     error
	listErr     error
}

func (s *stubLedger) GetPrediction(_ context.Context, fixtureID int64) (*model.Prediction, error) {
	for i := range s.predictions {
		if s.predictions[i].FixtureID == fixtureID {
			return &s.predictions[i], nil
		}
	}
	return nil, nil
}

func (s *stubLedger) ListPredictions(_ context.Context, f store.PredictionFilter) ([]model.Prediction, error) {
	s.lastFilter = f
	return s.predictions, s.listErr
}

func (s *stubLedger) AccuracyStats(_ context.Context, windowDays int) (model.AccuracyStats, error) {
	s.statsDays = windowDays
	return s.stats, nil
}

func (s *stubLedger) ListScans(_ context.Context, limit int) ([]model.ScanEntry, error) {
	s.scansLimit = limit
	return s.scans, nil
}

func (s *stubLedger) Ping(context.Context) error { return s.pingErr }

// Unused store methods to satisfy the interface.
func (s *stubLedger) Exists(context.Context, int64) (bool, error)              { return false, nil }
func (s *stubLedger) InsertPrediction(context.Context, model.Prediction) error { return nil }
func (s *stubLedger) RecordOutcome(context.Context, int64, int, int) error     { return nil }
func (s *stubLedger) StartScan(context.Context) (*model.ScanEntry, error)      { return nil, nil }
func (s *stubLedger) CompleteScan(context.Context, string, store.ScanResult) error {
	return nil
}
func (s *stubLedger) FailScan(context.Context, string, string) error { return nil }
func (s *stubLedger) Migrate(context.Context) error                  { return nil }
func (s *stubLedger) Close() error                                   { return nil }

func serveRequest(t *testing.T, st store.Store, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := buildRouter(st, []string{"*"})
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	rr := serveRequest(t, &stubLedger{}, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_Health_StoreDown(t *testing.T) {
	rr := serveRequest(t, &stubLedger{pingErr: eris.New("connection refused")}, "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "store unavailable")
}

func TestBuildRouter_ListPredictions_MapsQuery(t *testing.T) {
	st := &stubLedger{predictions: []model.Prediction{
		{FixtureID: 7, HomeTeam: "Arsenal", AwayTeam: "Chelsea", Over25Prob: 0.81},
		{FixtureID: 9, HomeTeam: "Getafe", AwayTeam: "Sevilla", Over25Prob: 0.71},
	}}

	rr := serveRequest(t, st,
		"/api/v1/predictions?league=La+Liga&status=pending&min_over25=0.7&min_btts=0.6&upcoming=true&limit=10&offset=5")

	assert.Equal(t, http.StatusOK, rr.Code)

	var preds []model.Prediction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &preds))
	assert.Len(t, preds, 2)

	assert.Equal(t, "La Liga", st.lastFilter.League)
	assert.Equal(t, model.PredictionPending, st.lastFilter.Status)
	assert.InDelta(t, 0.7, st.lastFilter.MinOver25Prob, 0.0001)
	assert.InDelta(t, 0.6, st.lastFilter.MinBTTSProb, 0.0001)
	assert.True(t, st.lastFilter.UpcomingOnly)
	assert.Equal(t, 10, st.lastFilter.Limit)
	assert.Equal(t, 5, st.lastFilter.Offset)
}

func TestBuildRouter_ListPredictions_EmptyIsArray(t *testing.T) {
	rr := serveRequest(t, &stubLedger{}, "/api/v1/predictions")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestBuildRouter_ListPredictions_StoreError(t *testing.T) {
	rr := serveRequest(t, &stubLedger{listErr: eris.New("boom")}, "/api/v1/predictions")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestBuildRouter_GetPrediction(t *testing.T) {
	st := &stubLedger{predictions: []model.Prediction{
		{FixtureID: 7, HomeTeam: "Arsenal", AwayTeam: "Chelsea", Over25Prob: 0.81},
	}}

	rr := serveRequest(t, st, "/api/v1/predictions/7")

	assert.Equal(t, http.StatusOK, rr.Code)

	var pred model.Prediction
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pred))
	assert.Equal(t, int64(7), pred.FixtureID)
	assert.Equal(t, "Arsenal", pred.HomeTeam)
}

func TestBuildRouter_GetPrediction_NotFound(t *testing.T) {
	rr := serveRequest(t, &stubLedger{}, "/api/v1/predictions/999")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "prediction not found")
}

func TestBuildRouter_GetPrediction_BadID(t *testing.T) {
	rr := serveRequest(t, &stubLedger{}, "/api/v1/predictions/notanumber")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid fixture id")
}

func TestBuildRouter_Accuracy(t *testing.T) {
	st := &stubLedger{stats: model.AccuracyStats{
		Total: 20, CorrectOver25: 14, CorrectBTTS: 12,
		AccuracyOver25: 0.70, AccuracyBTTS: 0.60, WindowDays: 14,
	}}

	rr := serveRequest(t, st, "/api/v1/accuracy?days=14")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 14, st.statsDays)

	var stats model.AccuracyStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 20, stats.Total)
	assert.InDelta(t, 0.70, stats.AccuracyOver25, 0.0001)
}

func TestBuildRouter_Accuracy_DefaultWindow(t *testing.T) {
	st := &stubLedger{}
	serveRequest(t, st, "/api/v1/accuracy")

	assert.Equal(t, 30, st.statsDays)
}

func TestBuildRouter_Scans(t *testing.T) {
	st := &stubLedger{scans: []model.ScanEntry{
		{ID: "scan-1", Status: model.ScanComplete, StartedAt: time.Now().UTC()},
	}}

	rr := serveRequest(t, st, "/api/v1/scans?limit=5")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, st.scansLimit)

	var scans []model.ScanEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &scans))
	require.Len(t, scans, 1)
	assert.Equal(t, "scan-1", scans[0].ID)
}

func TestBuildRouter_Metrics(t *testing.T) {
	now := time.Now().UTC()
	st := &stubLedger{
		predictions: []model.Prediction{
			{FixtureID: 1, Status: model.PredictionPending, Kickoff: now.Add(2 * time.Hour)},
		},
		scans: []model.ScanEntry{
			{ID: "scan-1", Status: model.ScanComplete, StartedAt: now.Add(-time.Hour), FixturesSeen: 12},
		},
	}

	rr := serveRequest(t, st, "/api/v1/metrics")

	assert.Equal(t, http.StatusOK, rr.Code)

	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.UpcomingFixtures)
	assert.Equal(t, 1, snap.ScansComplete)
	assert.Equal(t, 12, snap.FixturesSeen)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestBuildRouter_CORSHeader(t *testing.T) {
	router := buildRouter(&stubLedger{}, []string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestResolvePort(t *testing.T) {
	assert.Equal(t, 9000, resolvePort(9000, 8080))
	assert.Equal(t, 8080, resolvePort(0, 8080))
}

func TestFilterFromQuery_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil)
	f := filterFromQuery(req)

	assert.Empty(t, f.League)
	assert.Empty(t, string(f.Status))
	assert.Zero(t, f.MinOver25Prob)
	assert.False(t, f.UpcomingOnly)
	assert.Equal(t, 100, f.Limit)
	assert.Zero(t, f.Offset)
}
