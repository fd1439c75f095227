package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday-labs/goalscan/internal/config"
	"github.com/matchday-labs/goalscan/internal/model"
)

func enabledConfig() config.TelegramConfig {
	return config.TelegramConfig{
		Enabled:   true,
		Token:     "bot-token",
		ChatID:    "chat-42",
		MinOver25: 0.70,
	}
}

func alertPrediction(over25 float64) *model.Prediction {
	return &model.Prediction{
		FixtureID:        537886,
		HomeTeam:         "Arsenal",
		AwayTeam:         "Chelsea",
		League:           "Premier League",
		Kickoff:          time.Date(2026, 8, 24, 19, 30, 0, 0, time.UTC),
		Over25Prob:       over25,
		Over25Confidence: model.ConfidenceFor(over25),
		BTTSProb:         0.61,
	}
}

func newTestTelegram(t *testing.T, cfg config.TelegramConfig, handler http.HandlerFunc) *Telegram {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	n := NewTelegram(cfg)
	tg, ok := n.(*Telegram)
	require.True(t, ok, "expected an active Telegram notifier")
	tg.baseURL = ts.URL
	return tg
}

func TestNewTelegram_DisabledReturnsNoop(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	_, ok := NewTelegram(cfg).(Noop)
	assert.True(t, ok)
}

func TestNewTelegram_MissingCredentialsReturnsNoop(t *testing.T) {
	cfg := enabledConfig()
	cfg.Token = ""
	_, ok := NewTelegram(cfg).(Noop)
	assert.True(t, ok)

	cfg = enabledConfig()
	cfg.ChatID = ""
	_, ok = NewTelegram(cfg).(Noop)
	assert.True(t, ok)
}

func TestTelegram_SendsAboveGate(t *testing.T) {
	var received atomic.Int32
	tg := newTestTelegram(t, enabledConfig(), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "chat-42", req.ChatID)
		assert.Equal(t, "HTML", req.ParseMode)
		assert.Contains(t, req.Text, "Arsenal vs Chelsea")
		assert.Contains(t, req.Text, "Premier League")
		assert.Contains(t, req.Text, "82.0%")
		assert.Contains(t, req.Text, "High")

		received.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	tg.NotifyPrediction(context.Background(), alertPrediction(0.82))
	assert.Equal(t, int32(1), received.Load())
}

func TestTelegram_SkipsBelowGate(t *testing.T) {
	var received atomic.Int32
	tg := newTestTelegram(t, enabledConfig(), func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	tg.NotifyPrediction(context.Background(), alertPrediction(0.55))
	assert.Equal(t, int32(0), received.Load())
}

func TestTelegram_GateDefaultsWhenUnset(t *testing.T) {
	cfg := enabledConfig()
	cfg.MinOver25 = 0

	var received atomic.Int32
	tg := newTestTelegram(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	// 0.69 sits below the 0.70 fallback gate, 0.71 above it.
	tg.NotifyPrediction(context.Background(), alertPrediction(0.69))
	assert.Equal(t, int32(0), received.Load())

	tg.NotifyPrediction(context.Background(), alertPrediction(0.71))
	assert.Equal(t, int32(1), received.Load())
}

func TestTelegram_DeliveryFailureIsSwallowed(t *testing.T) {
	var received atomic.Int32
	tg := newTestTelegram(t, enabledConfig(), func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	// Must not panic or surface the failure.
	tg.NotifyPrediction(context.Background(), alertPrediction(0.82))
	assert.Equal(t, int32(1), received.Load())
}

func TestTelegram_EscapesMarkup(t *testing.T) {
	tg := newTestTelegram(t, enabledConfig(), func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Text, "R&amp;B &lt;United&gt;")
		w.WriteHeader(http.StatusOK)
	})

	p := alertPrediction(0.82)
	p.HomeTeam = "R&B <United>"
	tg.NotifyPrediction(context.Background(), p)
}

func TestTelegram_NilPrediction(t *testing.T) {
	tg := newTestTelegram(t, enabledConfig(), func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a nil prediction")
	})

	tg.NotifyPrediction(context.Background(), nil)
}

func TestNoop_NotifyPrediction(t *testing.T) {
	t.Parallel()
	Noop{}.NotifyPrediction(context.Background(), alertPrediction(0.99))
}
