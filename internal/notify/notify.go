// Package notify delivers prediction alerts to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matchday-labs/goalscan/internal/config"
	"github.com/matchday-labs/goalscan/internal/model"
)

// Notifier delivers alerts for newly persisted predictions.
type Notifier interface {
	// NotifyPrediction alerts on a stored prediction when it clears the
	// configured probability gate. Delivery failures are logged, never
	// returned: alerting must not disturb the scan loop.
	NotifyPrediction(ctx context.Context, p *model.Prediction)
}

// Noop is a Notifier that does nothing, used when alerting is disabled.
type Noop struct{}

// NotifyPrediction implements Notifier.
func (Noop) NotifyPrediction(context.Context, *model.Prediction) {}

const telegramAPIBase = "https://api.telegram.org"

// defaultAlertGate is the minimum over-2.5 probability worth alerting on
// when the config does not set one.
const defaultAlertGate = 0.70

// Telegram sends prediction alerts through the Telegram Bot API.
type Telegram struct {
	cfg     config.TelegramConfig
	client  *http.Client
	baseURL string
}

// NewTelegram builds a Telegram notifier. A disabled config, or one missing
// credentials, yields a Noop so callers never need a nil check.
func NewTelegram(cfg config.TelegramConfig) Notifier {
	if !cfg.Enabled || cfg.Token == "" || cfg.ChatID == "" {
		return Noop{}
	}
	if cfg.MinOver25 <= 0 {
		cfg.MinOver25 = defaultAlertGate
	}
	return &Telegram{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: telegramAPIBase,
	}
}

// NotifyPrediction sends an alert for predictions above the probability gate.
func (t *Telegram) NotifyPrediction(ctx context.Context, p *model.Prediction) {
	if p == nil || p.Over25Prob < t.cfg.MinOver25 {
		return
	}

	if err := t.sendMessage(ctx, formatPredictionAlert(p)); err != nil {
		zap.L().Error("notify: telegram delivery failed",
			zap.Int64("fixture_id", p.FixtureID),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("notify: telegram alert sent",
		zap.Int64("fixture_id", p.FixtureID),
		zap.Float64("over25_prob", p.Over25Prob),
	)
}

// formatPredictionAlert renders the HTML message body. Team and league
// names come from an external feed and must be escaped for Telegram's
// HTML parse mode.
func formatPredictionAlert(p *model.Prediction) string {
	return fmt.Sprintf(
		"<b>High value fixture</b>\n\n%s vs %s\n%s\nKickoff %s\n\nOver 2.5: <b>%.1f%%</b>\nBTTS: %.1f%%\nConfidence: %s",
		html.EscapeString(p.HomeTeam),
		html.EscapeString(p.AwayTeam),
		html.EscapeString(p.League),
		p.Kickoff.UTC().Format("2006-01-02 15:04 MST"),
		p.Over25Prob*100,
		p.BTTSProb*100,
		p.Over25Confidence,
	)
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendMessage posts one message to the bot sendMessage endpoint.
func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    t.cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal telegram message")
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: telegram request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: telegram returned status %d", resp.StatusCode)
	}
	return nil
}
