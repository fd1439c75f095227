// Package scoring turns model output into graded scoring results and holds
// the closed-form both-teams-score estimate. The engine never performs I/O;
// model loading failures surface at construction time in the caller.
package scoring

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/matchday-labs/goalscan/internal/model"
)

// ErrModelNotLoaded reports an engine constructed without a model. Scoring
// is impossible until a model artifact is available.
var ErrModelNotLoaded = eris.New("scoring: model not loaded")

// Model is the only contract the engine needs from an implementation: a
// probability for a full feature vector in canonical order.
type Model interface {
	Probability(features []float64) (float64, error)
}

// Config tunes the derived outputs, not the model itself.
type Config struct {
	// IntervalMargin is the half-width of the reported probability interval.
	IntervalMargin float64

	// BTTSDampening scales the both-teams-score estimate down when either
	// side's expected goals fall below BTTSDampenBelow.
	BTTSDampening   float64
	BTTSDampenBelow float64
}

// DefaultConfig returns the shipped tuning.
func DefaultConfig() Config {
	return Config{
		IntervalMargin:  0.08,
		BTTSDampening:   0.92,
		BTTSDampenBelow: 1.0,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.IntervalMargin <= 0 {
		c.IntervalMargin = def.IntervalMargin
	}
	if c.BTTSDampening <= 0 {
		c.BTTSDampening = def.BTTSDampening
	}
	if c.BTTSDampenBelow <= 0 {
		c.BTTSDampenBelow = def.BTTSDampenBelow
	}
	return c
}

// Engine is safe for concurrent use once constructed.
type Engine struct {
	model Model
	cfg   Config
}

// NewEngine wraps a model. A nil model is allowed so callers can defer the
// artifact check; every scoring call then fails with ErrModelNotLoaded.
func NewEngine(m Model, cfg Config) *Engine {
	return &Engine{model: m, cfg: cfg.withDefaults()}
}

// ScoreThresholdEvent scores the over-goal-line event for one fixture:
// model probability, confidence band, and a clamped probability interval.
func (e *Engine) ScoreThresholdEvent(v model.FeatureVector) (model.ScoringResult, error) {
	if e.model == nil {
		return model.ScoringResult{}, ErrModelNotLoaded
	}

	p, err := e.model.Probability(v.Values())
	if err != nil {
		return model.ScoringResult{}, eris.Wrap(err, "scoring: model inference")
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return model.ScoringResult{}, eris.Errorf("scoring: model returned probability %v outside [0,1]", p)
	}

	return model.ScoringResult{
		Probability: p,
		Confidence:  model.ConfidenceFor(p),
		LowerBound:  math.Max(0, p-e.cfg.IntervalMargin),
		UpperBound:  math.Min(1, p+e.cfg.IntervalMargin),
	}, nil
}

// ScoreBothTeamsScore estimates P(both teams score) from the two expected
// goal rates, each optionally stretched by a context multiplier. Low-rate
// fixtures are dampened because independent Poisson scoring overstates them.
func (e *Engine) ScoreBothTeamsScore(lambdaHome, lambdaAway, contextMultiplier float64) float64 {
	if contextMultiplier <= 0 {
		contextMultiplier = 1
	}
	lambdaHome = math.Max(lambdaHome, 0)
	lambdaAway = math.Max(lambdaAway, 0)

	p := (1 - math.Exp(-lambdaHome*contextMultiplier)) * (1 - math.Exp(-lambdaAway*contextMultiplier))
	if lambdaHome < e.cfg.BTTSDampenBelow || lambdaAway < e.cfg.BTTSDampenBelow {
		p *= e.cfg.BTTSDampening
	}
	return p
}
