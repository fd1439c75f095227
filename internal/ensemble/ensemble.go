// Package ensemble implements inference for the calibrated voting model
// exported by the offline training pipeline. An Ensemble is immutable after
// construction and safe for concurrent use.
package ensemble

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/matchday-labs/goalscan/internal/model"
)

// probEpsilon keeps the vote away from exactly 0 or 1 so the calibration
// logit stays finite.
const probEpsilon = 1e-9

// Ensemble scores a feature vector with three members and blends them by
// normalized soft-vote weights, then applies Platt calibration.
type Ensemble struct {
	art     Artifact
	weights Weights
}

// Probability returns the calibrated probability that the fixture clears the
// goal threshold. The input must be a full vector in canonical order.
func (e *Ensemble) Probability(features []float64) (float64, error) {
	if len(features) != model.NumFeatures {
		return 0, eris.Errorf("ensemble: got %d features, want %d", len(features), model.NumFeatures)
	}
	for i, f := range features {
		if !isFinite(f) {
			return 0, eris.Errorf("ensemble: feature %q is not finite", model.FeatureNames[i])
		}
	}

	scaled := make([]float64, len(features))
	for i, f := range features {
		scaled[i] = (f - e.art.Scaler.Mean[i]) / e.art.Scaler.Scale[i]
	}

	vote := e.weights.Linear*e.linearProb(scaled) +
		e.weights.Forest*e.forestProb(scaled) +
		e.weights.Boost*e.boostProb(scaled)

	return e.calibrate(vote), nil
}

func (e *Ensemble) linearProb(scaled []float64) float64 {
	z := e.art.Linear.Intercept
	for i, c := range e.art.Linear.Coef {
		z += c * scaled[i]
	}
	return sigmoid(z)
}

func (e *Ensemble) forestProb(scaled []float64) float64 {
	var sum float64
	for _, tree := range e.art.Forest.Trees {
		sum += tree.eval(scaled)
	}
	return sum / float64(len(e.art.Forest.Trees))
}

func (e *Ensemble) boostProb(scaled []float64) float64 {
	margin := e.art.Boost.Bias
	for _, tree := range e.art.Boost.Trees {
		margin += tree.eval(scaled)
	}
	return sigmoid(margin)
}

// calibrate maps the raw vote through the fitted sigmoid. With a=-1, b=0 the
// vote passes through unchanged.
func (e *Ensemble) calibrate(p float64) float64 {
	p = math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
	logit := math.Log(p / (1 - p))
	return 1 / (1 + math.Exp(e.art.Calibration.A*logit+e.art.Calibration.B))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
