package ensemble

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"

	"github.com/rotisserie/eris"

	"github.com/matchday-labs/goalscan/internal/model"
)

// ErrArtifactNotFound reports a missing model file. Callers treat this as
// fatal at startup rather than retrying.
var ErrArtifactNotFound = eris.New("ensemble: model artifact not found")

// Artifact is the JSON export produced by the offline training pipeline.
// All parameters are expressed in the canonical feature order.
type Artifact struct {
	FeatureNames []string    `json:"feature_names"`
	Scaler       Scaler      `json:"scaler"`
	Weights      Weights     `json:"weights"`
	Linear       Linear      `json:"linear"`
	Forest       Forest      `json:"forest"`
	Boost        Boost       `json:"boost"`
	Calibration  Calibration `json:"calibration"`
}

// Scaler holds per-feature standardization parameters.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Weights are the soft-voting member weights. They are normalized at load
// time so only their ratios matter.
type Weights struct {
	Linear float64 `json:"linear"`
	Forest float64 `json:"forest"`
	Boost  float64 `json:"boost"`
}

// Linear is a logistic regression over the scaled vector.
type Linear struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// Forest is a bagged tree ensemble whose leaves carry positive-class
// probabilities; the member probability is the mean over trees.
type Forest struct {
	Trees []Tree `json:"trees"`
}

// Boost is an additive tree ensemble whose leaves carry margins; the member
// probability is sigmoid(bias + sum of leaf margins).
type Boost struct {
	Bias  float64 `json:"bias"`
	Trees []Tree `json:"trees"`
}

// Calibration holds the Platt parameters applied to the vote:
// p' = 1/(1+exp(a*logit(p)+b)). a=-1, b=0 leaves the vote unchanged.
type Calibration struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Tree is a binary decision tree flattened into a node slice. Node 0 is the
// root; children always appear after their parent.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is one split or leaf. Feature -1 marks a leaf, whose Value is either
// a probability (forest) or a margin (boost).
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// eval walks the tree for one scaled vector. Split rule is x <= threshold
// goes left, matching the trainer's export.
func (t Tree) eval(scaled []float64) float64 {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := t.Nodes[i]
		if scaled[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

func (t Tree) validate(leafLow, leafHigh float64) error {
	if len(t.Nodes) == 0 {
		return eris.New("ensemble: tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Feature >= model.NumFeatures {
			return eris.Errorf("ensemble: node %d splits on feature %d, want < %d", i, n.Feature, model.NumFeatures)
		}
		if n.Feature >= 0 {
			if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
				return eris.Errorf("ensemble: node %d has invalid children %d/%d", i, n.Left, n.Right)
			}
			if !isFinite(n.Threshold) {
				return eris.Errorf("ensemble: node %d threshold is not finite", i)
			}
			continue
		}
		if !isFinite(n.Value) || n.Value < leafLow || n.Value > leafHigh {
			return eris.Errorf("ensemble: node %d leaf value %v out of range [%v, %v]", i, n.Value, leafLow, leafHigh)
		}
	}
	return nil
}

// Load reads and validates a model artifact. A missing file wraps
// ErrArtifactNotFound; any other failure means the artifact is malformed.
func Load(path string) (*Ensemble, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrArtifactNotFound, "ensemble: %s", path)
		}
		return nil, eris.Wrapf(err, "ensemble: read artifact %s", path)
	}

	var art Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, eris.Wrapf(err, "ensemble: parse artifact %s", path)
	}
	return New(art)
}

// New validates an artifact and returns a ready ensemble.
func New(art Artifact) (*Ensemble, error) {
	if err := art.validate(); err != nil {
		return nil, err
	}

	sum := art.Weights.Linear + art.Weights.Forest + art.Weights.Boost
	return &Ensemble{
		art: art,
		weights: Weights{
			Linear: art.Weights.Linear / sum,
			Forest: art.Weights.Forest / sum,
			Boost:  art.Weights.Boost / sum,
		},
	}, nil
}

func (a Artifact) validate() error {
	if len(a.FeatureNames) != model.NumFeatures {
		return eris.Errorf("ensemble: artifact has %d feature names, want %d", len(a.FeatureNames), model.NumFeatures)
	}
	for i, name := range a.FeatureNames {
		if name != model.FeatureNames[i] {
			return eris.Errorf("ensemble: feature %d is %q, want %q", i, name, model.FeatureNames[i])
		}
	}

	if len(a.Scaler.Mean) != model.NumFeatures || len(a.Scaler.Scale) != model.NumFeatures {
		return eris.Errorf("ensemble: scaler has %d/%d entries, want %d", len(a.Scaler.Mean), len(a.Scaler.Scale), model.NumFeatures)
	}
	for i := range a.Scaler.Mean {
		if !isFinite(a.Scaler.Mean[i]) || !isFinite(a.Scaler.Scale[i]) || a.Scaler.Scale[i] <= 0 {
			return eris.Errorf("ensemble: scaler entry %d is invalid", i)
		}
	}

	if len(a.Linear.Coef) != model.NumFeatures {
		return eris.Errorf("ensemble: linear member has %d coefficients, want %d", len(a.Linear.Coef), model.NumFeatures)
	}
	for i, c := range a.Linear.Coef {
		if !isFinite(c) {
			return eris.Errorf("ensemble: linear coefficient %d is not finite", i)
		}
	}
	if !isFinite(a.Linear.Intercept) {
		return eris.New("ensemble: linear intercept is not finite")
	}

	if a.Weights.Linear < 0 || a.Weights.Forest < 0 || a.Weights.Boost < 0 {
		return eris.New("ensemble: member weights must be non-negative")
	}
	if a.Weights.Linear+a.Weights.Forest+a.Weights.Boost <= 0 {
		return eris.New("ensemble: member weights sum to zero")
	}

	if len(a.Forest.Trees) == 0 {
		return eris.New("ensemble: forest has no trees")
	}
	for i, tree := range a.Forest.Trees {
		if err := tree.validate(0, 1); err != nil {
			return eris.Wrapf(err, "ensemble: forest tree %d", i)
		}
	}

	if len(a.Boost.Trees) == 0 {
		return eris.New("ensemble: boost has no trees")
	}
	if !isFinite(a.Boost.Bias) {
		return eris.New("ensemble: boost bias is not finite")
	}
	for i, tree := range a.Boost.Trees {
		if err := tree.validate(math.Inf(-1), math.Inf(1)); err != nil {
			return eris.Wrapf(err, "ensemble: boost tree %d", i)
		}
	}

	if !isFinite(a.Calibration.A) || !isFinite(a.Calibration.B) {
		return eris.New("ensemble: calibration parameters are not finite")
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
