// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scorer

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
)

// ModelType selects how the final probability is produced.
type ModelType string

const (
	// ModelTypeHeuristic uses only the scaled heuristic score.
	ModelTypeHeuristic ModelType = "heuristic"
	// ModelTypeML uses only the logistic model over extracted features.
	ModelTypeML ModelType = "ml"
	// ModelTypeEnsemble blends heuristic and model by EnsembleWeight.
	ModelTypeEnsemble ModelType = "ensemble"
)

// Model is a serialized decision artifact. Loaded once at process start and
// immutable at runtime; swapping models means shipping a new artifact.
type Model struct {
	Type            ModelType          `json:"type"`
	Threshold       float64            `json:"threshold"`
	TriageThreshold float64            `json:"triageThreshold,omitempty"`
	EnsembleWeight  float64            `json:"ensembleWeight,omitempty"`
	Weights         map[string]float64 `json:"weights"`
	Bias            float64            `json:"bias"`
}

// Decision is the model's verdict for one candidate.
type Decision struct {
	Probability float64
	// Accept means probability cleared the hard threshold.
	Accept bool
	// Triage means probability cleared the looser review threshold. Every
	// accepted candidate is also triaged.
	Triage bool
}

// Load reads a model artifact from path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model artifact")
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse model artifact")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) validate() error {
	switch m.Type {
	case ModelTypeHeuristic, ModelTypeML, ModelTypeEnsemble:
	default:
		return errors.Errorf("unknown model type %q", m.Type)
	}
	if m.Threshold <= 0 || m.Threshold > 1 {
		return errors.Errorf("threshold %v out of range (0,1]", m.Threshold)
	}
	if m.TriageThreshold > m.Threshold {
		return errors.Errorf("triage threshold %v above hard threshold %v", m.TriageThreshold, m.Threshold)
	}
	if m.Type == ModelTypeEnsemble && (m.EnsembleWeight < 0 || m.EnsembleWeight > 1) {
		return errors.Errorf("ensemble weight %v out of range [0,1]", m.EnsembleWeight)
	}
	if m.Type != ModelTypeHeuristic && len(m.Weights) == 0 {
		return errors.New("model has no feature weights")
	}
	return nil
}

// Predict returns the match probability for the given features.
func (m *Model) Predict(f Features) float64 {
	heuristic := clamp01(f.Heuristic / 100)

	switch m.Type {
	case ModelTypeHeuristic:
		return heuristic
	case ModelTypeML:
		return m.logistic(f)
	default:
		w := m.EnsembleWeight
		return w*heuristic + (1-w)*m.logistic(f)
	}
}

// Decide applies the hard and triage thresholds to the prediction.
func (m *Model) Decide(f Features) Decision {
	p := m.Predict(f)

	triage := m.TriageThreshold
	if triage <= 0 {
		triage = m.Threshold
	}

	return Decision{
		Probability: p,
		Accept:      p >= m.Threshold,
		Triage:      p >= triage,
	}
}

func (m *Model) logistic(f Features) float64 {
	z := m.Bias
	for name, weight := range m.Weights {
		z += weight * featureValue(f, name)
	}
	return 1 / (1 + math.Exp(-z))
}

func featureValue(f Features, name string) float64 {
	switch name {
	case "heuristic":
		return clamp01(f.Heuristic / 100)
	case "tokenJaccard":
		return f.TokenJaccard
	case "trigramJaccard":
		return f.TrigramJaccard
	case "lengthRatio":
		return f.LengthRatio
	case "seeders":
		return math.Log2(1 + f.Seeders)
	case "leechers":
		return math.Log2(1 + f.Leechers)
	case "grabs":
		return math.Log2(1 + f.Grabs)
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
