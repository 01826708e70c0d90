// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scorer

// Sample is one labeled (features, ground truth) pair for offline evaluation.
type Sample struct {
	Features Features `json:"features"`
	Label    bool     `json:"label"`
}

// ConfusionMatrix accumulates binary classification outcomes.
type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

func (c *ConfusionMatrix) add(predicted, actual bool) {
	switch {
	case predicted && actual:
		c.TP++
	case predicted && !actual:
		c.FP++
	case !predicted && !actual:
		c.TN++
	default:
		c.FN++
	}
}

func (c ConfusionMatrix) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

func (c ConfusionMatrix) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

func (c ConfusionMatrix) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (c ConfusionMatrix) Accuracy() float64 {
	total := c.TP + c.FP + c.TN + c.FN
	if total == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(total)
}

// Evaluation compares decision strategies over one labeled dataset. This is
// how threshold and ensemble-weight values are tuned before an artifact
// ships; it never runs in the search hot path.
type Evaluation struct {
	Heuristic         ConfusionMatrix `json:"heuristic"`
	HeuristicAndModel ConfusionMatrix `json:"heuristicAndModel"`
	ModelOnly         ConfusionMatrix `json:"modelOnly"`
	Triage            ConfusionMatrix `json:"triage"`
}

// Evaluate scores every sample under four strategies: the raw heuristic gate,
// heuristic AND model, model alone, and the looser triage threshold.
func Evaluate(model *Model, heuristicFloor float64, samples []Sample) Evaluation {
	var ev Evaluation

	for _, s := range samples {
		heuristicPass := s.Features.Heuristic >= heuristicFloor
		d := model.Decide(s.Features)

		ev.Heuristic.add(heuristicPass, s.Label)
		ev.HeuristicAndModel.add(heuristicPass && d.Accept, s.Label)
		ev.ModelOnly.add(d.Accept, s.Label)
		ev.Triage.add(heuristicPass && d.Triage, s.Label)
	}
	return ev
}
