// Package verdict maps raw classifier scores to user-facing outcomes.
package verdict

import "math"

// Label is the discrete classification outcome.
type Label string

const (
	LabelReal  Label = "REAL"
	LabelFake  Label = "FAKE"
	LabelError Label = "ERROR"
)

// Display attributes used by the rendering layer.
const (
	DisplayPositive = "positive"
	DisplayNegative = "negative"
	DisplayNeutral  = "neutral"
)

// Threshold is the minimum score judged authentic.
const Threshold = 0.5

// Verdict is a label plus its confidence percentage and display attribute.
type Verdict struct {
	Label             Label   `json:"label"`
	ConfidencePercent float64 `json:"confidence_percent"`
	Display           string  `json:"display"`
}

// Derive thresholds score at 0.5 and expresses it as a percentage rounded to two decimals.
func Derive(score float64) Verdict {
	v := Verdict{ConfidencePercent: ConfidencePercent(score)}
	if score >= Threshold {
		v.Label = LabelReal
		v.Display = DisplayPositive
	} else {
		v.Label = LabelFake
		v.Display = DisplayNegative
	}
	return v
}

// Errored is substituted when preprocessing or inference fails.
func Errored() Verdict {
	return Verdict{Label: LabelError, ConfidencePercent: 0, Display: DisplayNeutral}
}

// ConfidencePercent returns round(score*100, 2).
func ConfidencePercent(score float64) float64 {
	return math.Round(score*100*100) / 100
}

// Persistable reports whether records may carry the label.
func (l Label) Persistable() bool {
	return l == LabelReal || l == LabelFake
}
