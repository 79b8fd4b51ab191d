package verdict

import "testing"

func TestDerive(t *testing.T) {
	cases := []struct {
		name       string
		score      float64
		label      Label
		confidence float64
		display    string
	}{
		{name: "clearly real", score: 0.82, label: LabelReal, confidence: 82, display: DisplayPositive},
		{name: "threshold is real", score: 0.5, label: LabelReal, confidence: 50, display: DisplayPositive},
		{name: "just below threshold", score: 0.49999, label: LabelFake, confidence: 50, display: DisplayNegative},
		{name: "clearly fake", score: 0.1234, label: LabelFake, confidence: 12.34, display: DisplayNegative},
		{name: "rounds to two decimals", score: 0.987654, label: LabelReal, confidence: 98.77, display: DisplayPositive},
		{name: "zero", score: 0, label: LabelFake, confidence: 0, display: DisplayNegative},
		{name: "one", score: 1, label: LabelReal, confidence: 100, display: DisplayPositive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Derive(tc.score)
			if v.Label != tc.label {
				t.Fatalf("expected label %s, got %s", tc.label, v.Label)
			}
			if v.ConfidencePercent != tc.confidence {
				t.Fatalf("expected confidence %v, got %v", tc.confidence, v.ConfidencePercent)
			}
			if v.Display != tc.display {
				t.Fatalf("expected display %s, got %s", tc.display, v.Display)
			}
		})
	}
}

func TestDeriveFromFloat32Score(t *testing.T) {
	v := Derive(float64(float32(0.82)))
	if v.ConfidencePercent != 82 {
		t.Fatalf("expected 82, got %v", v.ConfidencePercent)
	}
}

func TestErrored(t *testing.T) {
	v := Errored()
	if v.Label != LabelError || v.ConfidencePercent != 0 || v.Display != DisplayNeutral {
		t.Fatalf("unexpected error verdict: %+v", v)
	}
	if v.Label.Persistable() {
		t.Fatal("error verdicts must not be persistable")
	}
	if !LabelReal.Persistable() || !LabelFake.Persistable() {
		t.Fatal("real and fake verdicts must be persistable")
	}
}
