package sim

import (
	"math"
	"testing"
)

func TestIDFExponential_KnownQuantiles(t *testing.T) {
	// median of Exp(mean) is mean*ln(2)
	got := IDFExponential(2.0, 0.5)
	want := 2.0 * math.Ln2
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("median: got %v, want %v", got, want)
	}
	if IDFExponential(1.0, 0) != 0 {
		t.Errorf("u=0 must map to 0, got %v", IDFExponential(1.0, 0))
	}
}

func TestIDFUniform_MapsEndpoints(t *testing.T) {
	if got := IDFUniform(2, 5, 0); got != 2 {
		t.Errorf("u=0: got %v, want 2", got)
	}
	if got := IDFUniform(2, 5, 1); got != 5 {
		t.Errorf("u=1: got %v, want 5", got)
	}
	if got := IDFUniform(2, 5, 0.5); got != 3.5 {
		t.Errorf("u=0.5: got %v, want 3.5", got)
	}
}

func TestIDFHyperExp2SameMean_PreservesMean(t *testing.T) {
	// GIVEN the balanced parameterization, the mixture mean equals the
	// target mean for any p; verify by numerical integration over u
	const mean, p = 1.5, 0.1
	const steps = 200000
	sum := 0.0
	for i := 0; i < steps; i++ {
		u := (float64(i) + 0.5) / steps
		// integrate each phase against its selection weight
		sum += p*IDFExponential(mean/(2*p), u) + (1-p)*IDFExponential(mean/(2*(1-p)), u)
	}
	got := sum / steps
	if math.Abs(got-mean) > 0.01 {
		t.Errorf("mixture mean: got %v, want %v", got, mean)
	}
}

func TestIDFHyperExp2SameMean_PhaseSelection(t *testing.T) {
	// uPhase at the boundary picks phase 1; above it, phase 2
	const mean, p = 1.0, 0.25
	u := 0.5
	phase1 := IDFExponential(mean/(2*p), u)
	phase2 := IDFExponential(mean/(2*(1-p)), u)
	if got := IDFHyperExp2SameMean(mean, p, p, u); got != phase1 {
		t.Errorf("uPhase=p: got %v, want phase-1 value %v", got, phase1)
	}
	if got := IDFHyperExp2SameMean(mean, p, p+1e-9, u); got != phase2 {
		t.Errorf("uPhase>p: got %v, want phase-2 value %v", got, phase2)
	}
}

func TestValidateCoxian_Rejections(t *testing.T) {
	cases := []struct {
		name string
		mu   []float64
		q    []float64
	}{
		{"no phases", nil, nil},
		{"length mismatch", []float64{1, 2}, []float64{}},
		{"zero rate", []float64{0, 1}, []float64{0.5}},
		{"negative rate", []float64{-1}, []float64{}},
		{"probability above one", []float64{1, 2}, []float64{1.5}},
		{"negative probability", []float64{1, 2}, []float64{-0.1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCoxian(tc.mu, tc.q); err == nil {
				t.Error("expected validation error")
			}
		})
	}
	if err := validateCoxian([]float64{1.0}, []float64{}); err != nil {
		t.Errorf("single phase must validate: %v", err)
	}
}

func TestSampleCoxian_SingleGatedPhase_MatchesExponentialMean(t *testing.T) {
	// one phase with rate 2 never continues, so the law is Exp(mean 0.5)
	streams := NewStreams(7)
	phase := streams.Stream("coxian_phase_test")
	draw := streams.Stream("coxian_draw_test")

	const n = 200000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += SampleCoxian([]float64{2.0}, nil, phase, draw)
	}
	got := sum / n
	if math.Abs(got-0.5) > 0.01 {
		t.Errorf("single-phase mean: got %v, want 0.5", got)
	}
}

func TestSampleCoxian_TwoPhases_MeanMatchesClosedForm(t *testing.T) {
	// mean = 1/mu1 + q1/mu2
	streams := NewStreams(11)
	phase := streams.Stream("coxian_phase_test2")
	draw := streams.Stream("coxian_draw_test2")

	mu := []float64{4.0, 2.0}
	q := []float64{0.5}
	want := 1.0/4.0 + 0.5/2.0

	const n = 300000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += SampleCoxian(mu, q, phase, draw)
	}
	got := sum / n
	if math.Abs(got-want) > 0.01 {
		t.Errorf("two-phase mean: got %v, want %v", got, want)
	}
}
