package sim

import (
	"fmt"
	"math"

	"github.com/iti/rngstream"
)

// Inverse distribution functions used to turn uniform variates into
// inter-arrival and service times. Keeping these as pure functions of the
// drawn uniforms makes the consumption of random numbers explicit, which is
// what the determinism contract relies on.

// IDFExponential returns the exponential quantile with the given mean for a
// uniform variate u in (0,1).
func IDFExponential(mean, u float64) float64 {
	return -mean * math.Log(1.0 - u)
}

// IDFUniform returns the Uniform(a,b) quantile for u in (0,1).
func IDFUniform(a, b, u float64) float64 {
	return a + (b-a)*u
}

// IDFHyperExp2SameMean samples a two-phase hyperexponential with overall
// mean `mean` and phase-selection probability p, using the balanced
// parameterization: phase 1 has mean mean/(2p), phase 2 has mean
// mean/(2(1-p)), so the mixture mean equals `mean` for any p in (0,1).
// uPhase selects the phase; u drives the exponential quantile.
func IDFHyperExp2SameMean(mean, p, uPhase, u float64) float64 {
	if uPhase <= p {
		return IDFExponential(mean/(2.0*p), u)
	}
	return IDFExponential(mean/(2.0*(1.0-p)), u)
}

// SampleCoxian draws one Coxian phase-type variate. mu holds the per-phase
// exponential rates; q holds the continuation probabilities q[i] of moving
// from phase i to phase i+1 (len(q) == len(mu)-1, the terminal phase never
// continues). phase draws the Bernoulli continuation decisions and draw the
// exponential stage times, from two separate streams so the number of stage
// draws never shifts the continuation sequence.
func validateCoxian(mu, q []float64) error {
	if len(mu) == 0 {
		return fmt.Errorf("coxian: at least one phase required")
	}
	if len(q) != len(mu)-1 {
		return fmt.Errorf("coxian: got %d continuation probabilities for %d phases, want %d", len(q), len(mu), len(mu)-1)
	}
	for i, r := range mu {
		if r <= 0 {
			return fmt.Errorf("coxian: phase %d rate %v must be > 0", i, r)
		}
	}
	for i, p := range q {
		if p < 0 || p > 1 {
			return fmt.Errorf("coxian: continuation probability %v at phase %d outside [0,1]", p, i)
		}
	}
	return nil
}

func SampleCoxian(mu, q []float64, phase, draw *rngstream.RngStream) float64 {
	total := 0.0
	for i := range mu {
		total += IDFExponential(1.0/mu[i], draw.RandU01())
		if i == len(mu)-1 {
			break
		}
		if phase.RandU01() > q[i] {
			break
		}
	}
	return total
}
