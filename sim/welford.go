package sim

import "math"

// WelfordEstimator computes running mean and variance with Welford's
// incremental update, which avoids the catastrophic cancellation of the
// naive sum-of-squares formula over long streams.
type WelfordEstimator struct {
	n    int64
	mean float64
	m2   float64
	min  float64
	max  float64
}

// Add folds one sample into the accumulators.
func (w *WelfordEstimator) Add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
	if w.n == 1 {
		w.min, w.max = x, x
		return
	}
	if x < w.min {
		w.min = x
	}
	if x > w.max {
		w.max = x
	}
}

// Count returns the number of samples seen.
func (w *WelfordEstimator) Count() int64 { return w.n }

// Mean returns the running mean, 0 before the first sample.
func (w *WelfordEstimator) Mean() float64 { return w.mean }

// Variance returns the sample variance (n-1 denominator), 0 when n < 2.
func (w *WelfordEstimator) Variance() float64 {
	if w.n < 2 {
		return 0
	}
	return w.m2 / float64(w.n-1)
}

// Stddev returns the sample standard deviation, 0 when n < 2.
func (w *WelfordEstimator) Stddev() float64 { return math.Sqrt(w.Variance()) }

// Min returns the smallest sample, 0 before the first sample.
func (w *WelfordEstimator) Min() float64 { return w.min }

// Max returns the largest sample, 0 before the first sample.
func (w *WelfordEstimator) Max() float64 { return w.max }

// Reset clears all accumulators.
func (w *WelfordEstimator) Reset() { *w = WelfordEstimator{} }
