package sim

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// BatchResult is the summary of one fixed-length time batch.
type BatchResult struct {
	Index       int
	Start       float64
	End         float64
	Completions int64

	MeanResponseTime float64
	StdResponseTime  float64
	MeanPopulation   float64
	StdPopulation    float64
	Throughput       float64
	Utilization      float64
}

// BatchMeansWindow slices the post-warm-up horizon into contiguous
// fixed-length time batches and summarizes each with a private estimator
// set, independent from the long-run StatsCollector. Batch boundaries are
// exact: when an event crosses t_next the current batch is closed at
// t_next, not at the event time, so all batches have identical length.
//
// A partial batch at the end of the run is discarded, as is everything
// after the maxBatches-th batch; batch-means confidence intervals assume
// equal-length batches.
type BatchMeansWindow struct {
	length     float64
	maxBatches int

	active bool
	full   bool
	tNext  float64

	rt   *ResponseTimeEstimator
	pop  *PopulationEstimator
	busy *BusyTimeEstimator
	comp *CompletionsEstimator

	batches []BatchResult
}

// NewBatchMeansWindow subscribes the boundary check and the private
// estimator set. length <= 0 disables batching entirely. The boundary check
// is subscribed before the estimators so a batch closes at its exact
// boundary before the crossing event is folded in.
func NewBatchMeansWindow(s *NextEventScheduler, exits *ExitMap, length float64, maxBatches int) *BatchMeansWindow {
	w := &BatchMeansWindow{length: length, maxBatches: maxBatches}
	if length <= 0 {
		return w
	}
	s.Subscribe(Arrival, w.maybeRotate)
	s.Subscribe(Departure, w.maybeRotate)
	w.rt = NewResponseTimeEstimator(s, exits)
	w.pop = NewPopulationEstimator(s, exits)
	w.busy = NewBusyTimeEstimator(s)
	w.comp = NewCompletionsEstimator(s, exits)
	return w
}

// Enabled reports whether batching is configured.
func (w *BatchMeansWindow) Enabled() bool { return w.length > 0 }

// StartAt opens the first batch at t. Called at warm-up completion.
func (w *BatchMeansWindow) StartAt(t float64) {
	if !w.Enabled() {
		return
	}
	w.active = true
	w.tNext = t + w.length
	w.rt.StartCollecting()
	w.pop.StartCollecting(t)
	w.busy.StartCollecting(t)
	w.comp.StartCollecting()
}

func (w *BatchMeansWindow) maybeRotate(e *Event, s *NextEventScheduler) {
	// an idle stretch can span several boundaries
	for w.active && e.Time >= w.tNext {
		w.closeBatch(w.tNext)
	}
}

func (w *BatchMeansWindow) closeBatch(t float64) {
	w.pop.FinalizeAt(t)
	w.busy.FinalizeBusy(t)
	b := BatchResult{
		Index:            len(w.batches),
		Start:            t - w.length,
		End:              t,
		Completions:      w.comp.CountSinceStart(),
		MeanResponseTime: w.rt.Welford().Mean(),
		StdResponseTime:  w.rt.Welford().Stddev(),
		MeanPopulation:   w.pop.Mean(),
		StdPopulation:    w.pop.Std(),
	}
	b.Throughput = float64(b.Completions) / w.length
	b.Utilization = w.busy.BusyTime() / w.length
	w.batches = append(w.batches, b)

	if w.maxBatches > 0 && len(w.batches) >= w.maxBatches {
		w.full = true
		w.active = false
		return
	}
	w.tNext = t + w.length
	w.rt.StartCollecting()
	w.pop.StartCollecting(t)
	w.busy.StartCollecting(t)
	w.comp.StartCollecting()
}

// NotifyForcedExit mirrors the StatsCollector bridge for the private
// estimator set. The population estimator tracks membership from
// construction, so the bridge applies even outside an open batch.
func (w *BatchMeansWindow) NotifyForcedExit(jobID int, now float64) {
	if !w.Enabled() {
		return
	}
	w.rt.NotifyExit(jobID, now)
	w.pop.NotifyExit(jobID, now)
	if w.active {
		w.comp.NotifyExit()
	}
}

// NotifyDrop mirrors StatsCollector.NotifyDrop: the abandoned job leaves
// the private population books without contributing a sample or a
// completion.
func (w *BatchMeansWindow) NotifyDrop(jobID int, now float64) {
	if !w.Enabled() {
		return
	}
	w.rt.Discard(jobID)
	w.pop.NotifyExit(jobID, now)
}

// Batches returns the closed batches. The in-progress partial batch is
// never included.
func (w *BatchMeansWindow) Batches() []BatchResult { return w.batches }

// Full reports whether the maxBatches cap was reached.
func (w *BatchMeansWindow) Full() bool { return w.full }

// BatchSummary aggregates the closed batches into point estimates with
// Student-t 95% confidence half-widths. The response-time grand mean is
// additionally reported weighted by batch completions, which is the
// estimator consistent with a per-job average.
type BatchSummary struct {
	Batches int

	MeanResponseTime     float64
	StdResponseTime      float64
	SEResponseTime       float64
	CIResponseTime       float64
	WeightedResponseTime float64

	MeanThroughput float64
	CIThroughput   float64

	MeanPopulation float64
	CIPopulation   float64

	MeanUtilization float64
	CIUtilization   float64

	// Little's-law response time, computed per batch as R_b = N_b / X_b
	// and then summarized over the batch series; comparing its mean with
	// MeanResponseTime is the R = N/X consistency cross-check. Batches
	// with zero throughput contribute no term.
	MeanLittleResponseTime float64
	StdLittleResponseTime  float64
	SELittleResponseTime   float64

	// LittleLawPopulation is the aggregate form of the same identity,
	// MeanThroughput * MeanResponseTime, for the N = X*R view.
	LittleLawPopulation float64
}

// Summarize reduces the batch series. Fewer than two batches yields point
// estimates with zero-width intervals.
func Summarize(batches []BatchResult) *BatchSummary {
	n := len(batches)
	if n == 0 {
		return nil
	}
	rts := make([]float64, n)
	xs := make([]float64, n)
	pops := make([]float64, n)
	utils := make([]float64, n)
	var little []float64
	var compSum int64
	var rtWeighted float64
	for i, b := range batches {
		rts[i] = b.MeanResponseTime
		xs[i] = b.Throughput
		pops[i] = b.MeanPopulation
		utils[i] = b.Utilization
		compSum += b.Completions
		rtWeighted += float64(b.Completions) * b.MeanResponseTime
		if b.Throughput > 0 {
			little = append(little, b.MeanPopulation/b.Throughput)
		}
	}

	sum := &BatchSummary{
		Batches:          n,
		MeanResponseTime: stat.Mean(rts, nil),
		MeanThroughput:   stat.Mean(xs, nil),
		MeanPopulation:   stat.Mean(pops, nil),
		MeanUtilization:  stat.Mean(utils, nil),
	}
	if compSum > 0 {
		sum.WeightedResponseTime = rtWeighted / float64(compSum)
	}
	sum.LittleLawPopulation = sum.MeanThroughput * sum.MeanResponseTime
	if len(little) > 0 {
		sum.MeanLittleResponseTime = stat.Mean(little, nil)
		if len(little) >= 2 {
			sum.StdLittleResponseTime = stat.StdDev(little, nil)
			sum.SELittleResponseTime = sum.StdLittleResponseTime / math.Sqrt(float64(len(little)))
		}
	}

	if n >= 2 {
		tq := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(0.975)
		half := func(vals []float64) (sd, se, ci float64) {
			sd = stat.StdDev(vals, nil)
			se = sd / math.Sqrt(float64(n))
			return sd, se, tq * se
		}
		var se float64
		sum.StdResponseTime, se, sum.CIResponseTime = half(rts)
		sum.SEResponseTime = se
		_, _, sum.CIThroughput = half(xs)
		_, _, sum.CIPopulation = half(pops)
		_, _, sum.CIUtilization = half(utils)
	}
	return sum
}
