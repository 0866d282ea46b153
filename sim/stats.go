package sim

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// NodeStats is the steady-state summary of one scope (the whole system or a
// single node) over the measurement window.
type NodeStats struct {
	MeanResponseTime float64
	StdResponseTime  float64
	MeanPopulation   float64
	StdPopulation    float64
	Throughput       float64
	Utilization      float64
	Completions      int64
}

// Report is the full output of one run. The driver fills the counters; the
// StatsCollector fills the estimator-derived figures.
type Report struct {
	Seed         int64
	SimTime      float64
	ObservedTime float64

	ExternalArrivals int64
	CompletedJobs    int64
	ForcedExits      int64
	DroppedJobs      int64
	ExitsByNode      map[string]int64

	Overall NodeStats
	PerNode map[string]NodeStats

	// Per-job time-in-node covariance over the tracked nodes, sampled at
	// job exit. Empty when no nodes are tracked.
	TrackedNodes      []string
	TrackedCovariance [][]float64

	Batches      []BatchResult
	BatchSummary *BatchSummary
}

// StatsCollector owns the long-run estimator set: one system-scoped set and
// one set per node, plus the per-job time collector for tracked nodes. It
// must be constructed after the driver subscribes, so that job ids and the
// EXIT projection are in place before any estimator handler runs.
type StatsCollector struct {
	exits   *ExitMap
	names   []string
	tracked []string

	rt   *ResponseTimeEstimator
	pop  *PopulationEstimator
	busy *BusyTimeEstimator
	comp *CompletionsEstimator
	obs  *ObservationTimeEstimator

	rtByNode   map[string]*ResponseTimeEstimator
	popByNode  map[string]*PopulationEstimator
	busyByNode map[string]*BusyTimeEstimator
	compByNode map[string]*CompletionsEstimator

	// per-job samples of total time at each tracked node, aligned by
	// exiting job: samples[i][k] is the time job k spent at tracked[i]
	samples [][]float64

	// forced-exit job whose sums are drained once the node estimators have
	// folded in its final visit; -1 when none is pending
	pendingForced int
	// dropped job whose per-node sums are discarded, not sampled
	pendingDrop int
	collecting  bool
}

// NewStatsCollector builds and subscribes the full estimator set. nodeNames
// must be the network's sorted name list; tracked selects the nodes whose
// per-job times are sampled for the covariance report.
func NewStatsCollector(s *NextEventScheduler, exits *ExitMap, nodeNames, tracked []string) *StatsCollector {
	sc := &StatsCollector{
		exits:      exits,
		names:      append([]string(nil), nodeNames...),
		tracked:    append([]string(nil), tracked...),
		rt:         NewResponseTimeEstimator(s, exits),
		pop:        NewPopulationEstimator(s, exits),
		busy:       NewBusyTimeEstimator(s),
		comp:       NewCompletionsEstimator(s, exits),
		obs:        NewObservationTimeEstimator(s),
		rtByNode:   make(map[string]*ResponseTimeEstimator),
		popByNode:  make(map[string]*PopulationEstimator),
		busyByNode: make(map[string]*BusyTimeEstimator),
		compByNode: make(map[string]*CompletionsEstimator),
		samples:    make([][]float64, len(tracked)),

		pendingForced: -1,
		pendingDrop:   -1,
	}
	sort.Strings(sc.tracked)
	for _, name := range sc.names {
		sc.rtByNode[name] = NewNodeResponseTimeEstimator(s, name)
		sc.popByNode[name] = NewNodePopulationEstimator(s, name)
		sc.busyByNode[name] = NewNodeBusyTimeEstimator(s, name)
		sc.compByNode[name] = NewNodeCompletionsEstimator(s, name)
	}
	if len(sc.tracked) > 0 {
		// subscribed after the node estimators, so the exiting job's last
		// visit is already folded into the per-node sums
		s.Subscribe(Departure, sc.onExitSample)
	}
	return sc
}

func (sc *StatsCollector) onExitSample(e *Event, s *NextEventScheduler) {
	if !sc.collecting {
		return
	}
	if sc.exits.LeadsToExit(e.Server, e.JobClass) {
		sc.drainJob(e.JobID)
		return
	}
	if sc.pendingForced >= 0 && e.JobID == sc.pendingForced {
		sc.drainJob(e.JobID)
		sc.pendingForced = -1
	}
	if sc.pendingDrop >= 0 && e.JobID == sc.pendingDrop {
		for _, node := range sc.tracked {
			sc.rtByNode[node].Discard(e.JobID)
		}
		sc.pendingDrop = -1
	}
}

func (sc *StatsCollector) drainJob(jobID int) {
	for i, node := range sc.tracked {
		sc.samples[i] = append(sc.samples[i], sc.rtByNode[node].TakeAndClear(jobID))
	}
}

// StartMeasurement opens the measurement window on every estimator. Called
// once at warm-up completion, or at t=0 when no warm-up is configured.
func (sc *StatsCollector) StartMeasurement(now float64) {
	sc.collecting = true
	sc.rt.StartCollecting()
	sc.pop.StartCollecting(now)
	sc.busy.StartCollecting(now)
	sc.comp.StartCollecting()
	sc.obs.StartCollecting(now)
	for _, name := range sc.names {
		sc.rtByNode[name].StartCollecting()
		sc.popByNode[name].StartCollecting(now)
		sc.busyByNode[name].StartCollecting(now)
		sc.compByNode[name].StartCollecting()
	}
	for i := range sc.samples {
		sc.samples[i] = sc.samples[i][:0]
	}
}

// NotifyForcedExit accounts for a job removed by the safety hop limit:
// the job's response-time sample is closed and it leaves the system
// population, keeping the estimators conserved.
func (sc *StatsCollector) NotifyForcedExit(jobID int, now float64) {
	sc.rt.NotifyExit(jobID, now)
	sc.pop.NotifyExit(jobID, now)
	sc.comp.NotifyExit()
	if sc.collecting && len(sc.tracked) > 0 {
		sc.pendingForced = jobID
	}
}

// NotifyDrop removes a job the driver abandoned on a recoverable
// configuration gap. Unlike a forced exit it is excluded, not completed:
// the population slot is released at now but no response-time sample and
// no completion are recorded.
func (sc *StatsCollector) NotifyDrop(jobID int, now float64) {
	sc.rt.Discard(jobID)
	sc.pop.NotifyExit(jobID, now)
	if len(sc.tracked) > 0 {
		sc.pendingDrop = jobID
	}
}

// Collect finalizes every estimator at now and assembles the report.
func (sc *StatsCollector) Collect(now float64) *Report {
	t := sc.obs.Elapsed()
	sc.pop.FinalizeAt(now)
	sc.busy.FinalizeBusy(now)

	r := &Report{
		SimTime:      now,
		ObservedTime: t,
		Overall:      sc.scopeStats(sc.rt, sc.pop, sc.busy, sc.comp, t),
		PerNode:      make(map[string]NodeStats, len(sc.names)),
	}
	for _, name := range sc.names {
		sc.popByNode[name].FinalizeAt(now)
		sc.busyByNode[name].FinalizeBusy(now)
		r.PerNode[name] = sc.scopeStats(sc.rtByNode[name], sc.popByNode[name], sc.busyByNode[name], sc.compByNode[name], t)
	}
	if len(sc.tracked) > 0 {
		r.TrackedNodes = append([]string(nil), sc.tracked...)
		r.TrackedCovariance = sc.covariance()
	}
	return r
}

func (sc *StatsCollector) scopeStats(rt *ResponseTimeEstimator, pop *PopulationEstimator, busy *BusyTimeEstimator, comp *CompletionsEstimator, t float64) NodeStats {
	ns := NodeStats{
		MeanResponseTime: rt.Welford().Mean(),
		StdResponseTime:  rt.Welford().Stddev(),
		MeanPopulation:   pop.Mean(),
		StdPopulation:    pop.Std(),
		Completions:      comp.CountSinceStart(),
	}
	if t > 0 {
		ns.Throughput = float64(ns.Completions) / t
		ns.Utilization = busy.BusyTime() / t
	}
	return ns
}

// covariance builds the sample covariance matrix of per-job time-in-node
// over the tracked nodes.
func (sc *StatsCollector) covariance() [][]float64 {
	n := len(sc.tracked)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			if len(sc.samples[i]) < 2 {
				continue
			}
			if i == j {
				m[i][j] = stat.Variance(sc.samples[i], nil)
			} else {
				m[i][j] = stat.Covariance(sc.samples[i], sc.samples[j], nil)
			}
		}
	}
	return m
}
