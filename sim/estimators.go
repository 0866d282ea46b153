package sim

import "math"

// The estimators in this file subscribe to the scheduler's ARRIVAL and
// DEPARTURE streams at construction and update incrementally; none of them
// performs I/O. Scope is expressed by composition: the same type serves the
// whole system (node == "") or a single named node, with the membership
// test applied in the handlers.
//
// System-scoped estimators recognize EXIT through an ExitMap projection;
// they also expose NotifyExit bridges so the driver can account for forced
// exits (safety hop limit) that never appear as EXIT-routed departures.

// === Response time ===

// ResponseTimeEstimator measures elapsed time per job with an internal
// Welford accumulator.
//
// System scope: entry is the first observed ARRIVAL with a known id, exit
// is the EXIT departure; internal hops are invisible.
//
// Node scope: one sample per visit (ARRIVAL at the node to DEPARTURE from
// it); additionally the per-job sum of time across all visits to the node
// is accumulated and retrievable once via TakeAndClear, supporting
// cross-tier variance/covariance reconstruction.
type ResponseTimeEstimator struct {
	node       string
	exits      *ExitMap
	entry      map[int]float64
	sumByJob   map[int]float64
	w          WelfordEstimator
	collecting bool
}

// NewResponseTimeEstimator builds the system-scoped (end-to-end) variant.
func NewResponseTimeEstimator(s *NextEventScheduler, exits *ExitMap) *ResponseTimeEstimator {
	r := &ResponseTimeEstimator{
		exits: exits,
		entry: make(map[int]float64),
	}
	s.Subscribe(Arrival, r.onArrival)
	s.Subscribe(Departure, r.onDeparture)
	return r
}

// NewNodeResponseTimeEstimator builds the per-visit variant for one node.
func NewNodeResponseTimeEstimator(s *NextEventScheduler, node string) *ResponseTimeEstimator {
	r := &ResponseTimeEstimator{
		node:     node,
		entry:    make(map[int]float64),
		sumByJob: make(map[int]float64),
	}
	s.Subscribe(Arrival, r.onArrival)
	s.Subscribe(Departure, r.onDeparture)
	return r
}

func (r *ResponseTimeEstimator) onArrival(e *Event, s *NextEventScheduler) {
	if !r.collecting || e.JobID < 0 {
		return
	}
	if r.node == "" {
		if _, seen := r.entry[e.JobID]; !seen {
			r.entry[e.JobID] = s.Now()
		}
		return
	}
	if e.Server == r.node {
		r.entry[e.JobID] = e.Time
	}
}

func (r *ResponseTimeEstimator) onDeparture(e *Event, s *NextEventScheduler) {
	if !r.collecting {
		return
	}
	if r.node == "" {
		if !r.exits.LeadsToExit(e.Server, e.JobClass) {
			return
		}
		if at, ok := r.entry[e.JobID]; ok {
			delete(r.entry, e.JobID)
			r.w.Add(s.Now() - at)
		}
		return
	}
	if e.Server != r.node {
		return
	}
	if t0, ok := r.entry[e.JobID]; ok {
		delete(r.entry, e.JobID)
		dt := e.Time - t0
		r.w.Add(dt)
		r.sumByJob[e.JobID] += dt
	}
}

// StartCollecting opens the measurement window. The node variant drops any
// in-progress visit state; the system variant keeps in-flight entry times
// so jobs alive across the boundary still produce a sample.
func (r *ResponseTimeEstimator) StartCollecting() {
	r.collecting = true
	r.w.Reset()
	if r.node != "" {
		clear(r.entry)
		clear(r.sumByJob)
	}
}

// NotifyExit closes the sample for a job that leaves without an EXIT-routed
// departure (forced exit).
func (r *ResponseTimeEstimator) NotifyExit(jobID int, now float64) {
	if !r.collecting {
		return
	}
	if at, ok := r.entry[jobID]; ok {
		delete(r.entry, jobID)
		r.w.Add(now - at)
	}
}

// Discard forgets a job without producing a sample. Used when the driver
// drops a job on a recoverable configuration gap: the job must leave the
// estimator's books but not enter any metric's denominator.
func (r *ResponseTimeEstimator) Discard(jobID int) {
	delete(r.entry, jobID)
	if r.sumByJob != nil {
		delete(r.sumByJob, jobID)
	}
}

// TakeAndClear returns and clears the accumulated total time the job spent
// at this node across all visits. Node scope only; returns 0 otherwise.
func (r *ResponseTimeEstimator) TakeAndClear(jobID int) float64 {
	v, ok := r.sumByJob[jobID]
	if !ok {
		return 0
	}
	delete(r.sumByJob, jobID)
	return v
}

// Welford exposes the internal accumulator for reporting.
func (r *ResponseTimeEstimator) Welford() *WelfordEstimator { return &r.w }

// === Population ===

// PopulationEstimator maintains the time-weighted population integrals
// ∫N(t)dt and ∫N(t)²dt, updating the areas before every population change
// (N is piecewise constant between events).
//
// System scope uses first-known-id-to-EXIT accounting: a job is counted on
// its first observed arrival with a known id and removed only on its EXIT
// departure, so internal hops never change N(t). Node scope counts the job
// while resident at the node.
type PopulationEstimator struct {
	node      string
	exits     *ExitMap
	pop       int
	startTime float64
	lastTime  float64
	area      float64
	area2     float64
	min, max  int
	inScope   map[int]bool
}

// NewPopulationEstimator builds the system-scoped variant.
func NewPopulationEstimator(s *NextEventScheduler, exits *ExitMap) *PopulationEstimator {
	p := newPopulationEstimator(s, "")
	p.exits = exits
	return p
}

// NewNodePopulationEstimator builds the variant tracking one node.
func NewNodePopulationEstimator(s *NextEventScheduler, node string) *PopulationEstimator {
	return newPopulationEstimator(s, node)
}

func newPopulationEstimator(s *NextEventScheduler, node string) *PopulationEstimator {
	p := &PopulationEstimator{
		node:      node,
		startTime: s.Now(),
		lastTime:  s.Now(),
		inScope:   make(map[int]bool),
	}
	s.Subscribe(Arrival, p.onArrival)
	s.Subscribe(Departure, p.onDeparture)
	return p
}

// tick integrates the areas up to now. Must run before any change to pop.
func (p *PopulationEstimator) tick(now float64) {
	dt := now - p.lastTime
	if dt > 0 {
		n := float64(p.pop)
		p.area += n * dt
		p.area2 += n * n * dt
	}
	p.lastTime = now
}

func (p *PopulationEstimator) onArrival(e *Event, s *NextEventScheduler) {
	p.tick(s.Now())
	if e.JobID < 0 {
		// anonymous arrival: aligned with response time, not counted yet
		return
	}
	if p.node != "" && e.Server != p.node {
		return
	}
	if !p.inScope[e.JobID] {
		p.inScope[e.JobID] = true
		p.pop++
		if p.pop > p.max {
			p.max = p.pop
		}
	}
}

func (p *PopulationEstimator) onDeparture(e *Event, s *NextEventScheduler) {
	p.tick(s.Now())
	if p.node == "" && !p.exits.LeadsToExit(e.Server, e.JobClass) {
		return
	}
	if p.node != "" && e.Server != p.node {
		return
	}
	p.drop(e.JobID)
}

func (p *PopulationEstimator) drop(jobID int) {
	if jobID >= 0 && p.inScope[jobID] {
		delete(p.inScope, jobID)
		p.pop--
		if p.pop < p.min {
			p.min = p.pop
		}
	}
}

// NotifyExit removes a forced-exit job after integrating up to now.
func (p *PopulationEstimator) NotifyExit(jobID int, now float64) {
	p.tick(now)
	p.drop(jobID)
}

// Elapsed returns the observed window length.
func (p *PopulationEstimator) Elapsed() float64 { return p.lastTime - p.startTime }

// Mean returns the time-weighted mean population area/elapsed.
func (p *PopulationEstimator) Mean() float64 {
	t := p.Elapsed()
	if t <= 0 {
		return 0
	}
	return p.area / t
}

// Variance returns the time-weighted variance, clamped at zero.
func (p *PopulationEstimator) Variance() float64 {
	t := p.Elapsed()
	if t <= 0 {
		return 0
	}
	m1 := p.area / t
	v := p.area2/t - m1*m1
	if v < 0 {
		v = 0
	}
	return v
}

// Std returns the time-weighted standard deviation.
func (p *PopulationEstimator) Std() float64 { return math.Sqrt(p.Variance()) }

// Population returns the current population count.
func (p *PopulationEstimator) Population() int { return p.pop }

// Min returns the smallest population observed in the current window.
func (p *PopulationEstimator) Min() int { return p.min }

// Max returns the largest population observed in the current window.
func (p *PopulationEstimator) Max() int { return p.max }

// FinalizeAt closes the integrals at t without touching population state.
// Used at run end and at batch boundaries.
func (p *PopulationEstimator) FinalizeAt(t float64) { p.tick(t) }

// StartCollecting restarts the measurement window at now. Population and
// membership are preserved: a warm-up or batch boundary must not lose
// in-flight jobs.
func (p *PopulationEstimator) StartCollecting(now float64) {
	p.area = 0
	p.area2 = 0
	p.startTime = now
	p.lastTime = now
	p.min = p.pop
	p.max = p.pop
}

// === Busy time ===

// BusyTimeEstimator accumulates the duration of intervals during which the
// tracked scope has nonzero population. The system is busy while any node
// has at least one resident (logical OR of per-node busy flags); the node
// variant tracks one node.
type BusyTimeEstimator struct {
	node      string
	popByNode map[string]int
	busyNodes int
	busy      bool
	last      float64
	total     float64
}

// NewBusyTimeEstimator builds the system-scoped variant.
func NewBusyTimeEstimator(s *NextEventScheduler) *BusyTimeEstimator {
	return newBusyTimeEstimator(s, "")
}

// NewNodeBusyTimeEstimator builds the variant tracking one node.
func NewNodeBusyTimeEstimator(s *NextEventScheduler, node string) *BusyTimeEstimator {
	return newBusyTimeEstimator(s, node)
}

func newBusyTimeEstimator(s *NextEventScheduler, node string) *BusyTimeEstimator {
	b := &BusyTimeEstimator{
		node:      node,
		popByNode: make(map[string]int),
		last:      s.Now(),
	}
	s.Subscribe(Arrival, b.onArrival)
	s.Subscribe(Departure, b.onDeparture)
	return b
}

func (b *BusyTimeEstimator) onArrival(e *Event, s *NextEventScheduler) {
	// an arrival still carrying the external marker was dropped by the
	// driver: no job was admitted and no departure will ever follow
	if e.JobID < 0 {
		return
	}
	if b.node != "" && e.Server != b.node {
		return
	}
	k := b.popByNode[e.Server]
	if k == 0 {
		if b.busyNodes == 0 {
			b.busy = true
			b.last = s.Now()
		}
		b.busyNodes++
	}
	b.popByNode[e.Server] = k + 1
}

func (b *BusyTimeEstimator) onDeparture(e *Event, s *NextEventScheduler) {
	if b.node != "" && e.Server != b.node {
		return
	}
	k := b.popByNode[e.Server]
	if k <= 0 {
		return
	}
	k--
	b.popByNode[e.Server] = k
	if k == 0 {
		b.busyNodes--
		if b.busyNodes == 0 && b.busy {
			b.total += s.Now() - b.last
			b.busy = false
		}
	}
}

// BusyTime returns the accumulated busy duration of the current window.
func (b *BusyTimeEstimator) BusyTime() float64 { return b.total }

// FinalizeBusy closes an open busy interval at t.
func (b *BusyTimeEstimator) FinalizeBusy(t float64) {
	if b.busyNodes > 0 && b.busy {
		b.total += t - b.last
		b.busy = false
	}
}

// StartCollecting resets the accumulator and immediately re-opens an
// interval if the scope is already busy, so a boundary never fakes an idle
// gap.
func (b *BusyTimeEstimator) StartCollecting(now float64) {
	b.total = 0
	b.last = now
	b.busy = b.busyNodes > 0
}

// === Completions ===

// CompletionsEstimator counts departures. System scope counts EXIT
// departures only; node scope counts every departure from the node. Both a
// lifetime total and a baseline-relative count are kept so warm-up and
// batch windows never lose the lifetime figure.
type CompletionsEstimator struct {
	node  string
	exits *ExitMap
	total int64
	base  int64
}

// NewCompletionsEstimator builds the system-scoped (EXIT) counter.
func NewCompletionsEstimator(s *NextEventScheduler, exits *ExitMap) *CompletionsEstimator {
	c := &CompletionsEstimator{exits: exits}
	s.Subscribe(Departure, c.onDeparture)
	return c
}

// NewNodeCompletionsEstimator builds the per-node departure counter.
func NewNodeCompletionsEstimator(s *NextEventScheduler, node string) *CompletionsEstimator {
	c := &CompletionsEstimator{node: node}
	s.Subscribe(Departure, c.onDeparture)
	return c
}

func (c *CompletionsEstimator) onDeparture(e *Event, s *NextEventScheduler) {
	if c.node == "" {
		if c.exits.LeadsToExit(e.Server, e.JobClass) {
			c.total++
		}
		return
	}
	if e.Server == c.node {
		c.total++
	}
}

// NotifyExit counts a forced exit (system scope).
func (c *CompletionsEstimator) NotifyExit() { c.total++ }

// StartCollecting resets the baseline to the current total.
func (c *CompletionsEstimator) StartCollecting() { c.base = c.total }

// TotalCount returns the lifetime count.
func (c *CompletionsEstimator) TotalCount() int64 { return c.total }

// CountSinceStart returns the count since the last baseline reset.
func (c *CompletionsEstimator) CountSinceStart() int64 { return c.total - c.base }

// === Observation time ===

// ObservationTimeEstimator tracks the span between the window origin and
// the last processed event.
type ObservationTimeEstimator struct {
	start float64
	end   float64
}

func NewObservationTimeEstimator(s *NextEventScheduler) *ObservationTimeEstimator {
	o := &ObservationTimeEstimator{start: s.Now(), end: s.Now()}
	upd := func(e *Event, sc *NextEventScheduler) { o.end = sc.Now() }
	s.Subscribe(Arrival, upd)
	s.Subscribe(Departure, upd)
	return o
}

// StartCollecting restarts the window at now.
func (o *ObservationTimeEstimator) StartCollecting(now float64) {
	o.start = now
	o.end = now
}

// Elapsed returns the observed span.
func (o *ObservationTimeEstimator) Elapsed() float64 { return o.end - o.start }
