package sim

import "github.com/sirupsen/logrus"

// ArrivalProcess is the inter-arrival law of the external source. Rates and
// times are in jobs per second and seconds. Implementations consume random
// draws only when InterArrival is called, in a fixed per-call order, so the
// determinism contract holds.
type ArrivalProcess interface {
	// InterArrival returns the delay until the next external arrival,
	// given the current simulation time (only the time-varying law uses
	// it).
	InterArrival(now float64) float64
}

// === Exponential (Poisson arrivals) ===

type ExponentialProcess struct {
	rate    float64
	streams *Streams
}

// NewExponentialProcess builds a Poisson source with rate lambda.
func NewExponentialProcess(rate float64, streams *Streams) *ExponentialProcess {
	return &ExponentialProcess{rate: rate, streams: streams}
}

func (p *ExponentialProcess) InterArrival(_ float64) float64 {
	return IDFExponential(1.0/p.rate, p.streams.U01(StreamArrivals))
}

// === Hyperexponential-2, equal mean ===

// HyperExp2Process draws inter-arrival times from a two-phase
// hyperexponential with the same mean as the plain exponential source
// (1/rate) but higher variability. A separate stream drives the phase
// selection so it never shifts the quantile draws.
type HyperExp2Process struct {
	rate    float64
	p       float64
	streams *Streams
}

func NewHyperExp2Process(rate, p float64, streams *Streams) *HyperExp2Process {
	return &HyperExp2Process{rate: rate, p: p, streams: streams}
}

func (h *HyperExp2Process) InterArrival(_ float64) float64 {
	uPhase := h.streams.U01(StreamArrivalPhase)
	u := h.streams.U01(StreamArrivals)
	return IDFHyperExp2SameMean(1.0/h.rate, h.p, uPhase, u)
}

// === Coxian phase-type ===

// CoxianProcess draws inter-arrival times from an ordered sequence of
// exponential phases with rates mu and continuation probabilities q
// (len(q) == len(mu)-1; the terminal phase never continues).
type CoxianProcess struct {
	mu      []float64
	q       []float64
	streams *Streams
}

// NewCoxianProcess validates the phase parameters; validation failures are
// configuration defects.
func NewCoxianProcess(mu, q []float64, streams *Streams) (*CoxianProcess, error) {
	if err := validateCoxian(mu, q); err != nil {
		return nil, err
	}
	return &CoxianProcess{
		mu:      append([]float64(nil), mu...),
		q:       append([]float64(nil), q...),
		streams: streams,
	}, nil
}

func (c *CoxianProcess) InterArrival(_ float64) float64 {
	return SampleCoxian(c.mu, c.q, c.streams.Stream(StreamArrivalPhase), c.streams.Stream(StreamArrivals))
}

// === Time-varying rate with a spike window ===

// SpikedProcess is a Poisson source whose rate is elevated inside one
// randomly placed window: the window length is drawn uniformly from
// [0, maxSpikeLen) and its start uniformly from [spikeEarliest,
// spikeLatest), both at construction time from the dedicated spike stream.
type SpikedProcess struct {
	baseRate   float64
	spikeRate  float64
	spikeStart float64
	spikeEnd   float64
	streams    *Streams
}

// Spike placement defaults, in seconds: the window lasts up to an hour and
// opens somewhere in the second half of a 24h horizon.
const (
	defaultMaxSpikeLen   = 3600.0
	defaultSpikeEarliest = 43200.0
	defaultSpikeLatest   = 86400.0
)

func NewSpikedProcess(baseRate, spikeRate float64, streams *Streams) *SpikedProcess {
	dur := IDFUniform(0, defaultMaxSpikeLen, streams.U01(StreamSpike))
	start := IDFUniform(defaultSpikeEarliest, defaultSpikeLatest, streams.U01(StreamSpike))
	logrus.Debugf("spiked arrivals: window [%.1f, %.1f] at rate %.3f", start, start+dur, spikeRate)
	return &SpikedProcess{
		baseRate:   baseRate,
		spikeRate:  spikeRate,
		spikeStart: start,
		spikeEnd:   start + dur,
		streams:    streams,
	}
}

// SpikeWindow returns the elevated-rate interval chosen at construction.
func (p *SpikedProcess) SpikeWindow() (start, end float64) {
	return p.spikeStart, p.spikeEnd
}

func (p *SpikedProcess) InterArrival(now float64) float64 {
	rate := p.baseRate
	if now >= p.spikeStart && now <= p.spikeEnd {
		rate = p.spikeRate
	}
	return IDFExponential(1.0/rate, p.streams.U01(StreamArrivals))
}

// === Generator ===

// ArrivalGenerator is the exogenous job source. It schedules one ARRIVAL at
// time zero for its target node with the external marker id, subscribes to
// the ARRIVAL stream, and whenever it observes its own external arrival it
// draws the next inter-arrival time and schedules the next one.
//
// SetActive(false) stops further self-scheduling without cancelling events
// already in the heap, so in-flight work drains naturally.
type ArrivalGenerator struct {
	process    ArrivalProcess
	targetNode string
	jobClass   int
	active     bool
}

// NewArrivalGenerator wires the generator to the scheduler and plants the
// first external arrival at t=0.
func NewArrivalGenerator(s *NextEventScheduler, process ArrivalProcess, targetNode string, jobClass int) *ArrivalGenerator {
	g := &ArrivalGenerator{
		process:    process,
		targetNode: targetNode,
		jobClass:   jobClass,
		active:     true,
	}
	s.Subscribe(Arrival, g.onArrival)
	first := NewEvent(Arrival, targetNode, ExternalJobID, jobClass)
	s.ScheduleAt(first, 0.0)
	return g
}

func (g *ArrivalGenerator) onArrival(e *Event, s *NextEventScheduler) {
	if !g.active || e.Bootstrap() {
		return
	}
	// The generator runs before the driver assigns job ids, so external
	// arrivals still carry the marker here.
	if e.JobID != ExternalJobID || e.Server != g.targetNode {
		return
	}
	ia := g.process.InterArrival(s.Now())
	next := NewEvent(Arrival, g.targetNode, ExternalJobID, g.jobClass)
	s.ScheduleAt(next, s.Now()+ia)
}

// SetActive enables or disables further self-scheduling.
func (g *ArrivalGenerator) SetActive(v bool) { g.active = v }

// Active reports whether the generator is still producing arrivals.
func (g *ArrivalGenerator) Active() bool { return g.active }
