package sim

import (
	"github.com/iti/rngstream"
)

// === Stream names ===

const (
	// StreamArrivals draws external inter-arrival times.
	StreamArrivals = "arrivals"

	// StreamArrivalPhase draws phase-selection variates for the
	// hyperexponential and Coxian arrival laws.
	StreamArrivalPhase = "arrival_phase"

	// StreamSpike places and sizes the elevated-rate window of the
	// time-varying arrival law.
	StreamSpike = "spike"

	// StreamRouting draws the uniforms consumed by probabilistic routing.
	// Kept separate so routing never perturbs the service-time streams.
	StreamRouting = "routing"

	// StreamBalance draws the uniforms consumed by the random
	// load-balancing policy.
	StreamBalance = "balance"
)

// ServiceStream returns the stream name used for service-time draws at the
// named node.
func ServiceStream(node string) string {
	return "service_" + node
}

// === Streams ===

// Streams provides deterministic, isolated random streams per consumer,
// backed by rngstream (L'Ecuyer MRG32k3a). Each named stream is an
// independent substream derived from the per-run master seed; the same name
// always returns the same stream instance.
//
// rngstream derives streams from package-level state in creation order, so
// the Simulation pre-creates every stream it will use in a fixed order at
// construction time. For the same reason, runs must be created sequentially;
// a run itself is single-threaded, and replications that must be
// statistically independent use different master seeds.
type Streams struct {
	seed    int64
	streams map[string]*rngstream.RngStream
}

// NewStreams seeds the rngstream master state and returns an empty stream
// table for this run.
func NewStreams(seed int64) *Streams {
	rngstream.SetRngStreamMasterSeed(uint64(seed))
	return &Streams{
		seed:    seed,
		streams: make(map[string]*rngstream.RngStream),
	}
}

// Seed returns the master seed this run was created with.
func (p *Streams) Seed() int64 { return p.seed }

// Stream returns the stream for the given name, creating it on first use.
func (p *Streams) Stream(name string) *rngstream.RngStream {
	if g, ok := p.streams[name]; ok {
		return g
	}
	g := rngstream.New(name)
	p.streams[name] = g
	return g
}

// U01 draws one uniform (0,1) variate from the named stream.
func (p *Streams) U01(name string) float64 {
	return p.Stream(name).RandU01()
}
