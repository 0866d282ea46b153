package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/iti/rngstream"
)

// ExitTarget is the routing target that makes a job leave the network.
const ExitTarget = "EXIT"

// probability sums must match 1 within this tolerance
const probTol = 1e-9

// Hop is the resolved next destination for a job leaving a node: either a
// (node, class) pair or an EXIT.
type Hop struct {
	Target string
	Class  int
}

// IsExit reports whether the hop leaves the network.
func (h Hop) IsExit() bool { return strings.EqualFold(h.Target, ExitTarget) }

// Arc is one weighted branch of a probabilistic routing rule. Class is
// ignored when Target is EXIT.
type Arc struct {
	Target string
	Class  int
	Prob   float64
}

// Router decides the next destination of a job that finished service.
// The second return value is false when no rule exists for the pair, which
// the driver treats as a recoverable configuration gap. Dynamic reports
// whether decisions can differ between calls for the same (server, class);
// the driver then projects each decision into the ExitMap before the
// estimators observe the departure.
type Router interface {
	Next(server string, class int) (Hop, bool)
	Dynamic() bool
}

// === Deterministic ===

// DeterministicRouter performs a direct lookup in a routing matrix
// (node -> class -> hop).
type DeterministicRouter struct {
	matrix map[string]map[int]Hop
}

func NewDeterministicRouter(matrix map[string]map[int]Hop) *DeterministicRouter {
	return &DeterministicRouter{matrix: matrix}
}

func (r *DeterministicRouter) Next(server string, class int) (Hop, bool) {
	perClass, ok := r.matrix[server]
	if !ok {
		return Hop{}, false
	}
	h, ok := perClass[class]
	return h, ok
}

func (r *DeterministicRouter) Dynamic() bool { return false }

// === Probabilistic ===

// ProbabilisticRouter selects among weighted arcs by drawing one uniform
// variate from a dedicated stream and walking a precomputed CDF. It is
// re-entrant and has no side effect other than consuming that single draw.
type ProbabilisticRouter struct {
	table  map[string]map[int][]Arc
	cdf    map[string]map[int][]float64
	stream *rngstream.RngStream
}

// NewProbabilisticRouter validates the arc table and precomputes per-rule
// CDFs. A probability sum off by more than 1e-9, an empty arc list, or a
// non-positive arc probability is a fatal configuration error.
func NewProbabilisticRouter(table map[string]map[int][]Arc, stream *rngstream.RngStream) (*ProbabilisticRouter, error) {
	if stream == nil {
		return nil, fmt.Errorf("probabilistic router: no random stream provided")
	}
	cdf := make(map[string]map[int][]float64, len(table))
	for server, byClass := range table {
		perClass := make(map[int][]float64, len(byClass))
		for class, arcs := range byClass {
			if len(arcs) == 0 {
				return nil, fmt.Errorf("probabilistic router: empty arc list for (%s, class=%d)", server, class)
			}
			cum := make([]float64, len(arcs))
			sum := 0.0
			for i, a := range arcs {
				if a.Prob <= 0 || a.Prob > 1 {
					return nil, fmt.Errorf("probabilistic router: arc probability %v out of (0,1] for (%s, class=%d)", a.Prob, server, class)
				}
				sum += a.Prob
				cum[i] = sum
			}
			if math.Abs(sum-1.0) > probTol {
				return nil, fmt.Errorf("probabilistic router: probabilities for (%s, class=%d) sum to %.12f, want 1", server, class, sum)
			}
			// pin the last entry so a draw of u ~ 1 cannot fall off the end
			cum[len(cum)-1] = 1.0
			perClass[class] = cum
		}
		cdf[server] = perClass
	}
	return &ProbabilisticRouter{table: table, cdf: cdf, stream: stream}, nil
}

func (r *ProbabilisticRouter) Next(server string, class int) (Hop, bool) {
	byClass, ok := r.table[server]
	if !ok {
		return Hop{}, false
	}
	arcs, ok := byClass[class]
	if !ok || len(arcs) == 0 {
		return Hop{}, false
	}
	u := r.stream.RandU01()
	cum := r.cdf[server][class]
	idx := len(cum) - 1
	for i, c := range cum {
		if u <= c {
			idx = i
			break
		}
	}
	a := arcs[idx]
	if strings.EqualFold(a.Target, ExitTarget) {
		return Hop{Target: ExitTarget}, true
	}
	return Hop{Target: a.Target, Class: a.Class}, true
}

func (r *ProbabilisticRouter) Dynamic() bool { return true }

// === EXIT projection ===

// ExitMap records which (server, class) departures leave the network, so
// estimators can recognize EXIT without consulting the router. For
// deterministic routing it is prefilled at construction; for probabilistic
// routing the driver projects each decision into it before the estimators
// observe the departure event.
type ExitMap struct {
	m map[string]map[int]bool
}

func NewExitMap() *ExitMap {
	return &ExitMap{m: make(map[string]map[int]bool)}
}

// NewExitMapFromMatrix prefills the projection from a deterministic routing
// matrix.
func NewExitMapFromMatrix(matrix map[string]map[int]Hop) *ExitMap {
	em := NewExitMap()
	for server, perClass := range matrix {
		for class, hop := range perClass {
			em.Set(server, class, hop.IsExit())
		}
	}
	return em
}

// Set records whether departures of (server, class) lead to EXIT.
func (em *ExitMap) Set(server string, class int, exit bool) {
	perClass, ok := em.m[server]
	if !ok {
		perClass = make(map[int]bool)
		em.m[server] = perClass
	}
	perClass[class] = exit
}

// LeadsToExit reports the last recorded projection for (server, class).
func (em *ExitMap) LeadsToExit(server string, class int) bool {
	return em.m[server][class]
}
