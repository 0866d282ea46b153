package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/iti/rngstream"
)

// BalancingPolicy names a load-balancing strategy for balanced routing.
type BalancingPolicy string

const (
	BalanceRoundRobin BalancingPolicy = "round_robin"
	BalanceRandom     BalancingPolicy = "random"
	BalanceLeastBusy  BalancingPolicy = "least_busy"
)

// ParseBalancingPolicy maps a config spelling to a policy. Short aliases
// are accepted; the empty string selects round-robin.
func ParseBalancingPolicy(s string) (BalancingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rr", "round_robin":
		return BalanceRoundRobin, nil
	case "rnd", "random":
		return BalanceRandom, nil
	case "least", "least_busy":
		return BalanceLeastBusy, nil
	default:
		return "", fmt.Errorf("balance: unknown policy %q", s)
	}
}

// LoadBalancer chooses one hop among the candidates of a balanced routing
// rule. Candidates must be non-empty; an empty list is a programming error
// surfaced as an error return rather than an arbitrary choice.
type LoadBalancer interface {
	Pick(server string, class int, candidates []Hop) (Hop, error)
}

type ruleKey struct {
	server string
	class  int
}

// RoundRobinBalancer cycles through the candidates of each (server, class)
// rule with an independent cursor per rule.
type RoundRobinBalancer struct {
	cursors map[ruleKey]int
}

func NewRoundRobinBalancer() *RoundRobinBalancer {
	return &RoundRobinBalancer{cursors: make(map[ruleKey]int)}
}

func (b *RoundRobinBalancer) Pick(server string, class int, candidates []Hop) (Hop, error) {
	if len(candidates) == 0 {
		return Hop{}, fmt.Errorf("balance: no candidates for (%s, class=%d)", server, class)
	}
	k := ruleKey{server, class}
	pos := b.cursors[k] % len(candidates)
	b.cursors[k]++
	return candidates[pos], nil
}

// RandomBalancer picks uniformly among the candidates, consuming one draw
// from its dedicated stream per decision.
type RandomBalancer struct {
	stream *rngstream.RngStream
}

func NewRandomBalancer(stream *rngstream.RngStream) (*RandomBalancer, error) {
	if stream == nil {
		return nil, fmt.Errorf("balance: no random stream provided")
	}
	return &RandomBalancer{stream: stream}, nil
}

func (b *RandomBalancer) Pick(server string, class int, candidates []Hop) (Hop, error) {
	if len(candidates) == 0 {
		return Hop{}, fmt.Errorf("balance: no candidates for (%s, class=%d)", server, class)
	}
	idx := int(b.stream.RandU01() * float64(len(candidates)))
	if idx >= len(candidates) {
		idx = len(candidates) - 1
	}
	return candidates[idx], nil
}

// LeastBusyBalancer picks the candidate whose node currently holds the
// fewest jobs. Ties break toward the lexicographically smaller target name,
// so the choice is stable. EXIT and unknown targets never win.
type LeastBusyBalancer struct {
	network *Network
}

func NewLeastBusyBalancer(network *Network) *LeastBusyBalancer {
	return &LeastBusyBalancer{network: network}
}

func (b *LeastBusyBalancer) Pick(server string, class int, candidates []Hop) (Hop, error) {
	if len(candidates) == 0 {
		return Hop{}, fmt.Errorf("balance: no candidates for (%s, class=%d)", server, class)
	}
	best := candidates[0]
	bestLoad := b.load(best)
	for _, c := range candidates[1:] {
		l := b.load(c)
		if l < bestLoad || (l == bestLoad && c.Target < best.Target) {
			best, bestLoad = c, l
		}
	}
	return best, nil
}

func (b *LeastBusyBalancer) load(h Hop) int {
	if h.IsExit() {
		return math.MaxInt
	}
	n := b.network.Node(h.Target)
	if n == nil {
		return math.MaxInt
	}
	return n.Residents()
}

// BalancedRouter resolves rules that list several candidate hops by
// delegating the choice to a load-balancing policy. A rule with a single
// candidate behaves exactly like a deterministic one. Decisions can vary
// between calls, so the router is dynamic and the driver projects each
// decision into the ExitMap.
type BalancedRouter struct {
	table map[string]map[int][]Hop
	lb    LoadBalancer
}

// NewBalancedRouter validates the candidate table. An empty candidate list
// is a fatal configuration error, mirroring the probabilistic router's
// empty-arc check.
func NewBalancedRouter(table map[string]map[int][]Hop, lb LoadBalancer) (*BalancedRouter, error) {
	if lb == nil {
		return nil, fmt.Errorf("balanced router: no policy provided")
	}
	for server, byClass := range table {
		for class, hops := range byClass {
			if len(hops) == 0 {
				return nil, fmt.Errorf("balanced router: empty candidate list for (%s, class=%d)", server, class)
			}
		}
	}
	return &BalancedRouter{table: table, lb: lb}, nil
}

func (r *BalancedRouter) Next(server string, class int) (Hop, bool) {
	byClass, ok := r.table[server]
	if !ok {
		return Hop{}, false
	}
	hops, ok := byClass[class]
	if !ok || len(hops) == 0 {
		return Hop{}, false
	}
	if len(hops) == 1 {
		return hops[0], true
	}
	h, err := r.lb.Pick(server, class, hops)
	if err != nil {
		return Hop{}, false
	}
	return h, true
}

func (r *BalancedRouter) Dynamic() bool { return true }
