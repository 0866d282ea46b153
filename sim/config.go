package sim

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Arrival process names accepted by ArrivalConfig.Process.
const (
	ProcessExponential = "exponential"
	ProcessHyperExp    = "hyperexp"
	ProcessCoxian      = "coxian"
	ProcessSpiked      = "spiked"
)

// Routing mode names accepted by RoutingConfig.Mode.
const (
	RoutingDeterministic = "deterministic"
	RoutingProbabilistic = "probabilistic"
	RoutingBalanced      = "balanced"
)

// ArrivalConfig selects the external arrival law. Rates holds one rate per
// run; the CLI iterates over it for sequential experiments.
type ArrivalConfig struct {
	Process    string    `yaml:"process"`
	Rates      []float64 `yaml:"rates"`
	TargetNode string    `yaml:"target_node"`
	JobClass   int       `yaml:"job_class"`

	// hyperexp only: phase-selection probability in (0,1)
	HyperP float64 `yaml:"hyper_p"`

	// coxian only: per-phase rates and continuation probabilities
	CoxianRates []float64 `yaml:"coxian_rates"`
	CoxianProbs []float64 `yaml:"coxian_probs"`

	// spiked only: elevated rate inside the spike window
	SpikeRate float64 `yaml:"spike_rate"`
}

// RouteTargetConfig is one deterministic routing entry: where a (node,
// class) departure goes and with which class. Target EXIT leaves the
// network.
type RouteTargetConfig struct {
	Target string `yaml:"target"`
	Class  int    `yaml:"class"`
}

// ArcConfig is one weighted branch of a probabilistic routing rule.
type ArcConfig struct {
	Target string  `yaml:"target"`
	Class  int     `yaml:"class"`
	Prob   float64 `yaml:"prob"`
}

// RoutingConfig holds the routing tables, keyed by node then by job class.
// Class keys are strings in YAML and parsed with strconv, matching the
// service_means section.
//
// In balanced mode each rule lists candidate targets and a load-balancing
// policy picks one per departure; a single-candidate rule degenerates to
// deterministic routing.
type RoutingConfig struct {
	Mode          string                                    `yaml:"mode"`
	Balancing     string                                    `yaml:"balancing"`
	Deterministic map[string]map[string]RouteTargetConfig   `yaml:"deterministic"`
	Balanced      map[string]map[string][]RouteTargetConfig `yaml:"balanced"`
	Probabilistic map[string]map[string][]ArcConfig         `yaml:"probabilistic"`
}

// SimulationConfig is the full YAML surface of one experiment. Unknown
// fields are rejected at load time so typos surface as errors instead of
// silently running the default.
type SimulationConfig struct {
	Seed              int64                         `yaml:"seed"`
	MaxEvents         int64                         `yaml:"max_events"`
	WarmupCompletions int64                         `yaml:"warmup_completions"`
	BatchLength       float64                       `yaml:"batch_length"`
	MaxBatches        int                           `yaml:"max_batches"`
	SafetyMaxHops     int                           `yaml:"safety_max_hops"`
	InitialArrivals   int                           `yaml:"initial_arrivals"`
	Discipline        Discipline                    `yaml:"discipline"`
	TrackedNodes      []string                      `yaml:"tracked_nodes"`
	Arrival           ArrivalConfig                 `yaml:"arrival"`
	ServiceMeans      map[string]map[string]float64 `yaml:"service_means"`
	Routing           RoutingConfig                 `yaml:"routing"`
}

// LoadConfig reads and strictly decodes a YAML experiment file, then
// validates it.
func LoadConfig(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates YAML bytes.
func ParseConfig(data []byte) (*SimulationConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg SimulationConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimulationConfig) applyDefaults() {
	if c.Arrival.Process == "" {
		c.Arrival.Process = ProcessExponential
	}
	if c.Arrival.JobClass == 0 {
		c.Arrival.JobClass = 1
	}
	if c.Discipline == "" {
		c.Discipline = ProcessorSharing
	}
	if c.Routing.Mode == "" {
		c.Routing.Mode = RoutingDeterministic
	}
}

// Validate rejects configurations the engine cannot run. It checks shape
// and ranges only; probability sums are validated by the router, which
// owns that invariant.
func (c *SimulationConfig) Validate() error {
	if c.MaxEvents <= 0 {
		return fmt.Errorf("config: max_events must be > 0")
	}
	if c.BatchLength < 0 {
		return fmt.Errorf("config: batch_length must be >= 0")
	}
	if c.MaxBatches < 0 {
		return fmt.Errorf("config: max_batches must be >= 0")
	}
	if c.SafetyMaxHops < 0 {
		return fmt.Errorf("config: safety_max_hops must be >= 0")
	}
	if c.InitialArrivals < 0 {
		return fmt.Errorf("config: initial_arrivals must be >= 0")
	}
	if c.Discipline != ProcessorSharing && c.Discipline != FIFO {
		return fmt.Errorf("config: unknown discipline %q", c.Discipline)
	}
	if len(c.ServiceMeans) == 0 {
		return fmt.Errorf("config: service_means must define at least one node")
	}
	for node, byClass := range c.ServiceMeans {
		if strings.EqualFold(node, ExitTarget) {
			return fmt.Errorf("config: %q is reserved and cannot be a node name", ExitTarget)
		}
		if len(byClass) == 0 {
			return fmt.Errorf("config: node %q has no service means", node)
		}
		for class, mean := range byClass {
			if _, err := strconv.Atoi(class); err != nil {
				return fmt.Errorf("config: node %q has non-integer class key %q", node, class)
			}
			if mean <= 0 {
				return fmt.Errorf("config: node %q class %s mean service time must be > 0", node, class)
			}
		}
	}
	if err := c.validateArrival(); err != nil {
		return err
	}
	return c.validateRouting()
}

func (c *SimulationConfig) validateArrival() error {
	a := &c.Arrival
	if a.TargetNode == "" {
		return fmt.Errorf("config: arrival.target_node is required")
	}
	if _, ok := c.ServiceMeans[a.TargetNode]; !ok {
		return fmt.Errorf("config: arrival.target_node %q is not a configured node", a.TargetNode)
	}
	needRates := a.Process != ProcessCoxian
	if needRates {
		if len(a.Rates) == 0 {
			return fmt.Errorf("config: arrival.rates must list at least one rate")
		}
		for _, r := range a.Rates {
			if r <= 0 {
				return fmt.Errorf("config: arrival rate %v must be > 0", r)
			}
		}
	}
	switch a.Process {
	case ProcessExponential:
	case ProcessHyperExp:
		if a.HyperP <= 0 || a.HyperP >= 1 {
			return fmt.Errorf("config: arrival.hyper_p %v must be in (0,1)", a.HyperP)
		}
	case ProcessCoxian:
		if err := validateCoxian(a.CoxianRates, a.CoxianProbs); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	case ProcessSpiked:
		if a.SpikeRate <= 0 {
			return fmt.Errorf("config: arrival.spike_rate %v must be > 0", a.SpikeRate)
		}
	default:
		return fmt.Errorf("config: unknown arrival process %q", a.Process)
	}
	for _, n := range c.TrackedNodes {
		if _, ok := c.ServiceMeans[n]; !ok {
			return fmt.Errorf("config: tracked node %q is not a configured node", n)
		}
	}
	return nil
}

func (c *SimulationConfig) validateRouting() error {
	switch c.Routing.Mode {
	case RoutingDeterministic:
		if len(c.Routing.Deterministic) == 0 {
			return fmt.Errorf("config: routing.deterministic table is empty")
		}
		for node, byClass := range c.Routing.Deterministic {
			for class, hop := range byClass {
				if _, err := strconv.Atoi(class); err != nil {
					return fmt.Errorf("config: routing for node %q has non-integer class key %q", node, class)
				}
				if err := c.checkTarget(node, hop.Target); err != nil {
					return err
				}
			}
		}
	case RoutingBalanced:
		if len(c.Routing.Balanced) == 0 {
			return fmt.Errorf("config: routing.balanced table is empty")
		}
		if _, err := ParseBalancingPolicy(c.Routing.Balancing); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		for node, byClass := range c.Routing.Balanced {
			for class, hops := range byClass {
				if _, err := strconv.Atoi(class); err != nil {
					return fmt.Errorf("config: routing for node %q has non-integer class key %q", node, class)
				}
				if len(hops) == 0 {
					return fmt.Errorf("config: routing for node %q class %s has no candidates", node, class)
				}
				for _, hop := range hops {
					if err := c.checkTarget(node, hop.Target); err != nil {
						return err
					}
				}
			}
		}
	case RoutingProbabilistic:
		if len(c.Routing.Probabilistic) == 0 {
			return fmt.Errorf("config: routing.probabilistic table is empty")
		}
		for node, byClass := range c.Routing.Probabilistic {
			for class, arcs := range byClass {
				if _, err := strconv.Atoi(class); err != nil {
					return fmt.Errorf("config: routing for node %q has non-integer class key %q", node, class)
				}
				for _, a := range arcs {
					if err := c.checkTarget(node, a.Target); err != nil {
						return err
					}
				}
			}
		}
	default:
		return fmt.Errorf("config: unknown routing mode %q", c.Routing.Mode)
	}
	if c.Routing.Balancing != "" && c.Routing.Mode != RoutingBalanced {
		return fmt.Errorf("config: routing.balancing requires routing mode %q", RoutingBalanced)
	}
	return nil
}

func (c *SimulationConfig) checkTarget(from, target string) error {
	if target == "" {
		return fmt.Errorf("config: routing from node %q has an empty target", from)
	}
	if strings.EqualFold(target, ExitTarget) {
		return nil
	}
	if _, ok := c.ServiceMeans[target]; !ok {
		return fmt.Errorf("config: routing from node %q targets unknown node %q", from, target)
	}
	return nil
}

// ServiceMeansMatrix converts the YAML service_means section (string class
// keys) into the node -> class -> mean form the network uses.
func (c *SimulationConfig) ServiceMeansMatrix() map[string]map[int]float64 {
	out := make(map[string]map[int]float64, len(c.ServiceMeans))
	for node, byClass := range c.ServiceMeans {
		m := make(map[int]float64, len(byClass))
		for class, mean := range byClass {
			k, _ := strconv.Atoi(class)
			m[k] = mean
		}
		out[node] = m
	}
	return out
}

// DeterministicMatrix converts the deterministic routing section into the
// router's matrix form.
func (c *SimulationConfig) DeterministicMatrix() map[string]map[int]Hop {
	out := make(map[string]map[int]Hop, len(c.Routing.Deterministic))
	for node, byClass := range c.Routing.Deterministic {
		m := make(map[int]Hop, len(byClass))
		for class, hop := range byClass {
			k, _ := strconv.Atoi(class)
			m[k] = Hop{Target: hop.Target, Class: hop.Class}
		}
		out[node] = m
	}
	return out
}

// BalancedTable converts the balanced routing section into the router's
// candidate-table form.
func (c *SimulationConfig) BalancedTable() map[string]map[int][]Hop {
	out := make(map[string]map[int][]Hop, len(c.Routing.Balanced))
	for node, byClass := range c.Routing.Balanced {
		m := make(map[int][]Hop, len(byClass))
		for class, hops := range byClass {
			k, _ := strconv.Atoi(class)
			cands := make([]Hop, len(hops))
			for i, hop := range hops {
				cands[i] = Hop{Target: hop.Target, Class: hop.Class}
			}
			m[k] = cands
		}
		out[node] = m
	}
	return out
}

// ProbabilisticTable converts the probabilistic routing section into the
// router's arc-table form.
func (c *SimulationConfig) ProbabilisticTable() map[string]map[int][]Arc {
	out := make(map[string]map[int][]Arc, len(c.Routing.Probabilistic))
	for node, byClass := range c.Routing.Probabilistic {
		m := make(map[int][]Arc, len(byClass))
		for class, arcs := range byClass {
			k, _ := strconv.Atoi(class)
			out2 := make([]Arc, len(arcs))
			for i, a := range arcs {
				out2[i] = Arc{Target: a.Target, Class: a.Class, Prob: a.Prob}
			}
			m[k] = out2
		}
		out[node] = m
	}
	return out
}
