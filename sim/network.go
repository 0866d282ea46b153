package sim

import (
	"fmt"
	"sort"
)

// Discipline selects the service discipline used by every node of a run.
type Discipline string

const (
	ProcessorSharing Discipline = "ps"
	FIFO             Discipline = "fifo"
)

// Network is a read-only-after-construction lookup of nodes by name.
// Absent names are a configuration error surfaced by the config layer; the
// hot path assumes lookups succeed.
type Network struct {
	nodes map[string]Node
	names []string
}

// NewNetwork builds one node per entry of serviceMeans, using the given
// discipline for all of them. The job table is only needed by FIFO nodes.
func NewNetwork(serviceMeans map[string]map[int]float64, discipline Discipline, jobs *JobTable) (*Network, error) {
	if len(serviceMeans) == 0 {
		return nil, fmt.Errorf("network: no nodes configured")
	}
	nodes := make(map[string]Node, len(serviceMeans))
	for name, means := range serviceMeans {
		switch discipline {
		case ProcessorSharing, "":
			nodes[name] = NewPSNode(name, means)
		case FIFO:
			nodes[name] = NewFIFONode(name, means, jobs)
		default:
			return nil, fmt.Errorf("network: unknown discipline %q", discipline)
		}
	}
	names := make([]string, 0, len(nodes))
	for n := range nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return &Network{nodes: nodes, names: names}, nil
}

// Node returns the node with the given name, or nil.
func (nw *Network) Node(name string) Node { return nw.nodes[name] }

// Names returns all node names in sorted order, for deterministic
// iteration.
func (nw *Network) Names() []string { return nw.names }
