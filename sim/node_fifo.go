package sim

// FIFONode serves one job at a time at full rate; later arrivals wait in
// arrival order. Departures are scheduled once, at service start, so no
// cancellation is needed.
type FIFONode struct {
	name    string
	means   map[int]float64
	queue   []int // waiting job ids, oldest first
	busy    bool
	current int
	jobs    *JobTable
}

// NewFIFONode builds a FIFO node. The job table is needed to look up the
// next waiting job when the server frees up.
func NewFIFONode(name string, means map[int]float64, jobs *JobTable) *FIFONode {
	m := make(map[int]float64, len(means))
	for c, v := range means {
		m[c] = v
	}
	return &FIFONode{name: name, means: m, current: -1, jobs: jobs}
}

func (n *FIFONode) Name() string                  { return n.name }
func (n *FIFONode) ServiceMeans() map[int]float64 { return n.means }

// QueueLen returns the number of jobs waiting (excluding the one in
// service).
func (n *FIFONode) QueueLen() int { return len(n.queue) }

// Residents returns the number of jobs at the node, including the one in
// service.
func (n *FIFONode) Residents() int {
	r := len(n.queue)
	if n.busy {
		r++
	}
	return r
}

func (n *FIFONode) Arrival(j *Job, s *NextEventScheduler) {
	if !n.busy {
		n.startService(j, s)
		return
	}
	n.queue = append(n.queue, j.ID)
}

func (n *FIFONode) Departure(j *Job, s *NextEventScheduler) {
	if n.busy && n.current == j.ID {
		n.busy = false
		n.current = -1
	}
	if len(n.queue) == 0 {
		return
	}
	nextID := n.queue[0]
	n.queue = n.queue[1:]
	if next := n.jobs.Get(nextID); next != nil {
		n.startService(next, s)
	}
}

func (n *FIFONode) startService(j *Job, s *NextEventScheduler) {
	n.busy = true
	n.current = j.ID
	svc := j.RemainingService
	if svc < 0 {
		svc = 0
	}
	e := NewEvent(Departure, n.name, j.ID, j.Class)
	s.ScheduleAt(e, s.Now()+svc)
}
