package sim

// Node is one service station of the network. Implementations own the set
// of resident jobs and schedule DEPARTURE events for them; the driver calls
// Arrival/Departure as it dispatches events.
type Node interface {
	Name() string
	// ServiceMeans maps job class to mean service time in seconds.
	ServiceMeans() map[int]float64
	// Residents returns the number of jobs currently at the node,
	// waiting or in service.
	Residents() int
	Arrival(j *Job, s *NextEventScheduler)
	Departure(j *Job, s *NextEventScheduler)
}

// floor for a recomputed time-to-finish, so a zero remaining-service job
// still departs strictly after the current event
const nodeEps = 1e-12

// PSNode serves all resident jobs simultaneously under egalitarian
// processor sharing: each of the n residents receives a 1/n share of
// capacity, so remaining service decreases by elapsed/n between updates.
// The pending departure always belongs to the resident with minimum
// remaining service and is rescheduled whenever the resident set changes.
type PSNode struct {
	name          string
	means         map[int]float64
	jobs          []*Job
	lastUpdate    float64
	nextDeparture *Event
}

// NewPSNode builds a processor-sharing node with the given per-class mean
// service times.
func NewPSNode(name string, means map[int]float64) *PSNode {
	m := make(map[int]float64, len(means))
	for c, v := range means {
		m[c] = v
	}
	return &PSNode{name: name, means: m}
}

func (n *PSNode) Name() string                  { return n.name }
func (n *PSNode) ServiceMeans() map[int]float64 { return n.means }

// Residents returns the number of jobs currently at the node.
func (n *PSNode) Residents() int { return len(n.jobs) }

// updateRemaining integrates the service consumed by the current residents
// since the last update. Must run before every change to the resident set.
func (n *PSNode) updateRemaining(now float64) {
	if len(n.jobs) == 0 {
		n.lastUpdate = now
		return
	}
	elapsed := now - n.lastUpdate
	if elapsed < 0 {
		elapsed = 0
	}
	share := elapsed / float64(len(n.jobs))
	for _, j := range n.jobs {
		j.RemainingService -= share
		if j.RemainingService < 0 {
			j.RemainingService = 0
		}
	}
	n.lastUpdate = now
}

func (n *PSNode) Arrival(j *Job, s *NextEventScheduler) {
	n.updateRemaining(s.Now())
	n.jobs = append(n.jobs, j)
	n.scheduleNextDeparture(s)
}

func (n *PSNode) Departure(j *Job, s *NextEventScheduler) {
	idx := -1
	for i, r := range n.jobs {
		if r.ID == j.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// orphan event for a job no longer resident
		return
	}
	// this departure is the pending event being dispatched; forget it so it
	// is not cancelled after the fact
	if n.nextDeparture != nil && n.nextDeparture.JobID == j.ID {
		n.nextDeparture = nil
	}
	n.updateRemaining(s.Now())
	n.jobs = append(n.jobs[:idx], n.jobs[idx+1:]...)
	n.scheduleNextDeparture(s)
}

// scheduleNextDeparture cancels any pending departure and schedules a fresh
// one for the job with minimum remaining service. Under processor sharing
// the time to finish is remaining * n, since the job only receives a 1/n
// share.
func (n *PSNode) scheduleNextDeparture(s *NextEventScheduler) {
	if n.nextDeparture != nil {
		s.Cancel(n.nextDeparture)
		n.nextDeparture = nil
	}
	if len(n.jobs) == 0 {
		return
	}
	minJob := n.jobs[0]
	for _, j := range n.jobs[1:] {
		if j.RemainingService < minJob.RemainingService {
			minJob = j
		}
	}
	ttf := minJob.RemainingService * float64(len(n.jobs))
	if ttf < nodeEps {
		ttf = nodeEps
	}
	e := NewEvent(Departure, n.name, minJob.ID, minJob.Class)
	n.nextDeparture = e
	s.ScheduleAt(e, s.Now()+ttf)
}
