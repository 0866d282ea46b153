package sim

import "fmt"

// Job is a unit of work flowing through the network. The class changes as
// the job is routed; the arrival time is fixed at creation. RemainingService
// is expressed in seconds of dedicated service and is decremented by the
// node disciplines as the job is served.
type Job struct {
	ID               int
	Class            int
	ArrivalTime      float64
	RemainingService float64

	// Hops counts routing decisions taken for this job; the driver forces
	// an EXIT when it exceeds the configured safety limit.
	Hops int
}

func (j *Job) String() string {
	return fmt.Sprintf("Job(id=%d, class=%d, arr=%.6f, rem=%.6f)", j.ID, j.Class, j.ArrivalTime, j.RemainingService)
}

// JobTable is the arena that owns every in-flight job, keyed by id. It is
// created per run by the Simulation and passed by reference to the
// components that need lookups, so no process-wide state is shared between
// runs. Ids are assigned from a per-table monotonic counter.
type JobTable struct {
	nextID int
	jobs   map[int]*Job
}

// NewJobTable returns an empty arena with ids starting at 0.
func NewJobTable() *JobTable {
	return &JobTable{jobs: make(map[int]*Job)}
}

// New creates a job, assigns it the next id, and registers it in the table.
func (t *JobTable) New(class int, arrivalTime, serviceTime float64) *Job {
	j := &Job{
		ID:               t.nextID,
		Class:            class,
		ArrivalTime:      arrivalTime,
		RemainingService: serviceTime,
	}
	t.nextID++
	t.jobs[j.ID] = j
	return j
}

// Get returns the job with the given id, or nil if it has already exited.
func (t *JobTable) Get(id int) *Job { return t.jobs[id] }

// Remove deletes a job from the table. Called exactly once, at EXIT.
func (t *JobTable) Remove(id int) { delete(t.jobs, id) }

// Len returns the number of in-flight jobs.
func (t *JobTable) Len() int { return len(t.jobs) }
