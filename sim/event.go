package sim

import "fmt"

// EventType distinguishes the two event streams dispatched by the scheduler.
type EventType int

const (
	// Arrival is a job arriving at a node, either from the external source
	// (JobID == ExternalJobID) or from an internal routing hop.
	Arrival EventType = iota
	// Departure is a job completing service at a node.
	Departure
)

func (t EventType) String() string {
	switch t {
	case Arrival:
		return "ARRIVAL"
	case Departure:
		return "DEPARTURE"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// ExternalJobID marks an arrival event whose job has not been created yet.
// The driver replaces it with a real job id before estimators see the event.
const ExternalJobID = -1

// Event is a scheduled occurrence in the simulation. Events are ordered by
// (Time, sequence id); the sequence id is assigned by the scheduler when the
// event is first scheduled, so construction order breaks time ties and the
// dispatch order is reproducible for a fixed seed.
//
// JobID is mutable: external arrivals are scheduled with ExternalJobID and
// patched by the driver once the job exists. Cancelled events stay in the
// heap and are skipped on pop (lazy deletion).
type Event struct {
	seq       int64
	Time      float64
	Type      EventType
	Server    string
	JobID     int
	JobClass  int
	cancelled bool
	bootstrap bool
}

// NewEvent builds an event for the given stream. The time is set by
// ScheduleAt/ScheduleAfter; the zero Time here is a placeholder.
func NewEvent(t EventType, server string, jobID, jobClass int) *Event {
	return &Event{Type: t, Server: server, JobID: jobID, JobClass: jobClass}
}

// NewBootstrapEvent builds a synthetic external arrival used to pre-populate
// the system at t=0. Arrival generators ignore bootstrap events so they do
// not trigger rescheduling.
func NewBootstrapEvent(server string, jobClass int) *Event {
	e := NewEvent(Arrival, server, ExternalJobID, jobClass)
	e.bootstrap = true
	return e
}

// Seq returns the scheduler-assigned sequence id (0 if never scheduled).
func (e *Event) Seq() int64 { return e.seq }

// Cancelled reports whether the event has been soft-cancelled.
func (e *Event) Cancelled() bool { return e.cancelled }

// Bootstrap reports whether this is a synthetic t=0 arrival.
func (e *Event) Bootstrap() bool { return e.bootstrap }

func (e *Event) String() string {
	return fmt.Sprintf("Event(t=%.6f, type=%s, server=%s, job=%d, class=%d)",
		e.Time, e.Type, e.Server, e.JobID, e.JobClass)
}

// before implements the total event order: primarily by time, ties broken by
// sequence id.
func (e *Event) before(o *Event) bool {
	if e.Time != o.Time {
		return e.Time < o.Time
	}
	return e.seq < o.seq
}
