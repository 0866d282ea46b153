package sim

import "container/heap"

// Handler is a callback invoked for every dispatched event of a subscribed
// type. The scheduler is passed alongside the event so handlers can read the
// just-advanced clock and schedule further events.
type Handler func(*Event, *NextEventScheduler)

// eventHeap implements heap.Interface and orders events by (time, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventHeap []*Event

func (eq eventHeap) Len() int           { return len(eq) }
func (eq eventHeap) Less(i, j int) bool { return eq[i].before(eq[j]) }
func (eq eventHeap) Swap(i, j int)      { eq[i], eq[j] = eq[j], eq[i] }

func (eq *eventHeap) Push(x any) {
	*eq = append(*eq, x.(*Event))
}

func (eq *eventHeap) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*eq = old[0 : n-1]
	return item
}

// NextEventScheduler processes events in chronological order and dispatches
// them to subscribed handlers. All state is per-instance: the sequence
// counter is owned by the scheduler, so independent runs never share it.
//
// Not safe for concurrent use; one simulation run is strictly
// single-threaded.
type NextEventScheduler struct {
	heap        eventHeap
	clock       float64
	seq         int64
	live        int
	subscribers map[EventType][]Handler
}

// clamp tolerance when a handler reschedules against a slightly stale clock
const schedEps = 1e-12

// NewScheduler returns an empty scheduler with the clock at zero.
func NewScheduler() *NextEventScheduler {
	return &NextEventScheduler{
		heap:        make(eventHeap, 0, 64),
		subscribers: make(map[EventType][]Handler),
	}
}

// Now returns the current simulation time.
func (s *NextEventScheduler) Now() float64 { return s.clock }

// ScheduleAt inserts the event at an absolute time. Times that precede the
// current clock are clamped to it, protecting against stale re-scheduling.
func (s *NextEventScheduler) ScheduleAt(e *Event, at float64) {
	if at < s.clock-schedEps {
		at = s.clock
	}
	e.Time = at
	s.push(e)
}

// ScheduleAfter inserts the event at the current clock plus delay.
// Negative delays are treated as zero.
func (s *NextEventScheduler) ScheduleAfter(e *Event, delay float64) {
	if delay < 0 {
		delay = 0
	}
	e.Time = s.clock + delay
	s.push(e)
}

func (s *NextEventScheduler) push(e *Event) {
	s.seq++
	e.seq = s.seq
	s.live++
	heap.Push(&s.heap, e)
}

// Cancel soft-cancels a scheduled event. The heap entry is skipped lazily on
// pop; cancelling twice is a no-op.
func (s *NextEventScheduler) Cancel(e *Event) {
	if e == nil || e.cancelled {
		return
	}
	e.cancelled = true
	s.live--
}

// Subscribe registers a handler for every dispatched event of the given
// type. Handlers are invoked in subscription order.
func (s *NextEventScheduler) Subscribe(t EventType, h Handler) {
	s.subscribers[t] = append(s.subscribers[t], h)
}

// HasNext reports whether any non-cancelled event remains.
func (s *NextEventScheduler) HasNext() bool { return s.live > 0 }

// Next pops the earliest non-cancelled event, advances the clock to
// max(clock, event time), and invokes the subscribed handlers for its type.
// It returns the dispatched event, or nil if the queue held only cancelled
// entries.
func (s *NextEventScheduler) Next() *Event {
	for len(s.heap) > 0 {
		e := heap.Pop(&s.heap).(*Event)
		if e.cancelled {
			continue
		}
		s.live--
		if e.Time > s.clock {
			s.clock = e.Time
		}
		for _, h := range s.subscribers[e.Type] {
			h(e, s)
		}
		return e
	}
	return nil
}
