package sim

import (
	"testing"
)

func TestScheduler_DispatchesInTimeOrder(t *testing.T) {
	s := NewScheduler()
	var got []string
	s.Subscribe(Arrival, func(e *Event, _ *NextEventScheduler) {
		got = append(got, e.Server)
	})

	s.ScheduleAt(NewEvent(Arrival, "b", 0, 1), 2.0)
	s.ScheduleAt(NewEvent(Arrival, "a", 1, 1), 1.0)
	s.ScheduleAt(NewEvent(Arrival, "c", 2, 1), 3.0)

	for s.HasNext() {
		s.Next()
	}

	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order: got %v, want %v", got, want)
		}
	}
	if s.Now() != 3.0 {
		t.Errorf("clock after drain: got %v, want 3", s.Now())
	}
}

func TestScheduler_TimeTie_BrokenBySchedulingOrder(t *testing.T) {
	// GIVEN two events at the same time, scheduled in a known order
	s := NewScheduler()
	var got []int
	s.Subscribe(Departure, func(e *Event, _ *NextEventScheduler) {
		got = append(got, e.JobID)
	})
	s.ScheduleAt(NewEvent(Departure, "n", 10, 1), 5.0)
	s.ScheduleAt(NewEvent(Departure, "n", 20, 1), 5.0)

	for s.HasNext() {
		s.Next()
	}

	// THEN the first-scheduled event dispatches first
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Errorf("tie-break order: got %v, want [10 20]", got)
	}
}

func TestScheduler_Cancel_SkipsEvent(t *testing.T) {
	s := NewScheduler()
	fired := 0
	s.Subscribe(Departure, func(*Event, *NextEventScheduler) { fired++ })

	e1 := NewEvent(Departure, "n", 1, 1)
	e2 := NewEvent(Departure, "n", 2, 1)
	s.ScheduleAt(e1, 1.0)
	s.ScheduleAt(e2, 2.0)
	s.Cancel(e1)

	for s.HasNext() {
		s.Next()
	}
	if fired != 1 {
		t.Errorf("dispatched events: got %d, want 1", fired)
	}
	if !e1.Cancelled() {
		t.Error("cancelled event should report Cancelled")
	}
}

func TestScheduler_CancelTwice_NoDoubleDecrement(t *testing.T) {
	s := NewScheduler()
	e1 := NewEvent(Arrival, "n", 1, 1)
	e2 := NewEvent(Arrival, "n", 2, 1)
	s.ScheduleAt(e1, 1.0)
	s.ScheduleAt(e2, 2.0)

	s.Cancel(e1)
	s.Cancel(e1)

	if !s.HasNext() {
		t.Fatal("one live event should remain after double cancel")
	}
}

func TestScheduler_ScheduleInPast_ClampedToClock(t *testing.T) {
	s := NewScheduler()
	var dispatched []float64
	s.Subscribe(Arrival, func(e *Event, sc *NextEventScheduler) {
		dispatched = append(dispatched, sc.Now())
		if sc.Now() == 5.0 && len(dispatched) == 1 {
			// a handler rescheduling against a stale clock
			sc.ScheduleAt(NewEvent(Arrival, "n", 2, 1), 1.0)
		}
	})
	s.ScheduleAt(NewEvent(Arrival, "n", 1, 1), 5.0)

	for s.HasNext() {
		s.Next()
	}

	if len(dispatched) != 2 {
		t.Fatalf("dispatched: got %d events, want 2", len(dispatched))
	}
	if dispatched[1] != 5.0 {
		t.Errorf("past-scheduled event should run at the clamped clock, got %v", dispatched[1])
	}
}

func TestScheduler_ScheduleAfter_NegativeDelayIsZero(t *testing.T) {
	s := NewScheduler()
	e := NewEvent(Arrival, "n", 1, 1)
	s.ScheduleAfter(e, -3.0)
	if e.Time != 0 {
		t.Errorf("negative delay: got time %v, want 0", e.Time)
	}
}

func TestScheduler_SubscriptionOrder_Preserved(t *testing.T) {
	// handlers for one event type run in the order they subscribed
	s := NewScheduler()
	var got []string
	s.Subscribe(Arrival, func(*Event, *NextEventScheduler) { got = append(got, "first") })
	s.Subscribe(Arrival, func(*Event, *NextEventScheduler) { got = append(got, "second") })
	s.ScheduleAt(NewEvent(Arrival, "n", 1, 1), 1.0)
	s.Next()

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("handler order: got %v", got)
	}
}

func TestScheduler_Next_OnlyCancelledEntries_ReturnsNil(t *testing.T) {
	s := NewScheduler()
	e := NewEvent(Arrival, "n", 1, 1)
	s.ScheduleAt(e, 1.0)
	s.Cancel(e)

	if s.HasNext() {
		t.Error("HasNext should be false with only cancelled entries")
	}
	if got := s.Next(); got != nil {
		t.Errorf("Next over cancelled entries: got %v, want nil", got)
	}
}
