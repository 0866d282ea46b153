package sim

import (
	"math"
	"testing"
)

// constProcess is a fixed inter-arrival law for generator tests.
type constProcess struct{ gap float64 }

func (c constProcess) InterArrival(float64) float64 { return c.gap }

func TestArrivalGenerator_SelfSchedulesAtFixedGap(t *testing.T) {
	s := NewScheduler()
	g := NewArrivalGenerator(s, constProcess{gap: 2.0}, "web", 1)

	var times []float64
	s.Subscribe(Arrival, func(e *Event, sc *NextEventScheduler) {
		times = append(times, sc.Now())
	})

	for i := 0; i < 4 && s.HasNext(); i++ {
		s.Next()
	}

	want := []float64{0, 2, 4, 6}
	if len(times) != len(want) {
		t.Fatalf("arrivals: got %d, want %d", len(times), len(want))
	}
	for i := range want {
		if math.Abs(times[i]-want[i]) > 1e-12 {
			t.Errorf("arrival %d: got %v, want %v", i, times[i], want[i])
		}
	}
	if !g.Active() {
		t.Error("generator should still be active")
	}
}

func TestArrivalGenerator_SetActiveFalse_DrainsQueue(t *testing.T) {
	s := NewScheduler()
	g := NewArrivalGenerator(s, constProcess{gap: 1.0}, "web", 1)

	count := 0
	s.Subscribe(Arrival, func(e *Event, sc *NextEventScheduler) {
		count++
		if count == 3 {
			g.SetActive(false)
		}
	})

	for s.HasNext() {
		s.Next()
	}

	// the arrival scheduled before deactivation still dispatches
	if count != 4 {
		t.Errorf("arrivals after deactivation: got %d, want 4", count)
	}
}

func TestArrivalGenerator_IgnoresBootstrapAndForeignArrivals(t *testing.T) {
	s := NewScheduler()
	NewArrivalGenerator(s, constProcess{gap: 5.0}, "web", 1)

	// a bootstrap arrival and an internal hop at the target node
	s.ScheduleAt(NewBootstrapEvent("web", 1), 0)
	s.ScheduleAt(NewEvent(Arrival, "web", 42, 1), 0)

	count := 0
	s.Subscribe(Arrival, func(*Event, *NextEventScheduler) { count++ })

	// process the three t=0 events plus whatever they spawned up to t=5
	for i := 0; i < 4 && s.HasNext(); i++ {
		s.Next()
	}

	// only the generator's own external arrival triggered a reschedule:
	// 3 events at t=0 and exactly one follow-up at t=5
	if count != 4 {
		t.Errorf("dispatched arrivals: got %d, want 4", count)
	}
	if s.HasNext() {
		s.Next()
		if s.Now() != 10.0 {
			t.Errorf("next self-scheduled arrival at %v, want 10", s.Now())
		}
	}
}

func TestExponentialProcess_MeanMatchesRate(t *testing.T) {
	streams := NewStreams(3)
	p := NewExponentialProcess(4.0, streams)

	const n = 200000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += p.InterArrival(0)
	}
	got := sum / n
	if math.Abs(got-0.25) > 0.005 {
		t.Errorf("mean inter-arrival: got %v, want 0.25", got)
	}
}

func TestHyperExp2Process_MeanMatchesRate(t *testing.T) {
	streams := NewStreams(5)
	p := NewHyperExp2Process(2.0, 0.1, streams)

	const n = 400000
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += p.InterArrival(0)
	}
	got := sum / n
	// heavier-tailed than exponential, so a looser tolerance
	if math.Abs(got-0.5) > 0.02 {
		t.Errorf("mean inter-arrival: got %v, want 0.5", got)
	}
}

func TestSpikedProcess_WindowWithinPlacementBounds(t *testing.T) {
	streams := NewStreams(9)
	p := NewSpikedProcess(1.0, 50.0, streams)

	start, end := p.SpikeWindow()
	if start < defaultSpikeEarliest || start > defaultSpikeLatest {
		t.Errorf("spike start %v outside [%v, %v]", start, defaultSpikeEarliest, defaultSpikeLatest)
	}
	if end < start || end-start > defaultMaxSpikeLen {
		t.Errorf("spike window [%v, %v] longer than %v", start, end, defaultMaxSpikeLen)
	}
}

func TestSpikedProcess_ElevatedRateInsideWindow(t *testing.T) {
	streams := NewStreams(13)
	p := NewSpikedProcess(1.0, 100.0, streams)
	start, _ := p.SpikeWindow()

	const n = 100000
	inside, outside := 0.0, 0.0
	for i := 0; i < n; i++ {
		inside += p.InterArrival(start)
	}
	for i := 0; i < n; i++ {
		outside += p.InterArrival(0)
	}
	if math.Abs(inside/n-0.01) > 0.002 {
		t.Errorf("mean inside spike: got %v, want 0.01", inside/n)
	}
	if math.Abs(outside/n-1.0) > 0.02 {
		t.Errorf("mean outside spike: got %v, want 1.0", outside/n)
	}
}
