package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// drainTailEvents caps the number of events processed after the external
// source is switched off, so a pathological network cannot keep the drain
// phase alive forever.
const drainTailEvents = 5000

// Simulation is the driver of one run. It owns the scheduler, the network
// and the job table, assigns ids to external arrivals, executes routing
// decisions, and maintains the EXIT projection the estimators read.
//
// Subscription order is the backbone of the event protocol and is fixed by
// construction order: the arrival generator first (it must see the external
// marker id before the driver patches it), the driver second (it assigns
// ids and projects routing decisions), the estimators last (they observe
// fully resolved events).
type Simulation struct {
	cfg  *SimulationConfig
	rate float64

	sched   *NextEventScheduler
	jobs    *JobTable
	streams *Streams
	network *Network
	router  Router
	exits   *ExitMap
	gen     *ArrivalGenerator
	stats   *StatsCollector
	batch   *BatchMeansWindow

	means map[string]map[int]float64

	externalArrivals int64
	completedJobs    int64
	forcedExits      int64
	droppedJobs      int64
	exitsByNode      map[string]int64

	measuring bool
}

// NewSimulation assembles a run for one arrival rate. The rate parameter is
// the entry from cfg.Arrival.Rates selected by the caller; the Coxian
// process ignores it.
func NewSimulation(cfg *SimulationConfig, rate float64) (*Simulation, error) {
	sim := &Simulation{
		cfg:         cfg,
		rate:        rate,
		sched:       NewScheduler(),
		jobs:        NewJobTable(),
		means:       cfg.ServiceMeansMatrix(),
		exitsByNode: make(map[string]int64),
	}

	network, err := NewNetwork(sim.means, cfg.Discipline, sim.jobs)
	if err != nil {
		return nil, err
	}
	sim.network = network

	// Streams are derived from package-level rngstream state in creation
	// order, so every stream this run will touch is created here, in a
	// fixed order, before any draw happens.
	sim.streams = NewStreams(cfg.Seed)
	for _, name := range []string{StreamArrivals, StreamArrivalPhase, StreamSpike, StreamRouting, StreamBalance} {
		sim.streams.Stream(name)
	}
	for _, node := range network.Names() {
		sim.streams.Stream(ServiceStream(node))
	}

	if err := sim.buildRouter(); err != nil {
		return nil, err
	}

	for i := 0; i < cfg.InitialArrivals; i++ {
		sim.sched.ScheduleAt(NewBootstrapEvent(cfg.Arrival.TargetNode, cfg.Arrival.JobClass), 0)
	}

	process, err := sim.buildArrivalProcess()
	if err != nil {
		return nil, err
	}
	sim.gen = NewArrivalGenerator(sim.sched, process, cfg.Arrival.TargetNode, cfg.Arrival.JobClass)

	sim.sched.Subscribe(Arrival, sim.onArrival)
	sim.sched.Subscribe(Departure, sim.onDeparture)

	sim.stats = NewStatsCollector(sim.sched, sim.exits, network.Names(), cfg.TrackedNodes)
	sim.batch = NewBatchMeansWindow(sim.sched, sim.exits, cfg.BatchLength, cfg.MaxBatches)
	return sim, nil
}

func (sim *Simulation) buildRouter() error {
	switch sim.cfg.Routing.Mode {
	case RoutingDeterministic:
		matrix := sim.cfg.DeterministicMatrix()
		sim.router = NewDeterministicRouter(matrix)
		sim.exits = NewExitMapFromMatrix(matrix)
		return nil
	case RoutingBalanced:
		policy, err := ParseBalancingPolicy(sim.cfg.Routing.Balancing)
		if err != nil {
			return err
		}
		var lb LoadBalancer
		switch policy {
		case BalanceRandom:
			lb, err = NewRandomBalancer(sim.streams.Stream(StreamBalance))
			if err != nil {
				return err
			}
		case BalanceLeastBusy:
			lb = NewLeastBusyBalancer(sim.network)
		default:
			lb = NewRoundRobinBalancer()
		}
		r, err := NewBalancedRouter(sim.cfg.BalancedTable(), lb)
		if err != nil {
			return err
		}
		sim.router = r
		sim.exits = NewExitMap()
		return nil
	case RoutingProbabilistic:
		r, err := NewProbabilisticRouter(sim.cfg.ProbabilisticTable(), sim.streams.Stream(StreamRouting))
		if err != nil {
			return err
		}
		sim.router = r
		sim.exits = NewExitMap()
		return nil
	default:
		return fmt.Errorf("simulation: unknown routing mode %q", sim.cfg.Routing.Mode)
	}
}

func (sim *Simulation) buildArrivalProcess() (ArrivalProcess, error) {
	a := &sim.cfg.Arrival
	switch a.Process {
	case ProcessExponential:
		return NewExponentialProcess(sim.rate, sim.streams), nil
	case ProcessHyperExp:
		return NewHyperExp2Process(sim.rate, a.HyperP, sim.streams), nil
	case ProcessCoxian:
		return NewCoxianProcess(a.CoxianRates, a.CoxianProbs, sim.streams)
	case ProcessSpiked:
		return NewSpikedProcess(sim.rate, a.SpikeRate, sim.streams), nil
	default:
		return nil, fmt.Errorf("simulation: unknown arrival process %q", a.Process)
	}
}

// sampleService draws an exponential service time for the given node and
// class. The second return value is false when the node has no mean for the
// class, which the caller treats as a recoverable configuration gap.
func (sim *Simulation) sampleService(node string, class int) (float64, bool) {
	byClass, ok := sim.means[node]
	if !ok {
		return 0, false
	}
	mean, ok := byClass[class]
	if !ok {
		return 0, false
	}
	return IDFExponential(mean, sim.streams.U01(ServiceStream(node))), true
}

func (sim *Simulation) onArrival(e *Event, s *NextEventScheduler) {
	if e.JobID == ExternalJobID {
		svc, ok := sim.sampleService(e.Server, e.JobClass)
		if !ok {
			logrus.Errorf("dropping external arrival: node %q has no service mean for class %d", e.Server, e.JobClass)
			return
		}
		job := sim.jobs.New(e.JobClass, s.Now(), svc)
		e.JobID = job.ID
		sim.externalArrivals++
	}
	job := sim.jobs.Get(e.JobID)
	if job == nil {
		return
	}
	node := sim.network.Node(e.Server)
	if node == nil {
		logrus.Errorf("arrival at unknown node %q", e.Server)
		return
	}
	node.Arrival(job, s)
}

func (sim *Simulation) onDeparture(e *Event, s *NextEventScheduler) {
	job := sim.jobs.Get(e.JobID)
	if job == nil {
		return
	}
	node := sim.network.Node(e.Server)
	if node == nil {
		logrus.Errorf("departure from unknown node %q", e.Server)
		return
	}
	node.Departure(job, s)

	hop, ok := sim.router.Next(e.Server, e.JobClass)
	if !ok {
		logrus.Errorf("dropping job %d: no routing rule for (%s, class=%d)", job.ID, e.Server, e.JobClass)
		sim.dropJob(job, s.Now())
		return
	}
	// the projection must be current before the estimators observe this
	// departure
	if sim.router.Dynamic() {
		sim.exits.Set(e.Server, e.JobClass, hop.IsExit())
	}

	if hop.IsExit() {
		sim.completeJob(job, e.Server, s.Now())
		return
	}

	job.Hops++
	if sim.cfg.SafetyMaxHops > 0 && job.Hops > sim.cfg.SafetyMaxHops {
		logrus.Warnf("forcing exit of job %d after %d hops at node %s", job.ID, job.Hops, e.Server)
		sim.forceExit(job, e.Server, s.Now())
		return
	}

	svc, ok := sim.sampleService(hop.Target, hop.Class)
	if !ok {
		logrus.Errorf("dropping job %d: node %q has no service mean for class %d", job.ID, hop.Target, hop.Class)
		sim.dropJob(job, s.Now())
		return
	}
	job.Class = hop.Class
	job.RemainingService = svc
	next := NewEvent(Arrival, hop.Target, job.ID, hop.Class)
	s.ScheduleAt(next, s.Now())
}

// completeJob finalizes a normally exiting job. The estimators account for
// it through the EXIT projection when they observe the departure event.
func (sim *Simulation) completeJob(job *Job, fromNode string, now float64) {
	sim.completedJobs++
	sim.exitsByNode[fromNode]++
	sim.jobs.Remove(job.ID)
	sim.checkWarmup(now)
}

// dropJob abandons a job on a recoverable configuration gap. The drop is
// bridged into the estimators so the population slot is released; no
// completion and no response-time sample are recorded, keeping the job out
// of every metric's denominator exactly once.
func (sim *Simulation) dropJob(job *Job, now float64) {
	sim.droppedJobs++
	sim.jobs.Remove(job.ID)
	sim.stats.NotifyDrop(job.ID, now)
	sim.batch.NotifyDrop(job.ID, now)
}

// forceExit removes a job that exceeded the hop limit. The departure event
// being dispatched is not EXIT-projected, so the estimators are told
// explicitly; the job still counts as a completion for warm-up purposes.
func (sim *Simulation) forceExit(job *Job, fromNode string, now float64) {
	sim.forcedExits++
	sim.exitsByNode[fromNode]++
	sim.jobs.Remove(job.ID)
	sim.stats.NotifyForcedExit(job.ID, now)
	sim.batch.NotifyForcedExit(job.ID, now)
	sim.checkWarmup(now)
}

func (sim *Simulation) checkWarmup(now float64) {
	if sim.measuring {
		return
	}
	if sim.completedJobs+sim.forcedExits >= sim.cfg.WarmupCompletions {
		sim.startMeasurement(now)
	}
}

func (sim *Simulation) startMeasurement(now float64) {
	sim.measuring = true
	sim.stats.StartMeasurement(now)
	sim.batch.StartAt(now)
	logrus.Debugf("measurement started at t=%.6f after %d completions", now, sim.completedJobs+sim.forcedExits)
}

// Run processes events until the budget is exhausted. After MaxEvents
// dispatches the external source is switched off and in-flight jobs drain,
// bounded by drainTailEvents. The returned report covers the measurement
// window.
func (sim *Simulation) Run() *Report {
	if sim.cfg.WarmupCompletions <= 0 {
		sim.startMeasurement(sim.sched.Now())
	}

	var count int64
	for sim.sched.HasNext() {
		if sim.sched.Next() == nil {
			break
		}
		count++
		if count >= sim.cfg.MaxEvents && sim.gen.Active() {
			sim.gen.SetActive(false)
			logrus.Debugf("event budget reached at t=%.6f, draining", sim.sched.Now())
		}
		if count >= sim.cfg.MaxEvents+drainTailEvents {
			break
		}
	}

	now := sim.sched.Now()
	report := sim.stats.Collect(now)
	report.Seed = sim.cfg.Seed
	report.ExternalArrivals = sim.externalArrivals
	report.CompletedJobs = sim.completedJobs
	report.ForcedExits = sim.forcedExits
	report.DroppedJobs = sim.droppedJobs
	report.ExitsByNode = sim.exitsByNode
	report.Batches = sim.batch.Batches()
	report.BatchSummary = Summarize(report.Batches)
	return report
}

// Rate returns the external arrival rate this run was built with.
func (sim *Simulation) Rate() float64 { return sim.rate }

// Scheduler exposes the run's scheduler, mainly for tests.
func (sim *Simulation) Scheduler() *NextEventScheduler { return sim.sched }
