// Package sim provides a next-event discrete-event simulation engine for
// open queueing networks modeling multi-tier service systems.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - event.go: the Event value type and its (time, sequence) total order
//   - scheduler.go: the event heap, publish/subscribe dispatch, and the clock
//   - simulation.go: the driver that wires network, router, arrivals and
//     statistics together and runs the event loop
//
// # Architecture
//
// A Simulation owns exactly one NextEventScheduler, one Network of Nodes
// (processor-sharing or FIFO service discipline), one Router (deterministic,
// probabilistic, or load-balanced), one external ArrivalGenerator, and a
// StatsCollector.
// Estimators subscribe to the scheduler's ARRIVAL/DEPARTURE streams at
// construction time and update themselves incrementally; nothing in the hot
// path blocks or performs I/O.
//
// Subscription order matters and is fixed by construction order: the arrival
// generator observes external arrivals first (before a job id is assigned),
// the driver's handlers run second (assigning ids, moving jobs, projecting
// routing decisions), and all estimators run last, so they always observe a
// fully resolved event.
//
// # Determinism
//
// All randomness flows through named rngstream streams derived from a single
// per-run master seed (see rng.go). For a fixed seed and configuration, two
// runs produce an identical event dispatch order and identical final metrics.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Node: service discipline at one station (processor sharing, FIFO)
//   - Router: next-hop decision for a job leaving a node
//   - LoadBalancer: candidate choice for balanced routing rules
//   - ArrivalProcess: inter-arrival law for the external source
package sim
