// Package reactorsched implements a Partitioned Earliest-Deadline-First,
// Non-Preemptive (PEDF-NP) scheduler for a deterministic reactor runtime.
//
// At each logical tag a set of reactions becomes eligible for execution.
// The scheduler dispatches them to a fixed pool of worker goroutines while
// preserving a partial order defined by each reaction's level and chain
// ID, advances logical time via a host-supplied TagAdvancer when nothing
// remains to do, and terminates cleanly once the stop tag is reached.
//
// # Key Features
//
//   - Priority-ordered ready queue keyed on a packed deadline:level index
//   - Precedence filtering over reactions currently executing or blocked
//     this round
//   - Lock-free per-worker output/done handoff buffers, gated by each
//     worker's idle flag as an acquire-release barrier
//   - A single-dispatcher-at-a-time election via CAS, with per-worker
//     condition variables for park/wake
//   - One-hop work stealing from a neighbor when a worker's ready queue
//     is empty
//
// # Quick Start
//
//	sched, err := reactorsched.New(myTagAdvancer, reactorsched.WithNumWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sched.Close()
//
//	sched.TriggerReaction(r, reactorsched.Anonymous)
//
//	for {
//	    reaction, ok := sched.GetReadyReaction(workerID)
//	    if !ok {
//	        break // stop tag reached
//	    }
//	    run(reaction)
//	    sched.DoneWithReaction(workerID, reaction)
//	}
//
// # Concurrency model
//
// One dispatcher round runs at a time, elected by a worker that finds
// itself out of work via a compare-and-swap on an internal flag. Workers
// never busy-loop: after failing to find work locally and by stealing,
// each either runs the dispatcher round itself or parks on a condition
// variable until signalled.
//
// # Error Handling
//
// Invalid configuration is returned as an error from New. Any violation
// of the scheduler's internal invariants (an unexpected status
// transition, for example) is logged as a single structured diagnostic
// and aborts the process — there is no recovery path for a broken
// invariant, by design (see spec error taxonomy).
package reactorsched
