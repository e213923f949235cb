package reactorsched

// Stats is a snapshot of scheduler-wide counters, taken without locks —
// values may be slightly inconsistent during concurrent operation, the
// same caveat flock.Stats documents.
//
// Example:
//
//	stats := sched.Stats()
//	fmt.Printf("rounds=%d dispatched=%d stolen=%d\n",
//	    stats.Rounds, stats.Dispatched, stats.Stolen)
type Stats struct {
	// Rounds is the number of dispatcher rounds run so far.
	Rounds uint64

	// Dispatched is the number of reactions placed onto a worker's ready
	// queue across all rounds.
	Dispatched uint64

	// Stolen is the number of reactions a worker obtained via the
	// one-hop steal rather than from its own ready queue.
	Stolen uint64

	// TagAdvances is the number of times AdvanceTag was called.
	TagAdvances uint64

	// WorkerStats holds one entry per worker, indexed by worker ID.
	WorkerStats []WorkerStats
}

// WorkerStats holds statistics for a single worker goroutine.
type WorkerStats struct {
	// WorkerID is the unique identifier for this worker (0-indexed).
	WorkerID int

	// Executed is the number of reactions this worker has run to
	// completion via done_with_reaction.
	Executed uint64

	// Stolen is the number of reactions this worker obtained from a
	// neighbor's ready queue rather than its own.
	Stolen uint64

	// ReadyDepth is a snapshot of this worker's ready queue length.
	ReadyDepth int

	// IsIdle reflects the worker's is_idle flag at snapshot time.
	IsIdle bool

	// ShouldStop reflects whether the stop tag has been signalled to
	// this worker.
	ShouldStop bool
}
