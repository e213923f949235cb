package reactorsched

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Depetrol/reactor-sched/internal/pqueue"
	"github.com/Depetrol/reactor-sched/internal/vector"
	"go.uber.org/zap"
)

// Anonymous is the worker ID a host passes to TriggerReaction when the
// triggering context is not itself a worker (startup, an external event,
// a federated network handler). Reactions triggered this way go straight
// onto the global reaction queue rather than a specific worker's output
// buffer, since there is no worker to attribute affinity to.
const Anonymous = -1

// Scheduler implements the partitioned, earliest-deadline-first,
// non-preemptive dispatch policy described in the package doc comment.
// It replaces flock.Pool: there are no task closures and no fire-and-
// forget Submit; the unit of work is a Reaction moving through the
// Inactive/Queued/Running lifecycle under the caller's own control.
//
// A Scheduler does not spawn worker goroutines itself. The host starts
// one goroutine per worker ID and drives it with a loop of
// GetReadyReaction / run / DoneWithReaction, mirroring the original
// runtime's own thread_create contract: creating and joining threads is
// the host's responsibility, not the scheduler's.
type Scheduler struct {
	cfg    Config
	logger *zap.Logger

	workers []*workerSlot

	mu             sync.Mutex
	reactionQ      *pqueue.Queue
	executingQ     *pqueue.Queue
	transferQ      *vector.Vector[*Reaction]
	balancingIndex int

	schedulingInProgress atomic.Bool
	closed               atomic.Bool

	rounds      atomic.Uint64
	dispatched  atomic.Uint64
	stolenTotal atomic.Uint64
	tagAdvances atomic.Uint64
}

// New creates a Scheduler with the given TagAdvancer and options. It
// returns an error if the resulting configuration is invalid; no
// goroutines are started as a side effect of New, matching the zero-
// background-work contract flock.NewPool does not hold (flock spawns its
// workers eagerly, but this scheduler has no workers of its own to
// spawn).
func New(tagAdvancer TagAdvancer, opts ...Option) (*Scheduler, error) {
	cfg := DefaultConfig()
	cfg.TagAdvancer = tagAdvancer

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	s := &Scheduler{
		cfg:        cfg,
		logger:     logger,
		reactionQ:  pqueue.New(cfg.InitialQueueCapacity),
		executingQ: pqueue.New(cfg.NumWorkers),
		transferQ:  vector.New[*Reaction](cfg.InitialQueueCapacity),
		workers:    make([]*workerSlot, cfg.NumWorkers),
	}
	for i := range s.workers {
		s.workers[i] = newWorkerSlot(i, cfg.InitialQueueCapacity)
	}

	return s, nil
}

// NumWorkers returns the number of workers this scheduler manages.
func (s *Scheduler) NumWorkers() int {
	return len(s.workers)
}

// Close marks the scheduler closed and wakes every worker so that any
// goroutine blocked in GetReadyReaction returns (nil, false) rather than
// parking forever. Close does not wait for those goroutines to exit;
// callers that need that guarantee should synchronize on their own
// worker loops, the same separation of concerns as thread_join in the
// original runtime.
func (s *Scheduler) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.stopAll()
}

// TriggerReaction moves r from Inactive to Queued and makes it visible to
// the scheduler. Pass Anonymous for workerID when the caller is not
// itself a worker; the reaction goes directly onto the global reaction
// queue under the scheduler's mutex. Otherwise workerID must be the ID of
// the worker making the call: the reaction is appended to that worker's
// output buffer without taking any lock, relying on the worker's own
// isIdle==0 state as the sole synchronization the handoff needs, and its
// WorkerAffinity is set to workerID so that placement prefers sending it
// right back to the triggering worker.
//
// If r is not Inactive, TriggerReaction is a no-op: the scheduler only
// ever holds one outstanding (Queued or Running) occurrence of a given
// Reaction at a time, the same invariant lf_sched_trigger_reaction
// enforces via its own failed-CAS-is-fine short circuit.
func (s *Scheduler) TriggerReaction(r *Reaction, workerID int) error {
	if s.closed.Load() {
		return ErrClosed
	}

	if workerID == Anonymous {
		s.mu.Lock()
		if r.casStatus(Inactive, Queued) {
			s.reactionQ.Insert(r)
		}
		s.mu.Unlock()
		return nil
	}

	if workerID < 0 || workerID >= len(s.workers) {
		return newInvalidConfigError("workerID out of range")
	}

	if r.casStatus(Inactive, Queued) {
		r.WorkerAffinity = workerID
		s.workers[workerID].output.Push(r)
	}
	return nil
}

// GetReadyReaction blocks until a Reaction is available for workerID to
// run, it is stolen from a neighboring worker, or the stop tag has been
// reached, in which case it returns (nil, false). Every call that
// returns a Reaction must be paired with exactly one later call to
// DoneWithReaction for that same Reaction and workerID.
func (s *Scheduler) GetReadyReaction(workerID int) (*Reaction, bool) {
	w := s.workers[workerID]

	for {
		if r, ok := s.popOwn(w); ok {
			return r, true
		}

		if r, ok := s.tryStealOneHop(w); ok {
			return r, true
		}

		if w.shouldStop.Load() {
			return nil, false
		}

		s.waitForWork(w)

		if w.shouldStop.Load() {
			if r, ok := s.popOwn(w); ok {
				return r, true
			}
			return nil, false
		}
	}
}

func (s *Scheduler) popOwn(w *workerSlot) (*Reaction, bool) {
	w.readyMu.Lock()
	defer w.readyMu.Unlock()
	item, ok := w.ready.Pop()
	if !ok {
		return nil, false
	}
	return item.(*Reaction), true
}

// tryStealOneHop attempts to take the single highest-priority reaction
// off the next worker's ready queue, the one-hop steal spec.md §4.4
// prescribes in place of the full work-stealing search flock's Worker
// performs across every other worker with exponential backoff.
func (s *Scheduler) tryStealOneHop(w *workerSlot) (*Reaction, bool) {
	n := len(s.workers)
	if n <= 1 {
		return nil, false
	}
	victim := s.workers[(w.id+1)%n]
	victim.readyMu.Lock()
	item, ok := victim.ready.Pop()
	victim.readyMu.Unlock()
	if !ok {
		return nil, false
	}
	w.stolen.Add(1)
	s.stolenTotal.Add(1)
	return item.(*Reaction), true
}

// waitForWork implements the single-dispatcher election: a worker that
// finds itself with nothing to do marks itself idle, then races every
// other similarly idle worker via CAS for the right to run the next
// dispatcher round. The loser parks; the winner runs the round, clears
// its own idle flag, and releases the election so a later idle worker
// can win the next one.
func (s *Scheduler) waitForWork(w *workerSlot) {
	w.isIdle.CompareAndSwap(0, 1)

	if s.schedulingInProgress.CompareAndSwap(false, true) {
		s.runDispatchRound()
		w.isIdle.CompareAndSwap(1, 0)
		s.schedulingInProgress.Store(false)
		return
	}

	w.park()
}

// DoneWithReaction marks r finished: r must currently be Running. It is
// appended to workerID's done buffer without any lock, relying on the
// same isIdle handoff TriggerReaction's worker-originated path uses; the
// dispatcher removes it from the executing queue the next time it
// observes this worker idle.
func (s *Scheduler) DoneWithReaction(workerID int, r *Reaction) {
	if !r.casStatus(Running, Inactive) {
		s.fatalInvariant("reaction was not Running at completion",
			zap.Uint64("index", r.Index), zap.String("status", r.Status().String()))
	}
	w := s.workers[workerID]
	w.done.Push(r)
	w.executed.Add(1)
}

// Stats returns a snapshot of scheduler-wide and per-worker counters,
// taken without locks per the same caveat flock.Pool.Stats documents.
func (s *Scheduler) Stats() Stats {
	workerStats := make([]WorkerStats, len(s.workers))
	for i, w := range s.workers {
		workerStats[i] = WorkerStats{
			WorkerID:   i,
			Executed:   w.executed.Load(),
			Stolen:     w.stolen.Load(),
			ReadyDepth: w.readyLen(),
			IsIdle:     w.isIdle.Load() == 1,
			ShouldStop: w.shouldStop.Load(),
		}
	}
	return Stats{
		Rounds:      s.rounds.Load(),
		Dispatched:  s.dispatched.Load(),
		Stolen:      s.stolenTotal.Load(),
		TagAdvances: s.tagAdvances.Load(),
		WorkerStats: workerStats,
	}
}
