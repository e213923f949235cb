package reactorsched

import (
	"sync"
	"sync/atomic"

	"github.com/Depetrol/reactor-sched/internal/pqueue"
	"github.com/Depetrol/reactor-sched/internal/vector"
)

// workerSlot holds everything the scheduler and a single worker goroutine
// share about one worker. It replaces flock's Worker: there is no local
// Chase-Lev deque and no MPSC queue, because the handoff shapes here are
// different from a general-purpose task pool's. A worker's ready queue is
// a priority queue guarded by the worker's own mutex (the dispatcher also
// takes it during placement); a worker's output and done buffers are
// plain vectors with no mutex at all, safe to touch lock-free because
// ownership is handed off purely through isIdle, following the
// acquire-release discipline described in spec.md's concurrency model.
type workerSlot struct {
	id int

	readyMu sync.Mutex
	ready   *pqueue.Queue

	// output and done are touched by this worker only while isIdle == 0,
	// and by the dispatcher only while it observes isIdle == 1. The CAS
	// on isIdle is the sole synchronization point; Go's atomic ops give
	// the necessary happens-before edge across that single bit.
	output *vector.Vector[*Reaction]
	done   *vector.Vector[*Reaction]

	isIdle     atomic.Int32
	shouldStop atomic.Bool

	parkMu   sync.Mutex
	parkCond *sync.Cond

	executed atomic.Uint64
	stolen   atomic.Uint64
}

func newWorkerSlot(id, queueCapacity int) *workerSlot {
	w := &workerSlot{
		id:     id,
		ready:  pqueue.New(queueCapacity),
		output: vector.New[*Reaction](queueCapacity),
		done:   vector.New[*Reaction](queueCapacity),
	}
	w.parkCond = sync.NewCond(&w.parkMu)
	return w
}

// park blocks the worker until woken by notify or told to stop. Callers
// must have already lost the dispatcher election and failed to find work
// locally or by stealing. notify clears isIdle before it signals, so a
// worker whose flag is already cleared has been handed work and does not
// wait for a signal that may already have been sent.
func (w *workerSlot) park() {
	w.parkMu.Lock()
	for w.isIdle.Load() == 1 && !w.shouldStop.Load() {
		w.parkCond.Wait()
	}
	w.parkMu.Unlock()
}

// wake signals a parked worker. Safe to call whether or not the worker is
// actually parked at the moment: sync.Cond.Signal on a condition no one
// is waiting on is simply a no-op.
func (w *workerSlot) wake() {
	w.parkMu.Lock()
	w.parkCond.Signal()
	w.parkMu.Unlock()
}

// stop marks the worker for shutdown and wakes it if parked.
func (w *workerSlot) stop() {
	w.shouldStop.Store(true)
	w.parkMu.Lock()
	w.parkCond.Broadcast()
	w.parkMu.Unlock()
}

func (w *workerSlot) readyLen() int {
	w.readyMu.Lock()
	defer w.readyMu.Unlock()
	return w.ready.Len()
}
