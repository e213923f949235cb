package reactorsched

import (
	"github.com/Depetrol/reactor-sched/internal/pqueue"
	"go.uber.org/zap"
)

// runDispatchRound performs one round of the single-dispatcher protocol:
// drain every idle worker's output and done buffers into the global
// queues, advance the tag if everything is quiescent, distribute ready
// reactions onto idle workers (or defer them to the transfer vector when
// none is free), fold the transfer vector back into the reaction queue,
// and reset the round-robin placement cursor. Called by the winner of the
// dispatcher election; it takes s.mu for the round and releases it before
// notifying workers. Returns whether the stop tag was reached.
func (s *Scheduler) runDispatchRound() bool {
	s.mu.Lock()

	s.drainWorkerBuffers()

	stop := false
	if s.reactionQ.Len() == 0 && s.executingQ.Len() == 0 {
		// Open Question #1 (spec.md §9): advance only when the
		// executing queue is observed empty here, rather than
		// asserting it and advancing unconditionally. A reaction still
		// running this tag must be allowed to finish before time moves.
		stop = s.cfg.TagAdvancer.AdvanceTag()
		s.tagAdvances.Add(1)
	}

	dirty := s.distributeReadyReactions()
	s.balancingIndex = 0
	s.rounds.Add(1)

	s.mu.Unlock()

	s.notify(dirty)
	if stop {
		s.stopAll()
	}
	return stop
}

// drainWorkerBuffers moves every idle worker's newly triggered
// (output) and newly completed (done) reactions into the global queues.
// It only touches a worker's buffers while that worker's isIdle flag
// reads 1 — the handoff barrier described in the package doc comment —
// so a worker that wakes up and starts mutating its own buffers mid-drain
// is never observed here.
func (s *Scheduler) drainWorkerBuffers() {
	for _, w := range s.workers {
		if w.isIdle.Load() != 1 {
			continue
		}
		for {
			r, ok := w.output.Pop()
			if !ok {
				break
			}
			s.reactionQ.Insert(r)
		}
		for {
			r, ok := w.done.Pop()
			if !ok {
				break
			}
			if !s.executingQ.Remove(r) {
				s.fatalInvariant("done reaction missing from executing queue",
					zap.Uint64("index", r.Index), zap.Int("worker", w.id))
			}
		}
	}
}

// distributeReadyReactions pops every reaction currently in the global
// reaction queue, placing each on an idle worker unless it is blocked by
// a reaction that is already executing or itself waiting out this round,
// in which case it is deferred to the transfer vector. It returns the
// worker IDs that received a reaction this round, one entry per placement
// in placement order (a worker that received two appears twice), so notify
// only wakes workers worth waking. Must be called with s.mu held.
func (s *Scheduler) distributeReadyReactions() []int {
	var dirty []int
	for {
		item, ok := s.reactionQ.Pop()
		if !ok {
			break
		}
		r := item.(*Reaction)

		if s.isBlocked(r) {
			s.transferQ.Push(r)
			continue
		}

		if workerID, ok := s.place(r); ok {
			s.executingQ.Insert(r)
			s.dispatched.Add(1)
			dirty = append(dirty, workerID)
		} else {
			s.transferQ.Push(r)
		}
	}

	// Fold deferred reactions back into the reaction queue for the next
	// round. Per spec.md §9's second Open Question, this always walks
	// the stored pointers directly rather than reinterpreting the
	// vector's backing array, so a grow/shrink that happened mid-round
	// can never produce a stale read.
	s.transferQ.Each(func(r *Reaction) {
		s.reactionQ.Insert(r)
	})
	for {
		if _, ok := s.transferQ.Pop(); !ok {
			break
		}
	}
	s.transferQ.Vote()

	return dirty
}

// isBlocked reports whether r is blocked by precedence from some
// reaction that is already executing or deferred to the transfer vector
// this round: any such reaction with a strictly lower level and an
// overlapping chain ID must run first. The fast path skips the scan
// entirely when r's index is at or below the lowest index currently
// executing, i.e. when r sorts at or ahead of everything in the executing
// queue. Must be called with s.mu held.
func (s *Scheduler) isBlocked(r *Reaction) bool {
	if head, ok := s.executingQ.Peek(); ok && head.Key() >= r.Index {
		return false
	}

	blocked := false
	s.executingQ.Each(func(item pqueue.Item) {
		if q, ok := item.(*Reaction); ok && precedes(q, r) {
			blocked = true
		}
	})
	if blocked {
		return true
	}
	s.transferQ.Each(func(q *Reaction) {
		if precedes(q, r) {
			blocked = true
		}
	})
	return blocked
}

// place scans workers starting at max(r.WorkerAffinity, s.balancingIndex)
// for the first idle one, CASes r from Queued to Running, and inserts it
// into that worker's ready queue. Must be called with s.mu held.
func (s *Scheduler) place(r *Reaction) (workerID int, ok bool) {
	n := len(s.workers)
	if n == 0 {
		return 0, false
	}

	start := r.WorkerAffinity
	if s.balancingIndex > start {
		start = s.balancingIndex
	}
	start %= n
	if start < 0 {
		start = 0
	}

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		w := s.workers[idx]
		if w.isIdle.Load() != 1 {
			continue
		}
		if !r.casStatus(Queued, Running) {
			s.fatalInvariant("reaction was not Queued at placement",
				zap.Uint64("index", r.Index), zap.String("status", r.Status().String()))
		}
		w.readyMu.Lock()
		w.ready.Insert(r)
		w.readyMu.Unlock()
		s.balancingIndex = (idx + 1) % n
		return idx, true
	}
	return 0, false
}

// notify wakes every worker whose ready queue is non-empty, CASing its
// isIdle flag from 1 to 0 first so a worker already woken by a previous
// round (or about to wake itself via work-stealing) is never signalled
// twice.
func (s *Scheduler) notify(dirty []int) {
	if len(dirty) == 0 {
		return
	}
	for _, w := range s.workers {
		if w.readyLen() == 0 {
			continue
		}
		if w.isIdle.CompareAndSwap(1, 0) {
			w.wake()
		}
	}
}

// stopAll marks every worker for shutdown and wakes any that are parked,
// letting GetReadyReaction return (nil, false) to each in turn.
func (s *Scheduler) stopAll() {
	for _, w := range s.workers {
		w.stop()
	}
}
