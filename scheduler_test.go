package reactorsched

import (
	"sync"
	"testing"
	"time"
)

// stopImmediately is a TagAdvancer that reports the stop tag on its very
// first call, used by tests that preload a fixed, non-repeating graph and
// want the scheduler to shut down as soon as it drains.
var stopImmediately = FuncTagAdvancer(func() bool { return true })

// ============================================================================
// Construction Tests
// ============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(4))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	if sched.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", sched.NumWorkers())
	}
}

func TestNew_ZeroWorkersDefaultsToNumCPU(t *testing.T) {
	sched, err := New(stopImmediately)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	if sched.NumWorkers() <= 0 {
		t.Errorf("NumWorkers() = %d, want > 0", sched.NumWorkers())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		adv  TagAdvancer
		opts []Option
	}{
		{"nil tag advancer", nil, nil},
		{"negative workers", stopImmediately, []Option{WithNumWorkers(-1)}},
		{"zero queue capacity", stopImmediately, []Option{WithInitialQueueCapacity(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.adv, tt.opts...)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ============================================================================
// TriggerReaction Tests
// ============================================================================

func TestScheduler_TriggerReactionAnonymousEnqueuesGlobally(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	r := NewReaction("r", 0, 1)
	if err := sched.TriggerReaction(r, Anonymous); err != nil {
		t.Fatalf("TriggerReaction() error = %v", err)
	}

	if sched.reactionQ.Len() != 1 {
		t.Errorf("reactionQ.Len() = %d, want 1", sched.reactionQ.Len())
	}
	if r.Status() != Queued {
		t.Errorf("status = %v, want Queued", r.Status())
	}
}

func TestScheduler_TriggerReactionWorkerOriginatedSetsAffinity(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	r := NewReaction("r", 0, 1)
	if err := sched.TriggerReaction(r, 1); err != nil {
		t.Fatalf("TriggerReaction() error = %v", err)
	}

	if r.WorkerAffinity != 1 {
		t.Errorf("WorkerAffinity = %d, want 1", r.WorkerAffinity)
	}
	if sched.workers[1].output.Len() != 1 {
		t.Errorf("worker 1 output length = %d, want 1", sched.workers[1].output.Len())
	}
	if sched.reactionQ.Len() != 0 {
		t.Errorf("reactionQ.Len() = %d, want 0 (should stay local to the worker)", sched.reactionQ.Len())
	}
}

func TestScheduler_TriggerReactionIsNoopUnlessInactive(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	r := NewReaction("r", 0, 1)
	r.casStatus(Inactive, Queued) // simulate already-triggered

	if err := sched.TriggerReaction(r, Anonymous); err != nil {
		t.Fatalf("TriggerReaction() error = %v", err)
	}
	if sched.reactionQ.Len() != 0 {
		t.Errorf("reactionQ.Len() = %d, want 0: re-triggering an already-Queued reaction must be a no-op", sched.reactionQ.Len())
	}
}

func TestScheduler_TriggerReactionAfterCloseIsRejected(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sched.Close()

	r := NewReaction("r", 0, 1)
	if err := sched.TriggerReaction(r, Anonymous); err != ErrClosed {
		t.Errorf("TriggerReaction() after Close() error = %v, want ErrClosed", err)
	}
}

// ============================================================================
// Precedence Oracle Tests
// ============================================================================

func TestScheduler_IsBlockedByExecutingReaction(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	running := NewReaction("parent", packIndexForTest(0, 0), 0b01)
	running.casStatus(Inactive, Queued)
	running.casStatus(Queued, Running)
	sched.executingQ.Insert(running)

	child := NewReaction("child", packIndexForTest(0, 1), 0b01)
	if !sched.isBlocked(child) {
		t.Error("child should be blocked by an executing reaction in the same chain at a lower level")
	}

	unrelated := NewReaction("unrelated", packIndexForTest(0, 1), 0b10)
	if sched.isBlocked(unrelated) {
		t.Error("unrelated chain reaction should not be blocked")
	}
}

func TestScheduler_IsBlockedFastPathSkipsLowerIndex(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	running := NewReaction("parent", packIndexForTest(5, 0), 0b01)
	sched.executingQ.Insert(running)

	earlier := NewReaction("earlier", packIndexForTest(1, 0), 0b01)
	if sched.isBlocked(earlier) {
		t.Error("a reaction indexed before everything executing should never be blocked")
	}
}

func packIndexForTest(tick, level int) uint64 {
	return uint64(tick)<<16 | uint64(uint16(level))
}

// ============================================================================
// Placement Tests
// ============================================================================

func TestScheduler_PlaceAssignsToIdleWorker(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	for _, w := range sched.workers {
		w.isIdle.Store(1)
	}

	r := NewReaction("r", 0, 1)
	r.casStatus(Inactive, Queued)

	workerID, ok := sched.place(r)
	if !ok {
		t.Fatal("place() returned ok=false, want true")
	}
	if workerID != 0 {
		t.Errorf("workerID = %d, want 0", workerID)
	}
	if r.Status() != Running {
		t.Errorf("status = %v, want Running", r.Status())
	}
	if sched.balancingIndex != 1 {
		t.Errorf("balancingIndex = %d, want 1", sched.balancingIndex)
	}
	if sched.workers[0].readyLen() != 1 {
		t.Errorf("worker 0 ready length = %d, want 1", sched.workers[0].readyLen())
	}
}

func TestScheduler_PlaceFailsWithNoIdleWorkers(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	for _, w := range sched.workers {
		w.isIdle.Store(0)
	}

	r := NewReaction("r", 0, 1)
	r.casStatus(Inactive, Queued)

	if _, ok := sched.place(r); ok {
		t.Error("place() should fail when every worker is busy")
	}
	if r.Status() != Queued {
		t.Errorf("status = %v, want Queued (unchanged)", r.Status())
	}
}

func TestDistributeReadyReactions_BalancingIndexRotates(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(3))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	for _, w := range sched.workers {
		w.isIdle.Store(1)
	}
	sched.balancingIndex = 1

	reactions := make([]*Reaction, 3)
	for i := range reactions {
		// Distinct, non-overlapping chain bits so none of the three
		// reactions can block another via precedence: this test isolates
		// round-robin placement, not the precedence oracle.
		r := NewReaction("r", uint64(i), uint64(1)<<uint(i))
		r.casStatus(Inactive, Queued)
		r.WorkerAffinity = 0
		reactions[i] = r
		sched.reactionQ.Insert(r)
	}

	dirty := sched.distributeReadyReactions()

	want := []int{1, 2, 0}
	if len(dirty) != len(want) {
		t.Fatalf("dirty = %v, want %v", dirty, want)
	}
	for i, workerID := range want {
		if dirty[i] != workerID {
			t.Errorf("dirty[%d] = %d, want %d (balancingIndex should rotate 1,2,0)", i, dirty[i], workerID)
		}
		if sched.workers[workerID].readyLen() != 1 {
			t.Errorf("worker %d ready length = %d, want 1", workerID, sched.workers[workerID].readyLen())
		}
		if reactions[i].Status() != Running {
			t.Errorf("reaction %d status = %v, want Running", i, reactions[i].Status())
		}
	}
	if sched.balancingIndex != 1 {
		t.Errorf("balancingIndex after round = %d, want 1 (wraps back after placing on worker 0)", sched.balancingIndex)
	}
}

// ============================================================================
// Dispatcher Round Tests
// ============================================================================

func TestScheduler_DrainWorkerBuffersMovesOutputToReactionQueue(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	w := sched.workers[0]
	w.isIdle.Store(1)
	w.output.Push(NewReaction("a", 0, 1))
	w.output.Push(NewReaction("b", 1, 1))

	sched.drainWorkerBuffers()

	if sched.reactionQ.Len() != 2 {
		t.Errorf("reactionQ.Len() = %d, want 2", sched.reactionQ.Len())
	}
	if w.output.Len() != 0 {
		t.Errorf("worker output length = %d, want 0", w.output.Len())
	}
}

func TestScheduler_DrainWorkerBuffersRetiresDoneReactions(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	r := NewReaction("r", 0, 1)
	r.casStatus(Inactive, Queued)
	r.casStatus(Queued, Running)
	sched.executingQ.Insert(r)

	w := sched.workers[0]
	w.isIdle.Store(1)
	w.done.Push(r)

	sched.drainWorkerBuffers()

	if sched.executingQ.Len() != 0 {
		t.Errorf("executingQ.Len() = %d, want 0", sched.executingQ.Len())
	}
}

func TestScheduler_DrainWorkerBuffersSkipsBusyWorkers(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	w := sched.workers[0]
	w.isIdle.Store(0)
	w.output.Push(NewReaction("a", 0, 1))

	sched.drainWorkerBuffers()

	if sched.reactionQ.Len() != 0 {
		t.Errorf("reactionQ.Len() = %d, want 0: a busy worker's buffers must not be touched", sched.reactionQ.Len())
	}
}

// ============================================================================
// Notify Tests
// ============================================================================

func TestScheduler_NotifyWakesOnlyWorkersWithReadyWork(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	for _, w := range sched.workers {
		w.isIdle.Store(1)
	}
	sched.workers[1].ready.Insert(NewReaction("r", 0, 1))

	sched.notify([]int{1})

	if sched.workers[0].isIdle.Load() != 1 {
		t.Error("worker 0 has no ready work and should stay idle")
	}
	if sched.workers[1].isIdle.Load() != 0 {
		t.Error("worker 1 has ready work and should have been un-idled")
	}
}

// ============================================================================
// End-to-End Tests
// ============================================================================

func TestScheduler_SingleReactionRoundTrip(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	r := NewReaction("r", 0, 1)
	if err := sched.TriggerReaction(r, Anonymous); err != nil {
		t.Fatalf("TriggerReaction() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, ok := sched.GetReadyReaction(0)
		if !ok {
			t.Error("GetReadyReaction() ok = false, want true")
			return
		}
		if got != r {
			t.Error("GetReadyReaction() returned a different reaction than the one triggered")
		}
		sched.DoneWithReaction(0, got)

		if _, ok := sched.GetReadyReaction(0); ok {
			t.Error("GetReadyReaction() after the stop tag should return ok = false")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker goroutine")
	}
}

func TestScheduler_IndependentChainsRunToCompletion(t *testing.T) {
	const numChains = 6
	const numWorkers = 3

	sched, err := New(stopImmediately, WithNumWorkers(numWorkers))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	for c := 0; c < numChains; c++ {
		r := NewReaction("r", 0, uint64(1)<<uint(c))
		if err := sched.TriggerReaction(r, Anonymous); err != nil {
			t.Fatalf("TriggerReaction() error = %v", err)
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	executed := 0

	for id := 0; id < numWorkers; id++ {
		workerID := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				r, ok := sched.GetReadyReaction(workerID)
				if !ok {
					return
				}
				mu.Lock()
				executed++
				mu.Unlock()
				sched.DoneWithReaction(workerID, r)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for workers to drain all chains")
	}

	if executed != numChains {
		t.Errorf("executed %d reactions, want %d", executed, numChains)
	}
}

func TestScheduler_StopsOnlyAfterTagAdvancerSaysSo(t *testing.T) {
	advancer := &simTagAdvancer{stopAfter: 3}
	sched, err := New(advancer, WithNumWorkers(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := sched.GetReadyReaction(0); ok {
			t.Error("GetReadyReaction() ok = true, want false: nothing was ever triggered")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker goroutine")
	}

	if got := advancer.calls.Load(); got != 3 {
		t.Errorf("AdvanceTag was called %d times, want 3", got)
	}
	if sched.tagAdvances.Load() != 3 {
		t.Errorf("tagAdvances = %d, want 3", sched.tagAdvances.Load())
	}
}

func TestScheduler_WorkStealingOneHop(t *testing.T) {
	sched, err := New(stopImmediately, WithNumWorkers(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer sched.Close()

	victim := sched.workers[1]
	r := NewReaction("r", 0, 1)
	r.casStatus(Inactive, Queued)
	r.casStatus(Queued, Running)
	victim.ready.Insert(r)

	got, ok := sched.GetReadyReaction(0)
	if !ok {
		t.Fatal("GetReadyReaction() ok = false, want true")
	}
	if got != r {
		t.Error("GetReadyReaction() did not return the stolen reaction")
	}
	if sched.workers[0].stolen.Load() != 1 {
		t.Errorf("worker 0 stolen count = %d, want 1", sched.workers[0].stolen.Load())
	}
}
