package reactorsched

import "sync/atomic"

// simTagAdvancer is a deterministic, test-only TagAdvancer that reports
// the stop tag only after being called stopAfter times, standing in for
// a host that polls for more work a fixed number of times before giving
// up — the teacher's own tests construct small, deterministic configs
// directly rather than reaching for a mocking library, and this follows
// the same instinct.
type simTagAdvancer struct {
	calls     atomic.Int32
	stopAfter int32
}

func (s *simTagAdvancer) AdvanceTag() bool {
	return s.calls.Add(1) >= s.stopAfter
}
