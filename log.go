package reactorsched

import "go.uber.org/zap"

// fatalInvariant logs a single structured diagnostic and aborts the
// process, matching spec.md §7: "the scheduler prints a single diagnostic
// and aborts on any invariant violation." zap.Logger.Fatal logs then
// calls os.Exit(1) itself, so there is nothing further to do after the
// call returns (it never does).
func (s *Scheduler) fatalInvariant(msg string, fields ...zap.Field) {
	s.logger.Fatal(msg, fields...)
}

// debugPrint mirrors the original scheduler's DEBUG_PRINT macro: verbose,
// per-event tracing that is silent unless the logger's level admits
// Debug. Kept as a thin wrapper so call sites read the same whether they
// log zero, one, or several structured fields.
func (s *Scheduler) debugPrint(msg string, fields ...zap.Field) {
	s.logger.Debug(msg, fields...)
}
