package reactorsched

import (
	"go.uber.org/zap"
)

// Config contains all configuration options for the scheduler.
type Config struct {
	// NumWorkers is the number of worker goroutines the scheduler manages.
	// If 0, defaults to runtime.NumCPU().
	NumWorkers int

	// InitialQueueCapacity sizes the global reaction queue, the transfer
	// vector, and each worker's ready queue and output/done vectors at
	// construction time. The executing queue is sized to NumWorkers.
	InitialQueueCapacity int

	// Logger receives the structured diagnostic for a fatal invariant
	// violation. Dispatcher rounds and tag advances are counted in Stats,
	// not logged. If nil, a production zap.Logger is used.
	Logger *zap.Logger

	// TagAdvancer advances logical time when the scheduler has nothing
	// left to do at the current tag. It is required.
	TagAdvancer TagAdvancer
}

// DefaultConfig returns a Config with sensible defaults. NumWorkers and
// TagAdvancer are left at their zero values; New fills NumWorkers in from
// runtime.NumCPU() and requires a non-nil TagAdvancer.
func DefaultConfig() Config {
	return Config{
		NumWorkers:           0,
		InitialQueueCapacity: 16,
		Logger:               nil,
		TagAdvancer:          nil,
	}
}

// Option configures a Scheduler.
type Option func(*Config)

// WithNumWorkers sets the number of worker goroutines.
func WithNumWorkers(n int) Option {
	return func(c *Config) { c.NumWorkers = n }
}

// WithInitialQueueCapacity sets the initial capacity of internal queues
// and vectors.
func WithInitialQueueCapacity(n int) Option {
	return func(c *Config) { c.InitialQueueCapacity = n }
}

// WithLogger sets the structured logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// validate checks the configuration and returns an error if invalid.
func (c *Config) validate() error {
	if c.NumWorkers < 0 {
		return newInvalidConfigError("NumWorkers must be >= 0")
	}
	if c.InitialQueueCapacity < 1 {
		return newInvalidConfigError("InitialQueueCapacity must be >= 1")
	}
	if c.TagAdvancer == nil {
		return newInvalidConfigError("TagAdvancer must be set")
	}
	return nil
}

// TagAdvancer is the host-supplied physical-clock/tag-advance
// collaborator. AdvanceTag is invoked by the dispatcher under the global
// mutex exactly when the reaction queue, executing queue, and every
// worker's buffers are observed quiescent. It reports whether the stop
// tag has been reached.
type TagAdvancer interface {
	AdvanceTag() (stop bool)
}

// FuncTagAdvancer adapts a plain function to the TagAdvancer interface,
// following the same adapter idiom as http.HandlerFunc.
type FuncTagAdvancer func() bool

// AdvanceTag calls f.
func (f FuncTagAdvancer) AdvanceTag() bool { return f() }
