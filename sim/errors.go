package sim

import "errors"

// Error kinds named in the error-handling design. Transient errors are
// absorbed inside the owning component; these sentinels exist for the
// handful that must cross a component boundary (bootstrap, gate checks,
// admission control, fatal aborts).
var (
	// ErrConfigError signals malformed or missing configuration. Fatal at bootstrap.
	ErrConfigError = errors.New("capsim: config error")

	// ErrActiveSimulationExists is returned by bootstrap when a run with
	// non-terminal status already exists. No state is written.
	ErrActiveSimulationExists = errors.New("capsim: active simulation already exists")

	// ErrQueueFull is returned by the event queue when admission is refused.
	ErrQueueFull = errors.New("capsim: event queue full")

	// ErrGateFailed names a gate re-check that fails at execution time.
	// ActionExecutor cancels such an action silently and returns nil, not
	// this error.
	ErrGateFailed = errors.New("capsim: gate check failed")

	// ErrPersistenceFatal names a batch whose retry schedule is exhausted.
	// The Repository implementations log and count such a batch with their
	// own wrapped errors; they do not return this sentinel.
	ErrPersistenceFatal = errors.New("capsim: persistence retries exhausted")

	// ErrInvariantViolation marks a defensive check failure (negative
	// counters, attributes observed outside [0,5] before clamping). Fatal.
	ErrInvariantViolation = errors.New("capsim: invariant violation")

	// ErrShutdownTimeout marks a drain that exceeded SHUTDOWN_TIMEOUT_SEC.
	ErrShutdownTimeout = errors.New("capsim: shutdown timeout")

	// ErrUnknownEventKind is logged and the event skipped; never fatal.
	ErrUnknownEventKind = errors.New("capsim: unknown event kind")
)
