package sim

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus enumerates a simulation run's lifecycle state, per §3.
type RunStatus string

const (
	RunInitializing RunStatus = "INITIALIZING"
	RunRunning      RunStatus = "RUNNING"
	RunStopping     RunStatus = "STOPPING"
	RunCompleted    RunStatus = "COMPLETED"
	RunFailed       RunStatus = "FAILED"
	RunForceStopped RunStatus = "FORCE_STOPPED"
)

// nonTerminalStatuses are the statuses that block a new bootstrap (§3 I5).
var nonTerminalStatuses = map[RunStatus]bool{
	RunInitializing: true,
	RunRunning:      true,
	RunStopping:     true,
}

// IsTerminal reports whether status is one a new bootstrap may coexist with.
func (s RunStatus) IsTerminal() bool {
	return !nonTerminalStatuses[s]
}

// Run is the top-level simulation-run record from §3.
type Run struct {
	ID            uuid.UUID
	Status        RunStatus
	StartWallTime time.Time
	HorizonMin    float64
	AgentCount    int
	Seed          int64
	ConfigSnapshot Config
}

// NewRun creates a Run in INITIALIZING status with a fresh ID.
func NewRun(cfg Config) *Run {
	return &Run{
		ID:             uuid.New(),
		Status:         RunInitializing,
		StartWallTime:  time.Now(),
		HorizonMin:     float64(cfg.HorizonMin),
		AgentCount:     cfg.AgentCount,
		Seed:           cfg.Seed,
		ConfigSnapshot: cfg,
	}
}
