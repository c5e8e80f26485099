package sim

import (
	"github.com/google/uuid"

	"github.com/PollyDrive/capsim/sim/trace"
)

// EngineState is the handle a processor uses to reach simulation state
// without holding a back-pointer to the engine, per §9's cycle-resolution
// note ("Processors take the Engine as a parameter per call; no
// back-pointers stored on domain objects"). Simulator is the only
// implementation; ActionExecutor and InfluenceProcessor receive it fresh on
// every call.
type EngineState interface {
	Agent(id uuid.UUID) (*Agent, bool)
	AllAgents() []*Agent
	Trend(id uuid.UUID) (*Trend, bool)
	AddTrend(t *Trend)
	Now() float64
	StaticTables() *StaticTables
	Config() Config
	RNG() *PartitionedRNG
	Schedule(ev *Event) error
	Ledger() *trace.Ledger
	SimulationID() uuid.UUID
	RecordAction(kind EventKind, level PurchaseLevel, profession Profession)
}
