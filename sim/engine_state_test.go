package sim

import (
	"github.com/google/uuid"

	"github.com/PollyDrive/capsim/sim/trace"
)

// fakeEngineState is a minimal EngineState test double used to exercise
// ActionExecutor and InfluenceProcessor in isolation, without bootstrapping
// a full Simulator.
type fakeEngineState struct {
	simID     uuid.UUID
	now       float64
	st        *StaticTables
	cfg       Config
	rng       *PartitionedRNG
	ledger    *trace.Ledger
	agents    map[uuid.UUID]*Agent
	trends    map[uuid.UUID]*Trend
	scheduled []*Event
	scheduleErr error
	actions   []actionKey
}

func newFakeEngineState() *fakeEngineState {
	return &fakeEngineState{
		simID:  uuid.New(),
		st:     DefaultStaticTables(),
		cfg:    DefaultConfig(),
		rng:    NewPartitionedRNG(1),
		ledger: trace.NewLedger(),
		agents: make(map[uuid.UUID]*Agent),
		trends: make(map[uuid.UUID]*Trend),
	}
}

func (f *fakeEngineState) addAgent(a *Agent) { f.agents[a.ID] = a }

func (f *fakeEngineState) Agent(id uuid.UUID) (*Agent, bool) {
	a, ok := f.agents[id]
	return a, ok
}

func (f *fakeEngineState) AllAgents() []*Agent {
	out := make([]*Agent, 0, len(f.agents))
	for _, a := range f.agents {
		out = append(out, a)
	}
	return out
}

func (f *fakeEngineState) Trend(id uuid.UUID) (*Trend, bool) {
	t, ok := f.trends[id]
	return t, ok
}

func (f *fakeEngineState) AddTrend(t *Trend) { f.trends[t.ID] = t }

func (f *fakeEngineState) Now() float64 { return f.now }

func (f *fakeEngineState) StaticTables() *StaticTables { return f.st }

func (f *fakeEngineState) Config() Config { return f.cfg }

func (f *fakeEngineState) RNG() *PartitionedRNG { return f.rng }

func (f *fakeEngineState) Schedule(ev *Event) error {
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.scheduled = append(f.scheduled, ev)
	return nil
}

func (f *fakeEngineState) Ledger() *trace.Ledger { return f.ledger }

func (f *fakeEngineState) SimulationID() uuid.UUID { return f.simID }

func (f *fakeEngineState) RecordAction(kind EventKind, level PurchaseLevel, profession Profession) {
	f.actions = append(f.actions, actionKey{kind: kind, level: level, profession: profession})
}
