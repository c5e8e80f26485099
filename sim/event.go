package sim

import "github.com/google/uuid"

// EventKind identifies the handler that dispatches an Event.
type EventKind string

const (
	EventPublishPost     EventKind = "PUBLISH_POST"
	EventPurchaseL1      EventKind = "PURCHASE_L1"
	EventPurchaseL2      EventKind = "PURCHASE_L2"
	EventPurchaseL3      EventKind = "PURCHASE_L3"
	EventSelfDev         EventKind = "SELF_DEV"
	EventTrendInfluence  EventKind = "TREND_INFLUENCE"
	EventEnergyRecovery  EventKind = "ENERGY_RECOVERY"
	EventDailyReset      EventKind = "DAILY_RESET"
	EventSaveDailyTrend  EventKind = "SAVE_DAILY_TREND"
	EventLaw             EventKind = "LAW"
	EventWeather         EventKind = "WEATHER"
	EventAgentTick       EventKind = "AGENT_TICK"
)

// Priority bands from §4.2. Higher values are serviced first.
const (
	PrioritySystem = 100
	PriorityAgent  = 50
	PriorityLow    = 0
)

// systemEventKinds never get evicted on queue overflow.
var systemEventKinds = map[EventKind]bool{
	EventDailyReset:     true,
	EventEnergyRecovery: true,
	EventSaveDailyTrend: true,
	EventLaw:            true,
	EventWeather:        true,
}

// KindPriority returns the admission priority for an event kind.
func KindPriority(kind EventKind) int {
	if systemEventKinds[kind] {
		return PrioritySystem
	}
	return PriorityAgent
}

// PublishPostPayload carries data for a PUBLISH_POST event.
type PublishPostPayload struct {
	AuthorID      uuid.UUID
	Topic         Topic
	ParentTrendID *uuid.UUID // non-nil for a reply to an existing trend
}

// PurchasePayload carries data for a PURCHASE_Lk event.
type PurchasePayload struct {
	AgentID uuid.UUID
	Level   PurchaseLevel
}

// SelfDevPayload carries data for a SELF_DEV event.
type SelfDevPayload struct {
	AgentID uuid.UUID
}

// TrendInfluencePayload carries data for a TREND_INFLUENCE event.
type TrendInfluencePayload struct {
	TrendID  uuid.UUID
	DayIndex int64 // sim-day the influence pass runs in, used to seed audience sampling
}

// AgentTickPayload carries data for an AGENT_TICK event: the recurring
// decision point at which one agent evaluates DecideAction and, if it
// chooses an action, emits the corresponding concrete event.
type AgentTickPayload struct {
	AgentID uuid.UUID
}

// Event is an immutable scheduled occurrence. Payload is one of the
// *Payload types above, selected by Kind; system events carry a nil payload.
type Event struct {
	ID            uuid.UUID
	SimulationID  uuid.UUID
	Priority      int
	Timestamp     float64 // sim-minute, non-negative
	Kind          EventKind
	Payload       any
	insertionSeq  int64 // tie-breaker, assigned by the queue on push
}

// NewEvent constructs an Event with a fresh ID and the priority implied by kind.
func NewEvent(simID uuid.UUID, ts float64, kind EventKind, payload any) *Event {
	return &Event{
		ID:           uuid.New(),
		SimulationID: simID,
		Priority:     KindPriority(kind),
		Timestamp:    ts,
		Kind:         kind,
		Payload:      payload,
	}
}
