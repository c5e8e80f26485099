// Package trace records the append-only audit trail the engine produces as
// it runs: one AttributeHistoryRecord per scalar mutation (I3) and one
// EventAuditRecord per dispatched event. It has no dependency on the sim
// package — it stores pure data types, mirroring the teacher's sim/trace
// package (decision-trace recording with no back-reference to sim/ or
// sim/cluster/).
package trace

import "github.com/google/uuid"

// AttributeHistoryRecord is the durable form of sim.AttributeHistory: the
// Repository persists these, never mutating or deleting a row once written
// (append-only, per §3's Attribute-history record).
type AttributeHistoryRecord struct {
	AgentID     uuid.UUID
	Attribute   string
	OldValue    float64
	NewValue    float64
	Delta       float64
	SimMinute   float64
	Reason      string
	SourceTrend *uuid.UUID
}

// Key returns the idempotence key named in §4.3: agent_id + attribute + timestamp.
func (r AttributeHistoryRecord) Key() string {
	return r.AgentID.String() + "|" + r.Attribute + "|" + formatFloat(r.SimMinute)
}

// EventAuditRecord captures a single dispatched event for durable audit,
// keyed by event id for idempotent re-delivery (§4.3).
type EventAuditRecord struct {
	EventID      uuid.UUID
	SimulationID uuid.UUID
	Kind         string
	Timestamp    float64
	DurationMs   float64
}

// Key returns the idempotence key named in §4.3: event_id.
func (r EventAuditRecord) Key() string {
	return r.EventID.String()
}

// Ledger collects AttributeHistoryRecord and EventAuditRecord values during
// a run, the way the teacher's SimulationTrace collects AdmissionRecord and
// RoutingRecord values. Callers submit records here before handing them to
// a Repository batch.
type Ledger struct {
	History []AttributeHistoryRecord
	Audit   []EventAuditRecord
}

// NewLedger returns an empty Ledger ready for recording.
func NewLedger() *Ledger {
	return &Ledger{
		History: make([]AttributeHistoryRecord, 0),
		Audit:   make([]EventAuditRecord, 0),
	}
}

// RecordHistory appends an attribute-history record.
func (l *Ledger) RecordHistory(r AttributeHistoryRecord) {
	l.History = append(l.History, r)
}

// RecordAudit appends an event-audit record.
func (l *Ledger) RecordAudit(r EventAuditRecord) {
	l.Audit = append(l.Audit, r)
}
