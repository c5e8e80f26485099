// Package repository implements the §6.2 Repository contract: immutable
// static lookups plus batched, retrying persistence of agent attributes,
// trends, event audit rows, and attribute history. Grounded on
// ri5hii-Peony/internal/storage (database/sql + modernc.org/sqlite,
// migration-on-boot) generalized to the batching/retry semantics of §4.3.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/PollyDrive/capsim/sim/trace"
)

// RunRecord is the persisted form of sim.Run.
type RunRecord struct {
	ID            uuid.UUID
	Status        string
	StartWallTime time.Time
	HorizonMin    float64
	AgentCount    int
	Seed          int64
	ConfigJSON    string
}

// AgentRecord is the persisted form of sim.Agent's mutable fields.
type AgentRecord struct {
	ID                  uuid.UUID
	SimulationID        uuid.UUID
	Profession          string
	FinancialCapability float64
	TrendReceptivity    float64
	SocialStatus        float64
	EnergyLevel         float64
	TimeBudget          float64
	PurchasesToday      int
}

// TrendRecord is the persisted form of sim.Trend.
type TrendRecord struct {
	ID                uuid.UUID
	SimulationID      uuid.UUID
	Topic             string
	OriginatorAgentID uuid.UUID
	ParentTrendID     *uuid.UUID
	CreatedAt         float64
	BaseVirality      float64
	CoverageLevel     string
	TotalInteractions int64
	Sentiment         string
	LastInteractionTs float64
	Archived          bool
}

// Repository is the §6.2 persistence contract. Mutating calls are
// idempotent on the id/composite key defined in §3; see trace.Key() for the
// keys used by history and audit records.
type Repository interface {
	// GetActiveRuns returns every run whose status is non-terminal. Must be
	// empty for a new bootstrap to proceed (§3 I5).
	GetActiveRuns(ctx context.Context) ([]RunRecord, error)

	// CreateRun persists a new run row.
	CreateRun(ctx context.Context, run RunRecord) error

	// UpdateRunStatus transitions a run's persisted status.
	UpdateRunStatus(ctx context.Context, runID uuid.UUID, status string) error

	// LoadStaticTables returns the static lookup documents. The core engine
	// treats the returned value as read-only for the run's lifetime (§9).
	LoadStaticTables(ctx context.Context) (StaticTablesDoc, error)

	// PersistAgents buffers an agent-state batch for commit.
	PersistAgents(ctx context.Context, batch []AgentRecord) error

	// PersistTrends buffers a trend upsert batch for commit.
	PersistTrends(ctx context.Context, batch []TrendRecord) error

	// PersistEvents buffers an event-audit batch for commit.
	PersistEvents(ctx context.Context, batch []trace.EventAuditRecord) error

	// PersistHistory buffers an attribute-history batch for commit.
	PersistHistory(ctx context.Context, batch []trace.AttributeHistoryRecord) error

	// ArchiveTrend marks a trend archived and persists its final state.
	ArchiveTrend(ctx context.Context, trendID uuid.UUID) error

	// Flush blocks until every buffered write has been committed (or
	// permanently failed per the retry schedule).
	Flush(ctx context.Context) error

	// Close releases the Repository's resources. Safe to call after Flush.
	Close() error
}

// StaticTablesDoc is the wire/storage shape of sim.StaticTables, decoupling
// the repository package from the sim package (sim depends on repository
// for persistence, so repository must not import sim).
type StaticTablesDoc struct {
	Affinity         map[string]map[string]int
	ProfessionRanges map[string]ProfessionAttributesDoc
	InterestRanges   map[string]map[string][2]float64
	TopicInterest    map[string]string
	ShopWeights      map[string]float64
}

// ProfessionAttributesDoc mirrors sim.ProfessionAttributes as [min,max] pairs.
type ProfessionAttributesDoc struct {
	FinancialCapability [2]float64
	TrendReceptivity    [2]float64
	SocialStatus        [2]float64
	EnergyLevel         [2]float64
	TimeBudget          [2]float64
}
