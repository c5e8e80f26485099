//go:build sqlite

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PollyDrive/capsim/sim/trace"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "capsim.db")
	repo, err := NewSQLiteRepository(dbPath, 10, 20*time.Millisecond, []int{0})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepositoryRunLifecycle(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	run := RunRecord{ID: uuid.New(), Status: "INITIALIZING", StartWallTime: time.Now(), HorizonMin: 1440, AgentCount: 10, Seed: 1, ConfigJSON: "{}"}
	if err := repo.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	active, err := repo.GetActiveRuns(ctx)
	if err != nil {
		t.Fatalf("get active runs: %v", err)
	}
	if len(active) != 1 || active[0].ID != run.ID {
		t.Fatalf("expected one active run matching %s, got %+v", run.ID, active)
	}

	if err := repo.UpdateRunStatus(ctx, run.ID, "COMPLETED"); err != nil {
		t.Fatalf("update run status: %v", err)
	}
	active, err = repo.GetActiveRuns(ctx)
	if err != nil {
		t.Fatalf("get active runs after completion: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active runs after completion, got %+v", active)
	}
}

func TestSQLiteRepositoryPersistAgentsFlushesAndUpserts(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	agentID := uuid.New()

	if err := repo.PersistAgents(ctx, []AgentRecord{{ID: agentID, Profession: "Worker", EnergyLevel: 3}}); err != nil {
		t.Fatalf("persist agents: %v", err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	var profession string
	var energy float64
	if err := repo.db.QueryRowContext(ctx, `SELECT profession, energy_level FROM agents WHERE id = ?;`, agentID.String()).Scan(&profession, &energy); err != nil {
		t.Fatalf("query agent: %v", err)
	}
	if profession != "Worker" || energy != 3 {
		t.Fatalf("unexpected agent row: profession=%s energy=%v", profession, energy)
	}

	if err := repo.PersistAgents(ctx, []AgentRecord{{ID: agentID, Profession: "Worker", EnergyLevel: 4.5}}); err != nil {
		t.Fatalf("persist agents (update): %v", err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatalf("flush (update): %v", err)
	}
	if err := repo.db.QueryRowContext(ctx, `SELECT energy_level FROM agents WHERE id = ?;`, agentID.String()).Scan(&energy); err != nil {
		t.Fatalf("query updated agent: %v", err)
	}
	if energy != 4.5 {
		t.Fatalf("expected upserted energy_level 4.5, got %v", energy)
	}
}

func TestSQLiteRepositoryPersistHistoryIsIdempotentOnKey(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	rec := trace.AttributeHistoryRecord{AgentID: uuid.New(), Attribute: "energy_level", SimMinute: 10, NewValue: 2}

	if err := repo.PersistHistory(ctx, []trace.AttributeHistoryRecord{rec, rec}); err != nil {
		t.Fatalf("persist history: %v", err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	var count int
	if err := repo.db.QueryRowContext(ctx, `SELECT count(*) FROM attribute_history WHERE idempotency_key = ?;`, rec.Key()).Scan(&count); err != nil {
		t.Fatalf("count history rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row for idempotency key, got %d", count)
	}
}

func TestSQLiteRepositoryArchiveTrend(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	trendID := uuid.New()

	if err := repo.PersistTrends(ctx, []TrendRecord{{ID: trendID, Topic: "Economic", OriginatorAgentID: uuid.New()}}); err != nil {
		t.Fatalf("persist trends: %v", err)
	}
	if err := repo.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := repo.ArchiveTrend(ctx, trendID); err != nil {
		t.Fatalf("archive trend: %v", err)
	}

	var archived int
	if err := repo.db.QueryRowContext(ctx, `SELECT archived FROM trends WHERE id = ?;`, trendID.String()).Scan(&archived); err != nil {
		t.Fatalf("query trend: %v", err)
	}
	if archived != 1 {
		t.Fatalf("expected archived=1, got %d", archived)
	}
}

func TestMarshalConfigProducesValidJSON(t *testing.T) {
	type cfg struct {
		Seed int64 `json:"seed"`
	}
	s, err := MarshalConfig(cfg{Seed: 42})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if s != `{"seed":42}` {
		t.Fatalf("unexpected JSON: %s", s)
	}
}
