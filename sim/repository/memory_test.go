package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PollyDrive/capsim/sim/trace"
)

func TestGetActiveRunsFiltersByNonTerminalStatus(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	ctx := context.Background()

	active := RunRecord{ID: uuid.New(), Status: "RUNNING"}
	completed := RunRecord{ID: uuid.New(), Status: "COMPLETED"}
	require.NoError(t, repo.CreateRun(ctx, active))
	require.NoError(t, repo.CreateRun(ctx, completed))

	runs, err := repo.GetActiveRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, active.ID, runs[0].ID)
}

func TestUpdateRunStatusErrorsWhenRunMissing(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	err := repo.UpdateRunStatus(context.Background(), uuid.New(), "RUNNING")
	assert.Error(t, err)
}

func TestLoadStaticTablesReturnsSeededDoc(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	doc := StaticTablesDoc{Affinity: map[string]map[string]int{"Worker": {"Sport": 4}}}
	repo.SeedStaticTables(doc)

	got, err := repo.LoadStaticTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Affinity["Worker"]["Sport"])
}

func TestPersistHistoryDedupsByKey(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	agentID := uuid.New()
	rec := trace.AttributeHistoryRecord{AgentID: agentID, Attribute: "energy_level", SimMinute: 10}

	require.NoError(t, repo.PersistHistory(context.Background(), []trace.AttributeHistoryRecord{rec, rec}))
	assert.Equal(t, 1, repo.HistoryCount(agentID))
}

func TestPersistEventsDedupsByEventID(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	id := uuid.New()
	rec := trace.EventAuditRecord{EventID: id, Kind: "PUBLISH_POST"}

	require.NoError(t, repo.PersistEvents(context.Background(), []trace.EventAuditRecord{rec, rec}))
	require.NoError(t, repo.PersistEvents(context.Background(), []trace.EventAuditRecord{rec}))
	// three deliveries of the same event id leave one stored record
	assert.Len(t, repo.events, 1)
}

func TestPersistAgentsAndTrendsRoundTrip(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	agentID := uuid.New()
	trendID := uuid.New()

	require.NoError(t, repo.PersistAgents(context.Background(), []AgentRecord{{ID: agentID, Profession: "Worker"}}))
	require.NoError(t, repo.PersistTrends(context.Background(), []TrendRecord{{ID: trendID, Topic: "Sport"}}))

	agent, ok := repo.AgentSnapshot(agentID)
	require.True(t, ok)
	assert.Equal(t, "Worker", agent.Profession)

	trend, ok := repo.TrendSnapshot(trendID)
	require.True(t, ok)
	assert.Equal(t, "Sport", trend.Topic)
}

func TestArchiveTrendMarksArchivedAndErrorsWhenMissing(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	trendID := uuid.New()
	require.NoError(t, repo.PersistTrends(context.Background(), []TrendRecord{{ID: trendID}}))

	require.NoError(t, repo.ArchiveTrend(context.Background(), trendID))
	rec, ok := repo.TrendSnapshot(trendID)
	require.True(t, ok)
	assert.True(t, rec.Archived)

	assert.Error(t, repo.ArchiveTrend(context.Background(), uuid.New()))
}

func TestFailCommitsExhaustsRetriesAndIncrementsCounter(t *testing.T) {
	repo := NewMemoryRepository([]int{0, 0})
	repo.FailCommits = true

	err := repo.PersistAgents(context.Background(), []AgentRecord{{ID: uuid.New()}})
	assert.Error(t, err)
	assert.Equal(t, int64(1), repo.BatchCommitErrorsTotal())
}

func TestNewMemoryRepositoryDefaultsRetryBackoffsWhenEmpty(t *testing.T) {
	repo := NewMemoryRepository(nil)
	assert.Len(t, repo.retryBackoffs, 3)
}

func TestFlushAndCloseAreNoOps(t *testing.T) {
	repo := NewMemoryRepository([]int{0})
	assert.NoError(t, repo.Flush(context.Background()))
	assert.NoError(t, repo.Close())
}
