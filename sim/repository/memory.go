package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/PollyDrive/capsim/sim/trace"
)

// MemoryRepository is an in-process Repository implementation used by the
// developer harness and by tests that want to assert on exactly what was
// persisted without standing up SQLite. Commits are synchronous (no
// background flusher) but still apply §4.3's retry schedule, so it doubles
// as the test double for S6 (persistently-failing repository).
type MemoryRepository struct {
	mu sync.Mutex

	runs      map[uuid.UUID]RunRecord
	agents    map[uuid.UUID]AgentRecord
	trends    map[uuid.UUID]TrendRecord
	events    map[uuid.UUID]trace.EventAuditRecord
	histories map[string]trace.AttributeHistoryRecord
	static    StaticTablesDoc

	retryBackoffs []time.Duration

	// FailCommits, when set, makes every commit attempt fail — used to
	// exercise §4.3's retry-then-drop path and §8 scenario S6.
	FailCommits bool

	batchCommitErrorsTotal atomic.Int64
	log                    *logrus.Entry
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository(retryBackoffsSec []int) *MemoryRepository {
	backoffs := make([]time.Duration, len(retryBackoffsSec))
	for i, s := range retryBackoffsSec {
		backoffs[i] = time.Duration(s) * time.Second
	}
	if len(backoffs) == 0 {
		backoffs = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	return &MemoryRepository{
		runs:          make(map[uuid.UUID]RunRecord),
		agents:        make(map[uuid.UUID]AgentRecord),
		trends:        make(map[uuid.UUID]TrendRecord),
		events:        make(map[uuid.UUID]trace.EventAuditRecord),
		histories:     make(map[string]trace.AttributeHistoryRecord),
		retryBackoffs: backoffs,
		log:           logrus.WithField("component", "memory-repository"),
	}
}

func (r *MemoryRepository) commitWithRetry(table string, commit func() error) error {
	var err error
	for attempt := 0; attempt <= len(r.retryBackoffs); attempt++ {
		if err = commit(); err == nil {
			return nil
		}
		if attempt < len(r.retryBackoffs) {
			time.Sleep(r.retryBackoffs[attempt])
		}
	}
	r.batchCommitErrorsTotal.Add(1)
	r.log.WithField("severity", "critical").
		Errorf("batch commit to %s exhausted retries, dropping batch: %v", table, err)
	return fmt.Errorf("%s: %w", table, err)
}

func (r *MemoryRepository) maybeFail() error {
	if r.FailCommits {
		return fmt.Errorf("memory repository: simulated persistent failure")
	}
	return nil
}

func (r *MemoryRepository) GetActiveRuns(ctx context.Context) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RunRecord
	for _, run := range r.runs {
		if run.Status == "INITIALIZING" || run.Status == "RUNNING" || run.Status == "STOPPING" {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateRun(ctx context.Context, run RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *MemoryRepository) UpdateRunStatus(ctx context.Context, runID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return fmt.Errorf("update run status: run %s not found", runID)
	}
	run.Status = status
	r.runs[runID] = run
	return nil
}

func (r *MemoryRepository) LoadStaticTables(ctx context.Context) (StaticTablesDoc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.static, nil
}

// SeedStaticTables lets test/harness callers install a StaticTablesDoc
// ahead of LoadStaticTables being called.
func (r *MemoryRepository) SeedStaticTables(doc StaticTablesDoc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static = doc
}

func (r *MemoryRepository) PersistAgents(ctx context.Context, batch []AgentRecord) error {
	return r.commitWithRetry("agents", func() error {
		if err := r.maybeFail(); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, a := range batch {
			r.agents[a.ID] = a
		}
		return nil
	})
}

func (r *MemoryRepository) PersistTrends(ctx context.Context, batch []TrendRecord) error {
	return r.commitWithRetry("trends", func() error {
		if err := r.maybeFail(); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, t := range batch {
			r.trends[t.ID] = t
		}
		return nil
	})
}

func (r *MemoryRepository) PersistEvents(ctx context.Context, batch []trace.EventAuditRecord) error {
	return r.commitWithRetry("event_audit", func() error {
		if err := r.maybeFail(); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, e := range batch {
			if _, exists := r.events[e.EventID]; !exists {
				r.events[e.EventID] = e
			}
		}
		return nil
	})
}

func (r *MemoryRepository) PersistHistory(ctx context.Context, batch []trace.AttributeHistoryRecord) error {
	return r.commitWithRetry("attribute_history", func() error {
		if err := r.maybeFail(); err != nil {
			return err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, h := range batch {
			key := h.Key()
			if _, exists := r.histories[key]; !exists {
				r.histories[key] = h
			}
		}
		return nil
	})
}

func (r *MemoryRepository) ArchiveTrend(ctx context.Context, trendID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trends[trendID]
	if !ok {
		return fmt.Errorf("archive trend: %s not found", trendID)
	}
	t.Archived = true
	r.trends[trendID] = t
	return nil
}

// Flush is a no-op: MemoryRepository commits synchronously.
func (r *MemoryRepository) Flush(ctx context.Context) error { return nil }

// Close is a no-op.
func (r *MemoryRepository) Close() error { return nil }

// BatchCommitErrorsTotal exposes the batch_commit_errors_total counter (§6.4).
func (r *MemoryRepository) BatchCommitErrorsTotal() int64 {
	return r.batchCommitErrorsTotal.Load()
}

// Snapshot helpers for assertions in tests.

// AgentSnapshot returns the persisted AgentRecord for id, if any.
func (r *MemoryRepository) AgentSnapshot(id uuid.UUID) (AgentRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	return a, ok
}

// TrendSnapshot returns the persisted TrendRecord for id, if any.
func (r *MemoryRepository) TrendSnapshot(id uuid.UUID) (TrendRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trends[id]
	return t, ok
}

// HistoryCount returns the number of distinct attribute-history records
// persisted for a given agent, used to assert I3/P5 in tests.
func (r *MemoryRepository) HistoryCount(agentID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.histories {
		if h.AgentID == agentID {
			n++
		}
	}
	return n
}
