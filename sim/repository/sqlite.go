package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/PollyDrive/capsim/sim/trace"
)

// writeKind tags a buffered write destined for the flusher goroutine.
type writeKind int

const (
	writeAgent writeKind = iota
	writeTrend
	writeEvent
	writeHistory
	writeFlush
)

type writeMsg struct {
	kind    writeKind
	agent   AgentRecord
	trend   TrendRecord
	event   trace.EventAuditRecord
	history trace.AttributeHistoryRecord
	ack     chan error
}

// SQLiteRepository is the C3 Repository implementation backed by
// modernc.org/sqlite (pure Go, no cgo), adapted from
// ri5hii-Peony/internal/storage.Store's database/sql usage. Mutations are
// buffered by a background flusher goroutine per §5; callers submit and
// forget.
type SQLiteRepository struct {
	db     *sql.DB
	writes chan writeMsg
	done   chan struct{}
	wg     sync.WaitGroup

	batchSize      int
	flushInterval  time.Duration
	retryBackoffs  []time.Duration

	batchCommitErrorsTotal atomic.Int64
	log                    *logrus.Entry
}

// NewSQLiteRepository opens (creating if necessary) a SQLite database at
// dsn, migrates its schema, and starts the background batch flusher.
// batchSize/flushInterval/retryBackoffs come from §4.3 / §6.1's
// BATCH_SIZE, the derived "60/SIM_SPEED_FACTOR seconds" interval, and
// BATCH_RETRY_BACKOFFS_SEC respectively.
func NewSQLiteRepository(dsn string, batchSize int, flushInterval time.Duration, retryBackoffsSec []int) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", dsn, err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: migrate: %w", err)
	}

	backoffs := make([]time.Duration, len(retryBackoffsSec))
	for i, s := range retryBackoffsSec {
		backoffs[i] = time.Duration(s) * time.Second
	}
	if len(backoffs) == 0 {
		backoffs = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}

	r := &SQLiteRepository{
		db:            db,
		writes:        make(chan writeMsg, batchSize*4),
		done:          make(chan struct{}),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryBackoffs: backoffs,
		log:           logrus.WithField("component", "repository"),
	}
	r.log.Infof("opened sqlite repository at %s, batch_size=%s, flush_interval=%s",
		dsn, humanize.Comma(int64(batchSize)), flushInterval)

	r.wg.Add(1)
	go r.flusherLoop()
	return r, nil
}

// flusherLoop is the single background consumer named in §5: it drains the
// writes channel, accumulating per-table buffers, and commits on whichever
// of §4.3's three conditions triggers first.
func (r *SQLiteRepository) flusherLoop() {
	defer r.wg.Done()

	var agents []AgentRecord
	var trends []TrendRecord
	var events []trace.EventAuditRecord
	var histories []trace.AttributeHistoryRecord

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	count := func() int { return len(agents) + len(trends) + len(events) + len(histories) }

	commit := func() {
		if count() == 0 {
			return
		}
		r.commitBatch(agents, trends, events, histories)
		agents, trends, events, histories = nil, nil, nil, nil
	}

	for {
		select {
		case msg, ok := <-r.writes:
			if !ok {
				commit()
				return
			}
			switch msg.kind {
			case writeAgent:
				agents = append(agents, msg.agent)
			case writeTrend:
				trends = append(trends, msg.trend)
			case writeEvent:
				events = append(events, msg.event)
			case writeHistory:
				histories = append(histories, msg.history)
			case writeFlush:
				commit()
				msg.ack <- nil
				continue
			}
			if count() >= r.batchSize {
				commit()
			}
		case <-ticker.C:
			commit()
		case <-r.done:
			commit()
			return
		}
	}
}

// commitBatch persists every buffered table, retrying each independently
// per §4.3's exponential back-off schedule. A table that exhausts retries
// is dropped with a CRITICAL log and a batch_commit_errors_total increment;
// the engine is never blocked on this.
func (r *SQLiteRepository) commitBatch(agents []AgentRecord, trends []TrendRecord, events []trace.EventAuditRecord, histories []trace.AttributeHistoryRecord) {
	r.commitWithRetry("agents", func() error { return r.writeAgents(agents) })
	r.commitWithRetry("trends", func() error { return r.writeTrends(trends) })
	r.commitWithRetry("event_audit", func() error { return r.writeEvents(events) })
	r.commitWithRetry("attribute_history", func() error { return r.writeHistories(histories) })
}

func (r *SQLiteRepository) commitWithRetry(table string, commit func() error) {
	var err error
	for attempt := 0; attempt <= len(r.retryBackoffs); attempt++ {
		if err = commit(); err == nil {
			return
		}
		if attempt < len(r.retryBackoffs) {
			r.log.Warnf("batch commit to %s failed (attempt %d/%d), retrying in %s: %v",
				table, attempt+1, len(r.retryBackoffs), r.retryBackoffs[attempt], err)
			time.Sleep(r.retryBackoffs[attempt])
		}
	}
	r.batchCommitErrorsTotal.Add(1)
	r.log.WithField("severity", "critical").
		Errorf("batch commit to %s exhausted retries, dropping batch: %v", table, err)
}

func (r *SQLiteRepository) writeAgents(batch []AgentRecord) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := `INSERT INTO agents (id, simulation_id, profession, financial_capability, trend_receptivity, social_status, energy_level, time_budget, purchases_today)
	         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	         ON CONFLICT(id) DO UPDATE SET
	           financial_capability=excluded.financial_capability,
	           trend_receptivity=excluded.trend_receptivity,
	           social_status=excluded.social_status,
	           energy_level=excluded.energy_level,
	           time_budget=excluded.time_budget,
	           purchases_today=excluded.purchases_today;`
	for _, a := range batch {
		if _, err := tx.Exec(stmt, a.ID.String(), a.SimulationID.String(), a.Profession,
			a.FinancialCapability, a.TrendReceptivity, a.SocialStatus, a.EnergyLevel, a.TimeBudget, a.PurchasesToday); err != nil {
			return fmt.Errorf("write agent %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) writeTrends(batch []TrendRecord) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := `INSERT INTO trends (id, simulation_id, topic, originator_agent_id, parent_trend_id, created_at, base_virality, coverage_level, total_interactions, sentiment, last_interaction_ts, archived)
	         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	         ON CONFLICT(id) DO UPDATE SET
	           base_virality=excluded.base_virality,
	           coverage_level=excluded.coverage_level,
	           total_interactions=excluded.total_interactions,
	           last_interaction_ts=excluded.last_interaction_ts,
	           archived=excluded.archived;`
	for _, t := range batch {
		var parent any
		if t.ParentTrendID != nil {
			parent = t.ParentTrendID.String()
		}
		archived := 0
		if t.Archived {
			archived = 1
		}
		if _, err := tx.Exec(stmt, t.ID.String(), t.SimulationID.String(), t.Topic, t.OriginatorAgentID.String(),
			parent, t.CreatedAt, t.BaseVirality, t.CoverageLevel, t.TotalInteractions, t.Sentiment, t.LastInteractionTs, archived); err != nil {
			return fmt.Errorf("write trend %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) writeEvents(batch []trace.EventAuditRecord) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := `INSERT OR IGNORE INTO event_audit (event_id, simulation_id, kind, timestamp, duration_ms) VALUES (?, ?, ?, ?, ?);`
	for _, e := range batch {
		if _, err := tx.Exec(stmt, e.EventID.String(), e.SimulationID.String(), e.Kind, e.Timestamp, e.DurationMs); err != nil {
			return fmt.Errorf("write event %s: %w", e.EventID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) writeHistories(batch []trace.AttributeHistoryRecord) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := `INSERT OR IGNORE INTO attribute_history (idempotency_key, agent_id, attribute, old_value, new_value, delta, sim_minute, reason, source_trend)
	         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	for _, h := range batch {
		var source any
		if h.SourceTrend != nil {
			source = h.SourceTrend.String()
		}
		if _, err := tx.Exec(stmt, h.Key(), h.AgentID.String(), h.Attribute, h.OldValue, h.NewValue, h.Delta, h.SimMinute, h.Reason, source); err != nil {
			return fmt.Errorf("write history %s: %w", h.Key(), err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetActiveRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, status, start_wall_time, horizon_min, agent_count, seed, config_json FROM runs WHERE status IN ('INITIALIZING', 'RUNNING', 'STOPPING');`)
	if err != nil {
		return nil, fmt.Errorf("get active runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var idStr, startStr string
		if err := rows.Scan(&idStr, &rec.Status, &startStr, &rec.HorizonMin, &rec.AgentCount, &rec.Seed, &rec.ConfigJSON); err != nil {
			return nil, fmt.Errorf("get active runs: scan: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("get active runs: parse id: %w", err)
		}
		start, err := time.Parse(time.RFC3339Nano, startStr)
		if err != nil {
			return nil, fmt.Errorf("get active runs: parse start time: %w", err)
		}
		rec.ID = id
		rec.StartWallTime = start
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run RunRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, start_wall_time, horizon_min, agent_count, seed, config_json) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		run.ID.String(), run.Status, run.StartWallTime.Format(time.RFC3339Nano), run.HorizonMin, run.AgentCount, run.Seed, run.ConfigJSON)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateRunStatus(ctx context.Context, runID uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?;`, status, runID.String())
	if err != nil {
		return fmt.Errorf("update run %s status: %w", runID, err)
	}
	return nil
}

// LoadStaticTables is not backed by a table in this schema: the static
// documents are supplied by configuration (§6.1) rather than persisted.
// SQLiteRepository returns an empty document; callers fall back to
// sim.DefaultStaticTables().
func (r *SQLiteRepository) LoadStaticTables(ctx context.Context) (StaticTablesDoc, error) {
	return StaticTablesDoc{}, nil
}

func (r *SQLiteRepository) PersistAgents(ctx context.Context, batch []AgentRecord) error {
	for _, a := range batch {
		select {
		case r.writes <- writeMsg{kind: writeAgent, agent: a}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *SQLiteRepository) PersistTrends(ctx context.Context, batch []TrendRecord) error {
	for _, t := range batch {
		select {
		case r.writes <- writeMsg{kind: writeTrend, trend: t}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *SQLiteRepository) PersistEvents(ctx context.Context, batch []trace.EventAuditRecord) error {
	for _, e := range batch {
		select {
		case r.writes <- writeMsg{kind: writeEvent, event: e}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *SQLiteRepository) PersistHistory(ctx context.Context, batch []trace.AttributeHistoryRecord) error {
	for _, h := range batch {
		select {
		case r.writes <- writeMsg{kind: writeHistory, history: h}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *SQLiteRepository) ArchiveTrend(ctx context.Context, trendID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE trends SET archived = 1 WHERE id = ?;`, trendID.String())
	if err != nil {
		return fmt.Errorf("archive trend %s: %w", trendID, err)
	}
	return nil
}

// Flush blocks until every buffered write has been committed (or
// permanently failed). It round-trips through the flusher goroutine so the
// caller observes a true drain, not just a channel send.
func (r *SQLiteRepository) Flush(ctx context.Context) error {
	ack := make(chan error, 1)
	select {
	case r.writes <- writeMsg{kind: writeFlush, ack: ack}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the flusher goroutine and closes the underlying database.
// Callers should Flush before Close to avoid dropping buffered writes.
func (r *SQLiteRepository) Close() error {
	close(r.done)
	r.wg.Wait()
	return r.db.Close()
}

// BatchCommitErrorsTotal exposes the batch_commit_errors_total counter (§6.4).
func (r *SQLiteRepository) BatchCommitErrorsTotal() int64 {
	return r.batchCommitErrorsTotal.Load()
}

// MarshalConfig renders a configuration snapshot as JSON for storage in
// RunRecord.ConfigJSON. Kept here (rather than in sim) so the engine does
// not need its own JSON-encoding helper just to populate a run row.
func MarshalConfig(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
