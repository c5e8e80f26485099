package repository

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the latest schema version this package knows how to
// produce. Adapted from ri5hii-Peony/internal/storage/migrate.go's
// version-gated, transactional migration pattern.
const SchemaVersion = 1

// Migrate ensures the SQLite schema exists and is upgraded to SchemaVersion.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY);`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations;`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			start_wall_time TEXT NOT NULL,
			horizon_min REAL NOT NULL,
			agent_count INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			config_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			simulation_id TEXT NOT NULL,
			profession TEXT NOT NULL,
			financial_capability REAL NOT NULL,
			trend_receptivity REAL NOT NULL,
			social_status REAL NOT NULL,
			energy_level REAL NOT NULL,
			time_budget REAL NOT NULL,
			purchases_today INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trends (
			id TEXT PRIMARY KEY,
			simulation_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			originator_agent_id TEXT NOT NULL,
			parent_trend_id TEXT,
			created_at REAL NOT NULL,
			base_virality REAL NOT NULL,
			coverage_level TEXT NOT NULL,
			total_interactions INTEGER NOT NULL,
			sentiment TEXT NOT NULL,
			last_interaction_ts REAL NOT NULL,
			archived INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS event_audit (
			event_id TEXT PRIMARY KEY,
			simulation_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			timestamp REAL NOT NULL,
			duration_ms REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attribute_history (
			idempotency_key TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			attribute TEXT NOT NULL,
			old_value REAL NOT NULL,
			new_value REAL NOT NULL,
			delta REAL NOT NULL,
			sim_minute REAL NOT NULL,
			reason TEXT NOT NULL,
			source_trend TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_agents_simulation ON agents(simulation_id);`,
		`CREATE INDEX IF NOT EXISTS idx_trends_simulation_active ON trends(simulation_id, archived);`,
		`CREATE INDEX IF NOT EXISTS idx_history_agent_attr ON attribute_history(agent_id, attribute);`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?);`, SchemaVersion); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}
