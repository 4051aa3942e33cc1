package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is a single schema migration applied in version order.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations holds the full schema history for the pipeline tables.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "pipeline_core",
		SQL: `
CREATE TABLE IF NOT EXISTS patient_files (
    id UUID PRIMARY KEY,
    patient_id UUID NOT NULL,
    patient_full_name VARCHAR(255) NOT NULL,
    file_name VARCHAR(512) NOT NULL,
    file_type VARCHAR(64) NOT NULL,
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    file_path VARCHAR(1024) NOT NULL,
    parsed_text TEXT,
    page_count INTEGER NOT NULL DEFAULT 0,
    processing_status VARCHAR(32) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_patient_files_patient ON patient_files (patient_id);

CREATE TABLE IF NOT EXISTS pdf_processing_queue (
    id UUID PRIMARY KEY,
    file_id UUID NOT NULL REFERENCES patient_files (id),
    file_path VARCHAR(1024) NOT NULL,
    status VARCHAR(32) NOT NULL DEFAULT 'pending',
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_queue_status_created ON pdf_processing_queue (status, created_at);
CREATE INDEX IF NOT EXISTS idx_queue_file ON pdf_processing_queue (file_id);
`,
	},
	{
		Version: 2,
		Name:    "case_study_highlights",
		SQL: `
CREATE TABLE IF NOT EXISTS patient_case_study_highlights (
    id UUID PRIMARY KEY,
    patient_id UUID NOT NULL UNIQUE,
    hospital_discharge_summary_text TEXT NOT NULL DEFAULT '',
    facility_summary_text TEXT NOT NULL DEFAULT '',
    engagement_summary_text TEXT NOT NULL DEFAULT '',
    hospital_quotes JSONB NOT NULL DEFAULT '[]',
    facility_quotes JSONB NOT NULL DEFAULT '[]',
    engagement_quotes JSONB NOT NULL DEFAULT '[]',
    clinical_risks JSONB NOT NULL DEFAULT '[]',
    detailed_interventions JSONB NOT NULL DEFAULT '[]',
    detailed_outcomes JSONB NOT NULL DEFAULT '[]',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
	},
}

// Migrator applies the embedded schema migrations and records them in a
// tracking table.
type Migrator struct {
	pool *pgxpool.Pool
}

func NewMigrator(pool *pgxpool.Pool) *Migrator {
	return &Migrator{pool: pool}
}

func (m *Migrator) ensureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS _migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    applied_at TIMESTAMPTZ DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("create _migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.pool.Query(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Up applies all pending migrations in order and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureMigrationsTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}

		tx, err := m.pool.Begin(ctx)
		if err != nil {
			return ran, fmt.Errorf("begin migration %d: %w", mig.Version, err)
		}
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			tx.Rollback(ctx)
			return ran, fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO _migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
			mig.Version, mig.Name, time.Now().UTC()); err != nil {
			tx.Rollback(ctx)
			return ran, fmt.Errorf("record migration %d: %w", mig.Version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return ran, fmt.Errorf("commit migration %d: %w", mig.Version, err)
		}
		ran++
	}
	return ran, nil
}
