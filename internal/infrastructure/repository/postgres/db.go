package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema bootstraps the tables. The advisory lock serializes DDL
// across concurrent api/worker startups.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS patients (
	id TEXT PRIMARY KEY,
	mrn TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	date_of_birth TIMESTAMPTZ NOT NULL,
	sex TEXT NOT NULL,
	allergies JSONB NOT NULL DEFAULT '[]'::jsonb,
	diagnoses JSONB NOT NULL DEFAULT '[]'::jsonb,
	medications JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE TABLE IF NOT EXISTS clinical_notes (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL REFERENCES patients(id),
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	content TEXT NOT NULL,
	audio_key TEXT NOT NULL DEFAULT '',
	subjective TEXT NOT NULL,
	objective TEXT,
	assessment TEXT NOT NULL,
	plan TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS medical_entities (
	id TEXT PRIMARY KEY,
	note_id TEXT NOT NULL REFERENCES clinical_notes(id) ON DELETE CASCADE,
	text TEXT NOT NULL,
	category TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	dosage TEXT,
	frequency TEXT
);

CREATE TABLE IF NOT EXISTS note_jobs (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	audio_key TEXT NOT NULL,
	audio_name TEXT NOT NULL,
	idempotency_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	note_id TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clinical_notes_created_at ON clinical_notes(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_medical_entities_note_id ON medical_entities(note_id);
CREATE INDEX IF NOT EXISTS idx_note_jobs_status ON note_jobs(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_note_jobs_idempotency_key ON note_jobs(idempotency_key) WHERE idempotency_key <> '';
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
