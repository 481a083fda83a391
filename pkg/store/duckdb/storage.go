package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const AuditRunsSchema = `
	CREATE TABLE IF NOT EXISTS audit_runs (
		id VARCHAR PRIMARY KEY,
		mode VARCHAR NOT NULL,
		source VARCHAR,
		status VARCHAR NOT NULL,
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP NULL,
		targets INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		severity VARCHAR,
		error VARCHAR
	);
`
const AuditResultsSchema = `
	CREATE TABLE IF NOT EXISTS audit_results (
		run_id VARCHAR NOT NULL,
		target VARCHAR NOT NULL,
		host VARCHAR,
		kind VARCHAR,
		severity VARCHAR NOT NULL,
		failed BOOLEAN NOT NULL,
		error VARCHAR,
		verdict VARCHAR,
		PRIMARY KEY (run_id, target)
	);
`

var bootQueries = []string{
	AuditRunsSchema,
	AuditResultsSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}

// InTransaction runs fn with a transaction attached to its context, so stores
// called from fn join it. The transaction is committed when fn succeeds.
func InTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(WithTransaction(ctx, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
