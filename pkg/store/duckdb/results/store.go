package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/kmp-audit/pkg/models/store"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb"
	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

// Store keeps audit runs and their per-target results. Writes join the
// transaction attached to the context, if any.
type Store interface {
	CreateRun(ctx context.Context, mode, source string) (*store.Run, error)
	AddResults(ctx context.Context, runID string, results []store.Result) error
	FinishRun(ctx context.Context, runID string, totals store.RunTotals) error
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, runID string) (*store.Run, error)
	GetResults(ctx context.Context, runID string) ([]store.Result, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type defaultStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{
		db:  db,
		now: time.Now,
	}, nil
}

func (s *defaultStore) conn(ctx context.Context) execer {
	if tx := duckdb.GetTransaction(ctx); tx != nil {
		return tx
	}
	return s.db
}

func (s *defaultStore) CreateRun(ctx context.Context, mode, source string) (*store.Run, error) {
	run := &store.Run{
		ID:        uuid.NewString(),
		Mode:      mode,
		Source:    source,
		Status:    store.RunRunning,
		StartedAt: s.now().UTC(),
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO audit_runs (id, mode, source, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.Source, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

func (s *defaultStore) AddResults(ctx context.Context, runID string, results []store.Result) error {
	if len(results) == 0 {
		return nil
	}

	stmt, err := s.conn(ctx).PrepareContext(ctx, `
		INSERT INTO audit_results (
			run_id, target, host, kind, severity, failed, error, verdict
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?
		)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		var verdict any
		if len(r.Verdict) > 0 {
			verdict = string(r.Verdict)
		}
		_, err = stmt.ExecContext(ctx,
			runID,
			r.Target,
			r.Host,
			r.Kind,
			r.Severity,
			r.Failed,
			nullable(r.Error),
			verdict,
		)
		if err != nil {
			return fmt.Errorf("insert result %s: %w", r.Target, err)
		}
	}
	return nil
}

func (s *defaultStore) FinishRun(ctx context.Context, runID string, totals store.RunTotals) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE audit_runs
		SET status = ?, finished_at = ?, targets = ?, failures = ?, severity = ?, error = ?
		WHERE id = ?`,
		string(totals.Status), s.now().UTC(), totals.Targets, totals.Failures, totals.Severity, nullable(totals.Error), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, mode, source, status, started_at, finished_at, targets, failures, severity, error`

func (s *defaultStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM audit_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]store.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func (s *defaultStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM audit_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

func (s *defaultStore) GetResults(ctx context.Context, runID string) ([]store.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, target, host, kind, severity, failed, error, verdict
		FROM audit_results
		WHERE run_id = ?
		ORDER BY host, target`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := make([]store.Result, 0)
	for rows.Next() {
		var (
			r                    store.Result
			host, kind, errorMsg sql.NullString
			verdict              sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Target, &host, &kind, &r.Severity, &r.Failed, &errorMsg, &verdict); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Host = host.String
		r.Kind = kind.String
		if errorMsg.Valid {
			msg := errorMsg.String
			r.Error = &msg
		}
		if verdict.Valid {
			r.Verdict = []byte(verdict.String)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*store.Run, error) {
	var (
		run              store.Run
		status           string
		source, severity sql.NullString
		errorMsg         sql.NullString
		finished         sql.NullTime
	)
	err := row.Scan(&run.ID, &run.Mode, &source, &status, &run.StartedAt, &finished,
		&run.Targets, &run.Failures, &severity, &errorMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = store.RunStatus(status)
	run.Source = source.String
	run.Severity = severity.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if errorMsg.Valid {
		msg := errorMsg.String
		run.Error = &msg
	}
	return &run, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
