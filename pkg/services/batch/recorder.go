package batch

import (
	"context"
	"database/sql"

	"github.com/de-tools/kmp-audit/pkg/adapters"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/models/store"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb/results"
)

// Recorder persists runs and their outcomes.
type Recorder struct {
	db    *sql.DB
	store results.Store
}

func NewRecorder(db *sql.DB, store results.Store) *Recorder {
	return &Recorder{db: db, store: store}
}

func (r *Recorder) Begin(ctx context.Context, req Request) (*store.Run, error) {
	return r.store.CreateRun(ctx, req.Mode, req.Source())
}

// Add stores one outcome of a running run.
func (r *Recorder) Add(ctx context.Context, runID string, o domain.Outcome) error {
	result, err := adapters.MapOutcomeDomainToStoreResult(o)
	if err != nil {
		return err
	}
	return r.store.AddResults(ctx, runID, []store.Result{result})
}

func (r *Recorder) Finish(ctx context.Context, runID string, status store.RunStatus, summary domain.Summary, runErr error) error {
	totals := store.RunTotals{
		Status:   status,
		Targets:  summary.Total,
		Failures: summary.Failed,
		Severity: summary.Severity().String(),
	}
	if runErr != nil {
		msg := runErr.Error()
		totals.Error = &msg
	}
	return r.store.FinishRun(ctx, runID, totals)
}

// Save records a completed batch in one transaction.
func (r *Recorder) Save(ctx context.Context, req Request, outcomes []domain.Outcome) (*store.Run, error) {
	var run *store.Run
	err := duckdb.InTransaction(ctx, r.db, func(ctx context.Context) error {
		var err error
		run, err = r.Begin(ctx, req)
		if err != nil {
			return err
		}
		rows := make([]store.Result, 0, len(outcomes))
		for _, o := range outcomes {
			row, err := adapters.MapOutcomeDomainToStoreResult(o)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		if err := r.store.AddResults(ctx, run.ID, rows); err != nil {
			return err
		}
		return r.Finish(ctx, run.ID, store.RunFinished, domain.Summarize(outcomes), nil)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}
