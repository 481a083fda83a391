package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/runtime/terminal/export"
	"github.com/de-tools/kmp-audit/pkg/services/audit"
	"github.com/de-tools/kmp-audit/pkg/services/batch"
	"github.com/de-tools/kmp-audit/pkg/services/config"
	"github.com/de-tools/kmp-audit/pkg/services/gather"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb"
	"github.com/de-tools/kmp-audit/pkg/store/duckdb/results"
	"github.com/rs/zerolog"
)

// ErrFindings is returned when the audit reached the failure threshold.
var ErrFindings = errors.New("audit findings reached the failure threshold")

// Session carries what the root command resolved for its subcommands.
type Session struct {
	Settings  *config.Settings
	Format    string
	FailOn    string
	StorePath string
	HostsFile string
	Output    io.Writer

	// Gatherer replaces the gatherers built from the settings.
	Gatherer gather.Gatherer
	// Progress, when set, receives outcomes as they complete.
	Progress func(domain.Outcome) error
}

// Hosts returns the named hosts, or every host of the inventory.
func (s *Session) Hosts(ctx context.Context, names []string) ([]string, error) {
	if len(names) > 0 || s.HostsFile == "" {
		return names, nil
	}
	registry, err := config.NewHostRegistry(s.HostsFile)
	if err != nil {
		return nil, err
	}
	return registry.GetHosts(ctx)
}

func (s *Session) gatherer() (gather.Gatherer, error) {
	if s.Gatherer != nil {
		return s.Gatherer, nil
	}

	var exec gather.Executor = gather.LocalExecutor{}
	if s.HostsFile != "" {
		registry, err := config.NewHostRegistry(s.HostsFile)
		if err != nil {
			return nil, err
		}
		exec = gather.NewSSHExecutor(registry, s.Settings.Gather.Timeout)
	}
	return gather.NewDefaultDispatcher(exec, s.Settings.Gather.Command, s.Settings.Gather.LiveCommand), nil
}

// Execute audits the request, reports the outcomes and optionally records
// them. It returns ErrFindings when the worst outcome reaches FailOn.
func (s *Session) Execute(ctx context.Context, req batch.Request) error {
	logger := zerolog.Ctx(ctx)

	threshold, err := domain.ParseSeverity(s.FailOn)
	if err != nil {
		return fmt.Errorf("invalid --fail-on: %w", err)
	}
	reporter, err := export.NewReporter(s.Format, s.Output)
	if err != nil {
		return err
	}
	analyzer, err := audit.NewAnalyzer(s.Settings.AuditSettings())
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}
	g, err := s.gatherer()
	if err != nil {
		return fmt.Errorf("failed to create gatherer: %w", err)
	}

	targets, err := req.Targets(ctx)
	if err != nil {
		return err
	}

	driver := batch.NewDriver(g, analyzer, batch.Config{
		Concurrency: s.Settings.Batch.Concurrency,
		Timeout:     s.Settings.Gather.Timeout,
	})

	var outcomes []domain.Outcome
	for o := range driver.Run(ctx, targets) {
		if s.Progress != nil {
			if err := s.Progress(o); err != nil {
				logger.Warn().Err(err).Msg("failed to report progress")
			}
		}
		outcomes = append(outcomes, o)
	}
	if s.Settings.Batch.Sorted {
		batch.Sort(outcomes)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := reporter.Handle(outcomes); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	summary := domain.Summarize(outcomes)
	logger.Info().
		Int("targets", summary.Total).
		Int("failed", summary.Failed).
		Str("severity", summary.Severity().String()).
		Msg("audit finished")

	if s.StorePath != "" {
		if err := s.record(ctx, req, outcomes); err != nil {
			return err
		}
	}

	if summary.Total > 0 && summary.Severity() >= threshold && threshold > domain.SeverityPass {
		return fmt.Errorf("%w: %s", ErrFindings, summary)
	}
	return nil
}

func (s *Session) record(ctx context.Context, req batch.Request, outcomes []domain.Outcome) error {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: s.StorePath})
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	defer db.Close()

	store, err := results.NewStore(db)
	if err != nil {
		return err
	}
	run, err := batch.NewRecorder(db, store).Save(ctx, req, outcomes)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("run", run.ID).Str("store", s.StorePath).Msg("run recorded")
	return nil
}
