package batch

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/services/audit"
	"github.com/de-tools/kmp-audit/pkg/services/gather"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	// Concurrency bounds the number of targets gathered at once.
	Concurrency int
	// Timeout applies to the gathering of a single target. Zero means none.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency: runtime.NumCPU(),
		Timeout:     60 * time.Second,
	}
}

// Driver gathers facts for a stream of targets on a bounded pool of workers
// and analyzes every unit as soon as its facts arrive.
type Driver struct {
	gatherer gather.Gatherer
	analyzer *audit.Analyzer
	config   Config
}

func NewDriver(gatherer gather.Gatherer, analyzer *audit.Analyzer, config Config) *Driver {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Driver{
		gatherer: gatherer,
		analyzer: analyzer,
		config:   config,
	}
}

// Run emits one outcome per target in completion order. Gathering failures
// are reported as outcomes and never stop other targets. The returned channel
// is closed once every started target is done; cancelling ctx stops the
// intake of new targets.
func (d *Driver) Run(ctx context.Context, targets <-chan domain.Target) <-chan domain.Outcome {
	out := make(chan domain.Outcome)

	go func() {
		defer close(out)

		// a plain group: one failed target must not cancel its siblings
		var g errgroup.Group
		g.SetLimit(d.config.Concurrency)

	intake:
		for {
			select {
			case <-ctx.Done():
				break intake
			case target, ok := <-targets:
				if !ok {
					break intake
				}
				g.Go(func() error {
					outcome := d.Process(ctx, target)
					select {
					case out <- outcome:
					case <-ctx.Done():
					}
					return nil
				})
			}
		}

		_ = g.Wait()
	}()

	return out
}

// Process gathers and analyzes a single target.
func (d *Driver) Process(ctx context.Context, target domain.Target) domain.Outcome {
	logger := zerolog.Ctx(ctx).With().
		Str("target", target.String()).
		Str("kind", string(target.Kind)).
		Logger()
	ctx = logger.WithContext(ctx)

	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	if target.Kind == domain.TargetLive {
		return d.processLive(ctx, target)
	}

	facts, err := d.gatherer.Package(ctx, target)
	switch {
	case errors.Is(err, domain.ErrMalformedFacts):
		logger.Warn().Err(err).Msg("malformed package facts")
		if facts.Path == "" {
			facts.Path = target.Path
		}
		verdict := audit.MalformedVerdict(facts, err)
		return domain.Outcome{Target: target, Package: &verdict}
	case err != nil:
		logger.Error().Err(err).Msg("failed to gather package facts")
		return domain.Outcome{Target: target, Err: &domain.GatherError{Target: target, Err: err}}
	}

	verdict := d.analyzer.AnalyzePackage(facts)
	logger.Debug().Str("severity", verdict.Severity().String()).Msg("package analyzed")
	return domain.Outcome{Target: target, Package: &verdict}
}

func (d *Driver) processLive(ctx context.Context, target domain.Target) domain.Outcome {
	logger := zerolog.Ctx(ctx)

	modules, err := d.gatherer.Modules(ctx, target)
	switch {
	case errors.Is(err, domain.ErrMalformedFacts):
		logger.Warn().Err(err).Msg("malformed module facts")
		return domain.Outcome{
			Target:  target,
			Modules: []domain.ModuleVerdict{audit.MalformedModuleVerdict(target.String(), err)},
		}
	case err != nil:
		logger.Error().Err(err).Msg("failed to gather module facts")
		return domain.Outcome{Target: target, Err: &domain.GatherError{Target: target, Err: err}}
	}

	verdicts := make([]domain.ModuleVerdict, 0, len(modules))
	for _, m := range modules {
		verdicts = append(verdicts, d.analyzer.AnalyzeLiveModule(m))
	}
	sort.SliceStable(verdicts, func(i, j int) bool { return verdicts[i].Path < verdicts[j].Path })
	logger.Debug().Int("modules", len(verdicts)).Msg("modules analyzed")
	return domain.Outcome{Target: target, Modules: verdicts}
}

// Collect drains the outcome stream. With sorted set the outcomes are
// re-ordered by target key once the stream is closed.
func Collect(outcomes <-chan domain.Outcome, sorted bool) []domain.Outcome {
	var res []domain.Outcome
	for o := range outcomes {
		res = append(res, o)
	}
	if sorted {
		Sort(res)
	}
	return res
}

// Sort orders outcomes by target key.
func Sort(outcomes []domain.Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Target.Key() < outcomes[j].Target.Key()
	})
}
