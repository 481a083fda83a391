package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/models/store"
	"github.com/rs/zerolog"
)

// Controller runs audits in the background and records them as they progress.
type Controller interface {
	Start(ctx context.Context, req Request) (*store.Run, error)
	Cancel(ctx context.Context, runID string) error
}

type runDescriptor struct {
	cancelFunc context.CancelFunc
	done       chan struct{}
}

type DefaultController struct {
	driver   *Driver
	recorder *Recorder

	mu   sync.Mutex
	runs map[string]runDescriptor
}

func NewController(driver *Driver, recorder *Recorder) *DefaultController {
	return &DefaultController{
		driver:   driver,
		recorder: recorder,
		runs:     make(map[string]runDescriptor),
	}
}

func (ctrl *DefaultController) Start(ctx context.Context, req Request) (*store.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	run, err := ctrl.recorder.Begin(ctx, req)
	if err != nil {
		return nil, err
	}

	// the run outlives the request that started it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	targets, err := req.Targets(runCtx)
	if err != nil {
		cancel()
		if ferr := ctrl.recorder.Finish(ctx, run.ID, store.RunFailed, domain.Summary{}, err); ferr != nil {
			zerolog.Ctx(ctx).Error().Err(ferr).Str("run", run.ID).Msg("failed to close run")
		}
		return nil, err
	}

	desc := runDescriptor{cancelFunc: cancel, done: make(chan struct{})}
	ctrl.mu.Lock()
	ctrl.runs[run.ID] = desc
	ctrl.mu.Unlock()

	go ctrl.execute(runCtx, run.ID, targets, desc)
	return run, nil
}

func (ctrl *DefaultController) Cancel(_ context.Context, runID string) error {
	ctrl.mu.Lock()
	desc, ok := ctrl.runs[runID]
	ctrl.mu.Unlock()
	if !ok {
		return fmt.Errorf("run not running: %s", runID)
	}

	desc.cancelFunc()
	<-desc.done
	return nil
}

// Done is closed when the run has been recorded. Unknown runs are done.
func (ctrl *DefaultController) Done(runID string) <-chan struct{} {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if desc, ok := ctrl.runs[runID]; ok {
		return desc.done
	}
	done := make(chan struct{})
	close(done)
	return done
}

// Shutdown cancels every running run and waits for them to be recorded.
func (ctrl *DefaultController) Shutdown(ctx context.Context) {
	ctrl.mu.Lock()
	running := make([]runDescriptor, 0, len(ctrl.runs))
	for _, desc := range ctrl.runs {
		running = append(running, desc)
	}
	ctrl.mu.Unlock()

	for _, desc := range running {
		desc.cancelFunc()
		select {
		case <-desc.done:
		case <-ctx.Done():
			return
		}
	}
}

func (ctrl *DefaultController) execute(ctx context.Context, runID string, targets <-chan domain.Target, desc runDescriptor) {
	logger := zerolog.Ctx(ctx).With().Str("run", runID).Logger()
	defer func() {
		ctrl.mu.Lock()
		delete(ctrl.runs, runID)
		ctrl.mu.Unlock()
		close(desc.done)
		desc.cancelFunc()
	}()

	// results are written even after cancellation
	storeCtx := context.WithoutCancel(ctx)
	var summary domain.Summary
	for o := range ctrl.driver.Run(ctx, targets) {
		summary.Add(o)
		if err := ctrl.recorder.Add(storeCtx, runID, o); err != nil {
			logger.Error().Err(err).Str("target", o.Target.String()).Msg("failed to record outcome")
		}
	}

	status := store.RunFinished
	var runErr error
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		status, runErr = store.RunCancelled, err
	}
	if err := ctrl.recorder.Finish(storeCtx, runID, status, summary, runErr); err != nil {
		logger.Error().Err(err).Msg("failed to close run")
		return
	}
	logger.Info().Str("status", string(status)).Msg(summary.String())
}
