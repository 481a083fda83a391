package gather

import (
	"context"
	"fmt"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

// Dispatcher routes every target to the gatherer registered for its kind.
type Dispatcher struct {
	gatherers map[domain.TargetKind]Gatherer
}

func NewDispatcher(gatherers map[domain.TargetKind]Gatherer) *Dispatcher {
	return &Dispatcher{gatherers: gatherers}
}

func (d *Dispatcher) Package(ctx context.Context, target domain.Target) (domain.PackageFacts, error) {
	g, err := d.route(target)
	if err != nil {
		return domain.PackageFacts{}, err
	}
	return g.Package(ctx, target)
}

func (d *Dispatcher) Modules(ctx context.Context, target domain.Target) ([]domain.ModuleFacts, error) {
	g, err := d.route(target)
	if err != nil {
		return nil, err
	}
	return g.Modules(ctx, target)
}

func (d *Dispatcher) route(target domain.Target) (Gatherer, error) {
	g, ok := d.gatherers[target.Kind]
	if !ok {
		return nil, fmt.Errorf("no gatherer for %s targets", target.Kind)
	}
	return g, nil
}

// NewDefaultDispatcher reads fact files and bundles from the local disk and
// runs the collector commands through exec for remote and live targets.
func NewDefaultDispatcher(exec Executor, packageCommand, liveCommand string) *Dispatcher {
	commands := NewCommandGatherer(exec, packageCommand, liveCommand)
	return NewDispatcher(map[domain.TargetKind]Gatherer{
		domain.TargetFile:    NewFileGatherer(),
		domain.TargetArchive: NewArchiveGatherer(""),
		domain.TargetRemote:  commands,
		domain.TargetLive:    commands,
	})
}
