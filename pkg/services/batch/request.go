package batch

import (
	"context"
	"fmt"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/services/gather"
)

const (
	ModePackage = "package"
	ModeRemote  = "remote"
	ModeLive    = "live"
)

// Request names what a run audits: fact files under Path (package mode),
// a package path on every host (remote mode), or the running modules of the
// hosts, the local machine when there are none (live mode).
type Request struct {
	Mode  string
	Path  string
	Hosts []string
}

// Source describes the request for run listings.
func (r Request) Source() string {
	switch {
	case len(r.Hosts) > 0 && r.Path != "":
		return fmt.Sprintf("%v:%s", r.Hosts, r.Path)
	case len(r.Hosts) > 0:
		return fmt.Sprintf("%v", r.Hosts)
	default:
		return r.Path
	}
}

func (r Request) Validate() error {
	switch r.Mode {
	case ModePackage:
		if r.Path == "" {
			return fmt.Errorf("package mode needs a path")
		}
	case ModeRemote:
		if r.Path == "" || len(r.Hosts) == 0 {
			return fmt.Errorf("remote mode needs hosts and a path")
		}
	case ModeLive:
	default:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	return nil
}

// Targets resolves the request into a target stream.
func (r Request) Targets(ctx context.Context) (<-chan domain.Target, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	switch r.Mode {
	case ModePackage:
		return gather.Enumerate(ctx, r.Path)
	case ModeRemote:
		targets := make([]domain.Target, 0, len(r.Hosts))
		for _, h := range r.Hosts {
			targets = append(targets, domain.Target{Kind: domain.TargetRemote, Host: h, Path: r.Path})
		}
		return gather.Targets(targets...), nil
	default:
		if len(r.Hosts) == 0 {
			return gather.Targets(domain.Target{Kind: domain.TargetLive}), nil
		}
		targets := make([]domain.Target, 0, len(r.Hosts))
		for _, h := range r.Hosts {
			targets = append(targets, domain.Target{Kind: domain.TargetLive, Host: h})
		}
		return gather.Targets(targets...), nil
	}
}
