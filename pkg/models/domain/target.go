package domain

import (
	"errors"
	"fmt"
)

type TargetKind string

const (
	TargetFile    TargetKind = "file"
	TargetArchive TargetKind = "archive"
	TargetRemote  TargetKind = "remote"
	TargetLive    TargetKind = "live"
)

// Target is one unit of work for the batch driver: a fact file, a fact bundle,
// a package path on a remote host, or the running modules of a host.
type Target struct {
	Kind TargetKind
	Host string // empty for the local machine
	Path string
}

// Key orders targets for stable reports.
func (t Target) Key() string {
	return t.Host + "\x00" + t.Path
}

func (t Target) String() string {
	switch {
	case t.Host != "" && t.Path != "":
		return fmt.Sprintf("%s:%s", t.Host, t.Path)
	case t.Host != "":
		return t.Host
	default:
		return t.Path
	}
}

// GatherError reports that facts for a target could not be collected.
type GatherError struct {
	Target Target
	Err    error
}

func (e *GatherError) Error() string {
	return fmt.Sprintf("gather %s: %v", e.Target, e.Err)
}

func (e *GatherError) Unwrap() error {
	return e.Err
}

// Outcome is what the batch driver emits per target: a package verdict, the
// verdicts of a host's modules, or a gathering failure. Exactly one is set.
type Outcome struct {
	Target  Target
	Package *PackageVerdict
	Modules []ModuleVerdict
	Err     error
}

// Failed reports a gathering failure, which carries no verdict.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Malformed reports whether the verdict was synthesized from unusable facts.
func (o Outcome) Malformed() bool {
	return o.Err == nil && o.Package != nil && o.Package.Malformed
}

func (o Outcome) Severity() Severity {
	if o.Err != nil {
		return SeverityError
	}
	res := SeverityPass
	if o.Package != nil {
		res = o.Package.Severity()
	}
	for _, m := range o.Modules {
		res = Combine(res, m.Severity())
	}
	return res
}

// IsGatherFailure reports whether err originates from the fact-gathering collaborator.
func IsGatherFailure(err error) bool {
	var ge *GatherError
	return errors.As(err, &ge)
}
