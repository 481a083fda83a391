package api

import (
	"encoding/json"
	"time"
)

type Severity string

const (
	SeverityPass    Severity = "PASS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

type Field struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type SymbolMismatch struct {
	Symbol   string   `json:"symbol"`
	Actual   string   `json:"actual"`
	Required []string `json:"required"`
}

type SymbolCheck struct {
	Field
	Unfound    []string         `json:"unfound"`
	Mismatched []SymbolMismatch `json:"mismatched"`
}

type AliasCheck struct {
	Field
	UnmatchedKernel   []string `json:"unmatched_kernel_aliases"`
	UnmatchedDeclared []string `json:"unmatched_declared_aliases"`
}

type ModuleVerdict struct {
	Path      string       `json:"path"`
	Running   bool         `json:"running"`
	Severity  Severity     `json:"severity"`
	License   Field        `json:"license"`
	Supported Field        `json:"supported"`
	Signature Field        `json:"signature"`
	Symbols   *SymbolCheck `json:"symbols,omitempty"`
}

type ModuleSummary struct {
	Licenses   Field `json:"licenses"`
	Signatures Field `json:"signatures"`
	Supported  Field `json:"supported"`
	Symbols    Field `json:"symbols"`
}

type PackageVerdict struct {
	Severity       Severity        `json:"severity"`
	Malformed      bool            `json:"malformed,omitempty"`
	Name           Field           `json:"name"`
	Path           Field           `json:"path"`
	Vendor         Field           `json:"vendor"`
	Signature      Field           `json:"signature"`
	License        Field           `json:"license"`
	WeakModuleHook Field           `json:"weak_module_hook"`
	Aliases        AliasCheck      `json:"aliases"`
	Summary        *ModuleSummary  `json:"module_summary,omitempty"`
	Modules        []ModuleVerdict `json:"modules"`
}

// Outcome is one reported target. Failed outcomes carry an error and no verdict.
type Outcome struct {
	Target   string          `json:"target"`
	Host     string          `json:"host,omitempty"`
	Kind     string          `json:"kind"`
	Severity Severity        `json:"severity"`
	Failed   bool            `json:"failed"`
	Error    string          `json:"error,omitempty"`
	Package  *PackageVerdict `json:"package,omitempty"`
	Modules  []ModuleVerdict `json:"modules,omitempty"`
}

type Summary struct {
	Severity  Severity `json:"severity"`
	Total     int      `json:"total"`
	Passed    int      `json:"passed"`
	Warnings  int      `json:"warnings"`
	Errors    int      `json:"errors"`
	Malformed int      `json:"malformed"`
	Failed    int      `json:"failed"`
}

type Report struct {
	Outcomes []Outcome `json:"outcomes"`
	Summary  Summary   `json:"summary"`
}

type Run struct {
	ID         string     `json:"id"`
	Mode       string     `json:"mode"`
	Source     string     `json:"source,omitempty"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Targets    int        `json:"targets"`
	Failures   int        `json:"failures"`
	Severity   Severity   `json:"severity,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type RunResult struct {
	Target   string          `json:"target"`
	Host     string          `json:"host,omitempty"`
	Kind     string          `json:"kind"`
	Severity Severity        `json:"severity"`
	Failed   bool            `json:"failed"`
	Error    string          `json:"error,omitempty"`
	Verdict  json.RawMessage `json:"verdict,omitempty"`
}

// StartRunRequest starts a background audit of fact files under a server
// local path, or of the running modules of inventory hosts.
type StartRunRequest struct {
	Mode  string   `json:"mode"`
	Path  string   `json:"path,omitempty"`
	Hosts []string `json:"hosts,omitempty"`
}
