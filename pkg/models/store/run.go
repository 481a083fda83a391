package store

import (
	"encoding/json"
	"time"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunFinished  RunStatus = "finished"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

type Run struct {
	ID         string
	Mode       string
	Source     string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Targets    int
	Failures   int
	Severity   string
	Error      *string
}

// RunTotals closes a run.
type RunTotals struct {
	Status   RunStatus
	Targets  int
	Failures int
	Severity string
	Error    *string
}

type Result struct {
	RunID    string
	Target   string
	Host     string
	Kind     string
	Severity string
	Failed   bool
	Error    *string
	Verdict  json.RawMessage
}
