package domain

import "fmt"

// Summary counts the outcomes of a batch.
type Summary struct {
	Total     int
	Passed    int
	Warnings  int
	Errors    int
	Failed    int
	Malformed int
}

func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		s.Add(o)
	}
	return s
}

// Add accounts for one more outcome. Failures are not counted as errors.
func (s *Summary) Add(o Outcome) {
	s.Total++
	if o.Failed() {
		s.Failed++
		return
	}
	if o.Malformed() {
		s.Malformed++
	}
	switch o.Severity() {
	case SeverityPass:
		s.Passed++
	case SeverityWarning:
		s.Warnings++
	default:
		s.Errors++
	}
}

// Severity is the worst result of the batch, failures count as errors.
func (s Summary) Severity() Severity {
	switch {
	case s.Errors > 0 || s.Failed > 0:
		return SeverityError
	case s.Warnings > 0:
		return SeverityWarning
	default:
		return SeverityPass
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("%d targets: %d passed, %d warnings, %d errors (%d malformed), %d failed",
		s.Total, s.Passed, s.Warnings, s.Errors, s.Malformed, s.Failed)
}
