package domain

import (
	"fmt"
	"strings"
)

// Severity grades a single check. Values are ordered: Pass < Warning < Error.
type Severity int

const (
	SeverityPass Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityPass:
		return "PASS"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Combine returns the more severe of a and b.
func Combine(a, b Severity) Severity {
	if b > a {
		return b
	}
	return a
}

// MaxSeverity folds Combine over all severities. An empty input is a pass.
func MaxSeverity(severities ...Severity) Severity {
	res := SeverityPass
	for _, s := range severities {
		res = Combine(res, s)
	}
	return res
}

// ParseSeverity accepts the String form in any case, plus "WARN".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS":
		return SeverityPass, nil
	case "WARNING", "WARN":
		return SeverityWarning, nil
	case "ERROR":
		return SeverityError, nil
	default:
		return SeverityPass, fmt.Errorf("unknown severity %q", s)
	}
}

// EvaluatedField is the outcome of one field evaluator.
type EvaluatedField struct {
	Severity Severity
	Message  string
}

func Pass(msg string) EvaluatedField {
	return EvaluatedField{Severity: SeverityPass, Message: msg}
}

func Warning(msg string) EvaluatedField {
	return EvaluatedField{Severity: SeverityWarning, Message: msg}
}

func Error(msg string) EvaluatedField {
	return EvaluatedField{Severity: SeverityError, Message: msg}
}
