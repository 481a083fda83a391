package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/de-tools/kmp-audit/pkg/models/api"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/models/store"
)

// MapOutcomeDomainToStoreResult flattens an outcome into a result row, the
// verdict tree is kept as its JSON rendering.
func MapOutcomeDomainToStoreResult(o domain.Outcome) (store.Result, error) {
	res := store.Result{
		Target:   o.Target.String(),
		Host:     o.Target.Host,
		Kind:     string(o.Target.Kind),
		Severity: o.Severity().String(),
		Failed:   o.Failed(),
	}
	if o.Err != nil {
		msg := o.Err.Error()
		res.Error = &msg
		return res, nil
	}

	var verdict any
	switch {
	case o.Package != nil:
		verdict = MapPackageVerdictDomainToApi(*o.Package)
	default:
		verdict = MapModuleVerdictsDomainToApi(o.Modules)
	}
	data, err := json.Marshal(verdict)
	if err != nil {
		return res, fmt.Errorf("marshal verdict of %s: %w", res.Target, err)
	}
	res.Verdict = data
	return res, nil
}

func MapRunStoreToApi(r store.Run) api.Run {
	res := api.Run{
		ID:         r.ID,
		Mode:       r.Mode,
		Source:     r.Source,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Targets:    r.Targets,
		Failures:   r.Failures,
		Severity:   api.Severity(r.Severity),
	}
	if r.Error != nil {
		res.Error = *r.Error
	}
	return res
}

func MapResultStoreToApi(r store.Result) api.RunResult {
	res := api.RunResult{
		Target:   r.Target,
		Host:     r.Host,
		Kind:     r.Kind,
		Severity: api.Severity(r.Severity),
		Failed:   r.Failed,
		Verdict:  r.Verdict,
	}
	if r.Error != nil {
		res.Error = *r.Error
	}
	return res
}
