package adapters

import (
	"github.com/de-tools/kmp-audit/pkg/models/api"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

func MapSeverityDomainToApi(s domain.Severity) api.Severity {
	switch s {
	case domain.SeverityPass:
		return api.SeverityPass
	case domain.SeverityWarning:
		return api.SeverityWarning
	default:
		return api.SeverityError
	}
}

func MapFieldDomainToApi(f domain.EvaluatedField) api.Field {
	return api.Field{
		Severity: MapSeverityDomainToApi(f.Severity),
		Message:  f.Message,
	}
}

func MapSymbolCheckDomainToApi(c domain.SymbolCheck) api.SymbolCheck {
	res := api.SymbolCheck{
		Field:      MapFieldDomainToApi(c.Field),
		Unfound:    nonNil(c.Unfound),
		Mismatched: make([]api.SymbolMismatch, 0, len(c.Mismatched)),
	}
	for _, m := range c.Mismatched {
		res.Mismatched = append(res.Mismatched, api.SymbolMismatch{
			Symbol:   m.Symbol,
			Actual:   m.Actual,
			Required: m.Required,
		})
	}
	return res
}

func MapAliasCheckDomainToApi(c domain.AliasCheck) api.AliasCheck {
	return api.AliasCheck{
		Field:             MapFieldDomainToApi(c.Field),
		UnmatchedKernel:   nonNil(c.UnmatchedKernel),
		UnmatchedDeclared: nonNil(c.UnmatchedDeclared),
	}
}

func MapModuleVerdictDomainToApi(v domain.ModuleVerdict) api.ModuleVerdict {
	res := api.ModuleVerdict{
		Path:      v.Path,
		Running:   v.Running,
		Severity:  MapSeverityDomainToApi(v.Severity()),
		License:   MapFieldDomainToApi(v.License),
		Supported: MapFieldDomainToApi(v.Supported),
		Signature: MapFieldDomainToApi(v.Signature),
	}
	if v.Symbols != nil {
		symbols := MapSymbolCheckDomainToApi(*v.Symbols)
		res.Symbols = &symbols
	}
	return res
}

func MapModuleVerdictsDomainToApi(verdicts []domain.ModuleVerdict) []api.ModuleVerdict {
	res := make([]api.ModuleVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		res = append(res, MapModuleVerdictDomainToApi(v))
	}
	return res
}

func MapPackageVerdictDomainToApi(v domain.PackageVerdict) api.PackageVerdict {
	res := api.PackageVerdict{
		Severity:       MapSeverityDomainToApi(v.Severity()),
		Malformed:      v.Malformed,
		Name:           MapFieldDomainToApi(v.Name),
		Path:           MapFieldDomainToApi(v.Path),
		Vendor:         MapFieldDomainToApi(v.Vendor),
		Signature:      MapFieldDomainToApi(v.Signature),
		License:        MapFieldDomainToApi(v.License),
		WeakModuleHook: MapFieldDomainToApi(v.WeakModuleHook),
		Aliases:        MapAliasCheckDomainToApi(v.Aliases),
		Modules:        MapModuleVerdictsDomainToApi(v.Modules),
	}
	if v.Summary != nil {
		res.Summary = &api.ModuleSummary{
			Licenses:   MapFieldDomainToApi(v.Summary.Licenses),
			Signatures: MapFieldDomainToApi(v.Summary.Signatures),
			Supported:  MapFieldDomainToApi(v.Summary.Supported),
			Symbols:    MapFieldDomainToApi(v.Summary.Symbols),
		}
	}
	return res
}

func MapOutcomeDomainToApi(o domain.Outcome) api.Outcome {
	res := api.Outcome{
		Target:   o.Target.String(),
		Host:     o.Target.Host,
		Kind:     string(o.Target.Kind),
		Severity: MapSeverityDomainToApi(o.Severity()),
		Failed:   o.Failed(),
	}
	if o.Err != nil {
		res.Error = o.Err.Error()
		return res
	}
	if o.Package != nil {
		pkg := MapPackageVerdictDomainToApi(*o.Package)
		res.Package = &pkg
	}
	if o.Modules != nil {
		res.Modules = MapModuleVerdictsDomainToApi(o.Modules)
	}
	return res
}

func MapSummaryDomainToApi(s domain.Summary) api.Summary {
	return api.Summary{
		Severity:  MapSeverityDomainToApi(s.Severity()),
		Total:     s.Total,
		Passed:    s.Passed,
		Warnings:  s.Warnings,
		Errors:    s.Errors,
		Malformed: s.Malformed,
		Failed:    s.Failed,
	}
}

func MapReportToApi(outcomes []domain.Outcome) api.Report {
	res := api.Report{
		Outcomes: make([]api.Outcome, 0, len(outcomes)),
		Summary:  MapSummaryDomainToApi(domain.Summarize(outcomes)),
	}
	for _, o := range outcomes {
		res.Outcomes = append(res.Outcomes, MapOutcomeDomainToApi(o))
	}
	return res
}

// nonNil keeps empty lists rendered as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
