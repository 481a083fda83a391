package adapters

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/de-tools/kmp-audit/pkg/models/api"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/models/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePackageVerdict() domain.PackageVerdict {
	return domain.PackageVerdict{
		Name:           domain.Pass("acme-kmp-default"),
		Path:           domain.Pass("/srv/kmp/acme.rpm"),
		Vendor:         domain.Warning("Vendor is empty"),
		Signature:      domain.Pass("Signed"),
		License:        domain.Pass("GPL"),
		WeakModuleHook: domain.Pass("weak-modules invoked"),
		Aliases:        domain.AliasCheck{Field: domain.Pass("All passed")},
		Summary: &domain.ModuleSummary{
			Licenses:   domain.Pass("GPL"),
			Signatures: domain.Error("Module is not signed"),
			Supported:  domain.Pass("external"),
			Symbols:    domain.Pass("All passed"),
		},
		Modules: []domain.ModuleVerdict{{
			Path:      "/lib/modules/acme.ko",
			License:   domain.Pass("GPL"),
			Supported: domain.Pass("external"),
			Signature: domain.Error("Module is not signed"),
			Symbols:   &domain.SymbolCheck{Field: domain.Pass("All passed")},
		}},
	}
}

func TestMapSeverityDomainToApi(t *testing.T) {
	assert.Equal(t, api.SeverityPass, MapSeverityDomainToApi(domain.SeverityPass))
	assert.Equal(t, api.SeverityWarning, MapSeverityDomainToApi(domain.SeverityWarning))
	assert.Equal(t, api.SeverityError, MapSeverityDomainToApi(domain.SeverityError))
}

func TestMapPackageVerdictDomainToApi(t *testing.T) {
	v := MapPackageVerdictDomainToApi(samplePackageVerdict())

	assert.Equal(t, api.SeverityError, v.Severity)
	assert.Equal(t, api.Field{Severity: api.SeverityWarning, Message: "Vendor is empty"}, v.Vendor)
	require.NotNil(t, v.Summary)
	assert.Equal(t, api.SeverityError, v.Summary.Signatures.Severity)
	require.Len(t, v.Modules, 1)
	assert.Equal(t, api.SeverityError, v.Modules[0].Severity)
	require.NotNil(t, v.Modules[0].Symbols)
	assert.Equal(t, []string{}, v.Modules[0].Symbols.Unfound)

	data, err := json.Marshal(v.Aliases)
	require.NoError(t, err)
	assert.JSONEq(t, `{"severity":"PASS","message":"All passed","unmatched_kernel_aliases":[],"unmatched_declared_aliases":[]}`, string(data))
}

func TestMapOutcomeDomainToApi(t *testing.T) {
	target := domain.Target{Kind: domain.TargetRemote, Host: "node-1", Path: "/srv/a.rpm"}

	failed := MapOutcomeDomainToApi(domain.Outcome{
		Target: target,
		Err:    &domain.GatherError{Target: target, Err: errors.New("connection refused")},
	})
	assert.True(t, failed.Failed)
	assert.Equal(t, api.SeverityError, failed.Severity)
	assert.Equal(t, "node-1:/srv/a.rpm", failed.Target)
	assert.Contains(t, failed.Error, "connection refused")
	assert.Nil(t, failed.Package)

	live := MapOutcomeDomainToApi(domain.Outcome{
		Target:  domain.Target{Kind: domain.TargetLive, Host: "node-1"},
		Modules: []domain.ModuleVerdict{{Path: "/lib/modules/e1000e.ko", License: domain.Pass("GPL")}},
	})
	assert.False(t, live.Failed)
	require.Len(t, live.Modules, 1)
	assert.Nil(t, live.Modules[0].Symbols)
}

func TestMapReportToApi(t *testing.T) {
	v := samplePackageVerdict()
	report := MapReportToApi([]domain.Outcome{
		{Target: domain.Target{Kind: domain.TargetFile, Path: "/a.json"}, Package: &v},
		{Target: domain.Target{Kind: domain.TargetRemote, Host: "node-1"}, Err: errors.New("timeout")},
	})
	assert.Len(t, report.Outcomes, 2)
	assert.Equal(t, api.Summary{Severity: api.SeverityError, Total: 2, Errors: 1, Failed: 1}, report.Summary)
}

func TestMapOutcomeDomainToStoreResult(t *testing.T) {
	v := samplePackageVerdict()
	res, err := MapOutcomeDomainToStoreResult(domain.Outcome{
		Target:  domain.Target{Kind: domain.TargetFile, Path: "/a.json"},
		Package: &v,
	})
	require.NoError(t, err)
	assert.Equal(t, "/a.json", res.Target)
	assert.Equal(t, "ERROR", res.Severity)
	assert.False(t, res.Failed)
	assert.Nil(t, res.Error)

	var decoded api.PackageVerdict
	require.NoError(t, json.Unmarshal(res.Verdict, &decoded))
	assert.Equal(t, "acme-kmp-default", decoded.Name.Message)

	res, err = MapOutcomeDomainToStoreResult(domain.Outcome{
		Target: domain.Target{Kind: domain.TargetLive, Host: "node-1"},
		Err:    errors.New("timeout"),
	})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	require.NotNil(t, res.Error)
	assert.Equal(t, "timeout", *res.Error)
	assert.Empty(t, res.Verdict)
}

func TestMapRunStoreToApi(t *testing.T) {
	msg := "cancelled"
	started := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	run := MapRunStoreToApi(store.Run{
		ID:        "run-1",
		Mode:      "live",
		Status:    store.RunCancelled,
		StartedAt: started,
		Severity:  "ERROR",
		Error:     &msg,
	})
	assert.Equal(t, "cancelled", run.Status)
	assert.Equal(t, api.SeverityError, run.Severity)
	assert.Equal(t, "cancelled", run.Error)
	assert.Nil(t, run.FinishedAt)
}
