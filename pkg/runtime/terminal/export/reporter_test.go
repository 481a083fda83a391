package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/de-tools/kmp-audit/pkg/models/api"
	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutcomes() []domain.Outcome {
	pkg := domain.PackageVerdict{
		Name:           domain.Pass("acme-kmp-default"),
		Path:           domain.Pass("/srv/kmp/acme.rpm"),
		Vendor:         domain.Warning("Vendor is empty"),
		Signature:      domain.Pass("Signed"),
		License:        domain.Pass("GPL"),
		WeakModuleHook: domain.Pass("weak-modules invoked"),
		Aliases:        domain.AliasCheck{Field: domain.Pass("All passed")},
		Summary: &domain.ModuleSummary{
			Licenses:   domain.Pass("GPL"),
			Signatures: domain.Pass("Signed"),
			Supported:  domain.Pass("external"),
			Symbols:    domain.Pass("All passed"),
		},
		Modules: []domain.ModuleVerdict{{
			Path:      "/lib/modules/acme.ko",
			License:   domain.Pass("GPL"),
			Supported: domain.Pass("external"),
			Signature: domain.Pass("Signed"),
			Symbols:   &domain.SymbolCheck{Field: domain.Pass("All passed")},
		}},
	}
	host := domain.Target{Kind: domain.TargetRemote, Host: "node-2", Path: "/srv/b.rpm"}
	return []domain.Outcome{
		{Target: domain.Target{Kind: domain.TargetFile, Path: "/facts/acme.json"}, Package: &pkg},
		{Target: host, Err: &domain.GatherError{Target: host, Err: errors.New("connection refused")}},
		{
			Target: domain.Target{Kind: domain.TargetLive, Host: "node-1"},
			Modules: []domain.ModuleVerdict{{
				Path:      "/lib/modules/e1000e.ko",
				Running:   true,
				License:   domain.Pass("GPL"),
				Supported: domain.Pass("Supported by the OS vendor"),
				Signature: domain.Error("Module is not signed"),
			}},
		},
	}
}

func TestNewReporter(t *testing.T) {
	r, err := NewReporter("", &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &TextReporter{}, r)

	r, err = NewReporter(FormatJSON, &bytes.Buffer{})
	require.NoError(t, err)
	assert.IsType(t, &JSONReporter{}, r)

	_, err = NewReporter("pdf", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestTextReporter_Handle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextReporter(&buf).Handle(sampleOutcomes()))
	out := buf.String()

	assert.Contains(t, out, "=== /facts/acme.json [WARNING] ===")
	assert.Contains(t, out, "| Vendor                   | WARNING  | Vendor is empty")
	assert.Contains(t, out, "| Module symbols")
	assert.Contains(t, out, "/lib/modules/acme.ko [PASS]")
	assert.Contains(t, out, "=== node-2:/srv/b.rpm [ERROR] ===")
	assert.Contains(t, out, "FAILED: gather node-2:/srv/b.rpm: connection refused")
	assert.Contains(t, out, "/lib/modules/e1000e.ko [ERROR] (running)")
	assert.Contains(t, out, "Module is not signed")
	assert.Contains(t, out, "3 targets: 0 passed, 1 warnings, 1 errors (0 malformed), 1 failed")
}

func TestJSONReporter_Handle(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewReporter(FormatJSON, &buf)
	require.NoError(t, err)
	require.NoError(t, r.Handle(sampleOutcomes()))

	var report api.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, api.SeverityWarning, report.Outcomes[0].Severity)
	require.NotNil(t, report.Outcomes[0].Package)
	assert.True(t, report.Outcomes[1].Failed)
	assert.Nil(t, report.Outcomes[1].Package)
	assert.Len(t, report.Outcomes[2].Modules, 1)
	assert.Equal(t, api.SeverityError, report.Summary.Severity)
	assert.Equal(t, 1, report.Summary.Failed)
}
