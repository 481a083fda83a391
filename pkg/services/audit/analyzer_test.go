package audit

import (
	"errors"
	"testing"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T) *Analyzer {
	a, err := NewAnalyzer(DefaultSettings())
	require.NoError(t, err)
	return a
}

func goodModule(path string) domain.ModuleFacts {
	return domain.ModuleFacts{
		Path:             path,
		License:          "GPL v2",
		SupportedFlags:   []string{"external"},
		SignaturePresent: true,
		ExportedSymbols:  map[string]string{"pci_register_driver": "0x1a2b3c4d"},
		Aliases:          []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*", "acpi*:ACME0001:*"},
	}
}

func goodPackage() domain.PackageFacts {
	return domain.PackageFacts{
		Name:             "acme-kmp-default",
		Path:             "/srv/kmp/acme-kmp-default-1.0-1.x86_64.rpm",
		Vendor:           "Acme Networks",
		SignaturePresent: true,
		License:          "GPL-2.0-only",
		WeakModuleHook:   true,
		Requirements: []domain.SymbolRequirement{
			{Symbol: "pci_register_driver", Flavor: "default", Checksum: "0x1A2B3C4D"},
		},
		HardwarePatterns: []string{"modalias(kernel-default:pci:v000019A2d00000712*)"},
		Modules:          []domain.ModuleFacts{goodModule("/lib/modules/6.4.0-default/updates/acme.ko")},
	}
}

func assertSeverityIsMax(t *testing.T, v domain.PackageVerdict) {
	expected := domain.SeverityPass
	for _, f := range v.Fields() {
		expected = domain.Combine(expected, f.Severity)
	}
	for _, m := range v.Modules {
		assert.Equal(t, domain.MaxSeverity(m.License.Severity, m.Supported.Severity, m.Signature.Severity, m.Symbols.Field.Severity), m.Severity())
		expected = domain.Combine(expected, m.Severity())
	}
	assert.Equal(t, expected, v.Severity())
}

func TestAnalyzePackage_AllPassed(t *testing.T) {
	v := newAnalyzer(t).AnalyzePackage(goodPackage())

	assert.False(t, v.Malformed)
	assert.Equal(t, domain.SeverityPass, v.Severity())
	assert.Equal(t, domain.Pass("acme-kmp-default"), v.Name)
	assert.Equal(t, domain.Pass("All passed"), v.Aliases.Field)
	require.NotNil(t, v.Summary)
	assert.Equal(t, domain.Pass("All passed"), v.Summary.Symbols)
	assert.Equal(t, domain.Pass("external"), v.Summary.Supported)
	require.Len(t, v.Modules, 1)
	assert.Equal(t, domain.SeverityPass, v.Modules[0].Severity())
	assertSeverityIsMax(t, v)
}

func TestAnalyzePackage_WarningsAndErrors(t *testing.T) {
	a := newAnalyzer(t)

	t.Run("empty vendor only warns", func(t *testing.T) {
		p := goodPackage()
		p.Vendor = ""
		v := a.AnalyzePackage(p)
		assert.Equal(t, domain.SeverityWarning, v.Severity())
		assertSeverityIsMax(t, v)
	})

	t.Run("unsigned module is an error", func(t *testing.T) {
		p := goodPackage()
		p.Vendor = ""
		p.Modules[0].SignaturePresent = false
		v := a.AnalyzePackage(p)
		assert.Equal(t, domain.SeverityError, v.Severity())
		assert.Equal(t, domain.Error("Module is not signed"), v.Summary.Signatures)
		assertSeverityIsMax(t, v)
	})

	t.Run("in-house supported flag is an error at module level", func(t *testing.T) {
		p := goodPackage()
		p.Modules[0].SupportedFlags = []string{"yes"}
		v := a.AnalyzePackage(p)
		assert.Equal(t, domain.SeverityError, v.Modules[0].Supported.Severity)
		assert.Equal(t, domain.SeverityError, v.Severity())
	})

	t.Run("undeclared symbol", func(t *testing.T) {
		p := goodPackage()
		p.Requirements = nil
		v := a.AnalyzePackage(p)
		assert.Equal(t, []string{"pci_register_driver"}, v.Modules[0].Symbols.Unfound)
		assert.Equal(t, domain.SeverityError, v.Summary.Symbols.Severity)
		assertSeverityIsMax(t, v)
	})

	t.Run("wildcard pattern", func(t *testing.T) {
		p := goodPackage()
		p.HardwarePatterns = append(p.HardwarePatterns, "*")
		v := a.AnalyzePackage(p)
		assert.Equal(t, domain.SeverityError, v.Aliases.Field.Severity)
		assert.Equal(t, domain.SeverityError, v.Severity())
	})

	t.Run("flavored wildcard pattern", func(t *testing.T) {
		p := goodPackage()
		p.HardwarePatterns = []string{"modalias(kernel-default:*)"}
		v := a.AnalyzePackage(p)
		assert.Equal(t, domain.Error(`Declared alias "*" matches all devices, not recommended`), v.Aliases.Field)
		assert.Empty(t, v.Aliases.UnmatchedDeclared)
		assert.Empty(t, v.Aliases.UnmatchedKernel)
	})

	t.Run("other flavor requirements are ignored when a flavor is set", func(t *testing.T) {
		settings := DefaultSettings()
		settings.KernelFlavor = "rt"
		flavored, err := NewAnalyzer(settings)
		require.NoError(t, err)

		v := flavored.AnalyzePackage(goodPackage())
		assert.Equal(t, []string{"pci_register_driver"}, v.Modules[0].Symbols.Unfound)
	})
}

func TestAnalyzePackage_ModuleSummaryMessages(t *testing.T) {
	p := goodPackage()
	second := goodModule("/lib/modules/6.4.0-default/updates/acme-aux.ko")
	second.License = "Proprietary"
	second.Aliases = nil
	third := goodModule("/lib/modules/6.4.0-default/updates/acme-extra.ko")
	third.License = "Proprietary"
	third.Aliases = nil
	p.Modules = append(p.Modules, second, third)

	v := newAnalyzer(t).AnalyzePackage(p)

	require.Len(t, v.Modules, 3)
	assert.Equal(t, "/lib/modules/6.4.0-default/updates/acme-aux.ko", v.Modules[0].Path)
	assert.Equal(t, domain.SeverityWarning, v.Summary.Licenses.Severity)
	assert.Equal(t, "License not approved: Proprietary GPL v2", v.Summary.Licenses.Message)
	assert.Equal(t, "All passed", v.Summary.Symbols.Message)
	assert.Equal(t, domain.SeverityWarning, v.Severity())
	assertSeverityIsMax(t, v)
}

func TestAnalyzePackage_NoModules(t *testing.T) {
	p := goodPackage()
	p.Modules = nil
	p.HardwarePatterns = nil

	v := newAnalyzer(t).AnalyzePackage(p)
	assert.False(t, v.Malformed)
	assert.Nil(t, v.Summary)
	assert.Empty(t, v.Modules)
	assert.Equal(t, domain.SeverityPass, v.Severity())
}

func TestAnalyzePackage_AliasesUnionAcrossModules(t *testing.T) {
	p := goodPackage()
	second := goodModule("/lib/modules/6.4.0-default/updates/acme-aux.ko")
	second.Aliases = []string{"pci:v000019A2d00000714sv*sd*bc*sc*i*"}
	p.Modules = append(p.Modules, second)
	p.HardwarePatterns = []string{"pci:v000019A2d00000712*", "pci:v000019A2d00000714*"}

	v := newAnalyzer(t).AnalyzePackage(p)
	assert.Equal(t, domain.SeverityPass, v.Aliases.Field.Severity)
}

func TestAnalyzePackage_Malformed(t *testing.T) {
	p := goodPackage()
	p.Name = ""

	v := newAnalyzer(t).AnalyzePackage(p)
	assert.True(t, v.Malformed)
	assert.Equal(t, domain.SeverityError, v.Severity())
	assert.Contains(t, v.Name.Message, "missing name")
	assert.Equal(t, domain.Pass(p.Path), v.Path)
}

func TestMalformedVerdict(t *testing.T) {
	v := MalformedVerdict(domain.PackageFacts{}, errors.New("boom"))
	assert.True(t, v.Malformed)
	assert.Equal(t, domain.Error("boom"), v.Name)
	assert.Equal(t, domain.SeverityError, v.Path.Severity)
}

func TestAnalyzeLiveModule(t *testing.T) {
	a := newAnalyzer(t)

	m := goodModule("/lib/modules/6.4.0-default/kernel/drivers/net/e1000e.ko")
	m.SupportedFlags = []string{"yes"}
	m.Running = true

	v := a.AnalyzeLiveModule(m)
	assert.True(t, v.Running)
	assert.Nil(t, v.Symbols)
	assert.Equal(t, domain.SeverityPass, v.Severity())
	assert.Len(t, v.Fields(), 3)

	m.Path = ""
	v = a.AnalyzeLiveModule(m)
	assert.Equal(t, domain.SeverityError, v.Severity())
}
