package audit

import (
	"slices"
	"strings"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

// Analyzer turns gathered facts into verdicts. It holds no per-package state
// and is safe for concurrent use.
type Analyzer struct {
	settings Settings
	patterns *PatternCache
}

func NewAnalyzer(settings Settings) (*Analyzer, error) {
	settings = settings.withDefaults()
	patterns, err := NewPatternCache(settings.PatternCacheSize)
	if err != nil {
		return nil, err
	}
	return &Analyzer{settings: settings, patterns: patterns}, nil
}

func (a *Analyzer) Settings() Settings {
	return a.settings
}

// AnalyzeModule grades a module shipped in a package against the symbol
// requirements of that package.
func (a *Analyzer) AnalyzeModule(m domain.ModuleFacts, requirements map[string][]string) domain.ModuleVerdict {
	symbols := CheckSymbols(m.ExportedSymbols, requirements)
	return domain.ModuleVerdict{
		Path:      m.Path,
		Running:   m.Running,
		License:   EvaluateLicense(m.License, a.settings.Licenses),
		Supported: EvaluateModuleSupported(m.SupportedFlags, a.settings.VendorTokens),
		Signature: EvaluateModuleSignature(m.SignaturePresent, m.Signer),
		Symbols:   &symbols,
	}
}

// AnalyzeLiveModule grades a module found on a running system. There is no
// package to reconcile symbols with.
func (a *Analyzer) AnalyzeLiveModule(m domain.ModuleFacts) domain.ModuleVerdict {
	if err := m.Validate(); err != nil {
		v := MalformedModuleVerdict(m.Path, err)
		v.Running = m.Running
		return v
	}
	return domain.ModuleVerdict{
		Path:      m.Path,
		Running:   m.Running,
		License:   EvaluateLicense(m.License, a.settings.Licenses),
		Supported: EvaluateLiveSupported(m.SupportedFlags, a.settings.LiveTokens),
		Signature: EvaluateModuleSignature(m.SignaturePresent, m.Signer),
	}
}

// AnalyzePackage grades a package and every module it ships. Facts that fail
// validation yield a malformed verdict rather than an error.
func (a *Analyzer) AnalyzePackage(p domain.PackageFacts) domain.PackageVerdict {
	if err := p.Validate(); err != nil {
		return MalformedVerdict(p, err)
	}

	verdict := domain.PackageVerdict{
		Name:           EvaluateName(p.Name),
		Path:           EvaluatePath(p.Path),
		Vendor:         EvaluateVendor(p.Vendor),
		Signature:      EvaluatePackageSignature(p.SignaturePresent, p.Signer),
		License:        EvaluateLicense(p.License, a.settings.Licenses),
		WeakModuleHook: EvaluateWeakModuleHook(p.WeakModuleHook, p.Name),
	}

	requirements := p.SymbolRequirements(a.settings.KernelFlavor)
	var aliases []string
	for _, m := range p.SortedModules() {
		verdict.Modules = append(verdict.Modules, a.AnalyzeModule(m, requirements))
		for _, alias := range m.PciAliases() {
			if !slices.Contains(aliases, alias) {
				aliases = append(aliases, alias)
			}
		}
	}

	verdict.Aliases = a.patterns.CheckAliases(p.Patterns(), aliases)
	verdict.Summary = Summarize(verdict.Modules)
	return verdict
}

const notEvaluated = "Not evaluated: malformed facts"

// MalformedVerdict reports facts that could not be analyzed as an error on
// every package field, so the unit still shows up in reports.
func MalformedVerdict(p domain.PackageFacts, err error) domain.PackageVerdict {
	path := domain.Error("Package path is empty")
	if p.Path != "" {
		path = domain.Pass(p.Path)
	}
	return domain.PackageVerdict{
		Malformed:      true,
		Name:           domain.Error(err.Error()),
		Path:           path,
		Vendor:         domain.Error(notEvaluated),
		Signature:      domain.Error(notEvaluated),
		License:        domain.Error(notEvaluated),
		WeakModuleHook: domain.Error(notEvaluated),
		Aliases:        domain.AliasCheck{Field: domain.Error(notEvaluated)},
	}
}

// MalformedModuleVerdict stands in for a module, or a whole host listing,
// whose facts could not be analyzed.
func MalformedModuleVerdict(path string, err error) domain.ModuleVerdict {
	return domain.ModuleVerdict{
		Path:      path,
		License:   domain.Error(err.Error()),
		Supported: domain.Error(notEvaluated),
		Signature: domain.Error(notEvaluated),
	}
}

// Summarize rolls every module field up across modules: the worst severity
// wins and distinct messages are joined with spaces. Nil for no modules.
func Summarize(modules []domain.ModuleVerdict) *domain.ModuleSummary {
	if len(modules) == 0 {
		return nil
	}
	var licenses, signatures, supported, symbols []domain.EvaluatedField
	for _, m := range modules {
		licenses = append(licenses, m.License)
		signatures = append(signatures, m.Signature)
		supported = append(supported, m.Supported)
		if m.Symbols != nil {
			symbols = append(symbols, m.Symbols.Field)
		}
	}
	return &domain.ModuleSummary{
		Licenses:   summarizeField(licenses),
		Signatures: summarizeField(signatures),
		Supported:  summarizeField(supported),
		Symbols:    summarizeField(symbols),
	}
}

func summarizeField(fields []domain.EvaluatedField) domain.EvaluatedField {
	res := domain.EvaluatedField{Severity: domain.SeverityPass}
	var messages []string
	for _, f := range fields {
		res.Severity = domain.Combine(res.Severity, f.Severity)
		if f.Message != "" && !slices.Contains(messages, f.Message) {
			messages = append(messages, f.Message)
		}
	}
	res.Message = strings.Join(messages, " ")
	return res
}
