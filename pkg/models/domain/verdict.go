package domain

// SymbolMismatch records an exported symbol whose checksum differs from the
// checksum the package declared for it.
type SymbolMismatch struct {
	Symbol   string
	Actual   string
	Required []string
}

// SymbolCheck is the outcome of reconciling one module's symbols with the
// package requirements.
type SymbolCheck struct {
	Field      EvaluatedField
	Unfound    []string
	Mismatched []SymbolMismatch
}

// AliasCheck is the outcome of reconciling module aliases with the hardware
// patterns a package declares.
type AliasCheck struct {
	Field             EvaluatedField
	UnmatchedKernel   []string
	UnmatchedDeclared []string
}

// ModuleVerdict grades one kernel module. Symbols is nil for modules audited
// outside of a package (live system mode).
type ModuleVerdict struct {
	Path      string
	Running   bool
	License   EvaluatedField
	Supported EvaluatedField
	Signature EvaluatedField
	Symbols   *SymbolCheck
}

// Fields lists the evaluated fields the verdict is made of.
func (v ModuleVerdict) Fields() []EvaluatedField {
	fields := []EvaluatedField{v.License, v.Supported, v.Signature}
	if v.Symbols != nil {
		fields = append(fields, v.Symbols.Field)
	}
	return fields
}

func (v ModuleVerdict) Severity() Severity {
	return maxField(v.Fields())
}

// ModuleSummary rolls a single module field up across all modules of a package.
type ModuleSummary struct {
	Licenses   EvaluatedField
	Signatures EvaluatedField
	Supported  EvaluatedField
	Symbols    EvaluatedField
}

func (s ModuleSummary) Fields() []EvaluatedField {
	return []EvaluatedField{s.Licenses, s.Signatures, s.Supported, s.Symbols}
}

// PackageVerdict grades one package. Summary is nil when the package ships
// no modules. Malformed verdicts are synthesized for facts that failed validation.
type PackageVerdict struct {
	Malformed      bool
	Name           EvaluatedField
	Path           EvaluatedField
	Vendor         EvaluatedField
	Signature      EvaluatedField
	License        EvaluatedField
	WeakModuleHook EvaluatedField
	Aliases        AliasCheck
	Summary        *ModuleSummary
	Modules        []ModuleVerdict
}

// Fields lists every package-level field, the module summaries and the alias result.
func (v PackageVerdict) Fields() []EvaluatedField {
	fields := []EvaluatedField{v.Name, v.Path, v.Vendor, v.Signature, v.License, v.WeakModuleHook, v.Aliases.Field}
	if v.Summary != nil {
		fields = append(fields, v.Summary.Fields()...)
	}
	return fields
}

func (v PackageVerdict) Severity() Severity {
	res := maxField(v.Fields())
	for _, m := range v.Modules {
		res = Combine(res, m.Severity())
	}
	return res
}

func maxField(fields []EvaluatedField) Severity {
	res := SeverityPass
	for _, f := range fields {
		res = Combine(res, f.Severity)
	}
	return res
}
