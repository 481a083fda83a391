package gather

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// packageDocument is the wire form of package facts. Pointer fields are
// required and checked explicitly, a missing boolean must not read as false.
type packageDocument struct {
	Name                  *string               `json:"name" yaml:"name"`
	Path                  string                `json:"path" yaml:"path"`
	Vendor                string                `json:"vendor" yaml:"vendor"`
	SignaturePresent      *bool                 `json:"signature_present" yaml:"signature_present"`
	Signer                string                `json:"signer" yaml:"signer"`
	License               string                `json:"license" yaml:"license"`
	WeakModuleHookInvoked *bool                 `json:"weak_module_hook_invoked" yaml:"weak_module_hook_invoked"`
	SymbolRequirements    []requirementDocument `json:"symbol_requirements" yaml:"symbol_requirements"`
	HardwareIDPatterns    []string              `json:"hardware_id_patterns" yaml:"hardware_id_patterns"`
	Modules               []moduleDocument      `json:"modules" yaml:"modules"`
}

type requirementDocument struct {
	Symbol       string `json:"symbol" yaml:"symbol"`
	KernelFlavor string `json:"kernel_flavor" yaml:"kernel_flavor"`
	Checksum     string `json:"checksum" yaml:"checksum"`
}

type moduleDocument struct {
	Path              *string           `json:"path" yaml:"path"`
	License           string            `json:"license" yaml:"license"`
	SupportedFlags    []string          `json:"supported_flags" yaml:"supported_flags"`
	SignaturePresent  *bool             `json:"signature_present" yaml:"signature_present"`
	Signer            string            `json:"signer" yaml:"signer"`
	ExportedSymbols   map[string]string `json:"exported_symbols" yaml:"exported_symbols"`
	AdvertisedAliases []string          `json:"advertised_aliases" yaml:"advertised_aliases"`
	Running           bool              `json:"running" yaml:"running"`
}

func unmarshal(data []byte, format Format, v any) error {
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(v)
	case FormatYAML:
		err = yaml.Unmarshal(data, v)
	default:
		return fmt.Errorf("unsupported fact format %q", format)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedFacts, err)
	}
	return nil
}

// DecodePackageFacts parses one package fact document. fallbackPath is used
// when the document does not name its own path.
func DecodePackageFacts(data []byte, format Format, fallbackPath string) (domain.PackageFacts, error) {
	var doc packageDocument
	if err := unmarshal(data, format, &doc); err != nil {
		return domain.PackageFacts{}, err
	}

	path := doc.Path
	if path == "" {
		path = fallbackPath
	}
	facts := domain.PackageFacts{
		Path:             path,
		Vendor:           doc.Vendor,
		Signer:           doc.Signer,
		License:          doc.License,
		HardwarePatterns: doc.HardwareIDPatterns,
	}
	if doc.Name == nil {
		return facts, &domain.FactsError{Unit: path, Field: "name"}
	}
	facts.Name = *doc.Name
	if doc.SignaturePresent == nil {
		return facts, &domain.FactsError{Unit: path, Field: "signature_present"}
	}
	facts.SignaturePresent = *doc.SignaturePresent
	if doc.WeakModuleHookInvoked == nil {
		return facts, &domain.FactsError{Unit: path, Field: "weak_module_hook_invoked"}
	}
	facts.WeakModuleHook = *doc.WeakModuleHookInvoked

	for _, r := range doc.SymbolRequirements {
		facts.Requirements = append(facts.Requirements, domain.SymbolRequirement{
			Symbol:   r.Symbol,
			Flavor:   r.KernelFlavor,
			Checksum: r.Checksum,
		})
	}
	for _, m := range doc.Modules {
		module, err := m.toDomain(path)
		if err != nil {
			return facts, err
		}
		facts.Modules = append(facts.Modules, module)
	}

	if err := facts.Validate(); err != nil {
		return facts, err
	}
	return facts, nil
}

// DecodeModuleFacts parses a list of module facts, as reported for a running system.
func DecodeModuleFacts(data []byte, format Format, unit string) ([]domain.ModuleFacts, error) {
	var docs []moduleDocument
	if err := unmarshal(data, format, &docs); err != nil {
		return nil, err
	}
	res := make([]domain.ModuleFacts, 0, len(docs))
	for _, d := range docs {
		m, err := d.toDomain(unit)
		if err != nil {
			return nil, err
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, nil
}

func (d moduleDocument) toDomain(unit string) (domain.ModuleFacts, error) {
	if d.Path == nil || *d.Path == "" {
		return domain.ModuleFacts{}, &domain.FactsError{Unit: unit, Field: "module path"}
	}
	if d.SignaturePresent == nil {
		return domain.ModuleFacts{}, &domain.FactsError{Unit: *d.Path, Field: "signature_present"}
	}
	return domain.ModuleFacts{
		Path:             *d.Path,
		License:          d.License,
		SupportedFlags:   d.SupportedFlags,
		SignaturePresent: *d.SignaturePresent,
		Signer:           d.Signer,
		ExportedSymbols:  d.ExportedSymbols,
		Aliases:          d.AdvertisedAliases,
		Running:          d.Running,
	}, nil
}
