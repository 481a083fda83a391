package domain

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedFacts marks fact payloads that are missing required fields.
var ErrMalformedFacts = errors.New("malformed facts")

// FactsError names the field that made a fact payload unusable.
type FactsError struct {
	Unit  string
	Field string
}

func (e *FactsError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("malformed facts: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed facts for %s: missing %s", e.Unit, e.Field)
}

func (e *FactsError) Unwrap() error {
	return ErrMalformedFacts
}

// SymbolRequirement is a package-declared expectation on a kernel symbol checksum
// for a given kernel flavor.
type SymbolRequirement struct {
	Symbol   string
	Flavor   string
	Checksum string
}

// ModuleFacts holds what the collection layer observed about one compiled kernel module.
type ModuleFacts struct {
	Path             string
	License          string // may hold several licenses joined by newlines
	SupportedFlags   []string
	SignaturePresent bool
	Signer           string
	ExportedSymbols  map[string]string // symbol -> checksum
	Aliases          []string
	Running          bool
}

func (m ModuleFacts) Validate() error {
	if strings.TrimSpace(m.Path) == "" {
		return &FactsError{Field: "module path"}
	}
	for name, crc := range m.ExportedSymbols {
		if name == "" {
			return &FactsError{Unit: m.Path, Field: "symbol name"}
		}
		if strings.TrimSpace(crc) == "" {
			return &FactsError{Unit: m.Path, Field: "checksum of symbol " + name}
		}
	}
	return nil
}

// PciAliases returns the aliases of the pci: class, the only ones reconciled
// against declared hardware patterns.
func (m ModuleFacts) PciAliases() []string {
	var res []string
	for _, a := range m.Aliases {
		if strings.HasPrefix(a, "pci:") {
			res = append(res, a)
		}
	}
	return res
}

// PackageFacts holds what the collection layer observed about one package.
type PackageFacts struct {
	Name             string
	Path             string
	Vendor           string
	SignaturePresent bool
	Signer           string
	License          string
	WeakModuleHook   bool
	Requirements     []SymbolRequirement
	HardwarePatterns []string
	Modules          []ModuleFacts
}

func (p PackageFacts) Validate() error {
	unit := p.Path
	if unit == "" {
		unit = p.Name
	}
	if strings.TrimSpace(p.Name) == "" {
		return &FactsError{Unit: unit, Field: "name"}
	}
	if strings.TrimSpace(p.Path) == "" {
		return &FactsError{Unit: unit, Field: "path"}
	}
	for _, req := range p.Requirements {
		if req.Symbol == "" {
			return &FactsError{Unit: unit, Field: "symbol requirement name"}
		}
		if strings.TrimSpace(req.Checksum) == "" {
			return &FactsError{Unit: unit, Field: "checksum of required symbol " + req.Symbol}
		}
	}
	seen := make(map[string]struct{}, len(p.Modules))
	for _, m := range p.Modules {
		if err := m.Validate(); err != nil {
			var fe *FactsError
			if errors.As(err, &fe) && fe.Unit == "" {
				fe.Unit = unit
			}
			return err
		}
		if _, dup := seen[m.Path]; dup {
			return fmt.Errorf("%w: duplicate module %s in %s", ErrMalformedFacts, m.Path, unit)
		}
		seen[m.Path] = struct{}{}
	}
	return nil
}

// SymbolRequirements builds the symbol -> accepted checksums lookup. An empty
// flavor keeps the requirements of every flavor. Checksums are normalized.
func (p PackageFacts) SymbolRequirements(flavor string) map[string][]string {
	res := make(map[string][]string)
	for _, req := range p.Requirements {
		if flavor != "" && req.Flavor != "" && req.Flavor != flavor {
			continue
		}
		crc := NormalizeChecksum(req.Checksum)
		if !slices.Contains(res[req.Symbol], crc) {
			res[req.Symbol] = append(res[req.Symbol], crc)
		}
	}
	return res
}

// Patterns returns the normalized declared hardware patterns in declaration order.
func (p PackageFacts) Patterns() []string {
	res := make([]string, 0, len(p.HardwarePatterns))
	for _, pat := range p.HardwarePatterns {
		if n := NormalizePattern(pat); n != "" {
			res = append(res, n)
		}
	}
	return res
}

// SortedModules returns the modules ordered by path.
func (p PackageFacts) SortedModules() []ModuleFacts {
	res := append([]ModuleFacts(nil), p.Modules...)
	sort.SliceStable(res, func(i, j int) bool { return res[i].Path < res[j].Path })
	return res
}

// NormalizeChecksum renders a hexadecimal checksum as 0x%08x so that values
// coming from package metadata and from the module compare equal. Input that is
// not hexadecimal is only trimmed and lower-cased.
func NormalizeChecksum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	digits := strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return s
	}
	return fmt.Sprintf("0x%08x", v)
}

// NormalizePattern strips the package metadata wrapper from a declared hardware
// pattern: "modalias(kernel-default:pci:v*)" becomes "pci:v*" and
// "modalias(kernel-default:*)" becomes "*".
func NormalizePattern(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "modalias(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "modalias("), ")")
	}
	if flavor, rest, ok := strings.Cut(s, ":"); ok && strings.HasPrefix(flavor, "kernel-") &&
		!strings.ContainsAny(flavor, "*?[") && (rest == "*" || strings.Contains(rest, ":")) {
		s = rest
	}
	if i := strings.Index(s, ":pci:"); i >= 0 && !strings.ContainsAny(s[:i], "*?[") {
		s = s[i+1:]
	}
	return s
}
