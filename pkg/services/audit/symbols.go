package audit

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

// CheckSymbols walks the symbols of a module and looks each one up in the
// package requirements. A symbol the package never declared is a failure even
// if the checksums of every declared symbol match.
func CheckSymbols(symbols map[string]string, requirements map[string][]string) domain.SymbolCheck {
	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	res := domain.SymbolCheck{}
	for _, name := range names {
		required, ok := requirements[name]
		if !ok {
			res.Unfound = append(res.Unfound, name)
			continue
		}
		actual := domain.NormalizeChecksum(symbols[name])
		if !slices.Contains(required, actual) {
			res.Mismatched = append(res.Mismatched, domain.SymbolMismatch{
				Symbol:   name,
				Actual:   actual,
				Required: required,
			})
		}
	}

	if len(res.Unfound) == 0 && len(res.Mismatched) == 0 {
		res.Field = domain.Pass(allPassed)
		return res
	}
	res.Field = domain.Error(fmt.Sprintf("%d symbols not found in package requirements, %d checksum mismatches",
		len(res.Unfound), len(res.Mismatched)))
	return res
}

// DescribeMismatch renders both checksums of a mismatch.
func DescribeMismatch(m domain.SymbolMismatch) string {
	return fmt.Sprintf("%s: module %s, package %s", m.Symbol, m.Actual, strings.Join(m.Required, "|"))
}
