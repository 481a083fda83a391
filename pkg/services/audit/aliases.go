package audit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
)

// MatchAll is the declared pattern that binds a package to every device.
const MatchAll = "*"

// CheckAliases reconciles the hardware patterns a package declares with the
// aliases its modules advertise. A pattern is credited to the first alias it
// matches in declaration order; a single pattern may cover many aliases.
func (pc *PatternCache) CheckAliases(patterns []string, aliases []string) domain.AliasCheck {
	if slices.Contains(patterns, MatchAll) {
		return domain.AliasCheck{
			Field: domain.Error(`Declared alias "*" matches all devices, not recommended`),
		}
	}

	unused := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !slices.Contains(unused, p) {
			unused = append(unused, p)
		}
	}

	res := domain.AliasCheck{}
	for _, alias := range aliases {
		matched := false
		for _, p := range patterns {
			if pc.Match(p, alias) {
				matched = true
				if i := slices.Index(unused, p); i >= 0 {
					unused = slices.Delete(unused, i, i+1)
				}
				break
			}
		}
		if !matched {
			res.UnmatchedKernel = append(res.UnmatchedKernel, alias)
		}
	}
	if len(unused) > 0 {
		res.UnmatchedDeclared = unused
	}

	if len(res.UnmatchedKernel) == 0 && len(res.UnmatchedDeclared) == 0 {
		res.Field = domain.Pass(allPassed)
		return res
	}
	res.Field = domain.Error(fmt.Sprintf("Unmatched kernel aliases: [%s] Unmatched declared aliases: [%s]",
		strings.Join(res.UnmatchedKernel, ", "), strings.Join(res.UnmatchedDeclared, ", ")))
	return res
}
