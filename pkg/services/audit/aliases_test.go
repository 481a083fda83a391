package audit

import (
	"testing"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPatternCache(t *testing.T) *PatternCache {
	pc, err := NewPatternCache(16)
	require.NoError(t, err)
	return pc
}

func TestCheckAliases(t *testing.T) {
	tests := []struct {
		name              string
		patterns          []string
		aliases           []string
		severity          domain.Severity
		unmatchedKernel   []string
		unmatchedDeclared []string
	}{
		{
			name:     "vendor device prefix matches full alias",
			patterns: []string{"pci:v000019A2d00000712*"},
			aliases:  []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*"},
			severity: domain.SeverityPass,
		},
		{
			name:     "bare wildcard always fails",
			patterns: []string{"pci:v000019A2d00000712*", "*"},
			aliases:  []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*"},
			severity: domain.SeverityError,
		},
		{
			name:     "bare wildcard with no aliases",
			patterns: []string{"*"},
			severity: domain.SeverityError,
		},
		{
			name:     "nothing declared nothing advertised",
			severity: domain.SeverityPass,
		},
		{
			name:            "alias not covered",
			patterns:        []string{"pci:v000019A2d00000712*"},
			aliases:         []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*", "pci:v00008086d000010FBsv*sd*bc*sc*i*"},
			severity:        domain.SeverityError,
			unmatchedKernel: []string{"pci:v00008086d000010FBsv*sd*bc*sc*i*"},
		},
		{
			name:              "declared pattern never used",
			patterns:          []string{"pci:v000019A2d00000712*", "pci:v000019A2d00000714*"},
			aliases:           []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*"},
			severity:          domain.SeverityError,
			unmatchedDeclared: []string{"pci:v000019A2d00000714*"},
		},
		{
			name:     "one pattern covers many aliases",
			patterns: []string{"pci:v000019A2d0000071?*"},
			aliases:  []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*", "pci:v000019A2d00000714sv*sd*bc*sc*i*"},
			severity: domain.SeverityPass,
		},
		{
			name:              "only the first matching pattern is credited",
			patterns:          []string{"pci:v000019A2*", "pci:v000019A2d00000712*"},
			aliases:           []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*"},
			severity:          domain.SeverityError,
			unmatchedDeclared: []string{"pci:v000019A2d00000712*"},
		},
		{
			name:     "bracket expressions",
			patterns: []string{"pci:v000019A2d0000071[24]*"},
			aliases:  []string{"pci:v000019A2d00000712sv*sd*bc*sc*i*", "pci:v000019A2d00000714sv*sd*bc*sc*i*"},
			severity: domain.SeverityPass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newPatternCache(t).CheckAliases(tt.patterns, tt.aliases)
			assert.Equal(t, tt.severity, got.Field.Severity)
			assert.Equal(t, tt.unmatchedKernel, got.UnmatchedKernel)
			assert.Equal(t, tt.unmatchedDeclared, got.UnmatchedDeclared)
		})
	}
}

func TestCheckAliases_Messages(t *testing.T) {
	pc := newPatternCache(t)

	got := pc.CheckAliases([]string{"*"}, nil)
	assert.Equal(t, `Declared alias "*" matches all devices, not recommended`, got.Field.Message)

	got = pc.CheckAliases([]string{"pci:v1*"}, []string{"pci:v2"})
	assert.Equal(t, "Unmatched kernel aliases: [pci:v2] Unmatched declared aliases: [pci:v1*]", got.Field.Message)

	got = pc.CheckAliases([]string{"pci:v1*"}, []string{"pci:v1"})
	assert.Equal(t, "All passed", got.Field.Message)
}

func TestPatternCache_Match(t *testing.T) {
	pc := newPatternCache(t)

	assert.True(t, pc.Match("pci:v*d*", "pci:v1d2"))
	assert.True(t, pc.Match("pci:v?", "pci:v1"))
	assert.False(t, pc.Match("pci:v?", "pci:v12"))
	assert.True(t, pc.Match("pci:v[!2]", "pci:v1"))
	assert.False(t, pc.Match("pci:v[!2]", "pci:v2"))
	// braces carry no alternation
	assert.False(t, pc.Match("pci:{a,b}", "pci:a"))
	assert.True(t, pc.Match("pci:{a,b}", "pci:{a,b}"))

	assert.Equal(t, 4, pc.Len())
}

func TestPatternCache_MatchUnclosedBracket(t *testing.T) {
	pc := newPatternCache(t)

	assert.True(t, pc.Match("pci:v[00001234*", "pci:v[00001234d1"))
	assert.False(t, pc.Match("pci:v[00001234*", "pci:v00001234d1"))
	assert.True(t, pc.Match("pci:v]1*", "pci:v]12"))
	assert.True(t, pc.Match("pci:v0000[01]234", "pci:v00001234"))
}
