package audit

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

// PatternCache compiles shell-style hardware patterns once and shares them
// between concurrent analyses.
type PatternCache struct {
	cache *lru.Cache[string, glob.Glob]
}

// NewPatternCache keeps at most size compiled patterns.
func NewPatternCache(size int) (*PatternCache, error) {
	c, err := lru.New[string, glob.Glob](size)
	if err != nil {
		return nil, fmt.Errorf("create pattern cache: %w", err)
	}
	return &PatternCache{cache: c}, nil
}

// Match reports whether s matches pattern using *, ? and [...] with the
// fnmatch meaning. Braces, backslashes and unclosed brackets are literal.
func (pc *PatternCache) Match(pattern, s string) bool {
	if g, ok := pc.cache.Get(pattern); ok {
		return g.Match(s)
	}
	g, err := glob.Compile(escapeGlob(pattern))
	if err != nil {
		// patterns glob cannot compile only match themselves
		return pattern == s
	}
	pc.cache.Add(pattern, g)
	return g.Match(s)
}

// Len is the number of compiled patterns currently cached.
func (pc *PatternCache) Len() int {
	return pc.cache.Len()
}

// escapeGlob quotes what gobwas/glob would read differently from fnmatch:
// braces, backslashes, and brackets that do not open a complete class.
func escapeGlob(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '\\', '{', '}', ']':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '[':
			end := classEnd(pattern, i)
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(pattern[i : end+1])
			i = end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// classEnd returns the index of the bracket closing the class opened at start,
// or -1. A ']' right after "[" or "[!" belongs to the class.
func classEnd(pattern string, start int) int {
	j := start + 1
	if j < len(pattern) && pattern[j] == '!' {
		j++
	}
	if j < len(pattern) && pattern[j] == ']' {
		j++
	}
	for ; j < len(pattern); j++ {
		if pattern[j] == ']' {
			return j
		}
	}
	return -1
}
