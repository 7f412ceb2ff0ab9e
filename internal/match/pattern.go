// Package match implements the filter patterns and identifier lookups used
// when selecting nodes and workloads.
//
// A pattern is either empty (matches everything), a literal which must occur
// as a whole word anywhere in the target, or "regex:<expr>" whose expression
// must match at the start of the target. Invalid expressions match everything.
package match

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const RegexPrefix = "regex:"

type Pattern struct {
	source string
	re     *regexp.Regexp
}

// Any matches every input.
var Any = Pattern{}

// Compile builds a Pattern. It never fails: an expression that does not
// compile degrades to Any and is reported on logger.
func Compile(pattern string, logger *zap.Logger) Pattern {
	if pattern == "" {
		return Any
	}
	var expr string
	if strings.HasPrefix(pattern, RegexPrefix) {
		expr = `^(?:` + strings.TrimPrefix(pattern, RegexPrefix) + `)`
	} else {
		expr = `\b` + regexp.QuoteMeta(pattern) + `\b`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		if logger != nil {
			logger.Warn("ignoring invalid regex pattern",
				zap.String("pattern", pattern),
				zap.Error(err),
			)
		}
		return Pattern{source: pattern}
	}
	return Pattern{source: pattern, re: re}
}

func (p Pattern) Match(s string) bool {
	if p.re == nil {
		return true
	}
	return p.re.MatchString(s)
}

// MatchAny reports whether at least one of values matches.
func (p Pattern) MatchAny(values []string) bool {
	for _, v := range values {
		if p.Match(v) {
			return true
		}
	}
	return false
}

func (p Pattern) String() string {
	return p.source
}
