package route

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// PatternKind tags a Pattern as a glob or a regular expression.
type PatternKind int

const (
	GlobPattern PatternKind = iota
	RegexPattern
)

func (k PatternKind) String() string {
	if k == RegexPattern {
		return "regex"
	}
	return "glob"
}

// Pattern matches route keys. Globs treat "/" as a separator, so "*" never
// crosses a path segment; regular expressions are unanchored.
type Pattern struct {
	kind   PatternKind
	source string
	glob   glob.Glob
	re     *regexp.Regexp
}

// Glob compiles a glob pattern.
func Glob(pattern string) (Pattern, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return Pattern{}, fmt.Errorf("compile glob %q: %w", pattern, err)
	}
	return Pattern{kind: GlobPattern, source: pattern, glob: g}, nil
}

// Regex compiles a regular expression pattern.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile regex %q: %w", expr, err)
	}
	return Pattern{kind: RegexPattern, source: expr, re: re}, nil
}

// MustGlob is like Glob but panics on error.
func MustGlob(pattern string) Pattern {
	p, err := Glob(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// MustRegex is like Regex but panics on error.
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePattern interprets the literal form used in definition files:
// "/expr/flags" is a regular expression, anything else is a glob.
func ParsePattern(s string) (Pattern, error) {
	if strings.HasPrefix(s, "/") {
		if end := strings.LastIndex(s, "/"); end > 0 {
			expr, flags := s[1:end], s[end+1:]
			if prefix, ok := regexFlags(flags); ok {
				return Regex(prefix + expr)
			}
		}
	}
	return Glob(s)
}

// regexFlags maps trailing literal flags onto RE2 inline flags. The "g" flag
// has no meaning for a single test and is accepted and ignored.
func regexFlags(flags string) (string, bool) {
	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g':
		default:
			return "", false
		}
	}
	if inline.Len() == 0 {
		return "", true
	}
	return "(?" + inline.String() + ")", true
}

// Kind returns the pattern variant.
func (p Pattern) Kind() PatternKind {
	return p.kind
}

// String returns the pattern source.
func (p Pattern) String() string {
	return p.source
}

// Match reports whether key matches the pattern.
func (p Pattern) Match(key string) bool {
	switch p.kind {
	case RegexPattern:
		return p.re != nil && p.re.MatchString(key)
	default:
		return p.glob != nil && p.glob.Match(key)
	}
}

// UnmarshalYAML accepts either a scalar in literal form or a mapping with a
// single "glob" or "regex" key.
func (p *Pattern) UnmarshalYAML(node *yaml.Node) error {
	var (
		parsed Pattern
		err    error
	)

	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err = ParsePattern(node.Value)
	case yaml.MappingNode:
		var explicit struct {
			Glob  string `yaml:"glob"`
			Regex string `yaml:"regex"`
		}
		if err := node.Decode(&explicit); err != nil {
			return err
		}
		switch {
		case explicit.Regex != "":
			parsed, err = Regex(explicit.Regex)
		case explicit.Glob != "":
			parsed, err = Glob(explicit.Glob)
		default:
			err = fmt.Errorf("line %d: pattern mapping needs a glob or regex key", node.Line)
		}
	default:
		err = fmt.Errorf("line %d: pattern must be a string or mapping", node.Line)
	}
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}

// MarshalYAML writes the pattern back in literal form.
func (p Pattern) MarshalYAML() (any, error) {
	if p.kind == RegexPattern {
		return "/" + p.source + "/", nil
	}
	return p.source, nil
}
