// Package uritemplate wraps github.com/yosida95/uritemplate/v3 (RFC 6570)
// for the resource registry's URI matching. The upstream library expands
// templates into concrete URIs; it does not do the reverse (matching a
// concrete URI back to a template and extracting variables), which the
// registry needs to route resources/read requests. This package adds that
// matching with its own regexp, translated from the raw template text;
// the upstream parse supplies validation, Expand and Varnames.
package uritemplate

import (
	"fmt"
	"regexp"
	"strings"

	upstream "github.com/yosida95/uritemplate/v3"
)

// Template is a compiled, matchable URI template.
type Template struct {
	Raw              string
	compiled         *upstream.Template
	matchRe          *regexp.Regexp
	varNames         []string
	literalPrefixLen int
	shape            string
}

// Compile parses and validates raw as an RFC 6570 URI template, and builds
// the matcher used to route a concrete request URI back to this template.
func Compile(raw string) (*Template, error) {
	compiled, err := upstream.New(raw)
	if err != nil {
		return nil, fmt.Errorf("uritemplate: invalid template %q: %w", raw, err)
	}

	re, err := buildMatchRegexp(raw)
	if err != nil {
		return nil, err
	}

	t := &Template{
		Raw:              raw,
		compiled:         compiled,
		matchRe:          re,
		varNames:         varNamesOf(compiled),
		literalPrefixLen: literalPrefixLen(raw),
		shape:            shapeOf(raw),
	}
	return t, nil
}

// Expand fills in the template's variables, delegating to the upstream
// RFC 6570 expander.
func (t *Template) Expand(vars map[string]string) (string, error) {
	values := upstream.Values{}
	for k, v := range vars {
		values.Set(k, upstream.String(v))
	}
	return t.compiled.Expand(values)
}

// Varnames returns the variable names this template declares, in the order
// the upstream parser discovered them.
func (t *Template) Varnames() []string {
	return t.varNames
}

// Match reports whether uri satisfies this template, returning the
// extracted variable bindings when it does.
func (t *Template) Match(uri string) (map[string]string, bool) {
	m := t.matchRe.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	vars := make(map[string]string, len(t.varNames))
	for i, name := range t.matchRe.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		vars[name] = m[i]
	}
	return vars, true
}

// LiteralPrefixLen is the length, in bytes, of the template's raw text
// before its first variable expression ("{"). Used for tie-breaking
// overlapping matches: longer literal prefixes are more specific.
func (t *Template) LiteralPrefixLen() int {
	return t.literalPrefixLen
}

// Less implements the registry's tie-break rule for two templates that
// both match the same URI: the template with the longer literal prefix
// wins; ties are broken by the lexicographically smaller raw template.
func Less(a, b *Template) bool {
	if a.literalPrefixLen != b.literalPrefixLen {
		return a.literalPrefixLen > b.literalPrefixLen
	}
	return a.Raw < b.Raw
}

// Indistinguishable reports whether a and b match exactly the same set of
// URIs regardless of what their variables happen to be named: every
// variable expression in one lines up, byte-for-byte literal text and all,
// with a variable expression in the other. Registering a second template
// indistinguishable from one already in the registry would make their
// relative order (and thus which handler answers a given request) an
// accident of registration sequence rather than a rule a caller could name.
func Indistinguishable(a, b *Template) bool {
	return a.shape == b.shape
}

// shapeOf normalizes raw by collapsing every "{name}" expression to a
// common placeholder, leaving only the literal skeleton. Two templates
// share a shape exactly when they accept the same URIs.
func shapeOf(raw string) string {
	var b strings.Builder
	i := 0
	for i < len(raw) {
		if raw[i] == '{' {
			end := strings.IndexByte(raw[i:], '}')
			if end < 0 {
				b.WriteString(raw[i:])
				break
			}
			b.WriteString("{}")
			i += end + 1
			continue
		}
		b.WriteByte(raw[i])
		i++
	}
	return b.String()
}

func literalPrefixLen(raw string) int {
	if i := strings.IndexByte(raw, '{'); i >= 0 {
		return i
	}
	return len(raw)
}

func varNamesOf(t *upstream.Template) []string {
	names := make([]string, 0, len(t.Varnames()))
	names = append(names, t.Varnames()...)
	return names
}

// buildMatchRegexp turns an RFC 6570 level-1 style template (literals plus
// "{name}" simple-string expressions) into an anchored regexp with one
// named capture group per variable. Reserved-expansion operators ("{+x}",
// "{#x}", etc.) are not supported: the registry only needs simple path
// variables for resource URIs.
func buildMatchRegexp(raw string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')

	i := 0
	for i < len(raw) {
		if raw[i] == '{' {
			end := strings.IndexByte(raw[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("uritemplate: unterminated expression in %q", raw)
			}
			expr := raw[i+1 : i+end]
			if expr == "" {
				return nil, fmt.Errorf("uritemplate: empty variable expression in %q", raw)
			}
			if !isSimpleVarName(expr) {
				return nil, fmt.Errorf("uritemplate: unsupported expression {%s} in %q (only simple {name} variables are supported)", expr, raw)
			}
			b.WriteString(fmt.Sprintf("(?P<%s>[^/]+)", expr))
			i += end + 1
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(raw[i])))
		i++
	}
	b.WriteByte('$')

	return regexp.Compile(b.String())
}

func isSimpleVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
