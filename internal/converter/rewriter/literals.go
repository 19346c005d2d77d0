package rewriter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/quant-king299/stratconv/internal/converter/registry"
	"github.com/quant-king299/stratconv/internal/syntax"
)

// literalFixer rewrites string literals: security-code suffixes everywhere and
// global-object references inside f-string replacement fields.
type literalFixer struct {
	suffixes *strings.Replacer
	global   *regexp.Regexp
	context  string
}

func newLiteralFixer(v *registry.Variant) *literalFixer {
	from := make([]string, 0, len(v.SuffixMap))
	for k := range v.SuffixMap {
		from = append(from, k)
	}
	// longest first so overlapping suffixes resolve deterministically
	sort.Slice(from, func(i, j int) bool {
		if len(from[i]) != len(from[j]) {
			return len(from[i]) > len(from[j])
		}
		return from[i] < from[j]
	})
	pairs := make([]string, 0, 2*len(from))
	for _, k := range from {
		pairs = append(pairs, k, v.SuffixMap[k])
	}
	return &literalFixer{
		suffixes: strings.NewReplacer(pairs...),
		global:   refPattern(v.GlobalObject),
		context:  v.ContextName,
	}
}

// refPattern matches name followed by an attribute access, not preceded by an
// identifier character or a dot.
func refPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^A-Za-z0-9_.])` + regexp.QuoteMeta(name) + `\.`)
}

// fix rewrites l in place and reports whether an f-string field refers to the
// global object. The references are retargeted only when retarget is set.
func (f *literalFixer) fix(l *syntax.Literal, retarget bool) bool {
	if l.Lit != syntax.LitString {
		return false
	}
	l.Raw = f.suffixes.Replace(l.Raw)
	if !isFString(l.Raw) {
		return false
	}
	found := false
	l.Raw = mapFields(l.Raw, func(field string) string {
		if !f.global.MatchString(field) {
			return field
		}
		found = true
		if !retarget {
			return field
		}
		return f.global.ReplaceAllString(field, "${1}"+f.context+".")
	})
	return found
}

// isFString reports whether the literal's first piece carries an f prefix.
func isFString(raw string) bool {
	i := strings.IndexAny(raw, `'"`)
	return i > 0 && strings.ContainsAny(raw[:i], "fF")
}

// mapFields applies fn to the text of every {...} replacement field of an
// f-string. Doubled braces are literal text.
func mapFields(raw string, fn func(string) string) string {
	var b strings.Builder
	depth, start := 0, 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '{' && depth == 0 && i+1 < len(raw) && raw[i+1] == '{':
			b.WriteString("{{")
			i++
		case c == '{':
			if depth == 0 {
				b.WriteByte('{')
				start = i + 1
			}
			depth++
		case c == '}' && depth > 0:
			depth--
			if depth == 0 {
				b.WriteString(fn(raw[start:i]))
				b.WriteByte('}')
			}
		case depth == 0:
			b.WriteByte(c)
		}
	}
	if depth > 0 {
		b.WriteString(raw[start:])
	}
	return b.String()
}

// referencesIn reports whether an f-string literal refers to name.
func referencesIn(l *syntax.Literal, name string) bool {
	if l.Lit != syntax.LitString || !isFString(l.Raw) {
		return false
	}
	re := refPattern(name)
	found := false
	mapFields(l.Raw, func(field string) string {
		if re.MatchString(field) {
			found = true
		}
		return field
	})
	return found
}
