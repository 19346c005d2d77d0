package fixer

import (
	"strings"
)

// Dedupe collapses adjacent identical statement lines inside blocks and
// repeated top-level imports.
type Dedupe struct{}

func (Dedupe) Name() string { return "dedupe" }

func (Dedupe) Apply(text string) (string, error) {
	lines := splitLines(text)
	phys, _ := scanLines(lines)

	out := make([]string, 0, len(lines))
	imports := map[string]bool{}
	for i := range phys {
		l := &phys[i]
		single := l.isCode() && len(l.open) == 0 && !continued(phys, i)

		if single && l.indent == 0 && isImport(l.code) {
			key := strings.TrimSpace(l.raw)
			if imports[key] {
				continue
			}
			imports[key] = true
		}
		if single && l.indent > 0 && i > 0 && phys[i-1].raw == l.raw &&
			phys[i-1].isCode() && !strings.HasSuffix(l.trimmedCode(), ":") {
			continue
		}
		out = append(out, l.raw)
	}
	return joinLines(out), nil
}

// continued reports whether the line after i continues its statement.
func continued(phys []physLine, i int) bool {
	return i+1 < len(phys) && phys[i+1].cont
}

func isImport(code string) bool {
	return strings.HasPrefix(code, "import ") ||
		(strings.HasPrefix(code, "from ") && strings.Contains(code, " import "))
}
