package fixer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quant-king299/stratconv/converr"
)

var defLine = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)

// Lifecycle drops earlier duplicate top-level function definitions, so the
// last definition wins as it would at import time, and appends
// a stub for every required function the text does not define.
type Lifecycle struct {
	Functions []Signature
}

func (Lifecycle) Name() string { return "lifecycle" }

func (p Lifecycle) Apply(text string) (string, error) {
	lines := splitLines(text)
	phys, sc := scanLines(lines)
	if !sc.done() {
		return "", converr.NewInternalError("fix", "script ends inside an open string or bracket")
	}

	defs := topLevelDefs(phys)
	last := map[string]int{}
	for i, d := range defs {
		last[d.name] = i
	}
	seen := map[string]bool{}
	keep := make([]bool, len(lines))
	for i := range keep {
		keep[i] = true
	}
	for i, d := range defs {
		seen[d.name] = true
		if last[d.name] == i {
			continue
		}
		for k := d.start; k < d.end; k++ {
			keep[k] = false
		}
	}

	out := make([]string, 0, len(lines))
	for i, raw := range lines {
		if keep[i] {
			out = append(out, raw)
		}
	}

	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	for _, fn := range p.Functions {
		if seen[fn.Name] {
			continue
		}
		if len(out) > 0 {
			out = append(out, "", "")
		}
		out = append(out,
			fmt.Sprintf("def %s(%s):", fn.Name, strings.Join(fn.Params, ", ")),
			indentUnit+"pass")
		seen[fn.Name] = true
	}
	return joinLines(out), nil
}

type defBlock struct {
	name       string
	start, end int
}

// topLevelDefs finds module-level function definitions. A block starts at its
// first decorator and runs up to the next module-level line.
func topLevelDefs(phys []physLine) []defBlock {
	var out []defBlock
	for i := range phys {
		l := &phys[i]
		if !l.isCode() || l.indent != 0 {
			continue
		}
		m := defLine.FindStringSubmatch(l.code)
		if m == nil {
			continue
		}
		start := i
		for start > 0 && phys[start-1].isCode() && phys[start-1].indent == 0 &&
			strings.HasPrefix(phys[start-1].body, "@") {
			start--
		}
		end := i + 1
		for end < len(phys) {
			n := &phys[end]
			if !n.cont && !n.blank && n.indent == 0 {
				break
			}
			end++
		}
		out = append(out, defBlock{name: m[1], start: start, end: end})
	}
	return out
}
