package fixer

import (
	"strings"
)

const indentUnit = "    "

// Indent normalizes statement indentation to multiples of four spaces while
// keeping the block structure. Continuation lines and string bodies are left
// as written.
type Indent struct{}

func (Indent) Name() string { return "indent" }

func (Indent) Apply(text string) (string, error) {
	lines := splitLines(text)
	phys, _ := scanLines(lines)

	widths := []int{0}
	header := false
	for i, l := range phys {
		switch {
		case l.cont:
			continue
		case l.blank:
			lines[i] = ""
			continue
		case l.comment:
			level := levelFor(widths, l.indent)
			if header && l.indent > widths[len(widths)-1] {
				level = len(widths)
			}
			lines[i] = strings.Repeat(indentUnit, level) + l.body
			continue
		}

		top := widths[len(widths)-1]
		switch {
		case l.indent > top && header:
			widths = append(widths, l.indent)
		case l.indent < top:
			for len(widths) > 1 && widths[len(widths)-1] > l.indent {
				widths = widths[:len(widths)-1]
			}
		}
		lines[i] = strings.Repeat(indentUnit, len(widths)-1) + l.body
		header = strings.HasSuffix(phys[statementEnd(phys, i)].trimmedCode(), ":")
	}
	return joinLines(lines), nil
}

// levelFor returns the deepest open level whose width does not exceed w.
func levelFor(widths []int, w int) int {
	for k := len(widths) - 1; k > 0; k-- {
		if widths[k] <= w {
			return k
		}
	}
	return 0
}
