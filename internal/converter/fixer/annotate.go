package fixer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/quant-king299/stratconv/internal/converter/generator"
)

// Annotate comments out statements that still call a removed function and
// marks statements calling a flagged one for review.
type Annotate struct {
	removed *regexp.Regexp
	flagged *regexp.Regexp
	reasons map[string]string
}

// NewAnnotate builds the pass for the given removed and flagged names.
func NewAnnotate(removed []string, flagged map[string]string) Annotate {
	names := make([]string, 0, len(flagged))
	reasons := make(map[string]string, len(flagged))
	for name, reason := range flagged {
		names = append(names, name)
		reasons[name] = reason
	}
	return Annotate{
		removed: callPattern(removed),
		flagged: callPattern(names),
		reasons: reasons,
	}
}

// callPattern matches a call to any of names that is not a method call on
// another value. Submatch 2 holds the name.
func callPattern(names []string) *regexp.Regexp {
	if len(names) == 0 {
		return nil
	}
	sorted := append([]string(nil), names...)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(^|[^\w.])(` + strings.Join(quoted, "|") + `)\s*\(`)
}

func (Annotate) Name() string { return "annotate" }

func (p Annotate) Apply(text string) (string, error) {
	lines := splitLines(text)
	phys, _ := scanLines(lines)
	commented := make([]bool, len(lines))
	after := map[int]string{}

	for i := 0; i < len(phys); i++ {
		if !phys[i].isCode() {
			continue
		}
		end := statementEnd(phys, i)
		header := strings.HasSuffix(phys[end].trimmedCode(), ":")

		if name := p.find(p.removed, phys[i:end+1]); name != "" {
			if header {
				p.mark(lines, phys, i, end, "removed call "+name+" still present")
				i = end
				continue
			}
			lead := strings.Repeat(" ", phys[i].indent)
			lines[i] = lead + generator.RemovedMarker + " " + phys[i].body
			for k := i + 1; k <= end; k++ {
				lines[k] = lead + "# " + strings.TrimSpace(phys[k].raw)
			}
			for k := i; k <= end; k++ {
				commented[k] = true
			}
			if emptiedBlock(phys, commented, i, end) {
				after[end] = lead + "pass"
			}
			i = end
			continue
		}

		if name := p.find(p.flagged, phys[i:end+1]); name != "" {
			p.mark(lines, phys, i, end, p.reasons[name])
		}
		i = end
	}

	out := make([]string, 0, len(lines)+len(after))
	for i, raw := range lines {
		out = append(out, raw)
		if extra, ok := after[i]; ok {
			out = append(out, extra)
		}
	}
	return joinLines(out), nil
}

// find returns the first name re matches in the code of a statement.
func (p Annotate) find(re *regexp.Regexp, stmt []physLine) string {
	if re == nil {
		return ""
	}
	for _, l := range stmt {
		if m := re.FindStringSubmatch(l.code); m != nil {
			return m[2]
		}
	}
	return ""
}

// mark appends a review comment to the statement unless one is present.
func (p Annotate) mark(lines []string, phys []physLine, start, end int, reason string) {
	for k := start; k <= end; k++ {
		if strings.Contains(phys[k].raw, generator.ReviewMarker) {
			return
		}
	}
	lines[end] = strings.TrimRight(lines[end], " \t") + "  " + generator.ReviewMarker + " " + reason
}

// emptiedBlock reports whether commenting out lines start..end left the
// enclosing block without code.
func emptiedBlock(phys []physLine, commented []bool, start, end int) bool {
	indent := phys[start].indent
	if indent == 0 {
		return false
	}
	prev := start - 1
	for prev >= 0 && (commented[prev] || !phys[prev].isCode()) {
		prev--
	}
	if prev < 0 || phys[prev].indent >= indent {
		return false
	}
	next := end + 1
	for next < len(phys) && !phys[next].isCode() {
		next++
	}
	return next == len(phys) || phys[next].indent < indent
}
