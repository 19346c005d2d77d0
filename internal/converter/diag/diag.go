// Package diag holds the run-scoped diagnostic model shared by the converter stages.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Severity grades a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
	// Blocked marks a construct the converter could not translate and left in place.
	Blocked
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Blocked:
		return "blocked"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText renders the severity by name in JSON and YAML reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "info":
		return Info, nil
	case "warning":
		return Warning, nil
	case "blocked":
		return Blocked, nil
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

// Code identifies the kind of event a diagnostic records.
type Code string

const (
	RemovedCall            Code = "removed-call"
	PlaceholderSubstituted Code = "placeholder-substituted"
	ScheduleCollapsed      Code = "schedule-collapsed"
	UnsupportedCall        Code = "unsupported-call"
	AmbiguousPromotion     Code = "ambiguous-promotion"
	Promoted               Code = "promoted"
	DuplicateDefinition    Code = "duplicate-definition"
	SignatureAdapted       Code = "signature-adapted"
	ContextThreaded        Code = "context-threaded"
	ImportRemoved          Code = "import-removed"
	GlobalWithoutContext   Code = "global-without-context"
	FunctionReplaced       Code = "function-replaced"
)

// Diagnostic is a line-addressable note about a point needing review.
// Line refers to the input script; 0 means the note has no single source line.
type Diagnostic struct {
	Line     int      `json:"line" yaml:"line"`
	Severity Severity `json:"severity" yaml:"severity"`
	Code     Code     `json:"code" yaml:"code"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s [%s] %s", d.Line, d.Severity, d.Code, d.Message)
}

// Collector accumulates diagnostics for one run. Entries are only ever appended.
type Collector struct {
	items []Diagnostic
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Add(line int, sev Severity, code Code, format string, args ...any) {
	c.items = append(c.items, Diagnostic{
		Line:     line,
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *Collector) Info(line int, code Code, format string, args ...any) {
	c.Add(line, Info, code, format, args...)
}

func (c *Collector) Warn(line int, code Code, format string, args ...any) {
	c.Add(line, Warning, code, format, args...)
}

func (c *Collector) Block(line int, code Code, format string, args ...any) {
	c.Add(line, Blocked, code, format, args...)
}

func (c *Collector) Len() int {
	return len(c.items)
}

// List returns a copy of the collected diagnostics in recording order.
func (c *Collector) List() []Diagnostic {
	return append([]Diagnostic(nil), c.items...)
}

// Count returns how many diagnostics have the given severity.
func (c *Collector) Count(sev Severity) int {
	n := 0
	for _, d := range c.items {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// SortByLine orders diagnostics by line, keeping recording order for equal lines.
func SortByLine(list []Diagnostic) []Diagnostic {
	out := append([]Diagnostic(nil), list...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}
