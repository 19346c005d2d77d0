package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/quant-king299/stratconv/internal/batch"
	"github.com/quant-king299/stratconv/internal/converter/diag"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func severityCell(s diag.Severity) string {
	switch s {
	case diag.Warning:
		return warningStyle.Render(s.String())
	case diag.Blocked:
		return blockedStyle.Render(s.String())
	}
	return infoStyle.Render(s.String())
}

type scriptReport struct {
	Script      string            `json:"script" yaml:"script"`
	Variant     string            `json:"variant" yaml:"variant"`
	Diagnostics []diag.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

func renderDiagnostics(w io.Writer, script, variant string, diags []diag.Diagnostic, format string) error {
	if format != "table" {
		if diags == nil {
			diags = []diag.Diagnostic{}
		}
		return encode(w, scriptReport{Script: script, Variant: variant, Diagnostics: diags}, format)
	}
	if len(diags) == 0 {
		return nil
	}

	table := newTable(w)
	table.SetHeader([]string{"Line", "Severity", "Code", "Message"})
	for _, d := range diags {
		table.Append([]string{strconv.Itoa(d.Line), severityCell(d.Severity), string(d.Code), d.Message})
	}
	table.Render()
	return nil
}

func renderBatch(w io.Writer, report *batch.Report, format string) error {
	if format != "table" {
		return encode(w, report, format)
	}

	fmt.Fprintf(w, "Run %s (%s, %s)\n", report.RunID, report.Variant, report.Source)
	table := newTable(w)
	table.SetHeader([]string{"Script", "Status", "Info", "Warnings", "Blocked"})
	for _, res := range report.Results {
		status := okStyle.Render("ok")
		if res.Failed() {
			status = blockedStyle.Render("failed: " + res.Error)
		}
		table.Append([]string{
			res.Path,
			status,
			strconv.Itoa(countOf(res.Diagnostics, diag.Info)),
			strconv.Itoa(countOf(res.Diagnostics, diag.Warning)),
			strconv.Itoa(countOf(res.Diagnostics, diag.Blocked)),
		})
	}
	table.SetFooter([]string{
		fmt.Sprintf("Total %d", len(report.Results)),
		fmt.Sprintf("%d failed", report.Failed()),
		strconv.Itoa(report.Count(diag.Info)),
		strconv.Itoa(report.Count(diag.Warning)),
		strconv.Itoa(report.Count(diag.Blocked)),
	})
	table.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func encode(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown report format %q", format)
}

func countOf(diags []diag.Diagnostic, sev diag.Severity) int {
	n := 0
	for _, d := range diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}
