// Package reporter formats an RBAC analysis for humans and machines.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/kubeconsole/rbaclens/pkg/analyzer"
	"github.com/kubeconsole/rbaclens/pkg/classifier"
)

const (
	// Formatting constants.
	tabwriterPadding = 2
	separatorLength  = 80
)

// Reporter handles output formatting for an analysis result.
type Reporter interface {
	Report(a *analyzer.RBACAnalysis, writer io.Writer) error
}

// Format represents the output format.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// New creates a new reporter based on the specified format.
func New(format Format) Reporter {
	switch format {
	case FormatJSON:
		return &JSONReporter{}
	case FormatSARIF:
		return &SARIFReporter{}
	case FormatText:
		return &TextReporter{}
	default:
		return &TextReporter{}
	}
}

// TextReporter outputs the analysis in human-readable text format.
type TextReporter struct{}

// Report writes the summary, the per-account risk table, orphaned roles,
// unused accounts, and warnings.
func (r *TextReporter) Report(a *analyzer.RBACAnalysis, writer io.Writer) error {
	summary := analyzer.Summarize(a)

	fmt.Fprintln(writer, "RBAC Analysis")
	fmt.Fprintln(writer, strings.Repeat("=", separatorLength))
	w := tabwriter.NewWriter(writer, 0, 0, tabwriterPadding, ' ', 0)
	fmt.Fprintf(w, "Service accounts:\t%d\n", summary.TotalServiceAccounts)
	fmt.Fprintf(w, "Critical risk:\t%d\n", summary.CriticalRisk)
	fmt.Fprintf(w, "High risk:\t%d\n", summary.HighRisk)
	fmt.Fprintf(w, "Medium risk:\t%d\n", summary.MediumRisk)
	fmt.Fprintf(w, "Low risk:\t%d\n", summary.LowRisk)
	fmt.Fprintf(w, "Orphaned roles:\t%d\n", summary.OrphanedRoles)
	fmt.Fprintf(w, "Unused service accounts:\t%d\n", summary.UnusedAccounts)
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(writer)

	if len(a.PrivilegedServiceAccounts) > 0 {
		table := newTable(writer, []string{"NAMESPACE", "NAME", "RISK", "GRANTS", "PERMISSIONS", "AUTOMOUNT"})
		for _, account := range a.PrivilegedServiceAccounts {
			table.Append([]string{
				account.Namespace,
				account.Name,
				colorizeRisk(account.RiskLevel),
				fmt.Sprintf("%d", len(account.Grants)),
				fmt.Sprintf("%d", len(account.Permissions)),
				fmt.Sprintf("%t", account.AutomountToken),
			})
		}
		table.Render()
		fmt.Fprintln(writer)
	}

	if len(a.OrphanedRoles) > 0 {
		fmt.Fprintln(writer, "Orphaned roles (no binding references them):")
		table := newTable(writer, []string{"KIND", "NAMESPACE", "NAME"})
		for _, role := range a.OrphanedRoles {
			table.Append([]string{role.Kind, role.Namespace, role.Name})
		}
		table.Render()
		fmt.Fprintln(writer)
	}

	if len(a.UnusedServiceAccounts) > 0 {
		fmt.Fprintln(writer, "Unused service accounts (no binding grants them a role):")
		table := newTable(writer, []string{"NAMESPACE", "NAME"})
		for _, sa := range a.UnusedServiceAccounts {
			table.Append([]string{sa.Namespace, sa.Name})
		}
		table.Render()
		fmt.Fprintln(writer)
	}

	if len(a.Warnings) > 0 {
		fmt.Fprintf(writer, "Warnings (%d):\n", len(a.Warnings))
		for _, warning := range a.Warnings {
			fmt.Fprintf(writer, "  - %s\n", warning)
		}
	}

	return nil
}

func newTable(writer io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(writer)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func colorizeRisk(level classifier.RiskLevel) string {
	switch level {
	case classifier.RiskLevelCritical:
		return color.New(color.FgHiRed, color.Bold).Sprint("critical")
	case classifier.RiskLevelHigh:
		return color.New(color.FgRed).Sprint("high")
	case classifier.RiskLevelMedium:
		return color.New(color.FgYellow).Sprint("medium")
	case classifier.RiskLevelLow:
		return color.New(color.FgGreen).Sprint("low")
	default:
		return string(level)
	}
}

// JSONReporter outputs the analysis in JSON format.
type JSONReporter struct{}

// JSONReport represents the JSON output structure.
type JSONReport struct {
	Timestamp string                 `json:"timestamp"`
	Summary   analyzer.Summary       `json:"summary"`
	Analysis  *analyzer.RBACAnalysis `json:"analysis"`
}

// Report outputs the analysis in JSON format.
func (r *JSONReporter) Report(a *analyzer.RBACAnalysis, writer io.Writer) error {
	report := JSONReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:   analyzer.Summarize(a),
		Analysis:  a,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// ReportToFile writes the report to a file.
func ReportToFile(a *analyzer.RBACAnalysis, format Format, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	reporter := New(format)
	return reporter.Report(a, file)
}
