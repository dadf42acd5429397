// Package observability provides structured logging and formatted progress
// output for the generation pipelines.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/dialogue-forge/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxFindingsToShow is the default number of findings to display in lists
	maxFindingsToShow = 5
)

// Printer handles formatted output for verbose CLI mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintBatchProgress outputs a human-readable batch progress snapshot.
func (p *Printer) PrintBatchProgress(progress *types.BatchProgress) {
	if progress == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:     %s\n", progress.Status))
	sb.WriteString(fmt.Sprintf("Completed:  %d / %d\n", progress.CompletedItems, progress.TotalItems))
	sb.WriteString(fmt.Sprintf("Succeeded:  %d\n", progress.SuccessfulItems))
	sb.WriteString(fmt.Sprintf("Failed:     %d\n", progress.FailedItems))
	if progress.EstimatedRemainingSeconds != nil {
		sb.WriteString(fmt.Sprintf("ETA:        %.0fs remaining", *progress.EstimatedRemainingSeconds))
	}

	p.printBox("BATCH PROGRESS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintValidationReport outputs the blocker/warning summary for a conversation.
func (p *Printer) PrintValidationReport(report *types.ValidationReport) {
	if report == nil {
		return
	}

	var sb strings.Builder

	if len(report.Blockers) > 0 {
		sb.WriteString("Blockers:\n")
		count := min(len(report.Blockers), maxFindingsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • [%s] %s\n", report.Blockers[i].Code, report.Blockers[i].Message))
		}
		if len(report.Blockers) > maxFindingsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Blockers)-maxFindingsToShow))
		}
		sb.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		count := min(len(report.Warnings), maxFindingsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • [%s] %s\n", report.Warnings[i].Code, report.Warnings[i].Message))
		}
		if len(report.Warnings) > maxFindingsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(report.Warnings)-maxFindingsToShow))
		}
	}

	if sb.Len() == 0 {
		sb.WriteString("No findings.")
	}

	p.printBox("VALIDATION REPORT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEnrichmentResult outputs the outcome of one enrichment pipeline run.
func (p *Printer) PrintEnrichmentResult(result *types.EnrichmentResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Success:    %t\n", result.Success))
	sb.WriteString(fmt.Sprintf("Status:     %s\n", result.FinalStatus))
	sb.WriteString(fmt.Sprintf("Stages:     %s", strings.Join(result.StagesCompleted, ", ")))
	if result.Error != "" {
		sb.WriteString(fmt.Sprintf("\nError:      %s", result.Error))
	}

	p.printBox("ENRICHMENT RESULT", sb.String())
}
