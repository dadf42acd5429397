package observability

import (
	"strings"
	"testing"

	"github.com/jonathan/dialogue-forge/internal/types"
)

func TestPrintBatchProgress(t *testing.T) {
	var sb strings.Builder
	p := NewPrinter(&sb)

	eta := 42.0
	p.PrintBatchProgress(&types.BatchProgress{
		Status:                    types.BatchProcessing,
		TotalItems:                10,
		CompletedItems:            4,
		SuccessfulItems:           3,
		FailedItems:               1,
		EstimatedRemainingSeconds: &eta,
	})

	out := sb.String()
	for _, want := range []string{"BATCH PROGRESS", "4 / 10", "processing", "42s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintBatchProgress_NilIsNoop(t *testing.T) {
	var sb strings.Builder
	NewPrinter(&sb).PrintBatchProgress(nil)
	if sb.Len() != 0 {
		t.Errorf("nil progress should print nothing, got %q", sb.String())
	}
}

func TestPrintValidationReport(t *testing.T) {
	var sb strings.Builder
	p := NewPrinter(&sb)

	p.PrintValidationReport(&types.ValidationReport{
		Blockers: []types.Finding{{Code: "too_few_turns", Message: "conversation has 1 turn"}},
		Warnings: []types.Finding{{Code: "short_content", Message: "turn 2 content is short"}},
	})

	out := sb.String()
	for _, want := range []string{"VALIDATION REPORT", "too_few_turns", "short_content"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintEnrichmentResult(t *testing.T) {
	var sb strings.Builder
	p := NewPrinter(&sb)

	p.PrintEnrichmentResult(&types.EnrichmentResult{
		Success:         true,
		FinalStatus:     types.EnrichmentCompleted,
		StagesCompleted: []string{"validate", "enrich", "normalize", "persist"},
	})

	out := sb.String()
	for _, want := range []string{"ENRICHMENT RESULT", "completed", "normalize"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
