package main

import (
	"errors"
	"strings"
	"testing"

	"fragment-counter/internal/particle"
	"fragment-counter/internal/pipeline"
)

func batchFixture() []pipeline.BatchResult {
	return []pipeline.BatchResult{
		{Path: "a.png", Report: &pipeline.Report{Path: "a.png", Count: 2}},
		{Path: "b.png", Report: &pipeline.Report{
			Path:  "b.png",
			Count: 3,
			Stats: &particle.AreaStats{Count: 3, TotalArea: 900, MinArea: 200, MaxArea: 400, MeanArea: 300, MedianArea: 300},
		}},
		{Path: "c.png", Err: errors.New("decode failed")},
	}
}

// TestWriteBatchResults verifies the per-image lines, stats, total, and
// failure reporting of batch output.
func TestWriteBatchResults(t *testing.T) {
	var out, errOut strings.Builder

	failed := writeBatchResults(&out, &errOut, batchFixture(), false)

	if failed != 1 {
		t.Errorf("Expected 1 failure, got %d", failed)
	}
	for _, want := range []string{"a.png: 2\n", "b.png: 3\n", "fragments: 3", "total: 5\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out.String())
		}
	}
	if !strings.Contains(errOut.String(), "c.png: decode failed") {
		t.Errorf("Expected failure on error stream, got:\n%s", errOut.String())
	}
}

// TestWriteBatchResultsQuiet verifies that quiet mode keeps the bare
// total and drops the per-image and statistics lines.
func TestWriteBatchResultsQuiet(t *testing.T) {
	var out, errOut strings.Builder

	failed := writeBatchResults(&out, &errOut, batchFixture(), true)

	if failed != 1 {
		t.Errorf("Expected 1 failure, got %d", failed)
	}
	if got := out.String(); got != "total: 5\n" {
		t.Errorf("Expected only the total line, got:\n%s", got)
	}
	if !strings.Contains(errOut.String(), "c.png") {
		t.Errorf("Expected failures to print even in quiet mode, got:\n%s", errOut.String())
	}
}
