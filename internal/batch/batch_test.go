package batch

import (
	"context"
	"strings"
	"testing"

	"arxiv-refextract/internal/config"
	"arxiv-refextract/internal/orchestrator"
)

func TestParseLine_SplitsAllFourColumns(t *testing.T) {
	job, ok := ParseLine("0704.0001.pdf 2007ApJ...1 A12345 20070401")
	if !ok {
		t.Fatal("expected ok=true for a well-formed line")
	}
	if job.Path != "0704.0001.pdf" || job.Bibcode != "2007ApJ...1" || job.Accno != "A12345" || job.Subdate != 20070401 {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestParseLine_AllowsPathOnly(t *testing.T) {
	job, ok := ParseLine("0704.0001.pdf")
	if !ok {
		t.Fatal("expected ok=true")
	}
	if job.Path != "0704.0001.pdf" || job.Bibcode != "" || job.Subdate != 0 {
		t.Errorf("unexpected job: %+v", job)
	}
}

func TestParseLine_SkipsBlankLine(t *testing.T) {
	if _, ok := ParseLine("   "); ok {
		t.Error("expected ok=false for a blank line")
	}
}

func TestRun_ReportsFailuresWithoutStoppingTheBatch(t *testing.T) {
	cfg := config.Config{
		ScratchRoot:  t.TempDir(),
		FulltextBase: t.TempDir(),
		OutputBase:   t.TempDir(),
	}
	input := strings.NewReader("not-an-arxiv-id.pdf\nalso-bad.pdf\n")
	var out, diag strings.Builder

	summary, err := Run(context.Background(), input, &out, &diag, cfg, orchestrator.Collaborators{})
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if summary.Total != 2 || summary.Failed != 2 || summary.Written != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if out.Len() != 0 {
		t.Errorf("expected no stdout lines, got %q", out.String())
	}
	if !strings.Contains(diag.String(), "2 of 2 items failed") {
		t.Errorf("expected a failure-count summary line, got %q", diag.String())
	}
}

func TestRun_SkipsBlankLinesWithoutCountingThem(t *testing.T) {
	cfg := config.Config{
		ScratchRoot:  t.TempDir(),
		FulltextBase: t.TempDir(),
		OutputBase:   t.TempDir(),
	}
	input := strings.NewReader("\n   \nnot-an-arxiv-id.pdf\n")
	var out, diag strings.Builder

	summary, err := Run(context.Background(), input, &out, &diag, cfg, orchestrator.Collaborators{})
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if summary.Total != 1 {
		t.Errorf("expected blank lines to be skipped, got total=%d", summary.Total)
	}
}
