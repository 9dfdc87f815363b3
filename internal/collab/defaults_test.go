package collab

import (
	"context"
	"testing"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/types"
)

func TestNullHarvester_AlwaysFails(t *testing.T) {
	_, err := NullHarvester{}.HarvestPDF(context.Background(), types.ArxivItem{EprintID: "0704.0001"}, t.TempDir())
	if !apperr.Is(err, apperr.SourceMissing) {
		t.Fatalf("expected SourceMissing, got %v", err)
	}
}

func TestNullBibcodeResolver_AlwaysFails(t *testing.T) {
	_, err := NullBibcodeResolver{}.Resolve(context.Background(), types.ArxivItem{EprintID: "0704.0001"})
	if !apperr.Is(err, apperr.BibcodeUnresolved) {
		t.Fatalf("expected BibcodeUnresolved, got %v", err)
	}
}

func TestStaticCategoryProvider_LooksUpKnownID(t *testing.T) {
	p := NewStaticCategoryProvider(map[string]string{"0704.0001": "astro-ph"})
	cat, err := p.CategoryFor("0704.0001")
	if err != nil {
		t.Fatalf("CategoryFor failed: %v", err)
	}
	if cat != "astro-ph" {
		t.Errorf("got %q, want astro-ph", cat)
	}
}

func TestStaticCategoryProvider_ErrorsOnUnknownID(t *testing.T) {
	p := NewStaticCategoryProvider(map[string]string{})
	if _, err := p.CategoryFor("0704.0001"); err == nil {
		t.Fatal("expected error for unknown eprint ID")
	}
}
