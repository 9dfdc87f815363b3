package cleaner

import (
	"strings"
	"testing"
)

func TestParsePDFMarkers_ExtractsEachEntry(t *testing.T) {
	text := `<references>
<r>Smith, J. 1998, ApJ, 500, 1</r>
<r>Jones, A. 1999, MNRAS, 300, 2</r>
</references>`

	refs := ParsePDFMarkers(text, "", nil)
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d: %v", len(refs), refs)
	}
	if refs[0] != "Smith, J. 1998, ApJ, 500, 1" {
		t.Errorf("unexpected first ref: %q", refs[0])
	}
}

func TestParsePDFMarkers_SpansMultipleLines(t *testing.T) {
	text := "<r>Smith, J. 1998,\nApJ, 500, 1</r>"
	refs := ParsePDFMarkers(text, "", nil)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if refs[0] != "Smith, J. 1998, ApJ, 500, 1" {
		t.Errorf("unexpected joined ref: %q", refs[0])
	}
}

func TestParsePDFMarkers_JoinsLineEndingHyphen(t *testing.T) {
	text := "<r>A long hyphen-\nated word here</r>"
	refs := ParsePDFMarkers(text, "", nil)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if refs[0] != "A long hyphenated word here" {
		t.Errorf("got %q", refs[0])
	}
}

func TestParsePDFMarkers_RepairsSplitEprintCategory(t *testing.T) {
	text := "<r>See astroph/0601001 for details</r>"
	refs := ParsePDFMarkers(text, "", nil)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if want := "See astro-ph/0601001 for details"; refs[0] != want {
		t.Errorf("got %q, want %q", refs[0], want)
	}
}

func TestParseDVIMarkers_ExtractsReferenceRegion(t *testing.T) {
	text := `ignored preamble text
citation_open
[1] Smith, J. 1998, ApJ, 500, 1
citation_open
[2] Jones, A. 1999, MNRAS, 300, 2
ref_close
`
	refs := ParseDVIMarkers(text, "", DVIHyphenAppend)
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d: %v", len(refs), refs)
	}
}

func TestParseDVIMarkers_DiscardsHeadingLine(t *testing.T) {
	text := `citation_open
[References]
[1] Smith, J. 1998, ApJ, 500, 1
ref_close
`
	refs := ParseDVIMarkers(text, "", DVIHyphenAppend)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d: %v", len(refs), refs)
	}
	if refs[0] == "[References]" {
		t.Errorf("expected heading line discarded, got %v", refs)
	}
}

func TestParseDVIMarkers_SkipsBeforeFirstCitationOpen(t *testing.T) {
	text := `[not yet started]
citation_open
[1] Smith, J. 1998, ApJ, 500, 1
ref_close
`
	refs := ParseDVIMarkers(text, "", DVIHyphenAppend)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d: %v", len(refs), refs)
	}
}

func TestParseDVIMarkers_HyphenAppendPolicyKeepsHyphen(t *testing.T) {
	text := "citation_open\n[1] Smith, J. astro-\n[ph/0101001]\nref_close\n"
	refs := ParseDVIMarkers(text, "", DVIHyphenAppend)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if !strings.Contains(refs[0], "astro-[ph/0101001]") {
		t.Errorf("expected hyphen kept before the preprint chunk, got %q", refs[0])
	}
}

func TestParseDVIMarkers_HyphenStripPolicyDropsHyphen(t *testing.T) {
	text := "citation_open\n[1] Smith, J. astro-\n[ph/0101001]\nref_close\n"
	refs := ParseDVIMarkers(text, "", DVIHyphenStrip)
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if !strings.Contains(refs[0], "astro[ph/0101001]") {
		t.Errorf("expected hyphen dropped before the preprint chunk, got %q", refs[0])
	}
}
