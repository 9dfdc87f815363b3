package cleaner

import (
	"regexp"
	"strings"

	"arxiv-refextract/internal/types"
)

// reRefSpan matches one tagged reference body out of text pdftotext
// extracted from a PDF-marker compile. The tagger's $<$r$>$...$<$/r$>$
// source markup renders to literal "<r>"/"</r>" glyphs once pdflatex
// typesets the $<$/$>$ math-mode less-than/greater-than pair, so the
// converted text file contains the bare angle-bracket form, not the
// dollar-sign source tokens. pdftotext's line wrapping means a body can
// legitimately span several physical lines, hence the non-greedy
// whole-document match rather than a line-by-line one.
var reRefSpan = regexp.MustCompile(`(?s)<r>(.*?)</r>`)

// reLineEndingHyphen matches a hyphen immediately followed by a newline,
// the signature of a word pdftotext wrapped across the line and that the
// PDF marker parser rejoins before any further cleaning.
var reLineEndingHyphen = regexp.MustCompile(`-\s*\n\s*`)

// DefaultHyphenatedCategories lists the classic ArXiv subject categories
// whose name contains a hyphen, the categories the split-eprint repair
// needs to know about so it can tell a genuinely broken identifier from
// ordinary text. A deployment with its own up-to-date category list can
// pass it to ParsePDFMarkers instead.
var DefaultHyphenatedCategories = []string{
	"astro-ph", "cond-mat", "gr-qc", "hep-ex", "hep-lat", "hep-ph", "hep-th",
	"math-ph", "nucl-ex", "nucl-th", "quant-ph", "chao-dyn", "solv-int",
	"comp-gas", "atom-ph", "acc-phys", "ao-sci", "bayes-an", "chem-ph",
	"dg-ga", "funct-an", "mtrl-th", "patt-sol", "plasm-ph", "q-alg",
	"q-bio", "supr-con",
}

// ParsePDFMarkers extracts every tagged reference body from text produced
// by converting a PDF-marker compile, in document order. Each match has
// its line-ending hyphens rejoined, its internal whitespace collapsed,
// and the split-eprint repair applied before the shared Clean pipeline
// removes the title and any leading numbering.
func ParsePDFMarkers(text string, title string, categories []string) []string {
	if categories == nil {
		categories = DefaultHyphenatedCategories
	}

	var out []string
	for _, m := range reRefSpan.FindAllStringSubmatch(text, -1) {
		body := reLineEndingHyphen.ReplaceAllString(m[1], "")
		body = collapseWhitespace(body)
		body = repairSplitEprint(body, categories)
		out = append(out, Clean(body, title))
	}
	return out
}

// repairSplitEprint rewrites a hyphenated ArXiv category name that lost
// its hyphen to the line-ending-hyphen rejoin above (e.g. "astro-ph"
// broken across a line becomes "astroph" once the wrap hyphen is
// dropped) back to its canonical form, scoped to the identifier contexts
// where it matters: immediately before a slash and a 7-digit number.
func repairSplitEprint(s string, categories []string) string {
	for _, cat := range categories {
		flat := strings.ReplaceAll(cat, "-", "")
		if flat == cat {
			continue
		}
		re := regexp.MustCompile(regexp.QuoteMeta(flat) + `/(\d{7})`)
		s = re.ReplaceAllString(s, cat+"/$1")
	}
	return s
}

// reBrokenPreprintID matches the start of a preprint identifier that may
// have been split across a DVI page or line boundary: a bare category
// name followed by a space or slash and a 7-digit number.
var reBrokenPreprintID = regexp.MustCompile(`^\[?[a-z]+[ /]+\d{7}`)

// discardedBracketLines are dvitype transcript lines that carry section
// boilerplate rather than reference text, in any of the capitalizations
// the classic pipeline observed in the wild.
var discardedBracketLines = map[string]bool{
	"[References]":    true,
	"[REFERENCES]":    true,
	"[Bibliography]":  true,
	"[BIBLIOGRAPHY]":  true,
}

// ParseDVIMarkers walks a dvitype transcript line by line. It skips
// everything before the first "citation_open" marker, then accumulates
// every line beginning with "[" into the current reference: a further
// "citation_open" emits the accumulated text and starts the next entry,
// and "ref_close" emits the final entry and stops. A bracket line
// matching one of the known bibliography-heading forms is discarded
// rather than accumulated.
func ParseDVIMarkers(text string, title string, policy DVIHyphenPolicy) []string {
	lines := strings.Split(text, "\n")

	started := false
	var current strings.Builder
	var refs []string

	flush := func() {
		if current.Len() == 0 {
			return
		}
		refs = append(refs, Clean(current.String(), title))
		current.Reset()
	}

	for _, line := range lines {
		switch {
		case strings.Contains(line, "citation_open"):
			if started {
				flush()
			}
			started = true
			continue
		case strings.Contains(line, "citation_close"):
			continue
		case strings.Contains(line, "ref_close"):
			flush()
			return refs
		}

		if !started {
			continue
		}

		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "[") {
			continue
		}
		if discardedBracketLines[trimmed] {
			continue
		}

		appendDviChunk(&current, trimmed, policy)
	}

	flush()
	return refs
}

// appendDviChunk joins a newly scanned bracket-led chunk onto the
// in-progress reference. When the accumulated text ends in a hyphen and
// the new chunk looks like the tail of a preprint identifier split across
// a line, the two are joined directly; DVIHyphenStrip additionally drops
// the hyphen itself, while the default DVIHyphenAppend preserves it to
// match the observed classic behavior.
func appendDviChunk(b *strings.Builder, chunk string, policy DVIHyphenPolicy) {
	current := b.String()
	if strings.HasSuffix(current, "-") && reBrokenPreprintID.MatchString(chunk) {
		if policy == DVIHyphenStrip {
			b.Reset()
			b.WriteString(strings.TrimSuffix(current, "-"))
		}
		b.WriteString(chunk)
		return
	}
	if b.Len() > 0 {
		b.WriteString(" ")
	}
	b.WriteString(chunk)
}

// Classify reports the extraction outcome implied by a set of cleaned
// reference strings, using the engine-wide minimum-references floor.
func Classify(refs []types.Reference) types.ExtractionOutcome {
	switch {
	case len(refs) == 0:
		return types.OutcomeEmptyResult()
	case len(refs) < MinReferences:
		return types.OutcomeTooFewResult(len(refs))
	default:
		return types.OutcomeOK(refs)
	}
}
