// Package cleaner turns the raw reference strings a text-conversion pass
// pulls out of a marked-up DVI or PDF into the normalized lines the
// pipeline writes out. Every pass here is a small pure function over a
// string so each one can be tested in isolation from the marker parsers
// that feed it.
package cleaner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"arxiv-refextract/internal/types"
)

// numberingStyle classifies how a reference line opens, so leading
// numeric noise left over from a bibliography's own item counter can be
// stripped without also eating a year or page number that happens to sit
// at the front of the actual reference text.
type numberingStyle int

const (
	numberingNone   numberingStyle = iota // no leading numbering, e.g. "[Smith 2001]"
	numberingBare                          // bare digits, e.g. "12. Smith, ..."
	numberingBraced                        // bracketed digits, e.g. "[12] Smith, ..."
)

var (
	reWhitespace     = regexp.MustCompile(`\s+`)
	reBareNumber     = regexp.MustCompile(`^\s*\d{1,3}\.\s+`)
	reBracedNumber   = regexp.MustCompile(`^\s*\[\d+\]\s*`)
	reTrailingDigit  = regexp.MustCompile(`^\s*\d+`)
	reHyphenSpacing  = regexp.MustCompile(`\s*-\s*`)
	reEscapedQuote   = regexp.MustCompile(`\\([A-Za-z]\w*)"`)
)

// Clean runs the full normalization pipeline over one raw reference
// string: whitespace collapse, one occurrence of the candidate's captured
// title removed (with an optional trailing digit left over from a page
// or year that butted against it), leading-numbering classification and
// stripping, hyphen-spacing normalization, and a final tidy pass.
func Clean(ref string, title string) string {
	s := collapseWhitespace(ref)
	s = removeTitleOnce(s, title)
	style := classifyNumbering(s)
	s = stripLeadingNumbering(s, style)
	s = normalizeHyphenSpacing(s)
	s = repairEscapedQuotes(s)
	s = collapseWhitespace(s)
	return strings.TrimSpace(s)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// removeTitleOnce deletes the first occurrence of title inside s (case
// sensitive, matching the classic pipeline's own comparison), along with
// one immediately trailing run of digits that is almost always a page
// number PDF text extraction glued onto the title's closing quote.
func removeTitleOnce(s, title string) string {
	if title == "" {
		return s
	}
	idx := strings.Index(s, title)
	if idx < 0 {
		return s
	}
	rest := s[idx+len(title):]
	rest = reTrailingDigit.ReplaceAllString(rest, "")
	return s[:idx] + rest
}

func classifyNumbering(s string) numberingStyle {
	switch {
	case reBracedNumber.MatchString(s):
		return numberingBraced
	case reBareNumber.MatchString(s):
		return numberingBare
	default:
		return numberingNone
	}
}

func stripLeadingNumbering(s string, style numberingStyle) string {
	switch style {
	case numberingBraced:
		return reBracedNumber.ReplaceAllString(s, "")
	case numberingBare:
		return reBareNumber.ReplaceAllString(s, "")
	default:
		return s
	}
}

// normalizeHyphenSpacing collapses " - ", "- " and " -" down to a single
// bare hyphen, the form the original reference text almost always used
// before the tagger's markup or the text converter's whitespace handling
// introduced stray spaces around it.
func normalizeHyphenSpacing(s string) string {
	return reHyphenSpacing.ReplaceAllString(s, "-")
}

// repairEscapedQuotes fixes the mangled \X" sequences text extraction
// sometimes leaves behind from a TeX accent macro whose backslash
// survived but whose brace did not, turning \Xfoo" back into "Xfoo".
func repairEscapedQuotes(s string) string {
	return reEscapedQuote.ReplaceAllString(s, `"$1"`)
}

// asciiPrintable spans the printable ASCII block plus newline and tab, so
// ToASCII7 strips accents and symbols without eating line structure.
var asciiPrintable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x09, Hi: 0x0A, Stride: 1},
		{Lo: 0x20, Hi: 0x7E, Stride: 1},
	},
}

// ToASCII7 decomposes s to NFKD and drops every rune outside the ASCII
// printable range, the final step the PDF-path text converter applies
// since pdftotext's -enc ASCII7 mode does the same thing at the C level.
func ToASCII7(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.NotIn(asciiPrintable)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// DVIHyphenPolicy controls the DVI marker parser's handling of a
// reference that ends in a hyphen immediately before a chunk that looks
// like a broken preprint identifier.
type DVIHyphenPolicy int

const (
	// DVIHyphenAppend reproduces the classic pipeline's observed
	// behavior: the next chunk is appended verbatim, hyphen kept.
	DVIHyphenAppend DVIHyphenPolicy = iota
	// DVIHyphenStrip drops the trailing hyphen before appending,
	// treating it as a line-wrap artifact instead of a real character.
	DVIHyphenStrip
)

// MinReferences re-exports the engine-wide acceptance threshold for
// callers that only import cleaner.
const MinReferences = types.MinReferences
