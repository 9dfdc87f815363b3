// Package tagger rewrites a candidate TeX source so that, once compiled,
// each bibliography entry is bracketed by a sentinel the text-conversion
// stage can find again. TeX itself never sees the markers as anything but
// inert text or specials; the Reference Tagger's whole job is choosing
// where to slip them in without breaking the document's own macros.
package tagger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/types"
)

// builtinStartMacros are the bibliography-item macros the classic
// pipeline recognizes out of the box; a submission's own custom macro
// (captured by the Main-File Finder as MainCandidate.BibitemMacro) is
// checked in addition to these.
var builtinStartMacros = []string{"bibitem", "reference", "rn", "rf", "rfprep", "item"}

var (
	reBeginBib   = regexp.MustCompile(`\\begin\{(?:thebibliography|chapthebibliography|references)\}`)
	reEndBib     = regexp.MustCompile(`\\end\{(?:thebibliography|chapthebibliography|references)\}`)
	reHyphenRun  = regexp.MustCompile(`\b(\w+\s*)--(\s*\w+)\b`)
	reItalicEm   = regexp.MustCompile(`\{\\em\s+([^{}]*)\}`)
	reItalicIt   = regexp.MustCompile(`\{\\it\s+([^{}]*)\}`)
	reTextit     = regexp.MustCompile(`\\textit\{([^{}]*)\}`)
	reEmph       = regexp.MustCompile(`\\emph\{([^{}]*)\}`)
	reGraphicsExt = regexp.MustCompile(`(?i)\.(ps|eps|epsi|epsf)(["}\s])`)
)

// diacriticPatterns strip the classic TeX accent macros down to their
// bare letter: \'e, {\'e}, and the bracketed \accent{e} form all collapse
// to plain "e". accentChars covers every accent the spec calls out.
var accentChars = []rune{'`', '\'', '^', '"', '~', '=', '.'}
var bracketedAccents = []string{"H", "c", "b", "d", "u", "v", "t"}

// Options configures one tagging pass.
type Options struct {
	BibitemMacro string // custom macro name from the main-file candidate, may be empty
	Marker       types.MarkerStyle
	ConvertPS    bool // whether Phase C should rewrite .ps/.eps graphics to .pdf
}

// Tag reads path, rewrites it through phases A, B and C, and writes the
// result back via write-to-temp-then-rename so a crash mid-write never
// leaves a half-written source file behind. It returns the number of
// reference entries it marked.
func Tag(path string, opts Options) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, apperr.Wrap(apperr.SourceMissing, "failed to read candidate file", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	allowFullFileRewind := ext == ".bib" || ext == ".bbl"

	content, count := phaseA(string(data), opts, allowFullFileRewind)
	content = phaseB(content)
	content = phaseC(content, opts.ConvertPS)

	if err := writeAtomic(path, content); err != nil {
		return 0, err
	}
	return count, nil
}

// startMacroPattern builds the regex matching any reference-start macro,
// including the submission's own custom macro if one was found.
func startMacroPattern(custom string) *regexp.Regexp {
	names := append([]string{}, builtinStartMacros...)
	if custom != "" {
		names = append(names, regexp.QuoteMeta(custom))
	}
	return regexp.MustCompile(`\\(` + strings.Join(names, "|") + `)\b`)
}

// phaseA locates the bibliography region, splits it into individual
// entries at each reference-start macro, and wraps each entry with the
// chosen marker style. If no bibliography environment is found at all,
// it rewinds to treating the whole file as the bibliography region, but
// only when allowFullFileRewind says the file is a .bib/.bbl source —
// an ordinary .tex file with no recognized environment has no reference
// region at all, and tagging its unrelated \item lists would be wrong.
func phaseA(content string, opts Options, allowFullFileRewind bool) (string, int) {
	startRe := startMacroPattern(opts.BibitemMacro)

	beginLoc := reBeginBib.FindStringIndex(content)
	endLoc := reEndBib.FindStringIndex(content)

	var before, region, after string
	if beginLoc != nil {
		region = content[beginLoc[1]:]
		before = content[:beginLoc[1]]
		if endLoc != nil && endLoc[0] >= beginLoc[1] {
			region = content[beginLoc[1]:endLoc[0]]
			after = content[endLoc[0]:]
		}
	} else if allowFullFileRewind {
		// Rewind: no bibliography environment at all in a .bib/.bbl-only
		// source. Treat the entire file as the reference region.
		region = content
	} else {
		return content, 0
	}

	region = CollapseHyphenRuns(region)

	entries, count := splitEntries(region, startRe)
	if count == 0 {
		return content, 0
	}

	tagged := wrapEntries(entries, opts.Marker)
	return before + tagged + after, count
}

// entry is either a verbatim passthrough chunk (no reference start macro
// inside it) or a tagged reference body.
type entry struct {
	text      string
	isRef     bool
	macroName string
}

func splitEntries(region string, startRe *regexp.Regexp) ([]entry, int) {
	matches := startRe.FindAllStringSubmatchIndex(region, -1)
	if len(matches) == 0 {
		return []entry{{text: region}}, 0
	}

	var entries []entry
	if matches[0][0] > 0 {
		entries = append(entries, entry{text: region[:matches[0][0]]})
	}

	for i, m := range matches {
		end := len(region)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		macroName := region[m[2]:m[3]]
		entries = append(entries, entry{text: region[m[0]:end], isRef: true, macroName: macroName})
	}

	return entries, len(matches)
}

// wrapEntries emits each reference body through emitReference and joins
// the whole region back together with the marker style's bibliography
// wrap around the spans of tagged entries.
func wrapEntries(entries []entry, marker types.MarkerStyle) string {
	open, close := bibWrap(marker)
	var sb strings.Builder
	wroteOpen := false

	for _, e := range entries {
		if !e.isRef {
			sb.WriteString(e.text)
			continue
		}
		if !wroteOpen {
			sb.WriteString(open)
			wroteOpen = true
		}
		sb.WriteString(emitReference(e.text, e.macroName, marker))
	}
	if wroteOpen {
		sb.WriteString(close)
	}
	return sb.String()
}

// emitReference peels the leading [label] and/or {key} off a \bibitem
// (or equivalent) header via balanced-bracket extraction, keeps that
// header in front of the per-entry open marker, and surrounds the
// remaining reference body with the marker pair. The "reference"-family
// macros take a single {bibcode} argument instead of [label]{key}, so
// their peeled argument is dropped and only the bare macro is kept.
func emitReference(text string, macroName string, marker types.MarkerStyle) string {
	rest := text
	// Skip the macro name itself.
	if idx := strings.IndexByte(rest, '\\'); idx == 0 {
		nameEnd := 1
		for nameEnd < len(rest) && isLetter(rune(rest[nameEnd])) {
			nameEnd++
		}
		rest = rest[nameEnd:]
	}

	rest = skipBalanced(rest, '[', ']') // optional label
	rest = skipBalanced(rest, '{', '}') // key or bibcode argument

	header := strings.TrimRight(text[:len(text)-len(rest)], " \t")
	if macroName == "reference" {
		header = `\reference`
	}

	open, close := refWrap(marker)
	return header + " " + open + stripDiacritics(rest) + close
}

// skipBalanced removes one leading bracketed group delimited by open/close
// if present, correctly counting nested brackets of the same kind so a
// key containing braces isn't truncated early.
func skipBalanced(s string, open, close byte) string {
	s = strings.TrimLeft(s, " \t")
	if len(s) == 0 || s[0] != open {
		return s
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[i+1:]
			}
		}
	}
	return s
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func refWrap(marker types.MarkerStyle) (string, string) {
	if marker == types.MarkerDvi {
		return `\special{citation_open} `, ` \special{citation_close}`
	}
	return `$<$r$>$`, `$<$/r$>$`
}

func bibWrap(marker types.MarkerStyle) (string, string) {
	if marker == types.MarkerDvi {
		return `\special{ref_open}` + "\n", "\n" + `\special{ref_close}`
	}
	return "\\newpage\\onecolumn\\section*{}$<$references$>$\\sloppy\\raggedright\n", "\n$<$/references$>$"
}

// phaseB normalizes the classic italic-emphasis macros used for article
// titles inside references down to a plain quoted form, since the text
// conversion stage cannot tell a font change from ordinary text.
func phaseB(content string) string {
	content = reItalicEm.ReplaceAllString(content, `"$1"`)
	content = reItalicIt.ReplaceAllString(content, `"$1"`)
	content = reTextit.ReplaceAllString(content, `"$1"`)
	content = reEmph.ReplaceAllString(content, `"$1"`)
	return content
}

// phaseC rewrites .ps/.eps/.epsi/.epsf graphics includes to .pdf when the
// pipeline is compiling for the PDF marker path (or retrying a failed TeX
// attempt through pdflatex). It only rewrites the source text; the
// matching image files are converted by internal/compiler's
// convertGraphicsToPDF.
func phaseC(content string, convertPS bool) string {
	if !convertPS {
		return content
	}
	return reGraphicsExt.ReplaceAllString(content, ".pdf$2")
}

// stripDiacritics removes the classic TeX accent macros, leaving the base
// letter behind, across the three syntactic forms the spec calls out:
// \'e, {\'e}, and the bracketed \v{c}-style consonant/vowel accents.
func stripDiacritics(s string) string {
	for _, a := range accentChars {
		accent := regexp.QuoteMeta(string(a))
		s = regexp.MustCompile(`\{?\\` + accent + `\{?(\w)\}?\}?`).ReplaceAllString(s, "$1")
	}
	for _, a := range bracketedAccents {
		s = regexp.MustCompile(`\\` + a + `\{(\w)\}`).ReplaceAllString(s, "$1")
	}
	return s
}

func writeAtomic(path, content string) error {
	tmp := fmt.Sprintf("%s.tagger-tmp", path)
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return apperr.Wrap(apperr.InternalInvariantViolated, "failed to write tagged file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperr.Wrap(apperr.InternalInvariantViolated, "failed to rename tagged file into place", err)
	}
	return nil
}

// CollapseHyphenRuns replaces a "--" run between two word tokens with a
// single hyphen, so TeX does not typeset an en-dash in the middle of a
// reference. Phase A applies it to the bibliography region.
func CollapseHyphenRuns(s string) string {
	return reHyphenRun.ReplaceAllString(s, "$1-$2")
}
