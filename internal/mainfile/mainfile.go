// Package mainfile scores the files produced by an unpacked archive and
// picks the one most likely to be the paper's own top-level document. An
// arXiv source tarball routinely contains multiple .tex files (the paper,
// included sub-sections, a response-to-referee letter, a style file
// renamed .tex by a confused author); this package's line-scan heuristic
// is how the classic pipeline tells them apart without ever compiling
// anything.
package mainfile

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"arxiv-refextract/internal/types"
)

// denylistBasenames are file names that are almost never the main
// document even though they pass the extension filter, most often
// because they are a journal's own boilerplate class/style file
// distributed alongside the paper.
var denylistBasenames = map[string]bool{
	"mn2eguide.tex":     true,
	"mn2esample.tex":    true,
	"mnras_guide.tex":   true,
	"aa.tex":            true,
	"new_feat.tex":      true,
	"rnaas.tex":         true,
	"mnras_template.tex": true,
}

var acceptedExt = map[string]bool{
	".tex": true, ".ltx": true, ".latex": true, ".revtex": true,
	".bib": true, ".bbl": true, ".txt": true, "": true,
}

var (
	reDocumentClass  = regexp.MustCompile(`\\document(class|style)\b`)
	reBeginDocument  = regexp.MustCompile(`\\begin\{document\}`)
	reAutoIgnore     = regexp.MustCompile(`%\s*auto-ignore`)
	reTitle          = regexp.MustCompile(`\\title\s*\{([^}]*)\}`)
	reShortTitle     = regexp.MustCompile(`\\shorttitle\s*\{([^}]*)\}`)
	reBeginAbstract  = regexp.MustCompile(`\\begin\{abstract\}`)
	reIntroSection   = regexp.MustCompile(`\\section\*?\{\s*INTRODUCTION\s*\}`)
	reThebibliography = regexp.MustCompile(`\\begin\{(?:thebibliography|chapthebibliography|references)\}`)
	reBibitemMacro   = regexp.MustCompile(`\\(?:newcommand|def)\s*\{?\\([A-Za-z]+)\}?(?:\[[^\]]*\])?.*\\bibitem`)
	reInput          = regexp.MustCompile(`\\input\{?\s*([A-Za-z0-9_./-]+)\s*\}?`)
)

// minTitleLen is the threshold below which a captured title is treated as
// absent, filtering out accidental single-word or punctuation-only
// matches from malformed \title{} usage.
const minTitleLen = 10

// Find scores every candidate file in dir and returns them sorted by
// descending score, with bibitem-macro and title defaults propagated from
// the first candidate that defined them (the classic pipeline applies a
// single custom \bibitem macro, typically declared once in a shared
// preamble file, across every candidate in the same submission).
func Find(dir string, files []string) ([]types.MainCandidate, error) {
	var candidates []types.MainCandidate
	inputCounts := map[string]int{}
	inputBasenameCounts := map[string]int{}

	for _, name := range files {
		name = normalizeExtension(dir, name)
		if !accepted(name) {
			continue
		}

		path := filepath.Join(dir, name)
		c, inputs, err := scoreFile(path, name)
		if err != nil {
			continue
		}
		candidates = append(candidates, c)

		for _, in := range inputs {
			inputCounts[in]++
			inputBasenameCounts[filepath.Base(in)]++
		}
	}

	for i := range candidates {
		name := candidates[i].Basename
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if inputCounts[name] > 0 || inputCounts[stem] > 0 {
			candidates[i].Score -= 2
		} else if inputBasenameCounts[name] > 0 || inputBasenameCounts[stem] > 0 {
			candidates[i].Score -= 1
		}
	}

	propagateDefaults(candidates)

	sortDescending(candidates)
	return candidates, nil
}

// normalizeExtension renames a .TEX file on disk to lowercase .tex, per
// the classic pipeline's handling of the occasional all-caps filename
// some submission tools produce, and returns the (possibly renamed) name.
func normalizeExtension(dir, name string) string {
	if filepath.Ext(name) == ".TEX" {
		newName := strings.TrimSuffix(name, ".TEX") + ".tex"
		_ = os.Rename(filepath.Join(dir, name), filepath.Join(dir, newName))
		return newName
	}
	return name
}

func accepted(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "psfig") {
		return false
	}
	return acceptedExt[strings.ToLower(filepath.Ext(name))]
}

// scoreFile line-scans one candidate file, returning its MainCandidate
// record and the list of \input targets it references (used by the
// caller to demote files that are clearly included by another file
// rather than being the main document themselves).
func scoreFile(path, basename string) (types.MainCandidate, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.MainCandidate{}, nil, err
	}
	defer f.Close()

	c := types.MainCandidate{File: path, Basename: basename, Format: types.DocFormatTex}
	var inputs []string

	if denylistBasenames[strings.ToLower(basename)] {
		c.Score -= 3
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if reAutoIgnore.MatchString(line) {
			c.Ignore = true
		}
		if reDocumentClass.MatchString(line) {
			c.Score++
			c.Format = types.DocFormatLaTeX
		}
		if reBeginDocument.MatchString(line) {
			c.Score++
			c.Format = types.DocFormatLaTeX
		}
		if reTitle.MatchString(line) {
			c.Score++
			if m := reTitle.FindStringSubmatch(line); m != nil {
				c.Title = strings.TrimSpace(m[1])
			}
		}
		if reBeginAbstract.MatchString(line) {
			c.Score++
		}
		if reIntroSection.MatchString(line) {
			c.Score++
		}
		if reThebibliography.MatchString(line) {
			c.Score++
		}
		if m := reShortTitle.FindStringSubmatch(line); m != nil {
			c.Score++
			if c.Title == "" {
				c.Title = strings.TrimSpace(m[1])
			}
		}
		if c.BibitemMacro == "" {
			if m := reBibitemMacro.FindStringSubmatch(line); m != nil {
				c.BibitemMacro = m[1]
			}
		}
		for _, m := range reInput.FindAllStringSubmatch(line, -1) {
			inputs = append(inputs, m[1])
		}
	}

	if len(c.Title) < minTitleLen {
		c.Title = ""
	}

	return c, inputs, scanner.Err()
}

// propagateDefaults fills in an empty BibitemMacro or Title on every
// candidate from the first candidate in file order that defined one,
// matching the classic pipeline's two-pass default-propagation step.
func propagateDefaults(candidates []types.MainCandidate) {
	var defaultMacro, defaultTitle string
	for _, c := range candidates {
		if defaultMacro == "" && c.BibitemMacro != "" {
			defaultMacro = c.BibitemMacro
		}
		if defaultTitle == "" && c.Title != "" {
			defaultTitle = c.Title
		}
	}
	for i := range candidates {
		if candidates[i].BibitemMacro == "" {
			candidates[i].BibitemMacro = defaultMacro
		}
		if candidates[i].Title == "" {
			candidates[i].Title = defaultTitle
		}
	}
}

func sortDescending(candidates []types.MainCandidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}
