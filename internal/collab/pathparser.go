package collab

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/types"
)

// newArxivIDPattern matches the post-2007 "YYMM.NNNNN" identifier format.
var newArxivIDPattern = regexp.MustCompile(`^(\d{2})(\d{2})\.\d{4,5}$`)

// oldArxivIDPattern matches the pre-2007 "category/YYMMNNN" format, where
// the category is embedded directly in the identifier.
var oldArxivIDPattern = regexp.MustCompile(`^([a-z-]+)/(\d{2})(\d{2})\d{3}$`)

// knownSuffixes is checked longest-first so ".tar.gz" is recognized
// before its shorter ".gz" substring would otherwise win.
var knownSuffixes = []string{".tar.gz", ".tex.gz", ".pdf.gz", ".tar", ".tex", ".pdf", ".gz"}

// RegexArxivPathParser parses a batch input path using the same
// identifier regexes the classic pipeline keys its directory layout on,
// without touching the filesystem or any external metadata store.
type RegexArxivPathParser struct{}

// Parse implements ArxivPathParser.
func (RegexArxivPathParser) Parse(rawPath string) (types.ArxivItem, error) {
	suffix := detectSuffix(rawPath)
	stem := strings.TrimSuffix(filepath.Base(rawPath), suffix)

	oldID := filepath.Base(filepath.Dir(rawPath)) + "/" + stem
	if m := oldArxivIDPattern.FindStringSubmatch(oldID); m != nil {
		yy, _ := strconv.Atoi(m[2])
		return types.ArxivItem{
			RawPath:          rawPath,
			EprintID:         oldID,
			Category:         m[1],
			Year:             expandYear(yy),
			Suffix:           suffix,
			CanonicalRelpath: filepath.Join(m[1], stem+suffix),
		}, nil
	}

	if m := newArxivIDPattern.FindStringSubmatch(stem); m != nil {
		yy, _ := strconv.Atoi(m[1])
		return types.ArxivItem{
			RawPath:          rawPath,
			EprintID:         stem,
			Category:         "",
			Year:             expandYear(yy),
			Suffix:           suffix,
			CanonicalRelpath: stem + suffix,
		}, nil
	}

	return types.ArxivItem{}, apperr.Newf(apperr.InputMalformed, "path %q does not contain a recognizable arXiv identifier", rawPath)
}

// detectSuffix returns the longest known suffix present on path, or the
// plain filepath.Ext result if none of the multi-part suffixes match.
func detectSuffix(path string) string {
	lower := strings.ToLower(path)
	for _, s := range knownSuffixes {
		if strings.HasSuffix(lower, s) {
			return path[len(path)-len(s):]
		}
	}
	return filepath.Ext(path)
}

// expandYear turns a two-digit year into a full year, matching arXiv's
// own convention: 91-99 is 1991-1999, 00-90 is 2000-2090.
func expandYear(yy int) int {
	if yy >= 91 {
		return 1900 + yy
	}
	return 2000 + yy
}
