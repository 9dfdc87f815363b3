// Package compiler drives one candidate document through a TeX engine,
// converts its output to plain text, and parses bibliographic references
// back out of that text. It makes two passes over the candidates in score
// order, the first with DVI markers and the second with PDF markers,
// stopping at the first attempt that yields at least one reference.
package compiler

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/cleaner"
	"arxiv-refextract/internal/collab"
	"arxiv-refextract/internal/logger"
	"arxiv-refextract/internal/subprocess"
	"arxiv-refextract/internal/tagger"
	"arxiv-refextract/internal/toolchain"
	"arxiv-refextract/internal/types"
)

// CompileTimeout is the per-attempt compile budget; TeX compilation
// warnings and even a non-zero exit status are normal and are never
// treated as failure on their own.
const CompileTimeout = 100 * time.Second

// epstopdfTimeout bounds a single epstopdf conversion invoked from the
// tagger's graphics-rewrite phase.
const epstopdfTimeout = 5 * time.Second

// Options configures one candidate-list compile-and-extract pass.
type Options struct {
	Toolchain  types.Toolchain
	Categories []string // passed through to the PDF marker parser's split-eprint repair
	Extractor  collab.PDFReferenceExtractor
}

// markerPasses is the sequence of whole-candidate-list passes
// Compile-and-Extract makes: the TeX/DVI attempt runs first across every
// candidate, and only if that entire pass fails to produce a reference
// does the PS->PDF retry run, again across every candidate. Within a
// single pass a lower-scored candidate never gets to win over a
// higher-scored one just because it tried the other marker style first.
var markerPasses = []types.MarkerStyle{types.MarkerDvi, types.MarkerPdf}

// CompileAndExtract runs the DVI pass over every non-ignored candidate in
// score order, and, only if that whole pass yields nothing, retries the
// same candidate list through the PS->PDF path. It returns the references
// from the first attempt that produces at least one, or an empty outcome
// if no pass/candidate combination did.
func CompileAndExtract(candidates []types.MainCandidate, opts Options) (types.ExtractionOutcome, error) {
	if opts.Extractor == nil {
		opts.Extractor = collab.PDFTextReferenceExtractor{}
	}

	for _, marker := range markerPasses {
		for _, candidate := range candidates {
			if candidate.Ignore {
				continue
			}

			refs, ok := attemptCandidate(candidate, marker, opts)
			if ok && len(refs) > 0 {
				return cleaner.Classify(refs), nil
			}
		}
	}

	return types.OutcomeEmptyResult(), nil
}

// attemptCandidate restores the candidate's pristine source, tags it for
// the given marker style, and compiles it. The pristine source is saved
// beside the candidate as <file>.pristine on the first attempt and read
// back from there on later ones. The bool return is false when the
// attempt produced nothing usable: the file could not be read or
// restored, tagging marked no references, or the compile or text
// conversion failed.
func attemptCandidate(candidate types.MainCandidate, marker types.MarkerStyle, opts Options) ([]types.Reference, bool) {
	pristinePath := candidate.File + ".pristine"
	original, err := os.ReadFile(pristinePath)
	if err != nil {
		original, err = os.ReadFile(candidate.File)
		if err != nil {
			logger.Warn("failed to read candidate for compile attempt",
				logger.String("file", candidate.File), logger.Err(err))
			return nil, false
		}
		if err := os.WriteFile(pristinePath, original, 0644); err != nil {
			logger.Warn("failed to save pristine copy of candidate", logger.Err(err))
			return nil, false
		}
	}
	if err := os.WriteFile(candidate.File, original, 0644); err != nil {
		logger.Warn("failed to restore candidate before tagging", logger.Err(err))
		return nil, false
	}

	convertPS := marker == types.MarkerPdf
	count, err := tagger.Tag(candidate.File, tagger.Options{
		BibitemMacro: candidate.BibitemMacro,
		Marker:       marker,
		ConvertPS:    convertPS,
	})
	if err != nil || count == 0 {
		return nil, false
	}
	if convertPS {
		convertGraphicsToPDF(texDirOf(candidate.File))
	}

	refs, err := compileOne(candidate, marker, opts)
	if err != nil {
		logger.Debug("compile attempt failed",
			logger.String("file", candidate.Basename),
			logger.Stage(markerName(marker)),
			logger.Err(err))
		return nil, false
	}
	return refs, true
}

// compileOne runs a single (candidate, marker) attempt: selects the TeX
// command, compiles, locates the output, converts it to text, and parses
// references out of that text.
func compileOne(candidate types.MainCandidate, marker types.MarkerStyle, opts Options) ([]types.Reference, error) {
	frame := toolchain.Apply(opts.Toolchain)
	defer frame.Release()

	texDir := filepath.Dir(candidate.File)
	base := strings.TrimSuffix(candidate.Basename, filepath.Ext(candidate.Basename))

	name, args := selectCommand(candidate.Format, marker, candidate.Basename)

	ctx := context.Background()
	res, err := subprocess.Run(ctx, subprocess.Spec{
		Path:    name,
		Args:    args,
		Dir:     texDir,
		Timeout: CompileTimeout,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CompileTimeout, "failed to run tex engine", err)
	}

	log := res.Stdout + "\n" + res.Stderr
	outPath := locateOutput(log, texDir, base, marker)

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return nil, apperr.New(apperr.CompileOutputMissing, "compile produced no usable output")
	}
	logger.Debug("compile produced output",
		logger.String("path", outPath), logger.String("size", humanize.Bytes(uint64(info.Size()))))

	textPath, err := convertToText(ctx, outPath, marker, opts.Extractor)
	if err != nil {
		return nil, err
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.TextConversionFailed, "failed to read converted text", err)
	}

	var raw []string
	if marker == types.MarkerDvi {
		raw = cleaner.ParseDVIMarkers(string(text), candidate.Title, cleaner.DVIHyphenAppend)
	} else {
		raw = cleaner.ParsePDFMarkers(string(text), candidate.Title, opts.Categories)
	}

	refs := make([]types.Reference, 0, len(raw))
	for _, r := range raw {
		if r != "" {
			refs = append(refs, types.Reference(r))
		}
	}
	return refs, nil
}

func texDirOf(file string) string { return filepath.Dir(file) }

// convertGraphicsToPDF shells out to epstopdf for every .ps/.eps/.epsi/.epsf
// file in dir that has no matching .pdf yet, so the source rewrite the
// tagger's Phase C already applied to \includegraphics calls has an actual
// file to find. Each conversion gets its own short timeout; a failure is
// logged and skipped rather than aborting the whole candidate, since
// pdflatex will simply fail to find the image and the candidate will be
// abandoned on its own.
func convertGraphicsToPDF(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".ps" && ext != ".eps" && ext != ".epsi" && ext != ".epsf" {
			continue
		}
		pdfPath := strings.TrimSuffix(filepath.Join(dir, e.Name()), filepath.Ext(e.Name())) + ".pdf"
		if _, err := os.Stat(pdfPath); err == nil {
			continue
		}
		_, err := subprocess.Run(context.Background(), subprocess.Spec{
			Path:    "epstopdf",
			Args:    []string{e.Name()},
			Dir:     dir,
			Timeout: epstopdfTimeout,
		})
		if err != nil {
			logger.Debug("epstopdf conversion failed", logger.String("file", e.Name()), logger.Err(err))
		}
	}
}

// selectCommand maps (format, marker) to the TeX engine invocation, per
// the classic pipeline's four-way dispatch table.
func selectCommand(format types.DocFormat, marker types.MarkerStyle, basename string) (string, []string) {
	switch {
	case format == types.DocFormatTex && marker == types.MarkerPdf:
		return "pdftex", []string{basename}
	case format == types.DocFormatLaTeX && marker == types.MarkerPdf:
		return "pdflatex", []string{"-interaction=nonstopmode", basename}
	case format == types.DocFormatTex && marker == types.MarkerDvi:
		return "tex", []string{basename}
	default:
		return "latex", []string{"-interaction=nonstopmode", basename}
	}
}

// outputWrittenRe finds the real output filename TeX reports at the end
// of a successful run, which can differ from <basename>.<ext> when the
// source itself calls \jobname or \input tricks.
var outputWrittenRe = regexp.MustCompile(`(?i)Output written on (\S+)`)

func locateOutput(log, texDir, base string, marker types.MarkerStyle) string {
	if m := outputWrittenRe.FindStringSubmatch(log); m != nil {
		name := strings.TrimSuffix(m[1], ".")
		if !filepath.IsAbs(name) {
			name = filepath.Join(texDir, name)
		}
		return name
	}
	ext := ".pdf"
	if marker == types.MarkerDvi {
		ext = ".dvi"
	}
	return filepath.Join(texDir, base+ext)
}

// convertToText runs the appropriate text-conversion tool for the output
// file's format and returns the path to the resulting text file. For the
// PDF path, extractor provides a cheap pre-check that the PDF has any
// extractable text content at all before the pdftotext subprocess runs.
func convertToText(ctx context.Context, outPath string, marker types.MarkerStyle, extractor collab.PDFReferenceExtractor) (string, error) {
	textPath := outPath + ".txt"

	if marker == types.MarkerDvi {
		res, err := subprocess.Run(ctx, subprocess.Spec{
			Path:    "dvitype",
			Args:    []string{outPath},
			Dir:     filepath.Dir(outPath),
			Timeout: CompileTimeout,
		})
		if err != nil {
			return "", apperr.Wrap(apperr.TextConversionFailed, "dvitype failed", err)
		}
		if err := os.WriteFile(textPath, []byte(res.Stdout), 0644); err != nil {
			return "", apperr.Wrap(apperr.OutputIOError, "failed to write dvitype transcript", err)
		}
		return textPath, nil
	}

	if err := validatePDF(outPath); err != nil {
		return "", err
	}

	if _, err := extractor.ExtractText(outPath); err != nil {
		return "", apperr.Wrap(apperr.TextConversionFailed, "compiled PDF has no extractable text", err)
	}

	_, err := subprocess.Run(ctx, subprocess.Spec{
		Path:    "pdftotext",
		Args:    []string{"-raw", "-enc", "ASCII7", outPath, textPath},
		Dir:     filepath.Dir(outPath),
		Timeout: CompileTimeout,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.TextConversionFailed, "pdftotext failed", err)
	}
	return textPath, nil
}

// validatePDF runs a structural sanity check before spending a
// pdftotext invocation on a file that pdfcpu considers malformed.
func validatePDF(path string) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return apperr.Wrap(apperr.CompileOutputMissing, "compiled PDF failed structural validation", err)
	}
	return nil
}

func markerName(m types.MarkerStyle) string {
	if m == types.MarkerDvi {
		return "dvi"
	}
	return "pdf"
}
