// Package orchestrator drives a single batch job from a parsed arXiv path
// through bibcode resolution, format dispatch, compile-and-extract, and
// output. Every stage error it catches is per-item: the batch driver calls
// Run once per job and moves on regardless of the outcome, except for the
// apperr.InternalInvariantViolated code, which the caller is expected to
// treat as process-fatal.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/archive"
	"arxiv-refextract/internal/cleaner"
	"arxiv-refextract/internal/collab"
	"arxiv-refextract/internal/compiler"
	"arxiv-refextract/internal/config"
	"arxiv-refextract/internal/logger"
	"arxiv-refextract/internal/mainfile"
	"arxiv-refextract/internal/toolchain"
	"arxiv-refextract/internal/types"
	"arxiv-refextract/internal/workspace"
)

// Collaborators bundles every external seam Run consults. A zero-valued
// field is replaced with a default implementation good enough to run
// standalone: see internal/collab's Null* and Static* types.
type Collaborators struct {
	PathParser  collab.ArxivPathParser
	Bibcodes    collab.BibcodeResolver
	Harvester   collab.Harvester
	Extractor   collab.PDFReferenceExtractor
	Categories  collab.CategoryProvider
}

// Result reports what happened to one job, for the batch driver to log and
// tally without inspecting the outcome's internals itself.
type Result struct {
	Item       types.ArxivItem
	OutputPath string // empty if nothing was written
	Outcome    types.ExtractionOutcome
	Err        error
}

// Wrote reports whether Run produced an output file for this job.
func (r Result) Wrote() bool { return r.OutputPath != "" }

func withDefaults(c Collaborators) Collaborators {
	if c.PathParser == nil {
		c.PathParser = collab.RegexArxivPathParser{}
	}
	if c.Bibcodes == nil {
		c.Bibcodes = collab.NullBibcodeResolver{}
	}
	if c.Harvester == nil {
		c.Harvester = collab.NullHarvester{}
	}
	if c.Extractor == nil {
		c.Extractor = collab.PDFTextReferenceExtractor{}
	}
	if c.Categories == nil {
		c.Categories = collab.NewStaticCategoryProvider(nil)
	}
	return c
}

// Run takes one batch input line's already-parsed job, processes it
// end-to-end, and always returns a Result: Err is set for a per-item
// failure, in which case OutputPath is empty and no file was written or
// truncated. The only error Run ever returns alongside a non-nil Result.Err
// is a second, invariant-violation error the caller should treat as fatal;
// in every other case the returned error is nil and the failure is carried
// entirely in Result.Err.
func Run(ctx context.Context, rawPath, bibcode, accno string, subdate int, cfg config.Config, collabs Collaborators) (Result, error) {
	collabs = withDefaults(collabs)

	item, err := collabs.PathParser.Parse(rawPath)
	if err != nil {
		return Result{Err: err}, nil
	}
	res := Result{Item: item}

	job := types.Job{Item: item, Bibcode: bibcode, Accno: accno, Subdate: subdate}
	if job.Bibcode == "" {
		resolved, err := collabs.Bibcodes.Resolve(ctx, item)
		if err != nil {
			return Result{Item: item, Err: err}, nil
		}
		job.Bibcode = resolved
	}

	outPath := outputPath(cfg.OutputBase, item)
	srcPath := filepath.Join(cfg.FulltextBase, item.RawPath)
	if !cfg.Force && outputIsFresh(outPath, srcPath) {
		logger.Debug("output already up to date, skipping",
			logger.Item(item.EprintID), logger.String("path", outPath))
		return res, nil
	}

	format := types.DetectSourceFormat(item.Suffix)
	if format == types.FormatUnknown {
		return Result{Item: item, Err: apperr.Newf(apperr.UnknownFormat, "unrecognized suffix %q for %s", item.Suffix, item.EprintID)}, nil
	}

	if cfg.SkipRefs {
		return res, nil
	}

	ws, err := workspace.New(cfg.ScratchRoot, cfg.DebugLevel > 1)
	if err != nil {
		if apperr.Fatal(codeOf(err)) {
			return Result{Item: item, Err: err}, err
		}
		return Result{Item: item, Err: err}, nil
	}
	defer workspace.Cleanup(ws)

	outcome, extractErr := extract(ctx, ws, item, format, job.Subdate, cfg, collabs)
	if extractErr != nil {
		return Result{Item: item, Outcome: outcome, Err: extractErr}, nil
	}

	res.Outcome = outcome
	switch outcome.Kind {
	case types.OutcomeOk:
		if err := writeOutput(outPath, job.Bibcode, outcome.Refs); err != nil {
			return Result{Item: item, Outcome: outcome, Err: err}, nil
		}
		res.OutputPath = outPath
		return res, nil
	case types.OutcomeTooFew:
		logger.Warn("too few references to publish",
			logger.Item(item.EprintID), logger.Int("count", outcome.N))
		return res, nil
	default:
		logger.Warn("no references extracted", logger.Item(item.EprintID))
		return res, nil
	}
}

// extract runs the format-specific path: a TeX source is unpacked, scored
// for a main file, and compiled; a fallback to a harvested PDF is attempted
// when the TeX path yields nothing and the config allows it. A bare PDF
// source skips straight to PDF text extraction.
func extract(ctx context.Context, ws *types.Workspace, item types.ArxivItem, format types.SourceFormat, subdate int, cfg config.Config, collabs Collaborators) (types.ExtractionOutcome, error) {
	srcPath := filepath.Join(cfg.FulltextBase, item.RawPath)

	if format == types.FormatPdf {
		return extractFromPDF(srcPath, item, collabs)
	}

	outcome, err := extractFromTex(ws, srcPath, item, subdate, cfg, collabs)
	if err == nil && outcome.Kind == types.OutcomeOk {
		return outcome, nil
	}
	if cfg.NoPDF {
		if err != nil {
			return outcome, err
		}
		return outcome, nil
	}

	pdfPath, harvestErr := collabs.Harvester.HarvestPDF(ctx, item, ws.RootDir)
	if harvestErr != nil {
		if err != nil {
			return outcome, err
		}
		return outcome, nil
	}
	return extractFromPDF(pdfPath, item, collabs)
}

func extractFromPDF(srcPath string, item types.ArxivItem, collabs Collaborators) (types.ExtractionOutcome, error) {
	text, err := collabs.Extractor.ExtractText(srcPath)
	if err != nil {
		return types.OutcomeFailedResult(err.Error()), apperr.Wrap(apperr.TextConversionFailed, "failed to extract text from PDF", err)
	}

	raw := cleaner.ParsePDFMarkers(text, "", categoriesFor(item, collabs))
	refs := make([]types.Reference, 0, len(raw))
	for _, r := range raw {
		if r != "" {
			refs = append(refs, types.Reference(r))
		}
	}
	return cleaner.Classify(refs), nil
}

func extractFromTex(ws *types.Workspace, srcPath string, item types.ArxivItem, subdate int, cfg config.Config, collabs Collaborators) (types.ExtractionOutcome, error) {
	copied, err := workspace.Populate(ws, srcPath)
	if err != nil {
		return types.OutcomeFailedResult(err.Error()), err
	}

	files, err := archive.Unpack(ws.RootDir, copied, item.Suffix)
	if err != nil {
		return types.OutcomeFailedResult(err.Error()), err
	}

	candidates, err := mainfile.Find(ws.RootDir, files)
	if err != nil {
		return types.OutcomeFailedResult(err.Error()), err
	}
	if len(candidates) == 0 {
		e := apperr.Newf(apperr.NoMainFile, "no candidate main file found for %s", item.EprintID)
		return types.OutcomeFailedResult(e.Error()), e
	}

	tc := toolchain.Select(cfg.ToolchainBase, subdate)
	opts := compiler.Options{Toolchain: tc, Categories: categoriesFor(item, collabs), Extractor: collabs.Extractor}

	outcome, err := compiler.CompileAndExtract(candidates, opts)
	if err != nil {
		return types.OutcomeFailedResult(err.Error()), err
	}
	return outcome, nil
}

func categoriesFor(item types.ArxivItem, collabs Collaborators) []string {
	if item.Category != "" {
		return append(append([]string{}, cleaner.DefaultHyphenatedCategories...), item.Category)
	}
	if cat, err := collabs.Categories.CategoryFor(item.EprintID); err == nil && cat != "" {
		return append(append([]string{}, cleaner.DefaultHyphenatedCategories...), cat)
	}
	return cleaner.DefaultHyphenatedCategories
}

// outputIsFresh reports whether outPath exists and is newer than srcPath,
// meaning a prior run already produced an up-to-date output file and this
// one can be skipped without a write or a subprocess launch. A missing
// source file (not yet resolvable at this stage) is treated as "not
// fresh" so the normal extraction path runs and reports the real error.
func outputIsFresh(outPath, srcPath string) bool {
	outInfo, err := os.Stat(outPath)
	if err != nil {
		return false
	}
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		return false
	}
	return outInfo.ModTime().After(srcInfo.ModTime())
}

func codeOf(err error) apperr.Code {
	if ae, ok := err.(*apperr.Error); ok {
		return ae.Code
	}
	return ""
}

// outputPath builds the <tbase>/<canonical_relpath>.raw path an item's
// references are written to, creating no parent directories itself; that
// happens in writeOutput.
func outputPath(tbase string, item types.ArxivItem) string {
	return filepath.Join(tbase, item.CanonicalRelpath+".raw")
}

// writeOutput renders the %R/%Z sentinel format and writes it atomically
// via a temp-file-then-rename, so a crash mid-write never leaves a
// truncated output file behind for a later run to mistake for a completed
// one.
func writeOutput(path, bibcode string, refs []types.Reference) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperr.Wrap(apperr.OutputIOError, "failed to create output directory", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%%R %s\n%%Z\n", bibcode)
	for _, r := range refs {
		sb.WriteString(cleaner.ToASCII7(string(r)))
		sb.WriteString("\n")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0644); err != nil {
		return apperr.Wrap(apperr.OutputIOError, "failed to write output file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return apperr.Wrap(apperr.OutputIOError, "failed to finalize output file", err)
	}
	return nil
}
