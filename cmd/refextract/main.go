// Command refextract is the batch driver for the reference-extraction
// engine: it reads jobs from stdin, one per line, and for each one writes
// a %R/%Z-sentinel output file under --tbase, reporting progress and
// failures to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"arxiv-refextract/internal/batch"
	"arxiv-refextract/internal/collab"
	"arxiv-refextract/internal/config"
	"arxiv-refextract/internal/logger"
	"arxiv-refextract/internal/orchestrator"
)

func main() {
	pbase := flag.String("pbase", "", "root of the fulltext source tree")
	tbase := flag.String("tbase", "", "root under which .raw output files are written")
	texbase := flag.String("texbase", "", "root of the installed TeX toolchains")
	force := flag.Bool("force", false, "overwrite an existing output file")
	noPDF := flag.Bool("no-pdf", false, "never fall back to a harvested PDF when the TeX path fails")
	noHarvest := flag.Bool("no-harvest", false, "never fetch a fallback PDF from the configured harvester")
	skipRefs := flag.Bool("skip-refs", false, "parse and validate jobs without running reference extraction")
	debug := debugFlag{}
	flag.Var(&debug, "debug", "increase debug verbosity (repeatable)")
	flag.Parse()

	cfg, err := config.Resolve(config.Overrides{
		PBase:      optionalString(*pbase),
		TBase:      optionalString(*tbase),
		TexBase:    optionalString(*texbase),
		Force:      force,
		NoPDF:      noPDF,
		NoHarvest:  noHarvest,
		SkipRefs:   skipRefs,
		DebugLevel: &debug.level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "refextract: %v\n", err)
		os.Exit(1)
	}

	logLevel := logger.LevelInfo
	if cfg.DebugLevel > 0 {
		logLevel = logger.LevelDebug
	}
	if err := logger.Init(&logger.Config{
		LogFilePath:   "refextract.log",
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		Level:         logLevel,
		EnableConsole: cfg.DebugLevel > 0,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "refextract: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	collabs := orchestrator.Collaborators{
		PathParser: collab.RegexArxivPathParser{},
		Extractor:  collab.PDFTextReferenceExtractor{},
	}
	if cfg.NoHarvest {
		collabs.Harvester = collab.NullHarvester{}
	}

	// Exit code stays 0 regardless of per-item failures; batch.Run already
	// wrote the failure-count summary to stderr. Only an invariant
	// violation is fatal to the process.
	if _, err := batch.Run(context.Background(), os.Stdin, os.Stdout, os.Stderr, cfg, collabs); err != nil {
		fmt.Fprintf(os.Stderr, "refextract: aborting after invariant violation: %v\n", err)
		os.Exit(1)
	}
}

// optionalString turns an empty flag.String default into a nil override so
// config.Resolve falls through to the environment variable instead of
// clobbering it with an empty string.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// debugFlag implements flag.Value so --debug can be repeated to raise the
// verbosity level, matching the classic pipeline's -d/-dd/-ddd convention.
type debugFlag struct {
	level int
}

func (d *debugFlag) String() string {
	return fmt.Sprintf("%d", d.level)
}

func (d *debugFlag) Set(string) error {
	d.level++
	return nil
}

func (d *debugFlag) IsBoolFlag() bool { return true }
