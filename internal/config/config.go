// Package config resolves the extraction pipeline's runtime configuration:
// the four base directories and the per-run behavior flags, with the CLI
// flags from cmd/refextract taking precedence over environment variables,
// which in turn take precedence over the compiled-in defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/logger"
)

const (
	// AppName names the per-user config directory, following the
	// teacher's ~/.config/<AppName> convention.
	AppName = "arxiv-refextract"

	// EnvScratchRoot names the environment variable holding the root
	// directory under which per-item scratch workspaces are created.
	EnvScratchRoot = "REFEXTRACT_SCRATCH"
	// EnvFulltextBase names the environment variable holding the root
	// of the fulltext source tree (pbase).
	EnvFulltextBase = "REFEXTRACT_PBASE"
	// EnvOutputBase names the environment variable holding the root
	// under which .raw output files are written (tbase).
	EnvOutputBase = "REFEXTRACT_TBASE"
	// EnvToolchainBase names the environment variable holding the root
	// of the installed TeX toolchains (texbase).
	EnvToolchainBase = "REFEXTRACT_TEXBASE"

	// DefaultMinReferences is the default for Config.MinReferences. The
	// acceptance check in cleaner.Classify uses types.MinReferences and
	// does not consult Config.MinReferences.
	DefaultMinReferences = 4
	// DefaultCompileTimeoutSeconds bounds a single TeX/LaTeX compile.
	DefaultCompileTimeoutSeconds = 100
	// DefaultEpstopdfTimeoutSeconds bounds a single epstopdf conversion.
	DefaultEpstopdfTimeoutSeconds = 5
)

// Config is the resolved set of directories and flags one run of the
// pipeline operates under. It is built once by Resolve and then passed by
// value into the orchestrator and batch driver.
type Config struct {
	ScratchRoot    string
	FulltextBase   string
	OutputBase     string
	ToolchainBase  string
	Force          bool
	NoPDF          bool
	NoHarvest      bool
	SkipRefs       bool
	DebugLevel     int
	MinReferences  int
}

// defaultConfig returns a Config with the compiled-in defaults; every
// field that has no sensible default is left empty and must be supplied
// by an environment variable or CLI flag before use.
func defaultConfig() Config {
	return Config{
		ScratchRoot:   os.TempDir(),
		MinReferences: DefaultMinReferences,
	}
}

// Resolve builds a Config from the environment, following the order:
// compiled-in defaults, then environment variables, then the overrides
// passed by the caller (normally the parsed CLI flags). A zero-value
// field in overrides.* pointer is "not set" and leaves the lower layer
// in place.
func Resolve(overrides Overrides) (Config, error) {
	cfg := defaultConfig()

	if v := os.Getenv(EnvScratchRoot); v != "" {
		cfg.ScratchRoot = v
	}
	if v := os.Getenv(EnvFulltextBase); v != "" {
		cfg.FulltextBase = v
	}
	if v := os.Getenv(EnvOutputBase); v != "" {
		cfg.OutputBase = v
	}
	if v := os.Getenv(EnvToolchainBase); v != "" {
		cfg.ToolchainBase = v
	}

	overrides.apply(&cfg)

	if cfg.FulltextBase == "" {
		return Config{}, apperr.New(apperr.InputMalformed, "pbase is not set (--pbase or "+EnvFulltextBase+")")
	}
	if cfg.OutputBase == "" {
		return Config{}, apperr.New(apperr.InputMalformed, "tbase is not set (--tbase or "+EnvOutputBase+")")
	}

	logger.Info("configuration resolved",
		logger.String("pbase", cfg.FulltextBase),
		logger.String("tbase", cfg.OutputBase),
		logger.String("texbase", cfg.ToolchainBase),
		logger.String("scratch", cfg.ScratchRoot),
		logger.Bool("force", cfg.Force),
		logger.Bool("no_pdf", cfg.NoPDF),
		logger.Bool("no_harvest", cfg.NoHarvest),
		logger.Bool("skip_refs", cfg.SkipRefs),
		logger.Int("debug", cfg.DebugLevel),
	)

	return cfg, nil
}

// Overrides carries CLI-flag values on top of the environment. Pointer
// fields distinguish "flag not passed" (nil) from "flag passed as zero
// value" (non-nil pointing at the zero value).
type Overrides struct {
	PBase      *string
	TBase      *string
	TexBase    *string
	Force      *bool
	NoPDF      *bool
	NoHarvest  *bool
	SkipRefs   *bool
	DebugLevel *int
}

func (o Overrides) apply(cfg *Config) {
	if o.PBase != nil {
		cfg.FulltextBase = *o.PBase
	}
	if o.TBase != nil {
		cfg.OutputBase = *o.TBase
	}
	if o.TexBase != nil {
		cfg.ToolchainBase = *o.TexBase
	}
	if o.Force != nil {
		cfg.Force = *o.Force
	}
	if o.NoPDF != nil {
		cfg.NoPDF = *o.NoPDF
	}
	if o.NoHarvest != nil {
		cfg.NoHarvest = *o.NoHarvest
	}
	if o.SkipRefs != nil {
		cfg.SkipRefs = *o.SkipRefs
	}
	if o.DebugLevel != nil {
		cfg.DebugLevel = *o.DebugLevel
	}
}

// getConfigDir returns the per-user config directory, kept for parity
// with the rest of the corpus's config packages even though this
// pipeline's Config is env/flag driven; it is used by DumpDefaults for
// an optional on-disk record of the resolved configuration.
func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// DumpDefaults writes the resolved configuration to
// ~/.config/arxiv-refextract/last-run.json, for operators diagnosing why
// a batch run picked up directories they did not expect.
func DumpDefaults(cfg Config) error {
	dir, err := getConfigDir()
	if err != nil {
		return apperr.Wrap(apperr.OutputIOError, "failed to resolve config directory", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperr.Wrap(apperr.OutputIOError, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.OutputIOError, "failed to marshal configuration", err)
	}

	path := filepath.Join(dir, "last-run.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperr.Wrap(apperr.OutputIOError, "failed to write configuration dump", err)
	}
	return nil
}
