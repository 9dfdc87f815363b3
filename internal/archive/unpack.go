// Package archive unpacks one copied source file into the files the
// Main-File Finder will score. Dispatch is by file extension only; the
// pipeline never sniffs magic bytes, matching the classic extractor's
// behavior of trusting the suffix the bibcode lookup already classified.
// Actual decompression/extraction shells out to the system's tar/gunzip
// binaries through the Subprocess Runner, the same seam Compile-and-Extract
// uses for the TeX toolchain.
package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/logger"
	"arxiv-refextract/internal/subprocess"
)

// unpackTimeout bounds a single tar/gunzip invocation; archive extraction
// is local disk I/O, so a generous fixed budget is enough to catch a
// wedged or adversarial archive without needing a per-call override.
const unpackTimeout = 30 * time.Second

// Unpack expands srcPath (already copied into the workspace) in place and
// returns the list of regular files it produced, relative to dir. suffix
// is the ArxivItem's classified suffix, which selects the dispatch branch;
// it is not re-derived from srcPath's own extension since the two can
// legitimately differ (e.g. a suffix of ".gz" on a file copied without
// its original name).
func Unpack(dir, srcPath, suffix string) ([]string, error) {
	switch suffix {
	case ".tar.gz", ".tgz":
		return unpackTarGz(dir, srcPath)
	case ".tar":
		return unpackTar(dir, srcPath)
	case ".tex.gz", ".gz":
		return unpackGunzip(dir, srcPath)
	case ".tex":
		return []string{filepath.Base(srcPath)}, nil
	default:
		return renameToTex(dir, srcPath)
	}
}

func unpackTarGz(dir, srcPath string) ([]string, error) {
	if err := runTar(dir, []string{"-xzf", srcPath, "-C", dir}); err != nil {
		return nil, err
	}
	return listExtracted(dir, srcPath)
}

func unpackTar(dir, srcPath string) ([]string, error) {
	if err := runTar(dir, []string{"-xf", srcPath, "-C", dir}); err != nil {
		return nil, err
	}
	return listExtracted(dir, srcPath)
}

// runTar invokes the tar binary via the Subprocess Runner and turns a
// spawn failure or a non-zero exit status into apperr.UnpackFailed, per
// the classic pipeline's "UnpackError on non-zero subprocess status".
func runTar(dir string, args []string) error {
	res, err := subprocess.Run(context.Background(), subprocess.Spec{
		Path:    "tar",
		Args:    args,
		Dir:     dir,
		Timeout: unpackTimeout,
	})
	if err != nil {
		return apperr.Wrap(apperr.UnpackFailed, "failed to run tar", err)
	}
	if res.ExitCode != 0 {
		return apperr.Newf(apperr.UnpackFailed, "tar exited with status %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// listExtracted walks dir after a tar extraction and returns the basenames
// of every regular file it produced, flattening anything tar placed in a
// subdirectory up into dir itself (the Main-File Finder only ever scores
// files directly inside the workspace root) and excluding the archive
// file srcPath itself. Fails with UnpackFailed if extraction produced no
// files, matching the classic pipeline's empty-result check.
func listExtracted(dir, srcPath string) ([]string, error) {
	excludeName := filepath.Base(srcPath)
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == excludeName {
			return nil
		}
		if filepath.Dir(path) != dir {
			dst := filepath.Join(dir, name)
			if _, statErr := os.Stat(dst); statErr != nil {
				if renameErr := os.Rename(path, dst); renameErr != nil {
					return renameErr
				}
			}
		}
		files = append(files, name)
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.UnpackFailed, "failed to enumerate extracted files", err)
	}
	if len(files) == 0 {
		return nil, apperr.New(apperr.UnpackFailed, "archive produced no files")
	}
	return files, nil
}

// unpackGunzip decompresses srcPath in place and strips the trailing .gz
// from its name, covering both ".tex.gz" (single file, gzip-wrapped) and
// the ambiguous ".gz" suffix which the classic pipeline also treats as a
// single gzip-wrapped TeX source.
func unpackGunzip(dir, srcPath string) ([]string, error) {
	res, err := subprocess.Run(context.Background(), subprocess.Spec{
		Path:    "gunzip",
		Args:    []string{"-c", srcPath},
		Dir:     dir,
		Timeout: unpackTimeout,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.UnpackFailed, "failed to run gunzip", err)
	}
	if res.ExitCode != 0 {
		return nil, apperr.Newf(apperr.UnpackFailed, "gunzip exited with status %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	if len(res.Stdout) == 0 {
		return nil, apperr.New(apperr.UnpackFailed, "decompressed file is empty")
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), ".gz")
	if !strings.HasSuffix(base, ".tex") {
		base += ".tex"
	}
	dst := filepath.Join(dir, base)

	if err := os.WriteFile(dst, []byte(res.Stdout), 0644); err != nil {
		return nil, apperr.Wrap(apperr.UnpackFailed, "failed to write decompressed file", err)
	}

	logger.Debug("gunzip extracted single source file", logger.String("file", base))
	return []string{base}, nil
}

// renameToTex handles any other suffix (notably no extension at all) by
// treating the file as a single TeX source and renaming it with a .tex
// extension so the Main-File Finder can recognize it. No archive tool is
// involved, so this stays a plain filesystem rename.
func renameToTex(dir, srcPath string) ([]string, error) {
	base := filepath.Base(srcPath) + ".tex"
	dst := filepath.Join(dir, base)

	if err := os.Rename(srcPath, dst); err != nil {
		return nil, apperr.Wrap(apperr.UnpackFailed, "failed to rename source to .tex", err)
	}
	return []string{base}, nil
}
