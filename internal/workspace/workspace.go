// Package workspace manages the per-item scratch directory the extraction
// engine unpacks a source archive into and compiles from. Every item gets
// a fresh directory; a stale one left behind by a prior run is destroyed
// before a new one is created, and the directory is removed again on
// cleanup unless the caller asked to keep it for debugging.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/logger"
	"arxiv-refextract/internal/types"
)

// New allocates a fresh scratch directory under root, named with both the
// current process id and a random UUID so that concurrent batch-driver
// processes sharing the same scratch root never collide, even if their
// clocks or pids coincide.
func New(root string, keepOnExit bool) (*types.Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}

	name := fmt.Sprintf("refextract-%d-%s", os.Getpid(), uuid.NewString())
	dir := filepath.Join(root, name)

	if err := destroyIfExists(dir); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperr.Wrap(apperr.InternalInvariantViolated, "failed to create scratch directory", err)
	}

	logger.Debug("workspace created", logger.Workspace(dir))
	return &types.Workspace{RootDir: dir, KeepOnExit: keepOnExit}, nil
}

// destroyIfExists removes dir if it already exists, covering the case
// where a prior crashed run left a same-named directory behind.
func destroyIfExists(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		logger.Warn("destroying stale scratch directory", logger.Workspace(dir))
		if err := os.RemoveAll(dir); err != nil {
			return apperr.Wrap(apperr.InternalInvariantViolated, "failed to remove stale scratch directory", err)
		}
	}
	return nil
}

// Cleanup removes the workspace's directory unless KeepOnExit is set, in
// which case it is left on disk for post-mortem inspection (the engine's
// debug>1 mode).
func Cleanup(ws *types.Workspace) {
	if ws == nil {
		return
	}
	if ws.KeepOnExit {
		logger.Info("retaining scratch directory for debugging", logger.Workspace(ws.RootDir))
		return
	}
	if err := os.RemoveAll(ws.RootDir); err != nil {
		logger.Warn("failed to remove scratch directory", logger.Workspace(ws.RootDir), logger.Err(err))
	}
}

// Populate copies the named source file into the workspace root,
// returning the path it was copied to. The main-file finder and archive
// unpacker both act on this copy so the original input tree is never
// mutated.
func Populate(ws *types.Workspace, srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", apperr.Wrap(apperr.SourceMissing, "failed to read source file", err)
	}

	dst := filepath.Join(ws.RootDir, filepath.Base(srcPath))
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", apperr.Wrap(apperr.InternalInvariantViolated, "failed to populate workspace", err)
	}

	logger.Debug("workspace populated",
		logger.String("file", dst), logger.String("size", humanize.Bytes(uint64(len(data)))))
	return dst, nil
}
