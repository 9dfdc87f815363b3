// Package subprocess runs external tools (TeX engines, dvitype, pdftotext,
// epstopdf) with a hard timeout and guaranteed cleanup of the process tree
// it spawns. Every blocking external call in the pipeline goes through
// Run so the timeout and kill-escalation policy lives in exactly one
// place.
package subprocess

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"arxiv-refextract/internal/apperr"
	"arxiv-refextract/internal/logger"
)

// Result carries the captured output and exit status of a finished run.
// Stdout/Stderr are always populated even on a non-zero exit, since the
// compiler stage needs the log text regardless of exit status.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Spec describes one subprocess invocation.
type Spec struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment; nil means inherit only
	Timeout time.Duration
}

// escalationDelay is how long Run waits between each signal in the
// TERM -> HUP -> KILL escalation before trying the next one.
const escalationDelay = 500 * time.Millisecond

// Run executes spec.Path with spec.Args, waiting up to spec.Timeout before
// killing the process group. It never returns a non-nil error solely
// because the child exited non-zero: callers that need exit status check
// Result.ExitCode. A timeout is not an error either: the process group is
// killed and Run returns Result.TimedOut=true with ExitCode -1. A non-nil
// error means the process could not be spawned or could not be waited
// on; it carries apperr.InternalInvariantViolated.
func Run(ctx context.Context, spec Spec) (Result, error) {
	if spec.Timeout <= 0 {
		spec.Timeout = 100 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, apperr.Wrap(apperr.InternalInvariantViolated, "failed to spawn subprocess", err)
	}

	waitErr := waitWithEscalation(runCtx, cmd, spec.Timeout)
	duration := time.Since(start)

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		logger.Warn("subprocess timed out",
			logger.String("path", spec.Path),
			logger.String("duration", duration.String()))
		return res, nil
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, apperr.Wrap(apperr.InternalInvariantViolated, "subprocess wait failed", waitErr)
	}

	return res, nil
}

// waitWithEscalation waits for cmd to exit. If the context deadline fires
// first, it sends TERM, then HUP, then KILL to the whole process group,
// each separated by escalationDelay, until the process tree is gone.
func waitWithEscalation(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	killProcessGroup(cmd, signalTerm)
	select {
	case <-done:
		return nil
	case <-time.After(escalationDelay):
	}

	killProcessGroup(cmd, signalHup)
	select {
	case <-done:
		return nil
	case <-time.After(escalationDelay):
	}

	killProcessGroup(cmd, signalKill)
	<-done
	return nil
}
