// Package batch drives the extraction engine over a stream of jobs read
// one per line from an input reader: path plus optional bibcode, accession
// number, and submission date. It is the thin loop around
// internal/orchestrator that the CLI entry point wires up to stdin/stdout.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"arxiv-refextract/internal/config"
	"arxiv-refextract/internal/logger"
	"arxiv-refextract/internal/orchestrator"
)

// Job is one parsed input line, before orchestrator.Run turns it into a
// types.ArxivItem. Bibcode, Accno and Subdate are zero-valued when the
// input line did not supply them.
type Job struct {
	Path    string
	Bibcode string
	Accno   string
	Subdate int
}

// ParseLine splits one whitespace-separated input line into a Job. A blank
// line or one that is only whitespace returns ok=false so the caller skips
// it without counting it as a failed item.
func ParseLine(line string) (Job, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Job{}, false
	}

	job := Job{Path: fields[0]}
	if len(fields) > 1 {
		job.Bibcode = fields[1]
	}
	if len(fields) > 2 {
		job.Accno = fields[2]
	}
	if len(fields) > 3 {
		if n, err := strconv.Atoi(fields[3]); err == nil {
			job.Subdate = n
		}
	}
	return job, true
}

// Summary tallies what a Run call did, for the caller to report or act on
// after every job in the input has been processed.
type Summary struct {
	Total   int
	Written int
	Failed  int
}

// Run reads one job per line from in, processes each one through
// orchestrator.Run, and writes "path\tout_path" to out for every job that
// produced output. Diagnostics for failed jobs go to diag with the item's
// raw path as a prefix. Run never stops early on a per-item failure; it
// only returns a non-nil error when the orchestrator reports an
// invariant-violation, which the caller should treat as fatal to the whole
// process.
func Run(ctx context.Context, in io.Reader, out, diag io.Writer, cfg config.Config, collabs orchestrator.Collaborators) (Summary, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var summary Summary
	for scanner.Scan() {
		job, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		summary.Total++

		res, err := orchestrator.Run(ctx, job.Path, job.Bibcode, job.Accno, job.Subdate, cfg, collabs)
		if err != nil {
			fmt.Fprintf(diag, "%s: fatal: %v\n", job.Path, err)
			return summary, err
		}

		if res.Err != nil {
			summary.Failed++
			fmt.Fprintf(diag, "%s: %v\n", job.Path, res.Err)
			continue
		}

		if res.Wrote() {
			summary.Written++
			fmt.Fprintf(out, "%s\t%s\n", job.Path, res.OutputPath)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(diag, "error reading input: %v\n", err)
	}

	logger.Info("batch run complete",
		logger.Int("total", summary.Total),
		logger.Int("written", summary.Written),
		logger.Int("failed", summary.Failed))
	fmt.Fprintf(diag, "%d of %d items failed\n", summary.Failed, summary.Total)

	return summary, nil
}
