package subprocess

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func TestRun_CapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}

	res, err := Run(context.Background(), Spec{
		Path:    "/bin/sh",
		Args:    []string{"-c", "echo out; echo err 1>&2; exit 3"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if res.Stdout != "out\n" {
		t.Errorf("expected stdout %q, got %q", "out\n", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Errorf("expected stderr %q, got %q", "err\n", res.Stderr)
	}
	if res.TimedOut {
		t.Error("did not expect timeout")
	}
}

func TestRun_TimesOutAndKills(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}

	start := time.Now()
	res, err := Run(context.Background(), Spec{
		Path:    "/bin/sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut to be true")
	}
	if elapsed > 5*time.Second {
		t.Errorf("expected escalation to finish quickly, took %v", elapsed)
	}
}

func TestRun_SpawnErrorForMissingBinary(t *testing.T) {
	_, err := Run(context.Background(), Spec{
		Path:    "/nonexistent/definitely-not-a-binary",
		Timeout: time.Second,
	})
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
}
