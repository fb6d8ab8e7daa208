//go:build linux

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gradebox/internal/executor/sandbox/initproc"
	"gradebox/internal/executor/sandbox/spec"
)

const helperEnvKey = "EXECUTOR_SANDBOX_INIT"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnvKey) == "1" {
		initproc.Main()
		return
	}
	os.Exit(m.Run())
}

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	eng, err := NewEngine(Config{
		HelperPath:           exe,
		HelperEnv:            []string{helperEnvKey + "=1"},
		StdoutStderrMaxBytes: 1024,
	})
	if err != nil {
		t.Fatalf("new engine failed: %v", err)
	}
	return eng
}

func newRunSpec(t *testing.T, stdin string, cmd ...string) spec.RunSpec {
	t.Helper()
	dir := t.TempDir()
	stdinPath := filepath.Join(dir, "stdin.txt")
	if err := os.WriteFile(stdinPath, []byte(stdin), 0644); err != nil {
		t.Fatalf("write stdin failed: %v", err)
	}
	return spec.RunSpec{
		RunID:      "run-test",
		TaskID:     "case-0",
		WorkDir:    dir,
		Cmd:        cmd,
		StdinPath:  stdinPath,
		StdoutPath: filepath.Join(dir, "stdout.txt"),
		StderrPath: filepath.Join(dir, "stderr.txt"),
		Limits: spec.ResourceLimit{
			CPUTimeMs:  5000,
			WallTimeMs: 5000,
			OutputMB:   1,
			OpenFiles:  64,
		},
	}
}

func TestRunCapturesOutput(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := newRunSpec(t, "hello\n", "/bin/sh", "-c", "cat; echo oops 1>&2")

	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != 0 || res.TimedOut || res.Signal != "" {
		t.Fatalf("unexpected exit: %+v", res)
	}
	if res.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Fatalf("unexpected stderr: %q", res.Stderr)
	}
}

func TestRunReportsExitCode(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := newRunSpec(t, "", "/bin/sh", "-c", "exit 3")

	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestRunWallTimeout(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := newRunSpec(t, "", "/bin/sh", "-c", "sleep 5")
	runSpec.Limits.WallTimeMs = 200

	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if res.WallTimeMs >= 5000 {
		t.Fatalf("process was not killed early: %d ms", res.WallTimeMs)
	}
}

func TestRunReportsSignal(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := newRunSpec(t, "", "/bin/sh", "-c", "kill -9 $$")

	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Signal != "SIGKILL" || res.ExitCode != 137 {
		t.Fatalf("expected SIGKILL/137, got %q/%d", res.Signal, res.ExitCode)
	}
	if res.TimedOut {
		t.Fatalf("signal must not be reported as timeout")
	}
}

func TestRunMissingCommand(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := newRunSpec(t, "", "definitely-not-a-real-binary")

	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != initproc.ExitSetupFailed {
		t.Fatalf("expected exit code %d, got %d", initproc.ExitSetupFailed, res.ExitCode)
	}
	if !strings.Contains(res.Stderr, "resolve command") {
		t.Fatalf("expected helper error in stderr, got %q", res.Stderr)
	}
}

func TestRunTruncatesOutput(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := newRunSpec(t, "", "/bin/sh", "-c", "head -c 4096 /dev/zero | tr '\\0' a")

	res, err := eng.Run(context.Background(), runSpec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.HasSuffix(res.Stdout, truncatedSuffix) {
		t.Fatalf("expected truncated stdout, got %d bytes", len(res.Stdout))
	}
	if res.OutputKB != 4 {
		t.Fatalf("expected 4 KB output, got %d", res.OutputKB)
	}
}

func TestRunValidatesSpec(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Run(context.Background(), spec.RunSpec{WorkDir: "/tmp", Cmd: []string{"true"}}); err == nil {
		t.Fatalf("expected error for missing run id")
	}
}

func TestRunContextCancelled(t *testing.T) {
	eng := newTestEngine(t)
	runSpec := newRunSpec(t, "", "/bin/sh", "-c", "sleep 5")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := eng.Run(ctx, runSpec); err == nil {
		t.Fatalf("expected context error")
	}
}
