//go:build linux

package initproc

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/criyle/go-sandbox/pkg/rlimit"
	"golang.org/x/sys/unix"

	"gradebox/internal/executor/sandbox/spec"
)

// Main runs the helper and never returns on success.
func Main() {
	if err := run(os.Stdin); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(ExitSetupFailed)
	}
}

func run(in io.Reader) error {
	req, err := decodeRequest(in)
	if err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	runSpec := req.RunSpec

	if err := os.Chdir(runSpec.WorkDir); err != nil {
		return fmt.Errorf("chdir workdir: %w", err)
	}

	env := buildEnv(runSpec.Env)
	os.Clearenv()
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if err := os.Setenv(parts[0], parts[1]); err != nil {
			return fmt.Errorf("set env: %w", err)
		}
	}

	cmdPath, err := exec.LookPath(runSpec.Cmd[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}

	if err := redirectIO(runSpec); err != nil {
		return err
	}
	if err := applyRlimits(runSpec.Limits); err != nil {
		return err
	}
	return unix.Exec(cmdPath, runSpec.Cmd, env)
}

// applyRlimits confines the process right before exec. Core dumps are always disabled.
func applyRlimits(limits spec.ResourceLimit) error {
	for _, rl := range buildRLimits(limits).PrepareRLimit() {
		if err := syscall.Setrlimit(rl.Res, &rl.Rlim); err != nil {
			return fmt.Errorf("set rlimit %d: %w", rl.Res, err)
		}
	}
	if limits.PIDs > 0 {
		val := uint64(limits.PIDs)
		if err := unix.Setrlimit(unix.RLIMIT_NPROC, &unix.Rlimit{Cur: val, Max: val}); err != nil {
			return fmt.Errorf("set rlimit nproc: %w", err)
		}
	}
	return nil
}

func buildRLimits(limits spec.ResourceLimit) *rlimit.RLimits {
	rl := &rlimit.RLimits{DisableCore: true}
	if limits.CPUTimeMs > 0 {
		seconds := uint64((limits.CPUTimeMs + 999) / 1000)
		rl.CPU = seconds
		rl.CPUHard = seconds + 1
	}
	if limits.MemoryMB > 0 {
		rl.AddressSpace = uint64(limits.MemoryMB) << 20
	}
	if limits.OutputMB > 0 {
		rl.FileSize = uint64(limits.OutputMB) << 20
	}
	if limits.StackMB > 0 {
		rl.Stack = uint64(limits.StackMB) << 20
	}
	if limits.OpenFiles > 0 {
		rl.OpenFile = uint64(limits.OpenFiles)
	}
	return rl
}

func redirectIO(runSpec spec.RunSpec) error {
	stdinPath := runSpec.StdinPath
	if stdinPath == "" {
		stdinPath = os.DevNull
	}
	stdoutPath := runSpec.StdoutPath
	if stdoutPath == "" {
		stdoutPath = os.DevNull
	}
	stderrPath := runSpec.StderrPath
	if stderrPath == "" {
		stderrPath = os.DevNull
	}
	stdinFile, err := os.Open(stdinPath)
	if err != nil {
		return fmt.Errorf("open stdin: %w", err)
	}
	stdoutFile, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stdout: %w", err)
	}
	stderrFile, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open stderr: %w", err)
	}
	if err := unix.Dup2(int(stdinFile.Fd()), int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("dup stdin: %w", err)
	}
	if err := unix.Dup2(int(stdoutFile.Fd()), int(os.Stdout.Fd())); err != nil {
		return fmt.Errorf("dup stdout: %w", err)
	}
	if err := unix.Dup2(int(stderrFile.Fd()), int(os.Stderr.Fd())); err != nil {
		return fmt.Errorf("dup stderr: %w", err)
	}
	_ = stdinFile.Close()
	_ = stdoutFile.Close()
	_ = stderrFile.Close()
	return nil
}
