//go:build linux

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"gradebox/internal/executor/sandbox/initproc"
	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/spec"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	defaultStdoutStderrMaxBytes int64 = 64 * 1024
	truncatedSuffix                   = "\n...[truncated]"
)

type linuxEngine struct {
	cfg       Config
	registry  map[string]map[int]struct{}
	registryM sync.Mutex
}

// NewEngine creates a Linux sandbox engine.
func NewEngine(cfg Config) (Engine, error) {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.HelperPath == "" {
		cfg.HelperPath = "sandbox-init"
	}
	return &linuxEngine{
		cfg:      cfg,
		registry: make(map[string]map[int]struct{}),
	}, nil
}

func (e *linuxEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}

	stdinPipe := jsonToPipe(initproc.Request{RunSpec: runSpec})
	defer stdinPipe.Close()

	cmd := exec.Command(e.cfg.HelperPath, e.cfg.HelperArgs...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if len(e.cfg.HelperEnv) > 0 {
		cmd.Env = append(os.Environ(), e.cfg.HelperEnv...)
	}
	cmd.Stdin = stdinPipe

	var helperStdout bytes.Buffer
	var helperStderr bytes.Buffer
	cmd.Stdout = &helperStdout
	cmd.Stderr = &helperStderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.RunResult{}, fmt.Errorf("start helper: %w", err)
	}
	pid := cmd.Process.Pid
	e.register(runSpec.RunID, pid)
	defer e.unregister(runSpec.RunID, pid)

	var timedOut atomic.Bool
	var cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if wallLimit := durationFromMs(runSpec.Limits.WallTimeMs); wallLimit > 0 {
			timer := time.NewTimer(wallLimit)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			killProcessGroup(pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	// Reap anything the program left behind in its group.
	killProcessGroup(pid)

	if cancelled.Load() && !timedOut.Load() {
		return result.RunResult{}, ctx.Err()
	}

	runResult := result.RunResult{
		ExitCode:   exitCodeFromErr(waitErr, cmd.ProcessState),
		TimedOut:   timedOut.Load(),
		TimeMs:     cpuTimeMs(cmd.ProcessState),
		WallTimeMs: time.Since(start).Milliseconds(),
		MemoryKB:   memoryPeakKB(cmd.ProcessState),
		OutputKB:   fileSizeKB(runSpec.StdoutPath),
		Stdout:     readLimitedFile(runSpec.StdoutPath, e.cfg.StdoutStderrMaxBytes),
		Stderr:     readLimitedFile(runSpec.StderrPath, e.cfg.StdoutStderrMaxBytes),
	}
	if sig, ok := signalFromState(cmd.ProcessState); ok {
		runResult.Signal = unix.SignalName(sig)
		runResult.ExitCode = 128 + int(sig)
		if sig == syscall.SIGXCPU {
			runResult.TimedOut = true
		}
	}

	if runResult.ExitCode == initproc.ExitSetupFailed && helperStderr.Len() > 0 {
		logger.Warn(ctx, "sandbox helper failed",
			zap.String("run_id", runSpec.RunID),
			zap.String("task_id", runSpec.TaskID),
			zap.String("stderr", helperStderr.String()),
		)
		runResult.Stderr = joinNonEmpty(runResult.Stderr, strings.TrimSpace(helperStderr.String()))
	}
	return runResult, nil
}

func (e *linuxEngine) Kill(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	for _, pid := range e.snapshot(runID) {
		killProcessGroup(pid)
	}
	return nil
}

func (e *linuxEngine) KillAll(ctx context.Context) error {
	e.registryM.Lock()
	pids := make([]int, 0)
	for _, group := range e.registry {
		for pid := range group {
			pids = append(pids, pid)
		}
	}
	e.registryM.Unlock()
	for _, pid := range pids {
		killProcessGroup(pid)
	}
	if len(pids) > 0 {
		logger.Info(ctx, "killed live sandbox processes", zap.Int("count", len(pids)))
	}
	return nil
}

func (e *linuxEngine) register(runID string, pid int) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	group, ok := e.registry[runID]
	if !ok {
		group = make(map[int]struct{})
		e.registry[runID] = group
	}
	group[pid] = struct{}{}
}

func (e *linuxEngine) unregister(runID string, pid int) {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	group := e.registry[runID]
	delete(group, pid)
	if len(group) == 0 {
		delete(e.registry, runID)
	}
}

func (e *linuxEngine) snapshot(runID string) []int {
	e.registryM.Lock()
	defer e.registryM.Unlock()
	out := make([]int, 0, len(e.registry[runID]))
	for pid := range e.registry[runID] {
		out = append(out, pid)
	}
	return out
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if runSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if len(runSpec.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	return nil
}

func jsonToPipe(req initproc.Request) io.ReadCloser {
	reader, writer := io.Pipe()
	go func() {
		err := initproc.Encode(writer, req)
		_ = writer.CloseWithError(err)
	}()
	return reader
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func signalFromState(state *os.ProcessState) (syscall.Signal, bool) {
	if state == nil {
		return 0, false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return 0, false
	}
	return status.Signal(), true
}

func cpuTimeMs(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	return (state.UserTime() + state.SystemTime()).Milliseconds()
}

// memoryPeakKB reports ru_maxrss, which Linux already expresses in KB.
func memoryPeakKB(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
		return usage.Maxrss
	}
	return 0
}

func fileSizeKB(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return (info.Size() + 1023) / 1024
}

func readLimitedFile(path string, limit int64) string {
	if path == "" {
		return ""
	}
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return ""
	}
	if int64(len(data)) > limit {
		return string(data[:limit]) + truncatedSuffix
	}
	return string(data)
}

func durationFromMs(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}
