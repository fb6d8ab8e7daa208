// Package runner implements the compile and run workflows on top of the sandbox engine.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"gradebox/internal/executor/language"
	"gradebox/internal/executor/sandbox/engine"
	"gradebox/internal/executor/sandbox/observer"
	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/spec"
	"gradebox/internal/executor/sandbox/workspace"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	compileTaskID     = "compile"
	compileStdoutName = "compile.out"
	compileLogName    = "compile.log"
)

// Options tunes limits shared by every process.
type Options struct {
	// Limits supplies stack, output and open-file caps; time, memory and
	// process caps come from the language.
	Limits          spec.ResourceLimit
	CompileOutputMB int64
	KeepWorkspaces  bool
	Metrics         observer.MetricsRecorder
}

// Runner prepares, compiles and runs programs in per-request workspaces.
type Runner struct {
	eng        engine.Engine
	workspaces *workspace.Manager
	opts       Options
	metrics    observer.MetricsRecorder
}

// Program is one prepared submission. It must be used by a single request.
type Program struct {
	Lang      language.Spec
	Workspace *workspace.Workspace
	seq       atomic.Int64
}

// NewRunner creates a runner with default options.
func NewRunner(eng engine.Engine, workspaces *workspace.Manager) *Runner {
	return NewRunnerWithOptions(eng, workspaces, Options{})
}

// NewRunnerWithOptions creates a runner with explicit limits and metrics hooks.
func NewRunnerWithOptions(eng engine.Engine, workspaces *workspace.Manager, opts Options) *Runner {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	if opts.CompileOutputMB <= 0 {
		opts.CompileOutputMB = 64
	}
	return &Runner{eng: eng, workspaces: workspaces, opts: opts, metrics: metrics}
}

// Prepare creates a workspace and writes the source under the language's file name.
func (r *Runner) Prepare(ctx context.Context, code string, lang language.Spec) (*Program, error) {
	ws, err := r.workspaces.Create(ctx)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace failed")
	}
	if _, err := ws.WriteFile(lang.SourceFile, []byte(code)); err != nil {
		_ = ws.Cleanup()
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "write source failed")
	}
	return &Program{Lang: lang, Workspace: ws}, nil
}

// Compile runs the compile step when the language has one.
func (r *Runner) Compile(ctx context.Context, prog *Program) (result.CompileResult, error) {
	if !prog.Lang.Compiled() {
		return result.CompileResult{OK: true, Skipped: true}, nil
	}
	ws := prog.Workspace
	cmd, err := prog.Lang.BuildCompileCommand(ws.Dir)
	if err != nil {
		return result.CompileResult{}, err
	}

	limits := mergeLimits(r.opts.Limits, prog.Lang.CompileLimits())
	limits.OutputMB = r.opts.CompileOutputMB
	runSpec := spec.RunSpec{
		RunID:      ws.ID,
		TaskID:     compileTaskID,
		WorkDir:    ws.Dir,
		Cmd:        cmd,
		Env:        prog.Lang.Env,
		StdoutPath: ws.Path(compileStdoutName),
		StderrPath: ws.Path(compileLogName),
		Limits:     limits,
	}

	runRes, err := r.eng.Run(ctx, runSpec)
	if err != nil {
		r.metrics.ObserveCompile(ctx, prog.Lang.ID, false, runRes.TimeMs, runRes.MemoryKB)
		return result.CompileResult{}, appErr.Wrapf(err, appErr.ExecutorSystemError, "compile step failed")
	}
	compileRes := result.CompileResult{
		OK:       runRes.ExitCode == 0 && !runRes.TimedOut && runRes.Signal == "",
		TimedOut: runRes.TimedOut,
		ExitCode: runRes.ExitCode,
		TimeMs:   runRes.WallTimeMs,
		MemoryKB: runRes.MemoryKB,
	}
	r.metrics.ObserveCompile(ctx, prog.Lang.ID, compileRes.OK, compileRes.TimeMs, compileRes.MemoryKB)
	if compileRes.OK {
		return compileRes, nil
	}

	if runRes.TimedOut {
		compileRes.Error = fmt.Sprintf("Compilation timed out after %d seconds", prog.Lang.CompileTimeoutSec)
	} else {
		compileRes.Error = compilerOutput(runRes)
	}
	logger.Info(ctx, "compilation failed",
		zap.String("language", prog.Lang.ID),
		zap.String("workspace", ws.ID),
		zap.Int("exit_code", runRes.ExitCode),
		zap.Bool("timed_out", runRes.TimedOut),
	)
	return compileRes, nil
}

// Run executes the compiled program once with stdin under timeout.
// A zero timeout uses the language default.
func (r *Runner) Run(ctx context.Context, prog *Program, stdin string, timeout time.Duration) (result.Outcome, error) {
	ws := prog.Workspace
	n := prog.seq.Add(1)
	taskID := fmt.Sprintf("case-%d", n)

	stdinPath, err := ws.WriteFile(fmt.Sprintf("stdin-%d.txt", n), []byte(ShapeStdin(stdin, prog.Lang.Compiled())))
	if err != nil {
		return result.Outcome{}, appErr.Wrapf(err, appErr.WorkspaceError, "write stdin failed")
	}
	cmd, err := prog.Lang.BuildRunCommand(ws.Dir)
	if err != nil {
		return result.Outcome{}, err
	}

	runSpec := spec.RunSpec{
		RunID:      ws.ID,
		TaskID:     taskID,
		WorkDir:    ws.Dir,
		Cmd:        cmd,
		Env:        prog.Lang.Env,
		StdinPath:  stdinPath,
		StdoutPath: ws.Path(fmt.Sprintf("stdout-%d.txt", n)),
		StderrPath: ws.Path(fmt.Sprintf("stderr-%d.txt", n)),
		Limits:     mergeLimits(r.opts.Limits, prog.Lang.RunLimits(timeout)),
	}

	runRes, err := r.eng.Run(ctx, runSpec)
	if err != nil {
		r.metrics.ObserveRun(ctx, prog.Lang.ID, "system_error", runRes.WallTimeMs, runRes.MemoryKB, runRes.OutputKB)
		return result.Outcome{}, appErr.Wrapf(err, appErr.ExecutorSystemError, "run step failed")
	}

	status := result.MapExitStatus(runRes)
	out := result.Outcome{
		Success:    status == result.ExitSuccess,
		Stdout:     runRes.Stdout,
		Stderr:     runRes.Stderr,
		RuntimeMs:  runRes.WallTimeMs,
		MemoryKB:   runRes.MemoryKB,
		ExitCode:   runRes.ExitCode,
		ExitStatus: status,
	}
	r.metrics.ObserveRun(ctx, prog.Lang.ID, string(status), runRes.WallTimeMs, runRes.MemoryKB, runRes.OutputKB)
	return out, nil
}

// Execute is the single-shot flow: prepare, compile, run once, clean up.
func (r *Runner) Execute(ctx context.Context, code string, lang language.Spec, stdin string, timeout time.Duration) (result.Outcome, error) {
	prog, err := r.Prepare(ctx, code, lang)
	if err != nil {
		return result.Outcome{}, err
	}
	defer r.Release(ctx, prog)

	compileRes, err := r.Compile(ctx, prog)
	if err != nil {
		return result.Outcome{}, err
	}
	if !compileRes.OK {
		return result.CompileFailure(compileRes), nil
	}
	return r.Run(ctx, prog, stdin, timeout)
}

// Release removes the program's workspace unless workspaces are kept for debugging.
func (r *Runner) Release(ctx context.Context, prog *Program) {
	if prog == nil || prog.Workspace == nil {
		return
	}
	if r.opts.KeepWorkspaces {
		logger.Info(ctx, "workspace kept", zap.String("dir", prog.Workspace.Dir))
		return
	}
	if err := prog.Workspace.Cleanup(); err != nil {
		logger.Warn(ctx, "workspace cleanup failed", zap.String("workspace", prog.Workspace.ID), zap.Error(err))
	}
}

// DescribeFailure renders a user-facing error for an unsuccessful outcome.
func DescribeFailure(out result.Outcome, timeout time.Duration) string {
	switch out.ExitStatus {
	case result.ExitSuccess:
		return ""
	case result.ExitTimeout:
		return fmt.Sprintf("Execution timed out after %s", formatSeconds(timeout))
	case result.ExitCompilationError:
		return out.Stderr
	}
	stderr := strings.TrimSpace(out.Stderr)
	if stderr != "" {
		return stderr
	}
	return fmt.Sprintf("Process exited with code %d", out.ExitCode)
}

func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int64(d/time.Second))
	}
	return fmt.Sprintf("%.1f seconds", d.Seconds())
}

func compilerOutput(res result.RunResult) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(res.Stderr); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Compiler exited with code %d", res.ExitCode)
	}
	return strings.Join(parts, "\n")
}

func mergeLimits(base, override spec.ResourceLimit) spec.ResourceLimit {
	if override.CPUTimeMs > 0 {
		base.CPUTimeMs = override.CPUTimeMs
	}
	if override.WallTimeMs > 0 {
		base.WallTimeMs = override.WallTimeMs
	}
	if override.MemoryMB > 0 {
		base.MemoryMB = override.MemoryMB
	}
	if override.StackMB > 0 {
		base.StackMB = override.StackMB
	}
	if override.OutputMB > 0 {
		base.OutputMB = override.OutputMB
	}
	if override.OpenFiles > 0 {
		base.OpenFiles = override.OpenFiles
	}
	if override.PIDs > 0 {
		base.PIDs = override.PIDs
	}
	return base
}
