// Package result defines sandbox execution results and exit status mapping.
package result

// ExitStatus is the outcome class of one compile or run step.
type ExitStatus string

const (
	ExitSuccess          ExitStatus = "success"
	ExitCompilationError ExitStatus = "compilation_error"
	ExitTimeout          ExitStatus = "timeout"
	ExitRuntimeError     ExitStatus = "runtime_error"
)

// RunResult captures raw engine data for one process.
type RunResult struct {
	ExitCode   int
	Signal     string
	TimedOut   bool
	TimeMs     int64
	WallTimeMs int64
	MemoryKB   int64
	OutputKB   int64
	Stdout     string
	Stderr     string
}

// CompileResult contains compilation outcomes.
type CompileResult struct {
	OK       bool
	Skipped  bool
	TimedOut bool
	ExitCode int
	TimeMs   int64
	MemoryKB int64
	Error    string
}

// Outcome is the orchestrator-level result of running a program once.
type Outcome struct {
	Success    bool
	Stdout     string
	Stderr     string
	RuntimeMs  int64
	MemoryKB   int64
	ExitCode   int
	ExitStatus ExitStatus
}

// CompileFailure builds the outcome reported when the compile step fails.
func CompileFailure(res CompileResult) Outcome {
	return Outcome{
		Success:    false,
		Stderr:     res.Error,
		RuntimeMs:  res.TimeMs,
		MemoryKB:   res.MemoryKB,
		ExitCode:   res.ExitCode,
		ExitStatus: ExitCompilationError,
	}
}

// MapExitStatus classifies a finished process.
func MapExitStatus(res RunResult) ExitStatus {
	if res.TimedOut {
		return ExitTimeout
	}
	if res.ExitCode != 0 || res.Signal != "" {
		return ExitRuntimeError
	}
	return ExitSuccess
}
