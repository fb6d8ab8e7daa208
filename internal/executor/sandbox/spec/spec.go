// Package spec describes one sandboxed process and its resource limits.
package spec

// ResourceLimit describes hard limits applied to a spawned process.
// Zero means "not limited".
type ResourceLimit struct {
	CPUTimeMs  int64
	WallTimeMs int64
	MemoryMB   int64
	StackMB    int64
	OutputMB   int64
	OpenFiles  int64
	PIDs       int64
}

// RunSpec is everything the engine needs to start one process.
type RunSpec struct {
	// RunID groups every process started for one request workspace.
	RunID string
	// TaskID names the step inside the run ("compile", "case-3").
	TaskID     string
	WorkDir    string
	Cmd        []string
	Env        []string
	StdinPath  string
	StdoutPath string
	StderrPath string
	Limits     ResourceLimit
}
