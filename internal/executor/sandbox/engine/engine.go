// Package engine spawns sandboxed processes through the sandbox-init helper.
package engine

import (
	"context"

	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/spec"
)

// Engine executes a RunSpec inside a sandbox.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
	// Kill terminates every live process started for runID.
	Kill(ctx context.Context, runID string) error
	// KillAll terminates every live process; used on shutdown.
	KillAll(ctx context.Context) error
}
