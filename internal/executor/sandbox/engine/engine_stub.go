//go:build !linux

package engine

import (
	"context"
	"fmt"

	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/spec"
)

type stubEngine struct{}

func NewEngine(cfg Config) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	return result.RunResult{}, fmt.Errorf("sandbox engine is only supported on linux")
}

func (s *stubEngine) Kill(ctx context.Context, runID string) error {
	return nil
}

func (s *stubEngine) KillAll(ctx context.Context) error {
	return nil
}
