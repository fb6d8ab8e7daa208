// Package harness drives test case categories through the runner.
package harness

import (
	"context"
	"strings"
	"time"

	"gradebox/internal/executor/masking"
	"gradebox/internal/executor/model"
	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/runner"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// ProgramRunner runs a prepared program once.
type ProgramRunner interface {
	Run(ctx context.Context, prog *runner.Program, stdin string, timeout time.Duration) (result.Outcome, error)
}

// Report is the outcome of one category.
type Report struct {
	Category     model.Category
	Results      []model.TestCaseResult
	Passed       int
	RuntimeMs    int64
	PeakMemoryKB int64
}

// Harness runs test cases sequentially and masks each result once.
type Harness struct {
	runner ProgramRunner
	policy *masking.Policy
}

// New creates a harness.
func New(r ProgramRunner, policy *masking.Policy) *Harness {
	if policy == nil {
		policy = masking.NewPolicy()
	}
	return &Harness{runner: r, policy: policy}
}

// RunCategory runs cases in order. Timeouts and runtime errors fail only their
// own case; a host-side error aborts the category.
func (h *Harness) RunCategory(ctx context.Context, prog *runner.Program, cases []model.TestCase, category model.Category, timeout time.Duration) (Report, error) {
	report := Report{
		Category: category,
		Results:  make([]model.TestCaseResult, 0, len(cases)),
	}
	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out, err := h.runner.Run(ctx, prog, tc.Input, timeout)
		if err != nil {
			logger.Error(ctx, "test case aborted",
				zap.String("category", string(category)),
				zap.Int("index", i),
				zap.Error(err),
			)
			return report, err
		}

		res := Grade(tc, out, timeout)
		if res.Passed() {
			report.Passed++
		}
		report.RuntimeMs += res.RuntimeMs
		report.PeakMemoryKB = max(report.PeakMemoryKB, res.MemoryKB)

		h.policy.Apply(category, &res)
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// Grade builds the unmasked result of one case. A case passes when the program
// succeeded and its trimmed output equals the trimmed expectation.
func Grade(tc model.TestCase, out result.Outcome, timeout time.Duration) model.TestCaseResult {
	res := model.TestCaseResult{
		Input:           tc.Input,
		ExpectedOutput:  tc.ExpectedOutput,
		ActualOutput:    strings.TrimSpace(out.Stdout),
		Status:          model.StatusFailed,
		ExecutionStatus: string(out.ExitStatus),
		RuntimeMs:       out.RuntimeMs,
		MemoryKB:        out.MemoryKB,
		Weight:          tc.EffectiveWeight(),
	}
	if out.Success && res.ActualOutput == strings.TrimSpace(tc.ExpectedOutput) {
		res.Status = model.StatusPassed
	}
	res.Error = runner.DescribeFailure(out, timeout)
	return res
}
