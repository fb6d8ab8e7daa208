// Package scoring computes the weighted grade of a request.
package scoring

import (
	"math"

	"gradebox/internal/executor/harness"
	"gradebox/internal/executor/model"
)

// Summarize aggregates category reports. Runtime and memory cover every
// executed category; counts and score cover counted categories only.
func Summarize(reports ...harness.Report) model.ExecutionSummary {
	var summary model.ExecutionSummary
	counted := make([][]model.TestCaseResult, 0, len(reports))
	for _, r := range reports {
		summary.RuntimeMs += r.RuntimeMs
		summary.PeakMemoryKB = max(summary.PeakMemoryKB, r.PeakMemoryKB)
		if !r.Category.Counted() {
			continue
		}
		summary.PassedTestCases += r.Passed
		summary.TotalTestCases += len(r.Results)
		counted = append(counted, r.Results)
	}
	summary.ScorePercent = ScorePercent(counted...)
	return summary
}

// ScorePercent is 100 * passed weight / total weight, rounded to two decimals.
// It is 0 when there is no weight at all.
func ScorePercent(groups ...[]model.TestCaseResult) float64 {
	var passed, total int64
	for _, results := range groups {
		for _, r := range results {
			w := int64(r.Weight)
			if w <= 0 {
				w = 1
			}
			total += w
			if r.Passed() {
				passed += w
			}
		}
	}
	if total == 0 {
		return 0.0
	}
	return Round(100*float64(passed)/float64(total), 2)
}

// EmptySummary is reported for requests that never reached execution.
func EmptySummary(totalTestCases int) model.ExecutionSummary {
	return model.ExecutionSummary{TotalTestCases: totalTestCases}
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
