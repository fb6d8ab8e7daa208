package output

import (
	"bytes"
	"strings"
	"testing"

	"gradebox/internal/executor/model"
)

func TestExecute(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Execute(model.ExecuteResponse{
		Status:        model.StatusRuntimeError,
		Error:         "Traceback\nZeroDivisionError",
		ExecutionTime: 12,
		MemoryUsage:   900,
	})
	want := "RUNTIME_ERROR  12ms  900KB\nstderr:\n  Traceback\n  ZeroDivisionError\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestTests(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Tests(model.ExecuteWithTestsResponse{
		ExecutionResult: model.ExecuteResponse{Status: model.StatusFailed},
		TestResults: []model.SimpleTestResult{
			{Passed: true, Status: "success", Weight: 1},
			{Passed: false, Status: "success", ExpectedOutput: "9", ActualOutput: "8", Weight: 2},
		},
		TotalPassed: 1,
		TotalTests:  2,
	})
	out := buf.String()
	for _, want := range []string{"#1 PASS", "#2 FAIL", `expected: "9"`, `actual:   "8"`, "FAILED 1/2 passed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestGradeHidesMaskedDetails(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Grade(model.PlagiarismExecutionResponse{
		Status:   model.StatusFailed,
		Language: "python",
		TestCasesAdvanced: []model.TestCaseResult{
			{Category: model.CategoryAdvanced, Status: model.StatusFailed, Input: "12***4#abcd", ExecutionStatus: "success", Scoring: model.ScoringCounted},
		},
		ExecutionSummary: model.ExecutionSummary{TotalTestCases: 1, ScorePercent: 0},
		PlagiarismReport: model.PlagiarismReport{
			Flagged:       true,
			MaxSimilarity: 0.93,
			Matches:       []model.PlagiarismMatch{{UserID: "u1", SubmissionID: "s9", SimilarityScore: 0.93}},
		},
	})
	out := buf.String()
	for _, want := range []string{"FAILED  language python", "advanced:", "#1 FAIL", "0/1 passed, score 0.00%", "FLAGGED max similarity 0.9300", "u1/s9 0.9300"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "12***4#abcd") {
		t.Fatalf("advanced inputs are not echoed")
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, true).JSON(model.PlagiarismCheckResponse{SimilarityScore: 1, Flagged: true}, false); err != nil {
		t.Fatalf("json failed: %v", err)
	}
	if buf.String() != "{\"similarity_score\":1,\"flagged\":true}\n" {
		t.Fatalf("unexpected json: %q", buf.String())
	}
}
