package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	commonmw "gradebox/internal/common/http/middleware"
	"gradebox/internal/executor/language"
	"gradebox/internal/executor/model"
	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/runner"
	"gradebox/internal/executor/security"
	"gradebox/internal/executor/service"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const testBodyLimit = 256 << 10

type echoExecutor struct{}

func (echoExecutor) Prepare(ctx context.Context, code string, lang language.Spec) (*runner.Program, error) {
	return &runner.Program{Lang: lang}, nil
}

func (echoExecutor) Compile(ctx context.Context, prog *runner.Program) (result.CompileResult, error) {
	return result.CompileResult{OK: true, Skipped: true}, nil
}

func (echoExecutor) Run(ctx context.Context, prog *runner.Program, stdin string, timeout time.Duration) (result.Outcome, error) {
	return result.Outcome{Success: true, Stdout: stdin + "\n", RuntimeMs: 3, MemoryKB: 64, ExitStatus: result.ExitSuccess}, nil
}

func (echoExecutor) Release(ctx context.Context, prog *runner.Program) {}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, err := service.NewService(service.Config{
		Registry:  language.NewDefaultRegistry(),
		Validator: security.NewValidator(),
		Executor:  echoExecutor{},
		PoolSize:  1,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	router := gin.New()
	router.Use(commonmw.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.BodyLimit(testBodyLimit))
	NewExecutorController(svc).Register(router)
	return router
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response failed: %v (%s)", err, rec.Body.String())
	}
}

func TestExecuteEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/execute", map[string]interface{}{
		"code":       "print(input())",
		"language":   "python",
		"input_data": "hello",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.ExecuteResponse
	decode(t, rec, &resp)
	if !resp.Success || resp.Output != "hello\n" || resp.Status != model.StatusSuccess || resp.ExecutionTime != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("trace id header missing")
	}
}

func TestExecuteEndpointErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   interface{}
		status int
		code   appErr.ErrorCode
	}{
		{name: "malformed json", body: "{not json", status: http.StatusBadRequest, code: appErr.InvalidParams},
		{name: "missing code", body: map[string]string{"language": "python"}, status: http.StatusBadRequest, code: appErr.ValidationFailed},
		{name: "unsupported language", body: map[string]string{"code": "x", "language": "brainfuck"}, status: http.StatusBadRequest, code: appErr.LanguageNotSupported},
	}
	router := newTestRouter(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/execute", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
			}
			var body response.ErrorBody
			decode(t, rec, &body)
			if body.Status != response.StatusError || body.Code != tc.code || body.Error == "" || body.TraceID == "" {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestEndpointsRejectOversizedBody(t *testing.T) {
	router := newTestRouter(t)
	peers := []model.PeerSubmission{{UserID: "u", SubmissionID: "s", Code: strings.Repeat("x", testBodyLimit)}}
	bodies := map[string]interface{}{
		"/execute": model.ExecuteRequest{Code: "print(1)", Language: "python", InputData: strings.Repeat("1", testBodyLimit)},
		"/execute-code-with-plagiarism-checks": model.PlagiarismExecutionRequest{
			Code:            "print(1)",
			Language:        "python",
			TestCasesBasic:  []model.TestCase{{Input: "1", ExpectedOutput: "1"}},
			PeerSubmissions: peers,
		},
	}
	for path, body := range bodies {
		t.Run(path, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, path, body)
			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
			}
			var resp response.ErrorBody
			decode(t, rec, &resp)
			if resp.Code != appErr.RequestTooLarge || !strings.Contains(resp.Error, "exceeds") {
				t.Fatalf("unexpected error body: %+v", resp)
			}
		})
	}
}

func TestExecuteWithPlagiarismEndpointOversizedPeer(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/execute-code-with-plagiarism-checks", model.PlagiarismExecutionRequest{
		Code:            "print(input())",
		Language:        "python",
		TestCasesBasic:  []model.TestCase{{Input: "1", ExpectedOutput: "1"}},
		PeerSubmissions: []model.PeerSubmission{{UserID: "u", SubmissionID: "s", Code: strings.Repeat("x", 65<<10)}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp response.ErrorBody
	decode(t, rec, &resp)
	if resp.Code != appErr.CodeTooLarge {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestExecuteEndpointSecurityViolation(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/execute", map[string]string{
		"code":     "const fs = require('fs');",
		"language": "javascript",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp model.ExecuteResponse
	decode(t, rec, &resp)
	if resp.Success || resp.Status != model.StatusError || resp.Error != "Forbidden pattern detected: require(" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExecuteWithTestsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/execute-with-tests", model.ExecuteWithTestsRequest{
		Code:     "print(input())",
		Language: "python",
		TestCases: []model.SimpleTestCase{
			{InputData: "a", ExpectedOutput: "a"},
			{InputData: "b", ExpectedOutput: "c"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.ExecuteWithTestsResponse
	decode(t, rec, &resp)
	if resp.TotalPassed != 1 || resp.TotalTests != 2 || resp.ExecutionResult.Status != model.StatusFailed {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExecuteWithPlagiarismEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/execute-code-with-plagiarism-checks", model.PlagiarismExecutionRequest{
		Code:              "print(input())",
		Language:          "python",
		TestCasesBasic:    []model.TestCase{{Input: "1", ExpectedOutput: "1"}},
		TestCasesAdvanced: []model.TestCase{{Input: "22", ExpectedOutput: "22"}},
		TestCasesCustom:   []model.TestCase{{Input: "3", ExpectedOutput: "3"}},
		PeerSubmissions:   []model.PeerSubmission{{UserID: "u", SubmissionID: "s", Code: "print(input())"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var raw map[string]json.RawMessage
	decode(t, rec, &raw)
	for _, key := range []string{"status", "language", "test_cases_basic", "test_cases_advanced", "test_cases_custom", "execution_summary", "plagiarism_report"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing key %q in %s", key, rec.Body.String())
		}
	}
	if _, ok := raw["error"]; ok {
		t.Fatalf("error must be omitted on success")
	}
	var resp model.PlagiarismExecutionResponse
	decode(t, rec, &resp)
	if resp.Status != model.StatusSuccess || resp.ExecutionSummary.ScorePercent != 100 || !resp.PlagiarismReport.Flagged {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPlagiarismCheckEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/plagiarism-check", map[string]string{"code1": "abcd", "code2": "bcde"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp model.PlagiarismCheckResponse
	decode(t, rec, &resp)
	if resp.SimilarityScore != 0.75 || resp.Flagged {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSupportedLanguagesEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/supported-languages", nil)
	var resp model.SupportedLanguagesResponse
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || len(resp.Languages) != 5 || resp.Languages[0].ID != "python" {
		t.Fatalf("unexpected response %d: %+v", rec.Code, resp)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	var resp model.HealthResponse
	decode(t, rec, &resp)
	if rec.Code != http.StatusOK || resp.Status != "healthy" || resp.Service != "executor" {
		t.Fatalf("unexpected response %d: %+v", rec.Code, resp)
	}
}
