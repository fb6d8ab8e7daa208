// Package model defines the request and response bodies of the executor API.
package model

// Category names one group of test cases.
type Category string

const (
	CategoryBasic    Category = "basic"
	CategoryAdvanced Category = "advanced"
	CategoryCustom   Category = "custom"
)

// Counted reports whether results of the category contribute to the score.
func (c Category) Counted() bool {
	return c == CategoryBasic || c == CategoryAdvanced
}

// Response statuses.
const (
	StatusSuccess          = "success"
	StatusFailed           = "failed"
	StatusError            = "error"
	StatusPassed           = "passed"
	StatusCompilationError = "compilation_error"
	StatusTimeout          = "timeout"
	StatusRuntimeError     = "runtime_error"
)

// Scoring markers on a test case result.
const (
	ScoringCounted = "counted"
	ScoringIgnored = "ignored"
)

// TestCase is one graded input/output pair.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Weight         int    `json:"weight"`
}

// EffectiveWeight treats a missing weight as 1.
func (tc TestCase) EffectiveWeight() int {
	if tc.Weight <= 0 {
		return 1
	}
	return tc.Weight
}

// PeerSubmission is another learner's code to compare against.
type PeerSubmission struct {
	UserID       string `json:"user_id"`
	SubmissionID string `json:"submission_id"`
	Code         string `json:"code"`
}

// TestCaseResult is the graded outcome of one test case, masked per category.
type TestCaseResult struct {
	Category        Category `json:"category"`
	Input           string   `json:"input"`
	ExpectedOutput  string   `json:"expected_output"`
	ActualOutput    string   `json:"actual_output"`
	Status          string   `json:"status"`
	ExecutionStatus string   `json:"execution_status"`
	RuntimeMs       int64    `json:"runtime_ms"`
	MemoryKB        int64    `json:"memory_kb"`
	Weight          int      `json:"weight"`
	Scoring         string   `json:"scoring"`
	Error           string   `json:"error,omitempty"`
}

// Passed reports whether the case passed.
func (r TestCaseResult) Passed() bool {
	return r.Status == StatusPassed
}

// ExecutionSummary aggregates one grading request.
type ExecutionSummary struct {
	RuntimeMs       int64   `json:"runtime_ms"`
	PeakMemoryKB    int64   `json:"peak_memory_kb"`
	PassedTestCases int     `json:"passed_test_cases"`
	TotalTestCases  int     `json:"total_test_cases"`
	ScorePercent    float64 `json:"score_percent"`
}

// PlagiarismMatch is one peer above the minimum similarity.
type PlagiarismMatch struct {
	UserID          string  `json:"user_id"`
	SubmissionID    string  `json:"submission_id"`
	SimilarityScore float64 `json:"similarity_score"`
}

// PlagiarismReport summarises similarity against every peer.
type PlagiarismReport struct {
	Flagged       bool              `json:"flagged"`
	MaxSimilarity float64           `json:"max_similarity"`
	Matches       []PlagiarismMatch `json:"matches"`
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Code      string  `json:"code"`
	Language  string  `json:"language"`
	InputData string  `json:"input_data"`
	Timeout   float64 `json:"timeout,omitempty"`
}

// ExecuteResponse is the body returned by POST /execute.
type ExecuteResponse struct {
	Success       bool   `json:"success"`
	Output        string `json:"output"`
	Error         string `json:"error"`
	ExecutionTime int64  `json:"execution_time"`
	MemoryUsage   int64  `json:"memory_usage"`
	Status        string `json:"status"`
}

// SimpleTestCase is the test case shape of POST /execute-with-tests.
type SimpleTestCase struct {
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	Weight         int    `json:"weight"`
}

// ExecuteWithTestsRequest is the body of POST /execute-with-tests.
type ExecuteWithTestsRequest struct {
	Code      string           `json:"code"`
	Language  string           `json:"language"`
	TestCases []SimpleTestCase `json:"test_cases"`
	Timeout   float64          `json:"timeout,omitempty"`
}

// SimpleTestResult is one entry of test_results.
type SimpleTestResult struct {
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Passed         bool   `json:"passed"`
	ExecutionTime  int64  `json:"execution_time"`
	MemoryUsage    int64  `json:"memory_usage"`
	Error          string `json:"error"`
	Status         string `json:"status"`
	Weight         int    `json:"weight"`
}

// ExecuteWithTestsResponse is the body returned by POST /execute-with-tests.
type ExecuteWithTestsResponse struct {
	ExecutionResult ExecuteResponse    `json:"execution_result"`
	TestResults     []SimpleTestResult `json:"test_results"`
	TotalPassed     int                `json:"total_passed"`
	TotalTests      int                `json:"total_tests"`
	PlagiarismScore float64            `json:"plagiarism_score"`
}

// PlagiarismExecutionRequest is the body of POST /execute-code-with-plagiarism-checks.
type PlagiarismExecutionRequest struct {
	Code              string           `json:"code"`
	Language          string           `json:"language"`
	TestCasesBasic    []TestCase       `json:"test_cases_basic"`
	TestCasesAdvanced []TestCase       `json:"test_cases_advanced"`
	TestCasesCustom   []TestCase       `json:"test_cases_custom"`
	PeerSubmissions   []PeerSubmission `json:"peer_submissions"`
	Timeout           float64          `json:"timeout,omitempty"`
}

// PlagiarismExecutionResponse is the body returned by POST /execute-code-with-plagiarism-checks.
type PlagiarismExecutionResponse struct {
	Status            string           `json:"status"`
	Language          string           `json:"language"`
	Error             string           `json:"error,omitempty"`
	TestCasesBasic    []TestCaseResult `json:"test_cases_basic"`
	TestCasesAdvanced []TestCaseResult `json:"test_cases_advanced"`
	TestCasesCustom   []TestCaseResult `json:"test_cases_custom"`
	ExecutionSummary  ExecutionSummary `json:"execution_summary"`
	PlagiarismReport  PlagiarismReport `json:"plagiarism_report"`
}

// PlagiarismCheckRequest is the body of POST /plagiarism-check.
type PlagiarismCheckRequest struct {
	Code1    string `json:"code1"`
	Code2    string `json:"code2"`
	Language string `json:"language"`
}

// PlagiarismCheckResponse is the body returned by POST /plagiarism-check.
type PlagiarismCheckResponse struct {
	SimilarityScore float64 `json:"similarity_score"`
	Flagged         bool    `json:"flagged"`
}

// LanguageInfo is one entry of GET /supported-languages.
type LanguageInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Version        string `json:"version"`
	Extension      string `json:"extension"`
	SourceFile     string `json:"source_file"`
	Compiled       bool   `json:"compiled"`
	Timeout        int    `json:"timeout"`
	CompileTimeout int    `json:"compile_timeout"`
	MemoryLimitMB  int64  `json:"memory_limit_mb"`
}

// SupportedLanguagesResponse is the body returned by GET /supported-languages.
type SupportedLanguagesResponse struct {
	Languages []LanguageInfo `json:"languages"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Languages []string `json:"languages"`
	Timestamp string   `json:"timestamp"`
}
