package service

import (
	"context"
	"time"

	"gradebox/internal/executor/harness"
	"gradebox/internal/executor/language"
	"gradebox/internal/executor/model"
	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/runner"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/contextkey"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// Execute runs code once against input_data.
func (s *Service) Execute(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error) {
	if err := s.validateCode("code", req.Code); err != nil {
		return model.ExecuteResponse{}, err
	}
	lang, err := s.resolveLanguage(req.Language)
	if err != nil {
		return model.ExecuteResponse{}, err
	}
	ctx = context.WithValue(ctx, contextkey.Language, lang.ID)
	if err := s.validateTestData("input_data", req.InputData); err != nil {
		return model.ExecuteResponse{}, err
	}
	timeout, err := s.resolveTimeout(req.Timeout, lang)
	if err != nil {
		return model.ExecuteResponse{}, err
	}

	if err := s.validator.Validate(req.Code, lang); err != nil {
		logger.Info(ctx, "submission rejected", zap.String("language", lang.ID), zap.Error(err))
		return errorResponse(appErr.GetError(err).Message), nil
	}

	if err := s.acquireSlot(ctx); err != nil {
		return model.ExecuteResponse{}, err
	}
	defer s.releaseSlot()

	out, err := s.runOnce(ctx, req.Code, lang, req.InputData, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return model.ExecuteResponse{}, ctx.Err()
		}
		logger.Error(ctx, "execute failed", zap.String("language", lang.ID), zap.Error(err))
		return errorResponse(internalMessage(err)), nil
	}

	resp := model.ExecuteResponse{
		Success:       out.Success,
		Output:        out.Stdout,
		Error:         runner.DescribeFailure(out, timeout),
		ExecutionTime: out.RuntimeMs,
		MemoryUsage:   out.MemoryKB,
		Status:        string(out.ExitStatus),
	}
	if out.Success {
		resp.Error = out.Stderr
	}
	return resp, nil
}

func (s *Service) runOnce(ctx context.Context, code string, lang language.Spec, stdin string, timeout time.Duration) (result.Outcome, error) {
	prog, err := s.executor.Prepare(ctx, code, lang)
	if err != nil {
		return result.Outcome{}, err
	}
	defer s.executor.Release(ctx, prog)

	compileRes, err := s.executor.Compile(ctx, prog)
	if err != nil {
		return result.Outcome{}, err
	}
	if !compileRes.OK {
		return result.CompileFailure(compileRes), nil
	}
	return s.executor.Run(ctx, prog, stdin, timeout)
}

// ExecuteWithTests grades code against a flat list of visible test cases.
func (s *Service) ExecuteWithTests(ctx context.Context, req model.ExecuteWithTestsRequest) (model.ExecuteWithTestsResponse, error) {
	if err := s.validateCode("code", req.Code); err != nil {
		return model.ExecuteWithTestsResponse{}, err
	}
	lang, err := s.resolveLanguage(req.Language)
	if err != nil {
		return model.ExecuteWithTestsResponse{}, err
	}
	ctx = context.WithValue(ctx, contextkey.Language, lang.ID)
	if len(req.TestCases) == 0 {
		return model.ExecuteWithTestsResponse{}, appErr.ValidationError("test_cases", "at least one test case is required")
	}
	cases := make([]model.TestCase, 0, len(req.TestCases))
	for _, tc := range req.TestCases {
		cases = append(cases, model.TestCase{Input: tc.InputData, ExpectedOutput: tc.ExpectedOutput, Weight: tc.Weight})
	}
	if _, err := s.validateTestCases(map[string][]model.TestCase{"test_cases": cases}); err != nil {
		return model.ExecuteWithTestsResponse{}, err
	}
	timeout, err := s.resolveTimeout(req.Timeout, lang)
	if err != nil {
		return model.ExecuteWithTestsResponse{}, err
	}

	resp := model.ExecuteWithTestsResponse{
		TestResults: make([]model.SimpleTestResult, 0, len(cases)),
		TotalTests:  len(cases),
	}
	if err := s.validator.Validate(req.Code, lang); err != nil {
		logger.Info(ctx, "submission rejected", zap.String("language", lang.ID), zap.Error(err))
		resp.ExecutionResult = errorResponse(appErr.GetError(err).Message)
		return resp, nil
	}

	if err := s.acquireSlot(ctx); err != nil {
		return model.ExecuteWithTestsResponse{}, err
	}
	defer s.releaseSlot()

	report, compileErr, err := s.gradeBasic(ctx, req.Code, lang, cases, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return model.ExecuteWithTestsResponse{}, ctx.Err()
		}
		logger.Error(ctx, "execute with tests failed", zap.String("language", lang.ID), zap.Error(err))
		resp.ExecutionResult = errorResponse(internalMessage(err))
		return resp, nil
	}
	if compileErr != nil {
		resp.ExecutionResult = model.ExecuteResponse{
			Error:         compileErr.Error,
			ExecutionTime: compileErr.TimeMs,
			MemoryUsage:   compileErr.MemoryKB,
			Status:        model.StatusCompilationError,
		}
		return resp, nil
	}

	for _, res := range report.Results {
		resp.TestResults = append(resp.TestResults, model.SimpleTestResult{
			InputData:      res.Input,
			ExpectedOutput: res.ExpectedOutput,
			ActualOutput:   res.ActualOutput,
			Passed:         res.Passed(),
			ExecutionTime:  res.RuntimeMs,
			MemoryUsage:    res.MemoryKB,
			Error:          res.Error,
			Status:         res.ExecutionStatus,
			Weight:         res.Weight,
		})
	}
	resp.TotalPassed = report.Passed
	allPassed := report.Passed == len(report.Results)
	resp.ExecutionResult = model.ExecuteResponse{
		Success:       allPassed,
		ExecutionTime: report.RuntimeMs,
		MemoryUsage:   report.PeakMemoryKB,
		Status:        model.StatusFailed,
	}
	if allPassed {
		resp.ExecutionResult.Status = model.StatusSuccess
	}
	return resp, nil
}

// gradeBasic prepares, compiles and runs cases as one visible category. A
// failed compile is reported through the second return value.
func (s *Service) gradeBasic(ctx context.Context, code string, lang language.Spec, cases []model.TestCase, timeout time.Duration) (harness.Report, *result.CompileResult, error) {
	prog, err := s.executor.Prepare(ctx, code, lang)
	if err != nil {
		return harness.Report{}, nil, err
	}
	defer s.executor.Release(ctx, prog)

	compileRes, err := s.executor.Compile(ctx, prog)
	if err != nil {
		return harness.Report{}, nil, err
	}
	if !compileRes.OK {
		return harness.Report{}, &compileRes, nil
	}
	report, err := s.harness.RunCategory(ctx, prog, cases, model.CategoryBasic, timeout)
	return report, nil, err
}

func errorResponse(msg string) model.ExecuteResponse {
	return model.ExecuteResponse{Success: false, Error: msg, Status: model.StatusError}
}
