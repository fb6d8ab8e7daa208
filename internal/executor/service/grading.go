package service

import (
	"context"
	"time"

	"gradebox/internal/executor/harness"
	"gradebox/internal/executor/language"
	"gradebox/internal/executor/model"
	"gradebox/internal/executor/scoring"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/contextkey"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExecuteWithPlagiarism grades all three categories and checks the code
// against peers. The plagiarism report is produced even when grading stops at
// a security violation or a compile error.
func (s *Service) ExecuteWithPlagiarism(ctx context.Context, req model.PlagiarismExecutionRequest) (model.PlagiarismExecutionResponse, error) {
	if err := s.validateCode("code", req.Code); err != nil {
		return model.PlagiarismExecutionResponse{}, err
	}
	lang, err := s.resolveLanguage(req.Language)
	if err != nil {
		return model.PlagiarismExecutionResponse{}, err
	}
	ctx = context.WithValue(ctx, contextkey.Language, lang.ID)
	total, err := s.validateTestCases(map[string][]model.TestCase{
		"test_cases_basic":    req.TestCasesBasic,
		"test_cases_advanced": req.TestCasesAdvanced,
		"test_cases_custom":   req.TestCasesCustom,
	})
	if err != nil {
		return model.PlagiarismExecutionResponse{}, err
	}
	if total == 0 {
		return model.PlagiarismExecutionResponse{}, appErr.ValidationError("test_cases", "at least one test case is required")
	}
	if err := s.validatePeers(req.PeerSubmissions); err != nil {
		return model.PlagiarismExecutionResponse{}, err
	}
	timeout, err := s.resolveTimeout(req.Timeout, lang)
	if err != nil {
		return model.PlagiarismExecutionResponse{}, err
	}

	var report model.PlagiarismReport
	var resp model.PlagiarismExecutionResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report = s.detector.Check(req.Code, req.PeerSubmissions)
		return nil
	})
	g.Go(func() error {
		var err error
		resp, err = s.grade(gctx, req, lang, timeout)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PlagiarismExecutionResponse{}, err
	}
	resp.PlagiarismReport = report

	logger.Info(ctx, "grading completed",
		zap.String("language", lang.ID),
		zap.String("status", resp.Status),
		zap.Float64("score_percent", resp.ExecutionSummary.ScorePercent),
		zap.Bool("plagiarism_flagged", report.Flagged),
	)
	return resp, nil
}

// grade returns a request-level error only when the request cannot be served
// at all; every other failure becomes a status "error" response.
func (s *Service) grade(ctx context.Context, req model.PlagiarismExecutionRequest, lang language.Spec, timeout time.Duration) (model.PlagiarismExecutionResponse, error) {
	counted := len(req.TestCasesBasic) + len(req.TestCasesAdvanced)
	resp := model.PlagiarismExecutionResponse{
		Status:            model.StatusError,
		Language:          lang.ID,
		TestCasesBasic:    []model.TestCaseResult{},
		TestCasesAdvanced: []model.TestCaseResult{},
		TestCasesCustom:   []model.TestCaseResult{},
		ExecutionSummary:  scoring.EmptySummary(counted),
	}

	if err := s.validator.Validate(req.Code, lang); err != nil {
		logger.Info(ctx, "submission rejected", zap.String("language", lang.ID), zap.Error(err))
		resp.Error = appErr.GetError(err).Message
		return resp, nil
	}

	if err := s.acquireSlot(ctx); err != nil {
		return model.PlagiarismExecutionResponse{}, err
	}
	defer s.releaseSlot()

	prog, err := s.executor.Prepare(ctx, req.Code, lang)
	if err != nil {
		return s.internalFailure(ctx, resp, lang, err)
	}
	defer s.executor.Release(ctx, prog)

	compileRes, err := s.executor.Compile(ctx, prog)
	if err != nil {
		return s.internalFailure(ctx, resp, lang, err)
	}
	if !compileRes.OK {
		resp.Error = "Compilation failed: " + compileRes.Error
		return resp, nil
	}

	categories := []struct {
		category model.Category
		cases    []model.TestCase
		out      *[]model.TestCaseResult
	}{
		{model.CategoryBasic, req.TestCasesBasic, &resp.TestCasesBasic},
		{model.CategoryAdvanced, req.TestCasesAdvanced, &resp.TestCasesAdvanced},
		{model.CategoryCustom, req.TestCasesCustom, &resp.TestCasesCustom},
	}
	reports := make([]harness.Report, 0, len(categories))
	for _, c := range categories {
		report, err := s.harness.RunCategory(ctx, prog, c.cases, c.category, timeout)
		if err != nil {
			return s.internalFailure(ctx, resp, lang, err)
		}
		*c.out = report.Results
		reports = append(reports, report)
	}

	resp.ExecutionSummary = scoring.Summarize(reports...)
	resp.Status = model.StatusFailed
	if resp.ExecutionSummary.PassedTestCases == resp.ExecutionSummary.TotalTestCases {
		resp.Status = model.StatusSuccess
	}
	return resp, nil
}

func (s *Service) internalFailure(ctx context.Context, resp model.PlagiarismExecutionResponse, lang language.Spec, err error) (model.PlagiarismExecutionResponse, error) {
	if ctx.Err() != nil {
		return model.PlagiarismExecutionResponse{}, ctx.Err()
	}
	logger.Error(ctx, "grading failed", zap.String("language", lang.ID), zap.Error(err))
	resp.Status = model.StatusError
	resp.Error = internalMessage(err)
	resp.TestCasesBasic = []model.TestCaseResult{}
	resp.TestCasesAdvanced = []model.TestCaseResult{}
	resp.TestCasesCustom = []model.TestCaseResult{}
	return resp, nil
}

// CheckPlagiarism compares two submissions directly.
func (s *Service) CheckPlagiarism(ctx context.Context, req model.PlagiarismCheckRequest) (model.PlagiarismCheckResponse, error) {
	if err := s.validateCode("code1", req.Code1); err != nil {
		return model.PlagiarismCheckResponse{}, err
	}
	if err := s.validateCode("code2", req.Code2); err != nil {
		return model.PlagiarismCheckResponse{}, err
	}
	if req.Language != "" {
		if _, err := s.registry.Get(req.Language); err != nil {
			return model.PlagiarismCheckResponse{}, err
		}
	}
	score, flagged := s.detector.Compare(req.Code1, req.Code2)
	return model.PlagiarismCheckResponse{SimilarityScore: score, Flagged: flagged}, nil
}
