// Package service orchestrates validation, execution, grading and plagiarism
// checks for the executor API.
package service

import (
	"context"
	"fmt"
	"time"

	"gradebox/internal/executor/harness"
	"gradebox/internal/executor/language"
	"gradebox/internal/executor/masking"
	"gradebox/internal/executor/model"
	"gradebox/internal/executor/plagiarism"
	"gradebox/internal/executor/sandbox/result"
	"gradebox/internal/executor/sandbox/runner"
	"gradebox/internal/executor/security"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	serviceName         = "executor"
	defaultQueueWait    = 2 * time.Second
	defaultMaxCodeBytes = 64 * 1024
	defaultMaxTestData  = 1 << 20
	defaultMaxTestCases = 100
	defaultMaxPeers     = 200
	defaultMaxTimeout   = 30 * time.Second
)

// Executor is the orchestrator surface used by the service.
type Executor interface {
	Prepare(ctx context.Context, code string, lang language.Spec) (*runner.Program, error)
	Compile(ctx context.Context, prog *runner.Program) (result.CompileResult, error)
	Run(ctx context.Context, prog *runner.Program, stdin string, timeout time.Duration) (result.Outcome, error)
	Release(ctx context.Context, prog *runner.Program)
}

// Killer terminates in-flight sandbox processes.
type Killer interface {
	KillAll(ctx context.Context) error
}

// Config holds service dependencies and settings.
type Config struct {
	Registry     *language.Registry
	Validator    *security.Validator
	Executor     Executor
	Detector     *plagiarism.Detector
	Policy       *masking.Policy
	Killer       Killer
	PoolSize     int
	QueueWait    time.Duration
	MaxCodeBytes int
	// MaxTestDataBytes bounds input_data and each test case input or expected output.
	MaxTestDataBytes int
	MaxTestCases     int
	MaxPeers         int
	MaxTimeout       time.Duration
	Version          string
}

// Service handles executor requests.
type Service struct {
	registry     *language.Registry
	validator    *security.Validator
	executor     Executor
	harness      *harness.Harness
	detector     *plagiarism.Detector
	killer       Killer
	sem          chan struct{}
	queueWait    time.Duration
	maxCodeBytes int
	maxTestData  int
	maxTestCases int
	maxPeers     int
	maxTimeout   time.Duration
	version      string
	now          func() time.Time
}

// NewService creates a new executor service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("language registry is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Detector == nil {
		cfg.Detector = plagiarism.NewDetector(plagiarism.DefaultMinThreshold, plagiarism.DefaultFlagThreshold)
	}
	if cfg.Policy == nil {
		cfg.Policy = masking.NewPolicy()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	if cfg.QueueWait <= 0 {
		cfg.QueueWait = defaultQueueWait
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.MaxTestDataBytes <= 0 {
		cfg.MaxTestDataBytes = defaultMaxTestData
	}
	if cfg.MaxTestCases <= 0 {
		cfg.MaxTestCases = defaultMaxTestCases
	}
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = defaultMaxPeers
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = defaultMaxTimeout
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Service{
		registry:     cfg.Registry,
		validator:    cfg.Validator,
		executor:     cfg.Executor,
		harness:      harness.New(cfg.Executor, cfg.Policy),
		detector:     cfg.Detector,
		killer:       cfg.Killer,
		sem:          make(chan struct{}, poolSize),
		queueWait:    cfg.QueueWait,
		maxCodeBytes: cfg.MaxCodeBytes,
		maxTestData:  cfg.MaxTestDataBytes,
		maxTestCases: cfg.MaxTestCases,
		maxPeers:     cfg.MaxPeers,
		maxTimeout:   cfg.MaxTimeout,
		version:      cfg.Version,
		now:          time.Now,
	}, nil
}

// SupportedLanguages lists the registry.
func (s *Service) SupportedLanguages() model.SupportedLanguagesResponse {
	specs := s.registry.List()
	out := make([]model.LanguageInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, model.LanguageInfo{
			ID:             spec.ID,
			Name:           spec.Name,
			Version:        spec.Version,
			Extension:      spec.Extension,
			SourceFile:     spec.SourceFile,
			Compiled:       spec.Compiled(),
			Timeout:        spec.TimeoutSec,
			CompileTimeout: spec.CompileTimeoutSec,
			MemoryLimitMB:  spec.MemoryLimitMB,
		})
	}
	return model.SupportedLanguagesResponse{Languages: out}
}

// Health reports liveness.
func (s *Service) Health() model.HealthResponse {
	return model.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   s.version,
		Languages: s.registry.IDs(),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
}

// Shutdown kills every sandbox process still running.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.killer == nil {
		return nil
	}
	return s.killer.KillAll(ctx)
}

func (s *Service) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.queueWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		logger.Warn(ctx, "executor pool is full", zap.Int("pool_size", cap(s.sem)))
		return appErr.New(appErr.ExecutorBusy).WithMessage("executor pool is full, retry later")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

// internalMessage renders a host-side failure for the response body.
func internalMessage(err error) string {
	return "Internal error: " + appErr.GetError(err).Message
}
