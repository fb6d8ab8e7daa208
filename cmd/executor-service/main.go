package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	commonmw "gradebox/internal/common/http/middleware"
	"gradebox/internal/executor/controller"
	"gradebox/internal/executor/language"
	"gradebox/internal/executor/masking"
	"gradebox/internal/executor/plagiarism"
	"gradebox/internal/executor/sandbox/engine"
	"gradebox/internal/executor/sandbox/observer"
	"gradebox/internal/executor/sandbox/runner"
	"gradebox/internal/executor/sandbox/workspace"
	"gradebox/internal/executor/security"
	"gradebox/internal/executor/service"
	"gradebox/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/executor_service.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "executor service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	registry, err := language.NewRegistry(language.MergeSpecs(language.DefaultSpecs(), appCfg.Languages))
	if err != nil {
		return fmt.Errorf("init language registry failed: %w", err)
	}

	eng, err := engine.NewEngine(appCfg.Sandbox.toEngineConfig())
	if err != nil {
		return fmt.Errorf("init sandbox engine failed: %w", err)
	}
	jobRunner := runner.NewRunnerWithOptions(eng, workspace.NewManager(appCfg.Executor.WorkRoot), runner.Options{
		Limits:         appCfg.Sandbox.baseLimits(),
		KeepWorkspaces: appCfg.Executor.KeepWorkspaces,
		Metrics:        observer.LogMetricsRecorder{},
	})

	execSvc, err := service.NewService(service.Config{
		Registry:         registry,
		Validator:        security.NewValidator(),
		Executor:         jobRunner,
		Detector:         plagiarism.NewDetector(appCfg.Plagiarism.MinThreshold, appCfg.Plagiarism.FlagThreshold),
		Policy:           masking.NewPolicy(),
		Killer:           eng,
		PoolSize:         appCfg.Executor.PoolSize,
		QueueWait:        appCfg.Executor.QueueWait,
		MaxCodeBytes:     appCfg.Executor.MaxCodeBytes,
		MaxTestDataBytes: appCfg.Executor.MaxTestDataBytes,
		MaxTestCases:     appCfg.Executor.MaxTestCases,
		MaxPeers:         appCfg.Executor.MaxPeers,
		MaxTimeout:       appCfg.Executor.MaxTimeout,
		Version:          version,
	})
	if err != nil {
		return fmt.Errorf("init executor service failed: %w", err)
	}

	httpServer := buildHTTPServer(appCfg.Server, execSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "executor http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Int("pool_size", appCfg.Executor.PoolSize),
			zap.Strings("languages", registry.IDs()),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	if err := execSvc.Shutdown(ctx); err != nil {
		logger.Error(ctx, "kill sandboxes failed", zap.Error(err))
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	return serveErr
}

func buildHTTPServer(cfg ServerConfig, execSvc *service.Service) *http.Server {
	router := gin.New()
	router.Use(commonmw.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())
	router.Use(commonmw.BodyLimit(cfg.MaxBodyBytes))

	controller.NewExecutorController(execSvc).Register(router)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
