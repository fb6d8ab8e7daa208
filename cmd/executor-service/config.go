package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gradebox/internal/executor/language"
	"gradebox/internal/executor/plagiarism"
	"gradebox/internal/executor/sandbox/engine"
	"gradebox/internal/executor/sandbox/spec"
	"gradebox/pkg/utils/logger"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 5 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultQueueWait       = 2 * time.Second
	defaultMaxTimeout      = 30 * time.Second
	defaultOutputMB        = 16
	defaultStackMB         = 64
	defaultOpenFiles       = 256
	defaultStdioMaxBytes   = 1 << 20
	defaultMaxBodyBytes    = 8 << 20
	helperBinaryName       = "sandbox-init"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"EXECUTOR_HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes" env:"EXECUTOR_MAX_BODY_BYTES"`
}

// ExecutorConfig holds request handling settings.
type ExecutorConfig struct {
	WorkRoot         string        `yaml:"workRoot" env:"EXECUTOR_WORK_ROOT"`
	PoolSize         int           `yaml:"poolSize" env:"EXECUTOR_POOL_SIZE"`
	QueueWait        time.Duration `yaml:"queueWait"`
	MaxCodeBytes     int           `yaml:"maxCodeBytes"`
	MaxTestDataBytes int           `yaml:"maxTestDataBytes"`
	MaxTestCases     int           `yaml:"maxTestCases"`
	MaxPeers         int           `yaml:"maxPeers"`
	MaxTimeout       time.Duration `yaml:"maxTimeout" env:"EXECUTOR_MAX_TIMEOUT"`
	KeepWorkspaces   bool          `yaml:"keepWorkspaces"`
}

// SandboxConfig holds sandbox engine settings.
type SandboxConfig struct {
	HelperPath           string `yaml:"helperPath" env:"EXECUTOR_HELPER_PATH"`
	StdoutStderrMaxBytes int64  `yaml:"stdoutStderrMaxBytes"`
	OutputMB             int64  `yaml:"outputMB"`
	StackMB              int64  `yaml:"stackMB"`
	OpenFiles            int64  `yaml:"openFiles"`
}

// PlagiarismConfig holds similarity thresholds.
type PlagiarismConfig struct {
	MinThreshold  float64 `yaml:"minThreshold"`
	FlagThreshold float64 `yaml:"flagThreshold"`
}

// AppConfig holds executor-service config.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Logger     logger.Config    `yaml:"logger"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	Plagiarism PlagiarismConfig `yaml:"plagiarism"`
	Languages  []language.Spec  `yaml:"languages"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads .env, the YAML file and then environment overrides.
func loadAppConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env failed: %w", err)
	}
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env overrides failed: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) error {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Logger.Service == "" {
		cfg.Logger.Service = "executor"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Executor.PoolSize <= 0 {
		cfg.Executor.PoolSize = runtime.NumCPU()
	}
	if cfg.Executor.QueueWait == 0 {
		cfg.Executor.QueueWait = defaultQueueWait
	}
	if cfg.Executor.MaxTimeout == 0 {
		cfg.Executor.MaxTimeout = defaultMaxTimeout
	}
	if cfg.Sandbox.HelperPath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve helper path failed: %w", err)
		}
		cfg.Sandbox.HelperPath = filepath.Join(filepath.Dir(exe), helperBinaryName)
	}
	if cfg.Sandbox.StdoutStderrMaxBytes <= 0 {
		cfg.Sandbox.StdoutStderrMaxBytes = defaultStdioMaxBytes
	}
	if cfg.Sandbox.OutputMB <= 0 {
		cfg.Sandbox.OutputMB = defaultOutputMB
	}
	if cfg.Sandbox.StackMB <= 0 {
		cfg.Sandbox.StackMB = defaultStackMB
	}
	if cfg.Sandbox.OpenFiles <= 0 {
		cfg.Sandbox.OpenFiles = defaultOpenFiles
	}
	if cfg.Plagiarism.MinThreshold == 0 {
		cfg.Plagiarism.MinThreshold = plagiarism.DefaultMinThreshold
	}
	if cfg.Plagiarism.FlagThreshold == 0 {
		cfg.Plagiarism.FlagThreshold = plagiarism.DefaultFlagThreshold
	}
	if cfg.Plagiarism.MinThreshold > cfg.Plagiarism.FlagThreshold {
		return fmt.Errorf("plagiarism minThreshold %.2f exceeds flagThreshold %.2f",
			cfg.Plagiarism.MinThreshold, cfg.Plagiarism.FlagThreshold)
	}
	return nil
}

func (c SandboxConfig) toEngineConfig() engine.Config {
	return engine.Config{
		HelperPath:           c.HelperPath,
		StdoutStderrMaxBytes: c.StdoutStderrMaxBytes,
	}
}

func (c SandboxConfig) baseLimits() spec.ResourceLimit {
	return spec.ResourceLimit{
		StackMB:   c.StackMB,
		OutputMB:  c.OutputMB,
		OpenFiles: c.OpenFiles,
	}
}
