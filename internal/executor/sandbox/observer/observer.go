// Package observer defines logging and metrics hooks for sandbox execution.
package observer

import (
	"context"

	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// MetricsRecorder records sandbox metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64, memoryKB int64)
	ObserveRun(ctx context.Context, languageID string, status string, timeMs int64, memoryKB int64, outputKB int64)
}

// NoopMetricsRecorder drops every observation.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(context.Context, string, bool, int64, int64) {}

func (NoopMetricsRecorder) ObserveRun(context.Context, string, string, int64, int64, int64) {}

// LogMetricsRecorder writes observations to the structured log at debug level.
type LogMetricsRecorder struct{}

func (LogMetricsRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64, memoryKB int64) {
	logger.Debug(ctx, "sandbox compile observed",
		zap.String("language", languageID),
		zap.Bool("ok", ok),
		zap.Int64("time_ms", timeMs),
		zap.Int64("memory_kb", memoryKB),
	)
}

func (LogMetricsRecorder) ObserveRun(ctx context.Context, languageID string, status string, timeMs int64, memoryKB int64, outputKB int64) {
	logger.Debug(ctx, "sandbox run observed",
		zap.String("language", languageID),
		zap.String("status", status),
		zap.Int64("time_ms", timeMs),
		zap.Int64("memory_kb", memoryKB),
		zap.Int64("output_kb", outputKB),
	)
}
