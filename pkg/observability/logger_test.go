package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates text logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatText, Output: &buf})
		require.NotNil(t, logger)

		logger.Info("test message", "key", "value")

		assert.Contains(t, buf.String(), "test message")
		assert.Contains(t, buf.String(), "key=value")
	})

	t.Run("creates JSON logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatJSON, Output: &buf})

		logger.Info("test message", "key", "value")

		var logEntry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
		assert.Equal(t, "test message", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("respects log level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{Level: LogLevelWarn, Format: LogFormatText, Output: &buf})

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
	})

	t.Run("adds service and context attributes", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LogConfig{
			Level:          LogLevelInfo,
			Format:         LogFormatJSON,
			Output:         &buf,
			ServiceName:    "cadence",
			ServiceVersion: "1.0.0",
		})
		ctx := WithOperation(WithCorrelationID(context.Background(), "corr-123"), "plan")

		logger.InfoContext(ctx, "test")

		var logEntry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
		assert.Equal(t, "cadence", logEntry["service"])
		assert.Equal(t, "1.0.0", logEntry["version"])
		assert.Equal(t, "corr-123", logEntry[CorrelationIDKey])
		assert.Equal(t, "plan", logEntry[OperationKey])
	})

	t.Run("writes to a rotated file as well", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "cadence.log")
		logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatText, Output: &buf, File: path})

		logger.Info("to both")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to both")
		assert.Contains(t, buf.String(), "to both")
	})
}

func TestLoggerFromEnv(t *testing.T) {
	t.Setenv("CADENCE_LOG_LEVEL", "debug")
	t.Setenv("CADENCE_LOG_FORMAT", "json")

	logger := LoggerFromEnv()

	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, LogLevelWarn, cfg.Level)
	assert.Equal(t, LogFormatText, cfg.Format)
	assert.Equal(t, "cadence", cfg.ServiceName)

	prod := ProductionLogConfig()
	assert.Equal(t, LogFormatJSON, prod.Format)
	assert.True(t, prod.AddSource)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, CorrelationIDFromContext(context.Background()))

	ctx := WithCorrelationID(context.Background(), "")
	assert.Len(t, CorrelationIDFromContext(ctx), 36, "generated uuid")
}

func TestTimeOperationResult(t *testing.T) {
	metrics := NewInMemoryMetrics()
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelDebug, Output: &buf})
	ctx := context.Background()

	n, err := TimeOperationResult(ctx, logger, metrics, "plan", func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = TimeOperationResult(ctx, logger, metrics, "plan", func() (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)

	op := T("operation", "plan")
	assert.Equal(t, int64(2), metrics.GetCounter(MetricOperationTotal, op))
	assert.Equal(t, int64(1), metrics.GetCounter(MetricOperationErrors, op))
	assert.Len(t, metrics.GetTimings(MetricOperationDuration, op), 2)
	assert.Contains(t, buf.String(), "operation failed")
}

func TestInMemoryMetrics_Snapshot(t *testing.T) {
	m := NewInMemoryMetrics()
	m.Counter(MetricActionsPlanned, 4)
	m.Counter(MetricActionsPlanned, 3)
	m.Gauge(MetricPlanWarnings, 1.5)
	m.Timing("t", time.Second)
	m.Timing("t", time.Second)

	assert.Equal(t, []string{
		"cadence.plan.actions 7",
		"cadence.plan.warnings 1.5",
		"t 2s",
	}, m.Snapshot())
}

func TestHealthRegistry(t *testing.T) {
	r := NewHealthRegistry()
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	r.Register("database", RequiredChecker("database", ok))
	assert.Equal(t, HealthStatusHealthy, r.Check(context.Background()).Status)

	r.Register("redis", OptionalChecker("redis", down))
	health := r.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Checks["redis"].Message, "refused")

	r.Register("database", RequiredChecker("database", down))
	assert.Equal(t, HealthStatusUnhealthy, r.Check(context.Background()).Status)
}
