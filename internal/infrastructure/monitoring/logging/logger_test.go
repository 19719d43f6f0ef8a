package logging_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
)

func newObserved(level zapcore.Level) (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return logging.NewLoggerFromCore(core), logs
}

func TestLogger_EmitsTypedFields(t *testing.T) {
	t.Parallel()
	log, logs := newObserved(zapcore.DebugLevel)

	log.Info("assessment completed",
		logging.String("report_id", "r-1"),
		logging.Int("degraded", 2),
		logging.Float64("score", 0.73),
		logging.Bool("plagiarism", false),
		logging.Duration("elapsed", 250*time.Millisecond),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "assessment completed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "r-1", ctx["report_id"])
	assert.Equal(t, int64(2), ctx["degraded"])
	assert.Equal(t, 0.73, ctx["score"])
	assert.Equal(t, false, ctx["plagiarism"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()
	log, logs := newObserved(zapcore.WarnLevel)

	log.Debug("noise")
	log.Info("noise")
	log.Warn("dimension degraded")
	log.Error("component failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "dimension degraded", entries[0].Message)
	assert.Equal(t, "component failed", entries[1].Message)
}

func TestLogger_WithAttachesFieldsToChildren(t *testing.T) {
	t.Parallel()
	log, logs := newObserved(zapcore.InfoLevel)

	child := log.With(logging.String("component", "similarity"))
	child.Info("index snapshot published")
	log.Info("parent unaffected")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "similarity", entries[0].ContextMap()["component"])
	assert.NotContains(t, entries[1].ContextMap(), "component")
}

func TestLogger_ErrField(t *testing.T) {
	t.Parallel()
	log, logs := newObserved(zapcore.InfoLevel)

	log.Error("embedding failed", logging.Err(fmt.Errorf("connection refused")))
	log.Info("nil error is harmless", logging.Err(nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])
	assert.Equal(t, "<nil>", entries[1].ContextMap()["error"])
}

func TestNewLogger_AppliesDefaults(t *testing.T) {
	t.Parallel()
	log, err := logging.NewLogger(logging.LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewNopLogger_DiscardsEverything(t *testing.T) {
	t.Parallel()
	log := logging.NewNopLogger()
	// must not panic
	log.Debug("x")
	log.Info("x")
	log.Warn("x")
	log.Error("x")
	assert.NotNil(t, log.With(logging.String("k", "v")))
	assert.NotNil(t, log.Named("child"))
}

func TestSetDefault_IgnoresNil(t *testing.T) {
	log, _ := newObserved(zapcore.InfoLevel)
	logging.SetDefault(log)
	logging.SetDefault(nil)
	assert.Equal(t, log, logging.Default())
}
