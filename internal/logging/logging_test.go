package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	logger, err := New("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = New("")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = New("loud")
	assert.Error(t, err)
}

func TestNew_Production(t *testing.T) {
	t.Setenv(EnvVar, "production")

	logger, err := New("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := WithContext(context.Background(), logger)
	FromContext(ctx).Info("hello", String("queue", "jobs"), Int("size", 3))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "jobs", entry.ContextMap()["queue"])
	assert.Equal(t, int64(3), entry.ContextMap()["size"])

	assert.NotNil(t, FromContext(context.Background()))
	//nolint:staticcheck
	assert.NotNil(t, FromContext(nil))
}

func TestSetGlobal(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	SetGlobal(zap.New(core))
	t.Cleanup(func() { SetGlobal(zap.NewNop()) })

	L().Debug("global",
		Uint("pushed", uint64(7)),
		Duration("elapsed", time.Second),
		Float("util", 0.5),
		Error(errors.New("boom")),
		Any("tags", []string{"a"}),
		Time("at", time.Unix(0, 0)),
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, uint64(7), fields["pushed"])
	assert.Equal(t, "boom", fields["error"])

	SetGlobal(nil)
	assert.NotNil(t, L())
	assert.NotNil(t, OrNop(nil))
}
