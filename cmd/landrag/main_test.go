package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/landrag/internal/config"
	"github.com/fyrsmithlabs/landrag/internal/logging"
)

func TestRun_MissingConfigFile(t *testing.T) {
	err := run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyReload(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger()
	logger.SetLevel(zapcore.InfoLevel)

	next := config.Default()
	next.Logging.Level = "debug"
	applyReload(ctx, logger.Logger, next, nil)
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	logger.AssertLogged(t, zapcore.InfoLevel, "log level changed")

	applyReload(ctx, logger.Logger, nil, errors.New("bad yaml"))
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	logger.AssertLogged(t, zapcore.WarnLevel, "config reload failed")

	next.Logging.Level = "loud"
	applyReload(ctx, logger.Logger, next, nil)
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
}

func TestWatchedPath(t *testing.T) {
	assert.Equal(t, "/etc/landrag.yaml", watchedPath("/etc/landrag.yaml"))
	t.Chdir(t.TempDir())
	assert.Empty(t, watchedPath(""))
}
