package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForSubsystemWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := ForSubsystem(dir, "crawl", false)
	require.NoError(t, err)
	logger.Info("crawl started", "tier", 1)
	require.NoError(t, logger.Close())

	name := "crawl_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"subsystem":"crawl"`)
	assert.Contains(t, string(data), "crawl started")
}

func TestForSubsystemVerboseEnablesDebug(t *testing.T) {
	verbose, err := ForSubsystem("", "test", true)
	require.NoError(t, err)
	defer verbose.Close()
	assert.True(t, verbose.Enabled(context.Background(), slog.LevelDebug))

	quiet, err := ForSubsystem("", "test", false)
	require.NoError(t, err)
	defer quiet.Close()
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelDebug))
}

func TestCloseIsIdempotent(t *testing.T) {
	logger, err := ForSubsystem(t.TempDir(), "test", false)
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}
