package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "concourse.log")

	logger, err := New("debug", path)
	require.NoError(t, err)

	logger.Infow("settled", "project", "trip", "transactions", 2)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"settled"`)
	assert.Contains(t, string(data), `"project":"trip"`)
	assert.Contains(t, string(data), `"level":"INFO"`)
}

func TestNew_LevelFiltersFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "concourse.log")

	logger, err := New("warn", path)
	require.NoError(t, err)

	logger.Infof("hidden %d", 1)
	logger.Warnf("shown %d", 2)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown 2")
}

func TestNew_InvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New("loud", "")
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestNop(t *testing.T) {
	t.Parallel()

	var l Logger = Nop()
	l.Infof("nothing %s", "here")
}
