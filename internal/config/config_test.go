package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "concourse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMainConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int32(2), cfg.Precision)
	assert.Equal(t, 1e-6, cfg.ShareTolerance)
	assert.Equal(t, "greedy", cfg.Solver)
	assert.Equal(t, 16, cfg.ExactLimit)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.True(t, cfg.Continue())
	assert.True(t, cfg.Book.Percent())
	assert.Equal(t, ",", cfg.Book.Delimiter)
	assert.Empty(t, cfg.HistoryDB)
}

func TestLoadMainConfig_File(t *testing.T) {
	path := writeConfig(t, `
input_dir: books
output_format: xlsx
precision: 0
solver: exact
exact_limit: 12
continue_on_error: false
history_db: history.db
book:
  delimiter: ";"
  quote_char: "|"
  percent_shares: false
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "books", cfg.InputDir)
	assert.Equal(t, "xlsx", cfg.OutputFormat)
	assert.Equal(t, "exact", cfg.Solver)
	assert.Equal(t, 12, cfg.ExactLimit)
	assert.False(t, cfg.Continue())
	assert.Equal(t, "history.db", cfg.HistoryDB)
	assert.Equal(t, ";", cfg.Book.Delimiter)
	assert.Equal(t, "|", cfg.Book.QuoteChar)
	assert.False(t, cfg.Book.Percent())

	// Currencies without minor units.
	assert.Equal(t, int32(0), cfg.Precision)
}

func TestLoadMainConfig_ZeroShareTolerance(t *testing.T) {
	cfg, err := LoadMainConfig(writeConfig(t, "share_tolerance: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.ShareTolerance)
	assert.True(t, cfg.Tolerance().Share.IsZero())

	t.Setenv("CONCOURSE_SHARE_TOLERANCE", "0")
	cfg, err = LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Zero(t, cfg.ShareTolerance)
}

func TestLoadMainConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "solver: greedy\nlog_level: info\n")

	t.Setenv("CONCOURSE_SOLVER", "exact")
	t.Setenv("CONCOURSE_LOG_LEVEL", "debug")
	t.Setenv("CONCOURSE_PRECISION", "3")
	t.Setenv("CONCOURSE_SHARE_TOLERANCE", "0.001")
	t.Setenv("CONCOURSE_HISTORY_DB", "runs.db")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "exact", cfg.Solver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int32(3), cfg.Precision)
	assert.Equal(t, 0.001, cfg.ShareTolerance)
	assert.Equal(t, "runs.db", cfg.HistoryDB)
}

func TestLoadMainConfig_BadEnv(t *testing.T) {
	t.Setenv("CONCOURSE_PRECISION", "two")

	_, err := LoadMainConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONCOURSE_PRECISION")
}

func TestLoadMainConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "solver", body: "solver: optimal", want: "solver"},
		{name: "format", body: "output_format: docx", want: "output_format"},
		{name: "log level", body: "log_level: loud", want: "log_level"},
		{name: "exact limit", body: "exact_limit: 40", want: "exact_limit"},
		{name: "delimiter", body: "book:\n  delimiter: ';;'", want: "book.delimiter"},
		{name: "tolerance", body: "share_tolerance: 2", want: "share_tolerance"},
		{name: "negative tolerance", body: "share_tolerance: -0.5", want: "share_tolerance"},
		{name: "precision", body: "precision: 12", want: "precision"},
		{name: "yaml", body: "input_dir: [", want: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMainConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTolerance(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.AmountTolerance = 2

	tol := cfg.Tolerance()
	assert.True(t, tol.Share.Equal(decimal.New(1, -6)))
	assert.Equal(t, money.Amount(2), tol.Amount)
}
