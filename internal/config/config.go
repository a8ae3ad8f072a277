// =============================================================================
// Concourse - Configuration Module
// =============================================================================
//
// Loads the application configuration (concourse.yaml by default).
//
// LOAD ORDER:
//   1. The YAML file. A missing file is not an error; every key has a default.
//   2. A .env file in the working directory, if present.
//   3. CONCOURSE_* environment variables, which override the file.
//   4. Defaults for anything still unset.
//   5. Validate.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "concourse.yaml"

// Markers for numeric options the file did not set, where 0 is a valid value.
const (
	unsetPrecision      int32   = -1
	unsetShareTolerance float64 = -1
)

// Output formats understood by the report package.
var OutputFormats = []string{"text", "xml", "csv", "json", "xlsx", "pdf"}

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by 'process' for books (.csv, .xlsx, .json, .yaml).
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the rendered settlement reports.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// ArchiveDir receives books that were settled successfully.
	// Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveOnSuccess moves processed books into ArchiveDir.
	ArchiveOnSuccess bool `yaml:"archive_on_success"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile adds a JSON log sink. Empty logs to stderr only.
	LogFile string `yaml:"log_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// LEDGER SETTINGS
	// =========================================================================

	// Precision is the number of minor-unit digits of every amount.
	// Default: 2
	Precision int32 `yaml:"precision"`

	// ShareTolerance is how far a bill's share sum may drift from 1. Set it
	// to 0 to require exact sums.
	// Default: 0.000001
	ShareTolerance float64 `yaml:"share_tolerance"`

	// AmountTolerance, in minor units, below which a balance counts as
	// settled. Amounts are exact, so 0 is the right value unless balances
	// are imported from elsewhere.
	AmountTolerance int64 `yaml:"amount_tolerance"`

	// Solver is "greedy" or "exact".
	// Default: "greedy"
	Solver string `yaml:"solver"`

	// ExactLimit caps the non-zero balances accepted by the exact solver.
	// Default: 16
	ExactLimit int `yaml:"exact_limit"`

	// Book controls how CSV and XLSX books are read.
	Book BookSettings `yaml:"book"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFormat is one of OutputFormats.
	// Default: "text"
	OutputFormat string `yaml:"output_format"`

	// OutputNameFormat names report files. Placeholders:
	//   {project}   - project name
	//   {timestamp} - YYYYMMDD_HHMMSS
	//   {date}      - YYYY-MM-DD
	//   {uuid}      - a random UUID
	// The extension of the output format is appended.
	// Default: "{project}_{timestamp}_{uuid}"
	OutputNameFormat string `yaml:"output_name_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the books settled in parallel by 'process'.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps 'process' going after a failed book.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`

	// HistoryDB is the SQLite file runs are recorded in. Empty disables
	// history.
	HistoryDB string `yaml:"history_db"`
}

// BookSettings describes the layout of CSV and XLSX books.
type BookSettings struct {
	// Delimiter separates CSV fields. Default: ","
	Delimiter string `yaml:"delimiter"`

	// QuoteChar quotes CSV fields. Books written by older tools use "|".
	// Default: "\""
	QuoteChar string `yaml:"quote_char"`

	// PercentShares reads share rows as percentages (50 = one half).
	// Default: true
	PercentShares *bool `yaml:"percent_shares"`
}

// Percent reports whether shares are percentages.
func (b BookSettings) Percent() bool {
	return b.PercentShares == nil || *b.PercentShares
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration.
//
// PARAMETERS:
//   - configPath: The YAML file. It may be missing.
//
// RETURNS:
//   - The configuration with overrides and defaults applied.
//   - An error if the file cannot be parsed or the result is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	cfg := &MainConfig{Precision: unsetPrecision, ShareTolerance: unsetShareTolerance}

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	applyMainConfigDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration holding only defaults.
func Default() *MainConfig {
	cfg := &MainConfig{Precision: unsetPrecision, ShareTolerance: unsetShareTolerance}
	applyMainConfigDefaults(cfg)
	return cfg
}

func applyEnvOverrides(cfg *MainConfig) error {
	if v := os.Getenv("CONCOURSE_INPUT_DIR"); v != "" {
		cfg.InputDir = v
	}
	if v := os.Getenv("CONCOURSE_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("CONCOURSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CONCOURSE_SOLVER"); v != "" {
		cfg.Solver = v
	}
	if v := os.Getenv("CONCOURSE_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv("CONCOURSE_PRECISION"); v != "" {
		p, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("CONCOURSE_PRECISION: %w", err)
		}
		cfg.Precision = int32(p)
	}
	if v := os.Getenv("CONCOURSE_SHARE_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CONCOURSE_SHARE_TOLERANCE: %w", err)
		}
		cfg.ShareTolerance = f
	}
	return nil
}

// applyMainConfigDefaults sets default values for any unset option.
func applyMainConfigDefaults(cfg *MainConfig) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "./archive"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Precision == unsetPrecision {
		cfg.Precision = ledger.DefaultPrecision
	}
	if cfg.ShareTolerance == unsetShareTolerance {
		cfg.ShareTolerance = 1e-6
	}
	if cfg.Solver == "" {
		cfg.Solver = "greedy"
	}
	if cfg.ExactLimit == 0 {
		cfg.ExactLimit = 16
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "text"
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "{project}_{timestamp}_{uuid}"
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.ContinueOnError == nil {
		t := true
		cfg.ContinueOnError = &t
	}
	if cfg.Book.Delimiter == "" {
		cfg.Book.Delimiter = ","
	}
	if cfg.Book.QuoteChar == "" {
		cfg.Book.QuoteChar = `"`
	}
}

// Validate checks the option values. It does not touch the file system.
func (c *MainConfig) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.Precision < 0 || c.Precision > 8 {
		return fmt.Errorf("precision must be between 0 and 8, got %d", c.Precision)
	}
	if c.ShareTolerance < 0 || c.ShareTolerance >= 1 {
		return fmt.Errorf("share_tolerance must be in [0, 1), got %g", c.ShareTolerance)
	}
	if c.AmountTolerance < 0 {
		return fmt.Errorf("amount_tolerance must not be negative, got %d", c.AmountTolerance)
	}
	switch strings.ToLower(c.Solver) {
	case "greedy", "exact":
	default:
		return fmt.Errorf("solver must be greedy or exact, got %q", c.Solver)
	}
	if c.ExactLimit < 1 || c.ExactLimit > 20 {
		return fmt.Errorf("exact_limit must be between 1 and 20, got %d", c.ExactLimit)
	}
	if !isOutputFormat(c.OutputFormat) {
		return fmt.Errorf("output_format must be one of %s, got %q", strings.Join(OutputFormats, ", "), c.OutputFormat)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if len([]rune(c.Book.Delimiter)) != 1 {
		return fmt.Errorf("book.delimiter must be a single character, got %q", c.Book.Delimiter)
	}
	if len([]rune(c.Book.QuoteChar)) != 1 {
		return fmt.Errorf("book.quote_char must be a single character, got %q", c.Book.QuoteChar)
	}
	return nil
}

func isOutputFormat(f string) bool {
	for _, known := range OutputFormats {
		if strings.EqualFold(f, known) {
			return true
		}
	}
	return false
}

// Tolerance builds the tolerance shared by the balance calculator and the
// settlement engine.
func (c *MainConfig) Tolerance() ledger.Tolerance {
	return ledger.Tolerance{
		Share:  decimal.NewFromFloat(c.ShareTolerance),
		Amount: money.Amount(c.AmountTolerance),
	}
}

// Continue reports whether 'process' keeps going after a failed book.
func (c *MainConfig) Continue() bool {
	return c.ContinueOnError == nil || *c.ContinueOnError
}
