// =============================================================================
// Concourse - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (concourse)
//   ├── balanceCmd  (concourse balance <book>)
//   ├── settleCmd   (concourse settle <book>)
//   ├── validateCmd (concourse validate <book>)
//   ├── processCmd  (concourse process)
//   ├── projectCmd  (concourse project ...)
//   ├── historyCmd  (concourse history)
//   └── versionCmd  (concourse version)
//
// The root command owns the global flags (--config, --verbose). Commands call
// setup() to load the configuration and build the logger.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ginjaninja78/concourse/internal/config"
	"github.com/ginjaninja78/concourse/internal/logging"
	"github.com/ginjaninja78/concourse/internal/recorder"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// errReported is returned by commands that already printed their problems.
// Execute exits non-zero without printing it again.
var errReported = errors.New("reported")

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "concourse",
	Short: "Concourse - settle shared expenses with as few payments as possible",
	Long: `Concourse records who paid for what in a shared project and works out the
payments that settle everyone's balance.

A book is a CSV or XLSX sheet (a header of participants, then a payment row
and a share row per bill) or a project file in JSON or YAML.

Example Usage:
  concourse settle trip.csv                   # Print who pays whom
  concourse settle trip.csv --format xlsx --out trip.xlsx
  concourse validate trip.yaml                # Report every problem in a book
  concourse process                           # Settle every book in input_dir
  concourse project new trip.yaml Ann Bob Cat # Start a project file`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called once by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultPath,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// environment is what every command needs to run.
type environment struct {
	cfg    *config.MainConfig
	logger *zap.SugaredLogger
}

// setup loads the configuration and builds the logger.
//
// RETURNS:
//   - The environment. Call close when the command is done.
//   - An error if the configuration is invalid or the log file cannot be
//     opened.
func setup() (*environment, error) {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}

	logger, err := logging.New(level, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	logger.Debugf("Loaded configuration from %s", cfgFile)
	return &environment{cfg: cfg, logger: logger}, nil
}

func (e *environment) close() {
	// Sync on a console sink fails on some platforms; nothing to do about it.
	_ = e.logger.Sync()
}

// openRecorder opens the history database, or a no-op recorder when
// history_db is empty.
func (e *environment) openRecorder() (recorder.Recorder, error) {
	if strings.TrimSpace(e.cfg.HistoryDB) == "" {
		return recorder.NewNoopRecorder(), nil
	}

	rec, err := recorder.NewSQLiteRecorder(e.cfg.HistoryDB, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return rec, nil
}
