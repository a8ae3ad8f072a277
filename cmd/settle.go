// =============================================================================
// Concourse - Balance and Settle Commands
// =============================================================================
//
// COMMAND USAGE:
//   concourse balance <book>
//   concourse settle <book> [--solver greedy|exact] [--format F] [--out PATH]
//
// Both commands load the book and refuse to go on if it fails validation;
// 'concourse validate' lists every problem.
//
// 'settle' prints the report on stdout unless --out is given. The format
// defaults to the extension of --out, then to output_format. Successful
// settlements are recorded in the history database when one is configured.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/book"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/pipeline"
	"github.com/ginjaninja78/concourse/internal/recorder"
	"github.com/ginjaninja78/concourse/internal/report"
	"github.com/ginjaninja78/concourse/internal/settlement"
	"github.com/ginjaninja78/concourse/internal/validation"
	"github.com/ginjaninja78/concourse/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	settleSolver string
	settleFormat string
	settleOut    string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var balanceCmd = &cobra.Command{
	Use:   "balance <book>",
	Short: "Print the balance of every participant",
	Long: `Print what every participant is owed (positive) or owes (negative) once
all bills of the book are accounted for.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBalance(cmd, args[0])
	},
}

var settleCmd = &cobra.Command{
	Use:   "settle <book>",
	Short: "Work out the payments that settle a book",
	Long: `Calculate the balances of a book and the list of payments that brings every
balance back to zero.

The greedy solver repeatedly matches the largest creditor with the largest
debtor. The exact solver finds the fewest payments and is limited to
exact_limit participants with a non-zero balance.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSettle(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(settleCmd)

	settleCmd.Flags().StringVar(&settleSolver, "solver", "", "Settlement solver: greedy or exact (default from config)")
	settleCmd.Flags().StringVar(&settleFormat, "format", "", "Report format: "+strings.Join(report.Formats, ", "))
	settleCmd.Flags().StringVarP(&settleOut, "out", "o", "", "Write the report to this file instead of stdout")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runBalance(cmd *cobra.Command, bookPath string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	l, err := loadValidLedger(env, bookPath)
	if err != nil {
		return err
	}

	b, err := balance.Calculate(l, env.cfg.Tolerance())
	if err != nil {
		return fmt.Errorf("failed to calculate balances: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project: %s\n\n", l.Name)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, line := range report.New(l.Name, l.Precision, "", b, nil, nil).Balances() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", line.Participant, line.Amount, line.Status)
	}
	return tw.Flush()
}

func runSettle(cmd *cobra.Command, bookPath string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	opts, err := pipeline.SettleOptionsFrom(env.cfg)
	if err != nil {
		return err
	}
	if settleSolver != "" {
		if opts.Solver, err = settlement.ParseSolver(settleSolver); err != nil {
			return err
		}
	}

	format := resolveFormat(settleFormat, settleOut, env.cfg.OutputFormat)
	if settleOut == "" && (format == "xlsx" || format == "pdf") {
		return fmt.Errorf("format %s is binary: use --out to write it to a file", format)
	}

	l, err := loadValidLedger(env, bookPath)
	if err != nil {
		return err
	}

	rep, err := pipeline.Settle(l, opts)
	if err != nil {
		return err
	}

	data, err := report.Render(format, rep)
	if err != nil {
		return err
	}

	if settleOut == "" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	} else {
		if err := utils.WriteFileAtomic(settleOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		env.logger.Infof("Wrote %s report to %s", format, settleOut)
	}

	// The report is already out; a history failure does not fail the command.
	rec, err := env.openRecorder()
	if err != nil {
		env.logger.Warnf("Failed to record run %s: %v", rep.RunID, err)
		return nil
	}
	defer rec.Close()

	err = rec.RecordRun(&recorder.Run{
		ID:         rep.RunID,
		Project:    rep.Project,
		Source:     bookPath,
		Solver:     rep.Solver,
		Precision:  rep.Precision,
		RecordedAt: rep.GeneratedAt,
		Bills:      len(l.Bills),
		Balance:    rep.Balance,
		Settlement: rep.Settlement,
	})
	if err != nil {
		env.logger.Warnf("Failed to record run %s: %v", rep.RunID, err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadValidLedger loads a book and fails on its first validation error.
// Warnings are logged.
func loadValidLedger(env *environment, bookPath string) (*ledger.Ledger, error) {
	l, err := book.Load(bookPath, env.cfg.Book, env.cfg.Precision)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", bookPath, err)
	}

	result := validation.NewValidator(env.cfg.Tolerance()).ValidateAll(l)
	for _, finding := range result.Errors {
		if finding.Severity == validation.SeverityWarning {
			env.logger.Warnf("%s: %s", filepath.Base(bookPath), finding.Message)
		}
	}
	if !result.IsValid {
		return nil, fmt.Errorf("%s has %d validation error(s), run 'concourse validate' for the list: %w",
			bookPath, result.ErrorCount, result.Err())
	}

	return l, nil
}

// resolveFormat picks the report format: the flag, then the extension of
// the output file, then the configured default.
func resolveFormat(flag, out, fallback string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
	if ext == "txt" {
		return "text"
	}
	for _, f := range report.Formats {
		if ext == f {
			return f
		}
	}

	return strings.ToLower(fallback)
}
