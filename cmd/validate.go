// =============================================================================
// Concourse - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   concourse validate <book> [--strict] [--log PATH]
//
// Reports every problem in a book instead of stopping at the first one:
// share sums, unknown participants and negative payments are errors; unused
// participants and empty bills are warnings. The command exits non-zero when
// an error is found, or a warning with --strict.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/ginjaninja78/concourse/internal/book"
	"github.com/ginjaninja78/concourse/internal/validation"
	"github.com/spf13/cobra"
)

var (
	validateStrict bool
	validateLog    string
)

var validateCmd = &cobra.Command{
	Use:   "validate <book>",
	Short: "Report every validation problem in a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as errors")
	validateCmd.Flags().StringVar(&validateLog, "log", "", "Also write the findings to this file")
}

func runValidate(cmd *cobra.Command, bookPath string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	var result *validation.ValidationResult

	l, err := book.Load(bookPath, env.cfg.Book, env.cfg.Precision)
	if err != nil {
		// A book that cannot be read is reported like any other finding.
		finding := validation.FromError(err)
		result = &validation.ValidationResult{Errors: []*validation.ValidationError{finding}, ErrorCount: 1}
	} else {
		options := validation.DefaultValidationOptions()
		options.Tolerance = env.cfg.Tolerance()
		options.TreatWarningsAsErrors = validateStrict
		result = validation.NewValidatorWithOptions(options).ValidateAll(l)
		env.logger.Debugf("Validated %d bill(s) and %d participant(s)", result.BillsValidated, result.ParticipantsValidated)
	}

	fmt.Fprintln(cmd.OutOrStdout(), validation.FormatErrors(result.Errors))

	if validateLog != "" {
		if err := validation.WriteErrorLog(result.Errors, validateLog); err != nil {
			return fmt.Errorf("failed to write %s: %w", validateLog, err)
		}
		env.logger.Infof("Findings written to %s", validateLog)
	}

	if !result.IsValid {
		return errReported
	}
	return nil
}
