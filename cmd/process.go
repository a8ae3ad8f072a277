// =============================================================================
// Concourse - Process Command
// =============================================================================
//
// This file defines the 'process' command, which settles every book found in
// the input directory.
//
// COMMAND USAGE:
//   concourse process [book...]
//
// Without arguments the input directory is scanned for books (.csv, .xlsx,
// .json, .yaml, .yml). Hidden files are skipped.
//
// PROCESSING PIPELINE:
//   1. Load configuration and open the history database
//   2. Discover books in the input directory
//   3. For each book (concurrently, at most max_concurrency at a time):
//      load, validate, settle, write the report, record, archive
//   4. Write the error log for failed books
//   5. Write the summary log and print the summary
//
// With continue_on_error set to false the first failure stops books that
// have not started yet.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/concourse/internal/book"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/pipeline"
	"github.com/ginjaninja78/concourse/internal/validation"
	"github.com/ginjaninja78/concourse/pkg/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process [book...]",
	Short: "Settle every book in the input directory",
	Long: `The process command scans the input directory for books and settles each of
them, writing one report per book to the output directory.

Books are processed concurrently. Each book is processed independently, and
a failed book does not affect the others unless continue_on_error is false.

On success:
  - The report is placed in the output directory
  - The run is recorded in the history database (history_db)
  - The book is moved to the archive directory (archive_on_success)

On error:
  - The problems are written to an error log in the output directory
  - The book remains in the input directory`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()
	cfg := env.cfg

	rec, err := env.openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	proc, err := pipeline.New(cfg, rec, env.logger)
	if err != nil {
		return err
	}

	files := proc.Files()
	if err := files.EnsureDirectories(); err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: DISCOVER BOOKS
	// =========================================================================

	books := args
	if len(books) == 0 {
		books, err = files.DiscoverBooks(book.Extensions)
		if err != nil {
			return fmt.Errorf("failed to discover books: %w", err)
		}
	}

	if len(books) == 0 {
		fmt.Fprintf(out, "No books found in %s\n", cfg.InputDir)
		return nil
	}

	env.logger.Infof("Found %d book(s) to process", len(books))

	// =========================================================================
	// STEP 3: PROCESS BOOKS CONCURRENTLY
	// =========================================================================

	results := make([]pipeline.Result, len(books))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.MaxConcurrency)

	for i, path := range books {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = pipeline.Result{FilePath: path, ArchivePath: path, Error: err}
				return nil
			}

			results[i] = proc.Run(ctx, path)
			if !results[i].Success && !cfg.Continue() {
				return results[i].Error
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		env.logger.Warnf("Stopped after the first failure: %v", err)
	}

	// =========================================================================
	// STEP 4: COLLECT RESULTS
	// =========================================================================

	summary := utils.ProcessingSummary{
		RunID:      uuid.NewString(),
		StartTime:  startTime,
		TotalFiles: len(books),
	}
	var logEntries []utils.ErrorLogEntry

	for _, result := range results {
		name := filepath.Base(result.FilePath)
		summary.ValidationErrors += result.Stats.ValidationErrors

		if result.Success {
			summary.SuccessfulFiles++
			summary.TotalBills += result.Stats.Bills
			summary.TotalTransactions += result.Stats.Transactions
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:    result.FilePath,
				OutputFile:   result.OutputFile,
				ArchivePath:  result.ArchivePath,
				Participants: result.Stats.Participants,
				Bills:        result.Stats.Bills,
				Transactions: result.Stats.Transactions,
				Volume:       result.Report.Volume(),
				ProcessTime:  result.Stats.ProcessingTime,
			})
			fmt.Fprintf(out, "  ✓ %s -> %s (%d transaction(s))\n", name, result.OutputFile, result.Stats.Transactions)
			continue
		}

		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: result.Error.Error(),
			ErrorCode:    string(ledger.CodeOf(result.Error)),
		})
		fmt.Fprintf(out, "  ✗ %s: %v\n", name, result.Error)

		findings := result.Findings
		if len(findings) == 0 {
			findings = []*validation.ValidationError{validation.FromError(result.Error)}
		}
		logEntries = append(logEntries, validation.ToLogEntries(name, findings)...)
	}

	summary.EndTime = time.Now()

	// =========================================================================
	// STEP 5: WRITE LOGS AND PRINT SUMMARY
	// =========================================================================

	if errorLog, err := utils.WriteErrorLog(logEntries, cfg.OutputDir); err != nil {
		env.logger.Errorf("Failed to write error log: %v", err)
	} else if errorLog != "" {
		fmt.Fprintf(out, "\nErrors have been logged to %s\n", errorLog)
	}

	summaryLog, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
	if err != nil {
		env.logger.Errorf("Failed to write summary log: %v", err)
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total books:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Failed:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Transactions:    %d\n", summary.TotalTransactions)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))
	if summaryLog != "" {
		fmt.Fprintf(out, "Summary:         %s\n", summaryLog)
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d book(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}
