// =============================================================================
// Concourse - Settlement Pipeline
// =============================================================================
//
// Orchestrates the whole run for a single book, from loading the file to
// archiving it.
//
// PIPELINE:
//   1. Load the book (CSV, XLSX or project file)
//   2. Validate the ledger and collect every finding
//   3. Calculate the balances
//   4. Solve the settlement flow
//   5. Verify the settlement against the balances
//   6. Render the report
//   7. Write the report file
//   8. Record the run in the history database
//   9. Archive the book
//
// Steps 8 and 9 are bookkeeping: a failure there is logged and the run
// still succeeds.
//
// CONCURRENCY:
//   A Processor holds no per-book state, so one instance can run several
//   books concurrently. The recorder serialises its own writes.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/book"
	"github.com/ginjaninja78/concourse/internal/config"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/logging"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/internal/recorder"
	"github.com/ginjaninja78/concourse/internal/report"
	"github.com/ginjaninja78/concourse/internal/settlement"
	"github.com/ginjaninja78/concourse/internal/validation"
	"github.com/ginjaninja78/concourse/pkg/utils"
)

// ErrValidation is wrapped by the error of a run whose book failed
// validation.
var ErrValidation = errors.New("validation failed")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single book.
type Result struct {
	// FilePath is the book that was processed.
	FilePath string

	// OutputFile is the report written for the book. Empty on failure.
	OutputFile string

	// ArchivePath is where the book was moved. Equals FilePath when
	// archiving is off.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Findings holds the validation errors and warnings, or the load error.
	Findings []*validation.ValidationError

	// Report is the settlement that was rendered. Nil on failure.
	Report *report.Report

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	Participants     int
	Bills            int
	Transactions     int
	Volume           money.Amount
	ValidationErrors int
	Warnings         int
	ProcessingTime   time.Duration
}

// =============================================================================
// SETTLE
// =============================================================================

// SettleOptions selects the settlement strategy.
type SettleOptions struct {
	Solver     settlement.Solver
	Tolerance  ledger.Tolerance
	ExactLimit int
}

// SettleOptionsFrom reads the settlement options from the configuration.
func SettleOptionsFrom(cfg *config.MainConfig) (SettleOptions, error) {
	solver, err := settlement.ParseSolver(cfg.Solver)
	if err != nil {
		return SettleOptions{}, err
	}
	return SettleOptions{Solver: solver, Tolerance: cfg.Tolerance(), ExactLimit: cfg.ExactLimit}, nil
}

// Settle runs balance calculation, solving and verification for a ledger
// and returns the report describing the result.
func Settle(l *ledger.Ledger, opts SettleOptions) (*report.Report, error) {
	b, err := balance.Calculate(l, opts.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate balances: %w", err)
	}

	s, err := settlement.Solve(opts.Solver, b, opts.Tolerance, opts.ExactLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to settle: %w", err)
	}

	if err := settlement.Verify(b, s, opts.Tolerance); err != nil {
		return nil, fmt.Errorf("settlement check failed: %w", err)
	}

	bills, err := balance.Breakdown(l, opts.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("failed to break down bills: %w", err)
	}

	solver := opts.Solver
	if solver == "" {
		solver = settlement.SolverGreedy
	}
	return report.New(l.Name, l.Precision, solver, b, s, bills), nil
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor runs the pipeline for books.
type Processor struct {
	cfg      *config.MainConfig
	settle   SettleOptions
	files    *utils.FileManager
	recorder recorder.Recorder
	logger   logging.Logger

	// OutputPath overrides the generated report name. Only meaningful when
	// a single book is processed.
	OutputPath string
}

// New creates a Processor.
//
// PARAMETERS:
//   - cfg: The application configuration.
//   - rec: Where runs are recorded. Nil disables history.
//   - logger: The logger.
//
// RETURNS:
//   - The processor.
//   - An error if the configured solver is unknown.
func New(cfg *config.MainConfig, rec recorder.Recorder, logger logging.Logger) (*Processor, error) {
	opts, err := SettleOptionsFrom(cfg)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.ArchiveDir)
	files.ArchiveOnSuccess = cfg.ArchiveOnSuccess

	return &Processor{
		cfg:      cfg,
		settle:   opts,
		files:    files,
		recorder: rec,
		logger:   logger,
	}, nil
}

// Files returns the file manager used for discovery and archiving.
func (p *Processor) Files() *utils.FileManager {
	return p.files
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for one book. It never panics on bad input; the
// outcome, including failures, is described by the Result.
func (p *Processor) Run(ctx context.Context, bookPath string) Result {
	startTime := time.Now()
	result := Result{FilePath: bookPath, ArchivePath: bookPath}

	fail := func(err error) Result {
		result.Error = err
		result.Stats.ProcessingTime = time.Since(startTime)
		p.logger.Errorf("%s: %v", filepath.Base(bookPath), err)
		return result
	}

	// =========================================================================
	// STEP 1: LOAD BOOK
	// =========================================================================

	p.logger.Infof("Processing book: %s", bookPath)

	l, err := book.Load(bookPath, p.cfg.Book, p.cfg.Precision)
	if err != nil {
		result.Findings = []*validation.ValidationError{validation.FromError(err)}
		result.Stats.ValidationErrors = 1
		return fail(fmt.Errorf("failed to load book: %w", err))
	}

	result.Stats.Participants = len(l.Participants)
	result.Stats.Bills = len(l.Bills)
	p.logger.Debugf("Loaded %q: %d participants, %d bills", l.Name, len(l.Participants), len(l.Bills))

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// =========================================================================
	// STEP 2: VALIDATE
	// =========================================================================

	validated := validation.NewValidator(p.settle.Tolerance).ValidateAll(l)
	result.Findings = validated.Errors
	result.Stats.ValidationErrors = validated.ErrorCount
	result.Stats.Warnings = validated.WarningCount

	for _, finding := range validated.Errors {
		if finding.Severity == validation.SeverityWarning {
			p.logger.Warnf("%s: %s", filepath.Base(bookPath), finding.Message)
		} else {
			p.logger.Debugf("%s: %s", filepath.Base(bookPath), finding.Message)
		}
	}

	if !validated.IsValid {
		return fail(fmt.Errorf("%w with %d error(s): %w", ErrValidation, validated.ErrorCount, validated.Err()))
	}

	// =========================================================================
	// STEPS 3-5: BALANCE, SOLVE, VERIFY
	// =========================================================================

	rep, err := Settle(l, p.settle)
	if err != nil {
		return fail(err)
	}

	result.Report = rep
	result.Stats.Transactions = len(rep.Settlement)
	result.Stats.Volume = rep.Settlement.Total()
	p.logger.Debugf("Settled %q with %d transaction(s) using %s", l.Name, len(rep.Settlement), rep.Solver)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// =========================================================================
	// STEPS 6-7: RENDER AND WRITE REPORT
	// =========================================================================

	data, err := report.Render(p.cfg.OutputFormat, rep)
	if err != nil {
		return fail(fmt.Errorf("failed to render report: %w", err))
	}

	outputPath := p.OutputPath
	if outputPath == "" {
		name := utils.GenerateOutputFileName(p.cfg.OutputNameFormat, report.Extension(p.cfg.OutputFormat), map[string]string{"project": l.Name})
		outputPath = filepath.Join(p.cfg.OutputDir, name)
	}

	if err := utils.WriteFileAtomic(outputPath, data, 0o644); err != nil {
		return fail(fmt.Errorf("failed to write output: %w", err))
	}

	result.OutputFile = outputPath
	p.logger.Infof("Wrote report to: %s", outputPath)

	// =========================================================================
	// STEP 8: RECORD HISTORY
	// =========================================================================

	run := &recorder.Run{
		ID:         rep.RunID,
		Project:    rep.Project,
		Source:     bookPath,
		Solver:     rep.Solver,
		Precision:  rep.Precision,
		RecordedAt: rep.GeneratedAt,
		Bills:      len(l.Bills),
		Balance:    rep.Balance,
		Settlement: rep.Settlement,
	}
	if err := p.recorder.RecordRun(run); err != nil {
		p.logger.Warnf("Failed to record run %s: %v", rep.RunID, err)
	}

	// =========================================================================
	// STEP 9: ARCHIVE
	// =========================================================================

	archived, err := p.files.ArchiveBook(bookPath)
	if err != nil {
		p.logger.Warnf("Failed to archive %s: %v", bookPath, err)
	} else {
		result.ArchivePath = archived
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)
	return result
}
