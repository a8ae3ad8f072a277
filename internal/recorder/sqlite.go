package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/logging"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/internal/settlement"
	_ "modernc.org/sqlite"
)

// ErrUnknownRun is returned for a run id that was never recorded.
var ErrUnknownRun = errors.New("unknown run")

// SQLiteRecorder persists settlement runs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger logging.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger logging.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Parallel 'process' workers share the file.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Debugf("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			project     TEXT NOT NULL,
			source      TEXT,
			solver      TEXT NOT NULL,
			precision   INTEGER NOT NULL,
			bills       INTEGER NOT NULL,
			volume      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS run_balances (
			run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			participant TEXT NOT NULL,
			amount      INTEGER NOT NULL,
			PRIMARY KEY (run_id, participant)
		)`,

		`CREATE TABLE IF NOT EXISTS run_transactions (
			run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq     INTEGER NOT NULL,
			payer   TEXT NOT NULL,
			payee   TEXT NOT NULL,
			amount  INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores a run with its balances and transactions in one
// database transaction.
func (r *SQLiteRecorder) RecordRun(run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := run.RecordedAt
	if at.IsZero() {
		at = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs
		(id, timestamp, project, source, solver, precision, bills, volume)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.ID, at.UnixNano(), run.Project, run.Source, string(run.Solver),
		run.Precision, run.Bills, int64(run.Settlement.Total()),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for _, p := range run.Balance.Participants() {
		if _, err := tx.Exec(`INSERT INTO run_balances (run_id, participant, amount) VALUES (?,?,?)`,
			run.ID, string(p), int64(run.Balance[p]),
		); err != nil {
			return fmt.Errorf("insert balance of %s: %w", p, err)
		}
	}

	for i, t := range run.Settlement {
		if _, err := tx.Exec(`INSERT INTO run_transactions (run_id, seq, payer, payee, amount) VALUES (?,?,?,?,?)`,
			run.ID, i, string(t.Payer), string(t.Payee), int64(t.Amount),
		); err != nil {
			return fmt.Errorf("insert transaction %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.Debugf("recorded run %s (%s, %d transactions)", run.ID, run.Project, len(run.Settlement))
	return nil
}

// Runs returns the most recent runs first. limit <= 0 returns all runs.
func (r *SQLiteRecorder) Runs(limit int) ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(`SELECT
		r.id, r.timestamp, r.project, r.source, r.solver, r.precision, r.bills, r.volume,
		(SELECT COUNT(*) FROM run_balances b WHERE b.run_id = r.id),
		(SELECT COUNT(*) FROM run_transactions t WHERE t.run_id = r.id)
		FROM runs r
		ORDER BY r.timestamp DESC, r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s      RunSummary
			ts     int64
			source sql.NullString
			solver string
			volume int64
		)
		if err := rows.Scan(&s.ID, &ts, &s.Project, &source, &solver, &s.Precision, &s.Bills, &volume, &s.Participants, &s.Transactions); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.RecordedAt = time.Unix(0, ts)
		s.Source = source.String
		s.Solver = settlement.Solver(solver)
		s.Volume = money.Amount(volume)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Transactions returns the settlement recorded for a run.
func (r *SQLiteRecorder) Transactions(runID string) (settlement.Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var exists int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	rows, err := r.db.Query(`SELECT payer, payee, amount FROM run_transactions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := settlement.Settlement{}
	for rows.Next() {
		var (
			payer, payee string
			amount       int64
		)
		if err := rows.Scan(&payer, &payee, &amount); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, settlement.Transaction{
			Payer:  ledger.Participant(payer),
			Payee:  ledger.Participant(payee),
			Amount: money.Amount(amount),
		})
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Debugf("closing sqlite recorder")
	return r.db.Close()
}
