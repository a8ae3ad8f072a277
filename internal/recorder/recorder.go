package recorder

import (
	"time"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/internal/settlement"
)

// Run is one settled book.
type Run struct {
	ID         string
	Project    string
	Source     string // book path the run was made from
	Solver     settlement.Solver
	Precision  int32
	RecordedAt time.Time
	Bills      int
	Balance    balance.Balance
	Settlement settlement.Settlement
}

// RunSummary is a row of the run history.
type RunSummary struct {
	ID           string
	Project      string
	Source       string
	Solver       settlement.Solver
	Precision    int32
	RecordedAt   time.Time
	Participants int
	Bills        int
	Transactions int
	Volume       money.Amount
}

// Recorder persists settlement runs.
type Recorder interface {
	RecordRun(run *Run) error
	Runs(limit int) ([]RunSummary, error)
	Transactions(runID string) (settlement.Settlement, error)
	Close() error
}
