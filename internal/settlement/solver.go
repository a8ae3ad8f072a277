package settlement

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/ledger"
)

// Solver names a settlement strategy.
type Solver string

const (
	SolverGreedy Solver = "greedy"
	SolverExact  Solver = "exact"
)

// Solvers lists the available strategies.
func Solvers() []Solver {
	return []Solver{SolverGreedy, SolverExact}
}

// ParseSolver resolves a solver name, case-insensitively. An empty name
// selects the greedy engine.
func ParseSolver(name string) (Solver, error) {
	switch Solver(strings.ToLower(strings.TrimSpace(name))) {
	case "", SolverGreedy:
		return SolverGreedy, nil
	case SolverExact:
		return SolverExact, nil
	default:
		return "", fmt.Errorf("%w: %q (expected greedy or exact)", ErrUnknownSolver, name)
	}
}

// Solve runs the named solver. limit only applies to the exact solver.
func Solve(solver Solver, b balance.Balance, tol ledger.Tolerance, limit int) (Settlement, error) {
	switch solver {
	case SolverGreedy, "":
		return CalculateFlow(b, tol)
	case SolverExact:
		return CalculateFlowExact(b, tol, limit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSolver, solver)
	}
}
