// =============================================================================
// Concourse - Project Commands
// =============================================================================
//
// Edit a project from the command line. The file may be any book format;
// JSON and YAML project files keep the full ledger, CSV and XLSX books are
// rewritten in the grid layout.
//
// COMMAND USAGE:
//   concourse project new <file> [participant...] [--name N] [--precision P]
//   concourse project add-participant <file> <participant>...
//   concourse project remove-participant <file> <participant>
//   concourse project add-bill <file> <bill> --pay Ann=60 [--share Ann=0.5 | --equal]
//   concourse project remove-bill <file> <bill>
//   concourse project show <file>
//
// Every edit is checked before the file is written: a bill whose shares do
// not add up, or that names an unknown participant, is refused.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ginjaninja78/concourse/internal/balance"
	"github.com/ginjaninja78/concourse/internal/book"
	"github.com/ginjaninja78/concourse/internal/ledger"
	"github.com/ginjaninja78/concourse/internal/money"
	"github.com/ginjaninja78/concourse/internal/validation"
	"github.com/ginjaninja78/concourse/pkg/utils"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	projectName      string
	projectPrecision int32
	billPayments     []string
	billShares       []string
	billEqual        bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create and edit projects",
}

var projectNewCmd = &cobra.Command{
	Use:   "new <file> [participant...]",
	Short: "Create a project file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectNew(cmd, args[0], args[1:])
	},
}

var projectAddParticipantCmd = &cobra.Command{
	Use:   "add-participant <file> <participant>...",
	Short: "Add participants to a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editProject(args[0], func(l *ledger.Ledger) error {
			for _, p := range args[1:] {
				if err := l.AddParticipant(ledger.Participant(strings.TrimSpace(p))); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var projectRemoveParticipantCmd = &cobra.Command{
	Use:   "remove-participant <file> <participant>",
	Short: "Remove a participant who is on no bill",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editProject(args[0], func(l *ledger.Ledger) error {
			return l.RemoveParticipant(ledger.Participant(args[1]))
		})
	},
}

var projectAddBillCmd = &cobra.Command{
	Use:   "add-bill <file> <bill>",
	Short: "Add a bill to a project",
	Long: `Add a bill to a project.

Payments are given as participant=amount. Shares are given as
participant=fraction (0.25) or participant=percentage (25%), or --equal splits
the bill evenly across every participant of the project.

  concourse project add-bill trip.yaml dinner --pay Ann=90 --equal
  concourse project add-bill trip.yaml taxi --pay Bob=20 --share Ann=50% --share Bob=50%`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editProject(args[0], func(l *ledger.Ledger) error {
			return addBill(l, args[1], billPayments, billShares, billEqual)
		})
	},
}

var projectRemoveBillCmd = &cobra.Command{
	Use:   "remove-bill <file> <bill>",
	Short: "Remove a bill from a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editProject(args[0], func(l *ledger.Ledger) error {
			return l.RemoveBill(args[1])
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print the participants, bills and balances of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProjectShow(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(
		projectNewCmd,
		projectAddParticipantCmd,
		projectRemoveParticipantCmd,
		projectAddBillCmd,
		projectRemoveBillCmd,
		projectShowCmd,
	)

	projectNewCmd.Flags().StringVar(&projectName, "name", "", "Project name (default: the file name)")
	projectNewCmd.Flags().Int32Var(&projectPrecision, "precision", -1, "Minor-unit digits of amounts (default from config)")

	projectAddBillCmd.Flags().StringArrayVar(&billPayments, "pay", nil, "Payment as participant=amount (repeatable)")
	projectAddBillCmd.Flags().StringArrayVar(&billShares, "share", nil, "Share as participant=fraction or participant=percent% (repeatable)")
	projectAddBillCmd.Flags().BoolVar(&billEqual, "equal", false, "Split the bill evenly across all participants")
	projectAddBillCmd.MarkFlagsMutuallyExclusive("share", "equal")
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func runProjectNew(cmd *cobra.Command, path string, participants []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	if !book.IsBook(path) {
		return fmt.Errorf("unsupported project file %q: expected one of %s", path, strings.Join(book.Extensions, ", "))
	}
	if utils.FileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}

	name := projectName
	if name == "" {
		name = book.ProjectName(path)
	}
	precision := projectPrecision
	if precision < 0 {
		precision = env.cfg.Precision
	}

	members := make([]ledger.Participant, len(participants))
	for i, p := range participants {
		members[i] = ledger.Participant(strings.TrimSpace(p))
	}

	l, err := ledger.New(name, precision, members...)
	if err != nil {
		return err
	}

	if err := book.Save(path, l, env.cfg.Book); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created project %q with %d participant(s) in %s\n", name, len(members), path)
	return nil
}

// editProject loads a project, applies edit and saves it back if the
// result introduces no validation error.
func editProject(path string, edit func(l *ledger.Ledger) error) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	l, err := book.Load(path, env.cfg.Book, env.cfg.Precision)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s does not exist, create it with 'concourse project new'", path)
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	tol := env.cfg.Tolerance()
	known := make(map[string]bool)
	for _, problem := range l.ValidateAll(tol) {
		known[problem.Error()] = true
	}

	if err := edit(l); err != nil {
		return err
	}

	for _, problem := range l.ValidateAll(tol) {
		if !known[problem.Error()] {
			return fmt.Errorf("edit rejected: %w", problem)
		}
	}

	if err := book.Save(path, l, env.cfg.Book); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	env.logger.Infof("Saved %s", path)
	return nil
}

func runProjectShow(cmd *cobra.Command, path string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	l, err := book.Load(path, env.cfg.Book, env.cfg.Precision)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	names := make([]string, len(l.Participants))
	for i, p := range l.Participants {
		names[i] = string(p)
	}

	fmt.Fprintf(out, "Project:      %s\n", l.Name)
	fmt.Fprintf(out, "Precision:    %d\n", l.Precision)
	fmt.Fprintf(out, "Participants: %s\n", strings.Join(names, ", "))

	fmt.Fprintf(out, "\nBills (%d)\n", len(l.Bills))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, id := range l.BillIDs() {
		b := l.Bills[id]
		fmt.Fprintf(tw, "  %s\ttotal %s\t\t\n", id, b.Total().Format(l.Precision))
		for _, p := range b.Participants() {
			r := b.Records[p]
			fmt.Fprintf(tw, "    %s\tpaid %s\tshare %s\n", p, r.Payment.Format(l.Precision), r.Share.String())
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	findings := validation.Validate(l, env.cfg.Tolerance())
	if len(findings) > 0 {
		fmt.Fprintf(out, "\n%s", validation.FormatErrors(findings))
	}

	b, err := balance.Calculate(l, env.cfg.Tolerance())
	if err != nil {
		fmt.Fprintln(out, "\nBalances are not available until the errors above are fixed.")
		return nil
	}

	fmt.Fprintln(out, "\nBalances")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, p := range b.Participants() {
		fmt.Fprintf(tw, "  %s\t%s\n", p, b[p].Format(l.Precision))
	}
	return tw.Flush()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// addBill builds a bill from participant=value assignments and adds it.
func addBill(l *ledger.Ledger, id string, payments, shares []string, equal bool) error {
	if !equal && len(shares) == 0 {
		return errors.New("give the shares with --share or split the bill with --equal")
	}

	paid := make(map[ledger.Participant]money.Amount, len(payments))
	for _, assignment := range payments {
		p, value, err := splitAssignment(assignment)
		if err != nil {
			return err
		}
		amount, err := money.Parse(value, l.Precision)
		if err != nil {
			return fmt.Errorf("payment of %s: %w", p, err)
		}
		paid[p] += amount
	}

	var bill *ledger.Bill
	if equal {
		bill = ledger.NewEqualBill(id, l.Participants, paid)
		for p, amount := range paid {
			if _, ok := bill.Records[p]; !ok {
				// An outsider keeps the payment so validation can reject it.
				bill.Set(p, amount, decimal.Zero)
			}
		}
	} else {
		bill = ledger.NewBill(id)
		owners := make(map[ledger.Participant]decimal.Decimal, len(shares))
		for _, assignment := range shares {
			p, value, err := splitAssignment(assignment)
			if err != nil {
				return err
			}
			share, err := parseShare(value)
			if err != nil {
				return fmt.Errorf("share of %s: %w", p, err)
			}
			owners[p] = share
		}

		members := make(map[ledger.Participant]struct{}, len(paid)+len(owners))
		for p := range paid {
			members[p] = struct{}{}
		}
		for p := range owners {
			members[p] = struct{}{}
		}
		ordered := make([]ledger.Participant, 0, len(members))
		for p := range members {
			ordered = append(ordered, p)
		}
		ledger.SortParticipants(ordered)

		for _, p := range ordered {
			bill.Set(p, paid[p], owners[p])
		}
	}

	return l.AddBill(bill)
}

// splitAssignment splits "participant=value".
func splitAssignment(s string) (ledger.Participant, string, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.TrimSpace(value) == "" {
		return "", "", fmt.Errorf("expected participant=value, got %q", s)
	}
	return ledger.Participant(name), strings.TrimSpace(value), nil
}

// parseShare reads "0.25" as a fraction and "25%" as a percentage.
func parseShare(s string) (decimal.Decimal, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		d, err := decimal.NewFromString(strings.TrimSpace(pct))
		if err != nil {
			return decimal.Zero, err
		}
		return d.Div(decimal.NewFromInt(100)), nil
	}
	return decimal.NewFromString(s)
}
