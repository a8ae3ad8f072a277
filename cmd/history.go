// =============================================================================
// Concourse - History Command
// =============================================================================
//
// COMMAND USAGE:
//   concourse history [--limit N]
//   concourse history <run-id>
//
// Lists the runs recorded in history_db, newest first, or the payments of
// one run.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded settlement runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 lists all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.close()

	if env.cfg.HistoryDB == "" {
		return errors.New("no history database configured: set history_db in the configuration")
	}

	rec, err := env.openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		txs, err := rec.Transactions(args[0])
		if err != nil {
			return err
		}
		runs, err := rec.Runs(0)
		if err != nil {
			return err
		}
		precision := env.cfg.Precision
		for _, r := range runs {
			if r.ID == args[0] {
				precision = r.Precision
			}
		}

		if len(txs) == 0 {
			fmt.Fprintln(out, "nothing to settle")
		}
		for i, t := range txs {
			fmt.Fprintf(out, "%d. %s\n", i+1, t.Format(precision))
		}
		return nil
	}

	runs, err := rec.Runs(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tRECORDED\tPROJECT\tSOLVER\tPARTICIPANTS\tBILLS\tPAYMENTS\tVOLUME")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			r.Project,
			r.Solver,
			r.Participants,
			r.Bills,
			r.Transactions,
			r.Volume.Format(r.Precision),
		)
	}
	return tw.Flush()
}
