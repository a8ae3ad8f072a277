package report

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

func renderText(r *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Project: %s\n", r.Project)
	fmt.Fprintf(&buf, "Solver:  %s\n", r.Solver)
	fmt.Fprintf(&buf, "Run:     %s (%s)\n\n", r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	buf.WriteString("Balances\n")
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, line := range r.Balances() {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", line.Participant, line.Amount, line.Status)
	}
	if err := tw.Flush(); err != nil {
		return nil, err
	}

	buf.WriteString("\nTransactions\n")
	if len(r.Settlement) == 0 {
		buf.WriteString("  nothing to settle\n")
	}
	for i, t := range r.Settlement {
		fmt.Fprintf(&buf, "  %d. %s\n", i+1, t.Format(r.Precision))
	}

	fmt.Fprintf(&buf, "\n%d transaction(s), %s moved\n", len(r.Settlement), r.Volume())

	return buf.Bytes(), nil
}
