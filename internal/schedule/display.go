package schedule

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// Print writes the set as a table ordered by time of day.
func Print(w io.Writer, s Set) error {
	rows := s.Clone()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].OriginalTimeOfDay < rows[j].OriginalTimeOfDay
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTIME\tNEXT RUN\tDIRECTION\tCOUNT\tAMOUNT\tEXPIRY\tRETRY\tCOMMENT")
	for i, d := range rows {
		retry := "default"
		if d.RetryBudget != nil {
			retry = d.RetryBudget.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			i+1,
			d.OriginalTimeOfDay,
			d.TriggerTime.Format("01-02 15:04:05.000"),
			d.Direction.Label(),
			d.Count,
			d.Amount,
			d.TradingDuration,
			retry,
			d.Comment,
		)
	}
	fmt.Fprintf(tw, "\ntotal: %d trades\n", len(rows))
	return tw.Flush()
}
