package analytics

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText renders the report as aligned plain text
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "Overall")
	fmt.Fprintf(tw, "  total\t%d\n", r.Overall.Total)
	fmt.Fprintf(tw, "  correct_any\t%d\n", r.Overall.CorrectAny)
	fmt.Fprintf(tw, "  correct_all\t%d\n", r.Overall.CorrectAll)
	fmt.Fprintf(tw, "  incorrect_all\t%d\n", r.Overall.IncorrectAll)
	fmt.Fprintf(tw, "  truncated_all\t%d\n", r.Overall.TruncatedAll)
	fmt.Fprintf(tw, "  accuracy\t%.2f%%\n", r.Overall.Accuracy)
	fmt.Fprintf(tw, "  epochs\t%d\n", r.Epochs)

	if len(r.Comparisons) == 0 {
		fmt.Fprintln(tw, "\nFewer than two epochs, nothing to compare")
		return tw.Flush()
	}

	for _, c := range r.Comparisons {
		fmt.Fprintf(tw, "\nEpoch %d -> %d\n", c.Prev, c.Next)
		fmt.Fprintf(tw, "  repeated questions\t%d\n", c.Repeated)
		fmt.Fprintf(tw, "  repeated steps\t%d\n", c.RepeatedSteps)
		if c.MeanLengthPrev != nil && c.MeanLengthNext != nil {
			fmt.Fprintf(tw, "  mean response length\t%.2f\t%.2f\n", *c.MeanLengthPrev, *c.MeanLengthNext)
		}
		fmt.Fprintf(tw, "  average score\t%.4f\t%.4f\n", c.AvgScorePrev, c.AvgScoreNext)
		fmt.Fprintf(tw, "  improved / declined\t%d\t%d\n", c.Improved, c.Declined)
		fmt.Fprintf(tw, "  with a correct answer\t%.4f\t%.4f\n", c.CorrectRatioPrev, c.CorrectRatioNext)
		fmt.Fprintf(tw, "  all correct\t%d\t%d\n", c.AllCorrectPrev, c.AllCorrectNext)
		fmt.Fprintf(tw, "  all format violations\t%d\t%d\n", c.AllIncorrectPrev, c.AllIncorrectNext)
		fmt.Fprintf(tw, "  format violation ratio\t%.4f\t%.4f\n", c.FormatViolationPrev, c.FormatViolationNext)
	}
	return tw.Flush()
}
