package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"e621dl/pkg/pipeline"

	"github.com/dustin/go-humanize"
)

// maxFailedIDs bounds the failed post ids listed per entry
const maxFailedIDs = 10

// PrintSummary writes the per-entry table and run totals of rep
func PrintSummary(w io.Writer, rep *pipeline.Report) {
	if w == nil {
		w = Out
	}

	fmt.Fprintf(w, "\n%s %s\n\n", Bold("Run"), Dim(rep.RunID))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTRY\tSTATUS\tPLANNED\tRETRIEVED\tBLACKLISTED\tINVALID\tDONE\tEXISTING\tFAILED")
	for _, e := range rep.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			e.Label, e.Status, e.Planned, e.Retrieved, e.Blacklisted, e.Invalid,
			e.Completed-e.SkippedExisting, e.SkippedExisting, e.Failed)
	}
	tw.Flush()

	for _, e := range rep.Entries {
		switch {
		case e.Status != pipeline.EntryOK && e.Err != nil:
			fmt.Fprintf(w, "%s %s: %v\n", Yellow("skipped"), e.Label, e.Err)
		case len(e.FailedPosts) > 0:
			fmt.Fprintf(w, "%s %s: posts %s\n", Red("failed"), e.Label, listIDs(e.FailedPosts))
		}
	}

	t := rep.Totals()
	fmt.Fprintf(w, "\n%s %d/%d entries ok • %s files (%s existing) • %s",
		Green("✓"),
		t.OK, t.Entries,
		humanize.Comma(int64(t.Completed)),
		humanize.Comma(int64(t.SkippedExisting)),
		humanize.Bytes(uint64(t.Bytes)),
	)
	if t.Failed > 0 {
		fmt.Fprintf(w, " • %s", Red(fmt.Sprintf("%d failed", t.Failed)))
	}
	if t.Cancelled > 0 {
		fmt.Fprintf(w, " • %s", Yellow(fmt.Sprintf("%d not started", t.Cancelled)))
	}
	fmt.Fprintf(w, " • %s\n", formatDuration(rep.Duration()))

	if rep.Cancelled {
		fmt.Fprintln(w, Yellow("Run was interrupted; files already written were kept."))
	}
}

func listIDs(ids []int) string {
	parts := make([]string, 0, maxFailedIDs+1)
	for i, id := range ids {
		if i == maxFailedIDs {
			parts = append(parts, fmt.Sprintf("and %d more", len(ids)-maxFailedIDs))
			break
		}
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ", ")
}
