package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/vbonduro/obrafix/internal/report"
	"github.com/vbonduro/obrafix/internal/service"
)

const dryRunNote = "dry run: nothing was written, pass --apply to write"

func printLocalRefs(w io.Writer, reports []service.LocalRefReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "no local references found")
		return
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s: %d local references\n", r.Obra, len(r.Hits))
		for _, h := range r.Hits {
			fmt.Fprintf(w, "  %s  %s\n", h.Path, h.Value)
		}
	}
}

func printNormalize(w io.Writer, reports []service.NormalizeReport, apply bool) {
	for _, r := range reports {
		if len(r.Columns) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", r.Obra)
		for _, c := range r.Columns {
			state := "unchanged"
			switch {
			case c.Held:
				state = "held, fix malformed values first"
			case c.Changed && r.Applied:
				state = "written"
			case c.Changed:
				state = "would change"
			}
			fmt.Fprintf(w, "  %s: %d records, %d pending, %d malformed (%s)\n",
				c.Column, c.Records, c.Pending, c.Malformed, state)
		}
	}
	if !apply {
		fmt.Fprintln(w, dryRunNote)
	}
}

func printReconstruct(w io.Writer, rep *service.ReconstructReport, apply bool) error {
	fmt.Fprintf(w, "obra %s: %d objects listed\n", rep.Obra, len(rep.Objects))
	if err := rep.Plan.WriteAudit(w); err != nil {
		return fmt.Errorf("failed to write audit: %w", err)
	}
	if !apply {
		fmt.Fprintln(w, dryRunNote)
		return nil
	}
	if !rep.Applied {
		fmt.Fprintln(w, "nothing new to merge")
		return nil
	}

	cols := make([]string, 0, len(rep.Merged))
	for col := range rep.Merged {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		fmt.Fprintf(w, "merged %s: +%d\n", col, rep.Merged[col])
	}
	return nil
}

// printCaptured closes a run with the anomalies and failures it reported.
func printCaptured(w io.Writer, c *report.Collector) {
	anomalies, errs := c.Anomalies(), c.Errors()
	if len(anomalies) == 0 && len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "reported: %d photo anomalies, %d errors\n", len(anomalies), len(errs))
	for _, a := range anomalies {
		fmt.Fprintf(w, "  %s %s %s: %s\n", a.Obra, a.Path, a.Kind, a.Reason)
	}
}
