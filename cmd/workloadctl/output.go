package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kbukum/workloadops/component"
	"github.com/kbukum/workloadops/tracelog"
	"github.com/kbukum/workloadops/workload"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	}
	return fmt.Errorf("--output must be %q or %q, got %q", outputText, outputJSON, format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printState(w io.Writer, format string, s workload.State) error {
	if format == outputJSON {
		return writeJSON(w, s)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "REF\t%s\n", s.Ref)
	fmt.Fprintf(tw, "PHASE\t%s\n", s.Phase)
	fmt.Fprintf(tw, "OBSERVED\t%s\n", s.LastObservedAt.Format(time.RFC3339))
	for _, k := range slices.Sorted(maps.Keys(s.Detail)) {
		fmt.Fprintf(tw, "%s\t%s\n", strings.ToUpper(k), s.Detail[k])
	}
	return tw.Flush()
}

func printStates(w io.Writer, format string, states []workload.State) error {
	if format == outputJSON {
		if states == nil {
			states = []workload.State{}
		}
		return writeJSON(w, states)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REF\tPHASE\tOBSERVED")
	for _, s := range states {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Ref, s.Phase, s.LastObservedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func printHealth(w io.Writer, format string, hs []component.Health) error {
	if format == outputJSON {
		return writeJSON(w, hs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tSTATUS\tMESSAGE")
	for _, h := range hs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Name, h.Status, h.Message)
	}
	return tw.Flush()
}

func printRecords(w io.Writer, format string, recs []tracelog.Record) error {
	if format == outputJSON {
		return writeJSON(w, recs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLEVEL\tSPAN\tTRACE\tMESSAGE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format(time.RFC3339Nano), r.Level, r.SpanName, r.TraceID, r.Message)
	}
	return tw.Flush()
}
