package main

import (
	"fmt"
	"io"
	"strings"
)

type counts struct {
	Visited   int
	Processed int
	Skipped   int
	Failed    int
}

func countOutcomes(outcomes []outcome) counts {
	c := counts{Visited: len(outcomes)}
	for _, out := range outcomes {
		switch out.Status {
		case statusProcessed:
			c.Processed++
		case statusSkipped:
			c.Skipped++
		case statusFailed:
			c.Failed++
		}
	}
	return c
}

func formatStatusDisplay(out outcome) string {
	if out.Status == statusProcessed && out.Planned {
		return "Planned"
	}
	return out.Status.String()
}

func formatDetailDisplay(out outcome) string {
	switch out.Status {
	case statusProcessed:
		if out.Output != "" && out.Output != out.Path {
			return "-> " + out.Output
		}
		return "in place"
	case statusSkipped:
		return out.Reason
	case statusFailed:
		if out.Err != nil {
			return out.Err.Error()
		}
		return "unknown error"
	}
	return ""
}

func printSummary(w io.Writer, s summary) {
	if len(s.Outcomes) > 0 {
		fileColumnWidth := len("File")
		statusColumnWidth := len("Status")
		for _, out := range s.Outcomes {
			if len(out.Path) > fileColumnWidth {
				fileColumnWidth = len(out.Path)
			}
			if status := formatStatusDisplay(out); len(status) > statusColumnWidth {
				statusColumnWidth = len(status)
			}
		}

		fmt.Fprintf(w, "%-*s  %-*s  %s\n", fileColumnWidth, "File", statusColumnWidth, "Status", "Detail")
		fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", fileColumnWidth), strings.Repeat("-", statusColumnWidth), strings.Repeat("-", len("Detail")))
		for _, out := range s.Outcomes {
			fmt.Fprintf(w, "%-*s  %-*s  %s\n", fileColumnWidth, out.Path, statusColumnWidth, formatStatusDisplay(out), formatDetailDisplay(out))
		}
		fmt.Fprintln(w)
	}

	c := countOutcomes(s.Outcomes)
	fmt.Fprintf(w, "Visited %d images: %d processed, %d skipped, %d failed.\n", c.Visited, c.Processed, c.Skipped, c.Failed)
	if s.Interrupted {
		fmt.Fprintln(w, "Interrupted before all images were visited.")
	}
}
