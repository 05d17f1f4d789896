package tui

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/runner"
)

var outcomeColors = map[domain.Outcome]string{
	domain.OutcomeSuccess:          "#22c55e",
	domain.OutcomeRunning:          "#eab308",
	domain.OutcomeSimulationError:  "#ef4444",
	domain.OutcomePostprocessError: "#f97316",
	domain.OutcomeProtocolError:    "#ef4444",
}

// PrintOutcome writes one coloured status line.
func PrintOutcome(w io.Writer, outcome domain.Outcome, message string) {
	p := profile(w)
	label := p.String(strings.ToUpper(string(outcome))).Bold()
	if c, ok := outcomeColors[outcome]; ok {
		label = label.Foreground(p.Color(c))
	}
	fmt.Fprintf(w, "%s %s\n", label, message)
}

// RunsReport renders the run ledger as a markdown table.
func RunsReport(runs []domain.RunRecord) string {
	var sb strings.Builder
	sb.WriteString("# Simulation runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("_No runs recorded._\n")
		return sb.String()
	}

	sb.WriteString("| ID | Peer | Exports | Scene | Outcome | Started | Duration | Files |\n")
	sb.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, r := range runs {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s | %d |\n",
			shortID(r.ID), r.Peer, strings.Join(r.Exports, ", "), shortID(r.Scene), r.Outcome,
			r.Started.Format(time.DateTime), r.Duration().Round(time.Millisecond), r.Files)
	}

	var failed []domain.RunRecord
	for _, r := range runs {
		if r.Error != "" {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		sb.WriteString("\n## Failures\n\n")
		for _, r := range failed {
			fmt.Fprintf(&sb, "- `%s`: %s\n", shortID(r.ID), r.Error)
		}
	}
	return sb.String()
}

// EventsReport renders run events as a markdown table with one column per reading.
func EventsReport(events []runner.Event) string {
	var sb strings.Builder
	sb.WriteString("# Readings\n\n")
	if len(events) == 0 {
		sb.WriteString("_No events._\n")
		return sb.String()
	}

	keys := map[string]struct{}{}
	for _, ev := range events {
		for k := range ev.Readings {
			keys[k] = struct{}{}
		}
	}
	columns := slices.Sorted(maps.Keys(keys))

	sb.WriteString("| # | " + strings.Join(columns, " | ") + " |\n")
	sb.WriteString("|---|" + strings.Repeat("---|", len(columns)) + "\n")
	for _, ev := range events {
		cells := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := ev.Readings[c]; ok {
				cells[i] = strconv.FormatFloat(v, 'g', 6, 64)
			}
		}
		fmt.Fprintf(&sb, "| %d | %s |\n", ev.Seq, strings.Join(cells, " | "))
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
