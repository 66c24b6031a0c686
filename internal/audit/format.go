package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Replay: %s | No entries found.\n", result.Filter)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Replay: %s | %s–%s UTC\n",
		result.Filter,
		formatDateRange(result.Summary.FirstTimestamp),
		formatTimeOnly(result.Summary.LastTimestamp))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		risk := "-"
		if e.Category != "" {
			risk = fmt.Sprintf("%s/%d", e.Category, e.Score)
		}
		tag := ""
		if e.Settlement != nil && e.Settlement.Burned != "" && e.Settlement.Burned != "0" {
			tag = "  [burned " + e.Settlement.Burned + "]"
		}
		fmt.Fprintf(&b, "%-10s %-20s %-14s %-14s %-20s %s%s\n",
			formatTimeOnly(e.Timestamp),
			strings.ToUpper(e.State),
			truncate(e.Transfer.Sender, 14),
			truncate(e.Transfer.Receiver, 14),
			truncate(risk, 20),
			e.Transfer.Amount,
			tag)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	states := make([]string, 0, len(s.States))
	for st := range s.States {
		states = append(states, st)
	}
	sort.Strings(states)

	parts := make([]string, 0, len(states))
	for _, st := range states {
		parts = append(parts, fmt.Sprintf("%d %s", s.States[st], st))
	}
	line := fmt.Sprintf("Summary: %d entries | %s", s.Total, strings.Join(parts, ", "))
	if s.Burned != "" && s.Burned != "0" {
		line += " | burned " + s.Burned
	}
	return line + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
