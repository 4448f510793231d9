package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/briefing/internal/briefing"
	"github.com/ternarybob/briefing/internal/models"
)

// formatSymbolView renders the view as markdown followed by its JSON form
func formatSymbolView(view briefing.SymbolView) string {
	var sb strings.Builder
	if view.Stock != nil {
		s := view.Stock
		sb.WriteString(fmt.Sprintf("## %s", s.Symbol))
		if s.Name != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", s.Name))
		}
		sb.WriteString("\n\n")
		sb.WriteString(fmt.Sprintf("**Price:** %.2f (%+.2f%%)\n", s.Price, s.ChangePercent))
		if len(s.Signals) > 0 {
			sb.WriteString(fmt.Sprintf("**Signals:** %s\n", strings.Join(s.Signals, ", ")))
		}
	}
	if t := view.Technical; t != nil {
		sb.WriteString(fmt.Sprintf("## %s technical read\n\n", t.Symbol))
		sb.WriteString(fmt.Sprintf("**Sentiment:** %s\n", briefing.SentimentLabel(t.Sentiment)))
		if rsi, ok := t.RSI.Get(); ok {
			sb.WriteString(fmt.Sprintf("**RSI(14):** %.1f\n", rsi))
		}
		if t.Comment != "" {
			sb.WriteString(fmt.Sprintf("**Comment:** %s\n", t.Comment))
		}
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err == nil {
		sb.WriteString("\n```json\n")
		sb.Write(data)
		sb.WriteString("\n```\n")
	}
	return sb.String()
}

// formatSymbolMatches formats search results as a markdown list
func formatSymbolMatches(query string, matches []models.SymbolMatch) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Symbols matching \"%s\" (%d results)\n\n", query, len(matches)))
	if len(matches) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}
	for _, m := range matches {
		sb.WriteString(fmt.Sprintf("- **%s** %s (%s, %s)\n", m.Symbol, m.Name, m.Exchange, m.Market))
	}
	return sb.String()
}

// formatRun formats one run result
func formatRun(run models.PublishingRunResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Run %s: %s\n\n", run.RunID, run.Status))
	sb.WriteString(fmt.Sprintf("**Trigger:** %s\n", run.Trigger))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n", run.StartedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Duration:** %s\n", run.Duration().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("**News:** %d  **Alerts:** %d\n", run.NewsCount, run.AlertsSent))
	sb.WriteString(fmt.Sprintf("**Emails:** %d sent, %d failed, %d skipped\n", run.Emails.Sent, run.Emails.Failed, run.Emails.Skipped))

	if len(run.Results) > 0 {
		sb.WriteString("\n| Platform | Result | Link |\n|---|---|---|\n")
		for _, r := range run.Results {
			outcome := "ok"
			if !r.Success {
				outcome = "failed: " + r.Error
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", r.Platform, outcome, r.PostURL))
		}
	}
	if len(run.Errors) > 0 {
		sb.WriteString("\n**Errors:**\n")
		for _, e := range run.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}
	return sb.String()
}

// formatRunList formats run history as a table
func formatRunList(runs []models.PublishingRunResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Recent runs (%d)\n\n", len(runs)))
	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return sb.String()
	}
	sb.WriteString("| Run | Started | Trigger | Status | News | Emails sent |\n|---|---|---|---|---|---|\n")
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %d |\n",
			run.RunID, run.StartedAt.Format(time.RFC3339), run.Trigger, run.Status, run.NewsCount, run.Emails.Sent))
	}
	return sb.String()
}

// formatStats formats aggregate statistics
func formatStats(stats models.RunStats, next time.Time) string {
	var sb strings.Builder
	sb.WriteString("## Briefing run statistics\n\n")
	sb.WriteString(fmt.Sprintf("**Runs:** %d total, %d succeeded, %d failed, %d skipped\n",
		stats.TotalRuns, stats.SuccessfulRuns, stats.FailedRuns, stats.SkippedRuns))
	sb.WriteString(fmt.Sprintf("**Success rate:** %.1f%%\n", stats.SuccessRate))
	if stats.LastRunAt != nil {
		sb.WriteString(fmt.Sprintf("**Last run:** %s\n", stats.LastRunAt.Format(time.RFC3339)))
	}
	if stats.LastError != "" {
		sb.WriteString(fmt.Sprintf("**Last error:** %s\n", stats.LastError))
	}
	if !next.IsZero() {
		sb.WriteString(fmt.Sprintf("**Next run:** %s\n", next.Format(time.RFC3339)))
	}

	if len(stats.Platforms) > 0 {
		names := make([]string, 0, len(stats.Platforms))
		for name := range stats.Platforms {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("\n| Platform | Total | Succeeded | Failed |\n|---|---|---|---|\n")
		for _, name := range names {
			p := stats.Platforms[name]
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", name, p.Total, p.Succeeded, p.Failed))
		}
	}
	return sb.String()
}
