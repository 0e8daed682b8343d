package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dimakrest/trading-analyst/internal/api"
	"github.com/dimakrest/trading-analyst/internal/backtest"
	"github.com/dimakrest/trading-analyst/internal/filter"
)

// View renders the full dashboard.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(a.renderTabs())
	b.WriteString("\n\n")

	switch a.tab {
	case TabBacktest:
		b.WriteString(a.renderBacktest())
	case TabComparison:
		b.WriteString(a.renderComparison())
	case TabWatchlists:
		b.WriteString(a.renderWatchlists())
	case TabHistory:
		b.WriteString(a.renderHistory())
	case TabNews:
		b.WriteString(a.renderNews())
	}

	b.WriteString("\n")
	if a.uiErr != nil {
		b.WriteString(ErrorBar.Render(a.uiErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString(a.renderStatusBar())
	return b.String()
}

func (a App) renderTabs() string {
	var parts []string
	for t := Tab(0); t < tabCount; t++ {
		if t == a.tab {
			parts = append(parts, TabActive.Render(t.String()))
		} else {
			parts = append(parts, TabInactive.Render(t.String()))
		}
	}
	return strings.Join(parts, "")
}

func (a App) renderBacktest() string {
	var b strings.Builder

	b.WriteString(Muted.Render("Symbols: "))
	b.WriteString(a.symbolInput.View())
	b.WriteString("\n")
	b.WriteString(Muted.Render("Search:  "))
	b.WriteString(a.searchInput.View())
	b.WriteString("\n\n")

	switch a.run.Phase {
	case backtest.PhaseSubmitting:
		b.WriteString(a.spin.View())
		b.WriteString(" submitting...\n\n")
	case backtest.PhaseActive:
		b.WriteString(fmt.Sprintf("%s run %s  %s\n\n",
			a.spin.View(), a.run.RunID, renderProgress(a.run.Processed, a.run.Total)))
	case backtest.PhaseCancelling:
		b.WriteString(fmt.Sprintf("%s cancelling run %s...\n\n", a.spin.View(), a.run.RunID))
	}

	b.WriteString(a.renderFilterBadges())
	b.WriteString("\n")
	b.WriteString(a.renderResults())

	if len(a.run.FailedSymbols) > 0 {
		b.WriteString("\n")
		b.WriteString(WarnBar.Render(fmt.Sprintf("%d symbols failed", len(a.run.FailedSymbols))))
		b.WriteString("\n")
	}
	if a.run.Err != "" {
		b.WriteString("\n")
		b.WriteString(ErrorBar.Render(a.run.Err))
		b.WriteString("\n")
	}
	return b.String()
}

func (a App) renderFilterBadges() string {
	badge := func(active bool, label string) string {
		if active {
			return FilterBadge.Render(label)
		}
		return FilterBadgeOff.Render(label)
	}
	c := a.criteria
	var b strings.Builder
	b.WriteString(badge(c.DirectionActive(), "dir:"+orDash(c.Direction)))
	b.WriteString(badge(c.ScoreActive(), fmt.Sprintf("score>=%.0f", c.MinScore)))
	b.WriteString(badge(c.RelVolumeActive(), fmt.Sprintf("rvol>=%.1f", c.MinRelVolume)))
	b.WriteString(badge(c.RangeActive(), fmt.Sprintf("atr %.0f-%.0f", c.ATRRange[0], c.ATRRange[1])))
	b.WriteString(badge(c.QueryActive(), "q:"+orDash(c.Query)))
	b.WriteString("\n")
	return b.String()
}

func (a App) renderResults() string {
	results := filter.Apply(a.run.Results, a.criteria)
	if len(results) == 0 {
		if len(a.run.Results) > 0 {
			return Muted.Render("  no results match the active filters") + "\n"
		}
		return Muted.Render("  no results yet") + "\n"
	}

	var b strings.Builder
	b.WriteString(HeaderRow.Render(fmt.Sprintf("%-8s %-6s %6s %6s %6s %7s %7s %6s",
		"SYMBOL", "DIR", "SCORE", "RVOL", "ATR", "WIN%", "AVG%", "TRADES")))
	b.WriteString("\n")
	for _, r := range results {
		b.WriteString(NormalRow.Render(fmt.Sprintf("%-8s %-6s %6s %6s %6s %7s %7s %6d",
			r.Symbol, r.Direction,
			fmtMetric(r.Score), fmtMetric(r.RelVolume), fmtMetric(r.ATR),
			fmtMetric(r.WinRate), fmtMetric(r.AvgReturn), r.Trades)))
		b.WriteString("\n")
	}
	if len(results) < len(a.run.Results) {
		b.WriteString(Muted.Render(fmt.Sprintf("  %d of %d shown", len(results), len(a.run.Results))))
		b.WriteString("\n")
	}
	return b.String()
}

func (a App) renderComparison() string {
	var b strings.Builder
	b.WriteString(Muted.Render("Group: "))
	b.WriteString(a.groupInput.View())
	b.WriteString("\n\n")

	if a.comparison.GroupID == "" {
		b.WriteString(Muted.Render("  press g to track a group, n to compare the staged symbols") + "\n")
		return b.String()
	}

	name := a.comparison.GroupID
	if a.comparison.Data != nil && a.comparison.Data.Name != "" {
		name = a.comparison.Data.Name
	}
	if a.comparison.Polling {
		b.WriteString(fmt.Sprintf("%s %s\n\n", a.spin.View(), name))
	} else {
		b.WriteString(StatusDone.Render(name+" (all simulations finished)") + "\n\n")
	}

	if a.comparison.Data == nil || len(a.comparison.Data.Simulations) == 0 {
		b.WriteString(Muted.Render("  waiting for simulations...") + "\n")
	} else {
		b.WriteString(HeaderRow.Render(fmt.Sprintf("%-20s %-10s %9s %8s %7s",
			"SIMULATION", "STATUS", "PROGRESS", "PNL", "WIN%")))
		b.WriteString("\n")
		for _, s := range a.comparison.Data.Simulations {
			b.WriteString(NormalRow.Render(fmt.Sprintf("%-20s %-10s %4d/%-4d %8s %7s",
				s.Name, statusStyle(s.Status).Render(s.Status),
				s.Processed, s.Total, fmtMetric(s.PnL), fmtMetric(s.WinRate))))
			b.WriteString("\n")
		}
	}

	if a.comparison.Err != "" {
		b.WriteString("\n")
		b.WriteString(WarnBar.Render(a.comparison.Err))
		b.WriteString("\n")
	}
	return b.String()
}

func (a App) renderWatchlists() string {
	if len(a.watchlists) == 0 {
		return Muted.Render("  no watchlists") + "\n"
	}
	var b strings.Builder
	for i, wl := range a.watchlists {
		line := fmt.Sprintf("%-20s %s", wl.Name, joinSymbols(wl.Symbols))
		if i == a.wlCursor {
			b.WriteString(SelectedRow.Render(line))
		} else {
			b.WriteString(NormalRow.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a App) renderHistory() string {
	if len(a.history) == 0 {
		return Muted.Render("  no previous runs") + "\n"
	}
	var b strings.Builder
	b.WriteString(HeaderRow.Render(fmt.Sprintf("%-16s %-12s %8s %9s %s",
		"SUBMITTED", "RUN", "SYMBOLS", "PROGRESS", "STATUS")))
	b.WriteString("\n")
	for _, r := range a.history {
		status := statusStyle(r.Status).Render(r.Status)
		b.WriteString(NormalRow.Render(fmt.Sprintf("%-16s %-12s %8d %4d/%-4d %s",
			r.SubmittedAt.Format("2006-01-02 15:04"), shortID(r.ID),
			r.Symbols, r.Processed, r.Total, status)))
		b.WriteString("\n")
	}
	return b.String()
}

func (a App) renderNews() string {
	var b strings.Builder
	if a.newsErr != nil {
		b.WriteString(WarnBar.Render("some feeds failed: " + a.newsErr.Error()))
		b.WriteString("\n")
	}
	if len(a.headlines) == 0 {
		b.WriteString(Muted.Render("  no headlines") + "\n")
		return b.String()
	}
	for _, h := range a.headlines {
		b.WriteString(fmt.Sprintf("  %s  %s %s\n",
			Muted.Render(h.Published.Format("15:04")),
			StatusBarKey.Render("["+h.Source+"]"),
			h.Title))
	}
	return b.String()
}

func (a App) renderStatusBar() string {
	key := StatusBarKey.Render
	var help string
	switch a.tab {
	case TabBacktest:
		help = key("s") + " symbols  " + key("c") + " cancel  " +
			key("/") + " search  " + key("d/m/v/[/]") + " filters  " + key("x") + " reset"
	case TabComparison:
		help = key("g") + " track group  " + key("n") + " new long/short  " + key("esc") + " stop tracking"
	case TabWatchlists:
		help = key("j/k") + " move  " + key("enter") + " use  " + key("D") + " delete  " + key("r") + " reload"
	default:
		help = key("r") + " reload"
	}
	return StatusBar.Render(help + "  " + key("tab") + " switch  " + key("q") + " quit")
}

func renderProgress(processed, total int) string {
	const width = 20
	if total <= 0 {
		return fmt.Sprintf("%d done", processed)
	}
	filled := processed * width / total
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	return fmt.Sprintf("%d/%d [%s]", processed, total, bar)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case api.StatusCompleted:
		return StatusDone
	case api.StatusFailed, api.StatusCancelled:
		return StatusFailed
	default:
		return StatusActive
	}
}

func fmtMetric(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func joinSymbols(symbols []string) string {
	return strings.Join(symbols, ", ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
