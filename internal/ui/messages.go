// Package ui provides the Bubble Tea TUI for the trading analyst dashboard.
package ui

import (
	"github.com/dimakrest/trading-analyst/internal/api"
	"github.com/dimakrest/trading-analyst/internal/backtest"
	"github.com/dimakrest/trading-analyst/internal/compare"
	"github.com/dimakrest/trading-analyst/internal/filter"
	"github.com/dimakrest/trading-analyst/internal/news"
	"github.com/dimakrest/trading-analyst/internal/store"
)

// BacktestUpdated is sent whenever the run orchestrator publishes new state.
type BacktestUpdated struct {
	State backtest.State
}

// ComparisonUpdated is sent whenever the group orchestrator publishes new state.
type ComparisonUpdated struct {
	State compare.State
}

// ComparisonCreated is sent after a create-comparison request finishes.
// On success the orchestrator is already tracking GroupID.
type ComparisonCreated struct {
	GroupID string
	Err     error
}

// WatchlistsLoaded is sent when the watchlist collection has been fetched.
type WatchlistsLoaded struct {
	Lists []api.Watchlist
	Err   error
}

// WatchlistDeleted is sent after a delete request finishes.
type WatchlistDeleted struct {
	ID  string
	Err error
}

// HeadlinesLoaded is sent when the news tab's feed fetch finishes. Err names
// the sources that failed; Items still carries the healthy feeds.
type HeadlinesLoaded struct {
	Items []news.Headline
	Err   error
}

// PrefsLoaded restores saved UI preferences at startup.
type PrefsLoaded struct {
	Criteria filter.Criteria
}

// HistoryLoaded is sent when recent runs have been read from the local cache.
type HistoryLoaded struct {
	Runs []store.RunRecord
	Err  error
}

// RefreshTick triggers periodic refresh of the passive tabs.
type RefreshTick struct{}
