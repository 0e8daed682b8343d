// Package filter provides pure filter functions for backtest results.
// All functions are simple: results in, results out. No side effects.
package filter

import (
	"strings"

	"github.com/dimakrest/trading-analyst/internal/api"
)

// Criteria is the transient set of UI filters applied to a result table.
// The zero value is fully inactive and leaves results untouched.
type Criteria struct {
	Direction    string     // exact direction match; "" disables
	Query        string     // case-insensitive substring on symbol; "" disables
	MinScore     float64    // score >= threshold; 0 disables
	MinRelVolume float64    // relative volume >= threshold; 0 disables
	ATRRange     [2]float64 // [min, max]; 0 in a slot disables that side
}

// DirectionActive reports whether the direction filter is restricting.
func (c Criteria) DirectionActive() bool { return c.Direction != "" }

// QueryActive reports whether the symbol search is restricting.
func (c Criteria) QueryActive() bool { return c.Query != "" }

// ScoreActive reports whether the minimum-score filter is restricting.
func (c Criteria) ScoreActive() bool { return c.MinScore > 0 }

// RelVolumeActive reports whether the minimum-relative-volume filter is restricting.
func (c Criteria) RelVolumeActive() bool { return c.MinRelVolume > 0 }

// RangeActive reports whether either side of the ATR range is restricting.
func (c Criteria) RangeActive() bool { return c.ATRRange[0] > 0 || c.ATRRange[1] > 0 }

// AnyActive reports whether any filter is restricting. Used by the UI to flag
// that the visible table is narrower than the full result set.
func (c Criteria) AnyActive() bool {
	return c.DirectionActive() || c.QueryActive() || c.ScoreActive() ||
		c.RelVolumeActive() || c.RangeActive()
}

// Apply narrows results to those matching every active filter. Filters are
// independent and conjunctive; order does not matter.
//
// Missing-data policy: an absent score or relative volume counts as 0, so it
// falls below any positive threshold. An absent ATR always passes the range
// filter.
func Apply(results []api.BacktestResult, c Criteria) []api.BacktestResult {
	if len(results) == 0 || !c.AnyActive() {
		return results
	}

	query := strings.ToLower(c.Query)
	out := make([]api.BacktestResult, 0, len(results))
	for _, r := range results {
		if c.DirectionActive() && r.Direction != c.Direction {
			continue
		}
		if c.QueryActive() && !strings.Contains(strings.ToLower(r.Symbol), query) {
			continue
		}
		if c.ScoreActive() && deref(r.Score) < c.MinScore {
			continue
		}
		if c.RelVolumeActive() && deref(r.RelVolume) < c.MinRelVolume {
			continue
		}
		if !matchesRange(r.ATR, c.ATRRange) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// matchesRange checks the two-sided ATR bound. Each side is an independent
// condition, so crossed bounds (min > max) reject every non-nil value rather
// than being normalized.
func matchesRange(atr *float64, bounds [2]float64) bool {
	if atr == nil {
		return true
	}
	if bounds[0] > 0 && *atr < bounds[0] {
		return false
	}
	if bounds[1] > 0 && *atr > bounds[1] {
		return false
	}
	return true
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
