// Package api provides the HTTP client for the remote analysis service.
//
// The service executes backtest and screening jobs server-side; this package
// only submits work, queries snapshots, and requests cancellation. All state
// tracking lives in the orchestrator packages.
package api

// Run statuses reported by the analysis service. The vocabulary is open:
// the server may introduce new values, so callers must never treat an
// unrecognized status as terminal.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// IsTerminal reports whether a run or simulation status can no longer change.
// Unknown values are treated as still in progress.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// BacktestOptions configures a submitted job.
type BacktestOptions struct {
	Strategy  string  `json:"strategy"`
	Direction string  `json:"direction,omitempty"` // "long", "short", or empty for both
	Days      int     `json:"days,omitempty"`
	Capital   float64 `json:"capital,omitempty"`
}

// SubmitRequest is the body for job submission.
// RequestID is a client-generated idempotency key.
type SubmitRequest struct {
	Symbols   []string        `json:"symbols"`
	Options   BacktestOptions `json:"options"`
	RequestID string          `json:"request_id"`
}

// SubmitResponse is the server's acknowledgement of a submitted job.
type SubmitResponse struct {
	ID      string `json:"id"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// BacktestResult is the per-symbol outcome of a run. Optional metrics are
// pointers: the server omits them when a symbol produced no usable data.
type BacktestResult struct {
	Symbol    string   `json:"symbol"`
	Direction string   `json:"direction"`
	Score     *float64 `json:"score,omitempty"`
	RelVolume *float64 `json:"rel_volume,omitempty"`
	ATR       *float64 `json:"atr,omitempty"`
	Trades    int      `json:"trades"`
	WinRate   *float64 `json:"win_rate,omitempty"`
	AvgReturn *float64 `json:"avg_return,omitempty"`
}

// RunSnapshot is one point-in-time view of a run. Results and FailedSymbols
// grow across snapshots; each snapshot is self-contained (the server always
// sends the full accumulated set, never a delta).
type RunSnapshot struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Total         int               `json:"total"`
	Processed     int               `json:"processed"`
	Results       []BacktestResult  `json:"results"`
	FailedSymbols map[string]string `json:"failed_symbols,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

// Simulation is one member of a comparison group.
type Simulation struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	PnL       *float64 `json:"pnl,omitempty"`
	WinRate   *float64 `json:"win_rate,omitempty"`
}

// ComparisonSnapshot is the full state of a comparison group. Each poll
// replaces the previous snapshot wholesale.
type ComparisonSnapshot struct {
	GroupID     string       `json:"group_id"`
	Name        string       `json:"name,omitempty"`
	Simulations []Simulation `json:"simulations"`
}

// ComparisonRequest creates a comparison group: one simulation per variant.
type ComparisonRequest struct {
	Name      string            `json:"name"`
	Symbols   []string          `json:"symbols"`
	Variants  []BacktestOptions `json:"variants"`
	RequestID string            `json:"request_id"`
}

// Watchlist is a named symbol collection stored server-side.
type Watchlist struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}
