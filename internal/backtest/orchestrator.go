// Package backtest owns the client-side lifecycle of a single analysis run:
// submission, interval polling, progressive result merging, and advisory
// cancellation.
package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dimakrest/trading-analyst/internal/api"
	"github.com/dimakrest/trading-analyst/internal/logging"
	"github.com/dimakrest/trading-analyst/internal/poll"
)

// Phase is the orchestrator's own transient state, composed with the run's
// server-side status.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseActive     Phase = "active"
	PhaseCancelling Phase = "cancelling"
)

// Displayable fallbacks for errors that carry no server message.
const (
	submitFailedMsg = "failed to submit backtest"
	pollFailedMsg   = "lost connection to the analysis service"
	cancelFailedMsg = "failed to cancel backtest"
)

// State is the full user-facing view of the current run. Returned by value;
// slices and maps are copies safe to hold across updates.
type State struct {
	Phase         Phase
	RunID         string
	Status        string
	Total         int
	Processed     int
	Results       []api.BacktestResult
	FailedSymbols map[string]string
	Err           string
}

// InFlight reports whether a submit or cancel call is awaiting the server.
func (s State) InFlight() bool {
	return s.Phase == PhaseSubmitting || s.Phase == PhaseCancelling
}

// runClient is the slice of the API client the orchestrator needs.
// Interface for dependency injection (testing).
type runClient interface {
	SubmitBacktest(ctx context.Context, req api.SubmitRequest) (*api.SubmitResponse, error)
	GetRun(ctx context.Context, id string) (*api.RunSnapshot, error)
	CancelRun(ctx context.Context, id string) error
}

// historyRecorder persists finished runs. Best-effort: failures are logged
// and otherwise ignored.
type historyRecorder interface {
	RecordRun(id string, symbols, total, processed int, status, errMsg string) error
}

// Orchestrator drives one run at a time. A new submission supersedes the
// previous run entirely: its polling session is disposed and all of its
// state (results, failed symbols, errors) is discarded.
type Orchestrator struct {
	client   runClient
	interval time.Duration
	notify   func(State)     // nil-safe; wired to program.Send by the caller
	history  historyRecorder // optional: nil disables run history

	mu      sync.Mutex
	state   State
	session *poll.Session[*api.RunSnapshot]
}

// New creates an Orchestrator polling at the given interval. notify receives
// a State copy after every change; pass nil when no consumer needs pushes.
func New(client *api.Client, interval time.Duration, notify func(State)) *Orchestrator {
	return newWithClient(client, interval, notify)
}

// newWithClient allows injecting a custom client (for testing).
func newWithClient(client runClient, interval time.Duration, notify func(State)) *Orchestrator {
	return &Orchestrator{
		client:   client,
		interval: interval,
		notify:   notify,
		state:    State{Phase: PhaseIdle},
	}
}

// SetHistory attaches a best-effort recorder for finished runs.
func (o *Orchestrator) SetHistory(h historyRecorder) {
	o.mu.Lock()
	o.history = h
	o.mu.Unlock()
}

// State returns a copy of the current view.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	st := o.state
	if st.Results != nil {
		st.Results = append([]api.BacktestResult(nil), st.Results...)
	}
	if st.FailedSymbols != nil {
		failed := make(map[string]string, len(st.FailedSymbols))
		for k, v := range st.FailedSymbols {
			failed[k] = v
		}
		st.FailedSymbols = failed
	}
	return st
}

// publish pushes a state copy to the consumer. Never called under the mutex.
func (o *Orchestrator) publish() {
	if o.notify == nil {
		return
	}
	o.mu.Lock()
	st := o.stateLocked()
	o.mu.Unlock()
	o.notify(st)
}

// Submit starts a new run. Any in-progress or finished prior run is
// discarded first: no results, diagnostics, or errors leak between runs.
// Errors are surfaced through State.Err, never returned.
func (o *Orchestrator) Submit(ctx context.Context, symbols []string, opts api.BacktestOptions) {
	o.mu.Lock()
	if o.state.Phase == PhaseSubmitting {
		o.mu.Unlock()
		return
	}
	old := o.session
	o.session = nil
	o.state = State{Phase: PhaseSubmitting}
	o.mu.Unlock()

	// The old session must be fully inert before the new run's state can
	// exist: a late response for the old id must find nothing to write to.
	if old != nil {
		old.Dispose()
	}
	o.publish()

	resp, err := o.client.SubmitBacktest(ctx, api.SubmitRequest{
		Symbols:   symbols,
		Options:   opts,
		RequestID: uuid.NewString(),
	})

	o.mu.Lock()
	if err != nil {
		logging.Warn("backtest submission rejected", "error", err)
		o.state = State{Phase: PhaseIdle, Err: api.ErrorMessage(err, submitFailedMsg)}
		o.mu.Unlock()
		o.publish()
		return
	}

	logging.Info("backtest submitted", "run_id", resp.ID, "total", resp.Total)
	o.state = State{
		Phase:  PhaseActive,
		RunID:  resp.ID,
		Status: resp.Status,
		Total:  resp.Total,
	}
	sess := o.newSession(resp.ID, len(symbols))
	o.session = sess
	o.mu.Unlock()

	o.publish()
	sess.Start()
}

// Cancel asks the server to stop the active run. Without an active run it is
// a no-op (no remote call). Cancellation is advisory: on success the run
// keeps polling until the server reports a terminal status; on failure the
// run is still executing, so the orchestrator returns to active.
func (o *Orchestrator) Cancel(ctx context.Context) {
	o.mu.Lock()
	if o.state.Phase != PhaseActive || o.state.RunID == "" {
		o.mu.Unlock()
		return
	}
	id := o.state.RunID
	o.state.Phase = PhaseCancelling
	o.mu.Unlock()
	o.publish()

	if err := o.client.CancelRun(ctx, id); err != nil {
		logging.Warn("backtest cancel failed", "run_id", id, "error", err)
		o.mu.Lock()
		if o.state.RunID == id && o.state.Phase == PhaseCancelling {
			o.state.Phase = PhaseActive
			o.state.Err = api.ErrorMessage(err, cancelFailedMsg)
		}
		o.mu.Unlock()
		o.publish()
	}
}

// Dispose stops polling without touching the server. For navigation away
// and shutdown.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	sess := o.session
	o.session = nil
	o.mu.Unlock()
	if sess != nil {
		sess.Dispose()
	}
}

func (o *Orchestrator) newSession(id string, symbolCount int) *poll.Session[*api.RunSnapshot] {
	return poll.New(poll.Config[*api.RunSnapshot]{
		Interval: o.interval,
		Fetch: func(ctx context.Context) (*api.RunSnapshot, error) {
			return o.client.GetRun(ctx, id)
		},
		Done: func(snap *api.RunSnapshot) bool {
			return api.IsTerminal(snap.Status)
		},
		OnSnapshot: func(snap *api.RunSnapshot) {
			o.merge(id, symbolCount, snap)
		},
		OnError: func(err error) bool {
			// Single-run policy: a failed status fetch means the job is
			// unreachable. Stop the loop and surface a terminal error.
			o.pollFailed(id, err)
			return true
		},
	})
}

// merge folds one snapshot into state. The id check is the second staleness
// layer: even if a superseded session slipped a callback through, a snapshot
// for a run this orchestrator no longer owns is dropped.
func (o *Orchestrator) merge(id string, symbolCount int, snap *api.RunSnapshot) {
	o.mu.Lock()

	if o.state.RunID != id || (o.state.Phase != PhaseActive && o.state.Phase != PhaseCancelling) {
		o.mu.Unlock()
		return
	}

	o.state.Status = snap.Status
	o.state.Processed = snap.Processed
	if snap.Total > 0 {
		o.state.Total = snap.Total
	}

	// Results arrive as an ever-growing superset, so the latest non-empty
	// snapshot wholly replaces the local copy. Failed-symbol diagnostics
	// ride along: the server accumulates them into every snapshot.
	if len(snap.Results) > 0 {
		o.state.Results = snap.Results
		o.state.FailedSymbols = snap.FailedSymbols
	}

	if api.IsTerminal(snap.Status) {
		// The session stops itself via its done predicate; here the view
		// leaves the active phase. Accumulated results stay visible: a
		// cancelled run keeps the output it produced before stopping.
		o.state.Phase = PhaseIdle
		o.state.Processed = 0
		o.state.Total = 0
		if snap.Status == api.StatusFailed {
			o.state.Err = snap.ErrorMessage
		}
		if o.history != nil {
			if err := o.history.RecordRun(id, symbolCount, snap.Total, snap.Processed, snap.Status, snap.ErrorMessage); err != nil {
				logging.Debug("run history write failed", "run_id", id, "error", err)
			}
		}
		logging.Info("backtest finished", "run_id", id, "status", snap.Status)
	}

	o.mu.Unlock()
	o.publish()
}

func (o *Orchestrator) pollFailed(id string, err error) {
	o.mu.Lock()
	if o.state.RunID != id {
		o.mu.Unlock()
		return
	}
	logging.Warn("backtest polling failed", "run_id", id, "error", err)
	o.state.Phase = PhaseIdle
	o.state.Processed = 0
	o.state.Total = 0
	o.state.Err = api.ErrorMessage(err, pollFailedMsg)
	o.mu.Unlock()
	o.publish()
}
