// Package compare tracks a comparison group: N independent simulations
// polled together until every member reaches a terminal status.
package compare

import (
	"context"
	"sync"
	"time"

	"github.com/dimakrest/trading-analyst/internal/api"
	"github.com/dimakrest/trading-analyst/internal/logging"
	"github.com/dimakrest/trading-analyst/internal/poll"
)

// transportErrMsg is shown as a non-blocking warning while the loop keeps
// going. Group polling never dies on a network blip.
const transportErrMsg = "failed to refresh comparison data"

// State is the user-facing view of the tracked group. Data is the last good
// snapshot; it survives transient fetch failures.
type State struct {
	GroupID string
	Data    *api.ComparisonSnapshot
	Err     string
	Polling bool
}

// groupClient is the slice of the API client this orchestrator needs.
// Interface for dependency injection (testing).
type groupClient interface {
	GetComparison(ctx context.Context, groupID string) (*api.ComparisonSnapshot, error)
}

// Orchestrator polls one comparison group at a time. Switching groups fully
// resets the view before the first fetch for the new id: stale data from a
// prior group is never visible, not even momentarily.
type Orchestrator struct {
	client   groupClient
	interval time.Duration
	notify   func(State) // nil-safe; wired to program.Send by the caller

	mu      sync.Mutex
	state   State
	session *poll.Session[*api.ComparisonSnapshot]
}

// New creates an Orchestrator polling at the given interval.
func New(client *api.Client, interval time.Duration, notify func(State)) *Orchestrator {
	return newWithClient(client, interval, notify)
}

// newWithClient allows injecting a custom client (for testing).
func newWithClient(client groupClient, interval time.Duration, notify func(State)) *Orchestrator {
	return &Orchestrator{client: client, interval: interval, notify: notify}
}

// State returns a copy of the current view. The snapshot pointer is shared
// but never mutated after publication.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) publish() {
	if o.notify == nil {
		return
	}
	o.mu.Lock()
	st := o.state
	o.mu.Unlock()
	o.notify(st)
}

// SetGroup switches polling to groupID. The previous session is disposed
// before the new loop starts; an empty id just stops tracking.
func (o *Orchestrator) SetGroup(groupID string) {
	o.mu.Lock()
	old := o.session
	o.session = nil

	if groupID == "" {
		o.state = State{}
		o.mu.Unlock()
		if old != nil {
			old.Dispose()
		}
		o.publish()
		return
	}

	o.state = State{GroupID: groupID, Polling: true}
	sess := o.newSession(groupID)
	o.session = sess
	o.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
	o.publish()
	sess.Start()
}

// Dispose stops polling. For navigation away and shutdown.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	sess := o.session
	o.session = nil
	o.mu.Unlock()
	if sess != nil {
		sess.Dispose()
	}
}

// allDone reports whether every simulation is terminal. A group with no
// members yet keeps polling: the server may still be materializing them.
func allDone(snap *api.ComparisonSnapshot) bool {
	if len(snap.Simulations) == 0 {
		return false
	}
	for _, sim := range snap.Simulations {
		if !api.IsTerminal(sim.Status) {
			return false
		}
	}
	return true
}

func (o *Orchestrator) newSession(groupID string) *poll.Session[*api.ComparisonSnapshot] {
	return poll.New(poll.Config[*api.ComparisonSnapshot]{
		Interval: o.interval,
		Fetch: func(ctx context.Context) (*api.ComparisonSnapshot, error) {
			return o.client.GetComparison(ctx, groupID)
		},
		Done: allDone,
		OnSnapshot: func(snap *api.ComparisonSnapshot) {
			o.merge(groupID, snap)
		},
		OnError: func(err error) bool {
			// Group policy: surface a warning, keep the loop alive. Only
			// the all-terminal condition or disposal stops group polling.
			o.fetchFailed(groupID, err)
			return false
		},
	})
}

// merge replaces the whole snapshot; group polls carry no incremental
// state. A successful tick clears any transient error.
func (o *Orchestrator) merge(groupID string, snap *api.ComparisonSnapshot) {
	o.mu.Lock()
	if o.state.GroupID != groupID {
		o.mu.Unlock()
		return
	}
	o.state.Data = snap
	o.state.Err = ""
	if allDone(snap) {
		logging.Info("comparison finished", "group_id", groupID, "simulations", len(snap.Simulations))
		o.state.Polling = false
	}
	o.mu.Unlock()
	o.publish()
}

func (o *Orchestrator) fetchFailed(groupID string, err error) {
	o.mu.Lock()
	if o.state.GroupID != groupID {
		o.mu.Unlock()
		return
	}
	logging.Debug("comparison poll failed", "group_id", groupID, "error", err)
	// Last good data and the polling flag stay untouched: the UI shows a
	// warning banner, not a hard failure.
	o.state.Err = transportErrMsg
	o.mu.Unlock()
	o.publish()
}
