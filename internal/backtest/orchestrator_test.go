package backtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dimakrest/trading-analyst/internal/api"
)

const testInterval = 5 * time.Millisecond

// mockRunClient implements the runClient interface for testing. GetRun serves
// the scripted snapshots in order; the last one repeats.
type mockRunClient struct {
	mu         sync.Mutex
	submitResp *api.SubmitResponse
	submitErr  error
	lastSubmit api.SubmitRequest

	snapshots []*api.RunSnapshot
	getErr    error
	getCalls  atomic.Int32
	getBlock  chan struct{} // when set, GetRun blocks until closed

	cancelErr   error
	cancelCalls atomic.Int32
}

func (m *mockRunClient) SubmitBacktest(ctx context.Context, req api.SubmitRequest) (*api.SubmitResponse, error) {
	m.mu.Lock()
	m.lastSubmit = req
	resp, err := m.submitResp, m.submitErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *mockRunClient) GetRun(ctx context.Context, id string) (*api.RunSnapshot, error) {
	n := int(m.getCalls.Add(1))

	m.mu.Lock()
	block := m.getBlock
	getErr := m.getErr
	snaps := m.snapshots
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if getErr != nil {
		return nil, getErr
	}
	if len(snaps) == 0 {
		return &api.RunSnapshot{ID: id, Status: api.StatusPending}, nil
	}
	idx := n - 1
	if idx >= len(snaps) {
		idx = len(snaps) - 1
	}
	return snaps[idx], nil
}

func (m *mockRunClient) CancelRun(ctx context.Context, id string) error {
	m.cancelCalls.Add(1)
	return m.cancelErr
}

// recorder collects every published state.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) notify(st State) {
	r.mu.Lock()
	r.states = append(r.states, st)
	r.mu.Unlock()
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

// waitFor polls until cond(State()) holds or the deadline passes.
func waitFor(t *testing.T, o *Orchestrator, desc string, cond func(State) bool) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := o.State()
		if cond(st) {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last state: %+v", desc, o.State())
	return State{}
}

func results(n int) []api.BacktestResult {
	out := make([]api.BacktestResult, n)
	for i := range out {
		out[i] = api.BacktestResult{Symbol: string(rune('A'+i)) + "AA", Direction: "long"}
	}
	return out
}

func TestSubmitMergesProgressivelyThenStops(t *testing.T) {
	mock := &mockRunClient{
		submitResp: &api.SubmitResponse{ID: "run-1", Total: 10, Status: api.StatusPending},
		snapshots: []*api.RunSnapshot{
			{ID: "run-1", Status: api.StatusRunning, Total: 10, Processed: 5, Results: results(5)},
			{ID: "run-1", Status: api.StatusCompleted, Total: 10, Processed: 10, Results: results(10)},
		},
	}
	rec := &recorder{}
	o := newWithClient(mock, testInterval, rec.notify)
	defer o.Dispose()

	o.Submit(context.Background(), []string{"AAA", "BAA"}, api.BacktestOptions{Strategy: "breakout"})

	final := waitFor(t, o, "terminal state", func(st State) bool {
		return st.Status == api.StatusCompleted
	})
	if final.Phase != PhaseIdle {
		t.Errorf("final phase = %q, want idle", final.Phase)
	}
	if len(final.Results) != 10 {
		t.Errorf("final results = %d, want 10", len(final.Results))
	}
	if final.Processed != 0 || final.Total != 0 {
		t.Errorf("progress not cleared on terminal: %d/%d", final.Processed, final.Total)
	}
	if final.Err != "" {
		t.Errorf("unexpected error: %q", final.Err)
	}

	// Progressive delivery: the consumer saw 5 results while still running,
	// before the terminal snapshot.
	sawPartial := false
	for _, st := range rec.all() {
		if st.Status == api.StatusRunning && len(st.Results) == 5 && st.Phase == PhaseActive && st.Processed == 5 {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Error("never observed the partial (5-of-10) state while running")
	}

	// Polling stopped after the terminal snapshot.
	before := mock.getCalls.Load()
	time.Sleep(10 * testInterval)
	if after := mock.getCalls.Load(); after != before {
		t.Errorf("polling continued after terminal snapshot: %d -> %d calls", before, after)
	}

	if mock.lastSubmit.RequestID == "" {
		t.Error("submission carried no request id")
	}
}

func TestSubmitFailureReturnsToIdleWithoutPolling(t *testing.T) {
	mock := &mockRunClient{submitErr: errors.New("market data unavailable")}
	o := newWithClient(mock, testInterval, nil)

	o.Submit(context.Background(), []string{"AAA"}, api.BacktestOptions{})

	st := o.State()
	if st.Phase != PhaseIdle {
		t.Errorf("phase = %q, want idle", st.Phase)
	}
	if st.Err == "" {
		t.Error("submission error not surfaced")
	}
	time.Sleep(5 * testInterval)
	if mock.getCalls.Load() != 0 {
		t.Error("polling session started despite failed submission")
	}
}

func TestResubmitClearsAllPriorState(t *testing.T) {
	mock := &mockRunClient{
		submitResp: &api.SubmitResponse{ID: "run-1", Total: 2, Status: api.StatusPending},
		snapshots: []*api.RunSnapshot{
			{
				ID: "run-1", Status: api.StatusCompleted, Total: 2, Processed: 2,
				Results:       results(2),
				FailedSymbols: map[string]string{"XYZ": "no data"},
			},
		},
	}
	o := newWithClient(mock, testInterval, nil)
	defer o.Dispose()

	o.Submit(context.Background(), []string{"AAA", "BAA"}, api.BacktestOptions{})
	waitFor(t, o, "first run completion", func(st State) bool {
		return st.Status == api.StatusCompleted && len(st.FailedSymbols) == 1
	})

	// Second submission: block the first poll so the pre-snapshot state is
	// observable. Nothing from run-1 may leak into it.
	block := make(chan struct{})
	mock.mu.Lock()
	mock.submitResp = &api.SubmitResponse{ID: "run-2", Total: 3, Status: api.StatusPending}
	mock.getBlock = block
	mock.mu.Unlock()

	o.Submit(context.Background(), []string{"CAA", "DAA", "EAA"}, api.BacktestOptions{})
	defer close(block)

	st := o.State()
	if st.RunID != "run-2" {
		t.Fatalf("run id = %q, want run-2", st.RunID)
	}
	if len(st.Results) != 0 {
		t.Errorf("prior results leaked into new run: %d", len(st.Results))
	}
	if len(st.FailedSymbols) != 0 {
		t.Errorf("prior failed symbols leaked into new run: %v", st.FailedSymbols)
	}
	if st.Err != "" {
		t.Errorf("prior error leaked into new run: %q", st.Err)
	}
	if st.Status != api.StatusPending {
		t.Errorf("status = %q, want pending", st.Status)
	}
}

func TestCancelWithoutActiveRunIsNoop(t *testing.T) {
	mock := &mockRunClient{}
	o := newWithClient(mock, testInterval, nil)

	o.Cancel(context.Background())

	if mock.cancelCalls.Load() != 0 {
		t.Error("cancel hit the server with no active run")
	}
	if st := o.State(); st.Phase != PhaseIdle {
		t.Errorf("phase = %q, want idle", st.Phase)
	}
}

func TestCancelFailureLeavesRunActive(t *testing.T) {
	mock := &mockRunClient{
		submitResp: &api.SubmitResponse{ID: "run-1", Total: 5, Status: api.StatusPending},
		snapshots: []*api.RunSnapshot{
			{ID: "run-1", Status: api.StatusRunning, Total: 5, Processed: 1},
		},
		cancelErr: errors.New("cancel rejected"),
	}
	o := newWithClient(mock, testInterval, nil)
	defer o.Dispose()

	o.Submit(context.Background(), []string{"AAA"}, api.BacktestOptions{})
	waitFor(t, o, "run active", func(st State) bool { return st.Status == api.StatusRunning })

	o.Cancel(context.Background())

	// The cancel call failed, so the run never stopped: back to active with
	// the error surfaced, and polling still alive.
	st := waitFor(t, o, "cancel failure surfaced", func(st State) bool { return st.Err != "" })
	if st.Phase != PhaseActive {
		t.Errorf("phase = %q, want active after failed cancel", st.Phase)
	}
	before := mock.getCalls.Load()
	waitFor(t, o, "polling to continue", func(State) bool {
		return mock.getCalls.Load() > before
	})
}

func TestCancelWaitsForServerTerminalStatus(t *testing.T) {
	mock := &mockRunClient{
		submitResp: &api.SubmitResponse{ID: "run-1", Total: 5, Status: api.StatusPending},
		snapshots: []*api.RunSnapshot{
			{ID: "run-1", Status: api.StatusRunning, Total: 5, Processed: 2, Results: results(2)},
			{ID: "run-1", Status: api.StatusRunning, Total: 5, Processed: 3, Results: results(3)},
			{ID: "run-1", Status: api.StatusCancelled, Total: 5, Processed: 3, Results: results(3)},
		},
	}
	rec := &recorder{}
	o := newWithClient(mock, testInterval, rec.notify)
	defer o.Dispose()

	o.Submit(context.Background(), []string{"AAA"}, api.BacktestOptions{})
	waitFor(t, o, "run active", func(st State) bool { return st.Status == api.StatusRunning })

	o.Cancel(context.Background())
	if mock.cancelCalls.Load() != 1 {
		t.Fatalf("cancel calls = %d, want 1", mock.cancelCalls.Load())
	}

	final := waitFor(t, o, "server-confirmed cancellation", func(st State) bool {
		return st.Status == api.StatusCancelled
	})
	if final.Phase != PhaseIdle {
		t.Errorf("final phase = %q, want idle", final.Phase)
	}
	// Cancellation truncates future work, not past output.
	if len(final.Results) != 3 {
		t.Errorf("results after cancel = %d, want 3 preserved", len(final.Results))
	}
	if final.Err != "" {
		t.Errorf("cancelled run should not surface an error, got %q", final.Err)
	}

	// The cancelling phase was visible between the call and the terminal
	// snapshot.
	sawCancelling := false
	for _, st := range rec.all() {
		if st.Phase == PhaseCancelling {
			sawCancelling = true
		}
	}
	if !sawCancelling {
		t.Error("cancelling phase never published")
	}
}

func TestPollTransportFailureIsFatal(t *testing.T) {
	mock := &mockRunClient{
		submitResp: &api.SubmitResponse{ID: "run-1", Total: 5, Status: api.StatusPending},
		getErr:     errors.New("connection refused"),
	}
	o := newWithClient(mock, testInterval, nil)
	defer o.Dispose()

	o.Submit(context.Background(), []string{"AAA"}, api.BacktestOptions{})

	st := waitFor(t, o, "poll failure surfaced", func(st State) bool { return st.Err != "" })
	if st.Phase != PhaseIdle {
		t.Errorf("phase = %q, want idle after fatal poll error", st.Phase)
	}
	if st.Err != pollFailedMsg {
		t.Errorf("err = %q, want generic transport message", st.Err)
	}

	// Single-run polling stops on the first transport failure.
	before := mock.getCalls.Load()
	time.Sleep(10 * testInterval)
	if after := mock.getCalls.Load(); after != before {
		t.Errorf("polling continued after fatal error: %d -> %d calls", before, after)
	}
}

func TestFailedRunSurfacesServerMessage(t *testing.T) {
	mock := &mockRunClient{
		submitResp: &api.SubmitResponse{ID: "run-1", Total: 5, Status: api.StatusPending},
		snapshots: []*api.RunSnapshot{
			{ID: "run-1", Status: api.StatusFailed, ErrorMessage: "strategy diverged"},
		},
	}
	o := newWithClient(mock, testInterval, nil)
	defer o.Dispose()

	o.Submit(context.Background(), []string{"AAA"}, api.BacktestOptions{})

	st := waitFor(t, o, "failed status", func(st State) bool { return st.Status == api.StatusFailed })
	if st.Err != "strategy diverged" {
		t.Errorf("err = %q, want server-reported reason", st.Err)
	}
	if st.Phase != PhaseIdle {
		t.Errorf("phase = %q, want idle", st.Phase)
	}
}

func TestFailedSymbolsAccumulateUntilResubmission(t *testing.T) {
	mock := &mockRunClient{
		submitResp: &api.SubmitResponse{ID: "run-1", Total: 3, Status: api.StatusPending},
		snapshots: []*api.RunSnapshot{
			{
				ID: "run-1", Status: api.StatusRunning, Total: 3, Processed: 2,
				Results:       results(1),
				FailedSymbols: map[string]string{"XYZ": "no data"},
			},
			{
				ID: "run-1", Status: api.StatusCompleted, Total: 3, Processed: 3,
				Results:       results(1),
				FailedSymbols: map[string]string{"XYZ": "no data", "QQQ": "delisted"},
			},
		},
	}
	o := newWithClient(mock, testInterval, nil)
	defer o.Dispose()

	o.Submit(context.Background(), []string{"AAA", "XYZ", "QQQ"}, api.BacktestOptions{})

	final := waitFor(t, o, "completion", func(st State) bool {
		return st.Status == api.StatusCompleted
	})
	if len(final.FailedSymbols) != 2 {
		t.Errorf("failed symbols = %v, want both diagnostics", final.FailedSymbols)
	}
	if final.FailedSymbols["QQQ"] != "delisted" {
		t.Errorf("missing accumulated diagnostic: %v", final.FailedSymbols)
	}
}
