// Package poll implements the recurring-fetch loop bound to one subject.
//
// A Session owns exactly one background loop: an immediate fetch, then one
// fetch per tick until the done predicate fires, a fatal error occurs, or the
// session is disposed. A disposed session guarantees that a fetch response
// arriving afterwards is silently discarded and never reaches a callback.
// Consumers create a fresh Session per subject; sessions are not reusable.
package poll

import (
	"context"
	"sync"
	"time"
)

// defaultInterval is used when a config omits the tick period.
const defaultInterval = 2 * time.Second

// Config describes one polling loop. Fetch is required; the callbacks are
// optional. Callbacks are invoked from the session goroutine and must not
// call Dispose or Wait on the same session.
type Config[T any] struct {
	// Interval between ticks. Ticks serialize: a fetch slower than the
	// interval delays the next tick rather than stacking a second fetch.
	Interval time.Duration

	// Fetch retrieves the current snapshot. The context is cancelled on
	// disposal, so a disposed session unblocks promptly.
	Fetch func(ctx context.Context) (T, error)

	// Done reports whether the snapshot is terminal. When it returns true
	// the loop stops after publishing; the last snapshot stays with the
	// consumer.
	Done func(T) bool

	// OnSnapshot receives every successfully fetched snapshot, in order.
	OnSnapshot func(T)

	// OnError receives fetch failures and decides the loop's fate: true
	// stops the loop (single-run polling treats the subject as
	// unreachable), false keeps it running (group polling rides out
	// transient failures). A nil OnError keeps the loop running.
	OnError func(error) (stop bool)
}

// Session is one interval-driven fetch loop. Create with New, then Start.
type Session[T any] struct {
	cfg    Config[T]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	disposed bool
}

// New creates a Session from cfg. The loop does not run until Start.
func New[T any](cfg Config[T]) *Session[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session[T]{cfg: cfg, ctx: ctx, cancel: cancel}
}

// Start launches the loop: one immediate fetch, then one per tick.
// Starting twice, or starting a disposed session, is a no-op.
func (s *Session[T]) Start() {
	s.mu.Lock()
	if s.started || s.disposed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// First result should not wait a full interval.
		if s.step() {
			return
		}

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if s.step() {
					return
				}
			}
		}
	}()
}

// step performs one fetch and publishes its outcome. Returns true when the
// loop must stop. Publication happens under the session mutex so that
// Dispose, once it returns, excludes any further callback invocation.
func (s *Session[T]) step() bool {
	snap, err := s.cfg.Fetch(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The session may have been disposed while the fetch was in flight.
	// The response is stale: drop it without touching any callback.
	if s.disposed || s.ctx.Err() != nil {
		return true
	}

	if err != nil {
		if s.cfg.OnError != nil && s.cfg.OnError(err) {
			s.cancel()
			return true
		}
		return false
	}

	if s.cfg.OnSnapshot != nil {
		s.cfg.OnSnapshot(snap)
	}
	if s.cfg.Done != nil && s.cfg.Done(snap) {
		// Terminal: stop ticking. The snapshot just published remains the
		// consumer's last good data.
		s.cancel()
		return true
	}
	return false
}

// Dispose stops the loop and marks the session inert. Idempotent. After
// Dispose returns, no callback will fire again, even for a fetch that is
// still outstanding.
func (s *Session[T]) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until the loop goroutine has exited. Useful in tests and
// during shutdown; call after Dispose or after the loop self-stops.
func (s *Session[T]) Wait() {
	s.wg.Wait()
}
