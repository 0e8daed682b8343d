// Package watchlist manages named symbol collections. Plain request/response
// over the API client, no polling and no local state.
package watchlist

import (
	"context"
	"errors"
	"strings"

	"github.com/dimakrest/trading-analyst/internal/api"
)

// client is the slice of the API client this package needs.
// Interface for dependency injection (testing).
type client interface {
	ListWatchlists(ctx context.Context) ([]api.Watchlist, error)
	SaveWatchlist(ctx context.Context, w api.Watchlist) (*api.Watchlist, error)
	DeleteWatchlist(ctx context.Context, id string) error
}

// Manager wraps watchlist CRUD with input normalization.
type Manager struct {
	client client
}

// NewManager creates a Manager backed by the real API client.
func NewManager(c *api.Client) *Manager {
	return newWithClient(c)
}

func newWithClient(c client) *Manager {
	return &Manager{client: c}
}

// List returns all watchlists.
func (m *Manager) List(ctx context.Context) ([]api.Watchlist, error) {
	return m.client.ListWatchlists(ctx)
}

// Save normalizes the symbol set and creates or updates the watchlist.
// A list that normalizes to nothing is rejected locally.
func (m *Manager) Save(ctx context.Context, w api.Watchlist) (*api.Watchlist, error) {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return nil, errors.New("watchlist name is empty")
	}
	w.Symbols = NormalizeSymbols(w.Symbols)
	if len(w.Symbols) == 0 {
		return nil, errors.New("watchlist has no symbols")
	}
	return m.client.SaveWatchlist(ctx, w)
}

// Delete removes a watchlist by id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.client.DeleteWatchlist(ctx, id)
}

// NormalizeSymbols upper-cases, trims, and de-duplicates symbols, dropping
// blanks. First occurrence wins, order otherwise preserved.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// ParseSymbols splits free-form user input (commas, whitespace, or both)
// into a normalized symbol list.
func ParseSymbols(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return NormalizeSymbols(fields)
}
