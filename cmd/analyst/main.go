package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/dimakrest/trading-analyst/internal/api"
	"github.com/dimakrest/trading-analyst/internal/backtest"
	"github.com/dimakrest/trading-analyst/internal/compare"
	"github.com/dimakrest/trading-analyst/internal/config"
	"github.com/dimakrest/trading-analyst/internal/filter"
	"github.com/dimakrest/trading-analyst/internal/logging"
	"github.com/dimakrest/trading-analyst/internal/news"
	"github.com/dimakrest/trading-analyst/internal/store"
	"github.com/dimakrest/trading-analyst/internal/ui"
	"github.com/dimakrest/trading-analyst/internal/watchlist"
)

const historyLimit = 50

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.AutoPopulateFromEnv()
	if cfg.API.BaseURL == "" {
		log.Fatal("No analysis service configured: set api.base_url in ~/.analyst/config.json or ANALYST_API_URL")
	}

	if err := logging.Init(); err != nil {
		log.Printf("Warning: file logging disabled: %v", err)
	}
	defer logging.Close()

	// Local cache is best effort; the dashboard works without it.
	var st *store.Store
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0755); err == nil {
		st, err = store.Open(filepath.Join(dataDir, "analyst.db"))
		if err != nil {
			logging.Warn("run history disabled", "error", err)
			st = nil
		}
	}
	if st != nil {
		defer st.Close()
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.API.RequestsPerSec)
	lists := watchlist.NewManager(client)
	fetcher := news.NewFetcher(15 * time.Second)

	// Saved theme wins over the config file; a config theme is migrated
	// into the local cache on first run.
	theme := cfg.UI.Theme
	if st != nil {
		if saved, ok, err := st.Theme(); err == nil && ok {
			theme = saved
		} else if theme != "" {
			if err := st.SaveTheme(theme); err != nil {
				logging.Warn("theme not saved", "error", err)
			}
		}
	}
	ui.ApplyTheme(theme)

	sources := make([]news.Source, 0, len(cfg.NewsFeeds))
	for _, f := range cfg.NewsFeeds {
		sources = append(sources, news.Source{Name: f.Name, URL: f.URL})
	}

	// The program pointer is filled in after the orchestrators exist; the
	// first notification cannot arrive before a Submit or SetGroup call.
	var program *tea.Program

	runs := backtest.New(client, cfg.Poll.RunInterval(), func(s backtest.State) {
		if program != nil {
			program.Send(ui.BacktestUpdated{State: s})
		}
	})
	if st != nil {
		runs.SetHistory(st)
	}
	defer runs.Dispose()

	groups := compare.New(client, cfg.Poll.ComparisonInterval(), func(s compare.State) {
		if program != nil {
			program.Send(ui.ComparisonUpdated{State: s})
		}
	})
	defer groups.Dispose()

	appCfg := ui.AppConfig{
		Submit: func(symbols []string, opts api.BacktestOptions) tea.Cmd {
			return func() tea.Msg {
				runs.Submit(ctx, symbols, opts)
				return nil
			}
		},
		CancelRun: func() tea.Cmd {
			return func() tea.Msg {
				runs.Cancel(ctx)
				return nil
			}
		},
		TrackGroup: func(groupID string) tea.Cmd {
			return func() tea.Msg {
				groups.SetGroup(groupID)
				return nil
			}
		},
		CreateComparison: func(symbols []string) tea.Cmd {
			return func() tea.Msg {
				snap, err := client.CreateComparison(ctx, api.ComparisonRequest{
					Name:    "long vs short",
					Symbols: symbols,
					Variants: []api.BacktestOptions{
						{Strategy: "breakout", Direction: "long"},
						{Strategy: "breakout", Direction: "short"},
					},
					RequestID: uuid.NewString(),
				})
				if err != nil {
					return ui.ComparisonCreated{Err: err}
				}
				groups.SetGroup(snap.GroupID)
				return ui.ComparisonCreated{GroupID: snap.GroupID}
			}
		},
		LoadWatchlists: func() tea.Cmd {
			return func() tea.Msg {
				items, err := lists.List(ctx)
				return ui.WatchlistsLoaded{Lists: items, Err: err}
			}
		},
		DeleteWatchlist: func(id string) tea.Cmd {
			return func() tea.Msg {
				err := lists.Delete(ctx, id)
				return ui.WatchlistDeleted{ID: id, Err: err}
			}
		},
		LoadHeadlines: func() tea.Cmd {
			return func() tea.Msg {
				items, err := fetcher.FetchAll(ctx, sources)
				return ui.HeadlinesLoaded{Items: items, Err: err}
			}
		},
	}
	if st != nil {
		appCfg.LoadHistory = func() tea.Cmd {
			return func() tea.Msg {
				records, err := st.RecentRuns(historyLimit)
				return ui.HistoryLoaded{Runs: records, Err: err}
			}
		}
		appCfg.LoadPrefs = func() tea.Cmd {
			return func() tea.Msg {
				criteria, ok, err := st.FilterDefaults()
				if err != nil || !ok {
					return nil
				}
				return ui.PrefsLoaded{Criteria: criteria}
			}
		}
		appCfg.SaveFilters = func(c filter.Criteria) tea.Cmd {
			return func() tea.Msg {
				if err := st.SaveFilterDefaults(c); err != nil {
					logging.Warn("filter defaults not saved", "error", err)
				}
				return nil
			}
		}
	}

	app := ui.NewApp(appCfg)
	program = tea.NewProgram(app, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		log.Printf("Error running program: %v", err)
	}

	// Stop the pollers before the deferred store/log teardown.
	cancel()
	runs.Dispose()
	groups.Dispose()
}
