package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dimakrest/trading-analyst/internal/api"
	"github.com/dimakrest/trading-analyst/internal/backtest"
	"github.com/dimakrest/trading-analyst/internal/compare"
	"github.com/dimakrest/trading-analyst/internal/filter"
	"github.com/dimakrest/trading-analyst/internal/news"
	"github.com/dimakrest/trading-analyst/internal/store"
	"github.com/dimakrest/trading-analyst/internal/watchlist"
)

// Tab identifies one dashboard view.
type Tab int

const (
	TabBacktest Tab = iota
	TabComparison
	TabWatchlists
	TabHistory
	TabNews
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabBacktest:
		return "Backtest"
	case TabComparison:
		return "Comparison"
	case TabWatchlists:
		return "Watchlists"
	case TabHistory:
		return "History"
	case TabNews:
		return "News"
	}
	return "?"
}

// AppConfig wires the App to the orchestration layer. Every field returns a
// Cmd; the App never touches the network or timers itself.
type AppConfig struct {
	Submit           func(symbols []string, opts api.BacktestOptions) tea.Cmd
	CancelRun        func() tea.Cmd
	TrackGroup       func(groupID string) tea.Cmd
	CreateComparison func(symbols []string) tea.Cmd
	LoadWatchlists   func() tea.Cmd
	DeleteWatchlist  func(id string) tea.Cmd
	LoadHeadlines    func() tea.Cmd
	LoadHistory      func() tea.Cmd
	LoadPrefs        func() tea.Cmd
	SaveFilters      func(c filter.Criteria) tea.Cmd
}

// headlineRefreshInterval is how often the news tab refetches its feeds.
const headlineRefreshInterval = 10 * time.Minute

func scheduleHeadlineRefresh() tea.Cmd {
	return tea.Tick(headlineRefreshInterval, func(time.Time) tea.Msg {
		return RefreshTick{}
	})
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the orchestrators. It receives their state
// via messages and issues commands through AppConfig.
type App struct {
	cfg AppConfig

	tab    Tab
	width  int
	height int
	ready  bool

	run        backtest.State
	comparison compare.State
	criteria   filter.Criteria

	symbolInput textinput.Model
	searchInput textinput.Model
	groupInput  textinput.Model
	spin        spinner.Model

	watchlists []api.Watchlist
	wlCursor   int
	headlines  []news.Headline
	newsErr    error
	history    []store.RunRecord

	uiErr error
}

// NewApp creates a new App with the given command functions.
func NewApp(cfg AppConfig) App {
	symbolInput := textinput.New()
	symbolInput.Placeholder = "AAPL, MSFT, NVDA ..."
	symbolInput.CharLimit = 512

	searchInput := textinput.New()
	searchInput.Placeholder = "filter symbols"
	searchInput.CharLimit = 32

	groupInput := textinput.New()
	groupInput.Placeholder = "comparison group id"
	groupInput.CharLimit = 64

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return App{
		cfg:         cfg,
		symbolInput: symbolInput,
		searchInput: searchInput,
		groupInput:  groupInput,
		spin:        spin,
	}
}

// Init restores preferences, loads the passive tabs, and starts the spinner
// and the headline refresh timer.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.spin.Tick, scheduleHeadlineRefresh()}
	if a.cfg.LoadPrefs != nil {
		cmds = append(cmds, a.cfg.LoadPrefs())
	}
	if a.cfg.LoadWatchlists != nil {
		cmds = append(cmds, a.cfg.LoadWatchlists())
	}
	if a.cfg.LoadHeadlines != nil {
		cmds = append(cmds, a.cfg.LoadHeadlines())
	}
	if a.cfg.LoadHistory != nil {
		cmds = append(cmds, a.cfg.LoadHistory())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case BacktestUpdated:
		wasActive := a.run.Phase == backtest.PhaseActive || a.run.Phase == backtest.PhaseCancelling
		a.run = msg.State
		// A run that just finished lands in local history; refresh the tab.
		if wasActive && msg.State.Phase == backtest.PhaseIdle && a.cfg.LoadHistory != nil {
			return a, a.cfg.LoadHistory()
		}
		return a, nil

	case ComparisonUpdated:
		a.comparison = msg.State
		return a, nil

	case ComparisonCreated:
		if msg.Err != nil {
			a.uiErr = msg.Err
			return a, nil
		}
		a.groupInput.SetValue(msg.GroupID)
		a.tab = TabComparison
		return a, nil

	case PrefsLoaded:
		a.criteria = msg.Criteria
		a.searchInput.SetValue(msg.Criteria.Query)
		return a, nil

	case WatchlistsLoaded:
		if msg.Err != nil {
			a.uiErr = msg.Err
			return a, nil
		}
		a.watchlists = msg.Lists
		if a.wlCursor >= len(a.watchlists) && len(a.watchlists) > 0 {
			a.wlCursor = len(a.watchlists) - 1
		}
		return a, nil

	case WatchlistDeleted:
		if msg.Err != nil {
			a.uiErr = msg.Err
			return a, nil
		}
		if a.cfg.LoadWatchlists != nil {
			return a, a.cfg.LoadWatchlists()
		}
		return a, nil

	case HeadlinesLoaded:
		a.headlines = msg.Items
		a.newsErr = msg.Err
		return a, nil

	case HistoryLoaded:
		if msg.Err != nil {
			a.uiErr = msg.Err
			return a, nil
		}
		a.history = msg.Runs
		return a, nil

	case RefreshTick:
		cmds := []tea.Cmd{scheduleHeadlineRefresh()}
		if a.cfg.LoadHeadlines != nil {
			cmds = append(cmds, a.cfg.LoadHeadlines())
		}
		return a, tea.Batch(cmds...)
	}

	return a, nil
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	// Dismiss a transient UI error on any key.
	if a.uiErr != nil {
		a.uiErr = nil
	}

	if a.symbolInput.Focused() {
		return a.handleSymbolInput(msg)
	}
	if a.searchInput.Focused() {
		return a.handleSearchInput(msg)
	}
	if a.groupInput.Focused() {
		return a.handleGroupInput(msg)
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit

	case "tab":
		a.tab = (a.tab + 1) % tabCount
		return a, nil

	case "shift+tab":
		a.tab = (a.tab + tabCount - 1) % tabCount
		return a, nil
	}

	switch a.tab {
	case TabBacktest:
		return a.handleBacktestKeys(msg)
	case TabComparison:
		return a.handleComparisonKeys(msg)
	case TabWatchlists:
		return a.handleWatchlistKeys(msg)
	case TabNews:
		if msg.String() == "r" && a.cfg.LoadHeadlines != nil {
			return a, a.cfg.LoadHeadlines()
		}
	case TabHistory:
		if msg.String() == "r" && a.cfg.LoadHistory != nil {
			return a, a.cfg.LoadHistory()
		}
	}
	return a, nil
}

func (a App) handleSymbolInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		symbols := watchlist.ParseSymbols(a.symbolInput.Value())
		a.symbolInput.Blur()
		if len(symbols) == 0 || a.cfg.Submit == nil {
			return a, nil
		}
		return a, a.cfg.Submit(symbols, api.BacktestOptions{Strategy: "breakout"})
	case "esc":
		a.symbolInput.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.symbolInput, cmd = a.symbolInput.Update(msg)
	return a, cmd
}

func (a App) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		a.searchInput.Blur()
		return a, a.saveFilters()
	}
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	// The query narrows the table on every keystroke.
	a.criteria.Query = a.searchInput.Value()
	return a, cmd
}

func (a App) handleGroupInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		id := a.groupInput.Value()
		a.groupInput.Blur()
		if a.cfg.TrackGroup == nil {
			return a, nil
		}
		return a, a.cfg.TrackGroup(id)
	case "esc":
		a.groupInput.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.groupInput, cmd = a.groupInput.Update(msg)
	return a, cmd
}

func (a App) handleBacktestKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s":
		a.symbolInput.Focus()
		return a, textinput.Blink

	case "/":
		a.searchInput.Focus()
		return a, textinput.Blink

	case "c":
		if a.cfg.CancelRun != nil {
			return a, a.cfg.CancelRun()
		}

	case "d":
		// Cycle the direction filter: off -> long -> short -> off.
		switch a.criteria.Direction {
		case "":
			a.criteria.Direction = "long"
		case "long":
			a.criteria.Direction = "short"
		default:
			a.criteria.Direction = ""
		}
		return a, a.saveFilters()

	case "m":
		a.criteria.MinScore++
		if a.criteria.MinScore > 9 {
			a.criteria.MinScore = 0
		}
		return a, a.saveFilters()

	case "v":
		a.criteria.MinRelVolume += 0.5
		if a.criteria.MinRelVolume > 3 {
			a.criteria.MinRelVolume = 0
		}
		return a, a.saveFilters()

	case "[":
		a.criteria.ATRRange[0]++
		if a.criteria.ATRRange[0] > 9 {
			a.criteria.ATRRange[0] = 0
		}
		return a, a.saveFilters()

	case "]":
		a.criteria.ATRRange[1]++
		if a.criteria.ATRRange[1] > 9 {
			a.criteria.ATRRange[1] = 0
		}
		return a, a.saveFilters()

	case "x":
		a.criteria = filter.Criteria{}
		a.searchInput.SetValue("")
		return a, a.saveFilters()
	}
	return a, nil
}

// saveFilters persists the current criteria as the startup defaults.
func (a App) saveFilters() tea.Cmd {
	if a.cfg.SaveFilters == nil {
		return nil
	}
	return a.cfg.SaveFilters(a.criteria)
}

func (a App) handleComparisonKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "g":
		a.groupInput.Focus()
		return a, textinput.Blink

	case "n":
		// New long-vs-short comparison over the staged symbols.
		symbols := watchlist.ParseSymbols(a.symbolInput.Value())
		if len(symbols) == 0 || a.cfg.CreateComparison == nil {
			return a, nil
		}
		return a, a.cfg.CreateComparison(symbols)

	case "esc":
		if a.cfg.TrackGroup != nil {
			a.groupInput.SetValue("")
			return a, a.cfg.TrackGroup("")
		}
	}
	return a, nil
}

func (a App) handleWatchlistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if a.wlCursor < len(a.watchlists)-1 {
			a.wlCursor++
		}

	case "k", "up":
		if a.wlCursor > 0 {
			a.wlCursor--
		}

	case "enter":
		// Stage the selected list's symbols for a backtest.
		if a.wlCursor < len(a.watchlists) {
			a.symbolInput.SetValue(joinSymbols(a.watchlists[a.wlCursor].Symbols))
			a.tab = TabBacktest
		}

	case "D":
		if a.wlCursor < len(a.watchlists) && a.cfg.DeleteWatchlist != nil {
			return a, a.cfg.DeleteWatchlist(a.watchlists[a.wlCursor].ID)
		}

	case "r":
		if a.cfg.LoadWatchlists != nil {
			return a, a.cfg.LoadWatchlists()
		}
	}
	return a, nil
}

// Run returns the current run state (for testing).
func (a App) Run() backtest.State { return a.run }

// Comparison returns the current group state (for testing).
func (a App) Comparison() compare.State { return a.comparison }

// Criteria returns the active filter criteria (for testing).
func (a App) Criteria() filter.Criteria { return a.criteria }

// ActiveTab returns the selected tab (for testing).
func (a App) ActiveTab() Tab { return a.tab }
