package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/config"
	"github.com/abelbrown/verdant/internal/otel"
)

// Actions are the commands the App triggers. Any of them may be nil.
type Actions struct {
	SetQuery  func(q string) tea.Cmd
	CycleSort func() tea.Cmd
	Refresh   func() tea.Cmd
	MarkDone  func(row card.Row) tea.Cmd
	Snooze    func(row card.Row) tea.Cmd
}

// CardActions builds Actions that drive c. Each command blocks in its
// own goroutine; rows come back through RowsRendered.
func CardActions(ctx context.Context, c *card.Card) Actions {
	return Actions{
		SetQuery: func(q string) tea.Cmd {
			return func() tea.Msg {
				c.SetQuery(ctx, q)
				return nil
			}
		},
		CycleSort: func() tea.Cmd {
			return func() tea.Msg {
				return SortChanged{Key: c.CycleSort(ctx)}
			}
		},
		Refresh: func() tea.Cmd {
			return func() tea.Msg {
				c.Refresh(ctx)
				return refreshDone{}
			}
		},
		MarkDone: func(row card.Row) tea.Cmd {
			return func() tea.Msg {
				err := c.Triggers(row).MarkDone(ctx)
				return ActionDone{Action: "done", EntityID: row.EntityID(), Err: err}
			}
		},
		Snooze: func(row card.Row) tea.Cmd {
			return func() tea.Msg {
				err := c.Triggers(row).Snooze(ctx)
				return ActionDone{Action: "snooze", EntityID: row.EntityID(), Err: err}
			}
		},
	}
}

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the card. It receives rows via messages.
type App struct {
	title   string
	labels  card.Labels
	actions Actions
	ring    *otel.RingBuffer

	rows      []card.Row
	cursor    int
	sort      config.SortKey
	search    textinput.Model
	searching bool
	confirm   *ConfirmRequested
	spinner   spinner.Model
	help      help.Model
	status    string
	err       error
	width     int
	height    int
	ready     bool
	loading   bool
	debug     bool
}

// NewApp creates an App. ring may be nil, which disables the event overlay.
func NewApp(title string, labels card.Labels, sort config.SortKey, actions Actions, ring *otel.RingBuffer) App {
	ti := textinput.New()
	ti.Placeholder = labels.SearchPlaceholder
	ti.Prompt = "/ "
	ti.PromptStyle = searchPrompt
	ti.CharLimit = 64

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(paleLeaf)

	return App{
		title:   title,
		labels:  labels,
		actions: actions,
		ring:    ring,
		sort:    sort,
		search:  ti,
		spinner: s,
		help:    help.New(),
		loading: true,
	}
}

// Init starts the spinner; rows arrive once the card attaches.
func (a App) Init() tea.Cmd {
	return a.spinner.Tick
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
		a.search.Width = max(msg.Width-6, 10)
		a.help.Width = msg.Width
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case RowsRendered:
		a.loading = false
		a.setRows(msg.Rows)
		return a, nil

	case Attached:
		if msg.Subscribed {
			a.status = "live"
		} else {
			a.status = "polling"
		}
		return a, nil

	case Resynced:
		a.err = msg.Err
		return a, nil

	case SortChanged:
		a.sort = msg.Key
		return a, nil

	case ConfirmRequested:
		if a.confirm != nil {
			// One modal at a time; a second request is declined.
			msg.Reply <- false
			return a, nil
		}
		a.confirm = &msg
		return a, nil

	case ActionDone:
		if msg.Err != nil && !errors.Is(msg.Err, card.ErrDeclined) {
			a.err = msg.Err
		}
		return a, nil

	case refreshDone:
		a.loading = false
		return a, nil
	}

	return a, nil
}

// setRows replaces the rows, keeping the cursor on the same plant when it
// is still listed.
func (a *App) setRows(rows []card.Row) {
	selected := ""
	if a.cursor < len(a.rows) {
		selected = a.rows[a.cursor].EntityID()
	}
	a.rows = rows
	for i, r := range rows {
		if r.EntityID() == selected {
			a.cursor = i
			return
		}
	}
	if a.cursor >= len(rows) {
		a.cursor = max(len(rows)-1, 0)
	}
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.confirm != nil {
		return a.handleConfirmKey(msg)
	}
	if a.searching {
		return a.handleSearchKey(msg)
	}

	// Clear any existing error on key press
	a.err = nil

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, keys.Down):
		if a.cursor < len(a.rows)-1 {
			a.cursor++
		}
		return a, nil

	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
		return a, nil

	case key.Matches(msg, keys.Search):
		a.searching = true
		return a, a.search.Focus()

	case key.Matches(msg, keys.Sort):
		if a.actions.CycleSort != nil {
			return a, a.actions.CycleSort()
		}
		return a, nil

	case key.Matches(msg, keys.Done):
		if row, ok := a.selected(); ok && a.actions.MarkDone != nil {
			return a, a.actions.MarkDone(row)
		}
		return a, nil

	case key.Matches(msg, keys.Snooze):
		if row, ok := a.selected(); ok && a.actions.Snooze != nil {
			return a, a.actions.Snooze(row)
		}
		return a, nil

	case key.Matches(msg, keys.Refresh):
		if a.actions.Refresh != nil {
			a.loading = true
			return a, tea.Batch(a.actions.Refresh(), a.spinner.Tick)
		}
		return a, nil

	case key.Matches(msg, keys.Debug):
		a.debug = !a.debug
		return a, nil

	case key.Matches(msg, keys.Help):
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	}

	return a, nil
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, searchDone):
		a.searching = false
		a.search.Blur()
		return a, nil

	case key.Matches(msg, searchCancel):
		a.searching = false
		a.search.Blur()
		if a.search.Value() == "" {
			return a, nil
		}
		a.search.SetValue("")
		return a, a.queryCmd("")
	}

	before := a.search.Value()
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	if after := a.search.Value(); after != before {
		return a, tea.Batch(cmd, a.queryCmd(after))
	}
	return a, cmd
}

func (a App) queryCmd(q string) tea.Cmd {
	if a.actions.SetQuery == nil {
		return nil
	}
	return a.actions.SetQuery(q)
}

func (a App) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, confirmYes):
		a.confirm.Reply <- true
		a.confirm = nil
	case key.Matches(msg, confirmNo):
		a.confirm.Reply <- false
		a.confirm = nil
	}
	return a, nil
}

func (a App) selected() (card.Row, bool) {
	if a.cursor < 0 || a.cursor >= len(a.rows) {
		return card.Row{}, false
	}
	return a.rows[a.cursor], true
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debug {
		overlay := debugOverlay(a.ring, a.width, a.height-1)
		return lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, overlay) +
			"\n" + debugStatusBar(a.width)
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	used := 2

	if a.searching || a.search.Value() != "" {
		b.WriteString(searchBar.Width(a.width).Render(a.search.View()))
		b.WriteString("\n")
		used++
	}

	errorBar := ""
	if a.err != nil {
		errorBar = errorLine.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)") + "\n"
		used++
	}

	helpView := ""
	if a.help.ShowAll {
		helpView = a.help.View(keys) + "\n"
		used += lipgloss.Height(helpView) - 1
	}

	contentHeight := max(a.height-used, 1)
	if a.confirm != nil {
		box := confirmBox.Render(a.confirm.Prompt + "\n\n" +
			footerKey.Render("y") + footerText.Render(" yes   ") +
			footerKey.Render("n") + footerText.Render(" no"))
		b.WriteString(lipgloss.Place(a.width, contentHeight, lipgloss.Center, lipgloss.Center, box))
		b.WriteString("\n")
	} else {
		b.WriteString(RenderRows(a.rows, a.labels, a.cursor, a.width, contentHeight))
	}

	b.WriteString(errorBar)
	b.WriteString(helpView)
	b.WriteString(RenderStatusBar(a.cursor, len(a.rows), a.labels.SortName(a.sort), a.width, a.help.ShortHelpView(keys.ShortHelp())))
	return b.String()
}

func (a App) renderHeader() string {
	right := a.status
	if a.loading {
		right = a.spinner.View() + " " + right
	}
	padding := max(a.width-lipgloss.Width(a.title)-lipgloss.Width(right)-2, 1)
	return titleBar.Width(a.width).Render(a.title + strings.Repeat(" ", padding) + right)
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Rows returns the current rows (for testing).
func (a App) Rows() []card.Row {
	return a.rows
}
