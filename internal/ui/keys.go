package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap lists the list-mode bindings. It implements help.KeyMap.
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Search  key.Binding
	Sort    key.Binding
	Done    key.Binding
	Snooze  key.Binding
	Refresh key.Binding
	Debug   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Sort:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
	Done:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "done")),
	Snooze:  key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "snooze")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Debug:   key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "events")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Search-mode and modal bindings.
var (
	searchDone   = key.NewBinding(key.WithKeys("enter"))
	searchCancel = key.NewBinding(key.WithKeys("esc"))
	confirmYes   = key.NewBinding(key.WithKeys("y", "Y"))
	confirmNo    = key.NewBinding(key.WithKeys("n", "N", "esc"))
)

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Sort, k.Done, k.Snooze, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Search, k.Sort},
		{k.Done, k.Snooze, k.Refresh},
		{k.Debug, k.Help, k.Quit},
	}
}
