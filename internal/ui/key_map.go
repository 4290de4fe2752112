package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up          key.Binding
	down        key.Binding
	enter       key.Binding
	back        key.Binding
	nextType    key.Binding
	search      key.Binding
	more        key.Binding
	dashboard   key.Binding
	status      key.Binding
	prevSeason  key.Binding
	nextSeason  key.Binding
	prevEpisode key.Binding
	nextEpisode key.Binding
	open        key.Binding
	quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		nextType:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next type")),
		search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		more:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "more")),
		dashboard:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dashboard")),
		status:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "set status")),
		prevSeason:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev season")),
		nextSeason:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next season")),
		prevEpisode: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "prev episode")),
		nextEpisode: key.NewBinding(key.WithKeys("=", "+"), key.WithHelp("+", "next episode")),
		open:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.nextType, k.search, k.more, k.dashboard},
		{k.status, k.prevSeason, k.nextSeason, k.prevEpisode, k.nextEpisode},
		{k.open, k.quit},
	}
}
