package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the kitchen board TUI.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding

	// Switches between the work column and the ready column.
	FocusToggle key.Binding

	TabPriority key.Binding
	TabDish     key.Binding
	TabTable    key.Binding

	// Work column actions.
	Start       key.Binding
	CompleteOne key.Binding
	CompleteAll key.Binding

	// Ready column actions.
	Serve    key.Binding
	Rollback key.Binding

	Refresh key.Binding
	Quit    key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	FocusToggle: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "switch column"),
	),
	TabPriority: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "priority"),
	),
	TabDish: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "by dish"),
	),
	TabTable: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "by table"),
	),
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start"),
	),
	CompleteOne: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "complete one"),
	),
	CompleteAll: key.NewBinding(
		key.WithKeys("C"),
		key.WithHelp("C", "complete all"),
	),
	Serve: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "serve one"),
	),
	Rollback: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "back to work"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k KeyMap) workHelp() []key.Binding {
	return []key.Binding{k.Start, k.CompleteOne, k.CompleteAll, k.FocusToggle, k.Refresh, k.Quit}
}

func (k KeyMap) readyHelp() []key.Binding {
	return []key.Binding{k.Serve, k.Rollback, k.FocusToggle, k.Refresh, k.Quit}
}
