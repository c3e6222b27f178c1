// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit   key.Binding
	Help   key.Binding
	Back   key.Binding
	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	// Ask submits the question in the ask view.
	Ask key.Binding

	// Reload refreshes the document list.
	Reload key.Binding

	// Delete removes the selected document after confirmation.
	Delete key.Binding

	// Confirm accepts a pending delete.
	Confirm key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "ask"),
		),
		Ask: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
	}
}

// DocumentsHelp returns the bindings shown under the document list.
func (k *KeyMap) DocumentsHelp() []key.Binding {
	return []key.Binding{k.Select, k.Reload, k.Delete, k.Help, k.Quit}
}

// AskHelp returns the bindings shown in the ask view.
func (k *KeyMap) AskHelp() []key.Binding {
	return []key.Binding{k.Ask, k.Back}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Reload, k.Delete, k.Confirm},
		{k.Ask, k.Back},
		{k.Help, k.Quit},
	}
}
