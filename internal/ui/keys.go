package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect key.Binding
	Pause   key.Binding
	Clear   key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Pause, k.Clear, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Quit},
		{k.Pause, k.Clear},
	}
}

var keys = keyMap{
	Connect: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "connect/disconnect"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pause"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}

// forceQuit works while the endpoint input has focus, where q is just a letter.
var forceQuit = key.NewBinding(key.WithKeys("ctrl+c"))
