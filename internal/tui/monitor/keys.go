package monitor

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding. Which ones are live depends on the session.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Add    key.Binding
	Edit   key.Binding
	Delete key.Binding
	Logout key.Binding
	Login  key.Binding
	SignUp key.Binding
	Help   key.Binding
	Quit   key.Binding
	Cancel key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:   key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit")),
		Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Logout: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "log out")),
		Login:  key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "log in")),
		SignUp: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sign up")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// setLoggedIn enables the logged-in set and disables the logged-out set,
// or the reverse.
func (k *keyMap) setLoggedIn(loggedIn bool) {
	for _, b := range []*key.Binding{&k.Up, &k.Down, &k.Add, &k.Edit, &k.Delete, &k.Logout} {
		b.SetEnabled(loggedIn)
	}
	k.Login.SetEnabled(!loggedIn)
	k.SignUp.SetEnabled(!loggedIn)
}

// ShortHelp implements help.KeyMap. Disabled bindings are not rendered.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Add, k.Edit, k.Delete, k.Logout, k.Login, k.SignUp, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Add, k.Edit, k.Delete},
		{k.Login, k.SignUp, k.Logout},
		{k.Help, k.Quit},
	}
}
