package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit        key.Binding
	reload      key.Binding
	toggleHelp  key.Binding
	moveLeft    key.Binding
	moveRight   key.Binding
	moveUp      key.Binding
	moveDown    key.Binding
	grab        key.Binding
	cycleView   key.Binding
	cycleSort   key.Binding
	tidy        key.Binding
	search      key.Binding
	addTask     key.Binding
	editTask    key.Binding
	taskInfo    key.Binding
	deleteTask  key.Binding
	yankTask    key.Binding
	newGroup    key.Binding
	editGroup   key.Binding
	deleteGroup key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:    key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "bucket left")),
		moveRight:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "bucket right")),
		moveUp:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		grab:        key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "pick up / drop")),
		cycleView:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "cycle view")),
		cycleSort:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle sort")),
		tidy:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "persist visible order")),
		search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter tasks")),
		addTask:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		editTask:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
		taskInfo:    key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		deleteTask:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		yankTask:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yank task id")),
		newGroup:    key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new group")),
		editGroup:   key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "edit group")),
		deleteGroup: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete group")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grab, k.cycleView, k.cycleSort, k.addTask, k.taskInfo, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.grab, k.cycleView, k.cycleSort, k.search, k.tidy, k.reload, k.toggleHelp, k.quit},
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.addTask, k.editTask, k.taskInfo, k.deleteTask, k.yankTask},
		{k.newGroup, k.editGroup, k.deleteGroup},
	}
}
