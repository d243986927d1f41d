package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/quadrolabs/quadro/internal/board"
	"github.com/quadrolabs/quadro/internal/domain"
)

// Service represents service data used by this package.
type Service interface {
	Load(context.Context) error
	Tasks() []domain.Task
	Groups() []domain.Group
	Members() []domain.Member
	Context() board.Context
	Projection(board.ViewMode, board.SortMode) board.Projection
	Create(context.Context, domain.TaskInput) (domain.Task, <-chan error, error)
	Update(context.Context, domain.Task) (<-chan error, error)
	Delete(context.Context, string) (<-chan error, error)
	Move(context.Context, board.ViewMode, board.SortMode, string, string) (board.Reconciliation, <-chan error, error)
	PersistVisualOrder(context.Context, board.ViewMode, board.SortMode) (<-chan error, error)
	CreateGroup(context.Context, string, string) (domain.Group, <-chan error, error)
	UpdateGroup(context.Context, string, string, string) (<-chan error, error)
	DeleteGroup(context.Context, string) (<-chan error, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeTaskForm
	modeGroupForm
	modeTaskInfo
	modeConfirmDelete
	modeSearch
)

// taskFormFields stores task-form field keys in display/update order.
var taskFormFields = []string{"title", "description", "priority", "due", "labels", "assignees"}

// groupFormFields stores group-form field keys in display/update order.
var groupFormFields = []string{"name", "color"}

// loadedMsg carries the result of a full reload from persistence.
type loadedMsg struct {
	err error
}

// actionMsg carries message data through update handling.
type actionMsg struct {
	err         error
	status      string
	refresh     bool
	resetSort   bool
	focusTaskID string
}

// NoticeMsg carries a store notice into the update loop. The runtime wires
// the store's Notifier to the program so rollbacks surface here.
type NoticeMsg struct {
	Level   string
	Message string
}

// Model represents model data used by this package.
type Model struct {
	svc  Service
	keys keyMap
	help help.Model

	view   board.ViewMode
	sort   board.SortMode
	drag   board.Drag
	search string

	projection     board.Projection
	selectedBucket int
	selectedTask   int

	mode       inputMode
	input      textinput.Model
	formFields []string
	formValues map[string]string
	formFocus  int
	formTaskID string
	formGroup  string
	formTitle  string

	confirmKind  string
	confirmID    string
	confirmLabel string

	infoTaskID string
	md         markdownRenderer

	cardFields CardFieldConfig

	width  int
	height int
	ready  bool
	err    error
	status string
}

// NewModel constructs a board model over the given service.
func NewModel(svc Service, opts ...Option) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 400

	m := Model{
		svc:        svc,
		keys:       newKeyMap(),
		help:       help.New(),
		input:      input,
		view:       board.ViewByGroup,
		sort:       board.SortManual,
		formValues: map[string]string{},
		cardFields: DefaultCardFieldConfig(),
		status:     "loading...",
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.refreshProjection()
		if m.status == "" || m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			m.refreshProjection()
			return m, nil
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.resetSort {
			m.sort = board.SortManual
		}
		if msg.refresh {
			m.refreshProjection()
		}
		if msg.focusTaskID != "" {
			m.focusTask(msg.focusTaskID)
		}
		return m, nil

	case NoticeMsg:
		switch msg.Level {
		case "error":
			m.status = "error: " + msg.Message
		case "warn":
			m.status = "warning: " + msg.Message
		default:
			m.status = msg.Message
		}
		m.refreshProjection()
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)
	}

	return m, nil
}

// loadData loads required data for the current operation.
func (m Model) loadData() tea.Msg {
	return loadedMsg{err: m.svc.Load(context.Background())}
}

// refreshProjection recomputes the bucket layout from the service's current
// collection and clamps the selection back into range. An active search
// filter narrows the collection before bucketing.
func (m *Model) refreshProjection() {
	if query := strings.TrimSpace(m.search); query != "" {
		filtered := board.FilterTasks(m.svc.Tasks(), query)
		m.projection = board.Project(filtered, m.view, m.sort, m.svc.Context())
	} else {
		m.projection = m.svc.Projection(m.view, m.sort)
	}
	m.clampSelection()
}

func (m *Model) clampSelection() {
	if len(m.projection.Buckets) == 0 {
		m.selectedBucket = 0
		m.selectedTask = 0
		return
	}
	m.selectedBucket = clamp(m.selectedBucket, 0, len(m.projection.Buckets)-1)
	tasks := m.projection.Buckets[m.selectedBucket].Tasks
	maxTask := len(tasks) - 1
	if m.drag.Dragging() {
		maxTask = len(tasks)
	}
	m.selectedTask = clamp(m.selectedTask, 0, max(0, maxTask))
}

// focusTask moves the selection to the bucket and row holding the given task.
func (m *Model) focusTask(id string) {
	for bucketIdx, bucket := range m.projection.Buckets {
		for taskIdx, task := range bucket.Tasks {
			if task.ID == id {
				m.selectedBucket = bucketIdx
				m.selectedTask = taskIdx
				return
			}
		}
	}
}

func (m Model) selectedBucketRef() (board.Bucket, bool) {
	if m.selectedBucket < 0 || m.selectedBucket >= len(m.projection.Buckets) {
		return board.Bucket{}, false
	}
	return m.projection.Buckets[m.selectedBucket], true
}

func (m Model) selectedTaskRef() (domain.Task, bool) {
	bucket, ok := m.selectedBucketRef()
	if !ok {
		return domain.Task{}, false
	}
	if m.selectedTask < 0 || m.selectedTask >= len(bucket.Tasks) {
		return domain.Task{}, false
	}
	return bucket.Tasks[m.selectedTask], true
}

// dropTargetID resolves the current hover position into a drop target: the
// hovered task's id, or the bucket key when hovering an empty bucket or the
// slot past its last card.
func (m Model) dropTargetID() string {
	bucket, ok := m.selectedBucketRef()
	if !ok {
		return ""
	}
	if m.selectedTask >= len(bucket.Tasks) {
		return bucket.Key.String()
	}
	return bucket.Tasks[m.selectedTask].ID
}

func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		if m.help.ShowAll {
			m.status = "help"
		} else {
			m.status = "ready"
		}
		return m, nil
	case msg.String() == "esc":
		if m.help.ShowAll {
			m.help.ShowAll = false
			m.status = "ready"
			return m, nil
		}
		if m.drag.Dragging() {
			m.drag.Cancel()
			m.status = "drag cancelled"
			m.clampSelection()
			return m, nil
		}
		if m.search != "" {
			m.search = ""
			m.refreshProjection()
			m.status = "filter cleared"
			return m, nil
		}
		m.status = "ready"
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedBucket > 0 {
			m.selectedBucket--
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedBucket < len(m.projection.Buckets)-1 {
			m.selectedBucket++
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		bucket, ok := m.selectedBucketRef()
		if !ok {
			return m, nil
		}
		maxTask := len(bucket.Tasks) - 1
		if m.drag.Dragging() {
			maxTask = len(bucket.Tasks)
		}
		if m.selectedTask < maxTask {
			m.selectedTask++
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil
	case key.Matches(msg, m.keys.grab):
		if m.search != "" && !m.drag.Dragging() {
			m.status = "clear the filter before moving tasks (esc)"
			return m, nil
		}
		return m.handleGrab()
	case key.Matches(msg, m.keys.search):
		m.help.ShowAll = false
		m.mode = modeSearch
		m.input.SetValue(m.search)
		m.input.CursorEnd()
		m.input.Placeholder = "filter by title or label"
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.cycleView):
		m.drag.Cancel()
		m.view = nextViewMode(m.view)
		m.selectedBucket = 0
		m.selectedTask = 0
		m.refreshProjection()
		m.status = "view: " + string(m.view)
		return m, nil
	case key.Matches(msg, m.keys.cycleSort):
		m.drag.Cancel()
		m.sort = nextSortMode(m.sort)
		m.refreshProjection()
		m.status = "sort: " + string(m.sort)
		return m, nil
	case key.Matches(msg, m.keys.tidy):
		view, sort := m.view, m.sort
		return m, func() tea.Msg {
			if _, err := m.svc.PersistVisualOrder(context.Background(), view, sort); err != nil {
				return actionMsg{err: err}
			}
			// The persisted order is the manual order now.
			return actionMsg{status: "visible order persisted; sort: manual", refresh: true, resetSort: true}
		}
	case key.Matches(msg, m.keys.addTask):
		m.help.ShowAll = false
		return m.startTaskForm(nil)
	case key.Matches(msg, m.keys.editTask):
		task, ok := m.selectedTaskRef()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.help.ShowAll = false
		return m.startTaskForm(&task)
	case key.Matches(msg, m.keys.taskInfo):
		task, ok := m.selectedTaskRef()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.help.ShowAll = false
		m.mode = modeTaskInfo
		m.infoTaskID = task.ID
		m.status = "task info"
		return m, nil
	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.selectedTaskRef()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.confirmKind = "task"
		m.confirmID = task.ID
		m.confirmLabel = task.Title
		return m, nil
	case key.Matches(msg, m.keys.yankTask):
		task, ok := m.selectedTaskRef()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		if err := clipboard.WriteAll(task.ID); err != nil {
			m.status = "clipboard unavailable: " + err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("yanked id for %q", truncate(task.Title, 28))
		return m, nil
	case key.Matches(msg, m.keys.newGroup):
		m.help.ShowAll = false
		return m.startGroupForm(nil)
	case key.Matches(msg, m.keys.editGroup):
		group, ok := m.selectedGroup()
		if !ok {
			m.status = "select a group bucket first"
			return m, nil
		}
		m.help.ShowAll = false
		return m.startGroupForm(&group)
	case key.Matches(msg, m.keys.deleteGroup):
		group, ok := m.selectedGroup()
		if !ok {
			m.status = "select a group bucket first"
			return m, nil
		}
		m.mode = modeConfirmDelete
		m.confirmKind = "group"
		m.confirmID = group.ID
		m.confirmLabel = group.Name
		return m, nil
	}
	return m, nil
}

// handleGrab picks the selected task up, or drops the carried task onto the
// current hover target.
func (m Model) handleGrab() (tea.Model, tea.Cmd) {
	if !m.drag.Dragging() {
		if !m.view.Writable() {
			m.status = "this view is read-only; switch with " + m.keys.cycleView.Help().Key
			return m, nil
		}
		task, ok := m.selectedTaskRef()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		if err := m.drag.Start(m.view, task.ID); err != nil {
			m.status = "this view is read-only; switch with " + m.keys.cycleView.Help().Key
			return m, nil
		}
		m.status = fmt.Sprintf("carrying %q; move and press space to drop, esc to cancel", truncate(task.Title, 28))
		return m, nil
	}

	activeID := m.drag.ActiveID()
	overID := m.dropTargetID()
	m.drag.Cancel()
	if overID == "" {
		m.status = "nothing to drop onto"
		m.clampSelection()
		return m, nil
	}
	view, sort := m.view, m.sort
	return m, func() tea.Msg {
		rec, _, err := m.svc.Move(context.Background(), view, sort, activeID, overID)
		if err != nil {
			return actionMsg{err: err}
		}
		status := "moved"
		if rec.Reindexed != nil {
			status = "moved (bucket rebalanced)"
		}
		if !rec.Moved {
			status = "already there"
		}
		return actionMsg{status: status, refresh: true, focusTaskID: activeID}
	}
}

// selectedGroup returns the group behind the selected bucket in the group
// view. The inbox is not editable and reports false.
func (m Model) selectedGroup() (domain.Group, bool) {
	if m.view != board.ViewByGroup {
		return domain.Group{}, false
	}
	bucket, ok := m.selectedBucketRef()
	if !ok || bucket.Key.Kind != board.BucketGroup {
		return domain.Group{}, false
	}
	if bucket.Key.Value == domain.InboxGroupID {
		return domain.Group{}, false
	}
	for _, group := range m.svc.Groups() {
		if group.ID == bucket.Key.Value {
			return group, true
		}
	}
	return domain.Group{}, false
}

func (m *Model) startTaskForm(task *domain.Task) (tea.Model, tea.Cmd) {
	m.mode = modeTaskForm
	m.formFields = taskFormFields
	m.formFocus = 0
	m.formValues = map[string]string{}
	m.formTaskID = ""
	m.formTitle = "new task"
	if task != nil {
		m.formTaskID = task.ID
		m.formTitle = "edit task"
		m.formValues["title"] = task.Title
		m.formValues["description"] = task.Description
		m.formValues["priority"] = string(task.Priority)
		if task.DueAt != nil {
			m.formValues["due"] = task.DueAt.Local().Format("2006-01-02")
		}
		m.formValues["labels"] = strings.Join(task.Labels, ", ")
		m.formValues["assignees"] = m.memberNamesFor(task.AssigneeIDs)
	}
	cmd := m.focusFormField(0)
	return *m, cmd
}

func (m *Model) startGroupForm(group *domain.Group) (tea.Model, tea.Cmd) {
	m.mode = modeGroupForm
	m.formFields = groupFormFields
	m.formFocus = 0
	m.formValues = map[string]string{}
	m.formGroup = ""
	m.formTitle = "new group"
	if group != nil {
		m.formGroup = group.ID
		m.formTitle = "edit group"
		m.formValues["name"] = group.Name
		m.formValues["color"] = group.Color
	}
	cmd := m.focusFormField(0)
	return *m, cmd
}

func (m *Model) focusFormField(idx int) tea.Cmd {
	m.formFocus = clamp(idx, 0, len(m.formFields)-1)
	field := m.formFields[m.formFocus]
	m.input.SetValue(m.formValues[field])
	m.input.CursorEnd()
	m.input.Placeholder = formPlaceholders[field]
	return m.input.Focus()
}

// formPlaceholders maps form field keys to their input hints.
var formPlaceholders = map[string]string{
	"title":       "task title",
	"description": "optional markdown description",
	"priority":    "urgent / high / medium / low",
	"due":         "2006-01-02, today, tomorrow, or none",
	"labels":      "comma-separated labels",
	"assignees":   "comma-separated member names",
	"name":        "group name",
	"color":       "#7c3aed",
}

func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTaskInfo:
		switch msg.String() {
		case "esc", "q", "i", "enter":
			m.mode = modeNone
			m.infoTaskID = ""
			m.status = "ready"
		}
		return m, nil

	case modeSearch:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.input.Blur()
			m.status = "ready"
			return m, nil
		case "enter":
			m.mode = modeNone
			m.input.Blur()
			m.search = strings.TrimSpace(m.input.Value())
			m.refreshProjection()
			if m.search == "" {
				m.status = "filter cleared"
			} else {
				m.status = fmt.Sprintf("filter: %q (esc clears)", m.search)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case modeConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			return m.executeConfirmedDelete()
		case "n", "esc":
			m.mode = modeNone
			m.confirmKind = ""
			m.confirmID = ""
			m.status = "delete cancelled"
		}
		return m, nil

	case modeTaskForm, modeGroupForm:
		switch msg.String() {
		case "esc":
			m.mode = modeNone
			m.input.Blur()
			m.status = "ready"
			return m, nil
		case "enter", "tab":
			m.captureFormField()
			if m.formFocus == len(m.formFields)-1 && msg.String() == "enter" {
				return m.submitForm()
			}
			next := (m.formFocus + 1) % len(m.formFields)
			cmd := m.focusFormField(next)
			return m, cmd
		case "shift+tab":
			m.captureFormField()
			prev := (m.formFocus - 1 + len(m.formFields)) % len(m.formFields)
			cmd := m.focusFormField(prev)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) captureFormField() {
	if m.formFocus >= 0 && m.formFocus < len(m.formFields) {
		m.formValues[m.formFields[m.formFocus]] = m.input.Value()
	}
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	if m.mode == modeGroupForm {
		return m.submitGroupForm()
	}
	return m.submitTaskForm()
}

func (m Model) submitTaskForm() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.formValues["title"])
	if title == "" {
		m.status = "title is required"
		cmd := m.focusFormField(0)
		return m, cmd
	}
	description := m.formValues["description"]

	priority := domain.PriorityMedium
	if raw := strings.TrimSpace(m.formValues["priority"]); raw != "" {
		parsed, err := domain.ParsePriority(raw)
		if err != nil {
			m.status = "unknown priority " + raw
			cmd := m.focusFormField(indexOfField(m.formFields, "priority"))
			return m, cmd
		}
		priority = parsed
	}

	dueAt, err := parseDueInput(m.formValues["due"], time.Now())
	if err != nil {
		m.status = err.Error()
		cmd := m.focusFormField(indexOfField(m.formFields, "due"))
		return m, cmd
	}
	labels := splitLabels(m.formValues["labels"])

	assigneeIDs, err := resolveAssignees(m.svc.Members(), m.formValues["assignees"])
	if err != nil {
		m.status = err.Error()
		cmd := m.focusFormField(indexOfField(m.formFields, "assignees"))
		return m, cmd
	}

	m.mode = modeNone
	m.input.Blur()

	if m.formTaskID == "" {
		return m, func() tea.Msg {
			_, _, err := m.svc.Create(context.Background(), domain.TaskInput{
				Title:       title,
				Description: description,
				Priority:    priority,
				AssigneeIDs: assigneeIDs,
				DueAt:       dueAt,
				Labels:      labels,
			})
			if err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: fmt.Sprintf("created %q", truncate(title, 28)), refresh: true}
		}
	}

	taskID := m.formTaskID
	return m, func() tea.Msg {
		task, ok := findTaskByID(m.svc.Tasks(), taskID)
		if !ok {
			return actionMsg{err: fmt.Errorf("task %s no longer exists", taskID)}
		}
		if err := task.UpdateDetails(title, description, priority, dueAt, assigneeIDs, labels, time.Now()); err != nil {
			return actionMsg{err: err}
		}
		if _, err := m.svc.Update(context.Background(), task); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("updated %q", truncate(title, 28)), refresh: true, focusTaskID: taskID}
	}
}

func (m Model) submitGroupForm() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.formValues["name"])
	if name == "" {
		m.status = "name is required"
		cmd := m.focusFormField(0)
		return m, cmd
	}
	groupColor := strings.TrimSpace(m.formValues["color"])

	m.mode = modeNone
	m.input.Blur()

	if m.formGroup == "" {
		return m, func() tea.Msg {
			if _, _, err := m.svc.CreateGroup(context.Background(), name, groupColor); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: fmt.Sprintf("created group %q", name), refresh: true}
		}
	}
	groupID := m.formGroup
	return m, func() tea.Msg {
		if _, err := m.svc.UpdateGroup(context.Background(), groupID, name, groupColor); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("updated group %q", name), refresh: true}
	}
}

func (m Model) executeConfirmedDelete() (tea.Model, tea.Cmd) {
	kind, id, label := m.confirmKind, m.confirmID, m.confirmLabel
	m.mode = modeNone
	m.confirmKind = ""
	m.confirmID = ""
	m.confirmLabel = ""

	switch kind {
	case "task":
		return m, func() tea.Msg {
			if _, err := m.svc.Delete(context.Background(), id); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: fmt.Sprintf("deleted %q", truncate(label, 28)), refresh: true}
		}
	case "group":
		return m, func() tea.Msg {
			if _, err := m.svc.DeleteGroup(context.Background(), id); err != nil {
				return actionMsg{err: err}
			}
			return actionMsg{status: fmt.Sprintf("deleted group %q; its tasks moved to the inbox", label), refresh: true}
		}
	}
	return m, nil
}

func (m Model) View() tea.View {
	if m.err != nil {
		v := tea.NewView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
		v.AltScreen = true
		return v
	}
	if !m.ready {
		v := tea.NewView("loading...")
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("quadro")
	header += statusStyle.Render("  view: " + string(m.view) + "  sort: " + string(m.sort))
	if !m.view.Writable() {
		header += statusStyle.Render("  [read-only]")
	}
	if m.search != "" {
		header += statusStyle.Render("  filter: " + truncate(m.search, 24))
	}
	if m.drag.Dragging() {
		if task, ok := findTaskByID(m.svc.Tasks(), m.drag.ActiveID()); ok {
			header += lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render("  carrying: " + truncate(task.Title, 32))
		}
	}

	body := m.renderBuckets(accent, muted, dim)

	sections := []string{header, "", body}
	if m.mode == modeSearch {
		sections = append(sections, "filter "+m.input.View())
	} else if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		helpHeight := lipgloss.Height(helpLine)
		content = fitLines(content, max(0, m.height-helpHeight))
	}

	fullContent := content + "\n" + helpLine
	if overlay := m.renderOverlay(accent, muted, dim); overlay != "" {
		overlayHeight := lipgloss.Height(fullContent)
		if m.height > 0 {
			overlayHeight = m.height
		}
		fullContent = overlayOnContent(fullContent, overlay, max(1, m.width), max(1, overlayHeight))
	}

	v := tea.NewView(fullContent)
	v.AltScreen = true
	return v
}

func (m Model) renderBuckets(accent, muted, dim color.Color) string {
	buckets := m.projection.Buckets
	if len(buckets) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("no buckets to show; press n to create a task")
	}

	colWidth := m.bucketWidthFor(m.width, len(buckets))
	colHeight := m.bucketHeight()
	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2).
		MarginRight(1).
		Width(colWidth)
	colTitle := lipgloss.NewStyle().Bold(true)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedTaskStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	carriedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Faint(true)
	subStyle := lipgloss.NewStyle().Foreground(muted)
	dropStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	bucketViews := make([]string, 0, len(buckets))
	for bucketIdx, bucket := range buckets {
		bucketAccent := accent
		if bucket.Color != "" {
			bucketAccent = lipgloss.Color(bucket.Color)
		}

		headerLine := colTitle.Foreground(bucketAccent).Render(fmt.Sprintf("%s (%d)", bucket.Title, len(bucket.Tasks)))

		taskLines := make([]string, 0, max(1, len(bucket.Tasks)*3))
		selectedStart := -1
		selectedEnd := -1
		if len(bucket.Tasks) == 0 && !(m.drag.Dragging() && bucketIdx == m.selectedBucket) {
			taskLines = append(taskLines, emptyStyle.Render("(empty)"))
		}
		for taskIdx, task := range bucket.Tasks {
			selected := bucketIdx == m.selectedBucket && taskIdx == m.selectedTask
			carried := m.drag.Dragging() && task.ID == m.drag.ActiveID()

			prefix := "   "
			if selected {
				prefix = "│  "
			}
			if m.drag.Dragging() && selected {
				prefix = "▸  "
			}
			title := prefix + truncate(task.Title, max(1, colWidth-10))
			sub := m.taskCardSecondary(task)
			if sub != "" {
				sub = truncate(sub, max(1, colWidth-10))
			}
			switch {
			case carried:
				title = carriedStyle.Render(title)
			case selected:
				title = selectedTaskStyle.Render(title)
			}

			rowStart := len(taskLines)
			taskLines = append(taskLines, title)
			if sub != "" {
				taskLines = append(taskLines, prefix+subStyle.Render(sub))
			}
			if taskIdx < len(bucket.Tasks)-1 {
				taskLines = append(taskLines, "")
			}
			if selected {
				selectedStart = rowStart
				selectedEnd = len(taskLines) - 1
			}
		}
		if m.drag.Dragging() && bucketIdx == m.selectedBucket && m.selectedTask >= len(bucket.Tasks) {
			if len(taskLines) > 0 {
				taskLines = append(taskLines, "")
			}
			selectedStart = len(taskLines)
			taskLines = append(taskLines, dropStyle.Render("▾ drop here"))
			selectedEnd = len(taskLines) - 1
		}

		innerHeight := max(1, colHeight-4)
		taskWindowHeight := max(1, innerHeight-1)
		scrollTop := 0
		if bucketIdx == m.selectedBucket && selectedStart >= 0 {
			if selectedEnd >= scrollTop+taskWindowHeight {
				scrollTop = selectedEnd - taskWindowHeight + 1
			}
			if selectedStart < scrollTop {
				scrollTop = selectedStart
			}
		}
		maxScrollTop := max(0, len(taskLines)-taskWindowHeight)
		scrollTop = clamp(scrollTop, 0, maxScrollTop)
		if len(taskLines) > taskWindowHeight {
			taskLines = taskLines[scrollTop : scrollTop+taskWindowHeight]
		}

		lines := append([]string{headerLine}, taskLines...)
		content := fitLines(strings.Join(lines, "\n"), innerHeight)
		style := baseColStyle
		if bucketIdx == m.selectedBucket {
			style = baseColStyle.Copy().BorderForeground(bucketAccent)
		}
		bucketViews = append(bucketViews, style.Render(content))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, bucketViews...)
}

// taskCardSecondary builds the dimmed second card line from the configured
// card fields.
func (m Model) taskCardSecondary(task domain.Task) string {
	parts := make([]string, 0, 4)
	if m.cardFields.ShowPriority && task.Priority != domain.PriorityMedium {
		parts = append(parts, domain.PriorityLabel(task.Priority))
	}
	if m.cardFields.ShowDueDate && task.DueAt != nil {
		parts = append(parts, "due "+task.DueAt.Local().Format("Jan 2"))
	}
	if m.cardFields.ShowLabels && len(task.Labels) > 0 {
		parts = append(parts, strings.Join(task.Labels, ","))
	}
	if m.cardFields.ShowAssignees && len(task.AssigneeIDs) > 0 {
		parts = append(parts, fmt.Sprintf("%d assigned", len(task.AssigneeIDs)))
	}
	return strings.Join(parts, " • ")
}

func (m Model) renderOverlay(accent, muted, dim color.Color) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(1, 2).
		Width(min(max(40, m.width/2), max(40, m.width-8)))
	labelStyle := lipgloss.NewStyle().Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(muted)

	switch m.mode {
	case modeTaskForm, modeGroupForm:
		lines := []string{labelStyle.Render(m.formTitle), ""}
		for idx, field := range m.formFields {
			value := m.formValues[field]
			if idx == m.formFocus {
				lines = append(lines, labelStyle.Render(field+":"), m.input.View())
				continue
			}
			if value == "" {
				value = mutedStyle.Render("(empty)")
			}
			lines = append(lines, field+": "+value)
		}
		lines = append(lines, "", mutedStyle.Render("enter/tab next field • enter on last field saves • esc cancels"))
		return boxStyle.Render(strings.Join(lines, "\n"))

	case modeConfirmDelete:
		prompt := fmt.Sprintf("delete %s %q?", m.confirmKind, truncate(m.confirmLabel, 40))
		if m.confirmKind == "group" {
			prompt += "\n" + mutedStyle.Render("its tasks move to the inbox")
		}
		return boxStyle.Render(labelStyle.Render(prompt) + "\n\n" + mutedStyle.Render("y confirm • n cancel"))

	case modeTaskInfo:
		task, ok := findTaskByID(m.svc.Tasks(), m.infoTaskID)
		if !ok {
			return boxStyle.Render(mutedStyle.Render("task no longer exists"))
		}
		lines := []string{
			labelStyle.Render(task.Title),
			"",
			"status: " + domain.StatusLabel(task.Status),
			"priority: " + domain.PriorityLabel(task.Priority),
		}
		if task.DueAt != nil {
			lines = append(lines, "due: "+task.DueAt.Local().Format("2006-01-02"))
		}
		if len(task.Labels) > 0 {
			lines = append(lines, "labels: "+strings.Join(task.Labels, ", "))
		}
		if names := m.assigneeNames(task); names != "" {
			lines = append(lines, "assignees: "+names)
		}
		if task.Description != "" {
			md := m.md
			lines = append(lines, "", md.render(task.Description, max(24, m.width/2-8)))
		}
		lines = append(lines, "", mutedStyle.Render("esc closes"))
		return boxStyle.Render(strings.Join(lines, "\n"))
	}

	if m.help.ShowAll {
		helpBubble := m.help
		helpBubble.SetWidth(max(24, m.width-12))
		return boxStyle.Render(labelStyle.Render("keys") + "\n\n" + helpBubble.View(m.keys))
	}
	return ""
}

func (m Model) assigneeNames(task domain.Task) string {
	return m.memberNamesFor(task.AssigneeIDs)
}

// memberNamesFor renders member ids as display names, falling back to the raw
// id for members no longer in the workspace.
func (m Model) memberNamesFor(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	byID := map[string]string{}
	for _, member := range m.svc.Members() {
		byID[member.ID] = member.DisplayName
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
			continue
		}
		names = append(names, id)
	}
	return strings.Join(names, ", ")
}

func (m Model) bucketWidthFor(boardWidth, bucketCount int) int {
	if bucketCount == 0 {
		return 24
	}
	w := 28
	if boardWidth > 0 {
		// Per-bucket overhead: left/right border (2), horizontal padding (4), margin-right (1)
		const colOverhead = 7
		usable := boardWidth - bucketCount*colOverhead
		candidate := usable / bucketCount
		if candidate > 0 {
			w = candidate
		}
	}
	if w < 24 {
		return 24
	}
	if w > 42 {
		return 42
	}
	return w
}

// bucketHeight returns bucket column height.
func (m Model) bucketHeight() int {
	headerLines := 3
	footerLines := 4
	h := m.height - headerLines - footerLines
	if h < 14 {
		return 14
	}
	return h
}

func nextViewMode(view board.ViewMode) board.ViewMode {
	for idx, known := range board.ViewModes {
		if known == view {
			return board.ViewModes[(idx+1)%len(board.ViewModes)]
		}
	}
	return board.ViewModes[0]
}

func nextSortMode(sort board.SortMode) board.SortMode {
	for idx, known := range board.SortModes {
		if known == sort {
			return board.SortModes[(idx+1)%len(board.SortModes)]
		}
	}
	return board.SortModes[0]
}

func findTaskByID(tasks []domain.Task, id string) (domain.Task, bool) {
	for _, task := range tasks {
		if task.ID == id {
			return task, true
		}
	}
	return domain.Task{}, false
}

func indexOfField(fields []string, name string) int {
	for idx, field := range fields {
		if field == name {
			return idx
		}
	}
	return 0
}

// parseDueInput resolves the due form field into a timestamp. Empty and
// "none" clear the due date.
func parseDueInput(raw string, now time.Time) (*time.Time, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	switch raw {
	case "", "none":
		return nil, nil
	case "today":
		due := time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, now.Location())
		return &due, nil
	case "tomorrow":
		next := now.AddDate(0, 0, 1)
		due := time.Date(next.Year(), next.Month(), next.Day(), 17, 0, 0, 0, now.Location())
		return &due, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, now.Location())
	if err != nil {
		return nil, fmt.Errorf("due date %q: use 2006-01-02, today, tomorrow, or none", raw)
	}
	return &parsed, nil
}

// resolveAssignees maps a comma-separated list of member names, emails, or
// ids onto member ids. An entry matching no workspace member is an error.
func resolveAssignees(members []domain.Member, raw string) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		entry := strings.TrimSpace(part)
		if entry == "" {
			continue
		}
		id, ok := matchMember(members, entry)
		if !ok {
			return nil, fmt.Errorf("unknown member %q", entry)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func matchMember(members []domain.Member, entry string) (string, bool) {
	for _, member := range members {
		if strings.EqualFold(member.DisplayName, entry) ||
			strings.EqualFold(member.Email, entry) ||
			member.ID == entry {
			return member.ID, true
		}
	}
	return "", false
}

func splitLabels(raw string) []string {
	parts := strings.Split(raw, ",")
	labels := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	return labels
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// max returns the larger of the provided values.
func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// min returns the smaller of the provided values.
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
	)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
