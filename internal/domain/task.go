package domain

import (
	"slices"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

var validStatuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// statusLabels maps stored status values to their display labels.
var statusLabels = map[Status]string{
	StatusTodo:       "To Do",
	StatusInProgress: "In Progress",
	StatusDone:       "Done",
}

// StatusLabel returns the display label for a status.
func StatusLabel(s Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[StatusTodo]
}

// ParseStatus resolves a stored value or display label back to a Status.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.TrimSpace(strings.ToLower(raw))
	switch normalized {
	case "todo", "to do", "to-do", "backlog":
		return StatusTodo, nil
	case "in_progress", "in progress", "progress", "doing":
		return StatusInProgress, nil
	case "done", "complete", "completed":
		return StatusDone, nil
	default:
		return "", ErrInvalidStatus
	}
}

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var validPriorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

var priorityLabels = map[Priority]string{
	PriorityUrgent: "Urgent",
	PriorityHigh:   "High",
	PriorityMedium: "Medium",
	PriorityLow:    "Low",
}

// PriorityLabel returns the display label for a priority.
func PriorityLabel(p Priority) string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return priorityLabels[PriorityMedium]
}

// ParsePriority resolves a stored value or display label back to a Priority.
func ParsePriority(raw string) (Priority, error) {
	normalized := Priority(strings.TrimSpace(strings.ToLower(raw)))
	if slices.Contains(validPriorities, normalized) {
		return normalized, nil
	}
	return "", ErrInvalidPriority
}

// Task is the unit being ordered on the board. Position is a fractional
// ordering key, comparable only among tasks that share a bucket under the
// active view.
type Task struct {
	ID          string
	WorkspaceID string
	GroupID     string // empty means the inbox bucket
	Status      Status
	Priority    Priority
	AssigneeIDs []string
	DueAt       *time.Time
	Position    float64
	Title       string
	Description string
	Labels      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TaskInput struct {
	ID          string
	WorkspaceID string
	GroupID     string
	Status      Status
	Priority    Priority
	AssigneeIDs []string
	DueAt       *time.Time
	Position    float64
	Title       string
	Description string
	Labels      []string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.WorkspaceID = strings.TrimSpace(in.WorkspaceID)
	in.GroupID = strings.TrimSpace(in.GroupID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.WorkspaceID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Position <= 0 {
		return Task{}, ErrInvalidPosition
	}

	if in.Status == "" {
		in.Status = StatusTodo
	}
	if !slices.Contains(validStatuses, in.Status) {
		return Task{}, ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Task{}, ErrInvalidPriority
	}

	return Task{
		ID:          in.ID,
		WorkspaceID: in.WorkspaceID,
		GroupID:     in.GroupID,
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeIDs: normalizeAssignees(in.AssigneeIDs),
		DueAt:       normalizeDueAt(in.DueAt),
		Position:    in.Position,
		Title:       in.Title,
		Description: in.Description,
		Labels:      normalizeLabels(in.Labels),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Completed reports whether the task is done, which exempts it from the
// overdue bucket.
func (t Task) Completed() bool {
	return t.Status == StatusDone
}

// Relocate moves the task to a new fractional position within its bucket.
func (t *Task) Relocate(position float64, now time.Time) error {
	if position <= 0 {
		return ErrInvalidPosition
	}
	t.Position = position
	t.UpdatedAt = now.UTC()
	return nil
}

// SetStatus transitions the task to a new status.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !slices.Contains(validStatuses, status) {
		return ErrInvalidStatus
	}
	t.Status = status
	t.UpdatedAt = now.UTC()
	return nil
}

// SetPriority changes the task priority.
func (t *Task) SetPriority(priority Priority, now time.Time) error {
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	t.Priority = priority
	t.UpdatedAt = now.UTC()
	return nil
}

// SetGroup rehomes the task into a custom group; empty means the inbox.
func (t *Task) SetGroup(groupID string, now time.Time) {
	t.GroupID = strings.TrimSpace(groupID)
	t.UpdatedAt = now.UTC()
}

// UpdateDetails replaces the editable task fields.
func (t *Task) UpdateDetails(title, description string, priority Priority, dueAt *time.Time, assigneeIDs, labels []string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	t.Title = title
	t.Description = strings.TrimSpace(description)
	t.Priority = priority
	t.DueAt = normalizeDueAt(dueAt)
	t.AssigneeIDs = normalizeAssignees(assigneeIDs)
	t.Labels = normalizeLabels(labels)
	t.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a deep copy so snapshots cannot alias live slices.
func (t Task) Clone() Task {
	out := t
	out.AssigneeIDs = append([]string(nil), t.AssigneeIDs...)
	out.Labels = append([]string(nil), t.Labels...)
	if t.DueAt != nil {
		due := *t.DueAt
		out.DueAt = &due
	}
	return out
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}

func normalizeAssignees(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := map[string]struct{}{}
	for _, raw := range labels {
		label := strings.ToLower(strings.TrimSpace(raw))
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}
