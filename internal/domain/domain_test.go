package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewTaskDefaultsAndValidation(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	task, err := NewTask(TaskInput{
		ID:          "t1",
		WorkspaceID: "w1",
		Title:       "  Fix parser  ",
		Position:    1000,
		AssigneeIDs: []string{"m1", "m1", " "},
		Labels:      []string{"Backend", "backend", ""},
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Title != "Fix parser" {
		t.Fatalf("unexpected title %q", task.Title)
	}
	if task.Status != StatusTodo || task.Priority != PriorityMedium {
		t.Fatalf("unexpected defaults status=%q priority=%q", task.Status, task.Priority)
	}
	if len(task.AssigneeIDs) != 1 || task.AssigneeIDs[0] != "m1" {
		t.Fatalf("unexpected assignees %#v", task.AssigneeIDs)
	}
	if len(task.Labels) != 1 || task.Labels[0] != "backend" {
		t.Fatalf("unexpected labels %#v", task.Labels)
	}

	cases := []struct {
		name string
		in   TaskInput
		want error
	}{
		{"missing id", TaskInput{WorkspaceID: "w1", Title: "x", Position: 1}, ErrInvalidID},
		{"missing workspace", TaskInput{ID: "t", Title: "x", Position: 1}, ErrInvalidID},
		{"missing title", TaskInput{ID: "t", WorkspaceID: "w1", Position: 1}, ErrInvalidTitle},
		{"bad position", TaskInput{ID: "t", WorkspaceID: "w1", Title: "x"}, ErrInvalidPosition},
		{"bad status", TaskInput{ID: "t", WorkspaceID: "w1", Title: "x", Position: 1, Status: "nope"}, ErrInvalidStatus},
		{"bad priority", TaskInput{ID: "t", WorkspaceID: "w1", Title: "x", Position: 1, Priority: "nope"}, ErrInvalidPriority},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTask(tc.in, now); !errors.Is(err, tc.want) {
				t.Fatalf("NewTask() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseStatusAliases(t *testing.T) {
	cases := map[string]Status{
		"todo":        StatusTodo,
		"To Do":       StatusTodo,
		"Backlog":     StatusTodo,
		"in_progress": StatusInProgress,
		"In Progress": StatusInProgress,
		"doing":       StatusInProgress,
		"done":        StatusDone,
		"Completed":   StatusDone,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		if err != nil {
			t.Fatalf("ParseStatus(%q) error = %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseStatus("archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("ParseStatus(archived) error = %v, want ErrInvalidStatus", err)
	}
}

func TestTaskCloneIsDeep(t *testing.T) {
	now := time.Now()
	due := now.Add(24 * time.Hour)
	task, err := NewTask(TaskInput{
		ID:          "t1",
		WorkspaceID: "w1",
		Title:       "clone me",
		Position:    1000,
		AssigneeIDs: []string{"m1"},
		DueAt:       &due,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}

	copied := task.Clone()
	copied.AssigneeIDs[0] = "m2"
	*copied.DueAt = copied.DueAt.Add(time.Hour)

	if task.AssigneeIDs[0] != "m1" {
		t.Fatal("clone shares assignee slice with original")
	}
	if !task.DueAt.Equal(due.UTC().Truncate(time.Second)) {
		t.Fatal("clone shares due date pointer with original")
	}
}

func TestGroupLifecycle(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	group, err := NewGroup("g1", "w1", "Design", "#7c3aed", 0, now)
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}
	if err := group.Rename("Product Design", now.Add(time.Minute)); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if group.Name != "Product Design" {
		t.Fatalf("unexpected name %q", group.Name)
	}
	if err := group.Rename("  ", now); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Rename(blank) error = %v, want ErrInvalidName", err)
	}

	if _, err := NewGroup(InboxGroupID, "w1", "Inbox", "", 0, now); !errors.Is(err, ErrInboxImmutable) {
		t.Fatalf("NewGroup(inbox) error = %v, want ErrInboxImmutable", err)
	}
}

func TestNewMemberFallsBackToEmail(t *testing.T) {
	now := time.Now()
	member, err := NewMember("m1", "w1", "", "ana@example.com", now)
	if err != nil {
		t.Fatalf("NewMember() error = %v", err)
	}
	if member.DisplayName != "ana@example.com" {
		t.Fatalf("unexpected display name %q", member.DisplayName)
	}
	if _, err := NewMember("m2", "w1", "", "", now); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("NewMember(no name) error = %v, want ErrInvalidName", err)
	}
}
