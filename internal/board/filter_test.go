package board

import (
	"testing"

	"github.com/quadrolabs/quadro/internal/domain"
)

func TestFilterTasks(t *testing.T) {
	tasks := []domain.Task{
		{ID: "t1", Title: "Fix login flow"},
		{ID: "t2", Title: "Write docs", Labels: []string{"writing", "Login"}},
		{ID: "t3", Title: "Ship release"},
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "empty query keeps everything", query: "", wantIDs: []string{"t1", "t2", "t3"}},
		{name: "whitespace query keeps everything", query: "   ", wantIDs: []string{"t1", "t2", "t3"}},
		{name: "title substring case-insensitive", query: "LOGIN", wantIDs: []string{"t1", "t2"}},
		{name: "label match", query: "writ", wantIDs: []string{"t2"}},
		{name: "no match", query: "xyzzy", wantIDs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterTasks(tasks, tt.query)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("FilterTasks(%q) returned %d tasks, want %d", tt.query, len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].ID != want {
					t.Errorf("FilterTasks(%q)[%d].ID = %s, want %s", tt.query, i, got[i].ID, want)
				}
			}
		})
	}
}

func TestFilterTasksPreservesInput(t *testing.T) {
	tasks := []domain.Task{
		{ID: "t1", Title: "alpha"},
		{ID: "t2", Title: "beta"},
	}
	FilterTasks(tasks, "beta")
	if tasks[0].ID != "t1" || tasks[1].ID != "t2" {
		t.Fatalf("FilterTasks() mutated its input: %+v", tasks)
	}
}
