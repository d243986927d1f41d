package board

import (
	"testing"
	"time"

	"github.com/quadrolabs/quadro/internal/domain"
)

var projectorNow = time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

func boardContext() Context {
	return Context{
		Groups: []domain.Group{
			{ID: "g-work", Name: "Work", Color: "#ff0000", Position: 1},
			{ID: "g-home", Name: "Home", Color: "#00ff00", Position: 2},
		},
		Members: []domain.Member{
			{ID: "m-bob", DisplayName: "Bob"},
			{ID: "m-alice", DisplayName: "alice"},
		},
		Now: projectorNow,
	}
}

func TestProjectByGroupKeepsEmptyBuckets(t *testing.T) {
	tasks := []domain.Task{
		{ID: "t1", GroupID: "g-work", Position: 2000},
		{ID: "t2", Position: 1000},
		{ID: "t3", GroupID: "g-work", Position: 1000},
	}

	proj := Project(tasks, ViewByGroup, SortManual, boardContext())

	wantKeys := []BucketKey{
		{Kind: BucketGroup, Value: domain.InboxGroupID},
		{Kind: BucketGroup, Value: "g-work"},
		{Kind: BucketGroup, Value: "g-home"},
	}
	if len(proj.Buckets) != len(wantKeys) {
		t.Fatalf("Project() bucket count = %d, want %d", len(proj.Buckets), len(wantKeys))
	}
	for i, want := range wantKeys {
		if proj.Buckets[i].Key != want {
			t.Errorf("Project() bucket[%d].Key = %v, want %v", i, proj.Buckets[i].Key, want)
		}
	}

	work, _ := proj.Bucket(BucketKey{Kind: BucketGroup, Value: "g-work"})
	if len(work.Tasks) != 2 || work.Tasks[0].ID != "t3" || work.Tasks[1].ID != "t1" {
		t.Errorf("Project() work bucket order wrong: %+v", work.Tasks)
	}
	home, _ := proj.Bucket(BucketKey{Kind: BucketGroup, Value: "g-home"})
	if len(home.Tasks) != 0 {
		t.Errorf("Project() home bucket should stay empty, got %d tasks", len(home.Tasks))
	}
	if proj.TaskCount() != len(tasks) {
		t.Errorf("Project() dropped tasks: %d of %d bucketed", proj.TaskCount(), len(tasks))
	}
}

func TestProjectByAssigneeOrdersMembersAndUnassignedLast(t *testing.T) {
	proj := Project(nil, ViewByAssignee, SortManual, boardContext())

	wantTitles := []string{"alice", "Bob", "Unassigned"}
	if len(proj.Buckets) != len(wantTitles) {
		t.Fatalf("Project() bucket count = %d, want %d", len(proj.Buckets), len(wantTitles))
	}
	for i, want := range wantTitles {
		if proj.Buckets[i].Title != want {
			t.Errorf("Project() bucket[%d].Title = %q, want %q", i, proj.Buckets[i].Title, want)
		}
		if len(proj.Buckets[i].Tasks) != 0 {
			t.Errorf("Project() bucket %q should be empty", want)
		}
	}
}

func TestProjectByDueDateBucketsAgainstLocalMidnight(t *testing.T) {
	day := func(offset int) *time.Time {
		d := projectorNow.AddDate(0, 0, offset)
		return &d
	}
	tasks := []domain.Task{
		{ID: "late", DueAt: day(-2), Position: 1000},
		{ID: "now", DueAt: day(0), Position: 1000},
		{ID: "next", DueAt: day(1), Position: 1000},
		{ID: "week", DueAt: day(5), Position: 1000},
		{ID: "far", DueAt: day(30), Position: 1000},
		{ID: "open", Position: 1000},
		{ID: "closed-late", DueAt: day(-2), Status: domain.StatusDone, Position: 1000},
	}

	proj := Project(tasks, ViewByDueDate, SortManual, boardContext())

	want := map[string]string{
		"late":        DueOverdue,
		"now":         DueToday,
		"next":        DueTomorrow,
		"week":        DueNextWeek,
		"far":         DueFuture,
		"open":        DueNone,
		"closed-late": DueToday,
	}
	for id, value := range want {
		key, ok := proj.BucketFor(id)
		if !ok {
			t.Fatalf("Project() dropped task %q", id)
		}
		if key.Value != value {
			t.Errorf("Project() task %q in bucket %q, want %q", id, key.Value, value)
		}
	}
}

func TestDueBucketsAcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2026-03-08 is a 23-hour day in this zone; elapsed-hours math would
	// put the next calendar day in today's bucket.
	now := time.Date(2026, time.March, 8, 9, 0, 0, 0, loc)
	due := time.Date(2026, time.March, 9, 9, 0, 0, 0, loc)

	if got := calendarDaysBetween(now, due); got != 1 {
		t.Fatalf("calendarDaysBetween() = %d, want 1", got)
	}
	task := domain.Task{ID: "t1", DueAt: &due}
	if got := dueBucketFor(task, now); got != DueTomorrow {
		t.Fatalf("dueBucketFor() = %q, want %q", got, DueTomorrow)
	}
}

func TestProjectOrphanGroupSurfaces(t *testing.T) {
	tasks := []domain.Task{{ID: "t1", GroupID: "g-gone", Position: 1000}}

	proj := Project(tasks, ViewByGroup, SortManual, boardContext())

	key, ok := proj.BucketFor("t1")
	if !ok {
		t.Fatal("Project() dropped a task with a deleted group")
	}
	if key != (BucketKey{Kind: BucketGroup, Value: "g-gone"}) {
		t.Errorf("Project() orphan key = %v", key)
	}
	bucket, _ := proj.Bucket(key)
	if bucket.Title != "Unknown Group" {
		t.Errorf("Project() orphan title = %q", bucket.Title)
	}
}

func TestProjectSortSelections(t *testing.T) {
	tasks := []domain.Task{
		{ID: "t1", Title: "bravo", Status: domain.StatusDone, Priority: domain.PriorityLow, Position: 1000},
		{ID: "t2", Title: "Alpha", Status: domain.StatusTodo, Priority: domain.PriorityUrgent, Position: 3000},
		{ID: "t3", Title: "charlie", Status: domain.StatusInProgress, Priority: domain.PriorityHigh, Position: 2000},
	}

	tests := []struct {
		sort SortMode
		want []string
	}{
		{SortManual, []string{"t1", "t3", "t2"}},
		{SortStatus, []string{"t2", "t3", "t1"}},
		{SortPriority, []string{"t2", "t3", "t1"}},
		{SortTitle, []string{"t2", "t1", "t3"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.sort), func(t *testing.T) {
			proj := Project(tasks, ViewByGroup, tt.sort, boardContext())
			inbox, _ := proj.Bucket(BucketKey{Kind: BucketGroup, Value: domain.InboxGroupID})
			if len(inbox.Tasks) != len(tt.want) {
				t.Fatalf("Project() inbox size = %d, want %d", len(inbox.Tasks), len(tt.want))
			}
			for i, id := range tt.want {
				if inbox.Tasks[i].ID != id {
					t.Errorf("Project() inbox[%d] = %q, want %q", i, inbox.Tasks[i].ID, id)
				}
			}
		})
	}
}
