package board

import (
	"errors"
	"reflect"
	"testing"

	"github.com/quadrolabs/quadro/internal/domain"
)

func statusTask(id string, status domain.Status, position float64) domain.Task {
	return domain.Task{ID: id, Title: id, Status: status, Priority: domain.PriorityMedium, Position: position}
}

func reconcileInput(tasks []domain.Task, view ViewMode, activeID, overID string) ReconcileInput {
	return ReconcileInput{
		Tasks:    tasks,
		View:     view,
		Sort:     SortManual,
		Ctx:      Context{Now: projectorNow},
		ActiveID: activeID,
		OverID:   overID,
	}
}

func TestReconcileMidpointInsert(t *testing.T) {
	tasks := []domain.Task{
		statusTask("a", domain.StatusTodo, 1000),
		statusTask("b", domain.StatusTodo, 2000),
		statusTask("c", domain.StatusTodo, 5000),
	}

	rec, err := Reconcile(reconcileInput(tasks, ViewByStatus, "c", "b"))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !rec.Moved {
		t.Fatal("Reconcile() reported no move")
	}
	if rec.Placement == nil || rec.Reindexed != nil {
		t.Fatalf("Reconcile() intent = %+v, want single placement", rec)
	}
	if rec.Placement.TaskID != "c" || rec.Placement.Position != 1500 {
		t.Errorf("Reconcile() placement = %+v, want c at 1500", rec.Placement)
	}
	if rec.Placement.Status != nil {
		t.Errorf("Reconcile() same-bucket move should not resend status, got %v", *rec.Placement.Status)
	}
	// The flat collection keeps its slice order; only the moved task changes.
	if rec.Tasks[2].ID != "c" || rec.Tasks[2].Position != 1500 {
		t.Errorf("Reconcile() collection entry = %+v", rec.Tasks[2])
	}
	if tasks[2].Position != 5000 {
		t.Errorf("Reconcile() mutated its input: %v", tasks[2].Position)
	}
}

func TestReconcileEmptyBucketDropSetsFieldAndSeed(t *testing.T) {
	tasks := []domain.Task{statusTask("t", domain.StatusTodo, 1000)}
	over := BucketKey{Kind: BucketStatus, Value: string(domain.StatusDone)}.String()

	rec, err := Reconcile(reconcileInput(tasks, ViewByStatus, "t", over))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	moved := rec.Tasks[0]
	if moved.Status != domain.StatusDone || moved.Position != PositionSeed {
		t.Errorf("Reconcile() task = status %q position %v, want done at seed", moved.Status, moved.Position)
	}
	if rec.Placement == nil || rec.Placement.Status == nil || *rec.Placement.Status != domain.StatusDone {
		t.Errorf("Reconcile() placement = %+v, want status done", rec.Placement)
	}

	proj := Project(rec.Tasks, ViewByStatus, SortManual, Context{Now: projectorNow})
	done, _ := proj.Bucket(BucketKey{Kind: BucketStatus, Value: string(domain.StatusDone)})
	if len(done.Tasks) != 1 || done.Tasks[0].ID != "t" {
		t.Errorf("Reconcile() done bucket = %+v", done.Tasks)
	}
}

func TestReconcileExhaustionSwitchesToBulkReindex(t *testing.T) {
	tasks := []domain.Task{
		statusTask("a", domain.StatusTodo, 1000.00001),
		statusTask("b", domain.StatusTodo, 1000.00002),
		statusTask("c", domain.StatusDone, 500),
	}

	rec, err := Reconcile(reconcileInput(tasks, ViewByStatus, "c", "b"))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if rec.Reindexed == nil {
		t.Fatal("Reconcile() should switch to the bulk reindex intent")
	}
	want := []PositionUpdate{
		{TaskID: "a", Position: 1000},
		{TaskID: "c", Position: 2000},
		{TaskID: "b", Position: 3000},
	}
	if len(rec.Reindexed) != len(want) {
		t.Fatalf("Reconcile() reindexed %d tasks, want %d", len(rec.Reindexed), len(want))
	}
	for i, u := range want {
		if rec.Reindexed[i] != u {
			t.Errorf("Reconcile() reindexed[%d] = %+v, want %+v", i, rec.Reindexed[i], u)
		}
	}
	// The cross-bucket field change still rides along as a placement.
	if rec.Placement == nil || rec.Placement.Status == nil || *rec.Placement.Status != domain.StatusTodo {
		t.Errorf("Reconcile() placement = %+v, want status todo", rec.Placement)
	}
	for _, task := range rec.Tasks {
		for _, u := range want {
			if task.ID == u.TaskID && task.Position != u.Position {
				t.Errorf("Reconcile() collection position for %q = %v, want %v", task.ID, task.Position, u.Position)
			}
		}
	}
}

func TestReconcileNoOpDropLeavesCollectionIdentical(t *testing.T) {
	tasks := []domain.Task{
		statusTask("a", domain.StatusTodo, 1000),
		statusTask("b", domain.StatusTodo, 2000),
	}

	for _, overID := range []string{"b", ""} {
		rec, err := Reconcile(reconcileInput(tasks, ViewByStatus, "b", overID))
		if err != nil {
			t.Fatalf("Reconcile() error = %v", err)
		}
		if rec.Moved || rec.Placement != nil || rec.Reindexed != nil {
			t.Errorf("Reconcile() over %q should be a no-op, got %+v", overID, rec)
		}
		if !reflect.DeepEqual(rec.Tasks, tasks) {
			t.Errorf("Reconcile() over %q changed the collection: %+v", overID, rec.Tasks)
		}
	}
}

func TestReconcileGroupViewResendsGroupID(t *testing.T) {
	tasks := []domain.Task{
		{ID: "a", GroupID: "g-work", Position: 1000, Priority: domain.PriorityMedium},
		{ID: "b", GroupID: "g-work", Position: 2000, Priority: domain.PriorityMedium},
	}
	in := reconcileInput(tasks, ViewByGroup, "b", "a")
	in.Ctx.Groups = []domain.Group{{ID: "g-work", Name: "Work", Position: 1}}

	rec, err := Reconcile(in)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if rec.Placement == nil || rec.Placement.GroupID == nil || *rec.Placement.GroupID != "g-work" {
		t.Errorf("Reconcile() placement = %+v, want unchanged group id resent", rec.Placement)
	}
	if rec.Placement.Position != 500 {
		t.Errorf("Reconcile() position = %v, want 500", rec.Placement.Position)
	}
}

func TestReconcileInboxDropClearsGroup(t *testing.T) {
	tasks := []domain.Task{
		{ID: "a", GroupID: "g-work", Position: 1000, Priority: domain.PriorityMedium},
	}
	in := reconcileInput(tasks, ViewByGroup, "a", BucketKey{Kind: BucketGroup, Value: domain.InboxGroupID}.String())
	in.Ctx.Groups = []domain.Group{{ID: "g-work", Name: "Work", Position: 1}}

	rec, err := Reconcile(in)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if rec.Tasks[0].GroupID != "" {
		t.Errorf("Reconcile() group id = %q, want cleared", rec.Tasks[0].GroupID)
	}
	if rec.Placement == nil || rec.Placement.GroupID == nil || *rec.Placement.GroupID != "" {
		t.Errorf("Reconcile() placement = %+v, want empty group id", rec.Placement)
	}
}

func TestReconcileErrors(t *testing.T) {
	tasks := []domain.Task{statusTask("a", domain.StatusTodo, 1000)}

	if _, err := Reconcile(reconcileInput(tasks, ViewByDueDate, "a", "b")); !errors.Is(err, ErrViewReadOnly) {
		t.Errorf("Reconcile() read-only view error = %v", err)
	}
	if _, err := Reconcile(reconcileInput(tasks, ViewByStatus, "ghost", "a")); !errors.Is(err, ErrUnresolvedDrop) {
		t.Errorf("Reconcile() missing active error = %v", err)
	}
	if _, err := Reconcile(reconcileInput(tasks, ViewByStatus, "a", "ghost")); !errors.Is(err, ErrUnresolvedDrop) {
		t.Errorf("Reconcile() missing target error = %v", err)
	}
	if tasks[0].Position != 1000 {
		t.Error("Reconcile() mutated input on failure")
	}
}

func TestDragStateMachine(t *testing.T) {
	var drag Drag

	if err := drag.Start(ViewByAssignee, "a"); !errors.Is(err, ErrViewReadOnly) {
		t.Fatalf("Start() on read-only view error = %v", err)
	}
	if err := drag.Start(ViewByStatus, "a"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := drag.Start(ViewByStatus, "b"); !errors.Is(err, ErrDragActive) {
		t.Fatalf("Start() during drag error = %v", err)
	}

	drag.Cancel()
	if drag.Dragging() {
		t.Fatal("Cancel() left the drag active")
	}
	if _, err := drag.Drop(ReconcileInput{}); !errors.Is(err, ErrNoActiveDrag) {
		t.Fatalf("Drop() without pick-up error = %v", err)
	}

	tasks := []domain.Task{
		statusTask("a", domain.StatusTodo, 1000),
		statusTask("b", domain.StatusTodo, 2000),
	}
	if err := drag.Start(ViewByStatus, "b"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec, err := drag.Drop(reconcileInput(tasks, ViewByStatus, "", "a"))
	if err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if rec.Placement == nil || rec.Placement.TaskID != "b" || rec.Placement.Position != 500 {
		t.Errorf("Drop() placement = %+v, want b at 500", rec.Placement)
	}
	if drag.Dragging() {
		t.Error("Drop() left the drag active")
	}
}
