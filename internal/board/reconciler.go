package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/quadrolabs/quadro/internal/domain"
)

var (
	// ErrViewReadOnly means the active view has no writable grouping key, so
	// drag gestures are ignored. Callers surface it as a notice, not a failure.
	ErrViewReadOnly = errors.New("view does not support drag reordering")
	// ErrDragActive means a pick-up arrived while another drag was in flight.
	ErrDragActive = errors.New("a drag is already in progress")
	// ErrNoActiveDrag means a drop arrived with no matching pick-up.
	ErrNoActiveDrag = errors.New("no drag in progress")
	// ErrUnresolvedDrop means the drop target matched neither a task nor a
	// bucket. The reconciliation aborts before any mutation.
	ErrUnresolvedDrop = errors.New("drop target could not be resolved")
)

// Drag is the gesture state machine: idle until a pick-up, dragging until the
// matching drop or cancel. One gesture at a time.
type Drag struct {
	activeID string
}

// Dragging reports whether a pick-up is awaiting its drop.
func (d *Drag) Dragging() bool { return d.activeID != "" }

// ActiveID returns the id of the task being dragged, if any.
func (d *Drag) ActiveID() string { return d.activeID }

// Start enters the dragging state for taskID. It fails on read-only views and
// when a gesture is already in flight.
func (d *Drag) Start(view ViewMode, taskID string) error {
	if !view.Writable() {
		return ErrViewReadOnly
	}
	if d.activeID != "" {
		return ErrDragActive
	}
	d.activeID = taskID
	return nil
}

// Cancel abandons the in-flight gesture without mutating anything.
func (d *Drag) Cancel() { d.activeID = "" }

// Drop ends the gesture and reconciles it against the current collection. The
// machine returns to idle whether or not reconciliation succeeds.
func (d *Drag) Drop(in ReconcileInput) (Reconciliation, error) {
	if d.activeID == "" {
		return Reconciliation{}, ErrNoActiveDrag
	}
	in.ActiveID = d.activeID
	d.activeID = ""
	return Reconcile(in)
}

// ReconcileInput is everything a drop needs: the flat collection, the active
// view and sort, lookup context, and the gesture endpoints. OverID is either
// a task id or an encoded bucket key (empty-bucket drops).
type ReconcileInput struct {
	Tasks    []domain.Task
	View     ViewMode
	Sort     SortMode
	Ctx      Context
	ActiveID string
	OverID   string
}

// PlacementUpdate is the single-item persistence intent: the new position
// plus whichever classification field the view rewrote. Nil field pointers
// mean "not touched". An empty GroupID string clears the group (inbox).
type PlacementUpdate struct {
	TaskID   string
	Position float64
	Status   *domain.Status
	Priority *domain.Priority
	GroupID  *string
}

// PositionUpdate is one entry of the bulk rebalance intent.
type PositionUpdate struct {
	TaskID   string
	Position float64
}

// Reconciliation is the outcome of a drop: the new flat collection plus the
// persistence intent. A plain move sets Placement; spacing exhaustion sets
// Reindexed, plus Placement when the move also rewrote a classification
// field. A no-op drop returns the input collection untouched and no intent.
type Reconciliation struct {
	Tasks     []domain.Task
	Moved     bool
	Placement *PlacementUpdate
	Reindexed []PositionUpdate
}

// Reconcile turns a completed drag gesture into a new flat collection and a
// persistence intent. It never partially mutates: any resolution failure
// aborts with the input untouched.
func Reconcile(in ReconcileInput) (Reconciliation, error) {
	if !in.View.Writable() {
		return Reconciliation{}, ErrViewReadOnly
	}

	activeIdx := -1
	for i, task := range in.Tasks {
		if task.ID == in.ActiveID {
			activeIdx = i
			break
		}
	}
	if activeIdx < 0 {
		return Reconciliation{}, fmt.Errorf("%w: task %q not in collection", ErrUnresolvedDrop, in.ActiveID)
	}
	if in.OverID == "" || in.OverID == in.ActiveID {
		return noOp(in), nil
	}

	proj := Project(in.Tasks, in.View, in.Sort, in.Ctx)
	sourceKey, ok := proj.BucketFor(in.ActiveID)
	if !ok {
		return Reconciliation{}, fmt.Errorf("%w: no bucket holds %q", ErrUnresolvedDrop, in.ActiveID)
	}
	destKey, overTaskID, err := resolveDrop(proj, in.OverID)
	if err != nil {
		return Reconciliation{}, err
	}

	destBucket, _ := proj.Bucket(destKey)
	// The moving task is spliced out before the insert slot is computed, so a
	// same-bucket move indexes against the remaining tasks only.
	order := make([]domain.Task, 0, len(destBucket.Tasks)+1)
	for _, task := range destBucket.Tasks {
		if task.ID != in.ActiveID {
			order = append(order, task)
		}
	}
	insertIdx := len(order)
	if overTaskID != "" {
		insertIdx = -1
		for i, task := range order {
			if task.ID == overTaskID {
				insertIdx = i
				break
			}
		}
		if insertIdx < 0 {
			return Reconciliation{}, fmt.Errorf("%w: target %q left the bucket", ErrUnresolvedDrop, overTaskID)
		}
	}

	if sourceKey == destKey && insertIdx == bucketIndex(destBucket.Tasks, in.ActiveID) {
		return noOp(in), nil
	}

	var prev, next *domain.Task
	if insertIdx > 0 {
		prev = &order[insertIdx-1]
	}
	if insertIdx < len(order) {
		next = &order[insertIdx]
	}

	out := make([]domain.Task, len(in.Tasks))
	for i, task := range in.Tasks {
		out[i] = task.Clone()
	}
	moved := &out[activeIdx]
	applyBucketField(moved, in.View, destKey, in.Ctx.Now)

	position, posErr := ComputePosition(prev, next)
	if errors.Is(posErr, ErrSpacingExhausted) {
		rec, err := reindexBucket(in, out, order, insertIdx, moved)
		if err != nil {
			return Reconciliation{}, err
		}
		update := &PlacementUpdate{TaskID: moved.ID, Position: moved.Position}
		attachFieldIntent(update, in.View, sourceKey, destKey, *moved)
		if update.Status != nil || update.Priority != nil || update.GroupID != nil {
			rec.Placement = update
		}
		return rec, nil
	}
	moved.Relocate(position, in.Ctx.Now)

	update := &PlacementUpdate{TaskID: moved.ID, Position: position}
	attachFieldIntent(update, in.View, sourceKey, destKey, *moved)
	return Reconciliation{Tasks: out, Moved: true, Placement: update}, nil
}

// resolveDrop maps OverID to a destination bucket. A value that parses as a
// bucket key present in the projection wins over a task id lookup, so
// empty-column drops resolve even when a task happens to share the encoding.
func resolveDrop(proj Projection, overID string) (BucketKey, string, error) {
	if key, err := ParseBucketKey(overID); err == nil {
		if _, ok := proj.Bucket(key); ok {
			return key, "", nil
		}
	}
	if key, ok := proj.BucketFor(overID); ok {
		return key, overID, nil
	}
	return BucketKey{}, "", fmt.Errorf("%w: %q is neither a bucket nor a task", ErrUnresolvedDrop, overID)
}

// reindexBucket handles spacing exhaustion: the whole destination bucket gets
// dense positions in its dropped order, and the intent switches to a bulk
// position write.
func reindexBucket(in ReconcileInput, out, order []domain.Task, insertIdx int, moved *domain.Task) (Reconciliation, error) {
	final := make([]domain.Task, 0, len(order)+1)
	final = append(final, order[:insertIdx]...)
	final = append(final, *moved)
	final = append(final, order[insertIdx:]...)
	final = Reindex(final)

	byID := make(map[string]int, len(out))
	for i, task := range out {
		byID[task.ID] = i
	}
	updates := make([]PositionUpdate, 0, len(final))
	for _, task := range final {
		i, ok := byID[task.ID]
		if !ok {
			return Reconciliation{}, fmt.Errorf("%w: task %q left the collection", ErrUnresolvedDrop, task.ID)
		}
		out[i].Relocate(task.Position, in.Ctx.Now)
		updates = append(updates, PositionUpdate{TaskID: task.ID, Position: task.Position})
	}
	return Reconciliation{Tasks: out, Moved: true, Reindexed: updates}, nil
}

// applyBucketField rewrites the classification field the destination bucket
// implies under the active view. The inbox key clears the group reference.
func applyBucketField(task *domain.Task, view ViewMode, destKey BucketKey, now time.Time) {
	switch view {
	case ViewByGroup:
		groupID := destKey.Value
		if groupID == domain.InboxGroupID {
			groupID = ""
		}
		task.SetGroup(groupID, now)
	case ViewByStatus:
		if status, err := domain.ParseStatus(destKey.Value); err == nil {
			task.SetStatus(status, now)
		}
	case ViewByPriority:
		if priority, err := domain.ParsePriority(destKey.Value); err == nil {
			task.SetPriority(priority, now)
		}
	}
}

// attachFieldIntent copies the rewritten field into the persistence payload.
// A same-bucket move under the group view still carries the unchanged group
// id, because the backing store's ownership check wants it on every write.
func attachFieldIntent(update *PlacementUpdate, view ViewMode, sourceKey, destKey BucketKey, moved domain.Task) {
	switch view {
	case ViewByGroup:
		groupID := moved.GroupID
		update.GroupID = &groupID
	case ViewByStatus:
		if sourceKey != destKey {
			status := moved.Status
			update.Status = &status
		}
	case ViewByPriority:
		if sourceKey != destKey {
			priority := moved.Priority
			update.Priority = &priority
		}
	}
}

func bucketIndex(tasks []domain.Task, taskID string) int {
	for i, task := range tasks {
		if task.ID == taskID {
			return i
		}
	}
	return -1
}

func noOp(in ReconcileInput) Reconciliation {
	return Reconciliation{Tasks: in.Tasks}
}
