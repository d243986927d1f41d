package board

import (
	"errors"
	"strings"
	"time"

	"github.com/quadrolabs/quadro/internal/domain"
)

// ViewMode selects how the flat task collection is grouped into buckets.
// Exactly one view is active at a time.
type ViewMode string

const (
	ViewByGroup    ViewMode = "group"
	ViewByStatus   ViewMode = "status"
	ViewByPriority ViewMode = "priority"
	ViewByDueDate  ViewMode = "due_date"
	ViewByAssignee ViewMode = "assignee"
)

// ViewModes lists every view in its display cycle order.
var ViewModes = []ViewMode{ViewByGroup, ViewByStatus, ViewByPriority, ViewByDueDate, ViewByAssignee}

// ParseViewMode resolves a configured or user-supplied view name.
func ParseViewMode(raw string) (ViewMode, error) {
	switch ViewMode(strings.TrimSpace(strings.ToLower(raw))) {
	case ViewByGroup:
		return ViewByGroup, nil
	case ViewByStatus:
		return ViewByStatus, nil
	case ViewByPriority:
		return ViewByPriority, nil
	case ViewByDueDate:
		return ViewByDueDate, nil
	case ViewByAssignee:
		return ViewByAssignee, nil
	default:
		return "", ErrUnknownView
	}
}

// Writable reports whether dragging under this view can be written back as a
// field mutation. Due-date and assignee buckets are derived, so those views
// are read-only for drag purposes.
func (v ViewMode) Writable() bool {
	switch v {
	case ViewByGroup, ViewByStatus, ViewByPriority:
		return true
	default:
		return false
	}
}

// SortMode selects the in-bucket ordering, independent of the view.
type SortMode string

const (
	SortManual   SortMode = "manual"
	SortStatus   SortMode = "status"
	SortPriority SortMode = "priority"
	SortAssignee SortMode = "assignee"
	SortTitle    SortMode = "title"
)

// SortModes lists every sort selection in its display cycle order.
var SortModes = []SortMode{SortManual, SortStatus, SortPriority, SortAssignee, SortTitle}

// ParseSortMode resolves a configured or user-supplied sort name.
func ParseSortMode(raw string) (SortMode, error) {
	switch SortMode(strings.TrimSpace(strings.ToLower(raw))) {
	case SortManual:
		return SortManual, nil
	case SortStatus:
		return SortStatus, nil
	case SortPriority:
		return SortPriority, nil
	case SortAssignee:
		return SortAssignee, nil
	case SortTitle:
		return SortTitle, nil
	default:
		return "", ErrUnknownSort
	}
}

// BucketKind tags which view family a bucket key belongs to.
type BucketKind string

const (
	BucketGroup    BucketKind = "group"
	BucketStatus   BucketKind = "status"
	BucketPriority BucketKind = "priority"
	BucketDueDate  BucketKind = "due"
	BucketAssignee BucketKind = "assignee"
)

// BucketKey identifies one bucket under the active view. The tagged
// representation keeps key derivation and key-to-mutation mapping exhaustive
// instead of overloading a bare string.
type BucketKey struct {
	Kind  BucketKind
	Value string
}

// UnassignedBucketValue is the catch-all assignee bucket value.
const UnassignedBucketValue = "unassigned"

// Due-date bucket values, in canonical board order.
const (
	DueOverdue  = "overdue"
	DueToday    = "today"
	DueTomorrow = "tomorrow"
	DueNextWeek = "next-7-days"
	DueFuture   = "future"
	DueNone     = "no-date"
)

var dueBucketOrder = []string{DueOverdue, DueToday, DueTomorrow, DueNextWeek, DueFuture, DueNone}

var dueBucketTitles = map[string]string{
	DueOverdue:  "Overdue",
	DueToday:    "Today",
	DueTomorrow: "Tomorrow",
	DueNextWeek: "Next 7 Days",
	DueFuture:   "Future",
	DueNone:     "No Date",
}

var statusBucketOrder = []domain.Status{domain.StatusTodo, domain.StatusInProgress, domain.StatusDone}

var priorityBucketOrder = []domain.Priority{domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow}

// priorityRank orders priorities for the priority sort comparator.
var priorityRank = map[domain.Priority]int{
	domain.PriorityUrgent: 0,
	domain.PriorityHigh:   1,
	domain.PriorityMedium: 2,
	domain.PriorityLow:    3,
}

// statusRank orders statuses for the status sort comparator.
var statusRank = map[domain.Status]int{
	domain.StatusTodo:       0,
	domain.StatusInProgress: 1,
	domain.StatusDone:       2,
}

var (
	ErrUnknownView  = errors.New("unknown view mode")
	ErrUnknownSort  = errors.New("unknown sort mode")
	ErrInvalidKey   = errors.New("invalid bucket key")
	ErrKeyViewDrift = errors.New("bucket key does not match active view")
)

// String encodes the key as "kind:value" so it can ride through drop-target
// identifiers and round-trip via ParseBucketKey.
func (k BucketKey) String() string {
	return string(k.Kind) + ":" + k.Value
}

// ParseBucketKey decodes a "kind:value" key.
func ParseBucketKey(raw string) (BucketKey, error) {
	kind, value, ok := strings.Cut(raw, ":")
	if !ok || value == "" {
		return BucketKey{}, ErrInvalidKey
	}
	switch BucketKind(kind) {
	case BucketGroup, BucketStatus, BucketPriority, BucketDueDate, BucketAssignee:
		return BucketKey{Kind: BucketKind(kind), Value: value}, nil
	default:
		return BucketKey{}, ErrInvalidKey
	}
}

// KeyFor derives the bucket key a task falls under for a view. now anchors
// the due-date buckets and must already be in the board's local time zone.
func KeyFor(task domain.Task, view ViewMode, now time.Time) BucketKey {
	switch view {
	case ViewByGroup:
		if task.GroupID == "" {
			return BucketKey{Kind: BucketGroup, Value: domain.InboxGroupID}
		}
		return BucketKey{Kind: BucketGroup, Value: task.GroupID}
	case ViewByStatus:
		return BucketKey{Kind: BucketStatus, Value: string(task.Status)}
	case ViewByPriority:
		return BucketKey{Kind: BucketPriority, Value: string(task.Priority)}
	case ViewByDueDate:
		return BucketKey{Kind: BucketDueDate, Value: dueBucketFor(task, now)}
	case ViewByAssignee:
		if len(task.AssigneeIDs) == 0 {
			return BucketKey{Kind: BucketAssignee, Value: UnassignedBucketValue}
		}
		return BucketKey{Kind: BucketAssignee, Value: task.AssigneeIDs[0]}
	default:
		return BucketKey{Kind: BucketGroup, Value: domain.InboxGroupID}
	}
}

// dueBucketFor buckets a due date against local midnight "today". Overdue
// requires the task be incomplete; a finished task with a past due date lands
// in the plain calendar bucket instead.
func dueBucketFor(task domain.Task, now time.Time) string {
	if task.DueAt == nil {
		return DueNone
	}
	due := task.DueAt.In(now.Location())
	days := calendarDaysBetween(now, due)
	switch {
	case days < 0:
		// A finished task is never overdue; it shows under today instead.
		if task.Completed() {
			return DueToday
		}
		return DueOverdue
	case days == 0:
		return DueToday
	case days == 1:
		return DueTomorrow
	case days <= 7:
		return DueNextWeek
	default:
		return DueFuture
	}
}

// calendarDaysBetween counts whole calendar days from a to b. Both midnights
// are rebuilt in UTC so a DST transition between them cannot skew the count.
func calendarDaysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
