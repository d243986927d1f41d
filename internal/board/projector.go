package board

import (
	"slices"
	"strings"
	"time"

	"github.com/quadrolabs/quadro/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Context carries the auxiliary lookup data a projection needs. View and sort
// are threaded explicitly by callers instead of living in ambient state.
type Context struct {
	Groups  []domain.Group
	Members []domain.Member
	Now     time.Time
	// Collator orders assignee buckets; nil falls back to a case-insensitive
	// collator for the und locale.
	Collator *collate.Collator
}

// Bucket is one ordered column of the projection.
type Bucket struct {
	Key   BucketKey
	Title string
	Color string
	Tasks []domain.Task
}

// Projection is the ordered bucket list derived from one flat task
// collection. Bucket order and in-bucket task order are both significant.
type Projection struct {
	View    ViewMode
	Sort    SortMode
	Buckets []Bucket
}

// BucketFor returns the bucket holding the given task id.
func (p Projection) BucketFor(taskID string) (BucketKey, bool) {
	for _, bucket := range p.Buckets {
		for _, task := range bucket.Tasks {
			if task.ID == taskID {
				return bucket.Key, true
			}
		}
	}
	return BucketKey{}, false
}

// Bucket returns the bucket with the given key.
func (p Projection) Bucket(key BucketKey) (Bucket, bool) {
	for _, bucket := range p.Buckets {
		if bucket.Key == key {
			return bucket, true
		}
	}
	return Bucket{}, false
}

// TaskCount sums tasks across buckets.
func (p Projection) TaskCount() int {
	total := 0
	for _, bucket := range p.Buckets {
		total += len(bucket.Tasks)
	}
	return total
}

// Project derives the bucket map for one view from the flat collection. It is
// pure: identical inputs yield an identical projection, inputs are never
// mutated, and every input task lands in exactly one bucket. Buckets that are
// configured but empty (groups, members) stay visible.
func Project(tasks []domain.Task, view ViewMode, sort SortMode, ctx Context) Projection {
	buckets := emptyBuckets(view, ctx)
	index := make(map[BucketKey]int, len(buckets))
	for i, bucket := range buckets {
		index[bucket.Key] = i
	}

	for _, task := range tasks {
		key := KeyFor(task, view, ctx.Now)
		i, ok := index[key]
		if !ok {
			// Tasks referencing a deleted group (or a departed member) must
			// not be dropped silently; they surface in a trailing bucket.
			buckets = append(buckets, Bucket{Key: key, Title: orphanTitle(key)})
			i = len(buckets) - 1
			index[key] = i
		}
		buckets[i].Tasks = append(buckets[i].Tasks, task)
	}

	cmp := taskComparator(sort)
	for i := range buckets {
		slices.SortStableFunc(buckets[i].Tasks, cmp)
	}

	return Projection{View: view, Sort: sort, Buckets: buckets}
}

// emptyBuckets initializes every known bucket for the view, in cross-bucket
// order, before any task is distributed.
func emptyBuckets(view ViewMode, ctx Context) []Bucket {
	switch view {
	case ViewByGroup:
		groups := append([]domain.Group(nil), ctx.Groups...)
		slices.SortStableFunc(groups, func(a, b domain.Group) int {
			if a.Position != b.Position {
				return a.Position - b.Position
			}
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		buckets := make([]Bucket, 0, len(groups)+1)
		buckets = append(buckets, Bucket{
			Key:   BucketKey{Kind: BucketGroup, Value: domain.InboxGroupID},
			Title: domain.InboxGroupName,
		})
		for _, group := range groups {
			buckets = append(buckets, Bucket{
				Key:   BucketKey{Kind: BucketGroup, Value: group.ID},
				Title: group.Name,
				Color: group.Color,
			})
		}
		return buckets

	case ViewByStatus:
		buckets := make([]Bucket, 0, len(statusBucketOrder))
		for _, status := range statusBucketOrder {
			buckets = append(buckets, Bucket{
				Key:   BucketKey{Kind: BucketStatus, Value: string(status)},
				Title: domain.StatusLabel(status),
			})
		}
		return buckets

	case ViewByPriority:
		buckets := make([]Bucket, 0, len(priorityBucketOrder))
		for _, priority := range priorityBucketOrder {
			buckets = append(buckets, Bucket{
				Key:   BucketKey{Kind: BucketPriority, Value: string(priority)},
				Title: domain.PriorityLabel(priority),
			})
		}
		return buckets

	case ViewByDueDate:
		buckets := make([]Bucket, 0, len(dueBucketOrder))
		for _, value := range dueBucketOrder {
			buckets = append(buckets, Bucket{
				Key:   BucketKey{Kind: BucketDueDate, Value: value},
				Title: dueBucketTitles[value],
			})
		}
		return buckets

	case ViewByAssignee:
		members := append([]domain.Member(nil), ctx.Members...)
		collator := ctx.Collator
		if collator == nil {
			collator = collate.New(language.Und, collate.IgnoreCase)
		}
		slices.SortStableFunc(members, func(a, b domain.Member) int {
			return collator.CompareString(a.DisplayName, b.DisplayName)
		})
		buckets := make([]Bucket, 0, len(members)+1)
		for _, member := range members {
			buckets = append(buckets, Bucket{
				Key:   BucketKey{Kind: BucketAssignee, Value: member.ID},
				Title: member.DisplayName,
			})
		}
		// The unassigned bucket is always last, after the alphabetized members.
		buckets = append(buckets, Bucket{
			Key:   BucketKey{Kind: BucketAssignee, Value: UnassignedBucketValue},
			Title: "Unassigned",
		})
		return buckets

	default:
		return nil
	}
}

// taskComparator returns the in-bucket ordering for a sort selection. The
// sorts are stable, so ties keep the original collection order and a manual
// position tie never reorders silently.
func taskComparator(sort SortMode) func(a, b domain.Task) int {
	switch sort {
	case SortStatus:
		return func(a, b domain.Task) int {
			return statusRank[a.Status] - statusRank[b.Status]
		}
	case SortPriority:
		return func(a, b domain.Task) int {
			return priorityRank[a.Priority] - priorityRank[b.Priority]
		}
	case SortAssignee:
		return func(a, b domain.Task) int {
			aEmpty, bEmpty := len(a.AssigneeIDs) == 0, len(b.AssigneeIDs) == 0
			switch {
			case aEmpty && bEmpty:
				return 0
			case aEmpty:
				return 1
			case bEmpty:
				return -1
			}
			return strings.Compare(a.AssigneeIDs[0], b.AssigneeIDs[0])
		}
	case SortTitle:
		return func(a, b domain.Task) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	default:
		return func(a, b domain.Task) int {
			switch {
			case a.Position < b.Position:
				return -1
			case a.Position > b.Position:
				return 1
			default:
				return 0
			}
		}
	}
}

// orphanTitle labels buckets synthesized for keys outside the configured set.
func orphanTitle(key BucketKey) string {
	switch key.Kind {
	case BucketGroup:
		return "Unknown Group"
	case BucketAssignee:
		return "Former Member"
	default:
		return key.Value
	}
}
