// Package board implements the ordering and reconciliation core of the task
// board: fractional position allocation, view projection, and drag
// reconciliation. Everything here is pure; persistence and rendering live
// elsewhere.
package board

import (
	"errors"

	"github.com/quadrolabs/quadro/internal/domain"
)

const (
	// PositionSeed is the position of the first task in an empty bucket.
	PositionSeed = 1000.0
	// PositionStep spaces appended tasks and reindexed buckets.
	PositionStep = 1000.0
	// MinPosition floors head insertions so positions stay strictly positive.
	MinPosition = 1e-3
	// MinPositionGap is the precision threshold below which midpoint
	// insertion risks colliding with a neighbor under float64 rounding.
	MinPositionGap = 1e-5
)

// ErrSpacingExhausted signals that the gap between two neighbors is too small
// for another midpoint insertion and the bucket must be reindexed. It is an
// internal signal, not a failure: callers switch to the bulk-reindex path.
var ErrSpacingExhausted = errors.New("position spacing exhausted")

// ComputePosition returns the fractional position for a task inserted between
// prev and next. Either neighbor may be nil at the list boundaries.
func ComputePosition(prev, next *domain.Task) (float64, error) {
	switch {
	case prev == nil && next == nil:
		return PositionSeed, nil
	case prev == nil:
		pos := next.Position / 2
		if pos < MinPosition {
			pos = MinPosition
		}
		if next.Position-pos < MinPositionGap {
			return 0, ErrSpacingExhausted
		}
		return pos, nil
	case next == nil:
		return prev.Position + PositionStep, nil
	default:
		if next.Position-prev.Position < 2*MinPositionGap {
			return 0, ErrSpacingExhausted
		}
		return (prev.Position + next.Position) / 2, nil
	}
}

// Reindex assigns strictly increasing positions spaced by PositionStep in the
// given order. It is the only operation allowed to touch every position in a
// bucket at once, and it is idempotent: reindexing its own output yields the
// same positions. The input slice is not mutated.
func Reindex(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	for i, task := range tasks {
		out[i] = task
		out[i].Position = float64(i+1) * PositionStep
	}
	return out
}
