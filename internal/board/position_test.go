package board

import (
	"errors"
	"testing"

	"github.com/quadrolabs/quadro/internal/domain"
)

func taskAt(id string, position float64) domain.Task {
	return domain.Task{ID: id, Position: position, Title: id}
}

func TestComputePosition(t *testing.T) {
	prev := taskAt("a", 1000)
	next := taskAt("b", 2000)
	head := taskAt("h", 0.0015)

	tests := []struct {
		name string
		prev *domain.Task
		next *domain.Task
		want float64
	}{
		{name: "empty bucket seeds", want: PositionSeed},
		{name: "head insert halves next", next: &next, want: 1000},
		{name: "head insert clamps to minimum", next: &head, want: MinPosition},
		{name: "tail insert steps past prev", prev: &prev, want: 2000},
		{name: "midpoint between neighbors", prev: &prev, next: &next, want: 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePosition(tt.prev, tt.next)
			if err != nil {
				t.Fatalf("ComputePosition() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ComputePosition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputePositionStaysStrictlyBetween(t *testing.T) {
	prev := taskAt("a", 10)
	next := taskAt("b", 10.5)
	got, err := ComputePosition(&prev, &next)
	if err != nil {
		t.Fatalf("ComputePosition() error = %v", err)
	}
	if got <= prev.Position || got >= next.Position {
		t.Errorf("ComputePosition() = %v, want strictly between %v and %v", got, prev.Position, next.Position)
	}
}

func TestComputePositionSignalsExhaustion(t *testing.T) {
	prev := taskAt("a", 1000.00001)
	next := taskAt("b", 1000.00002)
	if _, err := ComputePosition(&prev, &next); !errors.Is(err, ErrSpacingExhausted) {
		t.Fatalf("ComputePosition() error = %v, want ErrSpacingExhausted", err)
	}

	tight := taskAt("t", 2 * MinPositionGap)
	if _, err := ComputePosition(nil, &tight); !errors.Is(err, ErrSpacingExhausted) {
		t.Fatalf("ComputePosition() head error = %v, want ErrSpacingExhausted", err)
	}
}

func TestReindexSpacingAndIdempotence(t *testing.T) {
	tasks := []domain.Task{
		taskAt("a", 1000.00001),
		taskAt("c", 1000.000015),
		taskAt("b", 1000.00002),
	}

	first := Reindex(tasks)
	if tasks[0].Position != 1000.00001 {
		t.Fatalf("Reindex() mutated its input: %v", tasks[0].Position)
	}
	wantPositions := []float64{1000, 2000, 3000}
	for i, task := range first {
		if task.Position != wantPositions[i] {
			t.Errorf("Reindex()[%d].Position = %v, want %v", i, task.Position, wantPositions[i])
		}
	}
	if first[0].ID != "a" || first[1].ID != "c" || first[2].ID != "b" {
		t.Errorf("Reindex() reordered tasks: %v %v %v", first[0].ID, first[1].ID, first[2].ID)
	}

	second := Reindex(first)
	for i := range second {
		if second[i].ID != first[i].ID || second[i].Position != first[i].Position {
			t.Errorf("Reindex(Reindex()) diverged at %d: got %v/%v, want %v/%v",
				i, second[i].ID, second[i].Position, first[i].ID, first[i].Position)
		}
	}
}
