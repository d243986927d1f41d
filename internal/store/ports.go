package store

import (
	"context"
	"time"

	"github.com/quadrolabs/quadro/internal/board"
	"github.com/quadrolabs/quadro/internal/domain"
)

// Persistence is the asynchronous backing boundary the store wraps. Every
// call is issued after the optimistic apply; an error rolls the apply back.
type Persistence interface {
	ListTasks(context.Context, string) ([]domain.Task, error)
	CreateTask(context.Context, domain.Task) (domain.Task, error)
	UpdateTask(context.Context, domain.Task) error
	DeleteTask(context.Context, string) error
	UpdateTaskPlacement(context.Context, board.PlacementUpdate) error
	UpdateTaskPositions(context.Context, []board.PositionUpdate) error

	ListGroups(context.Context, string) ([]domain.Group, error)
	CreateGroup(context.Context, domain.Group) error
	UpdateGroup(context.Context, domain.Group) error
	DeleteGroup(context.Context, string) error

	ListMembers(context.Context, string) ([]domain.Member, error)
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time
