package domain

import (
	"strings"
	"time"
)

// InboxGroupID identifies the synthetic bucket for tasks with no group. It
// always exists, is never persisted, and cannot be renamed, recolored, or
// deleted.
const InboxGroupID = "inbox"

// InboxGroupName is the display name of the synthetic inbox bucket.
const InboxGroupName = "Inbox"

// Group is a user-defined named bucket with a color, independent of status
// and priority. Position orders groups on the board.
type Group struct {
	ID          string
	WorkspaceID string
	Name        string
	Color       string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewGroup(id, workspaceID, name, color string, position int, now time.Time) (Group, error) {
	id = strings.TrimSpace(id)
	workspaceID = strings.TrimSpace(workspaceID)
	name = strings.TrimSpace(name)
	color = strings.TrimSpace(color)

	if id == "" {
		return Group{}, ErrInvalidID
	}
	if id == InboxGroupID {
		return Group{}, ErrInboxImmutable
	}
	if workspaceID == "" {
		return Group{}, ErrInvalidID
	}
	if name == "" {
		return Group{}, ErrInvalidName
	}
	if position < 0 {
		return Group{}, ErrInvalidPosition
	}

	return Group{
		ID:          id,
		WorkspaceID: workspaceID,
		Name:        name,
		Color:       color,
		Position:    position,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// Rename changes the group display name.
func (g *Group) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	g.Name = name
	g.UpdatedAt = now.UTC()
	return nil
}

// Recolor changes the group accent color.
func (g *Group) Recolor(color string, now time.Time) {
	g.Color = strings.TrimSpace(color)
	g.UpdatedAt = now.UTC()
}

// SetPosition changes the manual ordering of the group on the board.
func (g *Group) SetPosition(position int, now time.Time) error {
	if position < 0 {
		return ErrInvalidPosition
	}
	g.Position = position
	g.UpdatedAt = now.UTC()
	return nil
}
