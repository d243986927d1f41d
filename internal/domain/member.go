package domain

import (
	"strings"
	"time"
)

// Member is a workspace participant who can be assigned tasks.
type Member struct {
	ID          string
	WorkspaceID string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

func NewMember(id, workspaceID, displayName, email string, now time.Time) (Member, error) {
	id = strings.TrimSpace(id)
	workspaceID = strings.TrimSpace(workspaceID)
	displayName = strings.TrimSpace(displayName)
	email = strings.TrimSpace(email)

	if id == "" {
		return Member{}, ErrInvalidID
	}
	if workspaceID == "" {
		return Member{}, ErrInvalidID
	}
	if displayName == "" {
		displayName = email
	}
	if displayName == "" {
		return Member{}, ErrInvalidName
	}

	return Member{
		ID:          id,
		WorkspaceID: workspaceID,
		DisplayName: displayName,
		Email:       email,
		CreatedAt:   now.UTC(),
	}, nil
}
