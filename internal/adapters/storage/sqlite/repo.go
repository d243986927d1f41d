// Package sqlite implements the persistence boundary on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quadrolabs/quadro/internal/board"
	"github.com/quadrolabs/quadro/internal/domain"
	"github.com/quadrolabs/quadro/internal/store"
)

const driverName = "sqlite"

// ErrNotFound marks writes against rows that do not exist.
var ErrNotFound = errors.New("sqlite: row not found")

// Repository is the SQLite-backed implementation of store.Persistence.
type Repository struct {
	db    *sql.DB
	newID func() string
}

// Open opens (and migrates) the database at path.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a throwaway in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db, newID: uuid.NewString}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			group_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			priority TEXT NOT NULL DEFAULT 'medium',
			assignees_json TEXT NOT NULL DEFAULT '[]',
			due_at TEXT,
			position REAL NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			labels_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_workspace ON tasks(workspace_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_group ON tasks(group_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ListTasks returns every task in the workspace ordered by position.
func (r *Repository) ListTasks(ctx context.Context, workspaceID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, group_id, status, priority, assignees_json, due_at,
			position, title, description, labels_json, created_at, updated_at
		FROM tasks WHERE workspace_id = ?
		ORDER BY group_id, position ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task and issues the durable id. Placeholder ids from
// in-flight optimistic creates are replaced, never stored.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.ID == "" || store.IsTempID(t.ID) {
		t.ID = r.newID()
	}
	assigneesJSON, err := json.Marshal(t.AssigneeIDs)
	if err != nil {
		return domain.Task{}, err
	}
	labelsJSON, err := json.Marshal(t.Labels)
	if err != nil {
		return domain.Task{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks(
			id, workspace_id, group_id, status, priority, assignees_json, due_at,
			position, title, description, labels_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.WorkspaceID,
		t.GroupID,
		string(t.Status),
		string(t.Priority),
		string(assigneesJSON),
		nullableTS(t.DueAt),
		t.Position,
		t.Title,
		t.Description,
		string(labelsJSON),
		ts(t.CreatedAt),
		ts(t.UpdatedAt),
	)
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// UpdateTask rewrites every mutable field of a task.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	assigneesJSON, err := json.Marshal(t.AssigneeIDs)
	if err != nil {
		return err
	}
	labelsJSON, err := json.Marshal(t.Labels)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			group_id = ?, status = ?, priority = ?, assignees_json = ?, due_at = ?,
			position = ?, title = ?, description = ?, labels_json = ?, updated_at = ?
		WHERE id = ?
	`,
		t.GroupID,
		string(t.Status),
		string(t.Priority),
		string(assigneesJSON),
		nullableTS(t.DueAt),
		t.Position,
		t.Title,
		t.Description,
		string(labelsJSON),
		ts(t.UpdatedAt),
		t.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// UpdateTaskPlacement writes the position and whichever classification field
// the move rewrote, in one statement.
func (r *Repository) UpdateTaskPlacement(ctx context.Context, update board.PlacementUpdate) error {
	sets := []string{"position = ?", "updated_at = ?"}
	args := []any{update.Position, ts(time.Now())}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*update.Priority))
	}
	if update.GroupID != nil {
		sets = append(sets, "group_id = ?")
		args = append(args, *update.GroupID)
	}
	args = append(args, update.TaskID)

	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// UpdateTaskPositions applies a rebalance in one transaction: either every
// position lands or none do.
func (r *Repository) UpdateTaskPositions(ctx context.Context, updates []board.PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := ts(time.Now())
	for _, u := range updates {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET position = ?, updated_at = ? WHERE id = ?`,
			u.Position, now, u.TaskID)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := translateNoRows(res); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("task %s: %w", u.TaskID, err)
		}
	}
	return tx.Commit()
}

// ListGroups returns the workspace's groups in manual order.
func (r *Repository) ListGroups(ctx context.Context, workspaceID string) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, color, position, created_at, updated_at
		FROM groups WHERE workspace_id = ?
		ORDER BY position ASC, created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		var created, updated string
		if err := rows.Scan(&g.ID, &g.WorkspaceID, &g.Name, &g.Color, &g.Position, &created, &updated); err != nil {
			return nil, err
		}
		g.CreatedAt = parseTS(created)
		g.UpdatedAt = parseTS(updated)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CreateGroup inserts a group.
func (r *Repository) CreateGroup(ctx context.Context, g domain.Group) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO groups(id, workspace_id, name, color, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.WorkspaceID, g.Name, g.Color, g.Position, ts(g.CreatedAt), ts(g.UpdatedAt))
	return err
}

// UpdateGroup rewrites a group's mutable fields.
func (r *Repository) UpdateGroup(ctx context.Context, g domain.Group) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE groups SET name = ?, color = ?, position = ?, updated_at = ? WHERE id = ?
	`, g.Name, g.Color, g.Position, ts(g.UpdatedAt), g.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteGroup removes a group and re-homes its tasks to the inbox in the same
// transaction.
func (r *Repository) DeleteGroup(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET group_id = '', updated_at = ? WHERE group_id = ?`,
		ts(time.Now()), id); err != nil {
		_ = tx.Rollback()
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := translateNoRows(res); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListMembers returns the workspace's members.
func (r *Repository) ListMembers(ctx context.Context, workspaceID string) ([]domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, display_name, email, created_at
		FROM members WHERE workspace_id = ?
		ORDER BY display_name ASC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		var created string
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.DisplayName, &m.Email, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTS(created)
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember inserts a member. Used by seeding and the serve surface.
func (r *Repository) AddMember(ctx context.Context, m domain.Member) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO members(id, workspace_id, display_name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.WorkspaceID, m.DisplayName, m.Email, ts(m.CreatedAt))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var assigneesJSON, labelsJSON, created, updated string
	var due sql.NullString
	if err := s.Scan(
		&t.ID, &t.WorkspaceID, &t.GroupID, &t.Status, &t.Priority,
		&assigneesJSON, &due, &t.Position, &t.Title, &t.Description,
		&labelsJSON, &created, &updated,
	); err != nil {
		return domain.Task{}, err
	}
	if err := json.Unmarshal([]byte(assigneesJSON), &t.AssigneeIDs); err != nil {
		return domain.Task{}, fmt.Errorf("decode assignees: %w", err)
	}
	if err := json.Unmarshal([]byte(labelsJSON), &t.Labels); err != nil {
		return domain.Task{}, fmt.Errorf("decode labels: %w", err)
	}
	t.DueAt = parseNullTS(due)
	t.CreatedAt = parseTS(created)
	t.UpdatedAt = parseTS(updated)
	return t, nil
}

func translateNoRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

func parseTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTS(v.String)
	return &t
}
