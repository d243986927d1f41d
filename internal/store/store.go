// Package store owns the canonical in-memory task collection and applies
// every mutation optimistically: the visible state changes first, the backing
// persistence call runs asynchronously, and a failure rolls the change back.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/collate"

	"github.com/quadrolabs/quadro/internal/board"
	"github.com/quadrolabs/quadro/internal/domain"
)

// ErrTaskNotFound and related sentinels mark mutations against missing state.
var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrGroupNotFound = errors.New("group not found")
)

// DefaultPersistTimeout bounds how long an optimistic change may wait for its
// confirmation before the store gives up and rolls back.
const DefaultPersistTimeout = 10 * time.Second

// tempIDPrefix marks client-generated placeholder ids for in-flight creates.
const tempIDPrefix = "tmp-"

// NoticeLevel classifies user-facing notices.
type NoticeLevel string

// NoticeInfo and related constants define notice levels.
const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-facing message emitted by the store, typically rendered as
// a toast or status line.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier receives notices. It is called outside the store's lock.
type Notifier func(Notice)

// Config holds configuration for the store.
type Config struct {
	WorkspaceID    string
	Persistence    Persistence
	IDGen          IDGenerator
	Clock          Clock
	Logger         *log.Logger
	Notify         Notifier
	PersistTimeout time.Duration
	// Collator orders assignee buckets; nil uses the projector's fallback.
	Collator *collate.Collator
}

// Store applies mutations optimistically and reconciles them with the
// persistence boundary. It is the sole writer of the canonical collection;
// readers get copies.
type Store struct {
	mu          sync.Mutex
	persistence Persistence
	workspaceID string
	idGen       IDGenerator
	clock       Clock
	logger      *log.Logger
	notify      Notifier
	timeout     time.Duration
	collator    *collate.Collator

	tasks   []domain.Task
	groups  []domain.Group
	members []domain.Member

	// generations guards rollbacks from superseded mutations: each mutation
	// stamps the task ids it touches, and a rollback only restores an id
	// whose stamp is still its own.
	generations map[string]uint64
	sequence    uint64
}

// New constructs a store around the given persistence boundary.
func New(cfg Config) *Store {
	if cfg.IDGen == nil {
		cfg.IDGen = func() string { return "" }
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Notify == nil {
		cfg.Notify = func(Notice) {}
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	return &Store{
		persistence: cfg.Persistence,
		workspaceID: cfg.WorkspaceID,
		idGen:       cfg.IDGen,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		notify:      cfg.Notify,
		timeout:     cfg.PersistTimeout,
		collator:    cfg.Collator,
		generations: make(map[string]uint64),
	}
}

// Load replaces the local collection with the backing store's current truth.
func (s *Store) Load(ctx context.Context) error {
	tasks, err := s.persistence.ListTasks(ctx, s.workspaceID)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	groups, err := s.persistence.ListGroups(ctx, s.workspaceID)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	members, err := s.persistence.ListMembers(ctx, s.workspaceID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}

	s.mu.Lock()
	s.tasks = tasks
	s.groups = groups
	s.members = members
	s.mu.Unlock()
	return nil
}

// Tasks returns a copy of the canonical flat collection.
func (s *Store) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTasks(s.tasks)
}

// Groups returns a copy of the known groups.
func (s *Store) Groups() []domain.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Group(nil), s.groups...)
}

// Members returns a copy of the known workspace members.
func (s *Store) Members() []domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Member(nil), s.members...)
}

// Context builds the projection context from the current state.
func (s *Store) Context() board.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return board.Context{
		Groups:   append([]domain.Group(nil), s.groups...),
		Members:  append([]domain.Member(nil), s.members...),
		Now:      s.clock(),
		Collator: s.collator,
	}
}

// Projection derives the bucket view of the current collection.
func (s *Store) Projection(view board.ViewMode, sort board.SortMode) board.Projection {
	return board.Project(s.Tasks(), view, sort, s.Context())
}

// Create appends a new task optimistically under a placeholder id. The
// server-issued id is spliced in when the create confirms; the returned
// channel resolves with the persistence outcome.
func (s *Store) Create(ctx context.Context, input domain.TaskInput) (domain.Task, <-chan error, error) {
	now := s.clock()
	input.ID = tempIDPrefix + s.idGen()
	if input.WorkspaceID == "" {
		input.WorkspaceID = s.workspaceID
	}
	if input.Position == 0 {
		input.Position = s.tailPosition(input.GroupID)
	}
	task, err := domain.NewTask(input, now)
	if err != nil {
		return domain.Task{}, nil, err
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task.Clone())
	gen := s.stamp(task.ID)
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		created, err := s.persistence.CreateTask(callCtx, task)
		if err != nil {
			s.rollback("create task", []string{task.ID}, gen, func() {
				s.removeTask(task.ID)
			}, err)
			done <- err
			return
		}

		s.mu.Lock()
		if s.generations[task.ID] == gen {
			if i := s.indexOf(task.ID); i >= 0 {
				s.tasks[i].ID = created.ID
				s.generations[created.ID] = gen
			}
			delete(s.generations, task.ID)
		}
		s.mu.Unlock()
		done <- nil
	}()
	return task, done, nil
}

// Update patches an existing task optimistically.
func (s *Store) Update(ctx context.Context, task domain.Task) (<-chan error, error) {
	s.mu.Lock()
	i := s.indexOf(task.ID)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, task.ID)
	}
	prior := s.tasks[i].Clone()
	s.tasks[i] = task.Clone()
	gen := s.stamp(task.ID)
	s.mu.Unlock()

	return s.confirm(ctx, "update task", []string{task.ID}, gen, func() {
		if j := s.indexOf(task.ID); j >= 0 {
			s.tasks[j] = prior
		}
	}, func(callCtx context.Context) error {
		return s.persistence.UpdateTask(callCtx, task)
	}), nil
}

// Delete removes a task optimistically.
func (s *Store) Delete(ctx context.Context, id string) (<-chan error, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	prior := s.tasks[i].Clone()
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	gen := s.stamp(id)
	s.mu.Unlock()

	return s.confirm(ctx, "delete task", []string{id}, gen, func() {
		at := i
		if at > len(s.tasks) {
			at = len(s.tasks)
		}
		s.tasks = append(s.tasks[:at], append([]domain.Task{prior}, s.tasks[at:]...)...)
	}, func(callCtx context.Context) error {
		return s.persistence.DeleteTask(callCtx, id)
	}), nil
}

// Move reconciles a completed drag gesture and persists its intent. Guard and
// resolution failures return synchronously with nothing mutated.
func (s *Store) Move(ctx context.Context, view board.ViewMode, sort board.SortMode, activeID, overID string) (board.Reconciliation, <-chan error, error) {
	s.mu.Lock()
	in := board.ReconcileInput{
		Tasks: cloneTasks(s.tasks),
		View:  view,
		Sort:  sort,
		Ctx: board.Context{
			Groups:  append([]domain.Group(nil), s.groups...),
			Members: append([]domain.Member(nil), s.members...),
			Now:     s.clock(),
		},
		ActiveID: activeID,
		OverID:   overID,
	}
	rec, err := board.Reconcile(in)
	if err != nil {
		s.mu.Unlock()
		return board.Reconciliation{}, nil, err
	}
	if !rec.Moved {
		s.mu.Unlock()
		return rec, resolved(), nil
	}

	touched := touchedIDs(rec)
	prior := make(map[string]domain.Task, len(touched))
	for _, id := range touched {
		if i := s.indexOf(id); i >= 0 {
			prior[id] = s.tasks[i].Clone()
		}
	}
	s.tasks = rec.Tasks
	gen := s.stamp(touched...)
	s.mu.Unlock()

	undo := func() {
		for id, task := range prior {
			if j := s.indexOf(id); j >= 0 {
				s.tasks[j] = task
			}
		}
	}
	call := func(callCtx context.Context) error {
		if rec.Reindexed != nil {
			if err := s.persistence.UpdateTaskPositions(callCtx, rec.Reindexed); err != nil {
				return err
			}
		}
		if rec.Placement != nil {
			return s.persistence.UpdateTaskPlacement(callCtx, *rec.Placement)
		}
		return nil
	}
	if rec.Reindexed != nil {
		return rec, s.confirmBulk(ctx, touched, gen, undo, call), nil
	}
	return rec, s.confirm(ctx, "move task", touched, gen, undo, call), nil
}

// PersistVisualOrder recomputes dense positions from the current visible
// order of every bucket and writes them in one bulk call. Callers switch the
// sort selection back to manual once the channel resolves.
func (s *Store) PersistVisualOrder(ctx context.Context, view board.ViewMode, sort board.SortMode) (<-chan error, error) {
	s.mu.Lock()
	proj := board.Project(cloneTasks(s.tasks), view, sort, board.Context{
		Groups:   append([]domain.Group(nil), s.groups...),
		Members:  append([]domain.Member(nil), s.members...),
		Now:      s.clock(),
		Collator: s.collator,
	})
	now := s.clock()

	var updates []board.PositionUpdate
	var touched []string
	prior := make(map[string]domain.Task)
	for _, bucket := range proj.Buckets {
		for _, task := range board.Reindex(bucket.Tasks) {
			j := s.indexOf(task.ID)
			if j < 0 {
				continue
			}
			if s.tasks[j].Position == task.Position {
				continue
			}
			prior[task.ID] = s.tasks[j].Clone()
			s.tasks[j].Relocate(task.Position, now)
			updates = append(updates, board.PositionUpdate{TaskID: task.ID, Position: task.Position})
			touched = append(touched, task.ID)
		}
	}
	if len(updates) == 0 {
		s.mu.Unlock()
		return resolved(), nil
	}
	gen := s.stamp(touched...)
	s.mu.Unlock()

	undo := func() {
		for id, task := range prior {
			if j := s.indexOf(id); j >= 0 {
				s.tasks[j] = task
			}
		}
	}
	return s.confirmBulk(ctx, touched, gen, undo, func(callCtx context.Context) error {
		return s.persistence.UpdateTaskPositions(callCtx, updates)
	}), nil
}

// CreateGroup adds a user-defined group optimistically.
func (s *Store) CreateGroup(ctx context.Context, name, color string) (domain.Group, <-chan error, error) {
	s.mu.Lock()
	group, err := domain.NewGroup(s.idGen(), s.workspaceID, name, color, len(s.groups)+1, s.clock())
	if err != nil {
		s.mu.Unlock()
		return domain.Group{}, nil, err
	}
	s.groups = append(s.groups, group)
	s.mu.Unlock()

	return group, s.confirm(ctx, "create group", nil, 0, func() {
		s.groups = removeGroup(s.groups, group.ID)
	}, func(callCtx context.Context) error {
		return s.persistence.CreateGroup(callCtx, group)
	}), nil
}

// UpdateGroup renames or recolors a group optimistically. The inbox is not a
// real group and cannot be updated.
func (s *Store) UpdateGroup(ctx context.Context, id, name, color string) (<-chan error, error) {
	if id == domain.InboxGroupID {
		return nil, domain.ErrInboxImmutable
	}
	s.mu.Lock()
	i := indexOfGroup(s.groups, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	prior := s.groups[i]
	now := s.clock()
	if name != "" {
		if err := s.groups[i].Rename(name, now); err != nil {
			s.groups[i] = prior
			s.mu.Unlock()
			return nil, err
		}
	}
	if color != "" {
		s.groups[i].Recolor(color, now)
	}
	updated := s.groups[i]
	s.mu.Unlock()

	return s.confirm(ctx, "update group", nil, 0, func() {
		if j := indexOfGroup(s.groups, id); j >= 0 {
			s.groups[j] = prior
		}
	}, func(callCtx context.Context) error {
		return s.persistence.UpdateGroup(callCtx, updated)
	}), nil
}

// DeleteGroup removes a group optimistically. Its tasks are not deleted; they
// fall back to the inbox, locally and in the backing store.
func (s *Store) DeleteGroup(ctx context.Context, id string) (<-chan error, error) {
	if id == domain.InboxGroupID {
		return nil, domain.ErrInboxImmutable
	}
	s.mu.Lock()
	i := indexOfGroup(s.groups, id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, id)
	}
	prior := s.groups[i]
	s.groups = append(s.groups[:i], s.groups[i+1:]...)

	now := s.clock()
	var rehomed []string
	for j := range s.tasks {
		if s.tasks[j].GroupID == id {
			s.tasks[j].SetGroup("", now)
			rehomed = append(rehomed, s.tasks[j].ID)
		}
	}
	gen := s.stamp(rehomed...)
	s.mu.Unlock()

	return s.confirm(ctx, "delete group", rehomed, gen, func() {
		s.groups = append(s.groups, prior)
		for _, taskID := range rehomed {
			if j := s.indexOf(taskID); j >= 0 {
				s.tasks[j].SetGroup(id, now)
			}
		}
	}, func(callCtx context.Context) error {
		return s.persistence.DeleteGroup(callCtx, id)
	}), nil
}

// confirm runs the persistence call off the calling goroutine and rolls the
// optimistic change back on failure. ids and gen guard the rollback against
// superseded mutations; undo runs under the store lock.
func (s *Store) confirm(ctx context.Context, op string, ids []string, gen uint64, undo func(), call func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if err := call(callCtx); err != nil {
			s.rollback(op, ids, gen, undo, err)
			done <- err
			return
		}
		done <- nil
	}()
	return done
}

// confirmBulk is the rebalance variant of confirm: a failed bulk write may
// have landed partially, so the store reloads from the backing truth instead
// of trusting its local snapshot. The snapshot rollback is the fallback when
// the reload itself fails.
func (s *Store) confirmBulk(ctx context.Context, ids []string, gen uint64, undo func(), call func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		err := call(callCtx)
		if err == nil {
			done <- nil
			return
		}
		reloadCtx, cancelReload := context.WithTimeout(context.Background(), s.timeout)
		defer cancelReload()
		if reloadErr := s.Load(reloadCtx); reloadErr != nil {
			s.logger.Error("reload after failed rebalance", "error", reloadErr)
			s.rollback("rebalance", ids, gen, undo, err)
		} else {
			s.emit(NoticeError, fmt.Sprintf("Could not save the new order: %v. Reloaded from storage.", err))
		}
		done <- err
	}()
	return done
}

// rollback restores the optimistic change and surfaces a notice. Ids whose
// generation moved on belong to a newer mutation and are left alone.
func (s *Store) rollback(op string, ids []string, gen uint64, undo func(), cause error) {
	s.mu.Lock()
	superseded := false
	for _, id := range ids {
		if s.generations[id] != gen {
			superseded = true
			break
		}
	}
	if !superseded {
		undo()
	}
	s.mu.Unlock()

	s.logger.Error(op+" failed", "error", cause, "rolled_back", !superseded)
	msg := fmt.Sprintf("Could not %s: %v. Change reverted.", op, cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		msg = fmt.Sprintf("The %s was not confirmed in time. Change reverted.", op)
	}
	if superseded {
		msg = fmt.Sprintf("Could not %s: %v.", op, cause)
	}
	s.emit(NoticeError, msg)
}

func (s *Store) emit(level NoticeLevel, message string) {
	s.notify(Notice{Level: level, Message: message})
}

// stamp assigns a fresh generation to each id. Callers hold the lock.
func (s *Store) stamp(ids ...string) uint64 {
	s.sequence++
	for _, id := range ids {
		s.generations[id] = s.sequence
	}
	return s.sequence
}

// indexOf locates a task in the canonical slice. Callers hold the lock.
func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeTask(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
}

// tailPosition returns the append position for a new task in its group.
func (s *Store) tailPosition(groupID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0.0
	for i := range s.tasks {
		if s.tasks[i].GroupID == groupID && s.tasks[i].Position > max {
			max = s.tasks[i].Position
		}
	}
	if max == 0 {
		return board.PositionSeed
	}
	return max + board.PositionStep
}

// IsTempID reports whether an id is a client-generated placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

func touchedIDs(rec board.Reconciliation) []string {
	seen := make(map[string]struct{})
	var ids []string
	if rec.Placement != nil {
		seen[rec.Placement.TaskID] = struct{}{}
		ids = append(ids, rec.Placement.TaskID)
	}
	for _, u := range rec.Reindexed {
		if _, ok := seen[u.TaskID]; !ok {
			seen[u.TaskID] = struct{}{}
			ids = append(ids, u.TaskID)
		}
	}
	return ids
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	for i, task := range tasks {
		out[i] = task.Clone()
	}
	return out
}

func indexOfGroup(groups []domain.Group, id string) int {
	for i := range groups {
		if groups[i].ID == id {
			return i
		}
	}
	return -1
}

func removeGroup(groups []domain.Group, id string) []domain.Group {
	if i := indexOfGroup(groups, id); i >= 0 {
		return append(groups[:i], groups[i+1:]...)
	}
	return groups
}

// resolved returns an already-confirmed completion handle for no-op paths.
func resolved() <-chan error {
	done := make(chan error, 1)
	done <- nil
	close(done)
	return done
}
