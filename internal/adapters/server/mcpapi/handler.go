// Package mcpapi provides a stateless MCP streamable-HTTP adapter over the
// board store, so agent clients can read and mutate the same collection the
// TUI renders.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/quadrolabs/quadro/internal/board"
	"github.com/quadrolabs/quadro/internal/domain"
	"github.com/quadrolabs/quadro/internal/store"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// BoardService is the surface the MCP tools need from the optimistic store.
// Mutations resolve their completion handle before the tool replies, so a
// tool result always reflects the persisted outcome.
type BoardService interface {
	Projection(view board.ViewMode, sort board.SortMode) board.Projection
	Tasks() []domain.Task
	Groups() []domain.Group
	Create(ctx context.Context, input domain.TaskInput) (domain.Task, <-chan error, error)
	Update(ctx context.Context, task domain.Task) (<-chan error, error)
	Delete(ctx context.Context, id string) (<-chan error, error)
	Move(ctx context.Context, view board.ViewMode, sort board.SortMode, activeID, overID string) (board.Reconciliation, <-chan error, error)
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds the MCP adapter with the board tools registered.
func NewHandler(cfg Config, svc BoardService) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerCaptureBoardTool(mcpSrv, svc)
	registerListGroupsTool(mcpSrv, svc)
	registerCreateTaskTool(mcpSrv, svc)
	registerUpdateTaskTool(mcpSrv, svc)
	registerDeleteTaskTool(mcpSrv, svc)
	registerMoveTaskTool(mcpSrv, svc)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "quadro"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// taskPayload is the wire shape of one task in tool results.
type taskPayload struct {
	ID          string   `json:"id"`
	GroupID     string   `json:"group_id,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Assignees   []string `json:"assignees,omitempty"`
	DueAt       string   `json:"due_at,omitempty"`
	Position    float64  `json:"position"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

type bucketPayload struct {
	Key   string        `json:"key"`
	Title string        `json:"title"`
	Color string        `json:"color,omitempty"`
	Tasks []taskPayload `json:"tasks"`
}

type groupPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Position int    `json:"position"`
}

func taskToPayload(t domain.Task) taskPayload {
	p := taskPayload{
		ID:          t.ID,
		GroupID:     t.GroupID,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Assignees:   t.AssigneeIDs,
		Position:    t.Position,
		Title:       t.Title,
		Description: t.Description,
		Labels:      t.Labels,
	}
	if t.DueAt != nil {
		p.DueAt = t.DueAt.UTC().Format(time.RFC3339)
	}
	return p
}

// parseViewSort reads the optional view/sort arguments with board defaults.
func parseViewSort(req mcp.CallToolRequest) (board.ViewMode, board.SortMode, error) {
	view := board.ViewByGroup
	if raw := req.GetString("view", ""); raw != "" {
		parsed, err := board.ParseViewMode(raw)
		if err != nil {
			return "", "", err
		}
		view = parsed
	}
	sort := board.SortManual
	if raw := req.GetString("sort", ""); raw != "" {
		parsed, err := board.ParseSortMode(raw)
		if err != nil {
			return "", "", err
		}
		sort = parsed
	}
	return view, sort, nil
}

// awaitPersistence blocks until the optimistic mutation's persistence call
// resolves, so the tool result reports the durable outcome.
func awaitPersistence(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func viewModeStrings() []string {
	out := make([]string, len(board.ViewModes))
	for i, v := range board.ViewModes {
		out[i] = string(v)
	}
	return out
}

func sortModeStrings() []string {
	out := make([]string, len(board.SortModes))
	for i, v := range board.SortModes {
		out[i] = string(v)
	}
	return out
}

// registerCaptureBoardTool registers the `quadro.capture_board` tool.
func registerCaptureBoardTool(srv *mcpserver.MCPServer, svc BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.capture_board",
			mcp.WithDescription("Return the current board as ordered buckets for one view and sort selection."),
			mcp.WithString("view", mcp.Description("Grouping mode"), mcp.Enum(viewModeStrings()...)),
			mcp.WithString("sort", mcp.Description("In-bucket sort selection"), mcp.Enum(sortModeStrings()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			view, sort, err := parseViewSort(req)
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			proj := svc.Projection(view, sort)
			buckets := make([]bucketPayload, 0, len(proj.Buckets))
			for _, bucket := range proj.Buckets {
				bp := bucketPayload{
					Key:   bucket.Key.String(),
					Title: bucket.Title,
					Color: bucket.Color,
					Tasks: make([]taskPayload, 0, len(bucket.Tasks)),
				}
				for _, task := range bucket.Tasks {
					bp.Tasks = append(bp.Tasks, taskToPayload(task))
				}
				buckets = append(buckets, bp)
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"view":    string(view),
				"sort":    string(sort),
				"buckets": buckets,
			})
			if err != nil {
				return nil, fmt.Errorf("encode capture_board result: %w", err)
			}
			return result, nil
		},
	)
}

// registerListGroupsTool registers the `quadro.list_groups` tool.
func registerListGroupsTool(srv *mcpserver.MCPServer, svc BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.list_groups",
			mcp.WithDescription("List the user-defined groups. The inbox is implicit and always present."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			groups := svc.Groups()
			payload := make([]groupPayload, 0, len(groups))
			for _, g := range groups {
				payload = append(payload, groupPayload{ID: g.ID, Name: g.Name, Color: g.Color, Position: g.Position})
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"groups": payload})
			if err != nil {
				return nil, fmt.Errorf("encode list_groups result: %w", err)
			}
			return result, nil
		},
	)
}

// registerCreateTaskTool registers the `quadro.create_task` tool.
func registerCreateTaskTool(srv *mcpserver.MCPServer, svc BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.create_task",
			mcp.WithDescription("Create a task. It is placed at the tail of its group bucket."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("description", mcp.Description("Task description")),
			mcp.WithString("group_id", mcp.Description("Group id; empty means the inbox")),
			mcp.WithString("status", mcp.Description("Task status"), mcp.Enum("todo", "in_progress", "done")),
			mcp.WithString("priority", mcp.Description("Task priority"), mcp.Enum("urgent", "high", "medium", "low")),
			mcp.WithString("due_at", mcp.Description("Due date, RFC 3339")),
			mcp.WithString("labels", mcp.Description("Comma-separated labels")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			input := domain.TaskInput{
				Title:       title,
				Description: req.GetString("description", ""),
				GroupID:     req.GetString("group_id", ""),
				Labels:      splitCSV(req.GetString("labels", "")),
			}
			if raw := req.GetString("status", ""); raw != "" {
				status, err := domain.ParseStatus(raw)
				if err != nil {
					return toolResultFromError(err), nil
				}
				input.Status = status
			}
			if raw := req.GetString("priority", ""); raw != "" {
				priority, err := domain.ParsePriority(raw)
				if err != nil {
					return toolResultFromError(err), nil
				}
				input.Priority = priority
			}
			if raw := req.GetString("due_at", ""); raw != "" {
				due, err := time.Parse(time.RFC3339, raw)
				if err != nil {
					return mcp.NewToolResultError("invalid_request: bad due_at: " + err.Error()), nil
				}
				input.DueAt = &due
			}

			task, done, err := svc.Create(ctx, input)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if err := awaitPersistence(ctx, done); err != nil {
				return toolResultFromError(err), nil
			}
			created := findTask(svc.Tasks(), task.Title, task.Position)
			result, err := mcp.NewToolResultJSON(map[string]any{"task": created})
			if err != nil {
				return nil, fmt.Errorf("encode create_task result: %w", err)
			}
			return result, nil
		},
	)
}

// registerUpdateTaskTool registers the `quadro.update_task` tool.
func registerUpdateTaskTool(srv *mcpserver.MCPServer, svc BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.update_task",
			mcp.WithDescription("Update a task's fields. Omitted arguments are left unchanged."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("status", mcp.Description("New status"), mcp.Enum("todo", "in_progress", "done")),
			mcp.WithString("priority", mcp.Description("New priority"), mcp.Enum("urgent", "high", "medium", "low")),
			mcp.WithString("group_id", mcp.Description("New group id; \"inbox\" clears the group")),
			mcp.WithString("due_at", mcp.Description("New due date, RFC 3339; \"none\" clears it")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			task, ok := taskByID(svc.Tasks(), id)
			if !ok {
				return mcp.NewToolResultError("not_found: task " + id), nil
			}

			now := time.Now()
			if raw := req.GetString("title", ""); raw != "" {
				task.Title = raw
			}
			if raw := req.GetString("description", ""); raw != "" {
				task.Description = raw
			}
			if raw := req.GetString("status", ""); raw != "" {
				status, err := domain.ParseStatus(raw)
				if err != nil {
					return toolResultFromError(err), nil
				}
				if err := task.SetStatus(status, now); err != nil {
					return toolResultFromError(err), nil
				}
			}
			if raw := req.GetString("priority", ""); raw != "" {
				priority, err := domain.ParsePriority(raw)
				if err != nil {
					return toolResultFromError(err), nil
				}
				if err := task.SetPriority(priority, now); err != nil {
					return toolResultFromError(err), nil
				}
			}
			if raw := req.GetString("group_id", ""); raw != "" {
				if raw == domain.InboxGroupID {
					raw = ""
				}
				task.SetGroup(raw, now)
			}
			if raw := req.GetString("due_at", ""); raw != "" {
				if raw == "none" {
					task.DueAt = nil
				} else {
					due, err := time.Parse(time.RFC3339, raw)
					if err != nil {
						return mcp.NewToolResultError("invalid_request: bad due_at: " + err.Error()), nil
					}
					task.DueAt = &due
				}
			}

			done, err := svc.Update(ctx, task)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if err := awaitPersistence(ctx, done); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"task": taskToPayload(task)})
			if err != nil {
				return nil, fmt.Errorf("encode update_task result: %w", err)
			}
			return result, nil
		},
	)
}

// registerDeleteTaskTool registers the `quadro.delete_task` tool.
func registerDeleteTaskTool(srv *mcpserver.MCPServer, svc BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.delete_task",
			mcp.WithDescription("Delete a task by id."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			done, err := svc.Delete(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if err := awaitPersistence(ctx, done); err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{"deleted": id})
			if err != nil {
				return nil, fmt.Errorf("encode delete_task result: %w", err)
			}
			return result, nil
		},
	)
}

// registerMoveTaskTool registers the `quadro.move_task` tool.
func registerMoveTaskTool(srv *mcpserver.MCPServer, svc BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"quadro.move_task",
			mcp.WithDescription("Move a task within the board: drop it on another task or on a bucket key such as \"status:done\"."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task being moved")),
			mcp.WithString("over", mcp.Required(), mcp.Description("Drop target: a task id or an encoded bucket key")),
			mcp.WithString("view", mcp.Description("Grouping mode the move happens under"), mcp.Enum("group", "status", "priority")),
			mcp.WithString("sort", mcp.Description("In-bucket sort selection"), mcp.Enum(sortModeStrings()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			taskID, err := req.RequireString("task_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			overID, err := req.RequireString("over")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			view, sort, err := parseViewSort(req)
			if err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}

			rec, done, err := svc.Move(ctx, view, sort, taskID, overID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			if err := awaitPersistence(ctx, done); err != nil {
				return toolResultFromError(err), nil
			}
			payload := map[string]any{"moved": rec.Moved}
			if rec.Placement != nil {
				payload["position"] = rec.Placement.Position
			}
			if rec.Reindexed != nil {
				payload["rebalanced"] = len(rec.Reindexed)
			}
			result, err := mcp.NewToolResultJSON(payload)
			if err != nil {
				return nil, fmt.Errorf("encode move_task result: %w", err)
			}
			return result, nil
		},
	)
}

// toolResultFromError maps core errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, board.ErrViewReadOnly):
		return mcp.NewToolResultError("view_read_only: " + err.Error())
	case errors.Is(err, board.ErrUnresolvedDrop):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, store.ErrTaskNotFound), errors.Is(err, store.ErrGroupNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidPosition),
		errors.Is(err, domain.ErrInboxImmutable):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

func taskByID(tasks []domain.Task, id string) (domain.Task, bool) {
	for _, task := range tasks {
		if task.ID == id {
			return task, true
		}
	}
	return domain.Task{}, false
}

// findTask locates the created task after its id was swapped for the durable
// one, matching on the fields the placeholder kept.
func findTask(tasks []domain.Task, title string, position float64) *taskPayload {
	for _, task := range tasks {
		if task.Title == title && task.Position == position {
			p := taskToPayload(task)
			return &p
		}
	}
	return nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
