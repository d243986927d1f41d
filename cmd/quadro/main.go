package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/collate"

	"github.com/quadrolabs/quadro/internal/adapters/server/mcpapi"
	"github.com/quadrolabs/quadro/internal/adapters/storage/sqlite"
	"github.com/quadrolabs/quadro/internal/board"
	"github.com/quadrolabs/quadro/internal/config"
	"github.com/quadrolabs/quadro/internal/platform"
	"github.com/quadrolabs/quadro/internal/store"
	"github.com/quadrolabs/quadro/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
	Send(tea.Msg)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// main handles main.
func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// rootFlags carries the persistent CLI overrides.
type rootFlags struct {
	configPath string
	dbPath     string
	devMode    bool
}

// newRootCmd builds the quadro command tree.
func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "quadro",
		Short:         "shared board with client-side ordering and optimistic state",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd.Context(), flags, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().BoolVar(&flags.devMode, "dev", version == "dev", "use dev mode paths (quadro-dev)")
	root.AddCommand(newServeCmd(flags), newPathsCmd(flags), newExportCmd(flags))
	return root
}

// newServeCmd builds the MCP HTTP server command.
func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the board over stateless MCP streamable HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, addr, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// newPathsCmd builds the resolved-paths inspection command.
func newPathsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "print resolved config and data paths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: "quadro",
				DevMode: flags.devMode,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log: %s\n", paths.LogPath)
			return nil
		},
	}
}

// newExportCmd builds the workspace snapshot export command.
func newExportCmd(flags *rootFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "export the workspace as a JSON snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setupRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close()
			return runExport(cmd.Context(), rt.store, rt.cfg.Workspace.ID, outPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// runtime bundles the wired application for one command invocation.
type runtime struct {
	cfg      config.Config
	paths    platform.Paths
	logger   *runtimeLogger
	repo     *sqlite.Repository
	store    *store.Store
	notifier *noticeForwarder
}

func (rt *runtime) close() {
	if err := rt.repo.Close(); err != nil {
		rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
	}
	if err := rt.logger.Close(); err != nil && rt.logger.consoleEnabled {
		_, _ = fmt.Fprintf(os.Stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// setupRuntime resolves paths and config, opens storage, and wires the store.
func setupRuntime(flags *rootFlags, stderr io.Writer) (*runtime, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: "quadro",
		DevMode: flags.devMode,
	})
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(flags.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("QUADRO_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(flags.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("QUADRO_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, flags.devMode, cfg.Logging, paths.LogPath)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}

	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if !dbOverridden {
		if err := platform.EnsureDataDir(paths); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	notifier := &noticeForwarder{}
	st := store.New(store.Config{
		WorkspaceID: cfg.Workspace.ID,
		Persistence: repo,
		IDGen:       uuid.NewString,
		Logger:      logger.Sink(),
		Notify:      notifier.Notify,
		Collator:    collate.New(cfg.LocaleTag(), collate.IgnoreCase),
	})

	return &runtime{
		cfg:      cfg,
		paths:    paths,
		logger:   logger,
		repo:     repo,
		store:    st,
		notifier: notifier,
	}, nil
}

// runBoard wires the store into the TUI program loop.
func runBoard(ctx context.Context, flags *rootFlags, stderr io.Writer) error {
	rt, err := setupRuntime(flags, stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
	rt.logger.SetConsoleEnabled(false)

	view, err := board.ParseViewMode(rt.cfg.Board.DefaultView)
	if err != nil {
		return fmt.Errorf("resolve default view: %w", err)
	}
	sort, err := board.ParseSortMode(rt.cfg.Board.DefaultSort)
	if err != nil {
		return fmt.Errorf("resolve default sort: %w", err)
	}

	m := tui.NewModel(rt.store, tui.WithView(view), tui.WithSort(sort))
	p := programFactory(m)
	rt.notifier.Set(func(n store.Notice) {
		p.Send(tui.NoticeMsg{Level: string(n.Level), Message: n.Message})
	})

	rt.logger.Info("starting tui program loop")
	if _, err := p.Run(); err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "tui")
	return nil
}

// runServe exposes the board over stateless MCP streamable HTTP.
func runServe(ctx context.Context, flags *rootFlags, addrOverride string, stderr io.Writer) error {
	rt, err := setupRuntime(flags, stderr)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.store.Load(ctx); err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}

	handler, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    "quadro",
		ServerVersion: version,
	}, rt.store)
	if err != nil {
		return fmt.Errorf("build mcp handler: %w", err)
	}

	addr := strings.TrimSpace(addrOverride)
	if addr == "" {
		addr = rt.cfg.Server.Addr
	}
	srv := &http.Server{Addr: addr, Handler: handler}

	rt.logger.Info("mcp server listening", "addr", addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown mcp server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve mcp: %w", err)
	}
}

// workspaceSnapshot is the export file layout.
type workspaceSnapshot struct {
	WorkspaceID string         `json:"workspace_id"`
	ExportedAt  time.Time      `json:"exported_at"`
	Groups      []domainGroup  `json:"groups"`
	Tasks       []domainTask   `json:"tasks"`
	Members     []domainMember `json:"members"`
}

type domainGroup struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Position int    `json:"position"`
}

type domainTask struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Position    float64    `json:"position"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	AssigneeIDs []string   `json:"assignee_ids,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
}

type domainMember struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// runExport writes the current workspace as indented JSON.
func runExport(ctx context.Context, st *store.Store, workspaceID, outPath string, stdout io.Writer) error {
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("load workspace: %w", err)
	}

	snap := workspaceSnapshot{
		WorkspaceID: workspaceID,
		ExportedAt:  time.Now().UTC(),
	}
	for _, group := range st.Groups() {
		snap.Groups = append(snap.Groups, domainGroup{
			ID:       group.ID,
			Name:     group.Name,
			Color:    group.Color,
			Position: group.Position,
		})
	}
	for _, task := range st.Tasks() {
		snap.Tasks = append(snap.Tasks, domainTask{
			ID:          task.ID,
			GroupID:     task.GroupID,
			Title:       task.Title,
			Description: task.Description,
			Status:      string(task.Status),
			Priority:    string(task.Priority),
			Position:    task.Position,
			DueAt:       task.DueAt,
			AssigneeIDs: task.AssigneeIDs,
			Labels:      task.Labels,
		})
	}
	for _, member := range st.Members() {
		snap.Members = append(snap.Members, domainMember{
			ID:          member.ID,
			DisplayName: member.DisplayName,
			Email:       member.Email,
		})
	}

	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" || strings.TrimSpace(outPath) == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// noticeForwarder relays store notices to the running program. Notices fire
// from persistence goroutines, so the target swap is guarded.
type noticeForwarder struct {
	mu sync.Mutex
	fn func(store.Notice)
}

// Set installs the relay target.
func (f *noticeForwarder) Set(fn func(store.Notice)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
}

// Notify forwards one notice to the installed target, if any.
func (f *noticeForwarder) Notify(n store.Notice) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	fileSink       *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, devMode bool, cfg config.LoggingConfig, defaultLogPath string) (*runtimeLogger, error) {
	levelName := strings.TrimSpace(cfg.Level)
	if levelName == "" {
		levelName = "info"
	}
	level, err := charmLog.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          "quadro",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})

	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}

	devLogPath := strings.TrimSpace(cfg.DevFile)
	if devLogPath == "" && devMode {
		devLogPath = defaultLogPath
	}
	if devLogPath == "" {
		return logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	// Keep file output parseable and unstyled while preserving styled console logs.
	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          "quadro",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.fileSink = fileLogger
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// Sink returns the logger handed to library components: the file sink when
// one exists, otherwise the console sink.
func (l *runtimeLogger) Sink() *charmLog.Logger {
	if l.fileSink != nil {
		return l.fileSink
	}
	return l.consoleSink
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// shouldLogToSink reports whether one sink should receive runtime output.
func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	if sink == l.consoleSink && !l.consoleEnabled {
		return false
	}
	return true
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	for _, sink := range l.sinks {
		if !l.shouldLogToSink(sink) {
			continue
		}
		sink.Info(msg, keyvals...)
	}
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	for _, sink := range l.sinks {
		if !l.shouldLogToSink(sink) {
			continue
		}
		sink.Warn(msg, keyvals...)
	}
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	for _, sink := range l.sinks {
		if !l.shouldLogToSink(sink) {
			continue
		}
		sink.Error(msg, keyvals...)
	}
}
