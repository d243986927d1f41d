package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quadrolabs/quadro/internal/adapters/storage/sqlite"
	"github.com/quadrolabs/quadro/internal/config"
	"github.com/quadrolabs/quadro/internal/domain"
	"github.com/quadrolabs/quadro/internal/store"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	if root.Use != "quadro" {
		t.Fatalf("Use = %q, want quadro", root.Use)
	}
	for _, name := range []string{"serve", "paths", "export"} {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
	for _, flagName := range []string{"config", "db", "dev"} {
		if root.PersistentFlags().Lookup(flagName) == nil {
			t.Fatalf("missing persistent flag %q", flagName)
		}
	}
}

func TestPathsCommandPrintsResolvedPaths(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"paths", "--dev"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"config:", "db:", "data_dir:", "dev_mode: true"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("paths output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunExportWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer repo.Close()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	group, err := domain.NewGroup("g1", "ws1", "Backlog", "#7c3aed", 1, now)
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}
	if err := repo.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	task, err := domain.NewTask(domain.TaskInput{
		ID:          "t1",
		WorkspaceID: "ws1",
		GroupID:     "g1",
		Title:       "Ship the export command",
		Position:    1000,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if _, err := repo.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	st := store.New(store.Config{WorkspaceID: "ws1", Persistence: repo})

	var out bytes.Buffer
	if err := runExport(ctx, st, "ws1", "-", &out); err != nil {
		t.Fatalf("runExport() error = %v", err)
	}

	var snap workspaceSnapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.WorkspaceID != "ws1" {
		t.Fatalf("WorkspaceID = %q, want ws1", snap.WorkspaceID)
	}
	if len(snap.Groups) != 1 || snap.Groups[0].Name != "Backlog" {
		t.Fatalf("unexpected groups %+v", snap.Groups)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Title != "Ship the export command" {
		t.Fatalf("unexpected tasks %+v", snap.Tasks)
	}
}

func TestRunExportToFile(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer repo.Close()
	st := store.New(store.Config{WorkspaceID: "ws1", Persistence: repo})

	outPath := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	if err := runExport(ctx, st, "ws1", outPath, nil); err != nil {
		t.Fatalf("runExport() error = %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read export file: %v", err)
	}
	if !strings.Contains(string(content), "\"workspace_id\": \"ws1\"") {
		t.Fatalf("snapshot missing workspace id:\n%s", content)
	}
}

func TestNewRuntimeLoggerDevFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "log", "quadro.log")
	logger, err := newRuntimeLogger(&bytes.Buffer{}, true, config.LoggingConfig{Level: "debug"}, logPath)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	defer logger.Close()

	if logger.DevLogPath() != logPath {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), logPath)
	}
	logger.Info("hello", "key", "value")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read dev log: %v", err)
	}
	if !strings.Contains(string(content), "hello") {
		t.Fatalf("dev log missing entry:\n%s", content)
	}
}

func TestRuntimeLoggerConsoleMute(t *testing.T) {
	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, false, config.LoggingConfig{Level: "info"}, "")
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	defer logger.Close()

	logger.SetConsoleEnabled(false)
	logger.Info("muted line")
	if strings.Contains(console.String(), "muted line") {
		t.Fatalf("expected muted console, got:\n%s", console.String())
	}
	logger.SetConsoleEnabled(true)
	logger.Info("visible line")
	if !strings.Contains(console.String(), "visible line") {
		t.Fatalf("expected console output, got:\n%s", console.String())
	}
}

func TestNoticeForwarder(t *testing.T) {
	f := &noticeForwarder{}
	f.Notify(store.Notice{Level: store.NoticeInfo, Message: "dropped before wiring"})

	var got []store.Notice
	f.Set(func(n store.Notice) { got = append(got, n) })
	f.Notify(store.Notice{Level: store.NoticeError, Message: "move failed"})

	if len(got) != 1 || got[0].Message != "move failed" {
		t.Fatalf("unexpected notices %+v", got)
	}
}
