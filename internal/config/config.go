package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"github.com/quadrolabs/quadro/internal/board"
)

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Workspace WorkspaceConfig `toml:"workspace"`
	Board     BoardConfig     `toml:"board"`
	Logging   LoggingConfig   `toml:"logging"`
	Server    ServerConfig    `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type WorkspaceConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

type BoardConfig struct {
	DefaultView string `toml:"default_view"` // group | status | priority | due_date | assignee
	DefaultSort string `toml:"default_sort"` // manual | status | priority | assignee | title
	Locale      string `toml:"locale"`       // BCP 47 tag for assignee bucket ordering
}

type LoggingConfig struct {
	Level   string `toml:"level"`
	DevFile string `toml:"dev_file"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Workspace: WorkspaceConfig{
			ID:   "default",
			Name: "Quadro",
		},
		Board: BoardConfig{
			DefaultView: string(board.ViewByGroup),
			DefaultSort: string(board.SortManual),
			Locale:      "en",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: "localhost:8765",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if strings.TrimSpace(c.Workspace.ID) == "" {
		return errors.New("workspace id is required")
	}

	if _, err := board.ParseViewMode(c.Board.DefaultView); err != nil {
		return fmt.Errorf("invalid board.default_view: %q", c.Board.DefaultView)
	}
	if _, err := board.ParseSortMode(c.Board.DefaultSort); err != nil {
		return fmt.Errorf("invalid board.default_sort: %q", c.Board.DefaultSort)
	}
	if locale := strings.TrimSpace(c.Board.Locale); locale != "" {
		if _, err := language.Parse(locale); err != nil {
			return fmt.Errorf("invalid board.locale: %q", c.Board.Locale)
		}
	}

	switch strings.TrimSpace(strings.ToLower(c.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	return nil
}

// LocaleTag parses the configured locale, falling back to English.
func (c Config) LocaleTag() language.Tag {
	tag, err := language.Parse(strings.TrimSpace(c.Board.Locale))
	if err != nil {
		return language.English
	}
	return tag
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
