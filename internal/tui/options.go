package tui

import "github.com/quadrolabs/quadro/internal/board"

type CardFieldConfig struct {
	ShowPriority  bool
	ShowDueDate   bool
	ShowLabels    bool
	ShowAssignees bool
}

type Option func(*Model)

func DefaultCardFieldConfig() CardFieldConfig {
	return CardFieldConfig{
		ShowPriority:  true,
		ShowDueDate:   true,
		ShowLabels:    true,
		ShowAssignees: false,
	}
}

func WithCardFieldConfig(cfg CardFieldConfig) Option {
	return func(m *Model) {
		m.cardFields = cfg
	}
}

func WithView(view board.ViewMode) Option {
	return func(m *Model) {
		for _, known := range board.ViewModes {
			if known == view {
				m.view = view
				return
			}
		}
	}
}

func WithSort(sort board.SortMode) Option {
	return func(m *Model) {
		for _, known := range board.SortModes {
			if known == sort {
				m.sort = sort
				return
			}
		}
	}
}
