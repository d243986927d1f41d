package board

import (
	"strings"

	"github.com/quadrolabs/quadro/internal/domain"
)

// FilterTasks returns the tasks whose title or any label contains the query,
// case-insensitively. An empty query returns the input unchanged. The result
// preserves the input order.
func FilterTasks(tasks []domain.Task, query string) []domain.Task {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return tasks
	}
	matched := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if taskMatches(task, query) {
			matched = append(matched, task)
		}
	}
	return matched
}

func taskMatches(task domain.Task, query string) bool {
	if strings.Contains(strings.ToLower(task.Title), query) {
		return true
	}
	for _, label := range task.Labels {
		if strings.Contains(strings.ToLower(label), query) {
			return true
		}
	}
	return false
}
