package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// descriptionWrapFloor keeps glamour from wrapping task descriptions into
// unreadable slivers in narrow overlay panes.
const descriptionWrapFloor = 24

// markdownRenderer renders task descriptions for the info overlay. The
// glamour renderer is built lazily and kept until the wrap width changes.
type markdownRenderer struct {
	wrap int
	tr   *glamour.TermRenderer
}

func (r *markdownRenderer) render(body string, width int) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	if width < descriptionWrapFloor {
		width = descriptionWrapFloor
	}
	tr, err := r.rendererFor(width)
	if err != nil {
		return body
	}
	out, err := tr.Render(body)
	if err != nil {
		return body
	}
	return strings.TrimRight(out, "\n")
}

func (r *markdownRenderer) rendererFor(width int) (*glamour.TermRenderer, error) {
	if r.tr != nil && r.wrap == width {
		return r.tr, nil
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	r.wrap = width
	r.tr = tr
	return tr, nil
}
