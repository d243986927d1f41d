package tui

import "testing"

func TestMarkdownRendererWrapFloorAndReuse(t *testing.T) {
	var r markdownRenderer

	if got := r.render("   ", 80); got != "" {
		t.Fatalf("render(blank) = %q, want empty", got)
	}
	if out := r.render("# Title\n\nbody", 10); out == "" {
		t.Fatal("render() returned nothing")
	}
	if r.wrap != descriptionWrapFloor {
		t.Fatalf("wrap = %d, want floor %d", r.wrap, descriptionWrapFloor)
	}

	first := r.tr
	r.render("more text", descriptionWrapFloor)
	if r.tr != first {
		t.Fatal("expected the renderer to be reused at an unchanged width")
	}
}
