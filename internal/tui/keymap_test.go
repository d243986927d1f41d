package tui

import "testing"

// TestKeyMapDefaults verifies the board bindings a muscle-memory user relies on.
func TestKeyMapDefaults(t *testing.T) {
	k := newKeyMap()

	grab := k.grab.Keys()
	if len(grab) != 2 || grab[0] != "space" || grab[1] != " " {
		t.Fatalf("unexpected grab keys %#v", grab)
	}
	if got := k.cycleView.Keys(); len(got) != 1 || got[0] != "v" {
		t.Fatalf("unexpected cycle view keys %#v", got)
	}
	if got := k.cycleSort.Keys(); len(got) != 1 || got[0] != "s" {
		t.Fatalf("unexpected cycle sort keys %#v", got)
	}
	if got := k.tidy.Keys(); len(got) != 1 || got[0] != "o" {
		t.Fatalf("unexpected tidy keys %#v", got)
	}
	if got := k.search.Keys(); len(got) != 1 || got[0] != "/" {
		t.Fatalf("unexpected search keys %#v", got)
	}
}

// TestKeyMapHelpCoverage verifies every binding is reachable from full help.
func TestKeyMapHelpCoverage(t *testing.T) {
	k := newKeyMap()

	if got := len(k.ShortHelp()); got == 0 {
		t.Fatal("short help is empty")
	}
	total := 0
	for _, row := range k.FullHelp() {
		total += len(row)
	}
	if total != 20 {
		t.Fatalf("full help lists %d bindings, want 20", total)
	}
}
