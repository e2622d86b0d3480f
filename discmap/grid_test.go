package discmap

import "testing"

func TestGridMarkAndCount(t *testing.T) {
	g := NewGrid([]int{10, 10, 10})
	if g.Total() != 30 {
		t.Fatalf("total = %d, want 30", g.Total())
	}
	g.Mark(0, 3, OK)
	g.Mark(1, 5, BadCRC)
	g.Mark(2, 9, Missing)
	g.Mark(5, 0, OK)  // out of range, ignored
	g.Mark(0, 10, OK) // out of range, ignored
	if g.Count(OK) != 1 || g.Count(BadCRC) != 1 || g.Count(Missing) != 1 {
		t.Fatalf("counts = %d/%d/%d", g.Count(OK), g.Count(BadCRC), g.Count(Missing))
	}
	if g.Count(Pending) != 27 {
		t.Fatalf("pending = %d, want 27", g.Count(Pending))
	}
}

func TestGridVariableRowWidths(t *testing.T) {
	g := NewGrid([]int{2, 5})
	g.Mark(0, 1, OK)
	g.Mark(1, 4, OK)
	lines, _ := g.Rows(10)
	if len(lines) != 2 {
		t.Fatalf("rows = %d, want 2", len(lines))
	}
	if len([]rune(lines[0])) != 2 || len([]rune(lines[1])) != 5 {
		t.Fatalf("row widths = %d/%d", len([]rune(lines[0])), len([]rune(lines[1])))
	}
}

func TestGridScrollFollowsCursor(t *testing.T) {
	g := NewGrid([]int{1, 1, 1, 1, 1, 1, 1, 1})
	g.Mark(6, 0, OK)
	lines, first := g.Rows(3)
	if first != 4 {
		t.Fatalf("first visible row = %d, want 4", first)
	}
	if len(lines) != 3 {
		t.Fatalf("rows = %d, want 3", len(lines))
	}
	// The cursor row is the last visible one and renders the OK glyph.
	if []rune(lines[2])[0] != OK.Glyph() {
		t.Fatalf("cursor row = %q", lines[2])
	}
}

func TestGlyphsDistinct(t *testing.T) {
	seen := map[rune]SectorState{}
	for _, st := range []SectorState{Pending, OK, BadCRC, Missing} {
		r := st.Glyph()
		if prev, dup := seen[r]; dup {
			t.Fatalf("states %d and %d share glyph %q", prev, st, r)
		}
		seen[r] = st
	}
}
