package discmap

import "strings"

// SectorState is the sweep outcome for one sector.
type SectorState uint8

const (
	Pending SectorState = iota
	OK
	BadCRC
	Missing
)

// Glyph is the map character for a state.
func (st SectorState) Glyph() rune {
	switch st {
	case OK:
		return '█'
	case BadCRC:
		return '✗'
	case Missing:
		return '■'
	default:
		return '░'
	}
}

// Legend is the standard one-line glyph key.
func Legend() string {
	return "░ pending  █ ok  ✗ bad crc  ■ missing"
}

// Grid accumulates per-sector sweep results, one row per track. Rows may
// have different widths: container formats carry per-track sector counts.
type Grid struct {
	cells    [][]SectorState
	row, col int // sweep cursor, drives the scroll window
}

// NewGrid builds a grid with one row per entry of counts, each entry giving
// that row's sector count.
func NewGrid(counts []int) *Grid {
	cells := make([][]SectorState, len(counts))
	for i, n := range counts {
		cells[i] = make([]SectorState, n)
	}
	return &Grid{cells: cells}
}

// Mark records a sector outcome and moves the sweep cursor there.
// Out-of-range coordinates are ignored.
func (g *Grid) Mark(row, col int, st SectorState) {
	if row < 0 || row >= len(g.cells) || col < 0 || col >= len(g.cells[row]) {
		return
	}
	g.cells[row][col] = st
	g.row, g.col = row, col
}

// Count totals the sectors currently in a state.
func (g *Grid) Count(st SectorState) int {
	n := 0
	for _, row := range g.cells {
		for _, c := range row {
			if c == st {
				n++
			}
		}
	}
	return n
}

// Total is the number of sectors in the grid.
func (g *Grid) Total() int {
	n := 0
	for _, row := range g.cells {
		n += len(row)
	}
	return n
}

// Rows renders up to avail rows as glyph strings, scrolled so the sweep
// cursor stays visible. It returns the rendered rows and the index of the
// first one.
func (g *Grid) Rows(avail int) (lines []string, first int) {
	if avail < 1 {
		avail = 1
	}
	if g.row >= avail {
		first = g.row - avail + 1
	}
	for i := first; i < len(g.cells) && len(lines) < avail; i++ {
		var b strings.Builder
		for _, st := range g.cells[i] {
			b.WriteRune(st.Glyph())
		}
		lines = append(lines, b.String())
	}
	return lines, first
}
