package lattice

import (
	"fmt"
	"iter"
	"strings"

	"crosswarped.com/lattice/pkg/primitives"
)

// Stats describes how a lattice was found.
type Stats struct {
	Seed       primitives.Value
	Steps      int
	Backtracks int
}

// Lattice is a completed assignment of Values to positions within a radius of the origin.
type Lattice struct {
	cells  *primitives.Store[primitives.Value]
	radius int
	stats  Stats
}

// FromPlacements rebuilds a lattice, e.g. one loaded from storage.
func FromPlacements(radius int, placements []primitives.Placement) *Lattice {
	cells := primitives.NewStore[primitives.Value]()
	for _, p := range placements {
		cells.Set(p.Position, p.Value)
	}
	return &Lattice{cells: cells, radius: radius}
}

func (l *Lattice) Get(pos primitives.Position) (primitives.Value, bool) {
	return l.cells.Get(pos)
}

func (l *Lattice) Len() int {
	return l.cells.Len()
}

func (l *Lattice) Radius() int {
	return l.radius
}

func (l *Lattice) Stats() Stats {
	return l.stats
}

// Entries yields every (Position, Value) pair in unspecified order.
func (l *Lattice) Entries() iter.Seq2[primitives.Position, primitives.Value] {
	return l.cells.Entries()
}

// Placements returns every entry, sorted by position.
func (l *Lattice) Placements() []primitives.Placement {
	positions := l.cells.SortedPositions()
	out := make([]primitives.Placement, len(positions))
	for i, pos := range positions {
		v, _ := l.cells.Get(pos)
		out[i] = primitives.Placement{Position: pos, Value: v}
	}
	return out
}

// Validate checks every pair of adjacent cells against rules.
func (l *Lattice) Validate(rules *primitives.RuleTable) error {
	for _, pos := range l.cells.SortedPositions() {
		v, _ := l.cells.Get(pos)
		for _, o := range rules.Offsets(v) {
			n, ok := l.cells.Get(pos.Add(o))
			if !ok {
				continue
			}
			if !rules.Allows(v, o, n) {
				return fmt.Errorf("%w: %v at %v next to %v at offset %v", ErrInvalidLattice, v, pos, n, o)
			}
		}
	}
	return nil
}

// Layer renders the z slice as text, one row per Y from -radius to radius.
// Positions without a Value are rendered as a space.
func (l *Lattice) Layer(z int, glyph func(primitives.Value) rune) string {
	lines := make([]string, 0, 2*l.radius+1)
	for y := -l.radius; y <= l.radius; y++ {
		row := make([]rune, 0, 2*l.radius+1)
		for x := -l.radius; x <= l.radius; x++ {
			v, ok := l.cells.Get(primitives.Position{X: x, Y: y, Z: z})
			if !ok {
				row = append(row, ' ')
				continue
			}
			row = append(row, glyph(v))
		}
		lines = append(lines, strings.TrimRight(string(row), " "))
	}
	return strings.Join(lines, "\n")
}

// DefaultGlyph renders Void as '.', and other Values as letters from 'A'.
func DefaultGlyph(v primitives.Value) rune {
	if v == primitives.Void {
		return '.'
	}
	if v <= 26 {
		return 'A' + rune(v-1)
	}
	return '?'
}

func (l *Lattice) DebugString() string {
	return fmt.Sprintf("Lattice{radius: %d, cells: %d, stats: %+v}", l.radius, l.cells.Len(), l.stats)
}
