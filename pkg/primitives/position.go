package primitives

import (
	"cmp"
	"fmt"
)

// Position is an integer coordinate in the lattice.
//
// Positions are plain values and can be used directly as map keys.
type Position struct {
	X, Y, Z int
}

// Origin is the position the generator starts from.
var Origin = Position{}

// Offset is a relative displacement between two positions.
type Offset struct {
	X, Y, Z int
}

var (
	// Offsets4 is the 2D four-neighbour set: +X, -X, +Y, -Y.
	Offsets4 = []Offset{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}}

	// Offsets6 is the 3D six-neighbour set: the axis unit vectors in both directions.
	Offsets6 = []Offset{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
)

func (p Position) Add(o Offset) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

// Manhattan returns the Manhattan distance of p from the origin.
func (p Position) Manhattan() int {
	return abs(p.X) + abs(p.Y) + abs(p.Z)
}

// Compare orders positions lexicographically by X, then Y, then Z.
func (p Position) Compare(other Position) int {
	if c := cmp.Compare(p.X, other.X); c != 0 {
		return c
	}
	if c := cmp.Compare(p.Y, other.Y); c != 0 {
		return c
	}
	return cmp.Compare(p.Z, other.Z)
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

func (o Offset) Neg() Offset {
	return Offset{X: -o.X, Y: -o.Y, Z: -o.Z}
}

func (o Offset) IsZero() bool {
	return o == Offset{}
}

func (o Offset) String() string {
	return fmt.Sprintf("<%d,%d,%d>", o.X, o.Y, o.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
