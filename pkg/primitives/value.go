package primitives

import "fmt"

// Value identifies a placeable tile or material.
type Value uint16

// Void is the reserved Value for an empty cell, or for a position outside the example.
const Void Value = 0

// Placement is a single (Position, Value) assignment, used both for examples and for output.
type Placement struct {
	Position Position
	Value    Value
}

func (v Value) String() string {
	if v == Void {
		return "void"
	}
	return fmt.Sprintf("v%d", uint16(v))
}
