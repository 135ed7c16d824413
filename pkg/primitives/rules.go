package primitives

import (
	"maps"
	"slices"
)

// RuleTable maps a Value and an Offset to the weighted set of Values that may
// sit at that offset from a cell holding the Value.
//
// A table is filled once and must be treated as read-only afterwards; the
// sets it returns are shared and must be cloned before being narrowed.
type RuleTable struct {
	rules map[Value]map[Offset]*PossibilitySet
	freq  *PossibilitySet
}

func NewRuleTable() *RuleTable {
	return &RuleTable{
		rules: make(map[Value]map[Offset]*PossibilitySet),
		freq:  NewPossibilitySet(nil),
	}
}

// Observe records that neighbour was seen at offset from a cell holding v.
func (t *RuleTable) Observe(v Value, offset Offset, neighbour Value) {
	t.Constrain(v, offset).Add(neighbour, 1)
}

// Constrain returns the (possibly empty) set for (v, offset), creating it if needed.
func (t *RuleTable) Constrain(v Value, offset Offset) *PossibilitySet {
	byOffset, ok := t.rules[v]
	if !ok {
		byOffset = make(map[Offset]*PossibilitySet)
		t.rules[v] = byOffset
	}
	set, ok := byOffset[offset]
	if !ok {
		set = NewPossibilitySet(nil)
		byOffset[offset] = set
	}
	return set
}

// CountOccurrence adds one to v's frequency in the example.
func (t *RuleTable) CountOccurrence(v Value) {
	t.freq.Add(v, 1)
}

// Lookup returns the allowed neighbour set for (v, offset).
func (t *RuleTable) Lookup(v Value, offset Offset) (*PossibilitySet, bool) {
	set, ok := t.rules[v][offset]
	return set, ok
}

// Offsets returns the offsets constrained for v, in a stable order.
func (t *RuleTable) Offsets(v Value) []Offset {
	return slices.SortedFunc(maps.Keys(t.rules[v]), func(a, b Offset) int {
		return Position(a).Compare(Position(b))
	})
}

// Has reports whether v has any rules.
func (t *RuleTable) Has(v Value) bool {
	_, ok := t.rules[v]
	return ok
}

// Values returns every Value with rules, in ascending order.
func (t *RuleTable) Values() []Value {
	return slices.Sorted(maps.Keys(t.rules))
}

// Frequencies returns how often each Value occurred in the example.
func (t *RuleTable) Frequencies() *PossibilitySet {
	return t.freq
}

// Allows reports whether neighbour may sit at offset from v. Values without
// rules place no constraint on their neighbours.
func (t *RuleTable) Allows(v Value, offset Offset, neighbour Value) bool {
	byOffset, ok := t.rules[v]
	if !ok {
		return true
	}
	set, ok := byOffset[offset]
	if !ok {
		return true
	}
	return set.Contains(neighbour)
}
