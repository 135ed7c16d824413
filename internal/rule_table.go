package internal

import (
	"context"
	"errors"
	"fmt"

	"crosswarped.com/lattice/pkg/primitives"
)

// ErrInvalidRule is returned when an example cannot be turned into a rule table.
var ErrInvalidRule = errors.New("lattice: invalid rule")

type RuleTableParams struct {
	Example []primitives.Placement
	Offsets []primitives.Offset

	// Palette, if non-empty, lists every Value the example may use.
	Palette []primitives.Value

	// ExcludeVoid strips the void Value from every neighbour set, so the
	// generated lattice never contains gaps.
	ExcludeVoid bool
}

type params struct {
	example     []primitives.Placement
	offsets     []primitives.Offset
	palette     map[primitives.Value]bool
	excludeVoid bool
}

func asParams(p RuleTableParams) (params, error) {
	pp := params{
		example:     p.Example,
		offsets:     p.Offsets,
		excludeVoid: p.ExcludeVoid,
	}
	if len(pp.example) == 0 {
		return pp, fmt.Errorf("%w: example is empty", ErrInvalidRule)
	}
	if len(pp.offsets) == 0 {
		return pp, fmt.Errorf("%w: no neighbour offsets", ErrInvalidRule)
	}
	for _, o := range pp.offsets {
		if o.IsZero() {
			return pp, fmt.Errorf("%w: zero offset", ErrInvalidRule)
		}
	}
	if len(p.Palette) > 0 {
		pp.palette = make(map[primitives.Value]bool, len(p.Palette))
		for _, v := range p.Palette {
			pp.palette[v] = true
		}
	}
	return pp, nil
}

// BuildRuleTable derives adjacency rules from an example.
//
// For every example cell holding V and every offset O, the Value found at
// cell+O (void when absent) is added to the rule set for (V, O); repeats
// increase its weight. The void Value gets mirrored rules: whenever V was
// seen with void at O, void allows V at -O.
func BuildRuleTable(ctx context.Context, p RuleTableParams) (*primitives.RuleTable, error) {
	pp, err := asParams(p)
	if err != nil {
		return nil, err
	}

	example := primitives.NewStore[primitives.Value]()
	for _, c := range pp.example {
		if c.Value == primitives.Void {
			return nil, fmt.Errorf("%w: void value at %v", ErrInvalidRule, c.Position)
		}
		if pp.palette != nil && !pp.palette[c.Value] {
			return nil, fmt.Errorf("%w: undefined value %v at %v", ErrInvalidRule, c.Value, c.Position)
		}
		if prior, ok := example.Get(c.Position); ok && prior != c.Value {
			return nil, fmt.Errorf("%w: %v holds both %v and %v", ErrInvalidRule, c.Position, prior, c.Value)
		}
		example.Set(c.Position, c.Value)
	}

	table := primitives.NewRuleTable()
	for _, pos := range example.SortedPositions() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		v, _ := example.Get(pos)
		table.CountOccurrence(v)

		for _, o := range pp.offsets {
			neighbour, ok := example.Get(pos.Add(o))
			if !ok {
				neighbour = primitives.Void
			}

			if neighbour == primitives.Void && pp.excludeVoid {
				// Keep the (possibly empty) entry so the offset is still constrained.
				table.Constrain(v, o)
				continue
			}
			table.Observe(v, o, neighbour)
			if neighbour == primitives.Void {
				table.Observe(primitives.Void, o.Neg(), v)
			}
		}
	}
	return table, nil
}
