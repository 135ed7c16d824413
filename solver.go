package lattice

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"crosswarped.com/lattice/pkg/primitives"
)

// cell is either resolved to value, or still holds its candidates in options.
type cell struct {
	value   primitives.Value
	options *primitives.PossibilitySet // nil once resolved
}

func (c cell) resolved() bool {
	return c.options == nil
}

// frame is one decision point of the search: a cell and the candidates not yet tried for it.
type frame struct {
	pos  primitives.Position
	draw *primitives.Draw

	// placed is set while a candidate for pos is on the journal, under its own mark.
	placed bool
}

type solver struct {
	rules  *primitives.RuleTable
	cells  *primitives.Journal[cell]
	radius int
	budget int
	rand   *rand.Rand
	log    zerolog.Logger

	steps      int
	backtracks int
}

func newSolver(rules *primitives.RuleTable, radius, budget int, r *rand.Rand, log zerolog.Logger) *solver {
	return &solver{
		rules:  rules,
		cells:  primitives.NewJournal[cell](),
		radius: radius,
		budget: budget,
		rand:   r,
		log:    log,
	}
}

// step counts one unit of work against the budget.
func (s *solver) step(ctx context.Context) error {
	s.steps++
	if s.steps > s.budget {
		return fmt.Errorf("%w: more than %d steps", ErrAborted, s.budget)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("lattice build interrupted after %d steps: %w", s.steps, err)
	}
	return nil
}

func (s *solver) inRadius(pos primitives.Position) bool {
	return pos.Manhattan() <= s.radius
}

// trySet resolves pos to v and narrows every in-radius neighbour by v's rules.
//
// On success the changes stay on the journal under a new mark. If any
// neighbour runs out of candidates, or a resolved neighbour is not allowed,
// the changes are rolled back and trySet reports false.
func (s *solver) trySet(ctx context.Context, pos primitives.Position, v primitives.Value) (bool, error) {
	if err := s.step(ctx); err != nil {
		return false, err
	}

	s.cells.SetMark()
	s.cells.Set(pos, cell{value: v})

	for _, o := range s.rules.Offsets(v) {
		target := pos.Add(o)
		if !s.inRadius(target) {
			continue
		}
		rule, _ := s.rules.Lookup(v, o)

		existing, ok := s.cells.Get(target)
		if ok && existing.resolved() {
			if rule.Contains(existing.value) {
				continue
			}
			return false, s.cells.RollbackToMark()
		}

		var narrowed *primitives.PossibilitySet
		if ok {
			narrowed = existing.options.Clone()
			narrowed.IntersectWith(rule)
			if narrowed.Equal(existing.options) {
				continue
			}
		} else {
			narrowed = rule.Clone()
		}

		if narrowed.Impossible() {
			return false, s.cells.RollbackToMark()
		}
		s.cells.Set(target, cell{options: narrowed})
	}
	return true, nil
}

// selectCell picks the unresolved cell with the lowest entropy, breaking
// ties by Position order.
func (s *solver) selectCell() (primitives.Position, *primitives.PossibilitySet, bool) {
	var (
		best     primitives.Position
		bestSet  *primitives.PossibilitySet
		bestEntr float64
	)
	for pos, c := range s.cells.Entries() {
		if c.resolved() {
			continue
		}
		e := c.options.Entropy()
		if bestSet == nil || e < bestEntr || (e == bestEntr && pos.Compare(best) < 0) {
			best, bestSet, bestEntr = pos, c.options, e
		}
	}
	return best, bestSet, bestSet != nil
}

// advance places the next untried candidate of f. It reports false once f is exhausted.
func (s *solver) advance(ctx context.Context, f *frame) (bool, error) {
	for {
		v, ok := f.draw.Next()
		if !ok {
			return false, nil
		}
		placed, err := s.trySet(ctx, f.pos, v)
		if err != nil {
			return false, err
		}
		if placed {
			f.placed = true
			return true, nil
		}
	}
}

// run searches depth-first with an explicit frame stack instead of recursion.
func (s *solver) run(ctx context.Context, seed primitives.Value) (*Lattice, error) {
	placed, err := s.trySet(ctx, primitives.Origin, seed)
	if err != nil {
		return nil, err
	}
	if !placed {
		return nil, fmt.Errorf("%w: seed %v cannot be placed at the origin", ErrUnsatisfiable, seed)
	}
	s.log.Debug().Stringer("seed", seed).Msg("seed placed")

	var stack []*frame
	for {
		if err := s.step(ctx); err != nil {
			return nil, err
		}
		pos, options, found := s.selectCell()
		if !found {
			break
		}

		s.cells.SetMark()
		stack = append(stack, &frame{pos: pos, draw: primitives.NewDraw(options, s.rand)})

		for {
			top := stack[len(stack)-1]
			if top.placed {
				// Everything below this candidate failed; undo it before trying the next.
				if err := s.cells.RollbackToMark(); err != nil {
					return nil, err
				}
				top.placed = false
				s.backtracks++
			}

			ok, err := s.advance(ctx, top)
			if err != nil {
				return nil, err
			}
			if ok {
				break
			}

			s.log.Debug().Stringer("pos", top.pos).Int("depth", len(stack)).Msg("candidates exhausted")
			if err := s.cells.RollbackToMark(); err != nil {
				return nil, err
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: no candidate fits after %d steps", ErrUnsatisfiable, s.steps)
			}
		}
	}

	for s.cells.Marks() > 0 {
		if err := s.cells.DiscardMark(); err != nil {
			return nil, err
		}
	}

	out := primitives.NewStore[primitives.Value]()
	for pos, c := range s.cells.Entries() {
		out.Set(pos, c.value)
	}
	return &Lattice{
		cells:  out,
		radius: s.radius,
		stats: Stats{
			Seed:       seed,
			Steps:      s.steps,
			Backtracks: s.backtracks,
		},
	}, nil
}
