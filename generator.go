package lattice

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"crosswarped.com/lattice/internal"
	"crosswarped.com/lattice/pkg/primitives"
)

// DefaultStepBudget is used when GeneratorParams.StepBudget is zero.
const DefaultStepBudget = 10_000

type Generator struct {
	Example     []primitives.Placement
	Offsets     []primitives.Offset
	Palette     []primitives.Value
	ExcludeVoid bool

	Radius     int
	StepBudget int
	SeedValue  primitives.Value

	rand   *rand.Rand
	logger zerolog.Logger

	// Do not access this field directly, use the ruleTable method instead.
	lazyRules *primitives.RuleTable
}

type GeneratorParams struct {
	// Offsets is the neighbourhood used to learn rules. Defaults to primitives.Offsets6.
	Offsets []primitives.Offset
	// Palette, if set, lists every Value the example may use.
	Palette []primitives.Value
	// ExcludeVoid keeps the void Value out of the output.
	ExcludeVoid bool

	// Radius bounds the lattice to cells within this Manhattan distance of the origin.
	Radius int
	// StepBudget caps the number of placements and selections. Defaults to DefaultStepBudget.
	StepBudget int
	// SeedValue is placed at the origin. When Void, it is drawn from the example's Value frequencies.
	SeedValue primitives.Value

	Logger *zerolog.Logger
}

func CreateGenerator(example []primitives.Placement, rand *rand.Rand, params GeneratorParams) *Generator {
	g := &Generator{
		Example:     example,
		Offsets:     params.Offsets,
		Palette:     params.Palette,
		ExcludeVoid: params.ExcludeVoid,
		Radius:      params.Radius,
		StepBudget:  params.StepBudget,
		SeedValue:   params.SeedValue,
		rand:        rand,
		logger:      zerolog.Nop(),
	}
	if g.Offsets == nil {
		g.Offsets = primitives.Offsets6
	}
	if g.StepBudget == 0 {
		g.StepBudget = DefaultStepBudget
	}
	if params.Logger != nil {
		g.logger = *params.Logger
	}
	return g
}

// CreateGeneratorFromRules skips rule learning and searches with a prepared table.
func CreateGeneratorFromRules(rules *primitives.RuleTable, rand *rand.Rand, params GeneratorParams) *Generator {
	g := CreateGenerator(nil, rand, params)
	g.lazyRules = rules
	return g
}

func (g *Generator) ruleTable(ctx context.Context) (*primitives.RuleTable, error) {
	var err error
	if g.lazyRules == nil {
		g.lazyRules, err = internal.BuildRuleTable(ctx, internal.RuleTableParams{
			Example:     g.Example,
			Offsets:     g.Offsets,
			Palette:     g.Palette,
			ExcludeVoid: g.ExcludeVoid,
		})
	}
	return g.lazyRules, err
}

// Rules returns the rule table the generator searches with, learning it from the example if needed.
func (g *Generator) Rules(ctx context.Context) (*primitives.RuleTable, error) {
	return g.ruleTable(ctx)
}

// Build searches for a complete lattice.
//
// It returns ErrInvalidRule before searching if the example is unusable,
// ErrUnsatisfiable if every choice at the root failed and ErrAborted once the
// step budget is spent. No partial lattice is returned on failure.
func (g *Generator) Build(ctx context.Context) (*Lattice, error) {
	if g.Radius < 0 || g.StepBudget < 0 {
		return nil, fmt.Errorf("%w: radius %d, step budget %d", ErrInvalidParams, g.Radius, g.StepBudget)
	}

	rules, err := g.ruleTable(ctx)
	if err != nil {
		return nil, err
	}

	seed := g.SeedValue
	if seed == primitives.Void {
		var ok bool
		if seed, ok = rules.Frequencies().GetRandomItem(g.rand); !ok {
			return nil, fmt.Errorf("%w: no value to seed the origin with", ErrInvalidRule)
		}
	}
	if !rules.Has(seed) {
		return nil, fmt.Errorf("%w: seed %v has no rules", ErrInvalidRule, seed)
	}
	if len(g.Palette) > 0 && !slices.Contains(g.Palette, seed) {
		return nil, fmt.Errorf("%w: seed %v is not in the palette", ErrInvalidRule, seed)
	}

	start := time.Now()
	s := newSolver(rules, g.Radius, g.StepBudget, g.rand, g.logger)
	l, err := s.run(ctx, seed)

	ev := g.logger.Info()
	if err != nil {
		ev = g.logger.Warn().Err(err)
	}
	ev.Stringer("status", StatusOf(err)).
		Stringer("seed", seed).
		Int("radius", g.Radius).
		Int("steps", s.steps).
		Int("backtracks", s.backtracks).
		Dur("elapsed", time.Since(start)).
		Msg("lattice build finished")

	return l, err
}
