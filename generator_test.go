package lattice

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"crosswarped.com/lattice/internal/pattern"
	"crosswarped.com/lattice/pkg/primitives"
)

const (
	a primitives.Value = 1
	b primitives.Value = 2
)

func checkerboard() []primitives.Placement {
	return []primitives.Placement{
		{Position: primitives.Position{X: 0, Y: 0}, Value: a},
		{Position: primitives.Position{X: 1, Y: 1}, Value: a},
		{Position: primitives.Position{X: 1, Y: 0}, Value: b},
		{Position: primitives.Position{X: 0, Y: 1}, Value: b},
	}
}

func newRand() *rand.Rand {
	// Use a fixed seed for reproducibility.
	return rand.New(rand.NewPCG(42, 1024))
}

func TestBuild_Checkerboard(t *testing.T) {
	const radius = 3
	gen := CreateGenerator(checkerboard(), newRand(), GeneratorParams{
		Offsets:   primitives.Offsets4,
		Radius:    radius,
		SeedValue: a,
	})

	l, err := gen.Build(t.Context())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if StatusOf(err) != StatusSolved {
		t.Errorf("StatusOf() = %v, want solved", StatusOf(err))
	}
	t.Logf("layer 0:\n%s", l.Layer(0, DefaultGlyph))

	if v, _ := l.Get(primitives.Origin); v != a {
		t.Errorf("origin = %v, want %v", v, a)
	}
	// Every in-radius cell is reached: 2r^2 + 2r + 1 of them.
	if want := 2*radius*radius + 2*radius + 1; l.Len() != want {
		t.Errorf("Len() = %d, want %d", l.Len(), want)
	}
	for pos, v := range l.Entries() {
		if pos.Manhattan() > radius {
			t.Errorf("%v is outside radius %d", pos, radius)
		}
		if pos.Z != 0 {
			t.Errorf("%v left the plane", pos)
		}
		for _, o := range primitives.Offsets4 {
			if n, ok := l.Get(pos.Add(o)); ok && n == v {
				t.Errorf("%v at %v repeats at offset %v", v, pos, o)
			}
		}
	}

	rules, err := gen.Rules(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Validate(rules); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if l.Stats().Seed != a || l.Stats().Steps == 0 {
		t.Errorf("Stats() = %+v", l.Stats())
	}
}

func TestBuild_Reproducible(t *testing.T) {
	build := func() []primitives.Placement {
		gen := CreateGenerator(checkerboard(), newRand(), GeneratorParams{
			Offsets: primitives.Offsets4,
			Radius:  4,
		})
		l, err := gen.Build(t.Context())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		return l.Placements()
	}

	first, second := build(), build()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same seed gave different lattices (-first +second):\n%s", diff)
	}
}

func TestBuild_RadiusZero(t *testing.T) {
	gen := CreateGenerator(checkerboard(), newRand(), GeneratorParams{
		Offsets:   primitives.Offsets4,
		SeedValue: b,
	})
	l, err := gen.Build(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	want := []primitives.Placement{{Position: primitives.Origin, Value: b}}
	if diff := cmp.Diff(want, l.Placements()); diff != "" {
		t.Errorf("Placements() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_SeedFromFrequencies(t *testing.T) {
	gen := CreateGenerator(checkerboard(), newRand(), GeneratorParams{
		Offsets: primitives.Offsets4,
		Radius:  1,
	})
	l, err := gen.Build(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	seed := l.Stats().Seed
	if seed != a && seed != b {
		t.Fatalf("Stats().Seed = %v, want a value from the example", seed)
	}
	if v, _ := l.Get(primitives.Origin); v != seed {
		t.Errorf("origin = %v, want seed %v", v, seed)
	}
}

func TestBuild_ImpossibleRule(t *testing.T) {
	rules := primitives.NewRuleTable()
	rules.Constrain(a, primitives.Offset{X: 1})
	rules.CountOccurrence(a)

	gen := CreateGeneratorFromRules(rules, newRand(), GeneratorParams{
		Radius:    2,
		SeedValue: a,
	})
	l, err := gen.Build(t.Context())
	if !errors.Is(err, ErrUnsatisfiable) {
		t.Fatalf("Build() error = %v, want ErrUnsatisfiable", err)
	}
	if l != nil {
		t.Errorf("Build() returned a lattice on failure: %s", l.DebugString())
	}
	if StatusOf(err) != StatusUnsatisfiable {
		t.Errorf("StatusOf() = %v", StatusOf(err))
	}
}

func TestBuild_ExhaustsCandidates(t *testing.T) {
	// Both candidates right of a look fine until d, the only value allowed
	// after them, turns out to require a on its left.
	right := primitives.Offset{X: 1}
	const (
		c primitives.Value = 3
		d primitives.Value = 4
	)
	rules := primitives.NewRuleTable()
	rules.Observe(a, right, b)
	rules.Observe(a, right, c)
	rules.Observe(b, right, d)
	rules.Observe(c, right, d)
	rules.Observe(d, right.Neg(), a)

	gen := CreateGeneratorFromRules(rules, newRand(), GeneratorParams{
		Radius:    2,
		SeedValue: a,
	})
	_, err := gen.Build(t.Context())
	if !errors.Is(err, ErrUnsatisfiable) {
		t.Fatalf("Build() error = %v, want ErrUnsatisfiable", err)
	}
}

func TestBuild_StepBudget(t *testing.T) {
	gen := CreateGenerator(checkerboard(), newRand(), GeneratorParams{
		Offsets:    primitives.Offsets4,
		Radius:     10,
		StepBudget: 20,
	})
	l, err := gen.Build(t.Context())
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("Build() error = %v, want ErrAborted", err)
	}
	if l != nil {
		t.Error("Build() returned a partial lattice")
	}
	if StatusOf(err) != StatusAborted {
		t.Errorf("StatusOf() = %v", StatusOf(err))
	}
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	gen := CreateGenerator(checkerboard(), newRand(), GeneratorParams{Radius: 3})
	_, err := gen.Build(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Build() error = %v, want context.Canceled", err)
	}
	if StatusOf(err) != StatusCanceled {
		t.Errorf("StatusOf() = %v", StatusOf(err))
	}
}

func TestBuild_InvalidParams(t *testing.T) {
	tests := []struct {
		name    string
		example []primitives.Placement
		params  GeneratorParams
		want    error
	}{
		{"negative radius", checkerboard(), GeneratorParams{Radius: -1}, ErrInvalidParams},
		{"negative budget", checkerboard(), GeneratorParams{StepBudget: -5}, ErrInvalidParams},
		{"empty example", nil, GeneratorParams{}, ErrInvalidRule},
		{"void in example", []primitives.Placement{{Value: primitives.Void}}, GeneratorParams{}, ErrInvalidRule},
		{"seed without rules", checkerboard(), GeneratorParams{Offsets: primitives.Offsets4, Radius: 3, SeedValue: 7}, ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateGenerator(tt.example, newRand(), tt.params).Build(t.Context())
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
			if StatusOf(err) != StatusFailed {
				t.Errorf("StatusOf() = %v, want failed", StatusOf(err))
			}
		})
	}
}

func TestBuild_SeedOutsidePalette(t *testing.T) {
	const c primitives.Value = 3
	rules := primitives.NewRuleTable()
	rules.Observe(c, primitives.Offset{X: 1}, c)

	gen := CreateGeneratorFromRules(rules, newRand(), GeneratorParams{
		Palette:   []primitives.Value{a, b},
		Radius:    1,
		SeedValue: c,
	})
	l, err := gen.Build(t.Context())
	if !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("Build() error = %v, want ErrInvalidRule", err)
	}
	if l != nil {
		t.Errorf("Build() returned %s", l.DebugString())
	}
}

func TestBuild_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	gen := CreateGenerator(checkerboard(), newRand(), GeneratorParams{
		Offsets: primitives.Offsets4,
		Radius:  2,
		Logger:  &logger,
	})
	if _, err := gen.Build(t.Context()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"status":"solved"`, `"radius":2`, "lattice build finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}
}

func TestBuild_Patterns(t *testing.T) {
	tests := []struct {
		file   string
		radius int
	}{
		{"testdata/checkerboard.toml", 5},
		{"testdata/island.toml", 4},
		{"testdata/tower.toml", 2},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			p, err := pattern.Load(tt.file)
			if err != nil {
				t.Fatal(err)
			}
			gen := CreateGenerator(p.Example, newRand(), GeneratorParams{
				Offsets:     p.Offsets,
				Palette:     p.Palette,
				ExcludeVoid: p.ExcludeVoid,
				Radius:      tt.radius,
				StepBudget:  100_000,
				SeedValue:   p.Seed,
			})
			l, err := gen.Build(t.Context())
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			rules, _ := gen.Rules(t.Context())
			if err := l.Validate(rules); err != nil {
				t.Error(err)
			}
			for pos, v := range l.Entries() {
				if pos.Manhattan() > tt.radius {
					t.Errorf("%v is outside the radius", pos)
				}
				if p.ExcludeVoid && v == primitives.Void {
					t.Errorf("void at %v with exclude_void set", pos)
				}
			}
			t.Logf("%s layer 0:\n%s", p.Name, l.Layer(0, p.Glyph))
		})
	}
}

func BenchmarkBuild_Checkerboard(b *testing.B) {
	rng := newRand()
	for b.Loop() {
		gen := CreateGenerator(checkerboard(), rng, GeneratorParams{
			Offsets: primitives.Offsets4,
			Radius:  8,
		})
		if _, err := gen.Build(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
