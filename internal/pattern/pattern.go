// Package pattern loads hand-authored example patterns from TOML files.
//
// A pattern file looks like:
//
//	name = "checkerboard"
//	neighbourhood = "4"
//	layers = [["AB", "BA"]]
//
//	[legend]
//	A = 1
//	B = 2
//
//	[[cell]]
//	x = 2
//	y = 0
//	glyph = "A"
//
// layers[z][y] is a row of glyphs indexed by x; '.' and ' ' leave a cell empty.
package pattern

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"

	"crosswarped.com/lattice/pkg/primitives"
)

var ErrInvalidPattern = errors.New("pattern: invalid pattern")

type file struct {
	Name          string         `toml:"name"`
	Neighbourhood string         `toml:"neighbourhood"`
	ExcludeVoid   bool           `toml:"exclude_void"`
	Seed          string         `toml:"seed"`
	Layers        [][]string     `toml:"layers"`
	Legend        map[string]int `toml:"legend"`
	Cells         []cellEntry    `toml:"cell"`
}

type cellEntry struct {
	X     int    `toml:"x"`
	Y     int    `toml:"y"`
	Z     int    `toml:"z"`
	Glyph string `toml:"glyph"`
	Value int    `toml:"value"`
}

// Pattern is a parsed example together with the settings it was authored for.
type Pattern struct {
	Name        string
	Offsets     []primitives.Offset
	Example     []primitives.Placement
	Palette     []primitives.Value
	ExcludeVoid bool
	Seed        primitives.Value

	glyphs map[primitives.Value]rune
	values map[rune]primitives.Value
}

// Load reads and parses the pattern file at path.
func Load(path string) (*Pattern, error) {
	var f file
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("pattern load failed (%s): %w", path, err)
	}
	return fromFile(f, md)
}

// Parse parses a pattern from TOML text.
func Parse(data string) (*Pattern, error) {
	var f file
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("pattern parse failed: %w", err)
	}
	return fromFile(f, md)
}

func fromFile(f file, md toml.MetaData) (*Pattern, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidPattern, undecoded[0].String())
	}

	p := &Pattern{
		Name:        f.Name,
		ExcludeVoid: f.ExcludeVoid,
		glyphs:      make(map[primitives.Value]rune, len(f.Legend)),
		values:      make(map[rune]primitives.Value, len(f.Legend)),
	}

	switch strings.TrimSpace(f.Neighbourhood) {
	case "4":
		p.Offsets = primitives.Offsets4
	case "", "6":
		p.Offsets = primitives.Offsets6
	default:
		return nil, fmt.Errorf("%w: neighbourhood must be \"4\" or \"6\", got %q", ErrInvalidPattern, f.Neighbourhood)
	}

	for _, g := range slices.Sorted(maps.Keys(f.Legend)) {
		r, err := singleRune(g)
		if err != nil {
			return nil, err
		}
		if r == '.' || r == ' ' {
			return nil, fmt.Errorf("%w: glyph %q is reserved for empty cells", ErrInvalidPattern, g)
		}
		v := f.Legend[g]
		if v <= 0 || v > 0xffff {
			return nil, fmt.Errorf("%w: glyph %q maps to %d, want 1..65535", ErrInvalidPattern, g, v)
		}
		value := primitives.Value(v)
		if _, dup := p.glyphs[value]; dup {
			return nil, fmt.Errorf("%w: value %d has more than one glyph", ErrInvalidPattern, v)
		}
		p.glyphs[value] = r
		p.values[r] = value
		p.Palette = append(p.Palette, value)
	}
	slices.Sort(p.Palette)

	for z, layer := range f.Layers {
		for y, row := range layer {
			x := 0
			for _, r := range row {
				if r != '.' && r != ' ' {
					v, ok := p.values[r]
					if !ok {
						return nil, fmt.Errorf("%w: glyph %q at (%d,%d,%d) is not in the legend", ErrInvalidPattern, r, x, y, z)
					}
					p.Example = append(p.Example, primitives.Placement{
						Position: primitives.Position{X: x, Y: y, Z: z},
						Value:    v,
					})
				}
				x++
			}
		}
	}

	for i, c := range f.Cells {
		v, err := p.cellValue(c)
		if err != nil {
			return nil, fmt.Errorf("cell[%d]: %w", i, err)
		}
		p.Example = append(p.Example, primitives.Placement{
			Position: primitives.Position{X: c.X, Y: c.Y, Z: c.Z},
			Value:    v,
		})
	}

	if len(p.Example) == 0 {
		return nil, fmt.Errorf("%w: no cells", ErrInvalidPattern)
	}

	if f.Seed != "" {
		r, err := singleRune(f.Seed)
		if err != nil {
			return nil, err
		}
		seed, ok := p.values[r]
		if !ok {
			return nil, fmt.Errorf("%w: seed %q is not in the legend", ErrInvalidPattern, f.Seed)
		}
		p.Seed = seed
	}
	return p, nil
}

func (p *Pattern) cellValue(c cellEntry) (primitives.Value, error) {
	switch {
	case c.Glyph != "" && c.Value != 0:
		return primitives.Void, fmt.Errorf("%w: set glyph or value, not both", ErrInvalidPattern)
	case c.Glyph != "":
		r, err := singleRune(c.Glyph)
		if err != nil {
			return primitives.Void, err
		}
		v, ok := p.values[r]
		if !ok {
			return primitives.Void, fmt.Errorf("%w: glyph %q is not in the legend", ErrInvalidPattern, c.Glyph)
		}
		return v, nil
	case c.Value > 0 && c.Value <= 0xffff:
		return primitives.Value(c.Value), nil
	default:
		return primitives.Void, fmt.Errorf("%w: missing glyph or value", ErrInvalidPattern)
	}
}

// Glyph renders v with the legend, falling back to '.' for void and '?' for unknown Values.
func (p *Pattern) Glyph(v primitives.Value) rune {
	if v == primitives.Void {
		return '.'
	}
	if r, ok := p.glyphs[v]; ok {
		return r
	}
	return '?'
}

func singleRune(s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("%w: glyph %q must be a single character", ErrInvalidPattern, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
