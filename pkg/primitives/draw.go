package primitives

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// Draw is a cursor over a PossibilitySet that samples without replacement.
//
// Each call to Next picks one of the not-yet-drawn candidates with
// probability proportional to its weight. A Draw is not restartable.
type Draw struct {
	values    []Value
	weighted  sampleuv.Weighted
	remaining int
}

// NewDraw snapshots p; later changes to p do not affect the draw.
func NewDraw(p *PossibilitySet, r *rand.Rand) *Draw {
	d := &Draw{
		values:    make([]Value, len(p.items)),
		remaining: len(p.items),
	}
	weights := make([]float64, len(p.items))
	for i, e := range p.items {
		d.values[i] = e.value
		weights[i] = float64(e.weight)
	}
	if len(weights) > 0 {
		d.weighted = sampleuv.NewWeighted(weights, r)
	}
	return d
}

func (d *Draw) Next() (Value, bool) {
	if d.remaining == 0 {
		return Void, false
	}
	i, ok := d.weighted.Take()
	if !ok {
		d.remaining = 0
		return Void, false
	}
	d.remaining--
	return d.values[i], true
}

// Remaining returns how many candidates have not been drawn yet.
func (d *Draw) Remaining() int {
	return d.remaining
}
