package primitives

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"
)

type weighted struct {
	value  Value
	weight int
}

// PossibilitySet is a weighted set of candidate Values for an unresolved cell.
//
// Entries are kept sorted by Value so that sampling with a seeded source is
// reproducible. Total always equals the sum of the current weights.
type PossibilitySet struct {
	items []weighted
	total int

	entropy      float64
	entropyValid bool
}

// NewPossibilitySet builds a set from a Value to weight mapping. Non-positive weights are dropped.
func NewPossibilitySet(weights map[Value]int) *PossibilitySet {
	p := &PossibilitySet{items: make([]weighted, 0, len(weights))}
	for _, v := range slices.Sorted(maps.Keys(weights)) {
		if w := weights[v]; w > 0 {
			p.items = append(p.items, weighted{value: v, weight: w})
			p.total += w
		}
	}
	return p
}

// Singleton returns a set containing only v, with weight 1.
func Singleton(v Value) *PossibilitySet {
	return &PossibilitySet{items: []weighted{{value: v, weight: 1}}, total: 1}
}

// Add increases the weight of v by w, inserting v if it is absent.
func (p *PossibilitySet) Add(v Value, w int) {
	if w <= 0 {
		return
	}
	i, found := p.search(v)
	if found {
		p.items[i].weight += w
	} else {
		p.items = slices.Insert(p.items, i, weighted{value: v, weight: w})
	}
	p.total += w
	p.entropyValid = false
}

// Remove deletes v from the set.
func (p *PossibilitySet) Remove(v Value) {
	i, found := p.search(v)
	if !found {
		return
	}
	p.total -= p.items[i].weight
	p.items = slices.Delete(p.items, i, i+1)
	p.entropyValid = false
}

func (p *PossibilitySet) search(v Value) (int, bool) {
	return slices.BinarySearchFunc(p.items, v, func(e weighted, t Value) int {
		return int(e.value) - int(t)
	})
}

func (p *PossibilitySet) Len() int {
	return len(p.items)
}

func (p *PossibilitySet) Total() int {
	return p.total
}

// Weight returns the weight of v, or 0 if it is not a candidate.
func (p *PossibilitySet) Weight(v Value) int {
	if i, found := p.search(v); found {
		return p.items[i].weight
	}
	return 0
}

func (p *PossibilitySet) Contains(v Value) bool {
	_, found := p.search(v)
	return found
}

// Values returns the candidates in ascending order.
func (p *PossibilitySet) Values() []Value {
	out := make([]Value, len(p.items))
	for i, e := range p.items {
		out[i] = e.value
	}
	return out
}

// Impossible reports whether no candidate is left.
func (p *PossibilitySet) Impossible() bool {
	return p.total == 0
}

// Entropy returns the Shannon entropy, in bits, of the normalised weights.
//
// A singleton has entropy 0. The result for an impossible set is also 0;
// callers must check Impossible first.
func (p *PossibilitySet) Entropy() float64 {
	if p.entropyValid {
		return p.entropy
	}
	if len(p.items) <= 1 {
		p.entropy = 0
	} else {
		dist := make([]float64, len(p.items))
		for i, e := range p.items {
			dist[i] = float64(e.weight) / float64(p.total)
		}
		p.entropy = stat.Entropy(dist) / math.Ln2
	}
	p.entropyValid = true
	return p.entropy
}

// IntersectWith keeps only the Values present in both sets, each with the
// smaller of its two weights.
func (p *PossibilitySet) IntersectWith(other *PossibilitySet) {
	if p == other {
		return
	}
	kept := p.items[:0]
	total := 0
	j := 0
	for _, e := range p.items {
		for j < len(other.items) && other.items[j].value < e.value {
			j++
		}
		if j == len(other.items) || other.items[j].value != e.value {
			continue
		}
		e.weight = min(e.weight, other.items[j].weight)
		kept = append(kept, e)
		total += e.weight
	}
	clear(p.items[len(kept):])
	p.items = kept
	p.total = total
	p.entropyValid = false
}

func (p *PossibilitySet) Clone() *PossibilitySet {
	return &PossibilitySet{
		items:        slices.Clone(p.items),
		total:        p.total,
		entropy:      p.entropy,
		entropyValid: p.entropyValid,
	}
}

func (p *PossibilitySet) Equal(other *PossibilitySet) bool {
	return p.total == other.total && slices.Equal(p.items, other.items)
}

// AllItemsInRandomOrder yields every candidate once, each draw weighted by
// the remaining candidates' weights. The sequence is single-use.
func (p *PossibilitySet) AllItemsInRandomOrder(r *rand.Rand) iter.Seq[Value] {
	d := NewDraw(p, r)
	return func(yield func(Value) bool) {
		for {
			v, ok := d.Next()
			if !ok || !yield(v) {
				return
			}
		}
	}
}

// GetRandomItem draws a single candidate with probability proportional to its weight.
func (p *PossibilitySet) GetRandomItem(r *rand.Rand) (Value, bool) {
	if p.total == 0 {
		return Void, false
	}
	return NewDraw(p, r).Next()
}

func (p *PossibilitySet) String() string {
	parts := make([]string, len(p.items))
	for i, e := range p.items {
		parts[i] = fmt.Sprintf("%s:%d", e.value, e.weight)
	}
	return "{" + strings.Join(parts, " ") + "}"
}
