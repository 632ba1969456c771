package physics

import (
	"cmp"
	"slices"
)

type bodyPair struct {
	a, b *rigidBody
}

type pairKey struct {
	lo, hi uint64
}

func keyOf(a, b *rigidBody) pairKey {
	if a.id < b.id {
		return pairKey{uint64(a.id), uint64(b.id)}
	}
	return pairKey{uint64(b.id), uint64(a.id)}
}

// sweepAndPrune sorts bodies along x and reports overlapping AABB pairs.
// The scratch slice is reused between steps.
type sweepAndPrune struct {
	order []*rigidBody
	pairs []bodyPair
}

// pairFilter decides whether a candidate pair goes to the narrowphase.
type pairFilter func(a, b *rigidBody) bool

func (sp *sweepAndPrune) find(bodies []*rigidBody, accept pairFilter) []bodyPair {
	sp.order = append(sp.order[:0], bodies...)
	slices.SortFunc(sp.order, func(x, y *rigidBody) int {
		if c := cmp.Compare(x.aabb.Min[0], y.aabb.Min[0]); c != 0 {
			return c
		}
		return cmp.Compare(x.id, y.id)
	})

	sp.pairs = sp.pairs[:0]
	for i, a := range sp.order {
		for _, b := range sp.order[i+1:] {
			if b.aabb.Min[0] > a.aabb.Max[0] {
				break
			}
			if !a.aabb.Overlaps(b.aabb) || !accept(a, b) {
				continue
			}
			if a.id < b.id {
				sp.pairs = append(sp.pairs, bodyPair{a, b})
			} else {
				sp.pairs = append(sp.pairs, bodyPair{b, a})
			}
		}
	}
	return sp.pairs
}
