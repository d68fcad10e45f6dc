package escapist

// isa is the set of lane operations a kernel provides over its byte vector V.
// Comparisons produce a predicate P, which is V itself for the SWAR kernels.
// The archsimd kernels do not go through isa; see bind_archsimd_amd64.go.
type isa[V, P any, M lanes[M]] interface {
	// width is the number of byte lanes in V.
	width() int
	splat(b byte) V
	// loadAligned requires i to be at a width-aligned address.
	loadAligned(s string, i int) V
	loadUnaligned(s string, i int) V
	cmpeq(a, b V) P
	// gt compares lanes as signed bytes.
	gt(a, b V) P
	// add is a wrapping lane-wise add.
	add(a, b V) V
	or(a, b P) P
	movemask(p P) M
	willHaveNonzero(p P) bool
}

// lanes is a bitmask with one slot per vector lane, lane 0 in the lowest slot.
type lanes[M any] interface {
	nonzero() bool
	firstOffset() int
	clearLowBit() M
	// shr drops the k lowest lanes.
	shr(k int) M
}

// matcher holds the splatted operands of a Switch for one kernel.
type matcher[V any] struct {
	shape         Shape
	falsePositive bool
	translation   [3]V
	below         [3]V
	points        [3]V
}

func newMatcher[K isa[V, P, M], V, P any, M lanes[M]](k K, s Switch) *matcher[V] {
	m := &matcher[V]{
		shape:         s.Shape,
		falsePositive: s.FalsePositive,
	}
	for i, r := range s.Ranges[:s.NRanges] {
		m.translation[i] = k.splat(r.translation())
		m.below[i] = k.splat(r.below())
	}
	for i, p := range s.Points[:s.NPoints] {
		m.points[i] = k.splat(p)
	}
	return m
}

func inRange[K isa[V, P, M], V, P any, M lanes[M]](k K, m *matcher[V], v V, i int) P {
	return k.gt(k.add(v, m.translation[i]), m.below[i])
}

func isPoint[K isa[V, P, M], V, P any, M lanes[M]](k K, m *matcher[V], v V, i int) P {
	return k.cmpeq(v, m.points[i])
}

// masking sets the high bit of every lane that may need escaping.
func masking[K isa[V, P, M], V, P any, M lanes[M]](k K, m *matcher[V], v V) P {
	eq := isPoint[K, V, P, M]
	rng := inRange[K, V, P, M]
	switch m.shape {
	case ShapeA:
		return eq(k, m, v, 0)
	case ShapeAr:
		return rng(k, m, v, 0)
	case ShapeAB:
		return k.or(eq(k, m, v, 0), eq(k, m, v, 1))
	case ShapeArB:
		return k.or(rng(k, m, v, 0), eq(k, m, v, 0))
	case ShapeArBr:
		return k.or(rng(k, m, v, 0), rng(k, m, v, 1))
	case ShapeABC:
		return k.or(k.or(eq(k, m, v, 0), eq(k, m, v, 1)), eq(k, m, v, 2))
	case ShapeArBC:
		return k.or(k.or(rng(k, m, v, 0), eq(k, m, v, 0)), eq(k, m, v, 1))
	case ShapeArBrC:
		return k.or(k.or(rng(k, m, v, 0), rng(k, m, v, 1)), eq(k, m, v, 0))
	default:
		return k.or(k.or(rng(k, m, v, 0), rng(k, m, v, 1)), rng(k, m, v, 2))
	}
}
