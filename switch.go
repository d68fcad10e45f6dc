package escapist

import (
	"fmt"
	"slices"
	"strings"
)

// Shape is the form of the classifier predicate: up to three clauses, each
// either a single byte (A, B, C) or an inclusive byte range (Ar, Br, Cr).
type Shape uint8

const (
	ShapeA Shape = iota + 1
	ShapeAr
	ShapeAB
	ShapeArB
	ShapeArBr
	ShapeABC
	ShapeArBC
	ShapeArBrC
	ShapeArBrCr
)

var shapeNames = [...]string{
	ShapeA:      "A",
	ShapeAr:     "Ar",
	ShapeAB:     "AB",
	ShapeArB:    "ArB",
	ShapeArBr:   "ArBr",
	ShapeABC:    "ABC",
	ShapeArBC:   "ArBC",
	ShapeArBrC:  "ArBrC",
	ShapeArBrCr: "ArBrCr",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) && shapeNames[s] != "" {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// shapes is indexed by [number of ranges][number of points].
var shapes = [4][4]Shape{
	{0, ShapeA, ShapeAB, ShapeABC},
	{ShapeAr, ShapeArB, ShapeArBC},
	{ShapeArBr, ShapeArBrC},
	{ShapeArBrCr},
}

// ByteRange is an inclusive range of bytes.
type ByteRange struct {
	Lo, Hi byte
}

// translation is added to every lane so that Hi lands on math.MaxInt8.
func (r ByteRange) translation() byte {
	return byte(127 - int(r.Hi))
}

// below is the largest translated value that lies outside the range; a
// signed greater-than against it tests membership in a single compare.
func (r ByteRange) below() byte {
	return byte(127 - int(r.Hi-r.Lo) - 1)
}

func (r ByteRange) contains(b byte) bool {
	return int8(b+r.translation()) > int8(r.below())
}

// Switch is the compiled classifier. Ranges come before points, so the
// clauses of an ArB switch are Ranges[0] and Points[0].
type Switch struct {
	Shape   Shape
	Ranges  [3]ByteRange
	Points  [3]byte
	NRanges int
	NPoints int

	// FalsePositive is set when the ranges cover bytes that have no rule;
	// candidates from the vector predicate must then be rechecked.
	FalsePositive bool
}

func (s *Switch) add(lo, hi byte) {
	if lo == hi {
		s.Points[s.NPoints] = lo
		s.NPoints++
		return
	}
	s.Ranges[s.NRanges] = ByteRange{Lo: lo, Hi: hi}
	s.NRanges++
}

// Matches evaluates the predicate on a single byte with the same signed
// arithmetic the vector kernels use.
func (s Switch) Matches(b byte) bool {
	for _, r := range s.Ranges[:s.NRanges] {
		if r.contains(b) {
			return true
		}
	}
	for _, p := range s.Points[:s.NPoints] {
		if b == p {
			return true
		}
	}
	return false
}

func (s Switch) String() string {
	var b strings.Builder
	b.WriteString(s.Shape.String())
	b.WriteByte('{')
	for i, r := range s.Ranges[:s.NRanges] {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%#02x..%#02x", r.Lo, r.Hi)
	}
	for i, p := range s.Points[:s.NPoints] {
		if i > 0 || s.NRanges > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%#02x", p)
	}
	b.WriteByte('}')
	return b.String()
}

type gap struct {
	at   int // the gap lies between c[at] and c[at+1]
	size int
}

// compileSwitch picks the shape for the sorted, unique bytes c.
//
// The two widest gaps between consecutive bytes split c into at most three
// segments; a segment of one byte becomes an equality clause and a longer
// one a range clause. Narrower gaps end up inside a range, which is what
// makes the switch a false-positive one.
func compileSwitch(c []byte) Switch {
	var gaps []gap
	for i := 0; i+1 < len(c); i++ {
		if d := int(c[i+1]) - int(c[i]) - 1; d > 0 {
			gaps = append(gaps, gap{at: i, size: d})
		}
	}
	slices.SortStableFunc(gaps, func(a, b gap) int {
		return b.size - a.size
	})

	var cuts []int
	for _, g := range gaps[:min(len(gaps), 2)] {
		cuts = append(cuts, g.at)
	}
	slices.Sort(cuts)

	var s Switch
	first := 0
	for _, at := range cuts {
		s.add(c[first], c[at])
		first = at + 1
	}
	s.add(c[first], c[len(c)-1])
	s.Shape = shapes[s.NRanges][s.NPoints]

	covered := s.NPoints
	for _, r := range s.Ranges[:s.NRanges] {
		covered += int(r.Hi-r.Lo) + 1
	}
	s.FalsePositive = covered > len(c)

	return s
}
