//go:build goexperiment.simd && amd64

package escapist

import (
	"io"
	"simd/archsimd"
	"unsafe"
)

// The x86 kernels are written out per width instead of going through the
// generic scan: archsimd vectors cannot be used as type arguments.

// archsimd 128-bit ops on AMD64 require AVX.
var (
	useAVX2 = archsimd.X86.AVX2()
	useAVX  = archsimd.X86.AVX()
)

func runnable(k Kernel) bool {
	if k == KernelAVX2 {
		return useAVX2
	}
	return true
}

func load32(s string, i int) archsimd.Int8x32 {
	return archsimd.LoadInt8x32((*[32]int8)(unsafe.Pointer(unsafe.StringData(s[i : i+32]))))
}

func load16(s string, i int) archsimd.Int8x16 {
	return archsimd.LoadInt8x16((*[16]int8)(unsafe.Pointer(unsafe.StringData(s[i : i+16]))))
}

// avx2Switch holds the broadcast operands of a Switch for 32 lanes.
type avx2Switch struct {
	shape       Shape
	translation [3]archsimd.Int8x32
	below       [3]archsimd.Int8x32
	points      [3]archsimd.Int8x32
}

func newAVX2Switch(s Switch) *avx2Switch {
	m := &avx2Switch{shape: s.Shape}
	for i, r := range s.Ranges[:s.NRanges] {
		m.translation[i] = archsimd.BroadcastInt8x32(int8(r.translation()))
		m.below[i] = archsimd.BroadcastInt8x32(int8(r.below()))
	}
	for i, p := range s.Points[:s.NPoints] {
		m.points[i] = archsimd.BroadcastInt8x32(int8(p))
	}
	return m
}

func (m *avx2Switch) inRange(v archsimd.Int8x32, i int) archsimd.Mask8x32 {
	return v.Add(m.translation[i]).Greater(m.below[i])
}

func (m *avx2Switch) isPoint(v archsimd.Int8x32, i int) archsimd.Mask8x32 {
	return v.Equal(m.points[i])
}

func (m *avx2Switch) classify(v archsimd.Int8x32) archsimd.Mask8x32 {
	switch m.shape {
	case ShapeA:
		return m.isPoint(v, 0)
	case ShapeAr:
		return m.inRange(v, 0)
	case ShapeAB:
		return m.isPoint(v, 0).Or(m.isPoint(v, 1))
	case ShapeArB:
		return m.inRange(v, 0).Or(m.isPoint(v, 0))
	case ShapeArBr:
		return m.inRange(v, 0).Or(m.inRange(v, 1))
	case ShapeABC:
		return m.isPoint(v, 0).Or(m.isPoint(v, 1)).Or(m.isPoint(v, 2))
	case ShapeArBC:
		return m.inRange(v, 0).Or(m.isPoint(v, 0)).Or(m.isPoint(v, 1))
	case ShapeArBrC:
		return m.inRange(v, 0).Or(m.inRange(v, 1)).Or(m.isPoint(v, 0))
	default:
		return m.inRange(v, 0).Or(m.inRange(v, 1)).Or(m.inRange(v, 2))
	}
}

func (m *avx2Switch) lanes(s string, i int) mask32 {
	return mask32(m.classify(load32(s, i)).ToBits())
}

// scanAVX2 is scan for 32 lanes.
func scanAVX2(m *avx2Switch, rs *RuleSet, s string, w io.StringWriter) error {
	const width = 32
	if len(s) < width {
		return rs.scanScalar(s, w)
	}

	e := emitter{rs: rs, s: s, w: w, recheck: rs.sw.FalsePositive}
	cur, end := 0, len(s)

	addr := uintptr(unsafe.Pointer(unsafe.StringData(s)))
	if align := width - int(addr&(width-1)); align < width {
		if err := emitLanes(&e, m.lanes(s, 0), 0, align); err != nil {
			return err
		}
		cur = align
	}

	for cur <= end-4*width {
		ea := m.classify(load32(s, cur))
		eb := m.classify(load32(s, cur+width))
		ec := m.classify(load32(s, cur+2*width))
		ed := m.classify(load32(s, cur+3*width))

		if ea.Or(eb).Or(ec.Or(ed)).ToBits() != 0 {
			bits := [4]mask32{mask32(ea.ToBits()), mask32(eb.ToBits()), mask32(ec.ToBits()), mask32(ed.ToBits())}
			for i, b := range bits {
				if err := emitLanes(&e, b, cur+i*width, width); err != nil {
					return err
				}
			}
		}
		cur += 4 * width
	}

	for cur <= end-width {
		if err := emitLanes(&e, m.lanes(s, cur), cur, width); err != nil {
			return err
		}
		cur += width
	}

	if cur < end {
		rest := width - (end - cur)
		if err := emitLanes(&e, m.lanes(s, cur-rest).shr(rest), cur, width); err != nil {
			return err
		}
	}

	return e.flush()
}

// sse2Switch holds the broadcast operands of a Switch for 16 lanes.
type sse2Switch struct {
	shape       Shape
	translation [3]archsimd.Int8x16
	below       [3]archsimd.Int8x16
	points      [3]archsimd.Int8x16
}

func newSSE2Switch(s Switch) *sse2Switch {
	m := &sse2Switch{shape: s.Shape}
	for i, r := range s.Ranges[:s.NRanges] {
		m.translation[i] = archsimd.BroadcastInt8x16(int8(r.translation()))
		m.below[i] = archsimd.BroadcastInt8x16(int8(r.below()))
	}
	for i, p := range s.Points[:s.NPoints] {
		m.points[i] = archsimd.BroadcastInt8x16(int8(p))
	}
	return m
}

func (m *sse2Switch) inRange(v archsimd.Int8x16, i int) archsimd.Mask8x16 {
	return v.Add(m.translation[i]).Greater(m.below[i])
}

func (m *sse2Switch) isPoint(v archsimd.Int8x16, i int) archsimd.Mask8x16 {
	return v.Equal(m.points[i])
}

func (m *sse2Switch) classify(v archsimd.Int8x16) archsimd.Mask8x16 {
	switch m.shape {
	case ShapeA:
		return m.isPoint(v, 0)
	case ShapeAr:
		return m.inRange(v, 0)
	case ShapeAB:
		return m.isPoint(v, 0).Or(m.isPoint(v, 1))
	case ShapeArB:
		return m.inRange(v, 0).Or(m.isPoint(v, 0))
	case ShapeArBr:
		return m.inRange(v, 0).Or(m.inRange(v, 1))
	case ShapeABC:
		return m.isPoint(v, 0).Or(m.isPoint(v, 1)).Or(m.isPoint(v, 2))
	case ShapeArBC:
		return m.inRange(v, 0).Or(m.isPoint(v, 0)).Or(m.isPoint(v, 1))
	case ShapeArBrC:
		return m.inRange(v, 0).Or(m.inRange(v, 1)).Or(m.isPoint(v, 0))
	default:
		return m.inRange(v, 0).Or(m.inRange(v, 1)).Or(m.inRange(v, 2))
	}
}

func (m *sse2Switch) lanes(s string, i int) mask16 {
	return mask16(m.classify(load16(s, i)).ToBits())
}

// scanSSE2 is scan for 16 lanes.
func scanSSE2(m *sse2Switch, rs *RuleSet, s string, w io.StringWriter) error {
	const width = 16
	if len(s) < width {
		return rs.scanScalar(s, w)
	}

	e := emitter{rs: rs, s: s, w: w, recheck: rs.sw.FalsePositive}
	cur, end := 0, len(s)

	addr := uintptr(unsafe.Pointer(unsafe.StringData(s)))
	if align := width - int(addr&(width-1)); align < width {
		if err := emitLanes(&e, m.lanes(s, 0), 0, align); err != nil {
			return err
		}
		cur = align
	}

	for cur <= end-4*width {
		ea := m.classify(load16(s, cur))
		eb := m.classify(load16(s, cur+width))
		ec := m.classify(load16(s, cur+2*width))
		ed := m.classify(load16(s, cur+3*width))

		if ea.Or(eb).Or(ec.Or(ed)).ToBits() != 0 {
			bits := [4]mask16{mask16(ea.ToBits()), mask16(eb.ToBits()), mask16(ec.ToBits()), mask16(ed.ToBits())}
			for i, b := range bits {
				if err := emitLanes(&e, b, cur+i*width, width); err != nil {
					return err
				}
			}
		}
		cur += 4 * width
	}

	for cur <= end-width {
		if err := emitLanes(&e, m.lanes(s, cur), cur, width); err != nil {
			return err
		}
		cur += width
	}

	if cur < end {
		rest := width - (end - cur)
		if err := emitLanes(&e, m.lanes(s, cur-rest).shr(rest), cur, width); err != nil {
			return err
		}
	}

	return e.flush()
}

func bindAVX2(rs *RuleSet) escapeFunc {
	m := newAVX2Switch(rs.sw)
	return func(s string, w io.StringWriter) error {
		defer archsimd.ClearAVXUpperBits()
		return scanAVX2(m, rs, s, w)
	}
}

func bindSSE2(rs *RuleSet) escapeFunc {
	if !useAVX {
		return bindWith[swar16, vec16, vec16, mask16](swar16{}, rs)
	}
	m := newSSE2Switch(rs.sw)
	return func(s string, w io.StringWriter) error {
		defer archsimd.ClearAVXUpperBits()
		return scanSSE2(m, rs, s, w)
	}
}
