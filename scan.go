package escapist

import (
	"io"
	"strings"
	"unsafe"
)

// emitter interleaves literal runs of s with replacements. written is the
// index of the first byte of s not yet handed to w.
type emitter struct {
	rs      *RuleSet
	s       string
	w       io.StringWriter
	written int
	recheck bool
}

// emit replaces s[i]. With recheck set, i may be a false positive of the
// vector predicate and is skipped unless the byte really has a rule.
func (e *emitter) emit(i int) error {
	p := int(e.rs.position[e.s[i]])
	if e.recheck && p >= e.rs.n {
		return nil
	}
	if e.written < i {
		if _, err := e.w.WriteString(e.s[e.written:i]); err != nil {
			return err
		}
	}
	if _, err := e.w.WriteString(e.rs.quote[p]); err != nil {
		return err
	}
	e.written = i + 1
	return nil
}

func (e *emitter) flush() error {
	if e.written < len(e.s) {
		if _, err := e.w.WriteString(e.s[e.written:]); err != nil {
			return err
		}
		e.written = len(e.s)
	}
	return nil
}

// emitLanes emits every lane of mask below limit, relative to base.
func emitLanes[M lanes[M]](e *emitter, mask M, base, limit int) error {
	for ; mask.nonzero(); mask = mask.clearLowBit() {
		off := mask.firstOffset()
		if off >= limit {
			break
		}
		if err := e.emit(base + off); err != nil {
			return err
		}
	}
	return nil
}

// scanScalar is the byte-at-a-time path used by the scalar kernel and for
// inputs shorter than a vector.
func (rs *RuleSet) scanScalar(s string, w io.StringWriter) error {
	e := emitter{rs: rs, s: s, w: w}

	if rs.n == 1 {
		c := rs.rules[0].Byte
		for i := 0; ; {
			j := strings.IndexByte(s[i:], c)
			if j < 0 {
				break
			}
			if err := e.emit(i + j); err != nil {
				return err
			}
			i += j + 1
		}
		return e.flush()
	}

	for i := 0; i < len(s); i++ {
		if int(rs.position[s[i]]) < rs.n {
			if err := e.emit(i); err != nil {
				return err
			}
		}
	}
	return e.flush()
}

// scan walks s with kernel k: an unaligned head up to the first width-aligned
// address, a body of four aligned vectors per step, single aligned vectors,
// and a final unaligned vector ending at len(s) whose already-visited lanes
// are shifted out.
func scan[K isa[V, P, M], V, P any, M lanes[M]](k K, m *matcher[V], rs *RuleSet, s string, w io.StringWriter) error {
	width := k.width()
	if len(s) < width {
		return rs.scanScalar(s, w)
	}

	e := emitter{rs: rs, s: s, w: w, recheck: m.falsePositive}
	mask := func(v V) M {
		return k.movemask(masking[K, V, P, M](k, m, v))
	}

	cur, end := 0, len(s)

	addr := uintptr(unsafe.Pointer(unsafe.StringData(s)))
	if align := width - int(addr&uintptr(width-1)); align < width {
		if err := emitLanes(&e, mask(k.loadUnaligned(s, 0)), 0, align); err != nil {
			return err
		}
		cur = align
	}

	for cur <= end-4*width {
		ea := masking[K, V, P, M](k, m, k.loadAligned(s, cur))
		eb := masking[K, V, P, M](k, m, k.loadAligned(s, cur+width))
		ec := masking[K, V, P, M](k, m, k.loadAligned(s, cur+2*width))
		ed := masking[K, V, P, M](k, m, k.loadAligned(s, cur+3*width))

		if k.willHaveNonzero(k.or(k.or(ea, eb), k.or(ec, ed))) {
			for i, p := range [4]P{ea, eb, ec, ed} {
				if err := emitLanes(&e, k.movemask(p), cur+i*width, width); err != nil {
					return err
				}
			}
		}
		cur += 4 * width
	}

	for cur <= end-width {
		if err := emitLanes(&e, mask(k.loadAligned(s, cur)), cur, width); err != nil {
			return err
		}
		cur += width
	}

	if cur < end {
		rest := width - (end - cur)
		if err := emitLanes(&e, mask(k.loadUnaligned(s, cur-rest)).shr(rest), cur, width); err != nil {
			return err
		}
	}

	return e.flush()
}
