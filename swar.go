package escapist

import "math/bits"

// SWAR (SIMD within a register) lane operations on eight byte lanes packed
// little-endian into a uint64. None of them carry between lanes.
const (
	lo8  = 0x0101010101010101
	hi8  = 0x8080808080808080
	low7 = 0x7f7f7f7f7f7f7f7f

	// movemaskMagic gathers bit 8i+7 of a word into bit 56+i.
	movemaskMagic = 0x0002040810204081
)

func swarSplat(b byte) uint64 {
	return uint64(b) * lo8
}

// le64 reads s[i:i+8] with lane 0 at s[i] regardless of host byte order.
func le64(s string, i int) uint64 {
	_ = s[i+7]
	return uint64(s[i]) | uint64(s[i+1])<<8 | uint64(s[i+2])<<16 | uint64(s[i+3])<<24 |
		uint64(s[i+4])<<32 | uint64(s[i+5])<<40 | uint64(s[i+6])<<48 | uint64(s[i+7])<<56
}

// widen turns lane high bits into full 0xff lanes.
func widen(h uint64) uint64 {
	return (h >> 7) * 0xff
}

func swarAdd(a, b uint64) uint64 {
	return ((a & low7) + (b & low7)) ^ ((a ^ b) & hi8)
}

func swarEq(a, b uint64) uint64 {
	x := a ^ b
	nonzero := ((x & low7) + low7) | x
	return widen(^nonzero & hi8)
}

// swarGt is the signed a > b, computed as the unsigned x < y on lanes with
// the sign bit flipped.
func swarGt(a, b uint64) uint64 {
	x, y := b^hi8, a^hi8
	z := (x | hi8) - (y & low7)
	lt := (^x & y) | (^(x ^ y) & ^z)
	return widen(lt & hi8)
}

func swarMovemask(v uint64) uint64 {
	return ((v & hi8) * movemaskMagic) >> 56
}

// swarNibbles spreads lane high bits into one 0xf nibble per lane.
func swarNibbles(v uint64) uint64 {
	x := ((v & hi8) >> 7) * 0x0f
	x = (x | x>>4) & 0x00ff00ff00ff00ff
	x = (x | x>>8) & 0x0000ffff0000ffff
	x = (x | x>>16) & 0x00000000ffffffff
	return x
}

type (
	vec16 [2]uint64
	vec32 [4]uint64
)

// mask16 and mask32 keep one bit per lane.
type (
	mask16 uint32
	mask32 uint32
)

func (m mask16) nonzero() bool { return m != 0 }
func (m mask16) firstOffset() int { return bits.TrailingZeros32(uint32(m)) }
func (m mask16) clearLowBit() mask16 { return m & (m - 1) }
func (m mask16) shr(k int) mask16 { return m >> k }

func (m mask32) nonzero() bool { return m != 0 }
func (m mask32) firstOffset() int { return bits.TrailingZeros32(uint32(m)) }
func (m mask32) clearLowBit() mask32 { return m & (m - 1) }
func (m mask32) shr(k int) mask32 { return m >> k }

// nibbleMask keeps four bits per lane, the layout a NEON shift-right-narrow
// of a comparison result produces.
type nibbleMask uint64

func (m nibbleMask) nonzero() bool { return m != 0 }
func (m nibbleMask) firstOffset() int { return bits.TrailingZeros64(uint64(m)) / 4 }

func (m nibbleMask) clearLowBit() nibbleMask {
	return m &^ (0xf << (bits.TrailingZeros64(uint64(m)) &^ 3))
}

func (m nibbleMask) shr(k int) nibbleMask { return m >> (4 * k) }

// swar16 is a 16-lane kernel with a one-bit-per-lane mask.
type swar16 struct{}

func (swar16) width() int { return 16 }

func (swar16) splat(b byte) vec16 {
	w := swarSplat(b)
	return vec16{w, w}
}

func (swar16) loadAligned(s string, i int) vec16 { return vec16{le64(s, i), le64(s, i+8)} }
func (swar16) loadUnaligned(s string, i int) vec16 { return vec16{le64(s, i), le64(s, i+8)} }

func (swar16) cmpeq(a, b vec16) vec16 { return vec16{swarEq(a[0], b[0]), swarEq(a[1], b[1])} }
func (swar16) gt(a, b vec16) vec16 { return vec16{swarGt(a[0], b[0]), swarGt(a[1], b[1])} }
func (swar16) add(a, b vec16) vec16 { return vec16{swarAdd(a[0], b[0]), swarAdd(a[1], b[1])} }
func (swar16) or(a, b vec16) vec16 { return vec16{a[0] | b[0], a[1] | b[1]} }

func (swar16) movemask(p vec16) mask16 {
	return mask16(swarMovemask(p[0]) | swarMovemask(p[1])<<8)
}

func (k swar16) willHaveNonzero(p vec16) bool {
	return k.movemask(p) != 0
}

// neon16 is swar16 with the NEON mask layout and a folded any-lane test.
type neon16 struct {
	swar16
}

func (neon16) movemask(p vec16) nibbleMask {
	return nibbleMask(swarNibbles(p[0]) | swarNibbles(p[1])<<32)
}

func (neon16) willHaveNonzero(p vec16) bool {
	return (p[0]|p[1])&hi8 != 0
}

// swar32 is a 32-lane kernel with a one-bit-per-lane mask.
type swar32 struct{}

func (swar32) width() int { return 32 }

func (swar32) splat(b byte) vec32 {
	w := swarSplat(b)
	return vec32{w, w, w, w}
}

func (swar32) loadAligned(s string, i int) vec32 {
	return vec32{le64(s, i), le64(s, i+8), le64(s, i+16), le64(s, i+24)}
}

func (swar32) loadUnaligned(s string, i int) vec32 {
	return vec32{le64(s, i), le64(s, i+8), le64(s, i+16), le64(s, i+24)}
}

func (swar32) cmpeq(a, b vec32) (r vec32) {
	for i := range r {
		r[i] = swarEq(a[i], b[i])
	}
	return r
}

func (swar32) gt(a, b vec32) (r vec32) {
	for i := range r {
		r[i] = swarGt(a[i], b[i])
	}
	return r
}

func (swar32) add(a, b vec32) (r vec32) {
	for i := range r {
		r[i] = swarAdd(a[i], b[i])
	}
	return r
}

func (swar32) or(a, b vec32) vec32 {
	return vec32{a[0] | b[0], a[1] | b[1], a[2] | b[2], a[3] | b[3]}
}

func (swar32) movemask(p vec32) mask32 {
	return mask32(swarMovemask(p[0]) | swarMovemask(p[1])<<8 | swarMovemask(p[2])<<16 | swarMovemask(p[3])<<24)
}

func (k swar32) willHaveNonzero(p vec32) bool {
	return k.movemask(p) != 0
}
