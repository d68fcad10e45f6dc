//go:build goexperiment.simd && amd64

package escapist

import (
	randv2 "math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomRuleSet picks n distinct ASCII bytes with short replacements.
func randomRuleSet(rng *randv2.Rand, n int) *RuleSet {
	perm := rng.Perm(maxRules)[:n]
	rules := make([]Rule, n)
	for i, b := range perm {
		rules[i] = Rule{byte(b), strings.Repeat("#", 1+i%3)}
	}
	return MustCompile(rules...)
}

func TestIntrinsicLanes(t *testing.T) {
	if !useAVX {
		t.Skip("AVX not available")
	}

	var all strings.Builder
	for c := range 256 {
		all.WriteByte(byte(c))
	}
	input := all.String()

	rng := randv2.New(randv2.NewPCG(17, 18))
	sets := []*RuleSet{HTML.Rules(), JSON.Rules(), LaTeX.Rules(), Shell.Rules()}
	for _, n := range []int{1, 2, 3, 5, 16, 40, 128} {
		sets = append(sets, randomRuleSet(rng, n))
	}

	check := func(t *testing.T, rs *RuleSet, width int, lanes func(s string, i int) uint32) {
		for i := 0; i+width <= len(input); i += width {
			bits := lanes(input, i)
			for l := range width {
				c := input[i+l]
				set := bits&(1<<l) != 0
				if rs.NeedsEscape(c) {
					require.True(t, set, "%v: byte %#x not flagged", rs.sw, c)
				} else if !rs.sw.FalsePositive {
					require.False(t, set, "%v: byte %#x flagged", rs.sw, c)
				}
				require.Equal(t, rs.sw.Matches(c), set, "%v: byte %#x", rs.sw, c)
			}
		}
	}

	for _, rs := range sets {
		m16 := newSSE2Switch(rs.sw)
		check(t, rs, 16, func(s string, i int) uint32 { return uint32(m16.lanes(s, i)) })

		if useAVX2 {
			m32 := newAVX2Switch(rs.sw)
			check(t, rs, 32, func(s string, i int) uint32 { return uint32(m32.lanes(s, i)) })
		}
	}
}

func TestIntrinsicEquivalence(t *testing.T) {
	if !useAVX {
		t.Skip("AVX not available")
	}

	rng := randv2.New(randv2.NewPCG(19, 20))
	raw := make([]byte, 2048)
	for i := range raw {
		raw[i] = byte(rng.Uint32())
	}
	base := randomText(rng, 2048) + string(raw)

	kernels := []Kernel{KernelSSE2}
	if useAVX2 {
		kernels = append(kernels, KernelAVX2)
	}
	require.True(t, slices.Contains(Kernels(), KernelSSE2))

	for range 200 {
		rs := randomRuleSet(rng, 1+rng.IntN(maxRules))
		for _, k := range kernels {
			e := MustNew(rs, WithKernel(k))
			for range 10 {
				off := rng.IntN(64)
				n := rng.IntN(len(base) - off)
				in := base[off : off+n]
				require.Equal(t, reference(rs, in), e.String(in), "%v %v offset %d length %d", k, rs.sw, off, n)
			}
		}
	}
}
