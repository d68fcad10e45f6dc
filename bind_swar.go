//go:build !(goexperiment.simd && amd64)

package escapist

// Without archsimd every vector kernel is SWAR and runs on any CPU.
func runnable(Kernel) bool {
	return true
}

func bindAVX2(rs *RuleSet) escapeFunc {
	return bindWith[swar32, vec32, vec32, mask32](swar32{}, rs)
}

func bindSSE2(rs *RuleSet) escapeFunc {
	return bindWith[swar16, vec16, vec16, mask16](swar16{}, rs)
}
