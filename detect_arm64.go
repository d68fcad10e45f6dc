//go:build arm64

package escapist

// NEON is mandatory on arm64.
func detect() Kernel {
	return KernelNEON
}
