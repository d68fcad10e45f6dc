//go:build !amd64 && !arm64 && !wasm

package escapist

// No vector unit we know how to use.
func detect() Kernel {
	return KernelScalar
}
