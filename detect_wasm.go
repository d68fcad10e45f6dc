//go:build wasm

package escapist

func detect() Kernel {
	return KernelWASM
}
