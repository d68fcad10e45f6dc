//go:build amd64

package escapist

import (
	"golang.org/x/sys/cpu"
)

// SSE2 is part of the amd64 baseline.
func detect() Kernel {
	if cpu.X86.HasAVX2 && runnable(KernelAVX2) {
		return KernelAVX2
	}
	return KernelSSE2
}
