package escapist

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// Kernel names a scanner implementation, in preference order from AVX2 down
// to the portable scalar loop.
type Kernel int32

const (
	KernelAuto Kernel = iota // detect on first use
	KernelScalar
	KernelSSE2
	KernelAVX2
	KernelNEON
	KernelWASM
)

var kernelNames = [...]string{
	KernelAuto:   "auto",
	KernelScalar: "scalar",
	KernelSSE2:   "sse2",
	KernelAVX2:   "avx2",
	KernelNEON:   "neon",
	KernelWASM:   "wasm",
}

func (k Kernel) String() string {
	if k >= 0 && int(k) < len(kernelNames) {
		return kernelNames[k]
	}
	return fmt.Sprintf("Kernel(%d)", int32(k))
}

// Width returns the number of bytes the kernel classifies per vector.
func (k Kernel) Width() int {
	switch k {
	case KernelAVX2:
		return 32
	case KernelSSE2, KernelNEON, KernelWASM:
		return 16
	default:
		return 1
	}
}

var (
	// ErrUnknownKernel is returned for a kernel name or value that does not exist.
	ErrUnknownKernel = errors.New("unknown kernel")
	// ErrKernelUnavailable is returned when a forced kernel cannot run on the host.
	ErrKernelUnavailable = errors.New("kernel is not available on this CPU")
)

// ParseKernel returns the kernel with the given name.
func ParseKernel(name string) (Kernel, error) {
	for k, n := range kernelNames {
		if strings.EqualFold(name, n) {
			return Kernel(k), nil
		}
	}
	return 0, fmt.Errorf("[escapist] %q: %w", name, ErrUnknownKernel)
}

// detected caches the kernel picked for this process; KernelAuto until the
// first call to Detected. Racing detections store the same value.
var detected atomic.Int32

// Detected returns the widest kernel the host CPU supports.
func Detected() Kernel {
	if k := Kernel(detected.Load()); k != KernelAuto {
		return k
	}
	k := detect()
	detected.Store(int32(k))
	return k
}

// Kernels returns every kernel that can run on this host, scalar first.
func Kernels() []Kernel {
	var ks []Kernel
	for k := KernelScalar; int(k) < len(kernelNames); k++ {
		if runnable(k) {
			ks = append(ks, k)
		}
	}
	return ks
}
