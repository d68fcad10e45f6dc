package escapist

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"unsafe"
)

type escapeFunc func(s string, w io.StringWriter) error

type bound struct {
	kernel Kernel
	fn     escapeFunc
}

// Escaper replaces every byte of its rule set with the rule's replacement.
// It is safe for concurrent use; the writer passed to each call is not shared.
type Escaper struct {
	rules   *RuleSet
	kernel  Kernel
	bufSize int

	// entry is nil until the first call, then the scanner bound to the
	// kernel. Concurrent first calls bind equivalent scanners.
	entry atomic.Pointer[bound]
}

// Option configures an Escaper.
type Option func(e *Escaper)

// WithKernel forces the scanner implementation instead of detecting it.
func WithKernel(k Kernel) Option {
	return func(e *Escaper) {
		e.kernel = k
	}
}

// WithBufferSize sets the buffer size used by Copy and Writer.
func WithBufferSize(size int) Option {
	return func(e *Escaper) {
		e.bufSize = size
	}
}

const defaultBufSize = 32 * 1024

// New returns an [Escaper] for rs.
func New(rs *RuleSet, opts ...Option) (*Escaper, error) {
	e := &Escaper{
		rules:   rs,
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.kernel < KernelAuto || int(e.kernel) >= len(kernelNames) {
		return nil, fmt.Errorf("[escapist] %v: %w", e.kernel, ErrUnknownKernel)
	}
	if e.kernel != KernelAuto && !runnable(e.kernel) {
		return nil, fmt.Errorf("[escapist] %v: %w", e.kernel, ErrKernelUnavailable)
	}
	if e.bufSize <= 0 {
		return nil, fmt.Errorf("[escapist] buffer size %d must be positive", e.bufSize)
	}

	return e, nil
}

// MustNew is like New but panics on error.
func MustNew(rs *RuleSet, opts ...Option) *Escaper {
	e, err := New(rs, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func bind(k Kernel, rs *RuleSet) escapeFunc {
	switch k {
	case KernelAVX2:
		return bindAVX2(rs)
	case KernelSSE2:
		return bindSSE2(rs)
	case KernelNEON:
		return bindWith[neon16, vec16, vec16, nibbleMask](neon16{}, rs)
	case KernelWASM:
		return bindWith[swar16, vec16, vec16, mask16](swar16{}, rs)
	default:
		return rs.scanScalar
	}
}

func bindWith[K isa[V, P, M], V, P any, M lanes[M]](k K, rs *RuleSet) escapeFunc {
	m := newMatcher[K, V, P, M](k, rs.sw)
	return func(s string, w io.StringWriter) error {
		return scan[K, V, P, M](k, m, rs, s, w)
	}
}

func (e *Escaper) resolve() *bound {
	if b := e.entry.Load(); b != nil {
		return b
	}
	k := e.kernel
	if k == KernelAuto {
		k = Detected()
	}
	b := &bound{kernel: k, fn: bind(k, e.rules)}
	e.entry.Store(b)
	return b
}

// Escape writes s to w with every rule byte replaced. w sees literal
// substrings of s and replacement strings, in order; the first error it
// returns stops the scan and is returned unchanged.
func (e *Escaper) Escape(s string, w io.StringWriter) error {
	return e.resolve().fn(s, w)
}

// EscapeBytes is Escape over a byte slice. The strings passed to w alias b
// and must not be retained past the call if b is modified afterwards.
func (e *Escaper) EscapeBytes(b []byte, w io.StringWriter) error {
	return e.Escape(unsafe.String(unsafe.SliceData(b), len(b)), w)
}

// Kernel returns the kernel the Escaper runs, detecting it if needed.
func (e *Escaper) Kernel() Kernel {
	return e.resolve().kernel
}

// Rules returns the compiled rule set.
func (e *Escaper) Rules() *RuleSet {
	return e.rules
}

// NeedsEscape reports whether b has a rule.
func (e *Escaper) NeedsEscape(b byte) bool {
	return e.rules.NeedsEscape(b)
}

// EscapeOf returns the replacement for b, if it has one.
func (e *Escaper) EscapeOf(b byte) (string, bool) {
	return e.rules.EscapeOf(b)
}

// MaxLength returns the largest possible escaped length of n input bytes.
func (e *Escaper) MaxLength(n int) int {
	return n * max(1, e.rules.longest)
}

// String returns the escaped form of s. When nothing needs escaping s itself
// is returned without copying.
func (e *Escaper) String(s string) string {
	var sink builderSink
	_ = e.Escape(s, &sink) // building a string cannot fail
	return sink.String()
}

// Append appends the escaped form of s to dst.
func (e *Escaper) Append(dst []byte, s string) []byte {
	sink := appendSink(dst)
	_ = e.Escape(s, &sink)
	return sink
}

// WriteTo writes the escaped form of s to w and returns the number of bytes
// written.
func (e *Escaper) WriteTo(w io.Writer, s string) (int64, error) {
	cw := countingWriter{w: stringWriter(w)}
	err := e.Escape(s, &cw)
	return cw.n, err
}

// builderSink keeps the first write as is, so a single-write result (the
// unmodified input, or one replacement) needs no copy.
type builderSink struct {
	b     strings.Builder
	first string
	calls int
}

func (s *builderSink) WriteString(v string) (int, error) {
	s.calls++
	switch s.calls {
	case 1:
		s.first = v
		return len(v), nil
	case 2:
		s.b.Grow(2 * (len(s.first) + len(v)))
		s.b.WriteString(s.first)
	}
	return s.b.WriteString(v)
}

func (s *builderSink) String() string {
	if s.calls <= 1 {
		return s.first
	}
	return s.b.String()
}

type appendSink []byte

func (s *appendSink) WriteString(v string) (int, error) {
	*s = append(*s, v...)
	return len(v), nil
}

// WriterFunc adapts a function to io.StringWriter.
type WriterFunc func(s string) error

func (f WriterFunc) WriteString(s string) (int, error) {
	if err := f(s); err != nil {
		return 0, err
	}
	return len(s), nil
}

// stringWriter returns w as an io.StringWriter without copying when it
// already is one.
func stringWriter(w io.Writer) io.StringWriter {
	if sw, ok := w.(io.StringWriter); ok {
		return sw
	}
	return WriterFunc(func(s string) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

type countingWriter struct {
	w io.StringWriter
	n int64
}

func (c *countingWriter) WriteString(s string) (int, error) {
	n, err := c.w.WriteString(s)
	c.n += int64(n)
	return n, err
}
