package escapist

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// Writer is an io.WriteCloser that escapes everything written to it.
// Replacement is per byte, so Write may be called with any split of the
// input, including one that cuts a UTF-8 sequence.
type Writer struct {
	e  *Escaper
	bw *bufio.Writer

	written int64

	writeMu sync.Mutex
}

// NewWriter returns a new [Writer] writing the escaped input to w. Output is
// buffered; it is the caller's responsibility to call Close when done.
func (e *Escaper) NewWriter(w io.Writer) *Writer {
	ew := &Writer{
		e:  e,
		bw: bufio.NewWriterSize(w, e.bufSize),
	}
	return ew
}

// Reset discards the [Writer]'s state and unflushed output and makes it
// write to w instead. This permits reusing a [Writer] rather than
// allocating a new one.
func (w *Writer) Reset(dst io.Writer) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.bw == nil {
		w.bw = bufio.NewWriterSize(dst, w.e.bufSize)
	} else {
		w.bw.Reset(dst)
	}
	w.written = 0
}

var errWriterNil = errors.New("writer is closed")

// Write escapes p to the underlying writer. It reports len(p) on success.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.bw == nil {
		return 0, errWriterNil
	}

	cw := countingWriter{w: w.bw}
	err = w.e.EscapeBytes(p, &cw)
	w.written += cw.n
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString is Write for a string.
func (w *Writer) WriteString(s string) (n int, err error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.bw == nil {
		return 0, errWriterNil
	}

	cw := countingWriter{w: w.bw}
	err = w.e.Escape(s, &cw)
	w.written += cw.n
	if err != nil {
		return 0, err
	}
	return len(s), nil
}

// Written returns the number of escaped bytes produced since the last Reset.
func (w *Writer) Written() int64 {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.written
}

// Flush writes any buffered output to the underlying writer.
func (w *Writer) Flush() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.bw == nil {
		return errWriterNil
	}
	return w.bw.Flush()
}

// Close flushes pending output. It is an error to call Write after Close.
// Close does not close the underlying writer.
func (w *Writer) Close() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.bw == nil {
		return errWriterNil
	}
	defer func() { w.bw = nil }()

	return w.bw.Flush()
}
