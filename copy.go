package escapist

import (
	"bufio"
	"errors"
	"io"
)

// readBuffer is a fixed window that src is read into. Escaping needs no
// state across windows, so every read is escaped and dropped immediately.
type readBuffer struct {
	buf []byte
}

func (rb *readBuffer) init(size int) {
	if len(rb.buf) < size {
		rb.buf = make([]byte, size)
	}
}

// feedUntilEOF reads src window by window and hands each one to feed.
func (rb *readBuffer) feedUntilEOF(src io.Reader, feed func([]byte) error) error {
	for {
		n, err := src.Read(rb.buf)
		if n > 0 {
			if ferr := feed(rb.buf[:n]); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Copy escapes src into dst until EOF and returns the number of escaped
// bytes written.
func (e *Escaper) Copy(dst io.Writer, src io.Reader) (written int64, err error) {
	var rb readBuffer
	rb.init(e.bufSize)

	bw := bufio.NewWriterSize(dst, e.bufSize)
	cw := countingWriter{w: bw}

	err = rb.feedUntilEOF(src, func(p []byte) error {
		return e.EscapeBytes(p, &cw)
	})
	if err != nil {
		return cw.n, err
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}
