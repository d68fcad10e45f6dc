package escapist

import (
	"bytes"
	"io"
	randv2 "math/rand/v2"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestCopy(t *testing.T) {
	rng := randv2.New(randv2.NewPCG(13, 14))
	in := randomText(rng, 300_000)
	want := LaTeX.String(in)

	for _, size := range []int{1, 64, 1000, defaultBufSize} {
		e := MustNew(LaTeX.Rules(), WithBufferSize(size))

		var buf bytes.Buffer
		n, err := e.Copy(&buf, strings.NewReader(in))
		require.NoError(t, err)
		require.Equal(t, int64(len(want)), n)
		require.Equal(t, want, buf.String())
	}

	// Short reads split the input at arbitrary bytes.
	var buf bytes.Buffer
	_, err := LaTeX.Copy(&buf, iotest.OneByteReader(strings.NewReader(in[:5000])))
	require.NoError(t, err)
	require.Equal(t, LaTeX.String(in[:5000]), buf.String())
}

func TestCopyErrors(t *testing.T) {
	_, err := HTML.Copy(io.Discard, iotest.ErrReader(errBoom))
	require.ErrorIs(t, err, errBoom)

	src := io.MultiReader(strings.NewReader("<b>"), iotest.ErrReader(errBoom))
	_, err = HTML.Copy(io.Discard, src)
	require.ErrorIs(t, err, errBoom)

	_, err = HTML.Copy(failingWriter{}, strings.NewReader(strings.Repeat("<", 1<<20)))
	require.ErrorIs(t, err, errBoom)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errBoom
}
