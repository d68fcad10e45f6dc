package escapist

import (
	"bytes"
	"errors"
	randv2 "math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// reference escapes s one byte at a time straight from the rules.
func reference(rs *RuleSet, s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if q, ok := rs.EscapeOf(s[i]); ok {
			b.WriteString(q)
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// forEachKernel runs f with an escaper over rs for every kernel on the host.
func forEachKernel(t *testing.T, rs *RuleSet, f func(t *testing.T, e *Escaper)) {
	for _, k := range Kernels() {
		t.Run(k.String(), func(t *testing.T) {
			e, err := New(rs, WithKernel(k))
			require.NoError(t, err)
			require.Equal(t, k, e.Kernel())
			f(t, e)
		})
	}
}

func escapeString(t *testing.T, e *Escaper, s string) string {
	var b strings.Builder
	require.NoError(t, e.Escape(s, &b))
	return b.String()
}

func TestEscapeHTML(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"only escapes", "<&>", "&lt;&amp;&gt;"},
		{"long run", ">" + strings.Repeat("foobar", 100) + "<", "&gt;" + strings.Repeat("foobar", 100) + "&lt;"},
		{"script",
			`<script>alert("Hello & 'World'")</script>`,
			`&lt;script&gt;alert(&quot;Hello &amp; &#x27;World&#x27;&quot;)&lt;&#x2f;script&gt;`},
		{"false positive bytes", strings.Repeat("#$%()*+,-.0123456789:;=?", 10), strings.Repeat("#$%()*+,-.0123456789:;=?", 10)},
	}

	forEachKernel(t, HTML.Rules(), func(t *testing.T, e *Escaper) {
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				require.Equal(t, tc.expected, escapeString(t, e, tc.input))
				require.Equal(t, tc.expected, e.String(tc.input))
			})
		}
	})
}

func TestEscapeSingleton(t *testing.T) {
	rs := MustCompile(Rule{'a', "foo"})

	forEachKernel(t, rs, func(t *testing.T, e *Escaper) {
		require.Equal(t, "foo🚀foo", e.String("a🚀a"))
		require.Equal(t, strings.Repeat("foo", 64), e.String(strings.Repeat("a", 64)))
		require.Equal(t, strings.Repeat("foo", 10000), e.String(strings.Repeat("a", 10000)))
	})
}

func TestPresets(t *testing.T) {
	cases := []struct {
		e        *Escaper
		input    string
		expected string
	}{
		{JSON, "say \"hi\"\n\tto C:\\ \x01\x1f é", `say \"hi\"\n\tto C:\\ \u0001\u001f é`},
		{LaTeX, `50% of $x_1$ & {y} ~ a^2 \ b`, `50\% of \$x\_1\$ \& \{y\} \textasciitilde{} a\textasciicircum{}2 \textbackslash{} b`},
		{Shell, "echo \"$HOME\" `id` \\n", "echo \\\"\\$HOME\\\" \\`id\\` \\\\n"},
	}

	for _, tc := range cases {
		t.Run(tc.e.Rules().Switch().String(), func(t *testing.T) {
			forEachKernel(t, tc.e.Rules(), func(t *testing.T, e *Escaper) {
				// Padding moves the input through every scan phase.
				for _, pad := range []int{0, 7, 40, 200} {
					p := strings.Repeat("x", pad)
					require.Equal(t, p+tc.expected+p, e.String(p+tc.input+p))
				}
			})
		})
	}

	for _, name := range Presets() {
		e, ok := Lookup(strings.ToUpper(name))
		require.True(t, ok, name)
		require.NotNil(t, e)
	}
	_, ok := Lookup("yaml")
	require.False(t, ok)
}

// randomText mixes rule bytes, bytes the ranges over-cover, ASCII and
// multi-byte UTF-8.
func randomText(rng *randv2.Rand, n int) string {
	alphabet := []string{"a", "b", " ", "<", ">", "&", "\"", "'", "/", "=", "#", "\\", "\n", "\x00", "\x1f", "é", "🚀", "中", "]", "|", "~"}
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(alphabet[rng.IntN(len(alphabet))])
	}
	return b.String()
}

func TestKernelEquivalence(t *testing.T) {
	rng := randv2.New(randv2.NewChaCha8([32]byte(bytes.Repeat([]byte{0xBA, 0xAD, 0xF0, 0x0D}, 8))))

	inputs := []string{randomText(rng, 4<<20)}
	for range 200 {
		inputs = append(inputs, randomText(rng, rng.IntN(600)))
	}

	for _, preset := range []*Escaper{HTML, JSON, LaTeX, Shell} {
		rs := preset.Rules()
		want := make([]string, len(inputs))
		for i, in := range inputs {
			want[i] = reference(rs, in)
		}
		forEachKernel(t, rs, func(t *testing.T, e *Escaper) {
			for i, in := range inputs {
				require.Equal(t, want[i], e.String(in))
			}
		})
	}
}

// TestBoundaries feeds lengths around multiples of the vector width, starting
// at every alignment.
func TestBoundaries(t *testing.T) {
	rng := randv2.New(randv2.NewPCG(3, 4))
	base := randomText(rng, 1024)

	forEachKernel(t, HTML.Rules(), func(t *testing.T, e *Escaper) {
		w := max(e.Kernel().Width(), 16)
		var lengths []int
		for _, m := range []int{1, 2, 4} {
			lengths = append(lengths, m*w-1, m*w, m*w+1)
		}
		lengths = append(lengths, 0, 1, 5*w+3, 9*w-1)

		for off := range 2 * w {
			for _, n := range lengths {
				in := base[off : off+n]
				require.Equal(t, reference(HTML.Rules(), in), e.String(in), "offset %d length %d", off, n)
			}
		}

		// Escapes on every lane position.
		for n := range 5 * w {
			in := strings.Repeat("<", n)
			require.Equal(t, strings.Repeat("&lt;", n), e.String(in))
		}
	})
}

func TestIdentityAndLength(t *testing.T) {
	rng := randv2.New(randv2.NewPCG(5, 6))

	forEachKernel(t, HTML.Rules(), func(t *testing.T, e *Escaper) {
		plain := strings.Repeat("plain text, no markup here: ü ß 🚀 ", 50)
		require.Equal(t, plain, e.String(plain))

		in := randomText(rng, 5000)
		want := len(in)
		for i := 0; i < len(in); i++ {
			if q, ok := e.EscapeOf(in[i]); ok {
				want += len(q) - 1
			}
		}
		out := e.String(in)
		require.Len(t, out, want)
		require.LessOrEqual(t, len(out), e.MaxLength(len(in)))
	})
}

type recordingWriter struct {
	calls []string
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.calls = append(w.calls, s)
	return len(s), nil
}

func TestWriterContract(t *testing.T) {
	rng := randv2.New(randv2.NewPCG(7, 8))
	rs := HTML.Rules()

	quotes := map[string]bool{}
	for _, r := range rs.Rules() {
		quotes[r.Replacement] = true
	}

	forEachKernel(t, rs, func(t *testing.T, e *Escaper) {
		for range 50 {
			in := randomText(rng, rng.IntN(300))

			var w recordingWriter
			require.NoError(t, e.Escape(in, &w))

			out := strings.Join(w.calls, "")
			require.Equal(t, reference(rs, in), out)

			rest := in
			for _, c := range w.calls {
				require.NotEmpty(t, c)
				if strings.HasPrefix(rest, c) && !quotes[c] {
					rest = rest[len(c):]
					continue
				}
				require.True(t, quotes[c], "%q is neither a literal run nor a replacement", c)
				require.True(t, rs.NeedsEscape(rest[0]))
				rest = rest[1:]
			}
			require.Empty(t, rest)
		}
	})
}

var errBoom = errors.New("boom")

func TestWriterErrorShortCircuits(t *testing.T) {
	in := strings.Repeat(`<a href="x">y</a> `, 40)

	forEachKernel(t, HTML.Rules(), func(t *testing.T, e *Escaper) {
		var total recordingWriter
		require.NoError(t, e.Escape(in, &total))

		for k := 1; k <= len(total.calls); k++ {
			calls := 0
			err := e.Escape(in, WriterFunc(func(s string) error {
				calls++
				if calls == k {
					return errBoom
				}
				return nil
			}))
			require.Same(t, errBoom, err)
			require.Equal(t, k, calls)
		}
	})
}

func TestFacades(t *testing.T) {
	in := `<b>"bold" & 'brave'</b>`
	want := reference(HTML.Rules(), in)

	require.Equal(t, want, HTML.String(in))
	require.Equal(t, "prefix:"+want, string(HTML.Append([]byte("prefix:"), in)))

	var buf bytes.Buffer
	n, err := HTML.WriteTo(&buf, in)
	require.NoError(t, err)
	require.Equal(t, int64(len(want)), n)
	require.Equal(t, want, buf.String())

	var sb strings.Builder
	require.NoError(t, HTML.EscapeBytes([]byte(in), &sb))
	require.Equal(t, want, sb.String())

	// Unescaped input comes back as the same string.
	plain := "nothing to see"
	require.Equal(t, plain, HTML.String(plain))
	require.Equal(t, "&lt;", HTML.String("<"))
}

func TestNewOptions(t *testing.T) {
	_, err := New(HTML.Rules(), WithKernel(Kernel(99)))
	require.ErrorIs(t, err, ErrUnknownKernel)

	_, err = New(HTML.Rules(), WithBufferSize(0))
	require.Error(t, err)

	e, err := New(HTML.Rules())
	require.NoError(t, err)
	require.Equal(t, Detected(), e.Kernel())
	require.Contains(t, Kernels(), Detected())
	require.Equal(t, KernelScalar, Kernels()[0])

	k, err := ParseKernel("AVX2")
	require.NoError(t, err)
	require.Equal(t, KernelAVX2, k)
	_, err = ParseKernel("sse9")
	require.ErrorIs(t, err, ErrUnknownKernel)
}

func BenchmarkEscape(b *testing.B) {
	rng := randv2.New(randv2.NewPCG(9, 10))
	in := randomText(rng, 1<<20)

	for _, k := range Kernels() {
		e := MustNew(HTML.Rules(), WithKernel(k))
		b.Run(k.String(), func(b *testing.B) {
			var sb strings.Builder
			sb.Grow(e.MaxLength(len(in)))
			b.SetBytes(int64(len(in)))
			for b.Loop() {
				sb.Reset()
				_ = e.Escape(in, &sb)
			}
		})
	}
}
