// Package main provides the escapist command, which escapes text with one of
// the preset rule sets or a rule file.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mnightingale/escapist"
	"github.com/pierrec/lz4/v4"
)

const Version = "0.3.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	switch args[0] {
	case "escape":
		return runEscape(ctx, args[1:], stdin, stdout, stderr)
	case "kernels":
		return runKernels(stdout)
	case "version":
		fmt.Fprintf(stdout, "escapist v%s (%s)\n", Version, escapist.Detected())
		return 0
	case "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `escapist - byte escaping with vectorised scanning

Usage:
    escapist <command> [arguments]

Commands:
    escape   Escape input with a preset or a rule file
    kernels  List scanner kernels available on this CPU
    version  Show version
    help     Show this help

Presets: %s

Use "escapist escape -help" for command-specific options.
`, strings.Join(escapist.Presets(), ", "))
}

func runKernels(stdout io.Writer) int {
	detected := escapist.Detected()
	for _, k := range escapist.Kernels() {
		mark := " "
		if k == detected {
			mark = "*"
		}
		fmt.Fprintf(stdout, "%s %-6s width=%d\n", mark, k, k.Width())
	}
	return 0
}

type escapeConfig struct {
	preset  string
	rules   string
	input   string
	output  string
	lz4     bool
	workers int
	kernel  string
	verbose bool
}

func runEscape(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("escape", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cfg escapeConfig
	fs.StringVar(&cfg.preset, "preset", "html", "Preset rule set ("+strings.Join(escapist.Presets(), ", ")+")")
	fs.StringVar(&cfg.rules, "rules", "", "Rule file; overrides -preset")
	fs.StringVar(&cfg.input, "in", "", "Input file (default stdin)")
	fs.StringVar(&cfg.output, "out", "", "Output file (default stdout)")
	fs.BoolVar(&cfg.lz4, "lz4", false, "Compress output as an LZ4 frame")
	fs.IntVar(&cfg.workers, "workers", 1, "Escape in parallel on N goroutines (0 = all CPUs)")
	fs.StringVar(&cfg.kernel, "kernel", "auto", "Scanner kernel (auto, scalar, sse2, avx2, neon, wasm)")
	fs.BoolVar(&cfg.verbose, "verbose", false, "Print statistics to stderr")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if err := escape(ctx, cfg, stdin, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func loadEscaper(cfg escapeConfig) (*escapist.Escaper, error) {
	kernel, err := escapist.ParseKernel(cfg.kernel)
	if err != nil {
		return nil, err
	}

	var rs *escapist.RuleSet
	if cfg.rules != "" {
		text, err := os.ReadFile(cfg.rules)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules: %w", err)
		}
		if rs, err = escapist.ParseRules(string(text)); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.rules, err)
		}
	} else {
		preset, ok := escapist.Lookup(cfg.preset)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", cfg.preset)
		}
		rs = preset.Rules()
	}

	return escapist.New(rs, escapist.WithKernel(kernel))
}

func escape(ctx context.Context, cfg escapeConfig, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	e, err := loadEscaper(cfg)
	if err != nil {
		return err
	}

	in := stdin
	if cfg.input != "" {
		f, err := os.Open(cfg.input)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := stdout
	if cfg.output != "" {
		f, err := os.Create(cfg.output)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}

	if cfg.lz4 {
		lw := lz4.NewWriter(out)
		if err := lw.Apply(lz4.BlockSizeOption(lz4.Block64Kb)); err != nil {
			return err
		}
		defer func() {
			if cerr := lw.Close(); err == nil {
				err = cerr
			}
		}()
		out = lw
	}

	start := time.Now()
	var read, written int64

	if cfg.workers == 1 {
		cr := &countingReader{r: in}
		written, err = e.Copy(out, cr)
		read = cr.n
	} else {
		var buf bytes.Buffer
		if _, err = buf.ReadFrom(in); err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		read = int64(buf.Len())

		var escaped string
		if escaped, err = e.Parallel(ctx, buf.String(), cfg.workers); err != nil {
			return err
		}
		var n int
		n, err = io.WriteString(out, escaped)
		written = int64(n)
	}
	if err != nil {
		return err
	}

	if cfg.verbose {
		fmt.Fprintf(stderr, "kernel=%s shape=%s read=%d written=%d elapsed=%s\n",
			e.Kernel(), e.Rules().Switch(), read, written, time.Since(start))
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
