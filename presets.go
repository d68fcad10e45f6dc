package escapist

import (
	"fmt"
	"strings"
)

// Escapers for common output contexts.
var (
	HTML = MustNew(MustCompile(
		Rule{'"', "&quot;"},
		Rule{'&', "&amp;"},
		Rule{'\'', "&#x27;"},
		Rule{'/', "&#x2f;"},
		Rule{'<', "&lt;"},
		Rule{'>', "&gt;"},
	))

	// JSON escapes the inside of a JSON string.
	JSON = MustNew(MustCompile(jsonRules()...))

	LaTeX = MustNew(MustCompile(
		Rule{'#', `\#`},
		Rule{'$', `\$`},
		Rule{'%', `\%`},
		Rule{'&', `\&`},
		Rule{'\\', `\textbackslash{}`},
		Rule{'^', `\textasciicircum{}`},
		Rule{'_', `\_`},
		Rule{'{', `\{`},
		Rule{'}', `\}`},
		Rule{'~', `\textasciitilde{}`},
	))

	// Shell escapes the inside of a double-quoted POSIX shell word.
	Shell = MustNew(MustCompile(
		Rule{'"', `\"`},
		Rule{'$', `\$`},
		Rule{'\\', `\\`},
		Rule{'`', "\\`"},
	))
)

func jsonRules() []Rule {
	rules := []Rule{
		{'"', `\"`},
		{'\\', `\\`},
	}
	for c := byte(0); c < 0x20; c++ {
		var r string
		switch c {
		case '\b':
			r = `\b`
		case '\f':
			r = `\f`
		case '\n':
			r = `\n`
		case '\r':
			r = `\r`
		case '\t':
			r = `\t`
		default:
			r = fmt.Sprintf(`\u%04x`, c)
		}
		rules = append(rules, Rule{c, r})
	}
	return rules
}

var presets = map[string]*Escaper{
	"html":  HTML,
	"json":  JSON,
	"latex": LaTeX,
	"shell": Shell,
}

// Lookup returns the preset escaper with the given name.
func Lookup(name string) (*Escaper, bool) {
	e, ok := presets[strings.ToLower(name)]
	return e, ok
}

// Presets returns the names accepted by Lookup.
func Presets() []string {
	return []string{"html", "json", "latex", "shell"}
}
