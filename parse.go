package escapist

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseRules compiles a rule set from its textual form, one rule per line:
//
//	# comment
//	b'"' -> "&quot;"
//	'<'  -> "&lt;"
//	0x26 -> `&amp;`
//
// The key is a character literal, optionally prefixed with b, or a hex byte.
// The replacement is a double-quoted or raw Go string literal.
func ParseRules(text string) (*RuleSet, error) {
	var (
		rules []Rule
		seen  [maxRules]int
	)

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}

		key, value, ok := strings.Cut(line, "->")
		if !ok {
			return nil, &RuleError{Line: lineNo, Err: ErrMalformedPair}
		}

		b, err := parseKey(strings.TrimSpace(key))
		if err != nil {
			return nil, &RuleError{Line: lineNo, Byte: b, Err: err}
		}
		if seen[b] != 0 {
			return nil, &RuleError{Line: lineNo, Byte: b, Err: ErrDuplicateByte}
		}
		seen[b] = lineNo

		r, err := parseReplacement(strings.TrimSpace(value))
		if err != nil {
			return nil, &RuleError{Line: lineNo, Byte: b, Err: err}
		}

		rules = append(rules, Rule{Byte: b, Replacement: r})
	}

	if len(rules) == 0 {
		return nil, &RuleError{Err: ErrEmptyRuleSet}
	}
	return Compile(rules...)
}

func parseKey(key string) (byte, error) {
	if rest, ok := strings.CutPrefix(strings.ToLower(key), "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 8)
		if err != nil {
			return 0, ErrMalformedPair
		}
		if v >= maxRules {
			return byte(v), ErrByteOutOfRange
		}
		return byte(v), nil
	}

	key = strings.TrimPrefix(key, "b")
	if len(key) < 3 || key[0] != '\'' {
		return 0, ErrMalformedPair
	}
	c, err := strconv.Unquote(key)
	if err != nil {
		return 0, ErrMalformedPair
	}
	r, size := utf8.DecodeRuneInString(c)
	if size != len(c) {
		return 0, ErrMalformedPair
	}
	if r >= maxRules {
		return 0, ErrByteOutOfRange
	}
	return byte(r), nil
}

func parseReplacement(value string) (string, error) {
	if value == "" || (value[0] != '"' && value[0] != '`') {
		return "", ErrMalformedPair
	}
	r, err := strconv.Unquote(value)
	if err != nil {
		return "", ErrMalformedPair
	}
	if !utf8.ValidString(r) {
		return "", ErrInvalidReplacement
	}
	return r, nil
}
