package escapist

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// Rule maps a single ASCII byte to the string written in its place.
type Rule struct {
	Byte        byte
	Replacement string
}

var (
	// ErrEmptyRuleSet is returned when there are no rules to compile.
	ErrEmptyRuleSet = errors.New("rule set is empty")
	// ErrDuplicateByte is returned when two rules share a byte.
	ErrDuplicateByte = errors.New("duplicate byte")
	// ErrByteOutOfRange is returned for a rule byte above 0x7f.
	ErrByteOutOfRange = errors.New("byte is outside the ASCII range")
	// ErrMalformedPair is returned by ParseRules for a line it cannot read.
	ErrMalformedPair = errors.New("malformed rule")
	// ErrInvalidReplacement is returned when a replacement is not valid UTF-8.
	ErrInvalidReplacement = errors.New("replacement is not valid UTF-8")
)

// RuleError reports the rule that failed to compile.
type RuleError struct {
	Line int // 1-based line of the rule for ParseRules, 0 otherwise
	Byte byte
	Err  error
}

func (e *RuleError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[escapist] line %d: %v", e.Line, e.Err)
	}
	if errors.Is(e.Err, ErrEmptyRuleSet) {
		return fmt.Sprintf("[escapist] %v", e.Err)
	}
	return fmt.Sprintf("[escapist] byte %#02x: %v", e.Byte, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// maxRules is the size of the ASCII alphabet; position entries must be able
// to hold it as the "no rule" sentinel.
const maxRules = 128

// RuleSet is an immutable, compiled set of rules.
//
// position maps every byte to the ordinal of its rule, or to n when the byte
// has no rule; quote holds the replacement for each ordinal.
type RuleSet struct {
	rules    []Rule // sorted ascending by Byte
	position [256]uint8
	quote    []string
	n        int
	longest  int
	sw       Switch
}

// Compile validates rules and builds the lookup tables and the vector
// classifier shape for them. The order of rules does not matter.
func Compile(rules ...Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, &RuleError{Err: ErrEmptyRuleSet}
	}

	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b Rule) int {
		return int(a.Byte) - int(b.Byte)
	})

	for i, r := range sorted {
		if r.Byte >= maxRules {
			return nil, &RuleError{Byte: r.Byte, Err: ErrByteOutOfRange}
		}
		if i > 0 && sorted[i-1].Byte == r.Byte {
			return nil, &RuleError{Byte: r.Byte, Err: ErrDuplicateByte}
		}
		if !utf8.ValidString(r.Replacement) {
			return nil, &RuleError{Byte: r.Byte, Err: ErrInvalidReplacement}
		}
	}

	rs := &RuleSet{
		rules: sorted,
		quote: make([]string, len(sorted)),
		n:     len(sorted),
	}
	for i := range rs.position {
		rs.position[i] = uint8(rs.n)
	}

	chars := make([]byte, len(sorted))
	for i, r := range sorted {
		rs.position[r.Byte] = uint8(i)
		rs.quote[i] = r.Replacement
		rs.longest = max(rs.longest, len(r.Replacement))
		chars[i] = r.Byte
	}
	rs.sw = compileSwitch(chars)

	return rs, nil
}

// MustCompile is like Compile but panics if the rules are invalid.
// It simplifies initialisation of package-level escapers.
func MustCompile(rules ...Rule) *RuleSet {
	rs, err := Compile(rules...)
	if err != nil {
		panic(err)
	}
	return rs
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return rs.n
}

// Rules returns a copy of the rules sorted by byte.
func (rs *RuleSet) Rules() []Rule {
	return slices.Clone(rs.rules)
}

// Switch returns the classifier shape chosen for the rule bytes.
func (rs *RuleSet) Switch() Switch {
	return rs.sw
}

// NeedsEscape reports whether b has a rule.
func (rs *RuleSet) NeedsEscape(b byte) bool {
	return int(rs.position[b]) < rs.n
}

// EscapeOf returns the replacement for b.
func (rs *RuleSet) EscapeOf(b byte) (string, bool) {
	p := int(rs.position[b])
	if p >= rs.n {
		return "", false
	}
	return rs.quote[p], true
}

// Longest returns the length of the longest replacement.
func (rs *RuleSet) Longest() int {
	return rs.longest
}
