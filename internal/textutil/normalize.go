package textutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultMinFragmentLength is the shortest collapsed fragment, in runes, that
// IsAcceptable lets through.
const DefaultMinFragmentLength = 2

// DefaultDenylist lists caption-region chrome labels that surface as text
// fragments but never carry speech.
var DefaultDenylist = []string{
	`arrow[_-]?downward`,
	`more_vert`,
	`expand_less`,
	`settings`,
	`jump to (bottom|latest)`,
}

// Normalizer canonicalizes caption fragments and filters junk. It holds no
// mutable state after construction and is safe for concurrent use.
type Normalizer struct {
	denylist  []*regexp.Regexp
	minLength int
}

// NormalizerOptions configures a Normalizer.
type NormalizerOptions struct {
	// Denylist holds regular expressions matched against the whole collapsed
	// fragment, case-insensitively.
	Denylist []string
	// MinLength rejects fragments with fewer runes. Zero selects
	// DefaultMinFragmentLength; a negative value disables the check.
	MinLength int
}

// NewNormalizer compiles the denylist. Patterns are anchored so a label only
// matches when it is the entire fragment.
func NewNormalizer(opts NormalizerOptions) (*Normalizer, error) {
	n := &Normalizer{minLength: opts.MinLength}
	if n.minLength == 0 {
		n.minLength = DefaultMinFragmentLength
	}
	seen := make(map[string]struct{}, len(opts.Denylist))
	for _, pattern := range opts.Denylist {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, dup := seen[pattern]; dup {
			continue
		}
		seen[pattern] = struct{}{}
		re, err := regexp.Compile(`(?i)^(?:` + pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("compile denylist pattern %q: %w", pattern, err)
		}
		n.denylist = append(n.denylist, re)
	}
	return n, nil
}

// MustNormalizer is NewNormalizer for static pattern sets.
func MustNormalizer(opts NormalizerOptions) *Normalizer {
	n, err := NewNormalizer(opts)
	if err != nil {
		panic(err)
	}
	return n
}

// Canonicalize lower-cases text, drops every rune that is not a letter, digit
// or space, and collapses whitespace.
func (n *Normalizer) Canonicalize(raw string) string {
	return Canonicalize(raw)
}

// Canonicalize is the package-level form of Normalizer.Canonicalize.
func Canonicalize(raw string) string {
	if raw == "" {
		return ""
	}
	lowered := cases.Lower(language.Und).String(norm.NFC.String(raw))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return CollapseWhitespace(b.String())
}

// IsAcceptable reports whether a raw fragment is worth consolidating: it must
// contain a letter, meet the minimum length and not be a denylisted label.
func (n *Normalizer) IsAcceptable(raw string) bool {
	text := CollapseWhitespace(raw)
	if text == "" || !hasLetter(text) {
		return false
	}
	if n.minLength > 0 && utf8.RuneCountInString(text) < n.minLength {
		return false
	}
	for _, re := range n.denylist {
		if re.MatchString(text) {
			return false
		}
	}
	return true
}

// CollapseWhitespace replaces whitespace runs with a single space and trims
// both ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
