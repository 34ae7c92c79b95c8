package transcript

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Policy defaults.
const (
	DefaultMergeWindow             = 5
	DefaultMaxMergeDistance        = 3
	DefaultMinMergeCanonicalLength = 25
	DefaultShortPhraseThreshold    = 20
)

// Policy holds the consolidation thresholds. Lengths are counted in runes.
type Policy struct {
	// MergeWindow bounds how many of the newest lines the fuzzy merge scan
	// considers.
	MergeWindow int
	// MaxMergeDistance is the edit-distance budget for a fuzzy merge.
	MaxMergeDistance int
	// MinMergeCanonicalLength requires at least one side of a merge to have a
	// longer canonical form, so short strings never match by coincidence.
	MinMergeCanonicalLength int
	// ShortPhraseThreshold marks lines at or below this length as protected.
	ShortPhraseThreshold int
	// ProtectShortPhrases enables the short/colon-labeled protection rule.
	ProtectShortPhrases bool
}

// DefaultPolicy returns the stock thresholds with protection enabled.
func DefaultPolicy() Policy {
	return Policy{
		MergeWindow:             DefaultMergeWindow,
		MaxMergeDistance:        DefaultMaxMergeDistance,
		MinMergeCanonicalLength: DefaultMinMergeCanonicalLength,
		ShortPhraseThreshold:    DefaultShortPhraseThreshold,
		ProtectShortPhrases:     true,
	}
}

// Validate rejects thresholds the engine cannot work with.
func (p Policy) Validate() error {
	var errs []error
	if p.MergeWindow < 0 {
		errs = append(errs, errors.New("merge window must be >= 0"))
	}
	if p.MaxMergeDistance < 0 {
		errs = append(errs, errors.New("max merge distance must be >= 0"))
	}
	if p.MinMergeCanonicalLength < 0 {
		errs = append(errs, errors.New("min merge canonical length must be >= 0"))
	}
	if p.ShortPhraseThreshold < 0 {
		errs = append(errs, errors.New("short phrase threshold must be >= 0"))
	}
	return errors.Join(errs...)
}

// protected reports whether display text is a short acknowledgement or a
// "Speaker: words" line. Protected lines never take part in fuzzy merges.
func (p Policy) protected(text string) bool {
	if !p.ProtectShortPhrases {
		return false
	}
	return utf8.RuneCountInString(text) <= p.ShortPhraseThreshold || strings.ContainsRune(text, ':')
}

// mergeEligible applies the length guard: one side must be long enough for an
// edit-distance match to be meaningful.
func (p Policy) mergeEligible(a, b string) bool {
	return utf8.RuneCountInString(a) > p.MinMergeCanonicalLength ||
		utf8.RuneCountInString(b) > p.MinMergeCanonicalLength
}
