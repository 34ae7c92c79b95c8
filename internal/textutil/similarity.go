package textutil

import "strings"

// EditDistance returns the Levenshtein distance between a and b, counted in
// runes. It keeps two rows sized to the shorter input.
func EditDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// IsNearDuplicateOrPrefix reports whether a and b differ by at most
// maxDistance edits or one is a prefix of the other. The prefix case covers
// an utterance that keeps growing as more words are recognized.
func IsNearDuplicateOrPrefix(a, b string, maxDistance int) bool {
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return true
	}
	return EditDistance(a, b) <= maxDistance
}
