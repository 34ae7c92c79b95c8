package textutil

import (
	"regexp"
	"strings"
)

// MaxTitleRunes caps sanitized meeting titles.
const MaxTitleRunes = 100

// DefaultTitleFallback names exports whose title sanitizes to nothing.
const DefaultTitleFallback = "meet"

// unsafeTitleRunes matches runs of characters that browsers and common
// filesystems refuse in file names.
var unsafeTitleRunes = regexp.MustCompile(`[\\/:*?"<>|]+`)

// SanitizeTitle strips filesystem-unsafe characters from a meeting title,
// trims it and truncates it to MaxTitleRunes. An empty result yields fallback,
// or DefaultTitleFallback when fallback is blank.
func SanitizeTitle(title, fallback string) string {
	cleaned := strings.TrimSpace(unsafeTitleRunes.ReplaceAllString(title, ""))
	if runes := []rune(cleaned); len(runes) > MaxTitleRunes {
		cleaned = strings.TrimSpace(string(runes[:MaxTitleRunes]))
	}
	if cleaned != "" {
		return cleaned
	}
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		return DefaultTitleFallback
	}
	return fallback
}
