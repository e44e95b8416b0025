// Package strutil provides string utility functions for the ai package.
package strutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Truncate truncates a string to a maximum length.
// Uses rune-level truncation so multi-byte text (e.g. Cyrillic) is never split mid-character.
// Returns empty string if maxLen <= 0.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Prefix returns the first n runes of s without any ellipsis.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Fold returns the NFC-normalised lowercase form of s.
// Composed and decomposed spellings of the same text (e.g. "й" vs "и"+U+0306) fold to one key.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// NFC returns s in Unicode normalisation form C.
func NFC(s string) string {
	return norm.NFC.String(s)
}
