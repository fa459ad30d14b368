// Package query canonicalizes raw user input. Every deduplication decision
// in the widget compares normalized queries, never raw text.
package query

import (
	"strings"
	"unicode/utf8"
)

// Normalize trims surrounding whitespace and collapses internal runs of
// whitespace to a single space.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Len is the length of q in characters.
func Len(q string) int {
	return utf8.RuneCountInString(q)
}

// Meets reports whether q has at least minChars characters.
func Meets(q string, minChars int) bool {
	return Len(q) >= minChars
}
