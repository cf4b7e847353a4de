package util

import "unicode"

// SignificantLen counts the runes in s that are not whitespace.
// Validation limits on titles and bodies are expressed in these units.
func SignificantLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// TruncateSignificant cuts s right after its max-th significant rune.
func TruncateSignificant(s string, max int) string {
	n := 0
	for i, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
