package rules

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s, used for all name comparisons.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether needle occurs in haystack, ignoring case.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// ContainsAnyFold reports whether any needle occurs in haystack, ignoring case.
func ContainsAnyFold(haystack string, needles []string) bool {
	if len(needles) == 0 {
		return false
	}
	folded := Fold(haystack)
	for _, n := range needles {
		if strings.Contains(folded, Fold(n)) {
			return true
		}
	}
	return false
}
