package schema

import (
	"encoding/json"
	"strings"
)

// NamedSchema pairs a stored form type's identity with its schema, the unit
// the duplicate detector compares against.
type NamedSchema struct {
	ID     string
	Name   string
	Schema FormSchema
}

const duplicateNameThreshold = 0.8

// FindDuplicate returns the first existing form type whose normalized name
// similarity to name exceeds the threshold, or whose serialized schema is
// textually identical to s. Returns nil when no duplicate exists.
func FindDuplicate(existing []NamedSchema, name string, s FormSchema) *NamedSchema {
	newName := normalizeName(name)
	newSchema := marshalForCompare(s)
	for i := range existing {
		similarity := Similarity(newName, normalizeName(existing[i].Name))
		if similarity > duplicateNameThreshold || newSchema == marshalForCompare(existing[i].Schema) {
			return &existing[i]
		}
	}
	return nil
}

// Similarity is the classic edit-distance ratio (maxLen-dist)/maxLen,
// 1.0 for two empty strings.
func Similarity(a, b string) float64 {
	longer, shorter := a, b
	if len([]rune(b)) > len([]rune(a)) {
		longer, shorter = b, a
	}
	longLen := len([]rune(longer))
	if longLen == 0 {
		return 1.0
	}
	return float64(longLen-Levenshtein(longer, shorter)) / float64(longLen)
}

// Levenshtein computes the edit distance between two strings, rune-wise.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(rb); i++ {
		curr[0] = i
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = min3(prev[j-1]+1, curr[j-1]+1, prev[j]+1)
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

var zeroWidthReplacer = strings.NewReplacer(
	"\u200B", "", "\u200C", "", "\u200D", "", "\uFEFF", "",
)

func normalizeName(name string) string {
	return strings.ToLower(zeroWidthReplacer.Replace(strings.TrimSpace(name)))
}

func marshalForCompare(s FormSchema) string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}
