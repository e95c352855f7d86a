package fusion

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Similarity levels for the non-exact heuristics. Containment and acronym
// matches are strong signals but deliberately below exact-match certainty.
const (
	containmentSimilarity = 0.92
	acronymSimilarity     = 0.9
)

// NameSimilarity scores how likely two canonical names denote the same
// referent, in [0,1]. It combines exact matching after normalization,
// substring containment, acronym expansion, token overlap, and edit
// distance, returning the strongest signal. This is a heuristic: both false
// merges and false splits are possible near the threshold.
func NameSimilarity(a, b string) float64 {
	na := normalizeName(a)
	nb := normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}

	best := 0.0

	if strings.Contains(na, nb) || strings.Contains(nb, na) || tokensContained(na, nb) || tokensContained(nb, na) {
		best = containmentSimilarity
	}

	if acronymMatches(na, nb) || acronymMatches(nb, na) {
		if acronymSimilarity > best {
			best = acronymSimilarity
		}
	}

	if overlap := tokenJaccard(na, nb); overlap > best {
		best = overlap
	}

	if edit := editSimilarity(na, nb); edit > best {
		best = edit
	}

	return best
}

// normalizeName lowercases, strips punctuation, collapses whitespace, and
// drops a leading article so "The Paris Agreement" and "Paris Agreement"
// normalize identically.
func normalizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}

	tokens := strings.Fields(sb.String())
	if len(tokens) > 1 {
		switch tokens[0] {
		case "the", "a", "an":
			tokens = tokens[1:]
		}
	}
	return strings.Join(tokens, " ")
}

// acronymMatches reports whether short is the initialism of long
// ("nasa" vs "national aeronautics and space administration").
func acronymMatches(short, long string) bool {
	if strings.ContainsRune(short, ' ') || len(short) < 2 {
		return false
	}
	words := strings.Fields(long)
	if len(words) != len(short) {
		return false
	}
	for i, w := range words {
		if rune(w[0]) != rune(short[i]) {
			return false
		}
	}
	return true
}

// tokensContained reports whether every token of inner occurs in outer, so
// "Paris Agreement" is contained in "Paris Climate Agreement".
func tokensContained(inner, outer string) bool {
	outerSet := make(map[string]bool)
	for _, t := range strings.Fields(outer) {
		outerSet[t] = true
	}
	innerTokens := strings.Fields(inner)
	if len(innerTokens) == 0 || len(innerTokens) >= len(outerSet) {
		return false
	}
	for _, t := range innerTokens {
		if !outerSet[t] {
			return false
		}
	}
	return true
}

// tokenJaccard is the Jaccard overlap of the two names' token sets.
func tokenJaccard(a, b string) float64 {
	setA := make(map[string]bool)
	for _, t := range strings.Fields(a) {
		setA[t] = true
	}
	setB := make(map[string]bool)
	for _, t := range strings.Fields(b) {
		setB[t] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// editSimilarity converts Levenshtein distance to a [0,1] similarity.
func editSimilarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}
