package retriever

import (
	"strings"
	"unicode"
)

// tokenize lowercases and splits text into terms on any non-letter,
// non-digit rune. Both queries and chunk texts go through the same path so
// the overlap score compares like with like.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, t := range tokenize(text) {
		terms[t] = struct{}{}
	}
	return terms
}

// keywordScore is the fraction of distinct query terms present in the chunk:
// |terms(q) ∩ terms(chunk)| / |terms(q)|, in [0, 1].
func keywordScore(queryTerms map[string]struct{}, chunkText string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	chunkTerms := termSet(chunkText)
	matched := 0
	for t := range queryTerms {
		if _, ok := chunkTerms[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
