// Package fulltext implements tokenisation, stemming and a TF-IDF scored
// posting-list index over document fields (spec.md §4.6).
package fulltext

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^a-z0-9_]+`)

// stopwords is the fixed English stop-word set discarded during
// tokenisation (spec.md §4.6).
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "up": {}, "about": {}, "into": {}, "over": {}, "after": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "should": {}, "could": {}, "may": {}, "might": {}, "must": {},
	"can": {}, "this": {}, "that": {}, "these": {}, "those": {}, "you": {},
	"your": {}, "yours": {}, "not": {}, "no": {}, "all": {}, "any": {}, "as": {},
	"it": {}, "its": {}, "they": {}, "them": {}, "their": {}, "there": {},
}

// stemSuffixes is tried in this exact order, matching spec.md §4.6's naive
// suffix stripper.
var stemSuffixes = []string{"ing", "ly", "ed", "ies", "ied", "s"}

// stem strips the first matching suffix from stemSuffixes, leaving at
// least a 3-character stem.
func stem(word string) string {
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(word, suf) && len(word) > len(suf)+2 {
			return word[:len(word)-len(suf)]
		}
	}
	return word
}

// Tokenize lower-cases text, replaces non-word characters with spaces,
// discards tokens of length <= 2 and stop words, then stems what remains.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	normalized := nonWord.ReplaceAllString(lower, " ")
	fields := strings.Fields(normalized)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}
