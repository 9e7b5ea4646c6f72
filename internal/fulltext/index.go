package fulltext

import (
	"math"
	"sort"
)

// posting is one token's occurrence within one field of one document.
type posting struct {
	Field     string
	Weight    float64
	Frequency int
	Positions []int
}

// Index is a TF-IDF scored full-text index over a set of documents, each
// with one or more named, independently weighted fields.
type Index struct {
	// postings maps token -> docID -> field -> posting.
	postings map[string]map[string]map[string]posting
	// fieldLen maps docID -> field -> token count, for TF normalization.
	fieldLen map[string]map[string]int
	docs     map[string]struct{}
}

// NewIndex constructs an empty full-text Index.
func NewIndex() *Index {
	return &Index{
		postings: make(map[string]map[string]map[string]posting),
		fieldLen: make(map[string]map[string]int),
		docs:     make(map[string]struct{}),
	}
}

// FieldWeights maps a field name to its scoring weight; a field not
// present defaults to weight 1.
type FieldWeights map[string]float64

// weightOf returns the configured weight for a field, defaulting to 1.
func (w FieldWeights) weightOf(field string) float64 {
	if w == nil {
		return 1
	}
	if v, ok := w[field]; ok {
		return v
	}
	return 1
}

// Index tokenises fields and updates the posting lists for docID,
// replacing any prior indexing of that document.
func (ix *Index) Index(docID string, fields map[string]string, weights FieldWeights) {
	ix.Remove(docID)
	ix.docs[docID] = struct{}{}
	ix.fieldLen[docID] = make(map[string]int)

	for field, text := range fields {
		tokens := Tokenize(text)
		ix.fieldLen[docID][field] = len(tokens)
		if len(tokens) == 0 {
			continue
		}
		freq := make(map[string]int, len(tokens))
		positions := make(map[string][]int, len(tokens))
		for pos, tok := range tokens {
			freq[tok]++
			positions[tok] = append(positions[tok], pos)
		}
		w := weights.weightOf(field)
		for tok, f := range freq {
			byDoc, ok := ix.postings[tok]
			if !ok {
				byDoc = make(map[string]map[string]posting)
				ix.postings[tok] = byDoc
			}
			byField, ok := byDoc[docID]
			if !ok {
				byField = make(map[string]posting)
				byDoc[docID] = byField
			}
			byField[field] = posting{Field: field, Weight: w, Frequency: f, Positions: positions[tok]}
		}
	}
}

// Remove purges docID from the index entirely.
func (ix *Index) Remove(docID string) {
	if _, ok := ix.docs[docID]; !ok {
		return
	}
	for tok, byDoc := range ix.postings {
		delete(byDoc, docID)
		if len(byDoc) == 0 {
			delete(ix.postings, tok)
		}
	}
	delete(ix.fieldLen, docID)
	delete(ix.docs, docID)
}

// DocCount returns the number of indexed documents.
func (ix *Index) DocCount() int { return len(ix.docs) }

// documentFrequency returns the number of documents containing tok.
func (ix *Index) documentFrequency(tok string) int {
	return len(ix.postings[tok])
}

// Result is one scored document match from Search.
type Result struct {
	DocID string
	Score float64
}

// Search scores every document against the query's tokens as
// Σ (freq/docLen) × log(N/df) × fieldWeight, returning the top limit by
// descending score (spec.md §4.6).
func (ix *Index) Search(query string, limit int) []Result {
	tokens := Tokenize(query)
	n := float64(ix.DocCount())
	if n == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, tok := range tokens {
		byDoc, ok := ix.postings[tok]
		if !ok {
			continue
		}
		df := float64(ix.documentFrequency(tok))
		idf := math.Log(n / df)
		for docID, byField := range byDoc {
			for field, p := range byField {
				docLen := ix.fieldLen[docID][field]
				if docLen == 0 {
					continue
				}
				tf := float64(p.Frequency) / float64(docLen)
				scores[docID] += tf * idf * p.Weight
			}
		}
	}

	results := make([]Result, 0, len(scores))
	for docID, score := range scores {
		results = append(results, Result{DocID: docID, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
