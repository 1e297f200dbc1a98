package search

import (
	"sort"

	"loom/internal/textutil"
)

// Lexical ranks documents against a query with TF-IDF weighted cosine
// similarity over character bigrams. It is the fallback search path when no
// embedding API is configured; results use the same Match shape as the
// vector store so callers render them identically.
func Lexical(texts map[string]string, query string, limit int) []Match {
	queryFP := textutil.NewFingerprint(query)
	if queryFP == nil {
		return nil
	}

	corpus := textutil.NewCorpus()
	type doc struct {
		id   string
		text string
		fp   *textutil.Fingerprint
	}
	docs := make([]doc, 0, len(texts))
	for id, text := range texts {
		fp := textutil.NewFingerprint(text)
		if fp == nil {
			continue
		}
		corpus.Add(fp)
		docs = append(docs, doc{id: id, text: text, fp: fp})
	}
	idf := corpus.IDF()
	weightedQuery := queryFP.WithIDF(idf)

	var matches []Match
	for _, d := range docs {
		score := textutil.CosineSimilarity(weightedQuery, d.fp.WithIDF(idf))
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{ID: d.id, Text: d.text, Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
