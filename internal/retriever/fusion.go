// Package retriever provides hybrid (vector + keyword) retrieval with
// adaptive score fusion.
package retriever

import (
	"sort"

	"github.com/queryscout/queryscout/internal/keyword"
	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/internal/vector"
)

// FusedHit is a document ID with fused score provenance and the rank
// bookkeeping needed for deterministic tie-breaks.
type FusedHit struct {
	ID           string
	VectorScore  float64
	KeywordScore float64
	Score        float64
	Method       models.SearchMethod

	vectorRank  int
	keywordRank int
	order       int
}

const absentRank = 1 << 30

// MinMaxNormalize rescales scores to [0,1]. Raw cosine and raw BM25 live on
// different scales; each list is normalized independently before fusion.
// A single-element or constant list maps to 1.0 (equally-best hits).
func MinMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// Fuse merges the two candidate lists by document identity. Scores are
// normalized per source, absence from one list counts as 0 for that source,
// and the fused score is the weighted sum. A document present in both lists
// is labeled hybrid. Results are sorted by fused score descending with ties
// broken by vector rank, then keyword rank, then insertion order.
func Fuse(vectorHits []*vector.VectorResult, keywordHits []*keyword.KeywordResult, w models.SearchWeights) []*FusedHit {
	byID := make(map[string]*FusedHit, len(vectorHits)+len(keywordHits))
	ordered := make([]*FusedHit, 0, len(vectorHits)+len(keywordHits))

	vectorScores := make([]float64, len(vectorHits))
	for i, h := range vectorHits {
		vectorScores[i] = h.Score
	}
	for i, s := range MinMaxNormalize(vectorScores) {
		hit := &FusedHit{
			ID:          vectorHits[i].ID,
			VectorScore: s,
			Method:      models.MethodVector,
			vectorRank:  i,
			keywordRank: absentRank,
			order:       len(ordered),
		}
		byID[hit.ID] = hit
		ordered = append(ordered, hit)
	}

	keywordScores := make([]float64, len(keywordHits))
	for i, h := range keywordHits {
		keywordScores[i] = h.Score
	}
	for i, s := range MinMaxNormalize(keywordScores) {
		id := keywordHits[i].ID
		if hit, ok := byID[id]; ok {
			hit.KeywordScore = s
			hit.keywordRank = i
			hit.Method = models.MethodHybrid
			continue
		}
		hit := &FusedHit{
			ID:           id,
			KeywordScore: s,
			Method:       models.MethodKeyword,
			vectorRank:   absentRank,
			keywordRank:  i,
			order:        len(ordered),
		}
		byID[id] = hit
		ordered = append(ordered, hit)
	}

	for _, hit := range ordered {
		hit.Score = w.Vector*hit.VectorScore + w.Keyword*hit.KeywordScore
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.vectorRank != b.vectorRank {
			return a.vectorRank < b.vectorRank
		}
		if a.keywordRank != b.keywordRank {
			return a.keywordRank < b.keywordRank
		}
		return a.order < b.order
	})
	return ordered
}
