// Package ranking provides post-retrieval working-set shaping: near-duplicate
// removal and content-diversity balancing.
package ranking

import (
	"strings"

	"github.com/queryscout/queryscout/internal/models"
)

// DefaultDedupThreshold is the Jaccard similarity above which two documents
// are treated as duplicates.
const DefaultDedupThreshold = 0.7

// JaccardSimilarity returns |A∩B| / |A∪B| over the word sets of a and b.
// Tokenization is raw lowercased whitespace splitting, no stopword removal
// or stemming; the dedup threshold is tuned against exactly this tokenizer.
func JaccardSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Deduplicate removes near-duplicates from an ordered result list, keeping
// the higher-ranked copy. A candidate is discarded when its content's word-set
// Jaccard similarity STRICTLY exceeds threshold against any already-accepted
// document; similarity exactly at the threshold is kept. O(n²) on word sets,
// acceptable because n is bounded by retrieval k, not corpus size.
func Deduplicate(results []*models.ScoredResult, threshold float64) []*models.ScoredResult {
	if len(results) <= 1 {
		return results
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDedupThreshold
	}

	accepted := make([]*models.ScoredResult, 0, len(results))
	acceptedSets := make([]map[string]struct{}, 0, len(results))
	for _, candidate := range results {
		candidateSet := wordSet(candidate.Document.Content)
		duplicate := false
		for _, set := range acceptedSets {
			if jaccardSets(candidateSet, set) > threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			accepted = append(accepted, candidate)
			acceptedSets = append(acceptedSets, candidateSet)
		}
	}
	return accepted
}

func jaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
