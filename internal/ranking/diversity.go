package ranking

import (
	"strings"

	"github.com/queryscout/queryscout/internal/models"
)

// DefaultMaxDiverse caps the prioritized working set size.
const DefaultMaxDiverse = 200

// category is a content bucket for diversity balancing. Buckets are assigned
// by first match in priority order, so membership tests need not be exclusive.
type category int

const (
	categoryJoin category = iota
	categoryAggregation
	categoryDescription
	categoryTable
	categoryOther
	numCategories
)

var aggregationKeywords = []string{"group by", "count(", "sum(", "avg(", "having"}

func categorize(doc *models.Document) category {
	content := strings.ToLower(doc.Content)
	if strings.Contains(content, "join") {
		return categoryJoin
	}
	for _, kw := range aggregationKeywords {
		if strings.Contains(content, kw) {
			return categoryAggregation
		}
	}
	if doc.Metadata.Description != "" {
		return categoryDescription
	}
	if len(doc.Metadata.TableList()) > 0 {
		return categoryTable
	}
	return categoryOther
}

// Diversify reorders and trims results so the working set spans content
// categories instead of being dominated by one query shape. Without it a
// single dominant pattern could starve the prompt of JOIN examples even when
// several sit lower in the ranked list.
//
// The target size is min(len(results), maxTotal); it is divided evenly
// across the five categories with the remainder going to the earliest ones.
// Each bucket contributes its documents in original rank order; buckets are
// concatenated join, aggregation, description, table, other.
func Diversify(results []*models.ScoredResult, maxTotal int) []*models.ScoredResult {
	if maxTotal <= 0 {
		maxTotal = DefaultMaxDiverse
	}
	if len(results) == 0 {
		return results
	}

	target := len(results)
	if target > maxTotal {
		target = maxTotal
	}

	buckets := make([][]*models.ScoredResult, numCategories)
	for _, r := range results {
		c := categorize(r.Document)
		buckets[c] = append(buckets[c], r)
	}

	quota := make([]int, numCategories)
	base := target / int(numCategories)
	remainder := target % int(numCategories)
	for i := range quota {
		quota[i] = base
		if i < remainder {
			quota[i]++
		}
	}

	seen := make(map[string]struct{}, target)
	out := make([]*models.ScoredResult, 0, target)
	for c := category(0); c < numCategories; c++ {
		take := quota[c]
		if take > len(buckets[c]) {
			take = len(buckets[c])
		}
		for _, r := range buckets[c][:take] {
			if _, dup := seen[r.Document.ID]; dup {
				continue
			}
			seen[r.Document.ID] = struct{}{}
			out = append(out, r)
		}
	}

	// Quotas from sparse buckets go unused; backfill from remaining documents
	// in rank order so the set is not smaller than it needs to be.
	if len(out) < target {
		for _, r := range results {
			if len(out) >= target {
				break
			}
			if _, dup := seen[r.Document.ID]; dup {
				continue
			}
			seen[r.Document.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
