package models

// SearchMethod records which retrieval leg produced a result.
type SearchMethod string

const (
	// MethodVector marks results found only by vector search.
	MethodVector SearchMethod = "vector"
	// MethodKeyword marks results found only by keyword search.
	MethodKeyword SearchMethod = "keyword"
	// MethodHybrid marks results present in both top-k sets.
	MethodHybrid SearchMethod = "hybrid"
)

// ScoredResult is a document plus its score provenance. VectorScore and
// KeywordScore are normalized to [0,1]; a document absent from one leg has
// that score as 0 and Method names the leg that found it.
type ScoredResult struct {
	Document     *Document    `json:"document"`
	VectorScore  float64      `json:"vector_score"`
	KeywordScore float64      `json:"keyword_score"`
	FusedScore   float64      `json:"fused_score"`
	Method       SearchMethod `json:"search_method"`
}
