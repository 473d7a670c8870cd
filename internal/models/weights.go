package models

// SearchWeights is the vector/keyword weight pair used for score fusion.
// Vector + Keyword always sum to 1.0.
type SearchWeights struct {
	Vector  float64 `json:"vector_weight"`
	Keyword float64 `json:"keyword_weight"`
}

// NewSearchWeights builds a weight pair, normalizing so the components sum
// to 1.0. Non-positive inputs fall back to the 0.7/0.3 default.
func NewSearchWeights(vector, keyword float64) SearchWeights {
	if vector < 0 {
		vector = 0
	}
	if keyword < 0 {
		keyword = 0
	}
	sum := vector + keyword
	if sum <= 0 {
		return DefaultSearchWeights()
	}
	return SearchWeights{Vector: vector / sum, Keyword: keyword / sum}
}

// DefaultSearchWeights returns the 0.7 vector / 0.3 keyword starting point.
func DefaultSearchWeights() SearchWeights {
	return SearchWeights{Vector: 0.7, Keyword: 0.3}
}
