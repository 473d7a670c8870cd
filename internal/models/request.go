package models

import "fmt"

// AskRequest is a question about the query corpus.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
	// History is prior conversation turns, oldest first.
	History []Turn `json:"history,omitempty"`
}

// Turn is one prior conversation exchange.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Validate checks the request and applies defaults.
func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.K <= 0 {
		r.K = 10
	}
	if r.K > 200 {
		r.K = 200
	}
	return nil
}

// SearchRequest is a raw retrieval request (no generation).
type SearchRequest struct {
	Query             string  `json:"query"`
	K                 int     `json:"k,omitempty"`
	VectorWeight      float64 `json:"vector_weight,omitempty"`
	KeywordWeight     float64 `json:"keyword_weight,omitempty"`
	AutoAdjustWeights *bool   `json:"auto_adjust_weights,omitempty"`
}

// Validate checks the request and applies defaults.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.K <= 0 {
		r.K = 10
	}
	if r.K > 200 {
		r.K = 200
	}
	return nil
}

// AskResponse is the answer plus provenance.
type AskResponse struct {
	Answer  string          `json:"answer"`
	Sources []*ScoredResult `json:"sources"`
	Usage   *Usage          `json:"usage"`
}

// SearchResponse is the response for a retrieval-only request.
type SearchResponse struct {
	Results     []*ScoredResult `json:"results"`
	Total       int             `json:"total"`
	QueryTimeMS int64           `json:"query_time_ms"`
	Query       string          `json:"query"`
	Method      string          `json:"method"`
	Degraded    bool            `json:"degraded,omitempty"`
}
