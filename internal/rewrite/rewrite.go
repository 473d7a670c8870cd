// Package rewrite turns user questions into retrieval-friendlier queries.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/queryscout/queryscout/internal/llm"
)

const systemPrompt = `You rewrite questions about a corpus of SQL queries into
search queries that retrieve better. Expand abbreviations, name likely tables
and SQL operations, drop filler words. Respond with JSON only:
{"rewritten_query": "...", "confidence": 0.0}
confidence is your estimate in [0,1] that the rewrite retrieves better than
the original.`

// Result reports what the rewriter did. Err is recorded, never raised; a
// failed rewrite means the original query is used.
type Result struct {
	Original   string
	Rewritten  string
	Confidence float64
	// Adopted is true when the rewritten query should replace the original.
	Adopted bool
	Err     string
	Usage   *llm.Usage
}

// Query returns the query retrieval should use.
func (r *Result) Query() string {
	if r.Adopted {
		return r.Rewritten
	}
	return r.Original
}

// Rewriter calls the model and gates adoption on confidence. Low-confidence
// rewrites must not replace a perfectly fine original question.
type Rewriter struct {
	client     llm.Client
	confidence float64
	retry      llm.RetryPolicy
	logger     *zap.Logger
}

func New(client llm.Client, confidenceThreshold float64, retry llm.RetryPolicy, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{
		client:     client,
		confidence: confidenceThreshold,
		retry:      retry,
		logger:     logger,
	}
}

type rewriteResponse struct {
	RewrittenQuery string  `json:"rewritten_query"`
	Confidence     float64 `json:"confidence"`
}

// Rewrite never returns an error; failures are folded into the Result so the
// pipeline continues with the original question.
func (r *Rewriter) Rewrite(ctx context.Context, question string) *Result {
	result := &Result{Original: question}

	var answer string
	var usage *llm.Usage
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		answer, usage, callErr = r.client.Generate(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: question},
		})
		return callErr
	})
	result.Usage = usage
	if err != nil {
		result.Err = fmt.Sprintf("rewrite call failed: %v", err)
		r.logger.Warn("query rewrite failed, keeping original", zap.Error(err))
		return result
	}

	var resp rewriteResponse
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &resp); err != nil {
		result.Err = fmt.Sprintf("rewrite returned malformed response: %v", err)
		r.logger.Warn("query rewrite unparseable, keeping original", zap.Error(err))
		return result
	}

	result.Rewritten = strings.TrimSpace(resp.RewrittenQuery)
	result.Confidence = resp.Confidence
	result.Adopted = result.Rewritten != "" &&
		result.Rewritten != question &&
		resp.Confidence >= r.confidence
	if !result.Adopted {
		r.logger.Debug("rewrite not adopted",
			zap.Float64("confidence", resp.Confidence),
			zap.Float64("threshold", r.confidence))
	}
	return result
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
