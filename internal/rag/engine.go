// Package rag sequences retrieval, ranking, context assembly, and answer
// generation into one request/response cycle.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/queryscout/queryscout/internal/assemble"
	"github.com/queryscout/queryscout/internal/config"
	"github.com/queryscout/queryscout/internal/llm"
	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/internal/ranking"
	"github.com/queryscout/queryscout/internal/retriever"
	"github.com/queryscout/queryscout/internal/rewrite"
	"github.com/queryscout/queryscout/internal/schema"
	"github.com/queryscout/queryscout/internal/validate"
	"github.com/queryscout/queryscout/pkg/utils"
)

// NoAnswer is returned when retrieval finds nothing. The model is never
// called without grounding documents.
const NoAnswer = "I could not find any relevant SQL examples for that question."

const answerSystemPrompt = `You answer questions about a corpus of SQL
queries. Ground every statement in the provided examples. Quote or adapt the
example SQL where it helps; do not invent tables or columns that the examples
and schema do not show.`

// Engine owns the answer pipeline. All collaborators are injected and
// constructed once at startup; the engine itself holds no per-request state.
type Engine struct {
	retriever *retriever.Retriever
	client    llm.Client
	rewriter  *rewrite.Rewriter
	catalog   *schema.Manager
	extractor schema.TableExtractor
	validator *validate.Validator
	config    *config.Config
	retry     llm.RetryPolicy
	logger    *zap.Logger
}

// Options for building an Engine. Catalog, rewriter, and validator are
// optional; their stages are skipped when absent.
type Options struct {
	Retriever *retriever.Retriever
	Client    llm.Client
	Rewriter  *rewrite.Rewriter
	Catalog   *schema.Manager
	Extractor schema.TableExtractor
	Validator *validate.Validator
	Config    *config.Config
	Logger    *zap.Logger
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := llm.RetryPolicy{
		MaxAttempts: opts.Config.LLM.MaxRetries,
		BaseDelay:   time.Duration(opts.Config.LLM.RetryBaseDelayMS) * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
	return &Engine{
		retriever: opts.Retriever,
		client:    opts.Client,
		rewriter:  opts.Rewriter,
		catalog:   opts.Catalog,
		extractor: opts.Extractor,
		validator: opts.Validator,
		config:    opts.Config,
		retry:     retry,
		logger:    logger,
	}, nil
}

// Ask runs the full pipeline for one question. Callers always get either a
// complete (answer, sources, usage) response or an error with a clear cause;
// degraded stages are reported through the usage payload.
func (e *Engine) Ask(ctx context.Context, req *models.AskRequest) (*models.AskResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	usage := &models.Usage{}

	query := req.Question
	if e.rewriter != nil && e.config.Context.RewriteEnabled {
		res := e.rewriter.Rewrite(ctx, req.Question)
		usage.Rewrite = &models.RewriteUsage{
			Enabled:    true,
			Applied:    res.Adopted,
			Original:   res.Original,
			Rewritten:  res.Rewritten,
			Confidence: res.Confidence,
			Error:      res.Err,
		}
		if res.Usage != nil {
			usage.PromptTokens += res.Usage.PromptTokens
			usage.CompletionTokens += res.Usage.CompletionTokens
		}
		query = res.Query()
	}

	retrieveStart := time.Now()
	results, info, err := e.retriever.Retrieve(ctx, query, retriever.Options{K: req.K})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	usage.RetrievalTimeMS = time.Since(retrieveStart).Milliseconds()
	usage.SearchMethod = info.Method
	usage.VectorWeight = info.Weights.Vector
	usage.KeywordWeight = info.Weights.Keyword
	usage.Degraded = info.Degraded
	usage.DegradedReason = info.DegradedReason
	usage.DocumentsRetrieved = len(results)

	// No grounding documents: answer without calling the model.
	if len(results) == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		return &models.AskResponse{Answer: NoAnswer, Usage: usage}, nil
	}

	deduped := ranking.Deduplicate(results, e.config.Search.DedupThreshold)
	diverse := ranking.Diversify(deduped, e.config.Search.MaxDiverse)
	usage.DocumentsProcessed = len(diverse)

	schemaSnippet := e.filterSchema(ctx, query, diverse, usage)

	assembled := assemble.Build(assemble.Input{
		Query:     query,
		Documents: documentsOf(diverse),
		Schema:    schemaSnippet,
		History:   req.History,
	}, e.config.Context.MaxTokens)
	usage.ContextDocuments = assembled.DocumentsIncluded

	generateStart := time.Now()
	answer, genUsage, err := e.generate(ctx, assembled.Context)
	if err != nil {
		return nil, err
	}
	usage.GenerationTimeMS = time.Since(generateStart).Milliseconds()
	if genUsage != nil {
		usage.PromptTokens += genUsage.PromptTokens
		usage.CompletionTokens += genUsage.CompletionTokens
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	if e.validator != nil && e.config.Context.ValidateSQL {
		v := e.validator.ValidateAnswer(answer)
		usage.Validation = &models.ValidationUsage{
			Enabled:  true,
			Valid:    v.IsValid,
			Errors:   v.Errors,
			Warnings: append(v.Warnings, v.Suggestions...),
		}
	}

	sources := diverse
	if len(sources) > assembled.DocumentsIncluded {
		sources = sources[:assembled.DocumentsIncluded]
	}
	return &models.AskResponse{
		Answer:  answer,
		Sources: sources,
		Usage:   usage,
	}, nil
}

// filterSchema reduces the catalog to the tables the retrieved documents and
// the query mention. Any failure disables the stage for this request only.
func (e *Engine) filterSchema(ctx context.Context, query string, results []*models.ScoredResult, usage *models.Usage) string {
	if e.catalog == nil {
		return ""
	}
	su := &models.SchemaUsage{Enabled: true}
	usage.SchemaFiltering = su

	seen := make(map[string]bool)
	var tables []string
	add := func(names []string) {
		for _, name := range names {
			key := schema.NormalizeTableName(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			tables = append(tables, key)
		}
	}

	for _, res := range results {
		add(res.Document.Metadata.TableList())
		extracted, err := e.extractTables(ctx, res.Document.Content)
		if err != nil {
			su.Error = err.Error()
			continue
		}
		add(extracted)
	}
	add(schema.ExtractTables(query))

	result := e.catalog.RelevantSchema(tables, e.config.Schema.MaxTables)
	su.TableCount = len(result.TablesFound)
	su.TablesFound = result.TablesFound
	su.TablesNotFound = result.TablesNotFound
	su.SchemaTokens = utils.EstimateTokens(result.Schema)
	return result.Schema
}

func (e *Engine) extractTables(ctx context.Context, content string) ([]string, error) {
	if e.extractor != nil {
		return e.extractor.ExtractTables(ctx, content)
	}
	return schema.ExtractTables(content), nil
}

func (e *Engine) generate(ctx context.Context, promptContext string) (string, *llm.Usage, error) {
	start := time.Now()
	var answer string
	var genUsage *llm.Usage
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		answer, genUsage, callErr = e.client.Generate(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: answerSystemPrompt},
			{Role: llm.RoleUser, Content: promptContext},
		})
		return callErr
	})
	if err != nil {
		return "", nil, fmt.Errorf("answer generation failed: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", genUsage, fmt.Errorf("answer generation returned empty response")
	}
	e.logger.Debug("answer generated",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("context_chars", len(promptContext)))
	return answer, genUsage, nil
}

func documentsOf(results []*models.ScoredResult) []*models.Document {
	docs := make([]*models.Document, len(results))
	for i, r := range results {
		docs[i] = r.Document
	}
	return docs
}
