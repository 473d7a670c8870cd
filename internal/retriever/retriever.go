package retriever

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/queryscout/queryscout/internal/config"
	"github.com/queryscout/queryscout/internal/embedding"
	"github.com/queryscout/queryscout/internal/keyword"
	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/internal/storage"
	"github.com/queryscout/queryscout/internal/vector"
)

// Retriever runs hybrid retrieval over the query corpus.
type Retriever struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	logger       *zap.Logger
}

// New creates a retriever with the given dependencies. keywordIndex may be
// nil (e.g. the index could not be built); retrieval then degrades to
// vector-only and reports it in Info.
func New(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		storage:      store,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       logger,
	}
}

// Options tunes a single retrieval call.
type Options struct {
	K int
	// Weights overrides fusion weights; nil means use config or auto-adjust.
	Weights *models.SearchWeights
	// AutoAdjust overrides the config's auto_adjust_weights; nil means config.
	AutoAdjust *bool
}

// Info reports how a retrieval ran: overall method, weights used, and any
// degradation. Degradation is metadata, never an error.
type Info struct {
	Method         string               `json:"method"`
	Weights        models.SearchWeights `json:"weights"`
	Degraded       bool                 `json:"degraded"`
	DegradedReason string               `json:"degraded_reason,omitempty"`
	VectorHits     int                  `json:"vector_hits"`
	KeywordHits    int                  `json:"keyword_hits"`
	Elapsed        time.Duration        `json:"-"`
}

// Retrieve runs vector and keyword search in parallel, fuses the results,
// and returns the top-k with provenance. An empty corpus yields an empty
// result, not an error. The vector leg runs under the configured timeout;
// on timeout or error the retriever falls back to keyword-only.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]*models.ScoredResult, *Info, error) {
	start := time.Now()
	if query == "" {
		return nil, nil, fmt.Errorf("query cannot be empty")
	}
	k := opts.K
	if k <= 0 {
		k = r.config.TopK
	}

	weights := r.resolveWeights(query, opts)
	info := &Info{Weights: weights}

	var (
		vectorHits  []*vector.VectorResult
		keywordHits []*keyword.KeywordResult
		vectorErr   error
		keywordErr  error
		wg          sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		vctx, cancel := context.WithTimeout(ctx, r.config.VectorTimeout())
		defer cancel()
		queryEmbedding, err := r.embedder.Embed(vctx, query)
		if err != nil {
			vectorErr = fmt.Errorf("embedding failed: %w", err)
			return
		}
		hits, err := r.vectorIndex.Search(vctx, queryEmbedding, k)
		if err != nil {
			vectorErr = fmt.Errorf("vector search failed: %w", err)
			return
		}
		vectorHits = hits
	}()

	if r.keywordIndex != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := r.keywordIndex.Search(ctx, query, k)
			if err != nil {
				keywordErr = fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordHits = hits
		}()
	} else {
		keywordErr = fmt.Errorf("keyword index not available")
	}

	wg.Wait()

	// Both legs degraded: only an error if the caller's context is gone,
	// otherwise an empty result with the reason recorded.
	if vectorErr != nil && keywordErr != nil {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		info.Degraded = true
		info.DegradedReason = fmt.Sprintf("vector: %v; keyword: %v", vectorErr, keywordErr)
		info.Method = "none"
		info.Elapsed = time.Since(start)
		r.logger.Warn("retrieval fully degraded", zap.String("reason", info.DegradedReason))
		return nil, info, nil
	}
	if vectorErr != nil {
		info.Degraded = true
		info.DegradedReason = vectorErr.Error()
		r.logger.Warn("vector search degraded, using keyword only", zap.Error(vectorErr))
	}
	if keywordErr != nil {
		info.Degraded = true
		info.DegradedReason = keywordErr.Error()
		r.logger.Warn("keyword search degraded, using vector only", zap.Error(keywordErr))
	}

	info.VectorHits = len(vectorHits)
	info.KeywordHits = len(keywordHits)
	info.Method = overallMethod(len(vectorHits), len(keywordHits))

	fused := Fuse(vectorHits, keywordHits, weights)
	if len(fused) > k {
		fused = fused[:k]
	}

	results := make([]*models.ScoredResult, 0, len(fused))
	for _, hit := range fused {
		doc, err := r.storage.GetDocument(ctx, hit.ID)
		if err != nil {
			r.logger.Debug("fused hit has no stored document", zap.String("id", hit.ID), zap.Error(err))
			continue
		}
		results = append(results, &models.ScoredResult{
			Document:     doc,
			VectorScore:  hit.VectorScore,
			KeywordScore: hit.KeywordScore,
			FusedScore:   hit.Score,
			Method:       hit.Method,
		})
	}
	info.Elapsed = time.Since(start)
	return results, info, nil
}

func (r *Retriever) resolveWeights(query string, opts Options) models.SearchWeights {
	if opts.Weights != nil {
		return models.NewSearchWeights(opts.Weights.Vector, opts.Weights.Keyword)
	}
	autoAdjust := r.config.AutoAdjustWeights
	if opts.AutoAdjust != nil {
		autoAdjust = *opts.AutoAdjust
	}
	if autoAdjust {
		return ChooseWeights(query,
			r.config.VectorWeight,
			r.config.LexicalVectorWeight,
			r.config.SemanticVectorWeight,
		)
	}
	return models.NewSearchWeights(r.config.VectorWeight, r.config.KeywordWeight)
}

func overallMethod(vectorHits, keywordHits int) string {
	switch {
	case vectorHits > 0 && keywordHits > 0:
		return string(models.MethodHybrid)
	case vectorHits > 0:
		return string(models.MethodVector)
	case keywordHits > 0:
		return string(models.MethodKeyword)
	default:
		return "none"
	}
}
