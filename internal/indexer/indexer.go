// Package indexer ingests query documents into storage and both search
// indexes, keeping the three in step.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryscout/queryscout/internal/corpus"
	"github.com/queryscout/queryscout/internal/embedding"
	"github.com/queryscout/queryscout/internal/keyword"
	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/internal/storage"
	"github.com/queryscout/queryscout/internal/vector"
)

// Indexer writes documents to storage, the vector index, and the keyword
// index. A mutex serializes writes; retrieval reads concurrently.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	logger       *zap.Logger
	mu           sync.Mutex
}

func New(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	logger *zap.Logger,
) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		storage:      store,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		logger:       logger,
	}
}

// IndexDocument persists and indexes one document. An empty ID gets a random
// one; re-indexing an existing ID replaces it everywhere.
func (ix *Indexer) IndexDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	if input.Content == "" {
		return nil, fmt.Errorf("document content cannot be empty")
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	doc := &models.Document{
		ID:        id,
		Content:   input.Content,
		Metadata:  input.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	embeddingVec, err := ix.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document %s: %w", id, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.storage.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document %s: %w", id, err)
	}
	if err := ix.vectorIndex.Add(ctx, []string{id}, [][]float32{embeddingVec}); err != nil {
		return nil, fmt.Errorf("failed to index vector for %s: %w", id, err)
	}
	if ix.keywordIndex != nil {
		if err := ix.keywordIndex.Index(ctx, id, doc); err != nil {
			return nil, fmt.Errorf("failed to index keywords for %s: %w", id, err)
		}
	}
	ix.logger.Debug("document indexed", zap.String("id", id))
	return doc, nil
}

// DeleteDocument removes a document from storage and both indexes. Deleting
// an unknown ID is not an error for the indexes.
func (ix *Indexer) DeleteDocument(ctx context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.storage.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := ix.vectorIndex.Remove(ctx, []string{id}); err != nil {
		ix.logger.Warn("failed to remove vector", zap.String("id", id), zap.Error(err))
	}
	if ix.keywordIndex != nil {
		if err := ix.keywordIndex.Delete(ctx, id); err != nil {
			ix.logger.Warn("failed to remove keywords", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// IndexFile parses a corpus file and indexes every document in it. Document
// IDs are derived from the source path and position, so re-indexing the same
// file replaces its documents instead of duplicating them. Returns how many
// documents were indexed.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	inputs, err := corpus.LoadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load corpus file %s: %w", path, err)
	}

	count := 0
	for i, input := range inputs {
		input.ID = FileDocumentID(path, i)
		if _, err := ix.IndexDocument(ctx, input); err != nil {
			ix.logger.Warn("failed to index corpus document",
				zap.String("path", path),
				zap.Int("position", i),
				zap.Error(err))
			continue
		}
		count++
	}
	ix.logger.Info("corpus file indexed",
		zap.String("path", path),
		zap.Int("documents", count))
	return count, nil
}

// RemoveSource deletes every document previously indexed from the given
// source path. Used when a corpus file disappears.
func (ix *Indexer) RemoveSource(ctx context.Context, source string) (int, error) {
	ids, err := ix.storage.DocumentIDsBySource(ctx, source)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, id := range ids {
		if err := ix.DeleteDocument(ctx, id); err != nil {
			ix.logger.Warn("failed to remove document",
				zap.String("id", id), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		ix.logger.Info("source removed",
			zap.String("source", source),
			zap.Int("documents", removed))
	}
	return removed, nil
}

// RebuildKeywordIndex reindexes every stored document into the keyword
// index. Run at startup when the keyword index is fresh while storage
// already has documents.
func (ix *Indexer) RebuildKeywordIndex(ctx context.Context) (int, error) {
	if ix.keywordIndex == nil {
		return 0, fmt.Errorf("no keyword index configured")
	}
	docs, err := ix.storage.AllDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate documents: %w", err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, doc := range docs {
		if err := ix.keywordIndex.Index(ctx, doc.ID, doc); err != nil {
			return 0, fmt.Errorf("failed to reindex %s: %w", doc.ID, err)
		}
	}
	return len(docs), nil
}

// FileDocumentID is the deterministic ID of the n-th document in a corpus
// file.
func FileDocumentID(path string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", path, position))).String()
}
