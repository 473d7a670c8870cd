// Package integration exercises retrieval against real storage and indices.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/queryscout/queryscout/internal/config"
	"github.com/queryscout/queryscout/internal/embedding"
	"github.com/queryscout/queryscout/internal/indexer"
	"github.com/queryscout/queryscout/internal/keyword"
	"github.com/queryscout/queryscout/internal/models"
	"github.com/queryscout/queryscout/internal/retriever"
	"github.com/queryscout/queryscout/internal/storage"
	"github.com/queryscout/queryscout/internal/vector"
)

func TestIntegration_Search(t *testing.T) {
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "corpus.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewMockEmbedder(8)
	vecIndex, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	cfg := config.SearchConfig{
		TopK: 20, VectorWeight: 0.7, KeywordWeight: 0.3,
		LexicalVectorWeight: 0.4, SemanticVectorWeight: 0.85,
		DedupThreshold: 0.7, MaxDiverse: 200, VectorTimeoutSeconds: 5,
	}
	ret := retriever.New(store, embedder, vecIndex, kwIndex, &cfg, nil)
	ix := indexer.New(store, embedder, vecIndex, kwIndex, nil)
	ctx := context.Background()

	if _, err := ix.IndexDocument(ctx, &models.DocumentInput{
		ID:      "q1",
		Content: "SELECT customer_id, COUNT(*) FROM orders GROUP BY customer_id",
		Metadata: models.Metadata{Description: "order counts per customer", Tables: []string{"orders"}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.IndexDocument(ctx, &models.DocumentInput{
		ID:      "q2",
		Content: "SELECT SUM(amount) FROM invoices WHERE paid = 1",
		Metadata: models.Metadata{Description: "paid invoice totals", Tables: []string{"invoices"}},
	}); err != nil {
		t.Fatal(err)
	}

	// Keyword-heavy weights: the mock embedder's vector scores carry no
	// semantic signal, the lexical overlap with q1's description does.
	weights := models.NewSearchWeights(0.2, 0.8)
	results, info, err := ret.Retrieve(ctx, "order counts per customer", retriever.Options{K: 5, Weights: &weights})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least 1 result")
	}
	if info.Method == "" {
		t.Error("method not reported")
	}
	if results[0].Document.ID != "q1" {
		t.Errorf("top result = %s, want q1", results[0].Document.ID)
	}
}
