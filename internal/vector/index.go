// Package vector provides the nearest-neighbor index and similarity helpers.
package vector

import "context"

// VectorIndex defines vector storage and similarity search. The retrieval
// pipeline treats the index as an opaque nearest-neighbor oracle; external
// backends plug in behind this interface.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single vector search hit; ID is a document ID.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity for normalized vectors
}
