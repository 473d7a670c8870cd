// Package storage defines the persistence interface for the query corpus.
package storage

import (
	"context"

	"github.com/queryscout/queryscout/internal/models"
)

// Storage defines corpus document persistence. The loaded corpus is the
// enumerable collection the keyword index is (re)built from; during a
// request it is read-only.
type Storage interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// AllDocuments enumerates the full corpus, for keyword index rebuilds.
	AllDocuments(ctx context.Context) ([]*models.Document, error)
	// DocumentIDsBySource returns IDs of documents ingested from the given
	// source path, for watcher-driven removal.
	DocumentIDsBySource(ctx context.Context, source string) ([]string, error)

	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
