// Package vectordb stores embedded chunks and answers nearest-neighbour
// queries over them.
package vectordb

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyID is returned when a document has no ID.
	ErrEmptyID = errors.New("document ID cannot be empty")
	// ErrDimensionMismatch is returned when a vector's length differs from the store's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Document is one chunk of a file with its embedding.
type Document struct {
	ID         string
	Path       string
	Content    string
	Embedding  []float32
	ChunkIndex int
	StartLine  int
	EndLine    int
	UpdatedAt  time.Time
}

// SimilarDocument includes similarity score.
type SimilarDocument struct {
	Document
	Score float32 // 1 = identical, 0 = unrelated or opposite
}

// Store manages vector embeddings and similarity search.
type Store interface {
	// Store saves a document with its embedding
	Store(ctx context.Context, doc Document) error
	// StoreBatch saves multiple documents atomically where the backend allows
	StoreBatch(ctx context.Context, docs []Document) error
	// Query finds k most similar documents to the embedding
	Query(ctx context.Context, embedding []float32, k int) ([]SimilarDocument, error)
	// All returns every document without its embedding, ordered by path and chunk
	All(ctx context.Context) ([]Document, error)
	// Delete removes documents by path
	Delete(ctx context.Context, path string) error
	// Clear removes all documents
	Clear(ctx context.Context) error
	// Count returns total number of documents
	Count(ctx context.Context) (int, error)
	// Dimension is the vector length the store accepts
	Dimension() int
	Close() error
}

func checkDocument(doc Document, dim int) error {
	if doc.ID == "" {
		return ErrEmptyID
	}
	if len(doc.Embedding) != dim {
		return fmt.Errorf("%w: document %s has %d, store expects %d", ErrDimensionMismatch, doc.ID, len(doc.Embedding), dim)
	}
	return nil
}
