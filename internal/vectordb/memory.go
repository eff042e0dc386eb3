package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-memory vector store implementation
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[string]Document
	dimension int
}

// NewMemoryStore creates a new in-memory vector store
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		documents: make(map[string]Document),
		dimension: dimension,
	}
}

// Store saves a document with its embedding
func (m *MemoryStore) Store(ctx context.Context, doc Document) error {
	return m.StoreBatch(ctx, []Document{doc})
}

// StoreBatch saves multiple documents; nothing is stored if any is invalid.
func (m *MemoryStore) StoreBatch(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		if err := checkDocument(doc, m.dimension); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.documents[doc.ID] = doc
	}
	return nil
}

// Query finds k most similar documents to query embedding
func (m *MemoryStore) Query(ctx context.Context, embedding []float32, k int) ([]SimilarDocument, error) {
	if k <= 0 {
		return []SimilarDocument{}, nil
	}
	if len(embedding) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", ErrDimensionMismatch, len(embedding), m.dimension)
	}

	m.mu.RLock()
	similarities := make([]SimilarDocument, 0, len(m.documents))
	for _, doc := range m.documents {
		similarities = append(similarities, SimilarDocument{
			Document: doc,
			Score:    cosineSimilarity(embedding, doc.Embedding),
		})
	}
	m.mu.RUnlock()

	sort.Slice(similarities, func(i, j int) bool {
		if similarities[i].Score != similarities[j].Score {
			return similarities[i].Score > similarities[j].Score
		}
		return similarities[i].ID < similarities[j].ID
	})

	if k > len(similarities) {
		k = len(similarities)
	}
	return similarities[:k], nil
}

// All returns every document ordered by path and chunk.
func (m *MemoryStore) All(ctx context.Context) ([]Document, error) {
	m.mu.RLock()
	docs := make([]Document, 0, len(m.documents))
	for _, doc := range m.documents {
		doc.Embedding = nil
		docs = append(docs, doc)
	}
	m.mu.RUnlock()

	sortDocuments(docs)
	return docs, nil
}

// Delete removes documents by path
func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, doc := range m.documents {
		if doc.Path == path {
			delete(m.documents, id)
		}
	}
	return nil
}

// Clear removes all documents
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.documents = make(map[string]Document)
	return nil
}

// Count returns total number of documents
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.documents), nil
}

// Dimension returns the accepted vector length.
func (m *MemoryStore) Dimension() int {
	return m.dimension
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Path != docs[j].Path {
			return docs[i].Path < docs[j].Path
		}
		return docs[i].ChunkIndex < docs[j].ChunkIndex
	})
}

// cosineSimilarity maps cosine onto 0..1 so both stores report the same scale.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32((cos + 1) / 2)
}
