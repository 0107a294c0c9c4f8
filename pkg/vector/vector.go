// Package vector provides the embedder and approximate-nearest-neighbor
// store collaborators behind the similarity-search operation. Both are
// named interfaces so the query executor never depends on a concrete
// embedding backend or ANN library directly, mirroring the
// Embedder/VectorStore split used for semantic indexing elsewhere in the
// retrieved pack.
package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
)

// Embedder turns text into an embedding vector. A production deployment
// would call out to a model server; strata ships no such backend (out of
// scope), only the interface and a deterministic test double.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Store is the per-index approximate-nearest-neighbor index over document
// embeddings, keyed by external document id.
type Store struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	vectors map[string][]float32
}

// NewStore creates an empty vector store.
func NewStore() *Store {
	return &Store{
		graph:   hnsw.NewGraph[string](),
		vectors: make(map[string][]float32),
	}
}

// Add inserts or replaces the embeddings for the given external document
// ids. len(ids) must equal len(vectors).
func (s *Store) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("vector: %d ids but %d vectors", len(ids), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]hnsw.Node[string], 0, len(ids))
	for i, id := range ids {
		nodes = append(nodes, hnsw.MakeNode(id, hnsw.Vector(vectors[i])))
		s.vectors[id] = vectors[i]
	}
	s.graph.Add(nodes...)
	return nil
}

// Delete removes vectors by external document id. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.graph.Delete(id)
		delete(s.vectors, id)
	}
	return nil
}

// Vector returns the stored embedding for id, if any.
func (s *Store) Vector(id string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[id]
	return v, ok
}

// Search returns the k nearest document ids to query, nearest first.
func (s *Store) Search(query []float32, k int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	neighbors := s.graph.Search(hnsw.Vector(query), k)
	out := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, n.Key)
	}
	return out, nil
}

// AllIDs returns every document id currently stored.
func (s *Store) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.vectors))
	for id := range s.vectors {
		out = append(out, id)
	}
	return out
}

// Count returns the number of vectors stored.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Close is a no-op for the in-memory graph; present so Store satisfies the
// same lifecycle shape as the other storage collaborators.
func (s *Store) Close() error { return nil }
