package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process brute-force index. Suitable for tests and
// small single-node deployments; everything is lost on restart, which is fine
// because the pipeline can re-embed from the record store.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[int64]Entry
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[int64]Entry)}
}

// Upsert stores or replaces the entry for its ID
func (m *MemoryIndex) Upsert(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	vec := make([]float32, len(entry.Vector))
	copy(vec, entry.Vector)
	entry.Vector = vec
	m.entries[entry.ID] = entry
	return nil
}

// Query returns up to limit entries by descending cosine similarity
func (m *MemoryIndex) Query(_ context.Context, vec []float32, limit int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.entries))
	for _, entry := range m.entries {
		matches = append(matches, Match{
			ID:       entry.ID,
			Score:    cosineSimilarity(vec, entry.Vector),
			Metadata: entry.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID // stable order for equal scores
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// GetVector returns the stored vector for an ID
func (m *MemoryIndex) GetVector(_ context.Context, id int64) ([]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrVectorNotFound
	}
	vec := make([]float32, len(entry.Vector))
	copy(vec, entry.Vector)
	return vec, nil
}

// Delete removes entries by ID, unknown IDs are ignored
func (m *MemoryIndex) Delete(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

// Close is a no-op for the in-memory index
func (m *MemoryIndex) Close() {}

// Len returns the number of stored entries
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
