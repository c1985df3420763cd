package vector

import (
	"context"
	"fmt"

	"github.com/feedscope/feedscope/pkg/config"
	"github.com/feedscope/feedscope/pkg/domain"
)

// Metadata is the denormalized payload stored with each vector. It is enough
// to render a search result without touching the record store, but hydration
// still goes through the record store to drop stale matches.
type Metadata struct {
	ProductID int64            `json:"product_id"`
	Category  domain.Category  `json:"category"`
	Sentiment domain.Sentiment `json:"sentiment"`
	Title     string           `json:"title"`
	Snippet   string           `json:"snippet"`
}

// Entry is one vector keyed by feedback ID
type Entry struct {
	ID       int64
	Vector   []float32
	Metadata Metadata
}

// Match is a query result with a cosine similarity score in [0, 1] for
// normalized embeddings, higher is closer
type Match struct {
	ID       int64
	Score    float64
	Metadata Metadata
}

// Index stores embedding vectors and answers nearest-neighbor queries.
// Implementations must make Upsert idempotent: writing the same ID twice
// keeps a single entry.
type Index interface {
	Upsert(ctx context.Context, entry Entry) error
	Query(ctx context.Context, vec []float32, limit int) ([]Match, error)
	GetVector(ctx context.Context, id int64) ([]float32, error)
	Delete(ctx context.Context, ids []int64) error
	Close()
}

// ErrVectorNotFound is returned by GetVector for unknown IDs
var ErrVectorNotFound = fmt.Errorf("vector not found")

// NewIndex creates the configured index backend
func NewIndex(ctx context.Context, cfg config.VectorConfig) (Index, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryIndex(), nil
	case "pgvector":
		return NewPgIndex(ctx, cfg.DSN, cfg.Dimensions)
	}
	return nil, fmt.Errorf("unknown vector provider %q", cfg.Provider)
}
