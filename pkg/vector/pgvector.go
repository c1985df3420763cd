package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgIndex stores vectors in Postgres with the pgvector extension. Cosine
// distance via the <=> operator; score reported as 1 - distance.
type PgIndex struct {
	pool *pgxpool.Pool
}

// NewPgIndex connects to Postgres and prepares the vectors table
func NewPgIndex(ctx context.Context, dsn string, dimensions int) (*PgIndex, error) {
	if dimensions <= 0 {
		dimensions = 1536
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create vector extension: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS feedback_vectors (
			id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			product_id BIGINT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			sentiment TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			snippet TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimensions)
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create vectors table: %w", err)
	}

	return &PgIndex{pool: pool}, nil
}

// Upsert inserts or replaces the vector and its metadata
func (p *PgIndex) Upsert(ctx context.Context, entry Entry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO feedback_vectors (id, embedding, product_id, category, sentiment, title, snippet, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			product_id = EXCLUDED.product_id,
			category = EXCLUDED.category,
			sentiment = EXCLUDED.sentiment,
			title = EXCLUDED.title,
			snippet = EXCLUDED.snippet,
			updated_at = now()`,
		entry.ID, pgvector.NewVector(entry.Vector), entry.Metadata.ProductID,
		entry.Metadata.Category, entry.Metadata.Sentiment, entry.Metadata.Title, entry.Metadata.Snippet)
	if err != nil {
		return fmt.Errorf("upsert vector %d: %w", entry.ID, err)
	}
	return nil
}

// Query returns the closest entries by cosine distance
func (p *PgIndex) Query(ctx context.Context, vec []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, (1 - (embedding <=> $1)) AS score, product_id, category, sentiment, title, snippet
		FROM feedback_vectors
		ORDER BY embedding <=> $1
		LIMIT $2`, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Score, &m.Metadata.ProductID, &m.Metadata.Category,
			&m.Metadata.Sentiment, &m.Metadata.Title, &m.Metadata.Snippet); err != nil {
			return nil, fmt.Errorf("scan vector match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector matches: %w", err)
	}
	return matches, nil
}

// GetVector returns the stored vector for an ID
func (p *PgIndex) GetVector(ctx context.Context, id int64) ([]float32, error) {
	var vec pgvector.Vector
	err := p.pool.QueryRow(ctx,
		"SELECT embedding FROM feedback_vectors WHERE id = $1", id).Scan(&vec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVectorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vector %d: %w", id, err)
	}
	return vec.Slice(), nil
}

// Delete removes vectors by ID
func (p *PgIndex) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := p.pool.Exec(ctx, "DELETE FROM feedback_vectors WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (p *PgIndex) Close() {
	p.pool.Close()
}
