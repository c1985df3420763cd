package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/feedscope/feedscope/pkg/domain"
)

// ProductRepository handles product and source database operations
type ProductRepository struct {
	db *sqlx.DB
}

type productSQL struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

type sourceSQL struct {
	ID        int64     `db:"id"`
	ProductID int64     `db:"product_id"`
	Type      string    `db:"type"`
	Name      string    `db:"name"`
	Token     string    `db:"token"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
}

// NewProductRepository creates a new product repository
func NewProductRepository(database *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: database}
}

func toDomainProduct(p *productSQL) *domain.Product {
	return &domain.Product{ID: p.ID, Name: p.Name, Description: p.Description, CreatedAt: p.CreatedAt}
}

func toDomainSource(s *sourceSQL) *domain.Source {
	return &domain.Source{ID: s.ID, ProductID: s.ProductID, Type: s.Type, Name: s.Name,
		Token: s.Token, Enabled: s.Enabled, CreatedAt: s.CreatedAt}
}

// CreateProduct inserts a product and returns its ID
func (r *ProductRepository) CreateProduct(ctx context.Context, p *domain.Product) (int64, error) {
	var id int64
	err := newRetrier().Do(ctx, func() error {
		res, execErr := r.db.ExecContext(ctx,
			"INSERT INTO products (name, description) VALUES (?, ?)", p.Name, p.Description)
		if execErr != nil {
			if isLockError(execErr) {
				return execErr // retry
			}
			return &criticalError{err: fmt.Errorf("insert product: %w", execErr)}
		}
		lastID, execErr := res.LastInsertId()
		if execErr != nil {
			return &criticalError{err: fmt.Errorf("last insert id: %w", execErr)}
		}
		id = lastID
		return nil
	})
	return id, err
}

// GetProduct returns a product by ID
func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var row productSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM products WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return toDomainProduct(&row), nil
}

// ListProducts returns all products ordered by name
func (r *ProductRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	var rows []productSQL
	if err := r.db.SelectContext(ctx, &rows, "SELECT * FROM products ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := make([]*domain.Product, len(rows))
	for i := range rows {
		products[i] = toDomainProduct(&rows[i])
	}
	return products, nil
}

// DeleteProduct removes a product and, via cascade, its sources and feedback
func (r *ProductRepository) DeleteProduct(ctx context.Context, id int64) error {
	return newRetrier().Do(ctx, func() error {
		res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("delete product: %w", err)}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return &criticalError{err: fmt.Errorf("rows affected: %w", err)}
		}
		if affected == 0 {
			return &criticalError{err: ErrNotFound}
		}
		return nil
	})
}

// CreateSource registers an ingestion source for a product
func (r *ProductRepository) CreateSource(ctx context.Context, s *domain.Source) (int64, error) {
	var id int64
	err := newRetrier().Do(ctx, func() error {
		res, execErr := r.db.ExecContext(ctx,
			"INSERT INTO sources (product_id, type, name, token, enabled) VALUES (?, ?, ?, ?, ?)",
			s.ProductID, s.Type, s.Name, s.Token, s.Enabled)
		if execErr != nil {
			if isLockError(execErr) {
				return execErr // retry
			}
			return &criticalError{err: fmt.Errorf("insert source: %w", execErr)}
		}
		lastID, execErr := res.LastInsertId()
		if execErr != nil {
			return &criticalError{err: fmt.Errorf("last insert id: %w", execErr)}
		}
		id = lastID
		return nil
	})
	return id, err
}

// GetSource returns a source by ID
func (r *ProductRepository) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	var row sourceSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM sources WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get source %d: %w", id, err)
	}
	return toDomainSource(&row), nil
}

// GetOrCreateSource finds a source by product and name, creating it when
// absent. Used by ingestion paths that identify sources by name.
func (r *ProductRepository) GetOrCreateSource(ctx context.Context, productID int64, srcType, name string) (*domain.Source, error) {
	var row sourceSQL
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM sources WHERE product_id = ? AND name = ?", productID, name)
	if err == nil {
		return toDomainSource(&row), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get source %q: %w", name, err)
	}

	src := &domain.Source{ProductID: productID, Type: srcType, Name: name, Enabled: true}
	id, err := r.CreateSource(ctx, src)
	if err != nil {
		return nil, err
	}
	src.ID = id
	return src, nil
}

// ListSources returns all sources for a product
func (r *ProductRepository) ListSources(ctx context.Context, productID int64) ([]*domain.Source, error) {
	var rows []sourceSQL
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM sources WHERE product_id = ? ORDER BY name", productID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	sources := make([]*domain.Source, len(rows))
	for i := range rows {
		sources[i] = toDomainSource(&rows[i])
	}
	return sources, nil
}

// SetSourceEnabled enables or disables a source
func (r *ProductRepository) SetSourceEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE sources SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("update source enabled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
