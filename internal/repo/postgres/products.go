package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/repo"
)

type ProductStore struct {
	db DB
}

func NewProductStore(db DB) *ProductStore {
	if db == nil {
		return nil
	}
	return &ProductStore{db: db}
}

func (s *ProductStore) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if s == nil || s.db == nil {
		return domain.Product{}, fmt.Errorf("product store not initialized")
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	row := s.db.QueryRowContext(
		ctx,
		`INSERT INTO products (name, price, stock)
		 VALUES ($1, $2, $3)
		 RETURNING product_id`,
		strings.TrimSpace(product.Name),
		product.Price,
		product.Stock,
	)
	out := domain.Product{
		Name:  strings.TrimSpace(product.Name),
		Price: product.Price,
		Stock: product.Stock,
	}
	if err := row.Scan(&out.ID); err != nil {
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return out, nil
}

func (s *ProductStore) Get(ctx context.Context, id int64) (domain.Product, error) {
	if s == nil || s.db == nil {
		return domain.Product{}, fmt.Errorf("product store not initialized")
	}
	if id <= 0 {
		return domain.Product{}, fmt.Errorf("product id is required")
	}
	var p domain.Product
	row := s.db.QueryRowContext(
		ctx,
		`SELECT product_id, name, price, stock FROM products WHERE product_id = $1`,
		id,
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
		return domain.Product{}, handleNotFound(err)
	}
	return p, nil
}

func (s *ProductStore) List(ctx context.Context, filter repo.ProductFilter) ([]domain.Product, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("product store not initialized")
	}
	query, args := buildProductListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// DecrementStock atomically reserves quantity units, failing with
// repo.ErrInsufficientStock when fewer remain.
func (s *ProductStore) DecrementStock(ctx context.Context, id int64, quantity int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("product store not initialized")
	}
	if id <= 0 {
		return fmt.Errorf("product id is required")
	}
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE products SET stock = stock - $2 WHERE product_id = $1 AND stock >= $2`,
		id,
		quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return repo.ErrInsufficientStock
	}
	return nil
}

func buildProductListQuery(filter repo.ProductFilter) (string, []any) {
	args := make([]any, 0, 2)
	query := `SELECT product_id, name, price, stock FROM products`
	if strings.TrimSpace(filter.Name) != "" {
		args = append(args, strings.TrimSpace(filter.Name))
		query += fmt.Sprintf(" WHERE name = $%d", len(args))
	}
	query += " ORDER BY product_id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}
