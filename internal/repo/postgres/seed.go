package postgres

import (
	"context"
	"fmt"

	"github.com/storefront-labs/storefront-go/internal/domain"
)

var seedUsers = []domain.User{
	{Name: "Alice Johnson", Email: "alice@example.com"},
	{Name: "Bob Smith", Email: "bob@example.com"},
	{Name: "Carol Davis", Email: "carol@example.com"},
}

var seedProducts = []domain.Product{
	{Name: "Laptop", Price: 999.99, Stock: 10},
	{Name: "Mouse", Price: 29.99, Stock: 50},
	{Name: "Keyboard", Price: 79.99, Stock: 30},
	{Name: "Monitor", Price: 299.99, Stock: 15},
	{Name: "Headphones", Price: 149.99, Stock: 25},
}

// Seed inserts the demo catalog and customers. Reruns are no-ops: users
// conflict on email and products are skipped once any rows exist.
func Seed(ctx context.Context, db DB) error {
	if db == nil {
		return fmt.Errorf("database is required")
	}
	for _, user := range seedUsers {
		_, err := db.ExecContext(
			ctx,
			`INSERT INTO users (name, email) VALUES ($1, $2) ON CONFLICT (email) DO NOTHING`,
			user.Name,
			user.Email,
		)
		if err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}

	var productCount int64
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&productCount); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	if productCount > 0 {
		return nil
	}
	for _, product := range seedProducts {
		_, err := db.ExecContext(
			ctx,
			`INSERT INTO products (name, price, stock) VALUES ($1, $2, $3)`,
			product.Name,
			product.Price,
			product.Stock,
		)
		if err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}
	return nil
}

// SampleUsers generates deterministic demo customers beyond the seed set.
func SampleUsers(count int) []domain.User {
	users := make([]domain.User, 0, count)
	for i := 0; i < count; i++ {
		users = append(users, domain.User{
			Name:  fmt.Sprintf("User %d", i+1),
			Email: fmt.Sprintf("user%d@example.com", i+1),
		})
	}
	return users
}

// SampleProducts generates deterministic demo catalog entries by cycling
// through the seed product names.
func SampleProducts(count int) []domain.Product {
	products := make([]domain.Product, 0, count)
	for i := 0; i < count; i++ {
		base := seedProducts[i%len(seedProducts)]
		products = append(products, domain.Product{
			Name:  fmt.Sprintf("%s %d", base.Name, i/len(seedProducts)+1),
			Price: base.Price,
			Stock: base.Stock,
		})
	}
	return products
}
