package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		product_id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC(10,2) NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		CONSTRAINT products_stock_non_negative CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(user_id),
		product_id BIGINT NOT NULL REFERENCES products(product_id),
		quantity INTEGER NOT NULL,
		total_price NUMERIC(10,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_ref TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_events (
		event_id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(order_id),
		status TEXT NOT NULL,
		note TEXT,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS order_events_order_id_idx ON order_events (order_id)`,
}

// EnsureSchema creates the storefront tables when missing. Statements are
// idempotent so startup can run it unconditionally.
func EnsureSchema(ctx context.Context, db DB) error {
	if db == nil {
		return fmt.Errorf("database is required")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
