package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/repo"
)

type OrderStore struct {
	db DB
}

func NewOrderStore(db DB) *OrderStore {
	if db == nil {
		return nil
	}
	return &OrderStore{db: db}
}

const insertOrderQuery = `INSERT INTO orders (
	order_id,
	user_id,
	product_id,
	quantity,
	total_price,
	status,
	payment_ref,
	idempotency_key,
	created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (idempotency_key) DO NOTHING`

func (s *OrderStore) Create(ctx context.Context, order domain.Order) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("order store not initialized")
	}
	if err := order.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(
		ctx,
		insertOrderQuery,
		strings.TrimSpace(order.ID),
		order.UserID,
		order.ProductID,
		order.Quantity,
		order.TotalPrice,
		string(order.Status),
		nullString(order.PaymentRef),
		nullString(order.IdempotencyKey),
		normalizeTime(order.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert order: %w", repo.ErrConflict)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("insert order: %w", repo.ErrConflict)
	}
	return nil
}

const selectOrderColumns = `order_id, user_id, product_id, quantity, total_price, status, payment_ref, idempotency_key, created_at`

func (s *OrderStore) Get(ctx context.Context, id string) (domain.Order, error) {
	if s == nil || s.db == nil {
		return domain.Order{}, fmt.Errorf("order store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Order{}, fmt.Errorf("order id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectOrderColumns+` FROM orders WHERE order_id = $1`,
		id,
	)
	return scanOrder(row)
}

func (s *OrderStore) GetByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	if s == nil || s.db == nil {
		return domain.Order{}, fmt.Errorf("order store not initialized")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Order{}, fmt.Errorf("idempotency key is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectOrderColumns+` FROM orders WHERE idempotency_key = $1`,
		key,
	)
	return scanOrder(row)
}

func (s *OrderStore) List(ctx context.Context, filter repo.OrderFilter) ([]domain.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order store not initialized")
	}
	query, args := buildOrderListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("order store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("order id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("unsupported order status: %q", status)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE orders SET status = $2 WHERE order_id = $1`,
		id,
		string(status),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *OrderStore) AppendEvent(ctx context.Context, event domain.OrderEvent) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("order store not initialized")
	}
	if err := event.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO order_events (order_id, status, note, occurred_at)
		 VALUES ($1,$2,$3,$4)
		 RETURNING event_id`,
		strings.TrimSpace(event.OrderID),
		string(event.Status),
		nullString(event.Note),
		normalizeTime(event.OccurredAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append order event: %w", err)
	}
	return id, nil
}

func (s *OrderStore) ListEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("order store not initialized")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT event_id, order_id, status, note, occurred_at
		 FROM order_events
		 WHERE order_id = $1
		 ORDER BY event_id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.OrderEvent, 0)
	for rows.Next() {
		var ev domain.OrderEvent
		var note sql.NullString
		if err := rows.Scan(&ev.ID, &ev.OrderID, &ev.Status, &note, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		ev.Note = note.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order          domain.Order
		paymentRef     sql.NullString
		idempotencyKey sql.NullString
	)
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.ProductID,
		&order.Quantity,
		&order.TotalPrice,
		&order.Status,
		&paymentRef,
		&idempotencyKey,
		&order.CreatedAt,
	); err != nil {
		return domain.Order{}, handleNotFound(err)
	}
	order.PaymentRef = paymentRef.String
	order.IdempotencyKey = idempotencyKey.String
	return order, nil
}

func buildOrderListQuery(filter repo.OrderFilter) (string, []any) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)

	if filter.UserID > 0 {
		args = append(args, filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + selectOrderColumns + ` FROM orders`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, order_id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
