package repo

import (
	"context"
	"errors"

	"github.com/storefront-labs/storefront-go/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type UserFilter struct {
	Email string
	Limit int
}

type ProductFilter struct {
	Name  string
	Limit int
}

type OrderFilter struct {
	UserID int64
	Status domain.OrderStatus
	Limit  int
}

// UserRepository manages storefront customers.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Get(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

// ProductRepository manages the catalog and its stock counts.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, error)
	DecrementStock(ctx context.Context, id int64, quantity int) error
}

// OrderRepository manages orders and their append-only event history.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	AppendEvent(ctx context.Context, event domain.OrderEvent) (int64, error)
	ListEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error)
}
