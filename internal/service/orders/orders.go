// Package orders drives the order lifecycle: stock reservation, mock
// payment, persistence with idempotency, and the notification step.
// Payment, inventory and notification run as child spans so the trace
// shows the same shape the demo is meant to produce.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/repo"
	"github.com/storefront-labs/storefront-go/internal/retry"
	"github.com/storefront-labs/storefront-go/internal/service/simulate"
)

type Service struct {
	orders   repo.OrderRepository
	products repo.ProductRepository
	users    repo.UserRepository
	exec     *retry.Executor
	sim      *simulate.Simulator
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func New(orders repo.OrderRepository, products repo.ProductRepository, users repo.UserRepository, exec *retry.Executor, sim *simulate.Simulator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orders:   orders,
		products: products,
		users:    users,
		exec:     exec,
		sim:      sim,
		logger:   logger,
		tracer:   otel.Tracer("service/orders"),
		now:      time.Now,
	}
}

type CreateRequest struct {
	UserID         int64
	ProductID      int64
	Quantity       int
	IdempotencyKey string
}

func (r CreateRequest) validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalid)
	}
	if r.ProductID <= 0 {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalid)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalid)
	}
	return nil
}

// Create places an order. Replays with the same idempotency key return
// the stored order without touching stock again.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, fmt.Errorf("order service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "create_order")
	defer span.End()

	if err := req.validate(); err != nil {
		return domain.Order{}, err
	}
	span.SetAttributes(
		attribute.Int64("order.user_id", req.UserID),
		attribute.Int64("order.product_id", req.ProductID),
		attribute.Int("order.quantity", req.Quantity),
	)

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.Order, error) {
			return s.orders.GetByIdempotencyKey(ctx, key)
		})
		if err == nil {
			span.SetAttributes(attribute.Bool("order.idempotent_replay", true))
			return existing, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			span.RecordError(err)
			return domain.Order{}, err
		}
	} else {
		key = uuid.NewString()
	}

	if _, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.User, error) {
		return s.users.Get(ctx, req.UserID)
	}); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("user %d: %w", req.UserID, repo.ErrNotFound)
		}
		span.RecordError(err)
		return domain.Order{}, err
	}

	product, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.Product, error) {
		return s.products.Get(ctx, req.ProductID)
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("product %d: %w", req.ProductID, repo.ErrNotFound)
		}
		span.RecordError(err)
		return domain.Order{}, err
	}

	s.sim.Order(ctx)

	if err := s.reserveStock(ctx, req.ProductID, req.Quantity); err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}

	paymentRef := s.processPayment(ctx)

	order := domain.Order{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		TotalPrice:     product.Price * float64(req.Quantity),
		Status:         domain.OrderStatusPending,
		PaymentRef:     paymentRef,
		IdempotencyKey: key,
		CreatedAt:      s.now().UTC(),
	}
	if err := order.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrInvalid, err)
	}

	if err := s.exec.Do(ctx, func(ctx context.Context) error {
		return s.orders.Create(ctx, order)
	}); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			// Lost a race on the idempotency key; the winner's row is
			// the canonical order.
			winner, raceErr := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.Order, error) {
				return s.orders.GetByIdempotencyKey(ctx, key)
			})
			if raceErr != nil {
				span.RecordError(raceErr)
				return domain.Order{}, raceErr
			}
			return winner, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order")
		return domain.Order{}, err
	}
	s.appendEvent(ctx, order.ID, domain.OrderStatusPending, "order received")

	if err := s.exec.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCompleted)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete order")
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatusCompleted
	s.appendEvent(ctx, order.ID, domain.OrderStatusCompleted, "payment "+paymentRef+" captured")

	s.sendNotification(ctx, order)

	span.SetAttributes(attribute.String("order.id", order.ID))
	return order, nil
}

func (s *Service) reserveStock(ctx context.Context, productID int64, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "inventory_update")
	defer span.End()

	s.sim.Inventory(ctx)

	err := s.exec.Do(ctx, func(ctx context.Context) error {
		return s.products.DecrementStock(ctx, productID, quantity)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Service) processPayment(ctx context.Context) string {
	ctx, span := s.tracer.Start(ctx, "payment_processing")
	defer span.End()

	s.sim.Payment(ctx)

	ref := "pay-" + uuid.NewString()
	span.SetAttributes(attribute.String("payment.ref", ref))
	return ref
}

func (s *Service) sendNotification(ctx context.Context, order domain.Order) {
	ctx, span := s.tracer.Start(ctx, "email_notification")
	defer span.End()

	s.sim.Notification(ctx)

	s.logger.Info("order confirmation sent",
		"order_id", order.ID,
		"user_id", order.UserID,
	)
}

// appendEvent records order history best-effort: a failed append never
// fails the order itself.
func (s *Service) appendEvent(ctx context.Context, orderID string, status domain.OrderStatus, note string) {
	_, err := s.orders.AppendEvent(ctx, domain.OrderEvent{
		OrderID:    orderID,
		Status:     status,
		Note:       note,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("append order event failed", "order_id", orderID, "status", status, "error", err)
	}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, fmt.Errorf("order service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "get_order")
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", domain.ErrInvalid)
	}
	span.SetAttributes(attribute.String("order.id", id))
	order, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.Order, error) {
		return s.orders.Get(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, filter repo.OrderFilter) ([]domain.Order, error) {
	if s == nil || s.orders == nil {
		return nil, fmt.Errorf("order service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "get_orders")
	defer span.End()

	ordersList, err := retry.Do(ctx, s.exec, func(ctx context.Context) ([]domain.Order, error) {
		return s.orders.List(ctx, filter)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list orders")
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders.count", len(ordersList)))
	return ordersList, nil
}

func (s *Service) Events(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	if s == nil || s.orders == nil {
		return nil, fmt.Errorf("order service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "get_order_events")
	defer span.End()

	if strings.TrimSpace(orderID) == "" {
		return nil, fmt.Errorf("%w: order id is required", domain.ErrInvalid)
	}
	// 404 for unknown orders rather than an empty history.
	if _, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.Order, error) {
		return s.orders.Get(ctx, orderID)
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}
	events, err := retry.Do(ctx, s.exec, func(ctx context.Context) ([]domain.OrderEvent, error) {
		return s.orders.ListEvents(ctx, orderID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return events, nil
}
