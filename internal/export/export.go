// Package export builds order reports and uploads them to the object
// store as newline-delimited JSON.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/repo"
	"github.com/storefront-labs/storefront-go/internal/retry"
)

// Uploader abstracts the object store so tests run without MinIO.
type Uploader interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error
}

type Service struct {
	orders   repo.OrderRepository
	uploader Uploader
	bucket   string
	exec     *retry.Executor
	tracer   trace.Tracer
}

func New(orders repo.OrderRepository, uploader Uploader, bucket string, exec *retry.Executor) *Service {
	return &Service{
		orders:   orders,
		uploader: uploader,
		bucket:   bucket,
		exec:     exec,
		tracer:   otel.Tracer("export"),
	}
}

type Report struct {
	Key        string `json:"key"`
	Bucket     string `json:"bucket"`
	OrderCount int    `json:"order_count"`
}

// Run exports all orders as NDJSON under orders/<uuid>.ndjson and
// returns the object key.
func (s *Service) Run(ctx context.Context) (Report, error) {
	if s == nil || s.orders == nil || s.uploader == nil {
		return Report{}, fmt.Errorf("export service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "export_orders")
	defer span.End()

	ordersList, err := retry.Do(ctx, s.exec, func(ctx context.Context) ([]domain.Order, error) {
		return s.orders.List(ctx, repo.OrderFilter{})
	})
	if err != nil {
		span.RecordError(err)
		return Report{}, fmt.Errorf("list orders: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteNDJSON(&buf, ordersList); err != nil {
		return Report{}, fmt.Errorf("encode report: %w", err)
	}

	key := "orders/" + uuid.NewString() + ".ndjson"
	err = s.exec.Do(ctx, func(ctx context.Context) error {
		return s.uploader.Put(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/x-ndjson")
	})
	if err != nil {
		span.RecordError(err)
		return Report{}, fmt.Errorf("upload report: %w", err)
	}

	span.SetAttributes(
		attribute.String("report.key", key),
		attribute.Int("report.order_count", len(ordersList)),
	)
	return Report{Key: key, Bucket: s.bucket, OrderCount: len(ordersList)}, nil
}

type reportLine struct {
	OrderID    string  `json:"order_id"`
	UserID     int64   `json:"user_id"`
	ProductID  int64   `json:"product_id"`
	Quantity   int     `json:"quantity"`
	TotalPrice float64 `json:"total_price"`
	Status     string  `json:"status"`
	PaymentRef string  `json:"payment_ref,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// WriteNDJSON writes one JSON object per order, newline-delimited.
func WriteNDJSON(w io.Writer, ordersList []domain.Order) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	for _, order := range ordersList {
		line := reportLine{
			OrderID:    order.ID,
			UserID:     order.UserID,
			ProductID:  order.ProductID,
			Quantity:   order.Quantity,
			TotalPrice: order.TotalPrice,
			Status:     string(order.Status),
			PaymentRef: order.PaymentRef,
			CreatedAt:  order.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}
