// Package catalog owns product business rules on top of the product
// repository.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/repo"
	"github.com/storefront-labs/storefront-go/internal/retry"
)

type Service struct {
	products repo.ProductRepository
	exec     *retry.Executor
	tracer   trace.Tracer
}

func New(products repo.ProductRepository, exec *retry.Executor) *Service {
	return &Service{
		products: products,
		exec:     exec,
		tracer:   otel.Tracer("service/catalog"),
	}
}

func (s *Service) Create(ctx context.Context, name string, price float64, stock int) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, fmt.Errorf("catalog service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "create_product")
	defer span.End()

	product := domain.Product{
		Name:  strings.TrimSpace(name),
		Price: price,
		Stock: stock,
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrInvalid, err)
	}

	created, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.Product, error) {
		return s.products.Create(ctx, product)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create product")
		return domain.Product{}, err
	}
	span.SetAttributes(attribute.Int64("product.id", created.ID))
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	if s == nil || s.products == nil {
		return domain.Product{}, fmt.Errorf("catalog service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "get_product")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	if id <= 0 {
		return domain.Product{}, fmt.Errorf("%w: product id must be positive", domain.ErrInvalid)
	}
	product, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.Product, error) {
		return s.products.Get(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) List(ctx context.Context, filter repo.ProductFilter) ([]domain.Product, error) {
	if s == nil || s.products == nil {
		return nil, fmt.Errorf("catalog service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "get_products")
	defer span.End()

	products, err := retry.Do(ctx, s.exec, func(ctx context.Context) ([]domain.Product, error) {
		return s.products.List(ctx, filter)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list products")
		return nil, err
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}
