// Package users owns customer business rules on top of the user
// repository.
package users

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
	"github.com/storefront-labs/storefront-go/internal/service/simulate"
)

type Service struct {
	users  repo.UserRepository
	exec   *retry.Executor
	sim    *simulate.Simulator
	tracer trace.Tracer
}

func New(users repo.UserRepository, exec *retry.Executor, sim *simulate.Simulator) *Service {
	return &Service{
		users:  users,
		exec:   exec,
		sim:    sim,
		tracer: otel.Tracer("service/users"),
	}
}

func (s *Service) Create(ctx context.Context, name string, email string) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, fmt.Errorf("user service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "create_user")
	defer span.End()

	user := domain.User{
		Name:  strings.TrimSpace(name),
		Email: strings.ToLower(strings.TrimSpace(email)),
	}
	if err := user.Validate(); err != nil {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrInvalid, err)
	}

	created, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.User, error) {
		return s.users.Create(ctx, user)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create user")
		return domain.User{}, err
	}
	span.SetAttributes(attribute.Int64("user.id", created.ID))
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, fmt.Errorf("user service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "get_user")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", id))

	if id <= 0 {
		return domain.User{}, fmt.Errorf("%w: user id must be positive", domain.ErrInvalid)
	}
	user, err := retry.Do(ctx, s.exec, func(ctx context.Context) (domain.User, error) {
		return s.users.Get(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, filter repo.UserFilter) ([]domain.User, error) {
	if s == nil || s.users == nil {
		return nil, fmt.Errorf("user service not initialized")
	}
	ctx, span := s.tracer.Start(ctx, "get_users")
	defer span.End()

	s.sim.List(ctx)

	usersList, err := retry.Do(ctx, s.exec, func(ctx context.Context) ([]domain.User, error) {
		return s.users.List(ctx, filter)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list users")
		return nil, err
	}
	span.SetAttributes(attribute.Int("users.count", len(usersList)))
	return usersList, nil
}
