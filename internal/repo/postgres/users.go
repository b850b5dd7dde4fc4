package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/repo"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	if db == nil {
		return nil
	}
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if s == nil || s.db == nil {
		return domain.User{}, fmt.Errorf("user store not initialized")
	}
	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}
	row := s.db.QueryRowContext(
		ctx,
		`INSERT INTO users (name, email, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING user_id, created_at`,
		strings.TrimSpace(user.Name),
		strings.ToLower(strings.TrimSpace(user.Email)),
		normalizeTime(user.CreatedAt),
	)
	out := domain.User{
		Name:  strings.TrimSpace(user.Name),
		Email: strings.ToLower(strings.TrimSpace(user.Email)),
	}
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("insert user: %w", repo.ErrConflict)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return out, nil
}

func (s *UserStore) Get(ctx context.Context, id int64) (domain.User, error) {
	if s == nil || s.db == nil {
		return domain.User{}, fmt.Errorf("user store not initialized")
	}
	if id <= 0 {
		return domain.User{}, fmt.Errorf("user id is required")
	}
	var user domain.User
	row := s.db.QueryRowContext(
		ctx,
		`SELECT user_id, name, email, created_at FROM users WHERE user_id = $1`,
		id,
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt); err != nil {
		return domain.User{}, handleNotFound(err)
	}
	return user, nil
}

func (s *UserStore) List(ctx context.Context, filter repo.UserFilter) ([]domain.User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("user store not initialized")
	}
	query, args := buildUserListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func buildUserListQuery(filter repo.UserFilter) (string, []any) {
	args := make([]any, 0, 2)
	query := `SELECT user_id, name, email, created_at FROM users`
	if strings.TrimSpace(filter.Email) != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Email)))
		query += fmt.Sprintf(" WHERE email = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, user_id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}
