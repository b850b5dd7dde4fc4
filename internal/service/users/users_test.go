package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/repo"
	"github.com/storefront-labs/storefront-go/internal/retry"
)

type fakeUserRepo struct {
	nextID  int64
	byID    map[int64]domain.User
	byEmail map[string]domain.User

	failures int
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		nextID:  1,
		byID:    map[int64]domain.User{},
		byEmail: map[string]domain.User{},
	}
}

func (f *fakeUserRepo) fail() error {
	if f.failures > 0 {
		f.failures--
		return f.failWith
	}
	return nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if err := f.fail(); err != nil {
		return domain.User{}, err
	}
	if _, exists := f.byEmail[user.Email]; exists {
		return domain.User{}, repo.ErrConflict
	}
	user.ID = f.nextID
	f.nextID++
	f.byID[user.ID] = user
	f.byEmail[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) Get(ctx context.Context, id int64) (domain.User, error) {
	if err := f.fail(); err != nil {
		return domain.User{}, err
	}
	user, ok := f.byID[id]
	if !ok {
		return domain.User{}, repo.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) List(ctx context.Context, filter repo.UserFilter) ([]domain.User, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(f.byID))
	for _, u := range f.byID {
		if filter.Email != "" && u.Email != filter.Email {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

var errTransient = errors.New("connection reset")

func newTestExecutor(t *testing.T) *retry.Executor {
	t.Helper()
	classify := func(err error) bool { return errors.Is(err, errTransient) }
	exec, err := retry.New(
		retry.DefaultPolicy(),
		classify,
		retry.WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		retry.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("retry.New() err=%v", err)
	}
	return exec
}

func newService(t *testing.T, store *fakeUserRepo) *Service {
	t.Helper()
	return New(store, newTestExecutor(t), nil)
}

func TestCreate(t *testing.T) {
	store := newFakeUserRepo()
	svc := newService(t, store)

	user, err := svc.Create(context.Background(), "  Alice Johnson  ", "ALICE@Example.com")
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if user.ID != 1 {
		t.Fatalf("ID=%d, want 1", user.ID)
	}
	if user.Name != "Alice Johnson" {
		t.Fatalf("Name=%q, want trimmed", user.Name)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("Email=%q, want lowercased", user.Email)
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	svc := newService(t, newFakeUserRepo())

	_, err := svc.Create(context.Background(), "", "alice@example.com")
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("err=%v, want ErrInvalid", err)
	}

	_, err = svc.Create(context.Background(), "Alice", "not-an-email")
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("err=%v, want ErrInvalid", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	store := newFakeUserRepo()
	svc := newService(t, store)

	if _, err := svc.Create(context.Background(), "Alice", "alice@example.com"); err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	_, err := svc.Create(context.Background(), "Alice Again", "alice@example.com")
	if !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("err=%v, want ErrConflict", err)
	}
}

func TestCreate_RetriesTransientFailure(t *testing.T) {
	store := newFakeUserRepo()
	store.failures = 2
	store.failWith = errTransient
	svc := newService(t, store)

	user, err := svc.Create(context.Background(), "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if user.ID != 1 {
		t.Fatalf("ID=%d, want 1", user.ID)
	}
}

func TestGet(t *testing.T) {
	store := newFakeUserRepo()
	svc := newService(t, store)
	created, err := svc.Create(context.Background(), "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if got.Email != "alice@example.com" {
		t.Fatalf("Email=%q", got.Email)
	}

	if _, err := svc.Get(context.Background(), 999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), 0); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("err=%v, want ErrInvalid", err)
	}
}

func TestList(t *testing.T) {
	store := newFakeUserRepo()
	svc := newService(t, store)
	for _, u := range []struct{ name, email string }{
		{"Alice", "alice@example.com"},
		{"Bob", "bob@example.com"},
	} {
		if _, err := svc.Create(context.Background(), u.name, u.email); err != nil {
			t.Fatalf("Create(%s) err=%v", u.name, err)
		}
	}

	got, err := svc.List(context.Background(), repo.UserFilter{})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2", len(got))
	}
}
