package catalog

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

type fakeProductRepo struct {
	nextID int64
	byID   map[int64]domain.Product

	failures int
	failWith error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{nextID: 1, byID: map[int64]domain.Product{}}
}

func (f *fakeProductRepo) fail() error {
	if f.failures > 0 {
		f.failures--
		return f.failWith
	}
	return nil
}

func (f *fakeProductRepo) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := f.fail(); err != nil {
		return domain.Product{}, err
	}
	product.ID = f.nextID
	f.nextID++
	f.byID[product.ID] = product
	return product, nil
}

func (f *fakeProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	if err := f.fail(); err != nil {
		return domain.Product{}, err
	}
	product, ok := f.byID[id]
	if !ok {
		return domain.Product{}, repo.ErrNotFound
	}
	return product, nil
}

func (f *fakeProductRepo) List(ctx context.Context, filter repo.ProductFilter) ([]domain.Product, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(f.byID))
	for _, p := range f.byID {
		if filter.Name != "" && p.Name != filter.Name {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductRepo) DecrementStock(ctx context.Context, id int64, quantity int) error {
	if err := f.fail(); err != nil {
		return err
	}
	product, ok := f.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	if product.Stock < quantity {
		return repo.ErrInsufficientStock
	}
	product.Stock -= quantity
	f.byID[id] = product
	return nil
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

func TestCreate(t *testing.T) {
	svc := New(newFakeProductRepo(), newTestExecutor(t))

	product, err := svc.Create(context.Background(), " Laptop ", 999.99, 10)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if product.ID != 1 || product.Name != "Laptop" {
		t.Fatalf("product=%+v", product)
	}
}

func TestCreate_Invalid(t *testing.T) {
	svc := New(newFakeProductRepo(), newTestExecutor(t))

	cases := []struct {
		name  string
		pname string
		price float64
		stock int
	}{
		{"empty name", "", 10, 1},
		{"zero price", "Mouse", 0, 1},
		{"negative stock", "Mouse", 10, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.pname, tc.price, tc.stock)
			if !errors.Is(err, domain.ErrInvalid) {
				t.Fatalf("err=%v, want ErrInvalid", err)
			}
		})
	}
}

func TestGet(t *testing.T) {
	store := newFakeProductRepo()
	svc := New(store, newTestExecutor(t))
	created, err := svc.Create(context.Background(), "Laptop", 999.99, 10)
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if got.Price != 999.99 {
		t.Fatalf("Price=%v", got.Price)
	}

	if _, err := svc.Get(context.Background(), 42); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestList_RetriesTransientFailure(t *testing.T) {
	store := newFakeProductRepo()
	svc := New(store, newTestExecutor(t))
	if _, err := svc.Create(context.Background(), "Laptop", 999.99, 10); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	store.failures = 3
	store.failWith = errTransient
	got, err := svc.List(context.Background(), repo.ProductFilter{})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len=%d, want 1", len(got))
	}
}

func TestList_PermanentFailureNotRetried(t *testing.T) {
	store := newFakeProductRepo()
	store.failures = 1
	store.failWith = errors.New("syntax error")
	svc := New(store, newTestExecutor(t))

	if _, err := svc.List(context.Background(), repo.ProductFilter{}); err == nil {
		t.Fatalf("List() expected error")
	}
	if store.failures != 0 {
		t.Fatalf("expected single attempt")
	}
}
