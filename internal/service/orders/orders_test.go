package orders

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

type fakeStore struct {
	users    map[int64]domain.User
	products map[int64]domain.Product
	orders   map[string]domain.Order
	byKey    map[string]domain.Order
	events   []domain.OrderEvent

	createFailures int
	createFailWith error
	raceWinner     *domain.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[int64]domain.User{
			1: {ID: 1, Name: "Alice", Email: "alice@example.com"},
		},
		products: map[int64]domain.Product{
			1: {ID: 1, Name: "Laptop", Price: 999.99, Stock: 10},
		},
		orders: map[string]domain.Order{},
		byKey:  map[string]domain.Order{},
	}
}

func (f *fakeStore) Get(ctx context.Context, id int64) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	return domain.User{}, errors.New("not used")
}

func (f *fakeStore) List(ctx context.Context, filter repo.UserFilter) ([]domain.User, error) {
	return nil, errors.New("not used")
}

type fakeProducts struct{ store *fakeStore }

func (f fakeProducts) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	return domain.Product{}, errors.New("not used")
}

func (f fakeProducts) Get(ctx context.Context, id int64) (domain.Product, error) {
	p, ok := f.store.products[id]
	if !ok {
		return domain.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (f fakeProducts) List(ctx context.Context, filter repo.ProductFilter) ([]domain.Product, error) {
	return nil, errors.New("not used")
}

func (f fakeProducts) DecrementStock(ctx context.Context, id int64, quantity int) error {
	p, ok := f.store.products[id]
	if !ok {
		return repo.ErrNotFound
	}
	if p.Stock < quantity {
		return repo.ErrInsufficientStock
	}
	p.Stock -= quantity
	f.store.products[id] = p
	return nil
}

type fakeOrders struct{ store *fakeStore }

func (f fakeOrders) Create(ctx context.Context, order domain.Order) error {
	if f.store.createFailures > 0 {
		f.store.createFailures--
		if errors.Is(f.store.createFailWith, repo.ErrConflict) && f.store.raceWinner != nil {
			f.store.byKey[order.IdempotencyKey] = *f.store.raceWinner
		}
		return f.store.createFailWith
	}
	if _, exists := f.store.byKey[order.IdempotencyKey]; exists {
		return repo.ErrConflict
	}
	f.store.orders[order.ID] = order
	f.store.byKey[order.IdempotencyKey] = order
	return nil
}

func (f fakeOrders) Get(ctx context.Context, id string) (domain.Order, error) {
	o, ok := f.store.orders[id]
	if !ok {
		return domain.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (f fakeOrders) GetByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	o, ok := f.store.byKey[key]
	if !ok {
		return domain.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (f fakeOrders) List(ctx context.Context, filter repo.OrderFilter) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(f.store.orders))
	for _, o := range f.store.orders {
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f fakeOrders) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	o, ok := f.store.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	f.store.orders[id] = o
	f.store.byKey[o.IdempotencyKey] = o
	return nil
}

func (f fakeOrders) AppendEvent(ctx context.Context, event domain.OrderEvent) (int64, error) {
	event.ID = int64(len(f.store.events) + 1)
	f.store.events = append(f.store.events, event)
	return event.ID, nil
}

func (f fakeOrders) ListEvents(ctx context.Context, orderID string) ([]domain.OrderEvent, error) {
	var out []domain.OrderEvent
	for _, e := range f.store.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

var errTransient = errors.New("connection reset")

func newService(t *testing.T, store *fakeStore) *Service {
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
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(fakeOrders{store}, fakeProducts{store}, store, exec, nil, logger)
}

func TestCreate(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)

	order, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 2})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("Status=%q, want completed", order.Status)
	}
	if order.TotalPrice != 999.99*2 {
		t.Fatalf("TotalPrice=%v, want %v", order.TotalPrice, 999.99*2)
	}
	if order.PaymentRef == "" {
		t.Fatalf("expected payment ref")
	}
	if order.IdempotencyKey == "" {
		t.Fatalf("expected generated idempotency key")
	}
	if store.products[1].Stock != 8 {
		t.Fatalf("Stock=%d, want 8", store.products[1].Stock)
	}
	if len(store.events) != 2 {
		t.Fatalf("events=%d, want pending + completed", len(store.events))
	}
	if store.events[0].Status != domain.OrderStatusPending || store.events[1].Status != domain.OrderStatusCompleted {
		t.Fatalf("event statuses=%v, %v", store.events[0].Status, store.events[1].Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := newService(t, newFakeStore())

	cases := []struct {
		name string
		req  CreateRequest
	}{
		{"missing user", CreateRequest{ProductID: 1, Quantity: 1}},
		{"missing product", CreateRequest{UserID: 1, Quantity: 1}},
		{"zero quantity", CreateRequest{UserID: 1, ProductID: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.req); !errors.Is(err, domain.ErrInvalid) {
				t.Fatalf("err=%v, want ErrInvalid", err)
			}
		})
	}
}

func TestCreate_UnknownUserAndProduct(t *testing.T) {
	svc := newService(t, newFakeStore())

	_, err := svc.Create(context.Background(), CreateRequest{UserID: 42, ProductID: 1, Quantity: 1})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	_, err = svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 42, Quantity: 1})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestCreate_InsufficientStock(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)

	_, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 100})
	if !errors.Is(err, repo.ErrInsufficientStock) {
		t.Fatalf("err=%v, want ErrInsufficientStock", err)
	}
	if store.products[1].Stock != 10 {
		t.Fatalf("Stock=%d, want untouched", store.products[1].Stock)
	}
	if len(store.orders) != 0 {
		t.Fatalf("orders=%d, want none", len(store.orders))
	}
}

func TestCreate_IdempotentReplay(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)

	first, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 1, IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	second, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 1, IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("replay err=%v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay ID=%q, want %q", second.ID, first.ID)
	}
	if store.products[1].Stock != 9 {
		t.Fatalf("Stock=%d, want stock decremented once", store.products[1].Stock)
	}
}

func TestCreate_ConflictRaceReturnsWinner(t *testing.T) {
	store := newFakeStore()
	store.createFailures = 1
	store.createFailWith = repo.ErrConflict
	store.raceWinner = &domain.Order{
		ID:             "winner",
		UserID:         1,
		ProductID:      1,
		Quantity:       1,
		TotalPrice:     999.99,
		Status:         domain.OrderStatusCompleted,
		IdempotencyKey: "key-1",
	}
	svc := newService(t, store)

	order, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 1, IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if order.ID != "winner" {
		t.Fatalf("ID=%q, want the winner's row", order.ID)
	}
}

func TestCreate_ConflictRaceLookupFails(t *testing.T) {
	store := newFakeStore()
	store.createFailures = 1
	store.createFailWith = repo.ErrConflict
	svc := newService(t, store)

	_, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 1, IdempotencyKey: "key-1"})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound from the winner lookup", err)
	}
}

func TestCreate_RetriesTransientInsert(t *testing.T) {
	store := newFakeStore()
	store.createFailures = 2
	store.createFailWith = errTransient
	svc := newService(t, store)

	order, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 1})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("Status=%q", order.Status)
	}
}

func TestGetAndList(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)

	created, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 1})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("ID=%q, want %q", got.ID, created.ID)
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if _, err := svc.Get(context.Background(), " "); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("err=%v, want ErrInvalid", err)
	}

	list, err := svc.List(context.Background(), repo.OrderFilter{UserID: 1})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len=%d, want 1", len(list))
	}
}

func TestEvents(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store)

	created, err := svc.Create(context.Background(), CreateRequest{UserID: 1, ProductID: 1, Quantity: 1})
	if err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	events, err := svc.Events(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Events() err=%v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len=%d, want 2", len(events))
	}

	if _, err := svc.Events(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}
