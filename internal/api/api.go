// Package api exposes the storefront HTTP surface: users, products,
// orders and the order-report export.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/storefront-labs/storefront-go/internal/domain"
	"github.com/storefront-labs/storefront-go/internal/export"
	"github.com/storefront-labs/storefront-go/internal/platform/redact"
	"github.com/storefront-labs/storefront-go/internal/repo"
	"github.com/storefront-labs/storefront-go/internal/service/catalog"
	"github.com/storefront-labs/storefront-go/internal/service/orders"
	"github.com/storefront-labs/storefront-go/internal/service/users"
)

type API struct {
	logger  *slog.Logger
	users   *users.Service
	catalog *catalog.Service
	orders  *orders.Service
	export  *export.Service
}

func New(logger *slog.Logger, usersSvc *users.Service, catalogSvc *catalog.Service, ordersSvc *orders.Service, exportSvc *export.Service) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		logger:  logger,
		users:   usersSvc,
		catalog: catalogSvc,
		orders:  ordersSvc,
		export:  exportSvc,
	}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/users", a.handleListUsers)
	mux.HandleFunc("POST /api/users", a.handleCreateUser)
	mux.HandleFunc("GET /api/users/{user_id}", a.handleGetUser)
	mux.HandleFunc("GET /api/users/{user_id}/orders", a.handleListUserOrders)

	mux.HandleFunc("GET /api/products", a.handleListProducts)
	mux.HandleFunc("POST /api/products", a.handleCreateProduct)
	mux.HandleFunc("GET /api/products/{product_id}", a.handleGetProduct)

	mux.HandleFunc("GET /api/orders", a.handleListOrders)
	mux.HandleFunc("POST /api/orders", a.handleCreateOrder)
	mux.HandleFunc("GET /api/orders/{order_id}", a.handleGetOrder)
	mux.HandleFunc("GET /api/orders/{order_id}/events", a.handleListOrderEvents)
	mux.HandleFunc("POST /api/orders/export", a.handleExportOrders)
}

type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type productResponse struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type orderResponse struct {
	OrderID    string    `json:"order_id"`
	UserID     int64     `json:"user_id"`
	ProductID  int64     `json:"product_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	Status     string    `json:"status"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type orderEventResponse struct {
	ID         int64     `json:"id"`
	OrderID    string    `json:"order_id"`
	Status     string    `json:"status"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func userFromDomain(u domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

func productFromDomain(p domain.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
}

func orderFromDomain(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:    o.ID,
		UserID:     o.UserID,
		ProductID:  o.ProductID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		Status:     string(o.Status),
		PaymentRef: o.PaymentRef,
		CreatedAt:  o.CreatedAt,
	}
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	a.logPayload(r, "creating user", map[string]any{
		"name":  req.Name,
		"email": req.Email,
	})

	user, err := a.users.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			a.writeError(w, r, http.StatusConflict, "email_exists")
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, userFromDomain(user))
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "user_id")
	if !ok {
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, userFromDomain(user))
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.queryLimit(w, r)
	if !ok {
		return
	}
	filter := repo.UserFilter{
		Email: strings.TrimSpace(r.URL.Query().Get("email")),
		Limit: limit,
	}
	usersList, err := a.users.List(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(usersList))
	for _, u := range usersList {
		out = append(out, userFromDomain(u))
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "user_id")
	if !ok {
		return
	}
	if _, err := a.users.Get(r.Context(), id); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	ordersList, err := a.orders.List(r.Context(), repo.OrderFilter{UserID: id})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(ordersList))
	for _, o := range ordersList {
		out = append(out, orderFromDomain(o))
	}
	a.writeJSON(w, http.StatusOK, out)
}

type createProductRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	product, err := a.catalog.Create(r.Context(), req.Name, req.Price, req.Stock)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, productFromDomain(product))
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "product_id")
	if !ok {
		return
	}
	product, err := a.catalog.Get(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, productFromDomain(product))
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.queryLimit(w, r)
	if !ok {
		return
	}
	filter := repo.ProductFilter{
		Name:  strings.TrimSpace(r.URL.Query().Get("name")),
		Limit: limit,
	}
	products, err := a.catalog.List(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productFromDomain(p))
	}
	a.writeJSON(w, http.StatusOK, out)
}

type createOrderRequest struct {
	UserID         int64  `json:"user_id"`
	ProductID      int64  `json:"product_id"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

func (a *API) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}
	a.logPayload(r, "creating order", map[string]any{
		"user_id":         req.UserID,
		"product_id":      req.ProductID,
		"quantity":        req.Quantity,
		"idempotency_key": key,
	})

	order, err := a.orders.Create(r.Context(), orders.CreateRequest{
		UserID:         req.UserID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		IdempotencyKey: key,
	})
	if err != nil {
		if errors.Is(err, repo.ErrInsufficientStock) {
			a.writeError(w, r, http.StatusConflict, "insufficient_stock")
			return
		}
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, orderFromDomain(order))
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.PathValue("order_id"))
	if orderID == "" {
		a.writeError(w, r, http.StatusBadRequest, "order_id_required")
		return
	}
	order, err := a.orders.Get(r.Context(), orderID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, orderFromDomain(order))
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := a.queryLimit(w, r)
	if !ok {
		return
	}
	filter := repo.OrderFilter{Limit: limit}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		orderStatus := domain.OrderStatus(status)
		if !orderStatus.Valid() {
			a.writeError(w, r, http.StatusBadRequest, "invalid_status")
			return
		}
		filter.Status = orderStatus
	}
	ordersList, err := a.orders.List(r.Context(), filter)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(ordersList))
	for _, o := range ordersList {
		out = append(out, orderFromDomain(o))
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleListOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.PathValue("order_id"))
	if orderID == "" {
		a.writeError(w, r, http.StatusBadRequest, "order_id_required")
		return
	}
	events, err := a.orders.Events(r.Context(), orderID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	out := make([]orderEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, orderEventResponse{
			ID:         e.ID,
			OrderID:    e.OrderID,
			Status:     string(e.Status),
			Note:       e.Note,
			OccurredAt: e.OccurredAt,
		})
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	if a.export == nil {
		a.writeError(w, r, http.StatusServiceUnavailable, "export_unavailable")
		return
	}
	report, err := a.export.Run(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, report)
}

// writeServiceError maps service failures onto the shared status codes.
// Endpoint-specific conflicts (email_exists, insufficient_stock) are
// handled before calling this.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		a.writeError(w, r, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, repo.ErrNotFound):
		a.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrConflict):
		a.writeError(w, r, http.StatusConflict, "conflict")
	default:
		a.logger.Error("request failed",
			"request_id", r.Header.Get("X-Request-Id"),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		a.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

// logPayload records an inbound write payload at debug level. Values
// under sensitive keys are masked before they reach the log.
func (a *API) logPayload(r *http.Request, msg string, payload map[string]any) {
	a.logger.Debug(msg,
		"request_id", r.Header.Get("X-Request-Id"),
		"payload", redact.Map(payload),
	)
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(r.PathValue(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.writeError(w, r, http.StatusBadRequest, name+"_invalid")
		return 0, false
	}
	return id, true
}

func (a *API) queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		a.writeError(w, r, http.StatusBadRequest, "limit_invalid")
		return 0, false
	}
	return limit, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	a.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}
