package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	models "github.com/Ptunda/easy-shop/model"
	"github.com/Ptunda/easy-shop/service"
	"github.com/Ptunda/easy-shop/store"
)

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc   service.ServiceInterface
	users UserResolver
}

func NewHandler(s service.ServiceInterface, users UserResolver) *Handler {
	return &Handler{svc: s, users: users}
}

// Router builds the mux router with every route and the request middlewares.
func Router(h *Handler, obs RequestObserver) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, logMiddleware, metricsMiddleware(obs))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Categories
	r.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)
	r.HandleFunc("/categories", h.CreateCategory).Methods(http.MethodPost)
	r.HandleFunc("/categories/{id:[0-9]+}", h.GetCategory).Methods(http.MethodGet)
	r.HandleFunc("/categories/{id:[0-9]+}", h.UpdateCategory).Methods(http.MethodPut)
	r.HandleFunc("/categories/{id:[0-9]+}", h.DeleteCategory).Methods(http.MethodDelete)

	// Products
	r.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	r.HandleFunc("/products/{id:[0-9]+}", h.GetProduct).Methods(http.MethodGet)
	r.HandleFunc("/products/{id:[0-9]+}/price", h.UpdatePrice).Methods(http.MethodPut)

	// Cart
	r.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet)
	r.HandleFunc("/cart", h.ClearCart).Methods(http.MethodDelete)
	r.HandleFunc("/cart/products/{id:[0-9]+}", h.AddToCart).Methods(http.MethodPost)
	r.HandleFunc("/cart/products/{id:[0-9]+}", h.SetCartQuantity).Methods(http.MethodPut)

	// Orders
	r.HandleFunc("/orders", h.Checkout).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id:[0-9]+}", h.GetOrder).Methods(http.MethodGet)
}

// --- request / response shapes ---
type categoryReq struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type createProductReq struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int64           `json:"category_id"`
	Description string          `json:"description,omitempty"`
	Color       string          `json:"color,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	Featured    bool            `json:"featured,omitempty"`
}

type updatePriceReq struct {
	Price *decimal.Decimal `json:"price"`
}

type setQuantityReq struct {
	Quantity *int `json:"quantity"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeServiceErr maps service and store errors to status codes. Internal
// causes are logged, never sent to the client.
func writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		writeErr(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, store.ErrInvalidQuantity):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		writeErr(w, http.StatusConflict, "still referenced")
	case errors.Is(err, ErrUnauthenticated):
		writeErr(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, service.ErrCheckoutFailed):
		log.WithField("requestID", RequestID(r.Context())).WithError(err).Error("checkout request failed")
		writeErr(w, http.StatusInternalServerError, "checkout failed")
	default:
		log.WithField("requestID", RequestID(r.Context())).WithError(err).Error("request failed")
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrap(service.ErrInvalidInput, "invalid id")
	}
	return id, nil
}

// user resolves the caller and writes 401 when that fails.
func (h *Handler) user(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := h.users.ResolveUserID(r)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "unauthenticated")
		return 0, false
	}
	return id, true
}

// --- Handler ---

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListCategories handles GET /categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	c, err := h.svc.GetCategory(r.Context(), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCategory handles POST /categories
// body: { "name": "...", "description": "..." }
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.svc.CreateCategory(r.Context(), models.Category{Name: req.Name, Description: req.Description})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	var req categoryReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.svc.UpdateCategory(r.Context(), models.Category{ID: id, Name: req.Name, Description: req.Description}); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts handles GET /products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := h.svc.CreateProduct(r.Context(), models.Product{
		Name:        req.Name,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Color:       req.Color,
		ImageURL:    req.ImageURL,
		Featured:    req.Featured,
	})
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// UpdatePrice handles PUT /products/{id}/price
// body: { "price": "12.50" }
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	var req updatePriceReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Price == nil {
		writeErr(w, http.StatusBadRequest, "price is required")
		return
	}
	if err := h.svc.UpdatePrice(r.Context(), id, *req.Price); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCart handles GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	cart, err := h.svc.GetCart(r.Context(), userID)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddToCart handles POST /cart/products/{id}; each call adds one unit.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	productID, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	if err := h.svc.AddToCart(r.Context(), userID, productID); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// SetCartQuantity handles PUT /cart/products/{id}
// body: { "quantity": 3 }; 0 removes the product from the cart
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	productID, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	var req setQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		writeErr(w, http.StatusBadRequest, "quantity is required")
		return
	}
	if err := h.svc.SetCartQuantity(r.Context(), userID, productID, *req.Quantity); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ClearCart handles DELETE /cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.svc.ClearCart(r.Context(), userID); err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Checkout handles POST /orders. It answers 201 with an empty body and the new
// order in the Location header.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	orderID, err := h.svc.Checkout(r.Context(), userID)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/orders/%d", orderID))
	w.WriteHeader(http.StatusCreated)
}

// GetOrder handles GET /orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	orderID, err := pathID(r)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	o, err := h.svc.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
