// Package storefront serves the shop's JSON API under a locale prefix. Every
// visitor gets a session cookie that selects their cart, customer and locale.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/joao-fontenele/stationery-storefront/internal/catalog"
	"github.com/joao-fontenele/stationery-storefront/internal/checkout"
	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/locale"
	"github.com/joao-fontenele/stationery-storefront/internal/session"
	"github.com/joao-fontenele/stationery-storefront/internal/telemetry"
)

// SessionCookie carries the visitor's session id.
const SessionCookie = "sid"

type Handler struct {
	catalog  *catalog.Store
	sessions *session.Manager
	checkout *checkout.Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(catalog *catalog.Store, sessions *session.Manager, checkout *checkout.Service, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		sessions: sessions,
		checkout: checkout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// RegisterRoutes mounts the API on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	routes := map[string]http.HandlerFunc{
		"GET /{locale}/products":           h.HandleListProducts,
		"GET /{locale}/products/{id}":      h.HandleGetProduct,
		"GET /{locale}/cart":               h.HandleGetCart,
		"POST /{locale}/cart/items":        h.HandleAddCartItem,
		"PATCH /{locale}/cart/items/{id}":  h.HandleUpdateCartItem,
		"DELETE /{locale}/cart/items/{id}": h.HandleRemoveCartItem,
		"DELETE /{locale}/cart":            h.HandleClearCart,
		"GET /{locale}/customer":           h.HandleGetCustomer,
		"POST /{locale}/customer/lookup":   h.HandleLookupCustomer,
		"POST /{locale}/customer":          h.HandleRegisterCustomer,
		"DELETE /{locale}/customer":        h.HandleClearCustomer,
		"GET /{locale}/translations":       h.HandleTranslate,
		"POST /{locale}/checkout/quote":    h.HandleQuote,
		"POST /{locale}/checkout/orders":   h.HandlePlaceOrder,
	}

	for pattern, handler := range routes {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(handler))
	}
}

// session resolves the locale prefix and the visitor's session, issuing a
// cookie when the request has none. It writes the error response itself.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	lang, ok := locale.Parse(r.PathValue("locale"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "unsupported locale")
		return nil, false
	}

	id := ""
	if c, err := r.Cookie(SessionCookie); err == nil {
		if parsed, err := uuid.Parse(c.Value); err == nil {
			id = parsed.String()
		}
	}

	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		h.logger.Info("session started", "session_id", id, "locale", lang)
	}

	sess := h.sessions.Get(r.Context(), id, lang)

	if sess.Locale.Locale() != lang {
		if err := sess.Locale.SetLocale(r.Context(), lang); err != nil {
			h.logger.Error("failed to switch locale", "error", err, "session_id", id, "locale", lang)
		}
	}

	return sess, true
}

type productView struct {
	domain.Product
	DisplayName        string `json:"display_name"`
	DisplayDescription string `json:"display_description"`
	InStock            bool   `json:"in_stock"`
}

func newProductView(p domain.Product, lang domain.Locale) productView {
	return productView{
		Product:            p,
		DisplayName:        p.Name.In(lang),
		DisplayDescription: p.Description.In(lang),
		InStock:            p.InStock(),
	}
}

type productsResponse struct {
	Products []productView `json:"products"`
	Error    string        `json:"error,omitempty"`
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := h.catalog.Browse(r.Context(), filter)
	if err != nil {
		h.writeCancelled(w, err)
		return
	}
	products := listing.Products

	lang := sess.Locale.Locale()
	resp := productsResponse{
		Products: make([]productView, 0, len(products)),
		Error:    listing.Err,
	}
	for _, p := range products {
		resp.Products = append(resp.Products, newProductView(p, lang))
	}

	h.logger.Info("products listed", "count", len(products), "category", filter.Category, "sort", filter.Sort)
	h.writeJSON(w, http.StatusOK, resp)
}

func parseFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()

	filter := catalog.Filter{
		Category: domain.Category(q.Get("category")),
		Search:   q.Get("search"),
	}

	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("invalid featured flag")
		}
		filter.Featured = &featured
	}

	sort, ok := catalog.ParseSort(q.Get("sort"))
	if !ok {
		return filter, errors.New("invalid sort order")
	}
	filter.Sort = sort

	return filter, nil
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	product, msg, err := h.catalog.Lookup(r.Context(), id)
	if err != nil {
		h.writeCancelled(w, err)
		return
	}

	if product == nil {
		if msg != "" {
			h.writeError(w, http.StatusServiceUnavailable, msg)
			return
		}
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, newProductView(*product, sess.Locale.Locale()))
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, sess.Cart.Snapshot(r.Context()))
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"min=1"`
}

func (h *Handler) HandleAddCartItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, msg, err := h.catalog.Lookup(r.Context(), req.ProductID)
	if err != nil {
		h.writeCancelled(w, err)
		return
	}

	if product == nil {
		if msg != "" {
			h.writeError(w, http.StatusServiceUnavailable, msg)
			return
		}
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if !product.InStock() {
		h.writeError(w, http.StatusConflict, sess.Locale.Translate("productDetail.outOfStock", nil))
		return
	}

	sess.Cart.AddItem(r.Context(), product.LineItem(req.Quantity))

	h.logger.Info("cart item added", "session_id", sess.ID, "product_id", product.ID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, sess.Cart.Snapshot(r.Context()))
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=1"`
}

func (h *Handler) HandleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	if !h.inCart(r.Context(), sess, id) {
		h.writeError(w, http.StatusNotFound, "item not in cart")
		return
	}

	sess.Cart.UpdateQuantity(r.Context(), id, req.Quantity)
	h.writeJSON(w, http.StatusOK, sess.Cart.Snapshot(r.Context()))
}

func (h *Handler) HandleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sess.Cart.RemoveItem(r.Context(), id)
	h.writeJSON(w, http.StatusOK, sess.Cart.Snapshot(r.Context()))
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sess.Cart.Clear(r.Context())
	h.writeJSON(w, http.StatusOK, sess.Cart.Snapshot(r.Context()))
}

func (h *Handler) inCart(ctx context.Context, sess *session.Session, id int64) bool {
	for _, item := range sess.Cart.Items(ctx) {
		if item.ID == id {
			return true
		}
	}
	return false
}

type customerResponse struct {
	Customer *domain.Customer `json:"customer"`
	Message  string           `json:"message,omitempty"`
}

func (h *Handler) HandleGetCustomer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, customerResponse{Customer: sess.Customer.Current(r.Context())})
}

type lookupRequest struct {
	Identifier string `json:"identifier"`
}

func (h *Handler) HandleLookupCustomer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req lookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Identifier == "" {
		h.writeError(w, http.StatusUnprocessableEntity, sess.Locale.Translate("checkout.errorEmptyLookup", nil))
		return
	}

	found, err := sess.Customer.Lookup(r.Context(), req.Identifier)
	if err != nil {
		h.writeCancelled(w, err)
		return
	}

	if found == nil {
		h.writeJSON(w, http.StatusNotFound, customerResponse{
			Message: sess.Locale.Translate("checkout.newCustomerPrompt", nil),
		})
		return
	}

	h.logger.Info("customer identified", "session_id", sess.ID, "customer_id", found.ID)
	h.writeJSON(w, http.StatusOK, customerResponse{
		Customer: found,
		Message:  sess.Locale.Translate("checkout.welcomeBack", map[string]any{"name": found.Name}),
	})
}

func (h *Handler) HandleRegisterCustomer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var reg domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(reg); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  sess.Locale.Translate("checkout.errorIncompleteForm", nil),
			"fields": invalidFields(err),
		})
		return
	}

	created, err := sess.Customer.Register(r.Context(), reg)
	if err != nil {
		if r.Context().Err() != nil {
			h.writeCancelled(w, err)
			return
		}
		h.logger.Error("failed to register customer", "error", err, "session_id", sess.ID)
		h.writeError(w, http.StatusServiceUnavailable, sess.Locale.Translate("checkout.errorRegistration", nil))
		return
	}

	h.logger.Info("customer registered", "session_id", sess.ID, "customer_id", created.ID)
	h.writeJSON(w, http.StatusCreated, customerResponse{Customer: created})
}

func (h *Handler) HandleClearCustomer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	sess.Customer.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type translationResponse struct {
	Key       string        `json:"key"`
	Value     string        `json:"value"`
	Locale    domain.Locale `json:"locale"`
	Direction string        `json:"direction"`
}

// HandleTranslate resolves ?key= in the session locale. Every other query
// parameter is a placeholder value.
func (h *Handler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	params := make(map[string]any, len(q))
	for name := range q {
		if name != "key" {
			params[name] = q.Get(name)
		}
	}

	h.writeJSON(w, http.StatusOK, translationResponse{
		Key:       key,
		Value:     sess.Locale.Translate(key, params),
		Locale:    sess.Locale.Locale(),
		Direction: sess.Locale.Direction(),
	})
}

type quoteRequest struct {
	UsePoints bool `json:"use_points"`
}

func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary := checkout.Quote(sess.Cart.Snapshot(r.Context()), sess.Customer.Current(r.Context()), req.UsePoints)
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Locale = sess.Locale.Locale()

	order, err := h.checkout.PlaceOrder(r.Context(), sess.Cart, sess.Customer, req)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrInvalidPaymentMethod):
			h.writeError(w, http.StatusUnprocessableEntity, sess.Locale.Translate("checkout.errorPaymentMethod", nil))
		case errors.Is(err, checkout.ErrEmptyCart):
			h.writeError(w, http.StatusConflict, sess.Locale.Translate("checkout.errorEmptyCart", nil))
		case errors.Is(err, checkout.ErrNoCustomer):
			h.writeError(w, http.StatusConflict, sess.Locale.Translate("checkout.customerInfoPrompt", nil))
		case r.Context().Err() != nil:
			h.writeCancelled(w, err)
		default:
			h.logger.Error("failed to place order", "error", err, "session_id", sess.ID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": invalidFields(err),
		})
		return false
	}

	return true
}

func invalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// writeCancelled answers a request whose caller gave up mid-operation.
func (h *Handler) writeCancelled(w http.ResponseWriter, err error) {
	h.logger.Warn("request abandoned", "error", err)
	h.writeError(w, http.StatusServiceUnavailable, "request cancelled")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
