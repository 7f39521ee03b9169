package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/joao-fontenele/stationery-storefront/internal/catalog"
	"github.com/joao-fontenele/stationery-storefront/internal/checkout"
	"github.com/joao-fontenele/stationery-storefront/internal/customer"
	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
	"github.com/joao-fontenele/stationery-storefront/internal/locale"
	"github.com/joao-fontenele/stationery-storefront/internal/session"
	"github.com/joao-fontenele/stationery-storefront/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderPlacedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(domain.OrderPlacedEvent))
	return nil
}

type failingSource struct{}

func (failingSource) List(context.Context) ([]domain.Product, error) {
	return nil, errors.New("connection refused")
}

func (failingSource) Get(context.Context, int64) (*domain.Product, error) {
	return nil, errors.New("connection refused")
}

type testShop struct {
	server    *httptest.Server
	client    *http.Client
	publisher *recordingPublisher
	sessions  *session.Manager
}

func newTestShop(t *testing.T, source catalog.Source) *testShop {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory := customer.NewMemoryDirectory(domain.Customer{
		Name:   "Mariam Al Balushi",
		Email:  "mariam@example.om",
		Phone:  "+96890000001",
		City:   "Muscat",
		Points: 50,
	})
	sessions := session.NewManager(storage.NewMemory(), directory, locale.EmbeddedLoader(), latency.None{}, logger, 0)
	publisher := &recordingPublisher{}

	handler := NewHandler(
		catalog.NewStore(source, latency.None{}, logger),
		sessions,
		checkout.NewService(latency.None{}, logger, checkout.WithPublisher(publisher)),
		logger,
	)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	return &testShop{
		server:    server,
		client:    &http.Client{Jar: jar},
		publisher: publisher,
		sessions:  sessions,
	}
}

func (s *testShop) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s %s: %v", method, path, err)
		}
	}

	return resp.StatusCode
}

func TestHandler_Products(t *testing.T) {
	shop := newTestShop(t, catalog.SeedSource())

	t.Run("filters and localizes", func(t *testing.T) {
		var resp productsResponse
		status := shop.do(t, http.MethodGet, "/ar/products?category=pens&sort=price_asc", "", &resp)
		if status != http.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}

		if len(resp.Products) != 2 || resp.Products[0].ID != 4 || resp.Products[1].ID != 6 {
			t.Fatalf("unexpected products: %+v", resp.Products)
		}
		if resp.Products[0].DisplayName != resp.Products[0].Name.AR {
			t.Errorf("expected arabic display name, got %q", resp.Products[0].DisplayName)
		}
		if resp.Error != "" {
			t.Errorf("expected no error, got %q", resp.Error)
		}
	})

	t.Run("featured flag", func(t *testing.T) {
		var resp productsResponse
		shop.do(t, http.MethodGet, "/en/products?featured=true", "", &resp)
		for _, p := range resp.Products {
			if !p.IsFeatured {
				t.Errorf("product %d is not featured", p.ID)
			}
		}
		if len(resp.Products) != 4 {
			t.Errorf("expected 4 featured products, got %d", len(resp.Products))
		}
	})

	t.Run("rejects invalid query", func(t *testing.T) {
		for _, path := range []string{"/en/products?sort=cheapest", "/en/products?featured=maybe"} {
			if status := shop.do(t, http.MethodGet, path, "", nil); status != http.StatusBadRequest {
				t.Errorf("%s: expected status 400, got %d", path, status)
			}
		}
	})

	t.Run("unsupported locale", func(t *testing.T) {
		if status := shop.do(t, http.MethodGet, "/fr/products", "", nil); status != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", status)
		}
	})

	t.Run("product by id", func(t *testing.T) {
		var view productView
		if status := shop.do(t, http.MethodGet, "/en/products/3", "", &view); status != http.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}
		if view.DisplayName != "Business Cards with Lamination" || !view.InStock {
			t.Errorf("unexpected product: %+v", view)
		}

		if status := shop.do(t, http.MethodGet, "/en/products/99", "", nil); status != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", status)
		}
		if status := shop.do(t, http.MethodGet, "/en/products/abc", "", nil); status != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", status)
		}
	})
}

func TestHandler_ProductsFailure(t *testing.T) {
	shop := newTestShop(t, failingSource{})

	var resp productsResponse
	if status := shop.do(t, http.MethodGet, "/en/products", "", &resp); status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if resp.Products == nil || len(resp.Products) != 0 {
		t.Errorf("expected empty product list, got %+v", resp.Products)
	}
	if resp.Error != "Failed to fetch products" {
		t.Errorf("expected fetch error, got %q", resp.Error)
	}

	if status := shop.do(t, http.MethodGet, "/en/products/1", "", nil); status != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", status)
	}
	if status := shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":1,"quantity":1}`, nil); status != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 when adding during an outage, got %d", status)
	}
}

func TestHandler_Cart(t *testing.T) {
	shop := newTestShop(t, catalog.SeedSource())

	var snapshot domain.CartSnapshot
	if status := shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":1,"quantity":2}`, &snapshot); status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":4,"quantity":1}`, &snapshot)
	shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":1,"quantity":1}`, &snapshot)

	if len(snapshot.Items) != 2 || snapshot.Items[0].Quantity != 3 {
		t.Fatalf("expected merged lines, got %+v", snapshot.Items)
	}
	if snapshot.ItemCount != 4 || snapshot.Subtotal != 13600 {
		t.Errorf("expected 4 items totalling 13.600, got %d / %s", snapshot.ItemCount, snapshot.Subtotal)
	}

	t.Run("rejects invalid quantities", func(t *testing.T) {
		if status := shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":1,"quantity":0}`, nil); status != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", status)
		}
		if status := shop.do(t, http.MethodPatch, "/en/cart/items/1", `{"quantity":-1}`, nil); status != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", status)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		if status := shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":99,"quantity":1}`, nil); status != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", status)
		}
		if status := shop.do(t, http.MethodPatch, "/en/cart/items/99", `{"quantity":1}`, nil); status != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", status)
		}
	})

	t.Run("update remove clear", func(t *testing.T) {
		shop.do(t, http.MethodPatch, "/en/cart/items/4", `{"quantity":5}`, &snapshot)
		if snapshot.ItemCount != 8 {
			t.Errorf("expected 8 items, got %d", snapshot.ItemCount)
		}

		shop.do(t, http.MethodDelete, "/en/cart/items/1", "", &snapshot)
		if len(snapshot.Items) != 1 || snapshot.Items[0].ID != 4 {
			t.Errorf("expected only product 4, got %+v", snapshot.Items)
		}

		shop.do(t, http.MethodDelete, "/en/cart", "", &snapshot)
		if snapshot.ItemCount != 0 || snapshot.Subtotal != 0 {
			t.Errorf("expected empty cart, got %+v", snapshot)
		}
	})

	t.Run("cart follows the session across locales", func(t *testing.T) {
		shop.do(t, http.MethodPost, "/ar/cart/items", `{"product_id":2,"quantity":1}`, nil)

		var got domain.CartSnapshot
		shop.do(t, http.MethodGet, "/en/cart", "", &got)
		if len(got.Items) != 1 || got.Items[0].ID != 2 {
			t.Errorf("expected product 2 in the shared cart, got %+v", got.Items)
		}
		if shop.sessions.Len() != 1 {
			t.Errorf("expected one session, got %d", shop.sessions.Len())
		}
	})
}

func TestHandler_OutOfStock(t *testing.T) {
	shop := newTestShop(t, catalog.NewStaticSource([]domain.Product{
		{ID: 1, Name: domain.LocalizedText{EN: "Toner"}, Price: 9000, Category: domain.CategoryPrinting, Stock: 0},
	}))

	var resp map[string]string
	if status := shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":1,"quantity":1}`, &resp); status != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", status)
	}
	if resp["error"] != "Out of Stock" {
		t.Errorf("expected translated message, got %q", resp["error"])
	}
}

func TestHandler_Customer(t *testing.T) {
	shop := newTestShop(t, catalog.SeedSource())

	t.Run("lookup", func(t *testing.T) {
		var resp customerResponse
		if status := shop.do(t, http.MethodPost, "/en/customer/lookup", `{"identifier":"nobody@example.om"}`, &resp); status != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", status)
		}
		if resp.Customer != nil || resp.Message == "" {
			t.Errorf("expected registration prompt, got %+v", resp)
		}

		if status := shop.do(t, http.MethodPost, "/en/customer/lookup", `{"identifier":""}`, nil); status != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", status)
		}

		if status := shop.do(t, http.MethodPost, "/en/customer/lookup", `{"identifier":"+96890000001"}`, &resp); status != http.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}
		if resp.Message != "Welcome back, Mariam Al Balushi!" {
			t.Errorf("unexpected greeting %q", resp.Message)
		}

		var current customerResponse
		shop.do(t, http.MethodGet, "/en/customer", "", &current)
		if current.Customer == nil || current.Customer.Email != "mariam@example.om" {
			t.Errorf("expected mariam to be current, got %+v", current.Customer)
		}
	})

	t.Run("clear", func(t *testing.T) {
		if status := shop.do(t, http.MethodDelete, "/en/customer", "", nil); status != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", status)
		}

		var current customerResponse
		shop.do(t, http.MethodGet, "/en/customer", "", &current)
		if current.Customer != nil {
			t.Errorf("expected no customer, got %+v", current.Customer)
		}
	})

	t.Run("register", func(t *testing.T) {
		var resp map[string]any
		status := shop.do(t, http.MethodPost, "/ar/customer", `{"name":"Khalid","email":"khalid@example.om"}`, &resp)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422, got %d", status)
		}
		if fields, _ := resp["fields"].([]any); len(fields) != 3 {
			t.Errorf("expected three missing fields, got %v", resp["fields"])
		}

		var created customerResponse
		status = shop.do(t, http.MethodPost, "/en/customer",
			`{"name":"Khalid","email":"khalid@example.om","phone":"+96890000002","address":"Way 1","city":"Sohar"}`, &created)
		if status != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", status)
		}
		if created.Customer == nil || created.Customer.ID != 2 || created.Customer.Points != 0 {
			t.Errorf("unexpected customer: %+v", created.Customer)
		}
	})
}

func TestHandler_Translations(t *testing.T) {
	shop := newTestShop(t, catalog.SeedSource())

	var resp translationResponse
	if status := shop.do(t, http.MethodGet, "/ar/translations?key=checkout.rewardPoints&points=50", "", &resp); status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if resp.Locale != domain.LocaleArabic || resp.Direction != "rtl" {
		t.Errorf("expected arabic rtl, got %s %s", resp.Locale, resp.Direction)
	}
	if !strings.Contains(resp.Value, "50") || strings.Contains(resp.Value, "{{points}}") {
		t.Errorf("expected interpolated value, got %q", resp.Value)
	}

	shop.do(t, http.MethodGet, "/en/translations?key=missing.key", "", &resp)
	if resp.Value != "missing.key" || resp.Direction != "ltr" {
		t.Errorf("expected key fallback in ltr, got %+v", resp)
	}

	if status := shop.do(t, http.MethodGet, "/en/translations", "", nil); status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", status)
	}
}

func TestHandler_Checkout(t *testing.T) {
	shop := newTestShop(t, catalog.SeedSource())

	var errResp map[string]string
	if status := shop.do(t, http.MethodPost, "/en/checkout/orders", `{"payment_method":"pickup"}`, &errResp); status != http.StatusConflict {
		t.Fatalf("empty cart: expected status 409, got %d", status)
	}
	if errResp["error"] != "Your cart is empty" {
		t.Errorf("unexpected message %q", errResp["error"])
	}

	shop.do(t, http.MethodPost, "/en/cart/items", `{"product_id":4,"quantity":2}`, nil)

	if status := shop.do(t, http.MethodPost, "/en/checkout/orders", `{"payment_method":"pickup"}`, nil); status != http.StatusConflict {
		t.Fatalf("no customer: expected status 409, got %d", status)
	}

	shop.do(t, http.MethodPost, "/en/customer/lookup", `{"identifier":"mariam@example.om"}`, nil)

	t.Run("quote applies capped points", func(t *testing.T) {
		var summary domain.OrderSummary
		if status := shop.do(t, http.MethodPost, "/en/checkout/quote", `{"use_points":true}`, &summary); status != http.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}
		if summary.Subtotal != 2000 || summary.PointsDiscount != 1000 || summary.Total != 1000 {
			t.Errorf("unexpected summary: %+v", summary)
		}
	})

	if status := shop.do(t, http.MethodPost, "/ar/checkout/orders", `{"payment_method":"cash"}`, nil); status != http.StatusUnprocessableEntity {
		t.Fatalf("invalid payment: expected status 422, got %d", status)
	}

	var order domain.Order
	if status := shop.do(t, http.MethodPost, "/ar/checkout/orders", `{"payment_method":"thawani","use_points":false}`, &order); status != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", status)
	}
	if order.Locale != domain.LocaleArabic || order.Status != domain.OrderStatusPending {
		t.Errorf("unexpected order: %+v", order)
	}
	if order.Summary.Total != 2000 {
		t.Errorf("expected total 2.000, got %s", order.Summary.Total)
	}

	if len(shop.publisher.events) != 1 || shop.publisher.events[0].OrderID != order.ID {
		t.Errorf("expected one event for %s, got %+v", order.ID, shop.publisher.events)
	}

	var cart domain.CartSnapshot
	shop.do(t, http.MethodGet, "/en/cart", "", &cart)
	if len(cart.Items) != 0 {
		t.Errorf("expected cart cleared, got %+v", cart.Items)
	}
}
