package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

type fakeRepository struct {
	orders map[string]*domain.Order
	err    error
}

func (f *fakeRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[id], nil
}

func (f *fakeRepository) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	order.Status = status
	return order, nil
}

func (f *fakeRepository) List(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Order{}
	for _, o := range f.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func newTestHandler(repo Repository) (*Handler, *http.ServeMux) {
	h := NewHandler(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", h.HandleList)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("PATCH /orders/{id}/status", h.HandleUpdateStatus)

	return h, mux
}

func placedOrder() *domain.Order {
	return &domain.Order{
		ID:            "ORD-0042",
		CustomerID:    3,
		CustomerEmail: "salim@example.om",
		Items:         []domain.CartLineItem{{ID: 2, Price: 6000, Quantity: 1}},
		Summary:       domain.OrderSummary{ItemCount: 1, Subtotal: 6000, Total: 6000},
		PaymentMethod: domain.PaymentMethodThawani,
		Status:        domain.OrderStatusPending,
		Locale:        domain.LocaleEnglish,
	}
}

func TestHandler_HandleGet(t *testing.T) {
	repo := &fakeRepository{orders: map[string]*domain.Order{"ORD-0042": placedOrder()}}
	_, mux := newTestHandler(repo)

	t.Run("returns the order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-0042", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var order domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&order); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if order.ID != "ORD-0042" || order.Summary.Total != 6000 {
			t.Errorf("unexpected order: %+v", order)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-9999", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("repository failure", func(t *testing.T) {
		_, failing := newTestHandler(&fakeRepository{err: errors.New("db down")})
		rec := httptest.NewRecorder()
		failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-0042", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
	}{
		{"confirms", "ORD-0042", `{"status":"confirmed"}`, http.StatusOK},
		{"unknown status", "ORD-0042", `{"status":"shipped"}`, http.StatusUnprocessableEntity},
		{"missing status", "ORD-0042", `{}`, http.StatusUnprocessableEntity},
		{"malformed body", "ORD-0042", `{`, http.StatusBadRequest},
		{"unknown order", "ORD-0001", `{"status":"cancelled"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepository{orders: map[string]*domain.Order{"ORD-0042": placedOrder()}}
			_, mux := newTestHandler(repo)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/orders/"+tt.id+"/status", strings.NewReader(tt.body))
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && repo.orders["ORD-0042"].Status != domain.OrderStatusConfirmed {
				t.Errorf("expected order to be confirmed, got %s", repo.orders["ORD-0042"].Status)
			}
		})
	}
}

func TestHandler_HandleList(t *testing.T) {
	confirmed := placedOrder()
	confirmed.ID = "ORD-0043"
	confirmed.Status = domain.OrderStatusConfirmed

	repo := &fakeRepository{orders: map[string]*domain.Order{
		"ORD-0042": placedOrder(),
		"ORD-0043": confirmed,
	}}
	_, mux := newTestHandler(repo)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  int
	}{
		{"all orders", "/orders", http.StatusOK, 2},
		{"filtered by status", "/orders?status=confirmed", http.StatusOK, 1},
		{"no match", "/orders?status=cancelled", http.StatusOK, 0},
		{"unknown status", "/orders?status=shipped", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var orders []domain.Order
			if err := json.NewDecoder(rec.Body).Decode(&orders); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(orders) != tt.wantCount {
				t.Errorf("expected %d orders, got %d", tt.wantCount, len(orders))
			}
		})
	}

	t.Run("repository failure", func(t *testing.T) {
		_, mux := newTestHandler(&fakeRepository{err: errors.New("connection refused")})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
	})
}
