// Package cart keeps a session's line items and mirrors them to the "cart"
// storage slot.
package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/storage"
)

var mutations, _ = otel.Meter("cart").Int64Counter("storefront.cart.mutations",
	metric.WithDescription("Cart mutations applied, by operation"),
)

type Store struct {
	storage storage.Storage
	logger  *slog.Logger

	mu       sync.Mutex
	hydrated bool
	items    []domain.CartLineItem
}

func NewStore(s storage.Storage, logger *slog.Logger) *Store {
	return &Store{
		storage: s,
		logger:  logger,
		items:   []domain.CartLineItem{},
	}
}

// Hydrate loads the persisted cart and reports whether the store now reflects
// storage. Every other method hydrates before touching state. A failed read
// leaves the store unhydrated: reads see an empty cart and mutations are
// dropped, so the saved slot is never overwritten before it has been read.
// Malformed data yields an empty cart.
func (s *Store) Hydrate(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrateLocked(ctx)
}

func (s *Store) hydrateLocked(ctx context.Context) bool {
	if s.hydrated {
		return true
	}

	raw, ok, err := s.storage.Get(context.WithoutCancel(ctx), storage.KeyCart)
	if err != nil {
		s.logger.Error("failed to read cart", "error", err)
		return false
	}
	s.hydrated = true
	if !ok {
		return true
	}

	var items []domain.CartLineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Error("failed to parse cart", "error", err)
		return true
	}
	if items != nil {
		s.items = items
	}

	return true
}

// AddItem appends a new line or, when the product is already in the cart,
// increases that line's quantity. Quantities below one are ignored.
func (s *Store) AddItem(ctx context.Context, item domain.CartLineItem) {
	s.mutate(ctx, "add", func() bool {
		if item.Quantity < 1 {
			return false
		}

		if i := s.indexOf(item.ID); i >= 0 {
			s.items[i].Quantity += item.Quantity
			return true
		}

		s.items = append(s.items, item)
		return true
	})
}

// UpdateQuantity replaces a line's quantity. It is a no-op when quantity < 1
// or the product is not in the cart.
func (s *Store) UpdateQuantity(ctx context.Context, id int64, quantity int) {
	s.mutate(ctx, "update", func() bool {
		if quantity < 1 {
			return false
		}

		i := s.indexOf(id)
		if i < 0 {
			return false
		}

		s.items[i].Quantity = quantity
		return true
	})
}

func (s *Store) RemoveItem(ctx context.Context, id int64) {
	s.mutate(ctx, "remove", func() bool {
		i := s.indexOf(id)
		if i < 0 {
			return false
		}

		s.items = slices.Delete(s.items, i, i+1)
		return true
	})
}

func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, "clear", func() bool {
		s.items = []domain.CartLineItem{}
		return true
	})
}

// RemoveOrdered takes the ordered quantities out of the cart. Lines added or
// topped up after the order was taken stay, reduced by what was ordered.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []domain.CartLineItem) {
	s.mutate(ctx, "checkout", func() bool {
		changed := false
		for _, line := range ordered {
			i := s.indexOf(line.ID)
			if i < 0 {
				continue
			}

			changed = true
			if s.items[i].Quantity > line.Quantity {
				s.items[i].Quantity -= line.Quantity
				continue
			}
			s.items = slices.Delete(s.items, i, i+1)
		}
		return changed
	})
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items(ctx context.Context) []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hydrateLocked(ctx)
	return slices.Clone(s.items)
}

func (s *Store) ItemCount(ctx context.Context) int {
	return countOf(s.Items(ctx))
}

func (s *Store) Subtotal(ctx context.Context) domain.Money {
	return subtotalOf(s.Items(ctx))
}

// Snapshot returns the lines and their derived totals from one consistent read.
func (s *Store) Snapshot(ctx context.Context) domain.CartSnapshot {
	items := s.Items(ctx)
	return domain.CartSnapshot{
		Items:     items,
		ItemCount: countOf(items),
		Subtotal:  subtotalOf(items),
	}
}

// mutate applies fn under the lock and, when it reports a change, writes the
// whole cart back before releasing it so writes land in mutation order.
func (s *Store) mutate(ctx context.Context, operation string, fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hydrateLocked(ctx) {
		s.logger.Warn("cart not loaded, dropping mutation", "operation", operation)
		return
	}

	if !fn() {
		return
	}

	mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	s.persist(context.WithoutCancel(ctx))
}

func (s *Store) persist(ctx context.Context) {
	data, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("failed to encode cart", "error", err)
		return
	}

	if err := s.storage.Set(ctx, storage.KeyCart, string(data)); err != nil {
		s.logger.Error("failed to save cart", "error", err)
	}
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(item domain.CartLineItem) bool {
		return item.ID == id
	})
}

func countOf(items []domain.CartLineItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

func subtotalOf(items []domain.CartLineItem) domain.Money {
	var total domain.Money
	for _, item := range items {
		total += item.Total()
	}
	return total
}
