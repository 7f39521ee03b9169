// Package customer holds the session's identified shopper and mirrors it to
// the "customer" storage slot.
package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
	"github.com/joao-fontenele/stationery-storefront/internal/storage"
)

var tracer = otel.Tracer("customer")

const (
	DefaultLookupDelay   = time.Second
	DefaultRegisterDelay = time.Second
)

var ErrRegistrationFailed = errors.New("failed to register customer")

// Directory is the customer record service. Find returns nil, nil for an
// unknown identifier.
type Directory interface {
	Find(ctx context.Context, identifier string) (*domain.Customer, error)
	Create(ctx context.Context, reg domain.Registration) (*domain.Customer, error)
}

type Option func(*Store)

func WithLookupDelay(d time.Duration) Option {
	return func(s *Store) {
		s.lookupDelay = d
	}
}

func WithRegisterDelay(d time.Duration) Option {
	return func(s *Store) {
		s.registerDelay = d
	}
}

type Store struct {
	directory Directory
	storage   storage.Storage
	delay     latency.Delayer
	logger    *slog.Logger

	lookupDelay   time.Duration
	registerDelay time.Duration

	mu       sync.Mutex
	hydrated bool
	current  *domain.Customer
}

func NewStore(directory Directory, s storage.Storage, delay latency.Delayer, logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		directory:     directory,
		storage:       s,
		delay:         delay,
		logger:        logger,
		lookupDelay:   DefaultLookupDelay,
		registerDelay: DefaultRegisterDelay,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Hydrate loads the persisted customer and reports whether the store now
// reflects storage. A failed read leaves the session anonymous and unhydrated
// so a later call retries; malformed data leaves it anonymous.
func (s *Store) Hydrate(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrateLocked(ctx)
}

func (s *Store) hydrateLocked(ctx context.Context) bool {
	if s.hydrated {
		return true
	}

	raw, ok, err := s.storage.Get(context.WithoutCancel(ctx), storage.KeyCustomer)
	if err != nil {
		s.logger.Error("failed to read customer", "error", err)
		return false
	}
	s.hydrated = true
	if !ok {
		return true
	}

	var c *domain.Customer
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		s.logger.Error("failed to parse customer", "error", err)
		return true
	}
	s.current = c

	return true
}

// Current returns a copy of the identified customer, or nil.
func (s *Store) Current(ctx context.Context) *domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hydrateLocked(ctx)
	return clone(s.current)
}

// Lookup finds a customer by email or phone and makes it current. An unknown
// identifier returns nil, nil and leaves the current customer as it was.
// Directory failures are logged and reported the same way; only cancellation
// is returned as an error.
func (s *Store) Lookup(ctx context.Context, identifier string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "customer.Lookup")
	defer span.End()

	s.Hydrate(ctx)

	if err := s.delay.Wait(ctx, s.lookupDelay); err != nil {
		return nil, err
	}

	found, err := s.directory.Find(ctx, identifier)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("failed to look up customer", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil
	}

	span.SetAttributes(attribute.Bool("customer.found", found != nil))
	if found == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, found); err != nil {
		s.logger.Error("failed to save customer", "error", err, "customer_id", found.ID)
	}
	s.current = clone(found)
	s.hydrated = true

	return clone(found), nil
}

// Register creates a customer with zero points and orders and makes it current.
// Fields are not validated here. On failure the returned error wraps
// ErrRegistrationFailed and the current customer is unchanged.
func (s *Store) Register(ctx context.Context, reg domain.Registration) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "customer.Register")
	defer span.End()

	s.Hydrate(ctx)

	if err := s.delay.Wait(ctx, s.registerDelay); err != nil {
		return nil, err
	}

	created, err := s.directory.Create(ctx, reg)
	if err != nil {
		return nil, s.registrationFailed(span, err)
	}
	created.Points = 0
	created.OrdersCount = 0

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, created); err != nil {
		return nil, s.registrationFailed(span, err)
	}
	s.current = clone(created)
	s.hydrated = true

	span.SetAttributes(attribute.Int64("customer.id", created.ID))

	return clone(created), nil
}

func (s *Store) registrationFailed(span trace.Span, err error) error {
	s.logger.Error("failed to register customer", "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
}

// Clear forgets the current customer and deletes the persisted copy.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	s.hydrated = true
	if err := s.storage.Delete(context.WithoutCancel(ctx), storage.KeyCustomer); err != nil {
		s.logger.Error("failed to delete customer", "error", err)
	}
}

func (s *Store) persist(ctx context.Context, c *domain.Customer) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode customer: %w", err)
	}

	return s.storage.Set(context.WithoutCancel(ctx), storage.KeyCustomer, string(data))
}

func clone(c *domain.Customer) *domain.Customer {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
