// Package checkout prices a cart for an identified customer and turns it into
// a placed order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
)

var (
	tracer = otel.Tracer("checkout")

	ordersPlaced, _ = otel.Meter("checkout").Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders placed, by payment method"),
	)
)

// PointValue is what one loyalty point is worth (0.100 OMR).
const PointValue domain.Money = 100

const (
	DefaultProcessingDelay = 2 * time.Second

	maxOrderIDAttempts = 5
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrNoCustomer           = errors.New("no customer identified")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// Quote prices a cart. Points are applied only when requested and a customer
// is identified, and never discount more than half the subtotal. Shipping is
// free.
func Quote(cart domain.CartSnapshot, customer *domain.Customer, usePoints bool) domain.OrderSummary {
	summary := domain.OrderSummary{
		ItemCount: cart.ItemCount,
		Subtotal:  cart.Subtotal,
	}

	if usePoints && customer != nil && customer.Points > 0 {
		summary.PointsDiscount = min(PointValue.Mul(customer.Points), cart.Subtotal/2)
	}

	summary.Total = summary.Subtotal - summary.PointsDiscount + summary.Shipping

	return summary
}

// Cart is the part of the cart store checkout reads and settles.
type Cart interface {
	Snapshot(ctx context.Context) domain.CartSnapshot
	RemoveOrdered(ctx context.Context, ordered []domain.CartLineItem)
}

// Customers exposes the session's identified customer.
type Customers interface {
	Current(ctx context.Context) *domain.Customer
}

// Recorder stores placed orders.
type Recorder interface {
	Create(ctx context.Context, order *domain.Order) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Request struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method" validate:"required"`
	UsePoints     bool                 `json:"use_points"`
	Locale        domain.Locale        `json:"-"`
}

type Option func(*Service)

func WithProcessingDelay(d time.Duration) Option {
	return func(s *Service) {
		s.processingDelay = d
	}
}

// WithRecorder stores every placed order before it is announced.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithPublisher announces placed orders as domain.OrderPlacedEvent.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

type Service struct {
	delay     latency.Delayer
	logger    *slog.Logger
	recorder  Recorder
	publisher Publisher

	processingDelay time.Duration
	now             func() time.Time
	newOrderID      func() string
}

func NewService(delay latency.Delayer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		delay:           delay,
		logger:          logger,
		processingDelay: DefaultProcessingDelay,
		now:             func() time.Time { return time.Now().UTC() },
		newOrderID:      newOrderID,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// record stores the order, drawing a new order number when the drawn one is
// already taken.
func (s *Service) record(ctx context.Context, order *domain.Order) error {
	if s.recorder == nil {
		return nil
	}

	var err error
	for range maxOrderIDAttempts {
		err = s.recorder.Create(ctx, order)
		if !errors.Is(err, domain.ErrDuplicateOrderID) {
			return err
		}
		order.ID = s.newOrderID()
	}

	return err
}

// newOrderID returns an order number of the form ORD-0042.
func newOrderID() string {
	return fmt.Sprintf("ORD-%04d", rand.IntN(10000))
}

// PlaceOrder turns the cart into a pending order for the current customer.
// The order is recorded, announced and its lines removed from the cart. Once
// the processing delay has passed the request can no longer abandon the order:
// recording, announcing and settling the cart ignore cancellation. A failed
// announcement is logged; the order stands.
func (s *Service) PlaceOrder(ctx context.Context, cart Cart, customers Customers, req Request) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout.PlaceOrder")
	defer span.End()

	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	snapshot := cart.Snapshot(ctx)
	if len(snapshot.Items) == 0 {
		return nil, ErrEmptyCart
	}

	customer := customers.Current(ctx)
	if customer == nil {
		return nil, ErrNoCustomer
	}

	if err := s.delay.Wait(ctx, s.processingDelay); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	locale := req.Locale
	if !locale.Valid() {
		locale = domain.DefaultLocale
	}

	order := &domain.Order{
		ID:            s.newOrderID(),
		CustomerID:    customer.ID,
		CustomerEmail: customer.Email,
		CustomerName:  customer.Name,
		Items:         snapshot.Items,
		Summary:       Quote(snapshot, customer, req.UsePoints),
		PaymentMethod: req.PaymentMethod,
		Status:        domain.OrderStatusPending,
		Locale:        locale,
		CreatedAt:     s.now(),
	}
	order.UsedPoints = order.Summary.PointsDiscount > 0

	span.SetAttributes(
		attribute.String("order.payment_method", string(order.PaymentMethod)),
		attribute.String("order.total", order.Summary.Total.String()),
	)

	if err := s.record(ctx, order); err != nil {
		s.logger.Error("failed to record order", "error", err, "order_id", order.ID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("record order: %w", err)
	}

	if s.publisher != nil {
		event := domain.OrderPlacedEvent{
			EventID:       uuid.New().String(),
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			CustomerName:  order.CustomerName,
			CustomerEmail: order.CustomerEmail,
			Items:         order.Items,
			Total:         order.Summary.Total,
			PaymentMethod: order.PaymentMethod,
			Locale:        order.Locale,
			Timestamp:     order.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
			s.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	span.SetAttributes(attribute.String("order.id", order.ID))

	cart.RemoveOrdered(ctx, snapshot.Items)
	ordersPlaced.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(order.PaymentMethod))))

	s.logger.Info("order placed", "order_id", order.ID, "customer_id", order.CustomerID, "total", order.Summary.Total.String())

	return order, nil
}
