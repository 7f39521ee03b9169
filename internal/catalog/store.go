// Package catalog answers product queries over a fixed product source.
package catalog

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
)

var tracer = otel.Tracer("catalog")

const (
	DefaultQueryDelay  = 500 * time.Millisecond
	DefaultLookupDelay = 300 * time.Millisecond

	errFetchProducts = "Failed to fetch products"
	errFetchProduct  = "Failed to fetch product"
)

type SortOrder string

const (
	SortNone      SortOrder = ""
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortNameAsc   SortOrder = "name_asc"
	SortNameDesc  SortOrder = "name_desc"
)

// ParseSort accepts the empty string and the four sort directives.
func ParseSort(value string) (SortOrder, bool) {
	switch s := SortOrder(value); s {
	case SortNone, SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return s, true
	}
	return SortNone, false
}

// Filter predicates compose with AND. Zero values match everything.
type Filter struct {
	Category domain.Category
	Featured *bool
	Search   string
	Sort     SortOrder
}

// Source provides the products the store queries.
type Source interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
}

type Option func(*Store)

func WithQueryDelay(d time.Duration) Option {
	return func(s *Store) {
		s.queryDelay = d
	}
}

func WithLookupDelay(d time.Duration) Option {
	return func(s *Store) {
		s.lookupDelay = d
	}
}

type Store struct {
	source Source
	delay  latency.Delayer
	logger *slog.Logger

	queryDelay  time.Duration
	lookupDelay time.Duration

	mu  sync.RWMutex
	err string
}

func NewStore(source Source, delay latency.Delayer, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		source:      source,
		delay:       delay,
		logger:      logger,
		queryDelay:  DefaultQueryDelay,
		lookupDelay: DefaultLookupDelay,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Err returns the message of the last failed call, or "" once a later call
// succeeded.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Listing is a query result together with the failure message that call
// produced, if any.
type Listing struct {
	Products []domain.Product
	Err      string
}

// Query returns every product matching the filter. An internal failure is
// recorded in Err and yields an empty result; only cancellation is returned.
func (s *Store) Query(ctx context.Context, filter Filter) ([]domain.Product, error) {
	listing, err := s.Browse(ctx, filter)
	return listing.Products, err
}

// Browse is Query reporting its own failure message, which concurrent calls
// on the shared store cannot overwrite before the caller reads it.
func (s *Store) Browse(ctx context.Context, filter Filter) (Listing, error) {
	ctx, span := tracer.Start(ctx, "catalog.Query", trace.WithAttributes(
		attribute.String("catalog.category", string(filter.Category)),
		attribute.String("catalog.search", filter.Search),
		attribute.String("catalog.sort", string(filter.Sort)),
	))
	defer span.End()

	if err := s.delay.Wait(ctx, s.queryDelay); err != nil {
		return Listing{}, err
	}

	products, err := s.source.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Listing{}, ctx.Err()
		}
		s.fail(span, errFetchProducts, err)
		return Listing{Products: []domain.Product{}, Err: errFetchProducts}, nil
	}
	s.setErr("")

	result := apply(products, filter)
	span.SetAttributes(attribute.Int("catalog.results", len(result)))

	return Listing{Products: result}, nil
}

// GetByID returns nil when no product has the id.
func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, _, err := s.Lookup(ctx, id)
	return product, err
}

// Lookup is GetByID reporting its own failure message. A nil product with an
// empty message means the id is unknown.
func (s *Store) Lookup(ctx context.Context, id int64) (*domain.Product, string, error) {
	ctx, span := tracer.Start(ctx, "catalog.GetByID", trace.WithAttributes(
		attribute.Int64("catalog.product_id", id),
	))
	defer span.End()

	if err := s.delay.Wait(ctx, s.lookupDelay); err != nil {
		return nil, "", err
	}

	product, err := s.source.Get(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		s.fail(span, errFetchProduct, err)
		return nil, errFetchProduct, nil
	}
	s.setErr("")

	return product, "", nil
}

func (s *Store) fail(span trace.Span, message string, err error) {
	s.logger.Error("failed to fetch products", "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.setErr(message)
}

func (s *Store) setErr(message string) {
	s.mu.Lock()
	s.err = message
	s.mu.Unlock()
}

func apply(products []domain.Product, filter Filter) []domain.Product {
	var fold cases.Caser
	var term string
	if filter.Search != "" {
		fold = cases.Fold()
		term = fold.String(filter.Search)
	}

	result := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Featured != nil && p.IsFeatured != *filter.Featured {
			continue
		}
		if term != "" && !matches(fold, p, term) {
			continue
		}
		result = append(result, p)
	}

	sortProducts(result, filter.Sort)

	return result
}

func matches(fold cases.Caser, p domain.Product, term string) bool {
	for _, text := range []string{p.Name.EN, p.Name.AR, p.Description.EN, p.Description.AR} {
		if strings.Contains(fold.String(text), term) {
			return true
		}
	}
	return false
}

func sortProducts(products []domain.Product, order SortOrder) {
	switch order {
	case SortPriceAsc:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case SortPriceDesc:
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			return cmp.Compare(b.Price, a.Price)
		})
	case SortNameAsc, SortNameDesc:
		collator := collate.New(language.English)
		slices.SortStableFunc(products, func(a, b domain.Product) int {
			if order == SortNameDesc {
				a, b = b, a
			}
			return collator.CompareString(a.Name.EN, b.Name.EN)
		})
	}
}
