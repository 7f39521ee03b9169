// Package locale holds the active storefront language and resolves dotted
// translation keys against its table.
package locale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

var ErrUnsupportedLocale = errors.New("unsupported locale")

type Store struct {
	loader Loader
	logger *slog.Logger

	mu     sync.RWMutex
	locale domain.Locale
	table  Table
	// loaded reports whether table belongs to locale.
	loaded bool
	// gen increases on every locale switch so a slow load for a locale the
	// user already left does not replace the current table.
	gen uint64
}

// NewStore creates a store for initial (the default locale when initial is not
// supported) and loads its table. A failed load leaves the table empty, so
// Translate returns keys unchanged until a later SetLocale succeeds, including
// one for the same locale.
func NewStore(ctx context.Context, loader Loader, logger *slog.Logger, initial domain.Locale) *Store {
	if !initial.Valid() {
		initial = domain.DefaultLocale
	}

	s := &Store{
		loader: loader,
		logger: logger,
		locale: initial,
		table:  Table{},
	}

	table, err := loader.Load(context.WithoutCancel(ctx), initial)
	if err != nil {
		logger.Error("failed to load translations", "error", err, "locale", initial)
		return s
	}
	s.table = table
	s.loaded = true

	return s
}

func (s *Store) Locale() domain.Locale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locale
}

func (s *Store) IsRTL() bool {
	return s.Locale().RTL()
}

// Direction returns the text direction attribute for the active locale.
func (s *Store) Direction() string {
	if s.IsRTL() {
		return "rtl"
	}
	return "ltr"
}

// SetLocale switches the active locale and reloads its table. Selecting the
// active locale is a no-op once its table has loaded. When the load fails the
// previous table stays in place and the error is returned.
func (s *Store) SetLocale(ctx context.Context, locale domain.Locale) error {
	if !locale.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}

	s.mu.Lock()
	if s.locale == locale && s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.locale = locale
	s.loaded = false
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	table, err := s.loader.Load(context.WithoutCancel(ctx), locale)
	if err != nil {
		s.logger.Error("failed to load translations", "error", err, "locale", locale)
		return fmt.Errorf("load %s translations: %w", locale, err)
	}

	s.mu.Lock()
	if s.gen == gen {
		s.table = table
		s.loaded = true
	}
	s.mu.Unlock()

	return nil
}

// Translate resolves a dotted key such as "checkout.welcomeBack". Missing
// segments and non-string leaves return the key itself. Each {{name}} in the
// resolved text is replaced by the matching param; unknown placeholders stay.
func (s *Store) Translate(key string, params map[string]any) string {
	s.mu.RLock()
	table := s.table
	s.mu.RUnlock()

	return Resolve(table, key, params)
}

// Resolve performs the Translate lookup against an explicit table.
func Resolve(table Table, key string, params map[string]any) string {
	var node any = map[string]any(table)
	for _, segment := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return key
		}
		node, ok = m[segment]
		if !ok {
			return key
		}
	}

	text, ok := node.(string)
	if !ok {
		return key
	}

	for _, name := range slices.Sorted(maps.Keys(params)) {
		text = strings.ReplaceAll(text, "{{"+name+"}}", fmt.Sprint(params[name]))
	}

	return text
}
