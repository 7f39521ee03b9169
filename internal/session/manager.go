// Package session gives each storefront visitor their own cart, customer and
// locale stores over shared backends.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/stationery-storefront/internal/cart"
	"github.com/joao-fontenele/stationery-storefront/internal/customer"
	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/latency"
	"github.com/joao-fontenele/stationery-storefront/internal/locale"
	"github.com/joao-fontenele/stationery-storefront/internal/storage"
)

const DefaultIdleTTL = 30 * time.Minute

// Session holds one visitor's stores. They are created once and shared by
// every request carrying the same session id until the session goes idle.
type Session struct {
	ID       string
	Cart     *cart.Store
	Customer *customer.Store
	Locale   *locale.Store

	lastSeen time.Time
}

type Manager struct {
	storage   storage.Storage
	directory customer.Directory
	loader    locale.Loader
	delay     latency.Delayer
	logger    *slog.Logger
	idleTTL   time.Duration
	opts      []customer.Option
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions are dropped after idleTTL
// without requests (DefaultIdleTTL when idleTTL <= 0). Cart and customer
// state live in s, so an evicted session is restored on its next request.
// Translation tables are shared across sessions.
func NewManager(s storage.Storage, directory customer.Directory, loader locale.Loader, delay latency.Delayer, logger *slog.Logger, idleTTL time.Duration, opts ...customer.Option) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}

	return &Manager{
		storage:   s,
		directory: directory,
		loader:    locale.NewCachedLoader(loader),
		delay:     delay,
		logger:    logger,
		idleTTL:   idleTTL,
		opts:      opts,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the session for id, creating and hydrating its stores on first
// use. initial is the locale a new session starts in.
func (m *Manager) Get(ctx context.Context, id string, initial domain.Locale) *Session {
	sess := m.lookup(id)
	if sess == nil {
		sess = m.insert(m.build(ctx, id, initial))
	}

	sess.Cart.Hydrate(ctx)
	sess.Customer.Hydrate(ctx)

	return sess
}

func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	sess.lastSeen = m.now()
	return sess
}

// insert stores sess unless a concurrent request registered the same id
// first, in which case that session wins.
func (m *Manager) insert(sess *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[sess.ID]; ok {
		existing.lastSeen = m.now()
		return existing
	}
	sess.lastSeen = m.now()
	m.sessions[sess.ID] = sess
	return sess
}

func (m *Manager) build(ctx context.Context, id string, initial domain.Locale) *Session {
	scoped := storage.Namespaced(m.storage, id)
	logger := m.logger.With("session_id", id)

	return &Session{
		ID:       id,
		Cart:     cart.NewStore(scoped, logger),
		Customer: customer.NewStore(m.directory, scoped, m.delay, logger, m.opts...),
		Locale:   locale.NewStore(ctx, m.loader, logger, initial),
	}
}

// EvictIdle drops sessions that have not been used for the idle TTL and
// returns how many were removed.
func (m *Manager) EvictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleTTL)
	evicted := 0
	for id, sess := range m.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle sessions every interval (one minute when interval <= 0)
// until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 {
				m.logger.Debug("evicted idle sessions", "count", n, "remaining", m.Len())
			}
		}
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
