package locale

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

// Table is a nested translation tree; leaves are strings.
type Table map[string]any

// Loader fetches the translation table of one locale. Implementations may be
// remote, so loads take a context and can fail.
type Loader interface {
	Load(ctx context.Context, locale domain.Locale) (Table, error)
}

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// FSLoader reads locales/<locale>.yaml from a filesystem.
type FSLoader struct {
	fsys fs.FS
}

func NewFSLoader(fsys fs.FS) *FSLoader {
	return &FSLoader{fsys: fsys}
}

// EmbeddedLoader serves the translation files compiled into the binary.
func EmbeddedLoader() *FSLoader {
	return NewFSLoader(embeddedLocales)
}

func (l *FSLoader) Load(ctx context.Context, locale domain.Locale) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := "locales/" + string(locale) + ".yaml"
	data, err := fs.ReadFile(l.fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read translations %s: %w", path, err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse translations %s: %w", path, err)
	}
	if table == nil {
		table = Table{}
	}

	return table, nil
}

// CachedLoader shares one parsed table per locale between every store that
// loads through it. Failed loads are not cached, and concurrent loads of the
// same locale collapse into one call to the underlying loader. Tables are
// read-only once loaded.
type CachedLoader struct {
	next  Loader
	group singleflight.Group

	mu     sync.RWMutex
	tables map[domain.Locale]Table
}

func NewCachedLoader(next Loader) *CachedLoader {
	return &CachedLoader{
		next:   next,
		tables: make(map[domain.Locale]Table),
	}
}

func (l *CachedLoader) Load(ctx context.Context, locale domain.Locale) (Table, error) {
	l.mu.RLock()
	table, ok := l.tables[locale]
	l.mu.RUnlock()
	if ok {
		return table, nil
	}

	v, err, _ := l.group.Do(string(locale), func() (any, error) {
		table, err := l.next.Load(ctx, locale)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.tables[locale] = table
		l.mu.Unlock()

		return table, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(Table), nil
}
