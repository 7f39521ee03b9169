package locale

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLoader struct {
	tables map[domain.Locale]Table
	err    error
}

func (l *stubLoader) Load(_ context.Context, locale domain.Locale) (Table, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.tables[locale], nil
}

func TestResolve(t *testing.T) {
	table := Table{
		"a": map[string]any{
			"x": "found",
		},
		"checkout": map[string]any{
			"welcomeBack":  "Welcome back, {{name}}!",
			"rewardPoints": "You have {{points}} reward points available",
			"twice":        "{{name}} and {{name}}",
		},
		"count": 3,
	}

	tests := []struct {
		name   string
		key    string
		params map[string]any
		want   string
	}{
		{"missing middle segment", "a.b.c", nil, "a.b.c"},
		{"missing root", "nope", nil, "nope"},
		{"non-string leaf", "count", nil, "count"},
		{"map leaf", "checkout", nil, "checkout"},
		{"descends past string", "a.x.y", nil, "a.x.y"},
		{"plain lookup", "a.x", nil, "found"},
		{"interpolates", "checkout.welcomeBack", map[string]any{"name": "Aisha"}, "Welcome back, Aisha!"},
		{"stringifies values", "checkout.rewardPoints", map[string]any{"points": 50}, "You have 50 reward points available"},
		{"replaces every occurrence", "checkout.twice", map[string]any{"name": "Omar"}, "Omar and Omar"},
		{"leaves unmatched placeholders", "checkout.welcomeBack", map[string]any{"other": 1}, "Welcome back, {{name}}!"},
		{"no params keeps placeholders", "checkout.welcomeBack", nil, "Welcome back, {{name}}!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(table, tt.key, tt.params); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStore_EmbeddedTranslations(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, EmbeddedLoader(), discardLogger(), domain.LocaleEnglish)

	if got := store.Translate("checkout.welcomeBack", map[string]any{"name": "Aisha"}); got != "Welcome back, Aisha!" {
		t.Errorf("unexpected english translation: %s", got)
	}
	if store.IsRTL() || store.Direction() != "ltr" {
		t.Error("english should be left-to-right")
	}

	if err := store.SetLocale(ctx, domain.LocaleArabic); err != nil {
		t.Fatalf("set locale: %v", err)
	}
	if got := store.Translate("common.cart", nil); got != "سلة التسوق" {
		t.Errorf("unexpected arabic translation: %s", got)
	}
	if !store.IsRTL() || store.Direction() != "rtl" {
		t.Error("arabic should be right-to-left")
	}
}

func TestStore_SetLocale(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects unsupported locales", func(t *testing.T) {
		store := NewStore(ctx, EmbeddedLoader(), discardLogger(), domain.LocaleEnglish)

		err := store.SetLocale(ctx, domain.Locale("fr"))
		if !errors.Is(err, ErrUnsupportedLocale) {
			t.Fatalf("expected ErrUnsupportedLocale, got %v", err)
		}
		if store.Locale() != domain.LocaleEnglish {
			t.Errorf("locale should not change, got %s", store.Locale())
		}
	})

	t.Run("failed load keeps previous table", func(t *testing.T) {
		loader := &stubLoader{tables: map[domain.Locale]Table{
			domain.LocaleEnglish: {"common": map[string]any{"cart": "Cart"}},
		}}
		store := NewStore(ctx, loader, discardLogger(), domain.LocaleEnglish)

		loader.err = errors.New("translations unavailable")
		if err := store.SetLocale(ctx, domain.LocaleArabic); err == nil {
			t.Fatal("expected load error")
		}

		if got := store.Translate("common.cart", nil); got != "Cart" {
			t.Errorf("expected previous table to remain, got %q", got)
		}
		if store.Locale() != domain.LocaleArabic {
			t.Errorf("expected active locale ar, got %s", store.Locale())
		}
	})

	t.Run("invalid initial locale falls back to default", func(t *testing.T) {
		store := NewStore(ctx, EmbeddedLoader(), discardLogger(), domain.Locale("xx"))
		if store.Locale() != domain.DefaultLocale {
			t.Errorf("expected default locale, got %s", store.Locale())
		}
	})

	t.Run("failed initial load translates to keys", func(t *testing.T) {
		store := NewStore(ctx, &stubLoader{err: errors.New("boom")}, discardLogger(), domain.LocaleEnglish)
		if got := store.Translate("common.cart", nil); got != "common.cart" {
			t.Errorf("expected key fallback, got %q", got)
		}
	})

	t.Run("same locale reloads after a failed initial load", func(t *testing.T) {
		loader := &stubLoader{err: errors.New("boom"), tables: map[domain.Locale]Table{
			domain.LocaleEnglish: {"common": map[string]any{"cart": "Cart"}},
		}}
		store := NewStore(ctx, loader, discardLogger(), domain.LocaleEnglish)

		loader.err = nil
		if err := store.SetLocale(ctx, domain.LocaleEnglish); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := store.Translate("common.cart", nil); got != "Cart" {
			t.Errorf("expected reloaded table, got %q", got)
		}
	})

	t.Run("retries a locale whose switch failed", func(t *testing.T) {
		loader := &stubLoader{tables: map[domain.Locale]Table{
			domain.LocaleEnglish: {"common": map[string]any{"cart": "Cart"}},
			domain.LocaleArabic:  {"common": map[string]any{"cart": "السلة"}},
		}}
		store := NewStore(ctx, loader, discardLogger(), domain.LocaleEnglish)

		loader.err = errors.New("translations unavailable")
		_ = store.SetLocale(ctx, domain.LocaleArabic)

		loader.err = nil
		if err := store.SetLocale(ctx, domain.LocaleArabic); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := store.Translate("common.cart", nil); got != "السلة" {
			t.Errorf("expected arabic table, got %q", got)
		}
	})

	t.Run("cancelled request still loads translations", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		store := NewStore(cancelled, EmbeddedLoader(), discardLogger(), domain.LocaleEnglish)
		if got := store.Translate("common.cart", nil); got == "common.cart" {
			t.Error("expected translations despite the cancelled context")
		}
	})
}

func TestFSLoader(t *testing.T) {
	ctx := context.Background()

	t.Run("reports malformed files", func(t *testing.T) {
		loader := NewFSLoader(fstest.MapFS{
			"locales/en.yaml": {Data: []byte("common: [unterminated")},
		})
		if _, err := loader.Load(ctx, domain.LocaleEnglish); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("reports missing files", func(t *testing.T) {
		loader := NewFSLoader(fstest.MapFS{})
		if _, err := loader.Load(ctx, domain.LocaleArabic); err == nil {
			t.Error("expected read error")
		}
	})

	t.Run("embedded locales define the same keys", func(t *testing.T) {
		en, err := EmbeddedLoader().Load(ctx, domain.LocaleEnglish)
		if err != nil {
			t.Fatalf("load en: %v", err)
		}
		ar, err := EmbeddedLoader().Load(ctx, domain.LocaleArabic)
		if err != nil {
			t.Fatalf("load ar: %v", err)
		}

		enKeys := flatten("", map[string]any(en))
		arKeys := flatten("", map[string]any(ar))
		for key := range enKeys {
			if !arKeys[key] {
				t.Errorf("key %s missing from ar", key)
			}
		}
		for key := range arKeys {
			if !enKeys[key] {
				t.Errorf("key %s missing from en", key)
			}
		}
	})
}

func flatten(prefix string, node map[string]any) map[string]bool {
	keys := map[string]bool{}
	for k, v := range node {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			for ck := range flatten(path, child) {
				keys[ck] = true
			}
			continue
		}
		keys[path] = true
	}
	return keys
}

func TestMatch(t *testing.T) {
	tests := []struct {
		header string
		want   domain.Locale
	}{
		{"ar-OM,ar;q=0.9,en;q=0.8", domain.LocaleArabic},
		{"en-US,en;q=0.9", domain.LocaleEnglish},
		{"fr-FR", domain.LocaleEnglish},
		{"", domain.LocaleEnglish},
		{"not a header;;;", domain.LocaleEnglish},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := Match(tt.header); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if l, ok := Parse("ar"); !ok || l != domain.LocaleArabic {
		t.Errorf("expected ar, got %s ok=%v", l, ok)
	}
	if _, ok := Parse("de"); ok {
		t.Error("expected de to be rejected")
	}
	if _, ok := Parse("EN"); ok {
		t.Error("locale prefixes are case-sensitive")
	}
}
