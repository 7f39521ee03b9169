// Package gateway is the public entry point: it settles the locale prefix of
// every storefront URL and forwards requests to the backing services.
package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/stationery-storefront/internal/domain"
	"github.com/joao-fontenele/stationery-storefront/internal/locale"
)

// returnedHeaders are copied from upstream responses back to the client.
var returnedHeaders = []string{"Content-Type", "Set-Cookie", "Location"}

type Handler struct {
	storefrontProxy *ServiceProxy
	ordersProxy     *ServiceProxy
	inventoryProxy  *ServiceProxy
	logger          *slog.Logger
}

func NewHandler(storefrontProxy, ordersProxy, inventoryProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		storefrontProxy: storefrontProxy,
		ordersProxy:     ordersProxy,
		inventoryProxy:  inventoryProxy,
		logger:          logger,
	}
}

// HandleRoot sends visitors to the storefront in their preferred language.
func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	lang := locale.Match(r.Header.Get("Accept-Language"))

	h.logger.Debug("negotiated locale", "locale", lang, "accept_language", r.Header.Get("Accept-Language"))
	http.Redirect(w, r, "/"+string(lang)+"/", http.StatusFound)
}

// HandleStorefront proxies locale-prefixed requests and redirects everything
// else to the default locale.
func (h *Handler) HandleStorefront(w http.ResponseWriter, r *http.Request) {
	segment, rest := splitFirstSegment(r.URL.Path)

	if _, ok := locale.Parse(segment); ok {
		h.proxyRequest(w, r, h.storefrontProxy, r.URL.Path)
		return
	}

	if !looksLikeLocale(segment) {
		rest = r.URL.Path
	}

	target := "/" + string(domain.DefaultLocale) + rest
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	h.logger.Info("redirecting unsupported locale", "path", r.URL.Path, "target", target)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/admin")
	h.proxyRequest(w, r, h.ordersProxy, path)
}

func (h *Handler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	path := strings.Replace(r.URL.Path, "/admin/inventory/", "/", 1)
	h.proxyRequest(w, r, h.inventoryProxy, path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range returnedHeaders {
		for _, value := range resp.Header.Values(name) {
			w.Header().Add(name, value)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// splitFirstSegment splits "/fr/products" into "fr" and "/products".
func splitFirstSegment(path string) (string, string) {
	trimmed := strings.TrimPrefix(path, "/")
	segment, rest, found := strings.Cut(trimmed, "/")
	if !found {
		return segment, "/"
	}
	return segment, "/" + rest
}

// looksLikeLocale reports whether a path segment is shaped like a language
// code ("fr", "de-DE") rather than a page name.
func looksLikeLocale(segment string) bool {
	lang, _, _ := strings.Cut(segment, "-")
	if len(lang) != 2 {
		return false
	}
	for _, c := range lang {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
