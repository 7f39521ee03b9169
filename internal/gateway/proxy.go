package gateway

import (
	"context"
	"net/http"
)

// forwardedHeaders are the request headers the storefront depends on:
// the session cookie, language negotiation and JSON bodies.
var forwardedHeaders = []string{"Content-Type", "Cookie", "Accept-Language"}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		for _, value := range r.Header.Values(name) {
			req.Header.Add(name, value)
		}
	}

	return p.client.Do(req)
}
