package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// HTTPProber checks public URLs with HEAD requests.
type HTTPProber struct {
	client *http.Client
}

var _ Prober = (*HTTPProber)(nil)

// NewHTTPProber creates a prober. A nil client defaults to [http.DefaultClient].
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{client: client}
}

// Exists reports true for a 2xx response and false for 403, 404 or 410.
//
// Public buckets answer 403 for missing keys when listing is disabled.
// Any other status is a storage error so an unreachable host is never read as "absent".
func (p *HTTPProber) Exists(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", shared.ErrMalformedReference, rawURL, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: HEAD %s: %v", shared.ErrStorage, rawURL, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("%w: HEAD %s: status %d", shared.ErrStorage, rawURL, resp.StatusCode)
	}
}
