package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"

	"github.com/Additional-Code/subext/internal/config"
	"github.com/Additional-Code/subext/internal/entity"
	"github.com/Additional-Code/subext/internal/observability"
)

// Module provides the subscription service client to Fx.
var Module = fx.Provide(NewFromConfig)

// StatusError is returned when the subscription service answers with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("subscription service responded %s", e.Status)
}

// Client registers subscriptions with the external subscription service.
type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a Client posting to endpoint. A nil httpClient uses http.DefaultClient.
func New(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// NewFromConfig builds a Client with the configured endpoint and per-call timeout.
func NewFromConfig(cfg config.Config, obs *observability.Manager) *Client {
	transport := http.DefaultTransport
	if obs != nil && obs.TracingEnabled() {
		transport = otelhttp.NewTransport(transport)
	}
	return New(cfg.Extension.SubscriptionServiceURL, &http.Client{
		Timeout:   cfg.Extension.RequestTimeout,
		Transport: transport,
	})
}

// Endpoint returns the URL registrations are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Add posts one subscription registration. The response body is discarded.
func (c *Client) Add(ctx context.Context, sub entity.SubscriptionRequest) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call subscription service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status := resp.Status
		if status == "" {
			status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return &StatusError{Code: resp.StatusCode, Status: status}
	}
	return nil
}

// IsTimeout reports whether err was caused by an expired deadline or client timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
