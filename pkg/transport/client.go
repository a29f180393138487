// SPDX-License-Identifier: BSD-3-Clause

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"github.com/avena-robotics/control-core/pkg/event"
)

// Client delivers outbound events over HTTP POST, retrying transient
// failures with exponential backoff.
type Client struct {
	cfg        *config
	httpClient *http.Client
}

// NewClient builds an outbound client from opts.
func NewClient(opts ...Option) *Client {
	cfg := newConfig(opts...)
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.writeTimeout},
	}
}

// Send POSTs e to url, retrying on network or 5xx failures until the
// configured retry policy is exhausted. A 4xx response is not retried: it
// indicates the payload itself was rejected.
func (c *Client) Send(ctx context.Context, url string, e event.Event) error {
	body, err := event.Marshal(e)
	if err != nil {
		return err
	}

	policy := backoff.WithContext(c.retryPolicy(), ctx)

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("destination %s returned %d", e.Destination, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("destination %s rejected payload with %d", e.Destination, resp.StatusCode))
		}
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return &event.TransportError{Destination: e.Destination, Err: fmt.Errorf("%w: %w", ErrSendFailed, err)}
	}
	return nil
}

func (c *Client) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.retryInitial
	b.MaxInterval = c.cfg.retryMax
	b.MaxElapsedTime = c.cfg.retryMaxElapsed
	return b
}

// Ack decodes the synchronous {id, received} acknowledgement body returned
// by a Server, for callers that want to confirm ingress accepted the
// request before it was even processed.
func Ack(body []byte) (int64, bool, error) {
	var a ackBody
	if err := json.Unmarshal(body, &a); err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return a.ID, a.Received, nil
}
