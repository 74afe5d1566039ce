package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// paymentResource is the wire shape of the provider's payment endpoint.
type paymentResource struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

// Client fetches payment resources over the provider's REST API using an
// access token. The HTTP timeout bounds the whole verification call; a
// timeout is a transient verification failure, not a terminal one.
type Client struct {
	name        string
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient builds a gateway client. Credentials are injected here rather
// than read from ambient process state inside business logic.
func NewClient(name, baseURL, accessToken string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:        name,
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Name reports the provider identifier used in idempotency keys.
func (c *Client) Name() string { return c.name }

// FetchPayment retrieves the authoritative payment state by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, paymentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: build request: %v", ErrVerification, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "payment fetch failed", "provider", c.name, "payment_id", paymentID, "err", err)
		return Payment{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WarnContext(ctx, "payment fetch non-2xx", "provider", c.name, "payment_id", paymentID, "status", resp.StatusCode, "body", string(body))
		return Payment{}, fmt.Errorf("%w: provider returned %d", ErrVerification, resp.StatusCode)
	}

	var res paymentResource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Payment{}, fmt.Errorf("%w: decode body: %v", ErrVerification, err)
	}

	status, err := MapStatus(res.Status)
	if err != nil {
		return Payment{}, err
	}

	return Payment{
		ID:       res.ID.String(),
		Status:   status,
		OrderRef: res.ExternalReference,
	}, nil
}
