package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hunters-code/adol-agents/pkg/logging"
)

const (
	defaultTimeout = 10 * time.Second
	retryBackoff   = 500 * time.Millisecond
)

// HTTPClient talks to the product catalog service over HTTP. Fetches are
// retried once with a short backoff before the turn is given up.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption is a functional option for configuring the HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sets the bearer token sent to the catalog service.
func WithAPIKey(key string) ClientOption {
	return func(c *HTTPClient) {
		c.apiKey = key
	}
}

// NewHTTPClient creates a catalog client for the given base URL.
func NewHTTPClient(baseURL string, logger *logging.Logger, opts ...ClientOption) *HTTPClient {
	if logger == nil {
		logger = logging.Default()
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// FetchProduct retrieves a product by id. A transport error or 5xx response
// is retried once; a second failure returns ErrUnavailable.
func (c *HTTPClient) FetchProduct(ctx context.Context, productID string) (*Product, error) {
	url := fmt.Sprintf("%s/products/%s", c.baseURL, productID)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
			c.logger.Warn("catalog: retrying product fetch", "product_id", productID, "error", lastErr)
		}

		product, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return product, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *HTTPClient) fetchOnce(ctx context.Context, url string) (*Product, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("catalog: build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("catalog: fetch product: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var product Product
		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return nil, false, fmt.Errorf("catalog: decode product: %w", err)
		}
		return &product, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}
}

// UpdateProductFact pushes a seller-supplied fact (e.g. a flaw answer) back
// to the catalog as a side-channel write.
func (c *HTTPClient) UpdateProductFact(ctx context.Context, productID, key, value string) error {
	url := fmt.Sprintf("%s/products/%s/facts", c.baseURL, productID)

	payload, err := json.Marshal(map[string]string{"key": key, "value": value})
	if err != nil {
		return fmt.Errorf("catalog: encode fact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: update fact: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("catalog: update fact: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
