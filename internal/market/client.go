package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"market_board/internal/items"

	"github.com/rs/zerolog/log"
)

type Client struct {
	pricesURL    string
	catalogURL   string
	apiKey       string
	client       *http.Client
	apiCallCount int64
	apiCallMutex sync.Mutex
}

// APIError is returned for any non-2xx response.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

func NewClient(pricesURL, catalogURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		pricesURL:  pricesURL,
		catalogURL: catalogURL,
		apiKey:     apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

// FetchPrices downloads the full price list. The order of the returned items
// follows the order of the response document.
func (c *Client) FetchPrices(ctx context.Context) ([]items.Item, error) {
	body, err := c.get(ctx, c.pricesURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	list, err := items.DecodeSnapshot(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode price list: %w", err)
	}

	log.Debug().
		Int("items", len(list)).
		Int64("api_calls", c.GetAPICallCount()).
		Msg("Fetched price list")
	return list, nil
}

// FetchCatalog downloads the static item catalog used for set exclusion and image ids.
func (c *Client) FetchCatalog(ctx context.Context) (*Catalog, error) {
	if c.catalogURL == "" {
		return NewCatalog(nil), nil
	}

	body, err := c.get(ctx, c.catalogURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var categories map[string]map[string]items.ID
	if err := json.NewDecoder(body).Decode(&categories); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	catalog := NewCatalog(categories)
	log.Debug().
		Int("categories", len(categories)).
		Int("items", catalog.Len()).
		Int("set_items", len(catalog.ExclusionSet())).
		Msg("Fetched item catalog")
	return catalog, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// Increment API call counter
	c.IncrementAPICall()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Debug().
			Str("url", url).
			Int("status_code", resp.StatusCode).
			Str("response_body", string(body)).
			Msg("Non-2xx response from API")
		return nil, &APIError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
