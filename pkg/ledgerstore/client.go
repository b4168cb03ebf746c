// Package ledgerstore provides a client for the remote ledger store holding
// payout rows. The store speaks a PostgREST-style interface: filtered ordered
// reads and row-keyed partial updates, nothing else.
package ledgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stablepay-hq/payrunner/pkg/faults"
	"github.com/stablepay-hq/payrunner/pkg/logger"
	"github.com/stablepay-hq/payrunner/pkg/models"
)

// Client represents a ledger store API client
type Client struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new ledger store client
func New(baseURL, apiKey, table string, callTimeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		table:      table,
		httpClient: createHTTPClient(callTimeout),
		logger:     log,
	}
}

// FetchPendingPayouts gets up to limit of the oldest pending outgoing rows,
// ordered by creation time so older obligations are settled first.
func (c *Client) FetchPendingPayouts(ctx context.Context, limit int) ([]models.PayoutIntent, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?direction=eq.%s&status=eq.%s&order=created_at.asc&limit=%d",
		c.baseURL, c.table, models.DirectionOutgoing, models.StatusPending, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, faults.Wrap(faults.Store, err, "failed to build pending payouts request")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.Store, err, "failed to fetch pending payouts")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.ErrorWith(logger.Store, "Failed to close response body: %v", closeErr)
		}
	}()

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(faults.Store, err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, faults.Storef("unexpected status code %d fetching pending payouts, body: %s",
			resp.StatusCode, string(bodyBytes))
	}

	var payouts []models.PayoutIntent
	if err := json.Unmarshal(bodyBytes, &payouts); err != nil {
		return nil, faults.Wrap(faults.Store, err, "failed to decode payout rows, body: %s", string(bodyBytes))
	}

	c.logger.DebugWith(logger.Store, "fetched %d pending payout rows", len(payouts))
	return payouts, nil
}

// UpdatePayout applies a partial update to a single payout row by id.
func (c *Client) UpdatePayout(ctx context.Context, id string, upd models.PayoutUpdate) error {
	payload, err := json.Marshal(upd)
	if err != nil {
		return faults.Wrap(faults.Store, err, "failed to encode update for payout %s", id)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?id=eq.%s", c.baseURL, c.table, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return faults.Wrap(faults.Store, err, "failed to build update request for payout %s", id)
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return faults.Wrap(faults.Store, err, "failed to update payout %s", id)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.ErrorWith(logger.Store, "Failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return faults.Storef("unexpected status code %d updating payout %s, body: %s",
			resp.StatusCode, id, string(bodyBytes))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
