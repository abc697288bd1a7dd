// Package client calls the CRM HTTP API. It is what the scheduled jobs use
// to reach the service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safar/crm-service/internal/crm"
	"github.com/safar/crm-service/internal/filter"
	"github.com/safar/crm-service/internal/models"
	"github.com/safar/crm-service/internal/store"
)

const requestIDHeader = "X-Request-ID"

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crm api: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health returns the liveness message of the service.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Hello string `json:"hello"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Hello, nil
}

func (c *Client) UpdateLowStockProducts(ctx context.Context, threshold, increment int) (*crm.RestockPayload, error) {
	body := map[string]int{"threshold": threshold, "increment": increment}

	var out crm.RestockPayload
	if err := c.do(ctx, http.MethodPost, "/products/restock", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOrders(ctx context.Context, f filter.OrderFilter, p store.Pagination) (*store.Page[models.Order], error) {
	q := f.Values()
	if p.First > 0 {
		q.Set("first", strconv.Itoa(p.First))
	}
	if p.After != "" {
		q.Set("after", p.After)
	}

	var out store.Page[models.Order]
	if err := c.do(ctx, http.MethodGet, "/orders", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Report(ctx context.Context) (*models.Summary, error) {
	var out models.Summary
	if err := c.do(ctx, http.MethodGet, "/report", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
