// Package tracknote provides a Go SDK for the tracknote-server API.
package tracknote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client calls the tracknote-server JSON API.
type Client struct {
	client *resty.Client
}

// NewClient creates an API client for the server at baseURL.
func NewClient(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &Client{client: client}
}

// Orders retrieves every stored order.
func (c *Client) Orders(ctx context.Context) ([]*Order, error) {
	var orders []*Order
	resp, err := c.client.R().SetContext(ctx).SetResult(&orders).Get("/api/orders")
	if err := checkResp(resp, err); err != nil {
		return nil, err
	}
	return orders, nil
}

// OrdersByState retrieves stored orders in one lifecycle state ("preorder",
// "bought" or "merged").
func (c *Client) OrdersByState(ctx context.Context, state string) ([]*Order, error) {
	var orders []*Order
	resp, err := c.client.R().SetContext(ctx).SetResult(&orders).
		Get("/api/orders/state/" + state)
	if err := checkResp(resp, err); err != nil {
		return nil, err
	}
	return orders, nil
}

// MergedPositions retrieves the consolidated positions, newest first.
func (c *Client) MergedPositions(ctx context.Context) ([]*MergedPosition, error) {
	var positions []*MergedPosition
	resp, err := c.client.R().SetContext(ctx).SetResult(&positions).
		Get("/api/positions/merged")
	if err := checkResp(resp, err); err != nil {
		return nil, err
	}
	return positions, nil
}

// Reconcile triggers a reconciliation pass and returns its report.
func (c *Client) Reconcile(ctx context.Context) (*PassReport, error) {
	var report PassReport
	resp, err := c.client.R().SetContext(ctx).SetResult(&report).Post("/api/reconcile")
	if err := checkResp(resp, err); err != nil {
		return nil, err
	}
	return &report, nil
}

// Detect triggers fill detection and merging against a fresh holdings
// snapshot.
func (c *Client) Detect(ctx context.Context) (*DetectResult, error) {
	var res DetectResult
	resp, err := c.client.R().SetContext(ctx).SetResult(&res).Post("/api/detect")
	if err := checkResp(resp, err); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/api/health")
	return checkResp(resp, err)
}

func checkResp(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: %s", resp.Request.Method, resp.Request.URL, resp.Status())
	}
	return nil
}
