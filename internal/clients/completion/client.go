// Package completion is the client for the external shape-completion
// service.
package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/robobench/graspd/internal/infrastructure/monitoring"
)

type completeRequest struct {
	Points [][3]float64 `json:"points"`
}

type completeResponse struct {
	Points [][3]float64 `json:"points"`
}

// Client implements compose.Completer over HTTP.
type Client struct {
	http    *resty.Client
	metrics *monitoring.Metrics
}

// New creates a completion client. metrics may be nil.
func New(addr string, timeout time.Duration, metrics *monitoring.Metrics) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(addr).
			SetTimeout(timeout),
		metrics: metrics,
	}
}

// Complete sends the partial camera-frame cloud and returns the completed
// point array. The output has no correspondence to input indices.
func (c *Client) Complete(ctx context.Context, partial [][3]float64) (_ [][3]float64, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveServiceCall("completion", "complete", time.Since(start), err)
		}
	}()

	var reply completeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&completeRequest{Points: partial}).
		SetResult(&reply).
		Post("/complete_point_cloud")
	if err != nil {
		return nil, fmt.Errorf("completion: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("completion: service returned %s", resp.Status())
	}
	return reply.Points, nil
}
