// Package robot is the client for the robot's feasibility/execution service.
package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/robobench/graspd/internal/clients/wire"
	"github.com/robobench/graspd/internal/domain/grasp"
	"github.com/robobench/graspd/internal/infrastructure/monitoring"
	"github.com/robobench/graspd/internal/infrastructure/resilience"
)

type graspRequest struct {
	Grasp    wire.Pose `json:"grasp"`
	Width    float64   `json:"width"`
	PlanOnly bool      `json:"plan_only"`
}

type graspResponse struct {
	Success bool `json:"success"`
}

// Client implements grasp.Robot over HTTP with a circuit breaker.
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
}

// New creates a robot client. metrics may be nil.
func New(addr string, timeout time.Duration, metrics *monitoring.Metrics) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(addr).
			SetTimeout(timeout),
		breaker: resilience.New("robot", resilience.Settings{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		metrics: metrics,
	}
}

// PlanGrasp asks whether a reachable collision-free trajectory to the
// candidate exists, without executing motion.
func (c *Client) PlanGrasp(ctx context.Context, cand grasp.Candidate) (bool, error) {
	reply, err := c.call(ctx, "plan_grasp", cand, true)
	if err != nil {
		return false, err
	}
	return reply.Success, nil
}

// ExecuteGrasp dispatches the candidate for execution. A transport failure
// or an unsuccessful outcome is an error; partial motion is never retried.
func (c *Client) ExecuteGrasp(ctx context.Context, cand grasp.Candidate) error {
	reply, err := c.call(ctx, "execute_grasp", cand, false)
	if err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("robot: grasp execution reported failure")
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, cand grasp.Candidate, planOnly bool) (*graspResponse, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var reply graspResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&graspRequest{
				Grasp:    wire.FromTransform(cand.Pose),
				Width:    cand.Width,
				PlanOnly: planOnly,
			}).
			SetResult(&reply).
			Post("/panda_grasp")
		if err != nil {
			return nil, fmt.Errorf("robot: request failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("robot: service returned %s", resp.Status())
		}
		return &reply, nil
	})
	if c.metrics != nil {
		c.metrics.ObserveServiceCall("robot", method, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*graspResponse), nil
}
