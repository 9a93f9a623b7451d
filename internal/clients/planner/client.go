// Package planner is the client for the external grasp-planning service.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/robobench/graspd/internal/clients/wire"
	"github.com/robobench/graspd/internal/domain/grasp"
	"github.com/robobench/graspd/internal/infrastructure/monitoring"
	"github.com/robobench/graspd/internal/infrastructure/resilience"
)

type planRequest struct {
	CameraInfo struct {
		Frame  string  `json:"frame"`
		Width  int     `json:"width"`
		Height int     `json:"height"`
		Fx     float64 `json:"fx"`
		Fy     float64 `json:"fy"`
		Cx     float64 `json:"cx"`
		Cy     float64 `json:"cy"`
	} `json:"camera_info"`
	ColorImage      imagePayload `json:"color_image"`
	DepthImage      imagePayload `json:"depth_image"`
	ViewPoint       wire.Pose    `json:"view_point"`
	Cloud           wire.Cloud   `json:"cloud"`
	NumCandidates   int          `json:"n_of_candidates"`
	ArucoBoard      *wire.Pose   `json:"aruco_board,omitempty"`
	GraspFilterFlag bool         `json:"grasp_filter_flag"`
}

type imagePayload struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Encoding string `json:"encoding"`
	Data     []byte `json:"data"`
}

type planResponse struct {
	GraspCandidates []struct {
		ID    string    `json:"id"`
		Pose  wire.Pose `json:"pose"`
		Width float64   `json:"width"`
		Score float64   `json:"score"`
	} `json:"grasp_candidates"`
}

// Client implements grasp.Planner over HTTP with a circuit breaker.
type Client struct {
	http    *resty.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
}

// New creates a planner client. metrics may be nil.
func New(addr string, timeout time.Duration, metrics *monitoring.Metrics) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(addr).
			SetTimeout(timeout),
		breaker: resilience.New("planner", resilience.Settings{
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

// PlanGrasps requests up to req.Candidates grasp candidates for the merged
// cloud. Candidates arriving without an id are assigned one.
func (c *Client) PlanGrasps(ctx context.Context, req *grasp.PlanRequest) ([]grasp.Candidate, error) {
	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.plan(ctx, req)
	})
	if c.metrics != nil {
		c.metrics.ObserveServiceCall("planner", "plan_grasps", time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	return result.([]grasp.Candidate), nil
}

func (c *Client) plan(ctx context.Context, req *grasp.PlanRequest) ([]grasp.Candidate, error) {
	body := planRequest{
		ColorImage: imagePayload{
			Width:    req.Color.Width,
			Height:   req.Color.Height,
			Encoding: req.Color.Encoding,
			Data:     req.Color.Data,
		},
		DepthImage: imagePayload{
			Width:    req.Depth.Width,
			Height:   req.Depth.Height,
			Encoding: req.Depth.Encoding,
			Data:     req.Depth.Data,
		},
		ViewPoint:       wire.FromTransform(req.Viewpoint),
		Cloud:           wire.FromCloud(req.Cloud),
		NumCandidates:   req.Candidates,
		GraspFilterFlag: req.FilterEnabled,
	}
	body.CameraInfo.Frame = req.Intrinsics.Frame
	body.CameraInfo.Width = req.Intrinsics.Width
	body.CameraInfo.Height = req.Intrinsics.Height
	body.CameraInfo.Fx = req.Intrinsics.Fx
	body.CameraInfo.Fy = req.Intrinsics.Fy
	body.CameraInfo.Cx = req.Intrinsics.Cx
	body.CameraInfo.Cy = req.Intrinsics.Cy
	if req.FilterEnabled {
		board := wire.FromTransform(req.BoardPose)
		body.ArucoBoard = &board
	}

	var reply planResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		SetResult(&reply).
		Post("/plan_grasps")
	if err != nil {
		return nil, fmt.Errorf("planner: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("planner: service returned %s", resp.Status())
	}

	cands := make([]grasp.Candidate, 0, len(reply.GraspCandidates))
	for i, rc := range reply.GraspCandidates {
		pose, err := rc.Pose.Transform()
		if err != nil {
			return nil, fmt.Errorf("planner: candidate %d has invalid pose: %w", i, err)
		}
		id := rc.ID
		if id == "" {
			id = uuid.New().String()
		}
		cands = append(cands, grasp.Candidate{
			ID:    id,
			Pose:  pose,
			Width: rc.Width,
			Score: rc.Score,
		})
	}
	return cands, nil
}
