// Package tf is the client for the coordinate frame provider. It implements
// frames.Provider over HTTP with bounded-wait lookups.
package tf

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/robobench/graspd/internal/clients/wire"
	"github.com/robobench/graspd/internal/shared/geom"
)

// Client queries the frame provider's transform endpoint.
type Client struct {
	addr string
	http *retryablehttp.Client
}

// New creates a frame provider client.
func New(addr string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 50 * time.Millisecond
	c.RetryWaitMax = 250 * time.Millisecond
	c.Logger = nil
	return &Client{addr: addr, http: c}
}

// Lookup resolves the current transform from target into root. wait bounds
// how long the provider may hold the request for a frame that is not yet
// available; zero means answer immediately.
func (c *Client) Lookup(ctx context.Context, target, root string, wait time.Duration) (geom.Transform, error) {
	q := url.Values{}
	q.Set("target", target)
	q.Set("root", root)
	q.Set("wait", strconv.FormatFloat(wait.Seconds(), 'f', -1, 64))

	// The overall deadline covers the provider-side wait plus transport.
	ctx, cancel := context.WithTimeout(ctx, wait+5*time.Second)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.addr+"/transform?"+q.Encode(), nil)
	if err != nil {
		return geom.Transform{}, fmt.Errorf("tf: building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return geom.Transform{}, fmt.Errorf("tf: lookup %s -> %s failed: %w", target, root, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geom.Transform{}, fmt.Errorf("tf: lookup %s -> %s returned %s", target, root, resp.Status)
	}

	var body struct {
		Rotation    wire.Quat `json:"rotation"`
		Translation wire.Vec3 `json:"translation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geom.Transform{}, fmt.Errorf("tf: decoding transform: %w", err)
	}

	pose := wire.Pose{Position: body.Translation, Orientation: body.Rotation}
	t, err := pose.Transform()
	if err != nil {
		return geom.Transform{}, fmt.Errorf("tf: invalid transform from provider: %w", err)
	}
	return t, nil
}
