// Package compose builds the outgoing planner cloud from a synchronized
// snapshot: foreground extraction, shape completion, and background merge,
// all expressed in the robot root frame.
package compose

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/robobench/graspd/internal/domain/frames"
	"github.com/robobench/graspd/internal/domain/snapshot"
	"github.com/robobench/graspd/internal/infrastructure/logging"
	"github.com/robobench/graspd/internal/shared/cloud"
	"github.com/robobench/graspd/internal/shared/geom"
)

// Completer is the external shape-completion service: a partial N x 3 point
// array in the camera frame in, a completed M x 3 array out. There is no
// point-to-point correspondence between input and output and no color
// channel.
type Completer interface {
	Complete(ctx context.Context, partial [][3]float64) ([][3]float64, error)
}

// Pipeline merges the observed foreground, its completion, and the optional
// background into one cloud in the root frame.
type Pipeline struct {
	completer Completer
	rootFrame string
	log       *logging.Logger
}

// New creates a composition pipeline.
func New(completer Completer, rootFrame string, log *logging.Logger) *Pipeline {
	return &Pipeline{completer: completer, rootFrame: rootFrame, log: log}
}

// Compose runs the full pipeline for one snapshot. The returned cloud holds
// the completed foreground points first, then the background points if a
// background was captured. Completion failures abort the cycle.
func (p *Pipeline) Compose(ctx context.Context, snap *snapshot.Snapshot, pair frames.Pair) (*cloud.Cloud, error) {
	fg := snap.Foreground
	if len(fg.Points) == 0 {
		return nil, fmt.Errorf("compose: foreground cloud has no finite points")
	}
	if !pair.CameraValid {
		p.log.Warn("composing with identity camera transform, output cloud is degraded",
			zap.String("camera_frame", fg.Frame))
	}

	// Completion runs in the camera frame, which is the frame the
	// foreground was captured in.
	completed, err := p.completer.Complete(ctx, fg.Positions())
	if err != nil {
		return nil, fmt.Errorf("compose: shape completion failed: %w", err)
	}
	if len(completed) == 0 {
		return nil, fmt.Errorf("compose: shape completion returned an empty cloud")
	}

	// The completion has no color channel; every completed point inherits
	// the first observed point's color. Deliberate approximation: the
	// completion offers no correspondence to map per-point colors through.
	tint := fg.Points[0].RGB
	pts := make([]cloud.Point, 0, len(completed))
	for _, row := range completed {
		pt := cloud.Point{X: row[0], Y: row[1], Z: row[2], RGB: tint}
		if !pt.Finite() {
			return nil, fmt.Errorf("compose: shape completion returned non-finite point (%v, %v, %v)", row[0], row[1], row[2])
		}
		pts = append(pts, pt)
	}
	camCloud := &cloud.Cloud{Frame: fg.Frame, Stamp: fg.Stamp, Points: pts}
	out := camCloud.Transformed(pair.CameraToRoot, p.rootFrame)

	if snap.Background != nil {
		bg := snap.Background.Transformed(pair.CameraToRoot, p.rootFrame)
		out = out.Append(bg)
	}
	return out, nil
}

// Viewpoint returns the camera viewpoint pose sent alongside the cloud, i.e.
// the camera frame expressed in the root frame.
func Viewpoint(pair frames.Pair) geom.Transform {
	return pair.CameraToRoot
}

// InCameraFrame maps a root-frame cloud back into the camera frame. Kept for
// planners that consume the partial cloud in sensor coordinates.
func InCameraFrame(c *cloud.Cloud, pair frames.Pair, cameraFrame string) *cloud.Cloud {
	return c.Transformed(geom.Invert(pair.CameraToRoot), cameraFrame)
}
