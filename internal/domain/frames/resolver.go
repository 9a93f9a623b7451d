// Package frames resolves the camera and fiducial transforms against the
// robot root frame.
//
// Resolution failures are never fatal: the mandatory camera frame falls back
// to identity with a warning, the optional fiducial frame disables candidate
// filtering for the cycle.
package frames

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/robobench/graspd/internal/infrastructure/logging"
	"github.com/robobench/graspd/internal/shared/geom"
)

// Provider looks up the current transform from target into root, waiting at
// most wait for the frame to become available. Implementations live in
// internal/clients.
type Provider interface {
	Lookup(ctx context.Context, target, root string, wait time.Duration) (geom.Transform, error)
}

// Pair holds the transforms resolved for one snapshot.
type Pair struct {
	// CameraToRoot maps camera-frame points into the root frame. Identity
	// when resolution failed (CameraValid false).
	CameraToRoot geom.Transform
	CameraValid  bool

	// BoardToRoot is the fiducial board pose in the root frame.
	// FilterEnabled is false when the board was not resolved, so the
	// planner must not filter candidates against it.
	BoardToRoot   geom.Transform
	FilterEnabled bool
}

// Config tunes the resolver.
type Config struct {
	RootFrame     string
	FiducialFrame string
	UseFiducial   bool
	// FiducialWait is the lookup budget for the optional board frame. The
	// camera frame is always looked up without waiting.
	FiducialWait time.Duration
}

// Resolver refreshes a Pair on every snapshot arrival and hands the latest
// one to the orchestrator.
type Resolver struct {
	provider Provider
	cfg      Config
	log      *logging.Logger

	mu     sync.Mutex
	latest Pair
}

// NewResolver creates a resolver. A zero FiducialWait defaults to one second.
func NewResolver(provider Provider, cfg Config, log *logging.Logger) *Resolver {
	if cfg.FiducialWait <= 0 {
		cfg.FiducialWait = time.Second
	}
	return &Resolver{
		provider: provider,
		cfg:      cfg,
		log:      log,
		latest:   Pair{CameraToRoot: geom.Identity(), BoardToRoot: geom.Identity()},
	}
}

// Refresh resolves both transforms for the given camera frame and caches the
// result. Each call is independent; nothing is reused across refreshes.
func (r *Resolver) Refresh(ctx context.Context, cameraFrame string) Pair {
	pair := Pair{CameraToRoot: geom.Identity(), BoardToRoot: geom.Identity()}

	cam, err := r.provider.Lookup(ctx, cameraFrame, r.cfg.RootFrame, 0)
	if err != nil {
		r.log.Warn("could not resolve camera pose, using identity; is the camera pose being published?",
			zap.String("camera_frame", cameraFrame),
			zap.String("root_frame", r.cfg.RootFrame),
			zap.Error(err),
		)
	} else {
		pair.CameraToRoot = cam
		pair.CameraValid = true
	}

	if r.cfg.UseFiducial {
		board, err := r.provider.Lookup(ctx, r.cfg.FiducialFrame, r.cfg.RootFrame, r.cfg.FiducialWait)
		if err != nil {
			r.log.Warn("could not resolve fiducial board pose, candidate filtering disabled",
				zap.String("fiducial_frame", r.cfg.FiducialFrame),
				zap.Error(err),
			)
		} else {
			pair.BoardToRoot = board
			pair.FilterEnabled = true
		}
	}

	r.mu.Lock()
	r.latest = pair
	r.mu.Unlock()
	return pair
}

// Latest returns the pair resolved for the most recent snapshot. Before the
// first refresh it is the identity pair with CameraValid false.
func (r *Resolver) Latest() Pair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}
