package frames

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robobench/graspd/internal/infrastructure/logging"
	"github.com/robobench/graspd/internal/shared/geom"
)

type stubProvider struct {
	transforms map[string]geom.Transform
	waits      map[string]time.Duration
}

func (p *stubProvider) Lookup(_ context.Context, target, root string, wait time.Duration) (geom.Transform, error) {
	if p.waits != nil {
		p.waits[target] = wait
	}
	tr, ok := p.transforms[target]
	if !ok {
		return geom.Transform{}, errors.New("frame not published: " + target)
	}
	return tr, nil
}

func mustTransform(t *testing.T, x, y, z float64) geom.Transform {
	t.Helper()
	tr, err := geom.New(quat.Number{Real: 1}, r3.Vec{X: x, Y: y, Z: z})
	require.NoError(t, err)
	return tr
}

func testConfig() Config {
	return Config{
		RootFrame:     "panda_link0",
		FiducialFrame: "aruco_board",
		UseFiducial:   true,
		FiducialWait:  time.Second,
	}
}

func TestRefreshResolvesBoth(t *testing.T) {
	cam := mustTransform(t, 1, 0, 0)
	board := mustTransform(t, 0, 2, 0)
	p := &stubProvider{
		transforms: map[string]geom.Transform{"camera_optical": cam, "aruco_board": board},
		waits:      map[string]time.Duration{},
	}
	r := NewResolver(p, testConfig(), logging.NewDevelopment())

	pair := r.Refresh(context.Background(), "camera_optical")
	assert.True(t, pair.CameraValid)
	assert.True(t, pair.FilterEnabled)
	assert.Equal(t, cam, pair.CameraToRoot)
	assert.Equal(t, board, pair.BoardToRoot)

	// The camera lookup never waits; the fiducial one uses its budget.
	assert.Equal(t, time.Duration(0), p.waits["camera_optical"])
	assert.Equal(t, time.Second, p.waits["aruco_board"])
}

func TestRefreshCameraFallsBackToIdentity(t *testing.T) {
	p := &stubProvider{transforms: map[string]geom.Transform{
		"aruco_board": mustTransform(t, 0, 2, 0),
	}}
	r := NewResolver(p, testConfig(), logging.NewDevelopment())

	pair := r.Refresh(context.Background(), "camera_optical")
	assert.False(t, pair.CameraValid)
	assert.Equal(t, geom.Identity(), pair.CameraToRoot)
	// The fiducial resolution is independent of the camera failure.
	assert.True(t, pair.FilterEnabled)
}

func TestRefreshMissingBoardDisablesFilter(t *testing.T) {
	p := &stubProvider{transforms: map[string]geom.Transform{
		"camera_optical": mustTransform(t, 1, 0, 0),
	}}
	r := NewResolver(p, testConfig(), logging.NewDevelopment())

	pair := r.Refresh(context.Background(), "camera_optical")
	assert.True(t, pair.CameraValid)
	assert.False(t, pair.FilterEnabled)
	assert.Equal(t, geom.Identity(), pair.BoardToRoot)
}

func TestFiducialDisabledSkipsLookup(t *testing.T) {
	p := &stubProvider{
		transforms: map[string]geom.Transform{"camera_optical": mustTransform(t, 1, 0, 0)},
		waits:      map[string]time.Duration{},
	}
	cfg := testConfig()
	cfg.UseFiducial = false
	r := NewResolver(p, cfg, logging.NewDevelopment())

	pair := r.Refresh(context.Background(), "camera_optical")
	assert.False(t, pair.FilterEnabled)
	_, looked := p.waits["aruco_board"]
	assert.False(t, looked)
}

func TestLatestReflectsLastRefresh(t *testing.T) {
	p := &stubProvider{transforms: map[string]geom.Transform{}}
	r := NewResolver(p, testConfig(), logging.NewDevelopment())

	before := r.Latest()
	assert.False(t, before.CameraValid)

	p.transforms["camera_optical"] = mustTransform(t, 1, 0, 0)
	r.Refresh(context.Background(), "camera_optical")
	assert.True(t, r.Latest().CameraValid)
}
