package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Planner.Timeout)
	assert.Equal(t, "panda_link0", cfg.Frames.RootFrame)
	assert.Equal(t, "aruco_board", cfg.Frames.FiducialFrame)
	assert.False(t, cfg.Frames.UseFiducial)
	assert.Equal(t, time.Second, cfg.Frames.FiducialWait)
	assert.Equal(t, 5*time.Second, cfg.Cycle.SnapshotWait)
	assert.Equal(t, 500*time.Millisecond, cfg.Cycle.SnapshotSlop)
	assert.Equal(t, 10, cfg.Cycle.MaxCandidates)
	assert.Equal(t, "/workspace/dump_", cfg.Dump.BasePath)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("PLANNER_ADDR", "http://planner:7000")
	t.Setenv("PLANNER_TIMEOUT", "90s")
	t.Setenv("USE_FIDUCIAL", "true")
	t.Setenv("MAX_CANDIDATES", "25")
	t.Setenv("SNAPSHOT_SLOP", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "http://planner:7000", cfg.Planner.Address)
	assert.Equal(t, 90*time.Second, cfg.Planner.Timeout)
	assert.True(t, cfg.Frames.UseFiducial)
	assert.Equal(t, 25, cfg.Cycle.MaxCandidates)
	assert.Equal(t, 250*time.Millisecond, cfg.Cycle.SnapshotSlop)
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	assert.Equal(t, "intrinsics", p.Streams.Intrinsics)
	assert.Equal(t, "foreground", p.Streams.Foreground)
	assert.Equal(t, "background", p.Streams.Background)
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	data := []byte(`streams:
  intrinsics: /camera/color/camera_info
  color: /camera/color/image_raw
  depth: /camera/aligned_depth_to_color/image_raw
  foreground: /camera/depth/points
  background: /camera/depth/points
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "/camera/color/camera_info", p.Streams.Intrinsics)
	// Identical source for both segments is a legal bare-camera profile.
	assert.Equal(t, p.Streams.Foreground, p.Streams.Background)
}

func TestLoadProfilePartialFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("streams:\n  color: /cam/rgb\n"), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "/cam/rgb", p.Streams.Color)
	assert.Equal(t, "depth", p.Streams.Depth)
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
