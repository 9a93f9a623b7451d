// Package config loads service configuration from environment variables and
// an optional YAML stream profile.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Planner    ServiceConfig `envconfig:"PLANNER"`
	Completion ServiceConfig `envconfig:"COMPLETION"`
	Robot      ServiceConfig `envconfig:"ROBOT"`
	Frames     FramesConfig
	Cycle      CycleConfig
	Dump       DumpConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ServiceConfig holds the address and timeout of one external service.
type ServiceConfig struct {
	Address string        `envconfig:"ADDR"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

// FramesConfig holds coordinate frame resolution configuration.
type FramesConfig struct {
	ProviderAddress string        `envconfig:"FRAMES_ADDR" default:"http://localhost:8091"`
	RootFrame       string        `envconfig:"ROOT_FRAME" default:"panda_link0"`
	FiducialFrame   string        `envconfig:"FIDUCIAL_FRAME" default:"aruco_board"`
	UseFiducial     bool          `envconfig:"USE_FIDUCIAL" default:"false"`
	FiducialWait    time.Duration `envconfig:"FIDUCIAL_WAIT" default:"1s"`
}

// CycleConfig holds grasp cycle tuning.
type CycleConfig struct {
	SnapshotWait  time.Duration `envconfig:"SNAPSHOT_WAIT" default:"5s"`
	SnapshotSlop  time.Duration `envconfig:"SNAPSHOT_SLOP" default:"500ms"`
	MaxCandidates int           `envconfig:"MAX_CANDIDATES" default:"10"`
}

// DumpConfig holds candidate dump configuration.
type DumpConfig struct {
	BasePath string `envconfig:"DUMP_BASE" default:"/workspace/dump_"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Profile maps incoming sensor stream names onto the logical streams the
// synchronizer consumes. Deployments with a segmentation node publish
// distinct foreground and background clouds; bare camera deployments point
// both at the same topic.
type Profile struct {
	Streams struct {
		Intrinsics string `yaml:"intrinsics"`
		Color      string `yaml:"color"`
		Depth      string `yaml:"depth"`
		Foreground string `yaml:"foreground"`
		Background string `yaml:"background"`
	} `yaml:"streams"`
}

// DefaultProfile returns the profile used when no file is supplied: logical
// stream names map onto themselves.
func DefaultProfile() *Profile {
	var p Profile
	p.Streams.Intrinsics = "intrinsics"
	p.Streams.Color = "color"
	p.Streams.Depth = "depth"
	p.Streams.Foreground = "foreground"
	p.Streams.Background = "background"
	return &p
}

// LoadProfile parses a YAML stream profile. Unset stream names fall back to
// the defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return p, nil
}
