// Package server wires the service dependencies and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/robobench/graspd/internal/api/http"
	"github.com/robobench/graspd/internal/api/middleware"
	"github.com/robobench/graspd/internal/api/ws"
	"github.com/robobench/graspd/internal/clients/completion"
	"github.com/robobench/graspd/internal/clients/planner"
	"github.com/robobench/graspd/internal/clients/robot"
	"github.com/robobench/graspd/internal/clients/tf"
	"github.com/robobench/graspd/internal/domain/compose"
	"github.com/robobench/graspd/internal/domain/frames"
	"github.com/robobench/graspd/internal/domain/grasp"
	"github.com/robobench/graspd/internal/domain/snapshot"
	"github.com/robobench/graspd/internal/infrastructure/config"
	"github.com/robobench/graspd/internal/infrastructure/logging"
	"github.com/robobench/graspd/internal/infrastructure/monitoring"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	orch    *grasp.Orchestrator
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, profile *config.Profile) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("initializing graspd",
		zap.String("port", cfg.Server.Port),
		zap.String("planner_addr", cfg.Planner.Address),
		zap.String("completion_addr", cfg.Completion.Address),
		zap.String("robot_addr", cfg.Robot.Address),
		zap.String("frames_addr", cfg.Frames.ProviderAddress),
		zap.Bool("use_fiducial", cfg.Frames.UseFiducial),
	)

	metrics := monitoring.NewMetrics()

	plannerClient := planner.New(cfg.Planner.Address, cfg.Planner.Timeout, metrics)
	completionClient := completion.New(cfg.Completion.Address, cfg.Completion.Timeout, metrics)
	robotClient := robot.New(cfg.Robot.Address, cfg.Robot.Timeout, metrics)
	frameProvider := tf.New(cfg.Frames.ProviderAddress)

	snaps := snapshot.New(cfg.Cycle.SnapshotSlop)
	resolver := frames.NewResolver(frameProvider, frames.Config{
		RootFrame:     cfg.Frames.RootFrame,
		FiducialFrame: cfg.Frames.FiducialFrame,
		UseFiducial:   cfg.Frames.UseFiducial,
		FiducialWait:  cfg.Frames.FiducialWait,
	}, logger)
	pipeline := compose.New(completionClient, cfg.Frames.RootFrame, logger)
	dumper := grasp.NewDumper(cfg.Dump.BasePath)

	orch := grasp.NewOrchestrator(snaps, resolver, pipeline, plannerClient, robotClient, dumper, grasp.Config{
		SnapshotWait:  cfg.Cycle.SnapshotWait,
		MaxCandidates: cfg.Cycle.MaxCandidates,
	}, logger, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(metrics.Middleware())
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	api := apihttp.NewHandler(orch, snaps, logger)
	ingest := ws.NewHandler(snaps, resolver, profile, metrics, logger)

	router.POST("/api/command", api.Command)
	router.GET("/health", api.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/sensors", ingest.HandleConnection)

	return &Server{
		router:  router,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		orch:    orch,
	}, nil
}

// Run starts serving and blocks until the server stops.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("graspd listening", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the server down gracefully.
func (s *Server) Close() error {
	s.logger.Info("shutting down graspd")
	defer s.logger.Sync() //nolint:errcheck

	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}
