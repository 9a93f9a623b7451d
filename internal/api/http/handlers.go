// Package http exposes the command surface and health/metrics endpoints.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/robobench/graspd/internal/domain/grasp"
	"github.com/robobench/graspd/internal/domain/snapshot"
	"github.com/robobench/graspd/internal/infrastructure/logging"
)

// CommandRunner is the orchestrator surface the API depends on.
type CommandRunner interface {
	Handle(ctx context.Context, raw string) grasp.Result
	State() grasp.State
}

// Handler serves the REST endpoints.
type Handler struct {
	orch  CommandRunner
	snaps *snapshot.Synchronizer
	log   *logging.Logger
}

// NewHandler creates the API handler.
func NewHandler(orch CommandRunner, snaps *snapshot.Synchronizer, log *logging.Logger) *Handler {
	return &Handler{orch: orch, snaps: snaps, log: log}
}

type commandRequest struct {
	Cmd string `json:"cmd" binding:"required"`
}

// Command handles POST /api/command. The command result, success or
// failure, is always a 200; only malformed requests are 4xx.
func (h *Handler) Command(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cmd field is required"})
		return
	}

	result := h.orch.Handle(c.Request.Context(), req.Cmd)
	c.JSON(http.StatusOK, result)
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"state":  h.orch.State().String(),
	}
	if snap := h.snaps.Latest(); snap != nil {
		resp["snapshot_age_seconds"] = time.Since(snap.Stamp).Seconds()
	}
	c.JSON(http.StatusOK, resp)
}
