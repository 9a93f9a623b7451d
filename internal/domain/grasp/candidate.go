// Package grasp holds the candidate model, the dump artifact writer and the
// command orchestrator that drives one grasp-execution cycle at a time.
package grasp

import (
	"context"

	"github.com/robobench/graspd/internal/domain/snapshot"
	"github.com/robobench/graspd/internal/shared/cloud"
	"github.com/robobench/graspd/internal/shared/geom"
)

// Candidate is one proposed grasp, already expressed in the root frame.
// Immutable once received from the planner.
type Candidate struct {
	ID    string
	Pose  geom.Transform
	Width float64
	Score float64
}

// Best returns the highest-scoring candidate. Ties keep the first-seen
// candidate. ok is false for an empty slice.
func Best(cands []Candidate) (best Candidate, ok bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best = cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// PlanRequest carries everything the external planner needs for one cycle.
type PlanRequest struct {
	Intrinsics snapshot.Intrinsics
	Color      snapshot.Image
	Depth      snapshot.Image

	// Viewpoint is the camera pose in the root frame.
	Viewpoint geom.Transform

	// Cloud is the merged (completed + background) cloud in the root frame.
	Cloud *cloud.Cloud

	// Candidates is the maximum number of candidates requested.
	Candidates int

	// BoardPose is the fiducial board pose in the root frame; only
	// meaningful when FilterEnabled is true.
	BoardPose     geom.Transform
	FilterEnabled bool
}

// Planner is the external grasp-planning service.
type Planner interface {
	PlanGrasps(ctx context.Context, req *PlanRequest) ([]Candidate, error)
}

// Robot is the external feasibility/execution service. PlanGrasp asks
// whether a reachable collision-free trajectory to the candidate exists
// without moving; ExecuteGrasp performs the motion.
type Robot interface {
	PlanGrasp(ctx context.Context, c Candidate) (bool, error)
	ExecuteGrasp(ctx context.Context, c Candidate) error
}
