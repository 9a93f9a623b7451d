package grasp

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robobench/graspd/internal/domain/compose"
	"github.com/robobench/graspd/internal/domain/frames"
	"github.com/robobench/graspd/internal/domain/snapshot"
	"github.com/robobench/graspd/internal/infrastructure/logging"
	"github.com/robobench/graspd/internal/shared/cloud"
	"github.com/robobench/graspd/internal/shared/geom"
)

type fakePlanner struct {
	cands   []Candidate
	err     error
	gate    chan struct{} // when set, PlanGrasps blocks until closed
	onPlan  func(req *PlanRequest)
	lastReq *PlanRequest
}

func (p *fakePlanner) PlanGrasps(_ context.Context, req *PlanRequest) ([]Candidate, error) {
	p.lastReq = req
	if p.onPlan != nil {
		p.onPlan(req)
	}
	if p.gate != nil {
		<-p.gate
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.cands, nil
}

type fakeRobot struct {
	feasible map[string]bool
	planErr  map[string]error
	execErr  error
	executed []string
	plans    atomic.Int32
}

func (r *fakeRobot) PlanGrasp(_ context.Context, c Candidate) (bool, error) {
	r.plans.Add(1)
	if err := r.planErr[c.ID]; err != nil {
		return false, err
	}
	return r.feasible[c.ID], nil
}

func (r *fakeRobot) ExecuteGrasp(_ context.Context, c Candidate) error {
	r.executed = append(r.executed, c.ID)
	return r.execErr
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, partial [][3]float64) ([][3]float64, error) {
	return partial, nil
}

type identityProvider struct{}

func (identityProvider) Lookup(context.Context, string, string, time.Duration) (geom.Transform, error) {
	return geom.Identity(), nil
}

type fixture struct {
	orch    *Orchestrator
	snaps   *snapshot.Synchronizer
	planner *fakePlanner
	robot   *fakeRobot
}

func newFixture(t *testing.T, planner *fakePlanner, robot *fakeRobot) *fixture {
	t.Helper()
	log := logging.NewDevelopment()
	snaps := snapshot.New(500 * time.Millisecond)
	resolver := frames.NewResolver(identityProvider{}, frames.Config{
		RootFrame: "panda_link0",
	}, log)
	resolver.Refresh(context.Background(), "camera_optical")
	pipeline := compose.New(echoCompleter{}, "panda_link0", log)
	dumper := NewDumper(filepath.Join(t.TempDir(), "dump_"))

	orch := NewOrchestrator(snaps, resolver, pipeline, planner, robot, dumper, Config{
		SnapshotWait:  200 * time.Millisecond,
		MaxCandidates: 10,
	}, log, nil)
	return &fixture{orch: orch, snaps: snaps, planner: planner, robot: robot}
}

func (f *fixture) feedSnapshot() {
	base := time.Unix(100, 0)
	f.snaps.OfferIntrinsics(snapshot.Intrinsics{Frame: "camera_optical", Stamp: base})
	f.snaps.OfferColor(snapshot.Image{Stamp: base})
	f.snaps.OfferDepth(snapshot.Image{Stamp: base})
	f.snaps.OfferForeground(&cloud.Cloud{
		Frame:  "camera_optical",
		Stamp:  base,
		Points: []cloud.Point{{X: 0.1, Y: 0.2, Z: 0.3, RGB: 1}},
	}, "fg")
	f.snaps.OfferBackground(&cloud.Cloud{
		Frame:  "camera_optical",
		Stamp:  base,
		Points: []cloud.Point{{X: 1, Y: 1, Z: 1, RGB: 0.5}},
	}, "bg")
}

func TestGraspExecutesBestFeasible(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{
		{ID: "low", Pose: geom.Identity(), Score: 0.2},
		{ID: "high", Pose: geom.Identity(), Score: 0.9},
		{ID: "mid", Pose: geom.Identity(), Score: 0.5},
	}}
	robot := &fakeRobot{feasible: map[string]bool{"low": true, "high": true}}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"high"}, robot.executed)
	// Every candidate was feasibility-tested, no early exit.
	assert.Equal(t, int32(3), robot.plans.Load())
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestGraspSkipsInfeasibleBest(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{
		{ID: "best-but-blocked", Pose: geom.Identity(), Score: 0.9},
		{ID: "reachable", Pose: geom.Identity(), Score: 0.4},
	}}
	robot := &fakeRobot{feasible: map[string]bool{"reachable": true}}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	assert.True(t, res.Success)
	assert.Equal(t, []string{"reachable"}, robot.executed)
}

func TestGraspFeasibilityErrorTreatedAsInfeasible(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{
		{ID: "errored", Pose: geom.Identity(), Score: 0.9},
		{ID: "ok", Pose: geom.Identity(), Score: 0.3},
	}}
	robot := &fakeRobot{
		feasible: map[string]bool{"ok": true},
		planErr:  map[string]error{"errored": errors.New("ik timeout")},
	}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	assert.True(t, res.Success)
	assert.Equal(t, []string{"ok"}, robot.executed)
}

func TestGraspNoFeasibleCandidates(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{{ID: "a", Pose: geom.Identity(), Score: 0.5}}}
	robot := &fakeRobot{feasible: map[string]bool{}}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	assert.False(t, res.Success)
	assert.Equal(t, "no feasible candidates", res.Message)
	assert.Empty(t, robot.executed)
}

func TestGraspWithoutSnapshotFails(t *testing.T) {
	f := newFixture(t, &fakePlanner{}, &fakeRobot{})

	res := f.orch.Handle(context.Background(), "grasp")
	assert.False(t, res.Success)
	assert.Equal(t, "no images received", res.Message)
}

func TestGraspPlannerErrorFailsCycle(t *testing.T) {
	planner := &fakePlanner{err: errors.New("planner offline")}
	robot := &fakeRobot{}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "grasp planning failed")
	assert.Empty(t, robot.executed)
}

func TestGraspPlanRequestCarriesMergedCloud(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{{ID: "a", Pose: geom.Identity(), Score: 0.5}}}
	robot := &fakeRobot{feasible: map[string]bool{"a": true}}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	require.True(t, res.Success)

	req := planner.lastReq
	require.NotNil(t, req)
	assert.Equal(t, 10, req.Candidates)
	assert.Equal(t, "panda_link0", req.Cloud.Frame)
	// Completed foreground plus the one background point.
	assert.Len(t, req.Cloud.Points, 2)
	assert.False(t, req.FilterEnabled)
}

func TestGetCandidatesDumpsWithoutExecuting(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{
		{ID: "a", Pose: geom.Identity(), Score: 0.9},
		{ID: "b", Pose: geom.Identity(), Score: 0.1},
	}}
	robot := &fakeRobot{}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "get_candidates 2")
	assert.True(t, res.Success, res.Message)
	assert.NotEmpty(t, res.Artifact)
	assert.Equal(t, 2, planner.lastReq.Candidates)
	// get_candidates never touches the robot.
	assert.Empty(t, robot.executed)
	assert.Equal(t, int32(0), robot.plans.Load())
}

func TestAbortAfterPlanningDiscardsCandidates(t *testing.T) {
	robot := &fakeRobot{feasible: map[string]bool{"a": true}}
	planner := &fakePlanner{cands: []Candidate{{ID: "a", Pose: geom.Identity(), Score: 0.9}}}
	f := newFixture(t, planner, robot)
	// The abort lands while planning is in flight and is observed at the
	// next state boundary.
	planner.onPlan = func(*PlanRequest) {
		f.orch.Handle(context.Background(), "abort")
	}
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	assert.False(t, res.Success)
	assert.Equal(t, "grasp cycle aborted by user", res.Message)
	assert.Empty(t, robot.executed)
	assert.Equal(t, int32(0), robot.plans.Load())
}

func TestAbortFlagClearedByNextCycle(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{{ID: "a", Pose: geom.Identity(), Score: 0.9}}}
	robot := &fakeRobot{feasible: map[string]bool{"a": true}}
	f := newFixture(t, planner, robot)

	// Abort with nothing in flight, then run a full cycle: the stale flag
	// must not kill it.
	res := f.orch.Handle(context.Background(), "abort")
	assert.True(t, res.Success)

	f.feedSnapshot()
	res = f.orch.Handle(context.Background(), "grasp")
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"a"}, robot.executed)
}

func TestConcurrentCycleRejected(t *testing.T) {
	gate := make(chan struct{})
	planner := &fakePlanner{
		cands: []Candidate{{ID: "a", Pose: geom.Identity(), Score: 0.9}},
		gate:  gate,
	}
	robot := &fakeRobot{feasible: map[string]bool{"a": true}}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	entered := make(chan struct{})
	planner.onPlan = func(*PlanRequest) { close(entered) }

	done := make(chan Result, 1)
	go func() {
		done <- f.orch.Handle(context.Background(), "grasp")
	}()

	<-entered
	res := f.orch.Handle(context.Background(), "grasp")
	assert.False(t, res.Success)
	assert.Equal(t, "a grasp cycle is already in flight", res.Message)

	close(gate)
	first := <-done
	assert.True(t, first.Success, first.Message)
}

func TestExecutionErrorReported(t *testing.T) {
	planner := &fakePlanner{cands: []Candidate{{ID: "a", Pose: geom.Identity(), Score: 0.9}}}
	robot := &fakeRobot{
		feasible: map[string]bool{"a": true},
		execErr:  errors.New("gripper fault"),
	}
	f := newFixture(t, planner, robot)
	f.feedSnapshot()

	res := f.orch.Handle(context.Background(), "grasp")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "grasp execution failed")
}

func TestHelpAndInvalidCommands(t *testing.T) {
	f := newFixture(t, &fakePlanner{}, &fakeRobot{})

	res := f.orch.Handle(context.Background(), "help")
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "get_candidates <n>")

	res = f.orch.Handle(context.Background(), "launch_missiles")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "available commands are")
}
