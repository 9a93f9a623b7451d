package grasp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/robobench/graspd/internal/domain/compose"
	"github.com/robobench/graspd/internal/domain/frames"
	"github.com/robobench/graspd/internal/domain/snapshot"
	"github.com/robobench/graspd/internal/infrastructure/logging"
	"github.com/robobench/graspd/internal/infrastructure/monitoring"
)

// State is the orchestrator's position in the grasp cycle, exposed for
// health reporting. Abort is a flag, not a state.
type State int32

const (
	StateIdle State = iota
	StateAwaitingSnapshot
	StateComposing
	StateRequestingCandidates
	StateFiltering
	StateSelecting
	StateExecuting
	StateDumping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSnapshot:
		return "awaiting_snapshot"
	case StateComposing:
		return "composing"
	case StateRequestingCandidates:
		return "requesting_candidates"
	case StateFiltering:
		return "filtering"
	case StateSelecting:
		return "selecting"
	case StateExecuting:
		return "executing"
	case StateDumping:
		return "dumping"
	default:
		return "unknown"
	}
}

// Result is the outcome of one command.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Artifact string `json:"artifact,omitempty"`
}

// Config tunes the orchestrator.
type Config struct {
	// SnapshotWait bounds the wait for synchronized camera data.
	SnapshotWait time.Duration
	// MaxCandidates is the candidate count requested by the grasp command.
	MaxCandidates int
}

// Orchestrator serializes grasp cycles and drives the snapshot, frame,
// composition and service collaborators through the command state machine.
type Orchestrator struct {
	snaps    *snapshot.Synchronizer
	resolver *frames.Resolver
	pipeline *compose.Pipeline
	planner  Planner
	robot    Robot
	dumper   *Dumper
	cfg      Config
	log      *logging.Logger
	metrics  *monitoring.Metrics

	// busy serializes cycles: a second grasp/get_candidates while one is in
	// flight is rejected, not queued.
	busy  sync.Mutex
	abort atomic.Bool
	state atomic.Int32
}

// NewOrchestrator wires the orchestrator. metrics may be nil in tests.
func NewOrchestrator(
	snaps *snapshot.Synchronizer,
	resolver *frames.Resolver,
	pipeline *compose.Pipeline,
	planner Planner,
	robot Robot,
	dumper *Dumper,
	cfg Config,
	log *logging.Logger,
	metrics *monitoring.Metrics,
) *Orchestrator {
	if cfg.SnapshotWait <= 0 {
		cfg.SnapshotWait = 5 * time.Second
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	return &Orchestrator{
		snaps:    snaps,
		resolver: resolver,
		pipeline: pipeline,
		planner:  planner,
		robot:    robot,
		dumper:   dumper,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
	}
}

// State returns the current cycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Handle parses and executes one command. It never panics outward; every
// external failure becomes a failed Result so the service stays available.
func (o *Orchestrator) Handle(ctx context.Context, raw string) Result {
	cmd, err := Parse(raw)
	if err != nil {
		o.log.Error("invalid command", zap.String("cmd", raw), zap.Error(err))
		o.count("invalid", "rejected")
		return Result{Success: false, Message: fmt.Sprintf("%v\navailable commands are:\n%s", err, HelpText)}
	}

	switch cmd.Kind {
	case CmdHelp:
		o.count("help", "ok")
		return Result{Success: true, Message: "available commands are:\n" + HelpText}
	case CmdAbort:
		// Takes effect at the next state boundary of the in-flight cycle,
		// if any; otherwise the next cycle resets it.
		o.abort.Store(true)
		o.log.Info("abort requested")
		o.count("abort", "ok")
		return Result{Success: true, Message: "abort requested"}
	case CmdGrasp:
		return o.runCycle(ctx, "grasp", o.cfg.MaxCandidates, true)
	case CmdGetCandidates:
		return o.runCycle(ctx, "get_candidates", cmd.Count, false)
	default:
		return Result{Success: false, Message: "unknown command"}
	}
}

// runCycle drives one pass through the state machine. execute selects
// between robot execution (grasp) and candidate dumping (get_candidates).
func (o *Orchestrator) runCycle(ctx context.Context, command string, candidates int, execute bool) (res Result) {
	if !o.busy.TryLock() {
		o.count(command, "busy")
		return Result{Success: false, Message: "a grasp cycle is already in flight"}
	}
	defer o.busy.Unlock()

	start := time.Now()
	if o.metrics != nil {
		o.metrics.CyclesInFlight.Inc()
		defer func() {
			o.metrics.CyclesInFlight.Dec()
			o.metrics.CycleDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
			outcome := "failure"
			if res.Success {
				outcome = "success"
			}
			o.metrics.CommandsTotal.WithLabelValues(command, outcome).Inc()
		}()
	}
	defer o.state.Store(int32(StateIdle))

	// A fresh cycle clears any stale abort from before it started.
	o.abort.Store(false)

	o.state.Store(int32(StateAwaitingSnapshot))
	snap, err := o.snaps.Await(ctx, o.cfg.SnapshotWait)
	if err != nil {
		o.log.Error("no synchronized camera data", zap.Error(err))
		return Result{Success: false, Message: "no images received"}
	}
	pair := o.resolver.Latest()

	o.state.Store(int32(StateComposing))
	merged, err := o.pipeline.Compose(ctx, snap, pair)
	if err != nil {
		o.log.Error("cloud composition failed", zap.Error(err))
		return Result{Success: false, Message: err.Error()}
	}

	if o.aborted() {
		return o.abortedResult(command)
	}

	o.state.Store(int32(StateRequestingCandidates))
	req := &PlanRequest{
		Intrinsics:    snap.Intrinsics,
		Color:         snap.Color,
		Depth:         snap.Depth,
		Viewpoint:     pair.CameraToRoot,
		Cloud:         merged,
		Candidates:    candidates,
		BoardPose:     pair.BoardToRoot,
		FilterEnabled: pair.FilterEnabled,
	}
	cands, err := o.planner.PlanGrasps(ctx, req)
	if err != nil {
		o.log.Error("grasp planning failed", zap.Error(err))
		return Result{Success: false, Message: fmt.Sprintf("grasp planning failed: %v", err)}
	}
	o.log.Info("received grasp candidates", zap.Int("count", len(cands)))
	if o.metrics != nil {
		o.metrics.CandidatesReturned.Observe(float64(len(cands)))
	}

	// Abort observed here discards the candidates without dumping them.
	if o.aborted() {
		return o.abortedResult(command)
	}

	if !execute {
		o.state.Store(int32(StateDumping))
		dir, err := o.dumper.Dump(cands)
		if err != nil {
			o.log.Error("candidate dump failed", zap.Error(err))
			return Result{Success: false, Message: err.Error()}
		}
		o.log.Info("dumped candidates", zap.Int("count", len(cands)), zap.String("dir", dir))
		return Result{Success: true, Message: fmt.Sprintf("dumped %d candidates", len(cands)), Artifact: dir}
	}

	o.state.Store(int32(StateFiltering))
	feasible := o.filterFeasible(ctx, cands)
	o.log.Info("feasibility filtering done",
		zap.Int("feasible", len(feasible)),
		zap.Int("total", len(cands)),
	)
	if o.metrics != nil {
		o.metrics.CandidatesFeasible.Observe(float64(len(feasible)))
	}
	if len(feasible) == 0 {
		o.log.Warn("no feasible candidates")
		return Result{Success: false, Message: "no feasible candidates"}
	}

	o.state.Store(int32(StateSelecting))
	best, _ := Best(feasible)

	if o.aborted() {
		return o.abortedResult(command)
	}

	o.state.Store(int32(StateExecuting))
	o.log.Info("executing grasp",
		zap.String("candidate", best.ID),
		zap.Float64("score", best.Score),
		zap.Float64("width", best.Width),
	)
	if err := o.robot.ExecuteGrasp(ctx, best); err != nil {
		o.log.Error("grasp execution failed", zap.Error(err))
		return Result{Success: false, Message: fmt.Sprintf("grasp execution failed: %v", err)}
	}
	return Result{Success: true, Message: fmt.Sprintf("executed grasp %s (score %v)", best.ID, best.Score)}
}

// filterFeasible runs the plan-only query for every candidate. The contract
// requires the globally best feasible candidate, so there is no early exit.
// A failing feasibility lookup counts as infeasible, not as a cycle error.
func (o *Orchestrator) filterFeasible(ctx context.Context, cands []Candidate) []Candidate {
	feasible := make([]Candidate, 0, len(cands))
	for i, c := range cands {
		ok, err := o.robot.PlanGrasp(ctx, c)
		if err != nil {
			o.log.Warn("feasibility test failed, treating candidate as infeasible",
				zap.Int("index", i),
				zap.String("candidate", c.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			feasible = append(feasible, c)
		}
	}
	return feasible
}

func (o *Orchestrator) aborted() bool {
	return o.abort.Load()
}

func (o *Orchestrator) abortedResult(command string) Result {
	o.log.Info("grasp cycle aborted by user", zap.String("command", command))
	return Result{Success: false, Message: "grasp cycle aborted by user"}
}

func (o *Orchestrator) count(command, outcome string) {
	if o.metrics != nil {
		o.metrics.CommandsTotal.WithLabelValues(command, outcome).Inc()
	}
}
