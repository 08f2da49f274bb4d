package usecases

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/output"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

type run struct {
	mu     sync.RWMutex
	info   RunInfo
	result *assignment.AssignmentResult
}

func (r *run) snapshot() RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := r.info
	info.TimePeriods = append([]TimePeriodStatus(nil), r.info.TimePeriods...)
	return info
}

func (r *run) getResult() (*assignment.AssignmentResult, RunStatus) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result, r.info.Status
}

// AssignmentService runs assignments on the loaded network in the background. Active runs are
// tracked until they end; ended runs live in a bounded lru cache.
type AssignmentService struct {
	log       *zap.Logger
	graph     *da.Graph
	defaults  assignment.Config
	newRunner RunnerFactory
	hub       *progressHub

	mu       sync.RWMutex
	active   map[string]*run
	finished *lru.Cache[string, *run]
	slots    chan struct{}
}

func NewAssignmentService(log *zap.Logger, graph *da.Graph, defaults assignment.Config, newRunner RunnerFactory,
	cacheSize, maxConcurrentRuns int) (*AssignmentService, error) {
	if newRunner == nil {
		newRunner = EquilibriumRunnerFactory(log)
	}
	finished, err := lru.NewWithEvict[string, *run](max(cacheSize, 1), func(runId string, _ *run) {
		log.Debug("assignment result evicted", zap.String("run_id", runId))
	})
	if err != nil {
		return nil, err
	}
	return &AssignmentService{
		log:       log,
		graph:     graph,
		defaults:  defaults,
		newRunner: newRunner,
		hub:       newProgressHub(),
		active:    make(map[string]*run),
		finished:  finished,
		slots:     make(chan struct{}, max(maxConcurrentRuns, 1)),
	}, nil
}

func EquilibriumRunnerFactory(log *zap.Logger) RunnerFactory {
	return func(graph *da.Graph, demands *demand.Demands, cfg assignment.Config) (AssignmentRunner, error) {
		ea, err := assignment.NewEquilibriumAssignment(graph, demands, cfg, log)
		if err != nil {
			return nil, err
		}
		return ea, nil
	}
}

func (s *AssignmentService) Network() output.NetworkSummary {
	return output.NewNetworkSummary(s.graph)
}

func (s *AssignmentService) buildDemands(req AssignmentRequest) (*demand.Demands, error) {
	g := s.graph
	ctx := da.NewIdContext()
	tps := demand.NewTimePeriods()
	for _, spec := range req.TimePeriods {
		if _, err := tps.Register(ctx, spec.ExternalId, spec.ExternalId, spec.StartSeconds,
			spec.DurationSeconds); err != nil {
			return nil, util.WrapErrorf(err, util.ErrBadParamInput, "time period %s", spec.ExternalId)
		}
	}

	d := demand.NewDemands(g.NumberOfZones(), tps)
	for i, cell := range req.Demands {
		tp, ok := tps.GetByExternalId(cell.TimePeriod)
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "demand %d: unknown time period %s", i, cell.TimePeriod)
		}
		mode, ok := g.GetModes().GetByExternalId(cell.Mode)
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "demand %d: unknown mode %s", i, cell.Mode)
		}
		origin, ok := g.GetZoneByExternalId(cell.Origin)
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "demand %d: unknown origin zone %s", i, cell.Origin)
		}
		destination, ok := g.GetZoneByExternalId(cell.Destination)
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "demand %d: unknown destination zone %s", i,
				cell.Destination)
		}
		if err := d.GetOrCreate(mode.GetID(), tp.GetID()).Add(origin.GetID(), destination.GetID(), cell.Demand); err != nil {
			return nil, util.WrapErrorf(err, util.ErrBadParamInput, "demand %d", i)
		}
	}
	return d, nil
}

func (s *AssignmentService) configFor(req AssignmentRequest) (assignment.Config, error) {
	cfg := s.defaults
	if req.MaxIterations > 0 {
		cfg.MaxIterations = req.MaxIterations
	}
	if req.GapEpsilon > 0 {
		cfg.GapEpsilon = req.GapEpsilon
	}
	if req.Smoothing != "" {
		cfg.Smoothing = req.Smoothing
	}
	if req.CostFunction != "" {
		cfg.CostFunction.Name = req.CostFunction
	}
	cfg.RecordSkims = true
	cfg.RecordPaths = cfg.RecordPaths || req.RecordPaths
	if err := cfg.Validate(); err != nil {
		return cfg, util.WrapErrorf(err, util.ErrBadParamInput, "assignment options")
	}
	return cfg, nil
}

// Submit validates the request, queues the run and returns its id.
func (s *AssignmentService) Submit(req AssignmentRequest) (string, error) {
	demands, err := s.buildDemands(req)
	if err != nil {
		return "", err
	}
	cfg, err := s.configFor(req)
	if err != nil {
		return "", err
	}
	runner, err := s.newRunner(s.graph, demands, cfg)
	if err != nil {
		return "", util.WrapErrorf(err, util.ErrBadParamInput, "prepare assignment")
	}

	runId := runner.GetRunId()
	r := &run{info: RunInfo{RunId: runId, Status: RUN_QUEUED, SubmittedAt: time.Now()}}
	runner.AddIterationListener(func(tp *demand.TimePeriod, it assignment.IterationResult) {
		ev := ProgressEvent{
			RunId:      runId,
			TimePeriod: tp.GetExternalId(),
			Iteration:  it.Iteration,
			Gap:        it.Gap,
			StepSize:   it.StepSize,
			Status:     RUN_RUNNING,
		}
		r.mu.Lock()
		r.info.LastEvent = &ev
		r.mu.Unlock()
		s.hub.Broadcast(ev)
	})

	s.mu.Lock()
	s.active[runId] = r
	s.mu.Unlock()

	go s.execute(r, runner)
	s.log.Info("assignment submitted", zap.String("run_id", runId),
		zap.Int("time_periods", len(req.TimePeriods)), zap.Int("od_cells", len(req.Demands)))
	return runId, nil
}

func (s *AssignmentService) execute(r *run, runner AssignmentRunner) {
	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	r.mu.Lock()
	r.info.Status = RUN_RUNNING
	r.mu.Unlock()

	res, err := runner.Run()

	r.mu.Lock()
	r.result = res
	r.info.FinishedAt = time.Now()
	r.info.Status = RUN_FINISHED
	if err != nil {
		r.info.Status = RUN_FAILED
		r.info.Error = err.Error()
		s.log.Error("assignment failed", zap.String("run_id", r.info.RunId), zap.Error(err))
	}
	if res != nil {
		for _, tp := range res.TimePeriods {
			r.info.TimePeriods = append(r.info.TimePeriods, TimePeriodStatus{
				TimePeriod:  tp.TimePeriod.GetExternalId(),
				Termination: tp.Termination.String(),
				Iterations:  tp.Iterations,
				Gap:         tp.Gap,
				Duration:    tp.Duration,
			})
		}
	}
	final := ProgressEvent{RunId: r.info.RunId, Status: r.info.Status, Done: true}
	if r.info.LastEvent != nil {
		final.Gap = r.info.LastEvent.Gap
	}
	r.mu.Unlock()

	s.mu.Lock()
	delete(s.active, r.info.RunId)
	s.finished.Add(r.info.RunId, r)
	s.mu.Unlock()

	s.hub.Close(final)
}

func (s *AssignmentService) getRun(runId string) (*run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.active[runId]; ok {
		return r, nil
	}
	if r, ok := s.finished.Get(runId); ok {
		return r, nil
	}
	return nil, util.WrapErrorf(nil, util.ErrNotFound, "assignment run %s not found", runId)
}

func (s *AssignmentService) Status(runId string) (RunInfo, error) {
	r, err := s.getRun(runId)
	if err != nil {
		return RunInfo{}, err
	}
	return r.snapshot(), nil
}

// Subscribe streams the progress of a run. The channel is closed when the run ends; for an
// ended run it only carries the final event. cancel must be called when the subscriber leaves.
func (s *AssignmentService) Subscribe(runId string) (<-chan ProgressEvent, func(), error) {
	r, err := s.getRun(runId)
	if err != nil {
		return nil, nil, err
	}

	// registering under the run lock orders the subscription before the hub closes the run
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.info.Status == RUN_FINISHED || r.info.Status == RUN_FAILED {
		done := make(chan ProgressEvent, 1)
		done <- ProgressEvent{RunId: runId, Status: r.info.Status, Done: true}
		close(done)
		return done, func() {}, nil
	}
	sub := s.hub.Register(runId)
	return sub.events, func() { s.hub.Remove(runId, sub) }, nil
}

func (s *AssignmentService) modeResult(runId, timePeriod, modeId string) (*assignment.ModeResult, error) {
	r, err := s.getRun(runId)
	if err != nil {
		return nil, err
	}
	res, status := r.getResult()
	if res == nil {
		return nil, util.WrapErrorf(nil, util.ErrNotReady, "assignment run %s is %s", runId, status)
	}
	for _, tp := range res.TimePeriods {
		if tp.TimePeriod.GetExternalId() != timePeriod {
			continue
		}
		mode, ok := s.graph.GetModes().GetByExternalId(modeId)
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrNotFound, "mode %s not found", modeId)
		}
		if m := tp.GetModeResult(mode.GetID()); m != nil {
			return m, nil
		}
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "mode %s has no demand in time period %s", modeId, timePeriod)
	}
	return nil, util.WrapErrorf(nil, util.ErrNotFound, "time period %s has no result in run %s", timePeriod, runId)
}

// LinkSegments returns the physical segments open to the mode whose flow is at least minFlow.
func (s *AssignmentService) LinkSegments(runId, timePeriod, mode string, minFlow float64) ([]LinkSegmentFlow, error) {
	m, err := s.modeResult(runId, timePeriod, mode)
	if err != nil {
		return nil, err
	}
	g := s.graph
	rows := make([]LinkSegmentFlow, 0, 64)
	for _, seg := range g.GetEdgeSegments() {
		id := seg.GetID()
		if seg.IsConnectoid() || !seg.IsModeAllowed(m.Mode.GetID()) || m.Flows[id] < minFlow {
			continue
		}
		row := LinkSegmentFlow{
			SegmentId:  uint32(id),
			Edge:       g.GetEdge(seg.GetEdgeId()).GetExternalId(),
			Upstream:   g.GetVertex(seg.GetUpstream()).GetExternalId(),
			Downstream: g.GetVertex(seg.GetDownstream()).GetExternalId(),
			LengthKm:   g.GetSegmentLength(id),
			Capacity:   seg.GetCapacity(),
			Flow:       m.Flows[id],
			Cost:       m.Costs[id],
		}
		if row.Capacity > 0 {
			row.VCRatio = row.Flow / row.Capacity
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *AssignmentService) Skims(runId, timePeriod, mode string) ([]SkimEntry, error) {
	m, err := s.modeResult(runId, timePeriod, mode)
	if err != nil {
		return nil, err
	}
	if m.Skims == nil {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "skims were not recorded for run %s", runId)
	}
	g := s.graph
	entries := make([]SkimEntry, 0, 16)
	m.Skims.ForEachCell(func(origin, destination da.Index, cost float64) {
		entries = append(entries, SkimEntry{
			Origin:      g.GetZone(origin).GetExternalId(),
			Destination: g.GetZone(destination).GetExternalId(),
			Cost:        cost,
		})
	})
	return entries, nil
}

func (s *AssignmentService) Path(runId, timePeriod, mode, origin, destination string) (ODPath, error) {
	m, err := s.modeResult(runId, timePeriod, mode)
	if err != nil {
		return ODPath{}, err
	}
	if m.Paths == nil {
		return ODPath{}, util.WrapErrorf(nil, util.ErrNotFound, "paths were not recorded for run %s", runId)
	}
	g := s.graph
	o, ok := g.GetZoneByExternalId(origin)
	if !ok {
		return ODPath{}, util.WrapErrorf(nil, util.ErrBadParamInput, "unknown origin zone %s", origin)
	}
	d, ok := g.GetZoneByExternalId(destination)
	if !ok {
		return ODPath{}, util.WrapErrorf(nil, util.ErrBadParamInput, "unknown destination zone %s", destination)
	}
	path, ok := m.Paths.Get(o.GetID(), d.GetID())
	if !ok {
		return ODPath{}, util.WrapErrorf(nil, util.ErrNotFound, "no path from %s to %s", origin, destination)
	}

	res := ODPath{
		Origin:      origin,
		Destination: destination,
		SegmentIds:  make([]uint32, len(path)),
		Polyline:    output.PathPolyline(g, path),
	}
	for i, segId := range path {
		res.SegmentIds[i] = uint32(segId)
		res.Cost += m.Costs[segId]
	}
	if math.IsInf(res.Cost, 1) {
		return ODPath{}, fmt.Errorf("path %s -> %s crosses a closed segment", origin, destination)
	}
	return res, nil
}
