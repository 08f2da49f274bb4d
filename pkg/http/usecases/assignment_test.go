package usecases

import (
	"errors"
	"testing"
	"time"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newCorridor builds zones O and D joined by a single 60 km link (1 h for a car).
func newCorridor(t *testing.T) *da.Graph {
	t.Helper()
	ctx := da.NewIdContext()
	modes := da.NewModes()
	car, err := modes.RegisterPredefined(ctx, da.CAR)
	require.NoError(t, err)
	b := da.NewGraphBuilder(ctx, modes)
	road, err := b.AddSegmentType("road", 1000, 150, map[da.Index]da.ModeProperties{car.GetID(): {MaxSpeed: 60}})
	require.NoError(t, err)
	o, err := b.AddVertex("o", -7.76, 110.37, true)
	require.NoError(t, err)
	d, err := b.AddVertex("d", -7.76, 110.38, true)
	require.NoError(t, err)
	allowed := da.NewModeSet(car.GetID())
	_, err = b.AddLink("od", o, d, 60, road, 1, 0, allowed, false)
	require.NoError(t, err)
	zoneO, _, err := b.AddZoneWithCentroid("O", -7.76, 110.37, true)
	require.NoError(t, err)
	zoneD, _, err := b.AddZoneWithCentroid("D", -7.76, 110.38, true)
	require.NoError(t, err)
	_, err = b.AddConnectoid(zoneO, o, 0, allowed)
	require.NoError(t, err)
	_, err = b.AddConnectoid(zoneD, d, 0, allowed)
	require.NoError(t, err)
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func corridorRequest(odDemand float64) AssignmentRequest {
	return AssignmentRequest{
		TimePeriods: []TimePeriodSpec{{ExternalId: "am", StartSeconds: 7 * 3600, DurationSeconds: 3600}},
		Demands: []ODDemand{
			{TimePeriod: "am", Mode: "car", Origin: "O", Destination: "D", Demand: odDemand},
		},
		MaxIterations: 5,
		RecordPaths:   true,
	}
}

// gatedRunner reports one iteration and then blocks until release is closed.
type gatedRunner struct {
	listeners []assignment.IterationListener
	release   chan struct{}
	err       error
}

func (r *gatedRunner) GetRunId() string {
	return "gated-run"
}

func (r *gatedRunner) AddIterationListener(l assignment.IterationListener) {
	r.listeners = append(r.listeners, l)
}

func (r *gatedRunner) Run() (*assignment.AssignmentResult, error) {
	tp := demand.NewTimePeriods()
	period, err := tp.Register(da.NewIdContext(), "am", "am", 0, 3600)
	if err != nil {
		return nil, err
	}
	for _, l := range r.listeners {
		l(period, assignment.IterationResult{Iteration: 1, Gap: 0.5, StepSize: 1})
	}
	<-r.release
	return &assignment.AssignmentResult{}, r.err
}

func newService(t *testing.T, factory RunnerFactory) *AssignmentService {
	t.Helper()
	svc, err := NewAssignmentService(zap.NewNop(), newCorridor(t), assignment.DefaultConfig(), factory, 4, 2)
	require.NoError(t, err)
	return svc
}

func waitForStatus(t *testing.T, svc *AssignmentService, runId string, status RunStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		info, err := svc.Status(runId)
		return err == nil && info.Status == status
	}, 5*time.Second, 5*time.Millisecond)
}

func errorCode(err error) error {
	var ierr *util.Error
	if errors.As(err, &ierr) {
		return ierr.Code()
	}
	return nil
}

func TestAssignmentServiceRun(t *testing.T) {
	svc := newService(t, nil)

	runId, err := svc.Submit(corridorRequest(500))
	require.NoError(t, err)
	assert.NotEmpty(t, runId)
	waitForStatus(t, svc, runId, RUN_FINISHED)

	info, err := svc.Status(runId)
	require.NoError(t, err)
	require.Len(t, info.TimePeriods, 1)
	assert.Equal(t, "am", info.TimePeriods[0].TimePeriod)
	assert.False(t, info.FinishedAt.IsZero())

	rows, err := svc.LinkSegments(runId, "am", "car", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "od", rows[0].Edge)
	assert.InDelta(t, 500, rows[0].Flow, 1e-9)
	assert.InDelta(t, 0.5, rows[0].VCRatio, 1e-9)

	rows, err = svc.LinkSegments(runId, "am", "car", 600)
	require.NoError(t, err)
	assert.Empty(t, rows)

	skims, err := svc.Skims(runId, "am", "car")
	require.NoError(t, err)
	require.Len(t, skims, 1)
	assert.Equal(t, "O", skims[0].Origin)
	assert.Equal(t, "D", skims[0].Destination)
	assert.Greater(t, skims[0].Cost, 1.0)

	path, err := svc.Path(runId, "am", "car", "O", "D")
	require.NoError(t, err)
	assert.Len(t, path.SegmentIds, 3)
	assert.NotEmpty(t, path.Polyline)
	assert.InDelta(t, skims[0].Cost, path.Cost, 1e-9)

	_, err = svc.Path(runId, "am", "car", "D", "O")
	assert.Equal(t, util.ErrNotFound, errorCode(err))
}

func TestAssignmentServiceSubmitErrors(t *testing.T) {
	svc := newService(t, nil)

	tests := []struct {
		name   string
		modify func(req *AssignmentRequest)
	}{
		{name: "unknown time period", modify: func(req *AssignmentRequest) { req.Demands[0].TimePeriod = "pm" }},
		{name: "unknown mode", modify: func(req *AssignmentRequest) { req.Demands[0].Mode = "tram" }},
		{name: "unknown origin", modify: func(req *AssignmentRequest) { req.Demands[0].Origin = "X" }},
		{name: "unknown destination", modify: func(req *AssignmentRequest) { req.Demands[0].Destination = "X" }},
		{name: "negative demand", modify: func(req *AssignmentRequest) { req.Demands[0].Demand = -1 }},
		{name: "unknown smoothing", modify: func(req *AssignmentRequest) { req.Smoothing = "newton" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := corridorRequest(100)
			tt.modify(&req)
			_, err := svc.Submit(req)
			require.Error(t, err)
			assert.Equal(t, util.ErrBadParamInput, errorCode(err))
		})
	}
}

func TestAssignmentServiceUnknownRun(t *testing.T) {
	svc := newService(t, nil)

	_, err := svc.Status("nope")
	assert.Equal(t, util.ErrNotFound, errorCode(err))
	_, _, err = svc.Subscribe("nope")
	assert.Equal(t, util.ErrNotFound, errorCode(err))
	_, err = svc.LinkSegments("nope", "am", "car", 0)
	assert.Equal(t, util.ErrNotFound, errorCode(err))
}

func TestAssignmentServiceProgress(t *testing.T) {
	runner := &gatedRunner{release: make(chan struct{})}
	svc := newService(t, func(*da.Graph, *demand.Demands, assignment.Config) (AssignmentRunner, error) {
		return runner, nil
	})

	runId, err := svc.Submit(corridorRequest(100))
	require.NoError(t, err)
	assert.Equal(t, "gated-run", runId)
	waitForStatus(t, svc, runId, RUN_RUNNING)

	events, cancel, err := svc.Subscribe(runId)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Skims(runId, "am", "car")
	assert.Equal(t, util.ErrNotReady, errorCode(err))

	close(runner.release)

	var last ProgressEvent
	for ev := range events {
		last = ev
	}
	assert.True(t, last.Done)
	assert.Equal(t, RUN_FINISHED, last.Status)
	assert.InDelta(t, 0.5, last.Gap, 1e-12)

	info, err := svc.Status(runId)
	require.NoError(t, err)
	require.NotNil(t, info.LastEvent)
	assert.Equal(t, 1, info.LastEvent.Iteration)

	// an ended run replays only the final event
	events, cancel, err = svc.Subscribe(runId)
	require.NoError(t, err)
	defer cancel()
	ev, ok := <-events
	require.True(t, ok)
	assert.True(t, ev.Done)
	_, ok = <-events
	assert.False(t, ok)
}

func TestAssignmentServiceFailedRun(t *testing.T) {
	runner := &gatedRunner{release: make(chan struct{}), err: errors.New("boom")}
	close(runner.release)
	svc := newService(t, func(*da.Graph, *demand.Demands, assignment.Config) (AssignmentRunner, error) {
		return runner, nil
	})

	runId, err := svc.Submit(corridorRequest(100))
	require.NoError(t, err)
	waitForStatus(t, svc, runId, RUN_FAILED)

	info, err := svc.Status(runId)
	require.NoError(t, err)
	assert.Equal(t, "boom", info.Error)
}

func TestAssignmentServiceNetwork(t *testing.T) {
	svc := newService(t, nil)
	net := svc.Network()
	assert.Equal(t, 2, net.Zones)
	assert.Equal(t, 1, net.Modes)
	assert.Equal(t, 5, net.EdgeSegments)
	assert.InDeltaSlice(t, []float64{110.37, -7.76, 110.38, -7.76}, net.BoundingBox, 1e-12)
}
