package controllers

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	helper "github.com/TrafficPLANit/PLANit-sub005/pkg/http/router/routerhelper"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/http/usecases"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/output"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	submitted []usecases.AssignmentRequest
	submitErr error
	runs      map[string]usecases.RunInfo
	rows      []usecases.LinkSegmentFlow
	skims     []usecases.SkimEntry
	minFlow   float64
}

func (f *fakeService) Network() output.NetworkSummary {
	return output.NetworkSummary{Vertices: 4, Edges: 3, EdgeSegments: 5, Zones: 2, Modes: 1}
}

func (f *fakeService) Submit(req usecases.AssignmentRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return "run-1", nil
}

func (f *fakeService) Status(runId string) (usecases.RunInfo, error) {
	info, ok := f.runs[runId]
	if !ok {
		return usecases.RunInfo{}, util.WrapErrorf(nil, util.ErrNotFound, "assignment run %s not found", runId)
	}
	return info, nil
}

func (f *fakeService) Subscribe(runId string) (<-chan usecases.ProgressEvent, func(), error) {
	return nil, nil, util.WrapErrorf(nil, util.ErrNotFound, "assignment run %s not found", runId)
}

func (f *fakeService) LinkSegments(runId, timePeriod, mode string, minFlow float64) ([]usecases.LinkSegmentFlow, error) {
	if _, ok := f.runs[runId]; !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotReady, "assignment run %s is running", runId)
	}
	f.minFlow = minFlow
	return f.rows, nil
}

func (f *fakeService) Skims(runId, timePeriod, mode string) ([]usecases.SkimEntry, error) {
	return f.skims, nil
}

func (f *fakeService) Path(runId, timePeriod, mode, origin, destination string) (usecases.ODPath, error) {
	return usecases.ODPath{Origin: origin, Destination: destination, SegmentIds: []uint32{2, 0, 5}, Cost: 1.5}, nil
}

func newTestRouter(svc AssignmentService) *httprouter.Router {
	router := httprouter.New()
	New(svc, zap.NewNop()).Routes(helper.NewRouteGroup(router, "/api"))
	return router
}

func doRequest(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func validSubmitBody() map[string]interface{} {
	return map[string]interface{}{
		"time_periods": []map[string]interface{}{{"id": "am", "start_seconds": 25200, "duration_seconds": 3600}},
		"demands": []map[string]interface{}{
			{"time_period": "am", "mode": "car", "origin": "O", "destination": "D", "demand": 500},
		},
		"smoothing": "sra",
	}
}

func TestSubmitAssignment(t *testing.T) {
	svc := &fakeService{}
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/assignments", validSubmitBody())

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/assignments/run-1", rec.Header().Get("Location"))
	assert.JSONEq(t, `{"data":{"run_id":"run-1"}}`, rec.Body.String())

	require.Len(t, svc.submitted, 1)
	req := svc.submitted[0]
	assert.Equal(t, "sra", req.Smoothing)
	require.Len(t, req.TimePeriods, 1)
	assert.Equal(t, usecases.TimePeriodSpec{ExternalId: "am", StartSeconds: 25200, DurationSeconds: 3600}, req.TimePeriods[0])
	require.Len(t, req.Demands, 1)
	assert.Equal(t, 500.0, req.Demands[0].Demand)
}

func TestSubmitAssignmentValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(body map[string]interface{})
	}{
		{name: "no time periods", modify: func(body map[string]interface{}) { delete(body, "time_periods") }},
		{name: "no demands", modify: func(body map[string]interface{}) { body["demands"] = []interface{}{} }},
		{name: "unknown smoothing", modify: func(body map[string]interface{}) { body["smoothing"] = "newton" }},
		{name: "negative demand", modify: func(body map[string]interface{}) {
			body["demands"] = []map[string]interface{}{
				{"time_period": "am", "mode": "car", "origin": "O", "destination": "D", "demand": -1},
			}
		}},
		{name: "zero duration", modify: func(body map[string]interface{}) {
			body["time_periods"] = []map[string]interface{}{{"id": "am", "duration_seconds": 0}}
		}},
		{name: "gap epsilon out of range", modify: func(body map[string]interface{}) { body["gap_epsilon"] = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			body := validSubmitBody()
			tt.modify(body)
			rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/assignments", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "validation error")
			assert.Empty(t, svc.submitted)
		})
	}
}

func TestSubmitAssignmentServiceError(t *testing.T) {
	svc := &fakeService{submitErr: util.WrapErrorf(nil, util.ErrBadParamInput, "demand 0: unknown origin zone X")}
	rec := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/assignments", validSubmitBody())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "demand 0: unknown origin zone X", resp.Error.Message)
}

func TestAssignmentStatus(t *testing.T) {
	submitted := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	svc := &fakeService{runs: map[string]usecases.RunInfo{
		"run-1": {
			RunId:       "run-1",
			Status:      usecases.RUN_FINISHED,
			SubmittedAt: submitted,
			FinishedAt:  submitted.Add(2 * time.Second),
			TimePeriods: []usecases.TimePeriodStatus{
				{TimePeriod: "am", Termination: "converged", Iterations: 12, Gap: 1e-5, Duration: 1500 * time.Millisecond},
			},
		},
	}}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/assignments/run-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data runStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "finished", resp.Data.Status)
	assert.Equal(t, "2024-03-01T07:00:02.000Z", resp.Data.FinishedAt)
	require.Len(t, resp.Data.TimePeriods, 1)
	assert.Equal(t, 12, resp.Data.TimePeriods[0].Iterations)
	assert.Equal(t, 1.5, resp.Data.TimePeriods[0].DurationSeconds)

	rec = doRequest(t, router, http.MethodGet, "/api/assignments/run-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/assignments/run-2/progress", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLinkSegments(t *testing.T) {
	svc := &fakeService{
		runs: map[string]usecases.RunInfo{"run-1": {RunId: "run-1"}},
		rows: []usecases.LinkSegmentFlow{
			{SegmentId: 0, Edge: "ab", Flow: 100, Cost: 0.02, Capacity: 1000, VCRatio: 0.1},
			{SegmentId: 1, Edge: "ba", Cost: math.Inf(1)},
		},
	}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/assignments/run-1/link-segments?time_period=am&mode=car&min_flow=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, svc.minFlow)
	var resp struct {
		Data []linkSegmentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.NotNil(t, resp.Data[0].Cost)
	assert.Equal(t, 0.02, *resp.Data[0].Cost)
	assert.Nil(t, resp.Data[1].Cost)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{name: "missing mode", target: "/api/assignments/run-1/link-segments?time_period=am", want: http.StatusBadRequest},
		{name: "bad min flow", target: "/api/assignments/run-1/link-segments?time_period=am&mode=car&min_flow=x", want: http.StatusBadRequest},
		{name: "negative min flow", target: "/api/assignments/run-1/link-segments?time_period=am&mode=car&min_flow=-1", want: http.StatusBadRequest},
		{name: "run not ready", target: "/api/assignments/run-2/link-segments?time_period=am&mode=car", want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSkimsAndPaths(t *testing.T) {
	svc := &fakeService{skims: []usecases.SkimEntry{
		{Origin: "O", Destination: "D", Cost: 1.5},
		{Origin: "D", Destination: "O", Cost: math.Inf(1)},
	}}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/assignments/run-1/skims?time_period=am&mode=car", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"origin":"O","destination":"D","cost":1.5},{"origin":"D","destination":"O","cost":null}]}`,
		rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/assignments/run-1/paths?time_period=am&mode=car&origin=O&destination=D", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"origin":"O","destination":"D","segment_ids":[2,0,5],"polyline":"","cost":1.5}}`,
		rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/assignments/run-1/paths?time_period=am&mode=car&origin=O", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNetwork(t *testing.T) {
	rec := doRequest(t, newTestRouter(&fakeService{}), http.MethodGet, "/api/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data output.NetworkSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Zones)
}
