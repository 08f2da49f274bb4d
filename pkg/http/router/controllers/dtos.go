package controllers

import (
	"math"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/http/usecases"
)

type timePeriodRequest struct {
	Id              string `json:"id" validate:"required"`
	StartSeconds    int    `json:"start_seconds" validate:"gte=0,lt=86400"`
	DurationSeconds int    `json:"duration_seconds" validate:"required,gt=0,lte=86400"`
}

type odDemandRequest struct {
	TimePeriod  string  `json:"time_period" validate:"required"`
	Mode        string  `json:"mode" validate:"required"`
	Origin      string  `json:"origin" validate:"required"`
	Destination string  `json:"destination" validate:"required"`
	Demand      float64 `json:"demand" validate:"gte=0"`
}

type submitAssignmentRequest struct {
	TimePeriods   []timePeriodRequest `json:"time_periods" validate:"required,min=1,dive"`
	Demands       []odDemandRequest   `json:"demands" validate:"required,min=1,dive"`
	MaxIterations int                 `json:"max_iterations" validate:"omitempty,gte=1,lte=100000"`
	GapEpsilon    float64             `json:"gap_epsilon" validate:"omitempty,gt=0,lt=1"`
	Smoothing     string              `json:"smoothing" validate:"omitempty,oneof=msa fixed sra"`
	CostFunction  string              `json:"cost_function" validate:"omitempty,oneof=freeflow bpr steadystate"`
	RecordPaths   bool                `json:"record_paths"`
}

func (r submitAssignmentRequest) toUsecase() usecases.AssignmentRequest {
	req := usecases.AssignmentRequest{
		TimePeriods:   make([]usecases.TimePeriodSpec, len(r.TimePeriods)),
		Demands:       make([]usecases.ODDemand, len(r.Demands)),
		MaxIterations: r.MaxIterations,
		GapEpsilon:    r.GapEpsilon,
		Smoothing:     r.Smoothing,
		CostFunction:  r.CostFunction,
		RecordPaths:   r.RecordPaths,
	}
	for i, tp := range r.TimePeriods {
		req.TimePeriods[i] = usecases.TimePeriodSpec{
			ExternalId:      tp.Id,
			StartSeconds:    tp.StartSeconds,
			DurationSeconds: tp.DurationSeconds,
		}
	}
	for i, d := range r.Demands {
		req.Demands[i] = usecases.ODDemand{
			TimePeriod:  d.TimePeriod,
			Mode:        d.Mode,
			Origin:      d.Origin,
			Destination: d.Destination,
			Demand:      d.Demand,
		}
	}
	return req
}

type submitAssignmentResponse struct {
	RunId string `json:"run_id"`
}

type timePeriodStatusResponse struct {
	TimePeriod      string  `json:"time_period"`
	Termination     string  `json:"termination"`
	Iterations      int     `json:"iterations"`
	Gap             float64 `json:"gap"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type runStatusResponse struct {
	RunId       string                     `json:"run_id"`
	Status      string                     `json:"status"`
	Error       string                     `json:"error,omitempty"`
	SubmittedAt string                     `json:"submitted_at"`
	FinishedAt  string                     `json:"finished_at,omitempty"`
	TimePeriods []timePeriodStatusResponse `json:"time_periods"`
	LastEvent   *usecases.ProgressEvent    `json:"last_event,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func NewRunStatusResponse(info usecases.RunInfo) runStatusResponse {
	resp := runStatusResponse{
		RunId:       info.RunId,
		Status:      string(info.Status),
		Error:       info.Error,
		SubmittedAt: info.SubmittedAt.Format(timeLayout),
		TimePeriods: make([]timePeriodStatusResponse, len(info.TimePeriods)),
		LastEvent:   info.LastEvent,
	}
	if !info.FinishedAt.IsZero() {
		resp.FinishedAt = info.FinishedAt.Format(timeLayout)
	}
	for i, tp := range info.TimePeriods {
		resp.TimePeriods[i] = timePeriodStatusResponse{
			TimePeriod:      tp.TimePeriod,
			Termination:     tp.Termination,
			Iterations:      tp.Iterations,
			Gap:             tp.Gap,
			DurationSeconds: tp.Duration.Seconds(),
		}
	}
	return resp
}

// finite maps +Inf (closed segment, unreachable pair) to null.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

type linkSegmentResponse struct {
	SegmentId  uint32   `json:"segment_id"`
	Edge       string   `json:"edge"`
	Upstream   string   `json:"upstream"`
	Downstream string   `json:"downstream"`
	LengthKm   float64  `json:"length_km"`
	Capacity   float64  `json:"capacity"`
	Flow       float64  `json:"flow"`
	Cost       *float64 `json:"cost"`
	VCRatio    float64  `json:"vc_ratio"`
}

func NewLinkSegmentsResponse(rows []usecases.LinkSegmentFlow) []linkSegmentResponse {
	resp := make([]linkSegmentResponse, len(rows))
	for i, r := range rows {
		resp[i] = linkSegmentResponse{
			SegmentId:  r.SegmentId,
			Edge:       r.Edge,
			Upstream:   r.Upstream,
			Downstream: r.Downstream,
			LengthKm:   r.LengthKm,
			Capacity:   r.Capacity,
			Flow:       r.Flow,
			Cost:       finite(r.Cost),
			VCRatio:    r.VCRatio,
		}
	}
	return resp
}

type skimResponse struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Cost        *float64 `json:"cost"`
}

func NewSkimsResponse(entries []usecases.SkimEntry) []skimResponse {
	resp := make([]skimResponse, len(entries))
	for i, e := range entries {
		resp[i] = skimResponse{Origin: e.Origin, Destination: e.Destination, Cost: finite(e.Cost)}
	}
	return resp
}

type pathResponse struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	SegmentIds  []uint32 `json:"segment_ids"`
	Polyline    string   `json:"polyline"`
	Cost        float64  `json:"cost"`
}

func NewPathResponse(p usecases.ODPath) pathResponse {
	return pathResponse{
		Origin:      p.Origin,
		Destination: p.Destination,
		SegmentIds:  p.SegmentIds,
		Polyline:    p.Polyline,
		Cost:        p.Cost,
	}
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
