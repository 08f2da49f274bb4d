package usecases

import (
	"time"
)

type RunStatus string

const (
	RUN_QUEUED   RunStatus = "queued"
	RUN_RUNNING  RunStatus = "running"
	RUN_FINISHED RunStatus = "finished"
	RUN_FAILED   RunStatus = "failed"
)

// ODDemand is one od cell of a submitted assignment, in vehicles/h.
type ODDemand struct {
	TimePeriod  string
	Mode        string
	Origin      string
	Destination string
	Demand      float64
}

type TimePeriodSpec struct {
	ExternalId      string
	StartSeconds    int
	DurationSeconds int
}

// AssignmentRequest overrides the server defaults for one run; zero values keep the default.
type AssignmentRequest struct {
	TimePeriods   []TimePeriodSpec
	Demands       []ODDemand
	MaxIterations int
	GapEpsilon    float64
	Smoothing     string
	CostFunction  string
	RecordPaths   bool
}

type TimePeriodStatus struct {
	TimePeriod  string
	Termination string
	Iterations  int
	Gap         float64
	Duration    time.Duration
}

type RunInfo struct {
	RunId       string
	Status      RunStatus
	Error       string
	SubmittedAt time.Time
	FinishedAt  time.Time
	TimePeriods []TimePeriodStatus
	LastEvent   *ProgressEvent
}

// ProgressEvent is streamed to progress subscribers after every iteration and once when the run
// ends (Done set).
type ProgressEvent struct {
	RunId      string    `json:"run_id"`
	TimePeriod string    `json:"time_period,omitempty"`
	Iteration  int       `json:"iteration,omitempty"`
	Gap        float64   `json:"gap"`
	StepSize   float64   `json:"step_size,omitempty"`
	Status     RunStatus `json:"status"`
	Done       bool      `json:"done"`
}

type LinkSegmentFlow struct {
	SegmentId  uint32
	Edge       string
	Upstream   string
	Downstream string
	LengthKm   float64
	Capacity   float64
	Flow       float64
	Cost       float64 // +Inf when the mode cannot use the segment
	VCRatio    float64
}

type SkimEntry struct {
	Origin      string
	Destination string
	Cost        float64 // +Inf when unreachable
}

type ODPath struct {
	Origin      string
	Destination string
	SegmentIds  []uint32
	Polyline    string
	Cost        float64
}
