package controllers

import (
	"github.com/TrafficPLANit/PLANit-sub005/pkg/http/usecases"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/output"
)

type AssignmentService interface {
	Network() output.NetworkSummary
	Submit(req usecases.AssignmentRequest) (string, error)
	Status(runId string) (usecases.RunInfo, error)
	Subscribe(runId string) (<-chan usecases.ProgressEvent, func(), error)
	LinkSegments(runId, timePeriod, mode string, minFlow float64) ([]usecases.LinkSegmentFlow, error)
	Skims(runId, timePeriod, mode string) ([]usecases.SkimEntry, error)
	Path(runId, timePeriod, mode, origin, destination string) (usecases.ODPath, error)
}
