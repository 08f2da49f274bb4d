package usecases

import (
	"github.com/TrafficPLANit/PLANit-sub005/pkg/assignment"
	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
	"github.com/TrafficPLANit/PLANit-sub005/pkg/demand"
)

// AssignmentRunner runs one prepared assignment. *assignment.EquilibriumAssignment implements it.
type AssignmentRunner interface {
	GetRunId() string
	AddIterationListener(l assignment.IterationListener)
	Run() (*assignment.AssignmentResult, error)
}

// RunnerFactory prepares a runner for demands on the loaded network.
type RunnerFactory func(graph *da.Graph, demands *demand.Demands, cfg assignment.Config) (AssignmentRunner, error)
