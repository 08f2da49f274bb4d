package costfunction

import (
	"fmt"

	"go.uber.org/zap"
)

// Options selects and parameterizes a cost function.
type Options struct {
	Name               string `validate:"omitempty,oneof=freeflow bpr steadystate"`
	FundamentalDiagram string `validate:"omitempty,oneof=newell quadraticlinear"`
	BPR                *BPRParameterRegistry
}

// NewCostFunction returns a fresh, uninitialized cost function. Every time period gets its own
// instance so periods can be processed concurrently.
func NewCostFunction(opts Options, log *zap.Logger) (CostFunction, error) {
	switch opts.Name {
	case FREE_FLOW:
		return NewFreeFlowCostFunction(), nil
	case BPR, "":
		return NewBPRCostFunction(opts.BPR), nil
	case STEADY_STATE:
		return NewSteadyStateCostFunction(opts.FundamentalDiagram, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCostFunction, opts.Name)
	}
}
