package assignment

import (
	"fmt"
	"math"
)

const (
	MSA        = "msa"
	FIXED_STEP = "fixed"
	SRA        = "sra"
)

// Smoothing combines the previous iterate with the newly loaded flows.
type Smoothing interface {
	Name() string
	// UpdateStep is called once per iteration (1-based) before Smooth. residual is the distance
	// between loaded and previous flows over all modes.
	UpdateStep(iteration int, residual float64)
	GetStepSize() float64
	// Smooth returns previous + step * (loaded - previous) as a fresh slice.
	Smooth(previous, loaded []float64) []float64
}

func smooth(step float64, previous, loaded []float64) []float64 {
	smoothed := make([]float64, len(loaded))
	for i := range loaded {
		smoothed[i] = previous[i] + step*(loaded[i]-previous[i])
	}
	return smoothed
}

// MSASmoothing uses step 1/iteration.
type MSASmoothing struct {
	step float64
}

func NewMSASmoothing() *MSASmoothing {
	return &MSASmoothing{step: 1}
}

func (s *MSASmoothing) Name() string {
	return MSA
}

func (s *MSASmoothing) UpdateStep(iteration int, residual float64) {
	s.step = 1 / float64(max(iteration, 1))
}

func (s *MSASmoothing) GetStepSize() float64 {
	return s.step
}

func (s *MSASmoothing) Smooth(previous, loaded []float64) []float64 {
	return smooth(s.step, previous, loaded)
}

// FixedStepSmoothing uses a constant step after the first iteration, which takes the loaded
// flows as they are.
type FixedStepSmoothing struct {
	fixedStep float64
	step      float64
}

func NewFixedStepSmoothing(step float64) (*FixedStepSmoothing, error) {
	if step <= 0 || step > 1 || math.IsNaN(step) {
		return nil, fmt.Errorf("fixed smoothing step %v must be in (0, 1]", step)
	}
	return &FixedStepSmoothing{fixedStep: step, step: 1}, nil
}

func (s *FixedStepSmoothing) Name() string {
	return FIXED_STEP
}

func (s *FixedStepSmoothing) UpdateStep(iteration int, residual float64) {
	if iteration <= 1 {
		s.step = 1
		return
	}
	s.step = s.fixedStep
}

func (s *FixedStepSmoothing) GetStepSize() float64 {
	return s.step
}

func (s *FixedStepSmoothing) Smooth(previous, loaded []float64) []float64 {
	return smooth(s.step, previous, loaded)
}

const (
	DEFAULT_SRA_GAMMA_HIGH = 1.5
	DEFAULT_SRA_GAMMA_LOW  = 0.5
)

// SRASmoothing is self-regulated averaging: step 1/beta where beta grows by gammaHigh when the
// residual did not decrease since the previous iteration and by gammaLow otherwise.
type SRASmoothing struct {
	gammaHigh    float64
	gammaLow     float64
	beta         float64
	prevResidual float64
	step         float64
}

func NewSRASmoothing(gammaHigh, gammaLow float64) (*SRASmoothing, error) {
	if gammaHigh <= 1 || gammaLow <= 0 || gammaLow >= 1 {
		return nil, fmt.Errorf("sra needs gammaHigh > 1 and 0 < gammaLow < 1, got %v and %v", gammaHigh, gammaLow)
	}
	return &SRASmoothing{gammaHigh: gammaHigh, gammaLow: gammaLow, beta: 1, step: 1,
		prevResidual: math.Inf(1)}, nil
}

func (s *SRASmoothing) Name() string {
	return SRA
}

func (s *SRASmoothing) UpdateStep(iteration int, residual float64) {
	if iteration <= 1 {
		s.beta = 1
	} else if residual >= s.prevResidual {
		s.beta += s.gammaHigh
	} else {
		s.beta += s.gammaLow
	}
	s.prevResidual = residual
	s.step = 1 / s.beta
}

func (s *SRASmoothing) GetStepSize() float64 {
	return s.step
}

func (s *SRASmoothing) Smooth(previous, loaded []float64) []float64 {
	return smooth(s.step, previous, loaded)
}

// NewSmoothing returns a fresh smoothing strategy; every time period owns one.
func NewSmoothing(name string, fixedStep float64) (Smoothing, error) {
	switch name {
	case MSA, "":
		return NewMSASmoothing(), nil
	case FIXED_STEP:
		return NewFixedStepSmoothing(fixedStep)
	case SRA:
		return NewSRASmoothing(DEFAULT_SRA_GAMMA_HIGH, DEFAULT_SRA_GAMMA_LOW)
	default:
		return nil, fmt.Errorf("unknown smoothing %q", name)
	}
}

// residual is the euclidean distance between loaded and previous flows.
func residual(previous, loaded []float64) float64 {
	sum := 0.0
	for i := range loaded {
		d := loaded[i] - previous[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
