package costfunction

import (
	"fmt"
	"math"
)

const (
	NEWELL_DIAGRAM           = "newell"
	QUADRATIC_LINEAR_DIAGRAM = "quadraticlinear"
)

// FundamentalDiagram relates flow (pcu/h), density (pcu/km) and speed (km/h) of one segment.
// Only the free flow branch is evaluated: flows above capacity are clamped to capacity.
type FundamentalDiagram interface {
	Name() string
	GetFreeSpeed() float64
	GetCriticalSpeed() float64
	GetCapacity() float64
	GetCriticalDensity() float64
	GetJamDensity() float64
	// GetBackwardWaveSpeed is the (positive) speed of the congested branch.
	GetBackwardWaveSpeed() float64
	// SpeedAtFlow returns the free flow branch speed at flow q.
	SpeedAtFlow(q float64) float64
}

// NewellFundamentalDiagram is the triangular diagram: constant free speed up to capacity.
type NewellFundamentalDiagram struct {
	freeSpeed  float64
	capacity   float64
	jamDensity float64
}

func NewNewellFundamentalDiagram(freeSpeed, capacity, jamDensity float64) (*NewellFundamentalDiagram, error) {
	if freeSpeed <= 0 || capacity <= 0 || jamDensity <= capacity/freeSpeed {
		return nil, fmt.Errorf("newell diagram: invalid free speed %v, capacity %v, jam density %v",
			freeSpeed, capacity, jamDensity)
	}
	return &NewellFundamentalDiagram{freeSpeed: freeSpeed, capacity: capacity, jamDensity: jamDensity}, nil
}

func (fd *NewellFundamentalDiagram) Name() string {
	return NEWELL_DIAGRAM
}

func (fd *NewellFundamentalDiagram) GetFreeSpeed() float64 {
	return fd.freeSpeed
}

func (fd *NewellFundamentalDiagram) GetCriticalSpeed() float64 {
	return fd.freeSpeed
}

func (fd *NewellFundamentalDiagram) GetCapacity() float64 {
	return fd.capacity
}

func (fd *NewellFundamentalDiagram) GetCriticalDensity() float64 {
	return fd.capacity / fd.freeSpeed
}

func (fd *NewellFundamentalDiagram) GetJamDensity() float64 {
	return fd.jamDensity
}

func (fd *NewellFundamentalDiagram) GetBackwardWaveSpeed() float64 {
	return fd.capacity / (fd.jamDensity - fd.GetCriticalDensity())
}

func (fd *NewellFundamentalDiagram) SpeedAtFlow(q float64) float64 {
	return fd.freeSpeed
}

// QuadraticLinearFundamentalDiagram has a quadratic free flow branch q = vf*k - a*k^2 that
// reaches capacity at the critical speed, and a linear congested branch.
type QuadraticLinearFundamentalDiagram struct {
	freeSpeed       float64
	criticalSpeed   float64
	capacity        float64
	jamDensity      float64
	criticalDensity float64
	a               float64 // (vf - vc) / kc
}

// NewQuadraticLinearFundamentalDiagram builds the diagram. The critical speed is clamped to
// [freeSpeed/2, freeSpeed], the range in which the quadratic branch is increasing up to capacity.
func NewQuadraticLinearFundamentalDiagram(freeSpeed, criticalSpeed, capacity,
	jamDensity float64) (*QuadraticLinearFundamentalDiagram, error) {
	if freeSpeed <= 0 || capacity <= 0 {
		return nil, fmt.Errorf("quadratic-linear diagram: invalid free speed %v, capacity %v", freeSpeed, capacity)
	}
	criticalSpeed = math.Min(math.Max(criticalSpeed, freeSpeed/2), freeSpeed)
	criticalDensity := capacity / criticalSpeed
	if jamDensity <= criticalDensity {
		return nil, fmt.Errorf("quadratic-linear diagram: jam density %v not above critical density %v",
			jamDensity, criticalDensity)
	}
	return &QuadraticLinearFundamentalDiagram{
		freeSpeed:       freeSpeed,
		criticalSpeed:   criticalSpeed,
		capacity:        capacity,
		jamDensity:      jamDensity,
		criticalDensity: criticalDensity,
		a:               (freeSpeed - criticalSpeed) / criticalDensity,
	}, nil
}

func (fd *QuadraticLinearFundamentalDiagram) Name() string {
	return QUADRATIC_LINEAR_DIAGRAM
}

func (fd *QuadraticLinearFundamentalDiagram) GetFreeSpeed() float64 {
	return fd.freeSpeed
}

func (fd *QuadraticLinearFundamentalDiagram) GetCriticalSpeed() float64 {
	return fd.criticalSpeed
}

func (fd *QuadraticLinearFundamentalDiagram) GetCapacity() float64 {
	return fd.capacity
}

func (fd *QuadraticLinearFundamentalDiagram) GetCriticalDensity() float64 {
	return fd.criticalDensity
}

func (fd *QuadraticLinearFundamentalDiagram) GetJamDensity() float64 {
	return fd.jamDensity
}

func (fd *QuadraticLinearFundamentalDiagram) GetBackwardWaveSpeed() float64 {
	return fd.capacity / (fd.jamDensity - fd.criticalDensity)
}

// DensityAtFlow solves vf*k - a*k^2 = q for the free flow root.
func (fd *QuadraticLinearFundamentalDiagram) DensityAtFlow(q float64) float64 {
	q = math.Min(math.Max(q, 0), fd.capacity)
	if fd.a == 0 {
		return q / fd.freeSpeed
	}
	discriminant := math.Max(fd.freeSpeed*fd.freeSpeed-4*fd.a*q, 0)
	return (fd.freeSpeed - math.Sqrt(discriminant)) / (2 * fd.a)
}

func (fd *QuadraticLinearFundamentalDiagram) SpeedAtFlow(q float64) float64 {
	if q <= 0 {
		return fd.freeSpeed
	}
	return fd.freeSpeed - fd.a*fd.DensityAtFlow(q)
}
