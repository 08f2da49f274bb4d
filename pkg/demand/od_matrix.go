package demand

import (
	"errors"
	"fmt"
	"math"
	"sort"

	da "github.com/TrafficPLANit/PLANit-sub005/pkg/datastructure"
)

var ErrNegativeDemand = errors.New("od demand must be non-negative and finite")

func exactlyEqual(a, b float64) bool {
	return a == b
}

// ODMatrix holds the demand (vehicles/h) between zones for one mode and time period.
type ODMatrix struct {
	numZones int
	cells    *da.SparseMatrix[float64]
}

func NewODMatrix(numZones int) *ODMatrix {
	return &ODMatrix{
		numZones: numZones,
		cells:    da.NewSparseMatrix[float64](numZones, numZones, 0, exactlyEqual),
	}
}

func (od *ODMatrix) NumberOfZones() int {
	return od.numZones
}

func (od *ODMatrix) Set(origin, destination da.Index, value float64) error {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: (%d,%d) = %v", ErrNegativeDemand, origin, destination, value)
	}
	if int(origin) >= od.numZones || int(destination) >= od.numZones {
		return fmt.Errorf("od cell (%d,%d) outside %d zones", origin, destination, od.numZones)
	}
	od.cells.Set(value, int(origin), int(destination))
	return nil
}

func (od *ODMatrix) Add(origin, destination da.Index, value float64) error {
	return od.Set(origin, destination, od.Get(origin, destination)+value)
}

func (od *ODMatrix) Get(origin, destination da.Index) float64 {
	return od.cells.Get(int(origin), int(destination))
}

// ForEachOrigin calls handle once per origin zone that has any stored demand, in zone id order.
func (od *ODMatrix) ForEachOrigin(handle func(origin da.Index)) {
	for o := 0; o < od.numZones; o++ {
		hasDemand := false
		od.cells.ForEachInRow(o, func(int, float64) { hasDemand = true })
		if hasDemand {
			handle(da.Index(o))
		}
	}
}

// ForEachDestination visits the stored demand of origin in destination id order.
func (od *ODMatrix) ForEachDestination(origin da.Index, handle func(destination da.Index, demand float64)) {
	od.cells.ForEachInRow(int(origin), func(col int, val float64) {
		handle(da.Index(col), val)
	})
}

// ForEachCell visits all stored cells origin-major.
func (od *ODMatrix) ForEachCell(handle func(origin, destination da.Index, demand float64)) {
	od.cells.ForEachNonZero(func(row, col int, val float64) {
		handle(da.Index(row), da.Index(col), val)
	})
}

func (od *ODMatrix) Total() float64 {
	return od.cells.Sum()
}

func (od *ODMatrix) NumberOfNonZeros() int {
	return od.cells.NumberOfNonZeros()
}

type matrixKey struct {
	mode       da.Index
	timePeriod da.Index
}

// Demands holds the OD matrices of all modes and time periods of a run.
type Demands struct {
	numZones    int
	timePeriods *TimePeriods
	matrices    map[matrixKey]*ODMatrix
}

func NewDemands(numZones int, timePeriods *TimePeriods) *Demands {
	return &Demands{
		numZones:    numZones,
		timePeriods: timePeriods,
		matrices:    make(map[matrixKey]*ODMatrix),
	}
}

func (d *Demands) GetTimePeriods() *TimePeriods {
	return d.timePeriods
}

func (d *Demands) NumberOfZones() int {
	return d.numZones
}

// Get returns the matrix of (mode, timePeriod), or nil when none was registered.
func (d *Demands) Get(modeId, timePeriodId da.Index) *ODMatrix {
	return d.matrices[matrixKey{mode: modeId, timePeriod: timePeriodId}]
}

// GetOrCreate returns the matrix of (mode, timePeriod), registering an empty one when absent.
func (d *Demands) GetOrCreate(modeId, timePeriodId da.Index) *ODMatrix {
	key := matrixKey{mode: modeId, timePeriod: timePeriodId}
	m, ok := d.matrices[key]
	if !ok {
		m = NewODMatrix(d.numZones)
		d.matrices[key] = m
	}
	return m
}

func (d *Demands) Register(modeId, timePeriodId da.Index, m *ODMatrix) error {
	if m.numZones != d.numZones {
		return fmt.Errorf("od matrix has %d zones, demands expect %d", m.numZones, d.numZones)
	}
	d.matrices[matrixKey{mode: modeId, timePeriod: timePeriodId}] = m
	return nil
}

// ModesOf returns the ids of the modes with a matrix in the given time period, ascending.
func (d *Demands) ModesOf(timePeriodId da.Index) []da.Index {
	modeIds := make([]da.Index, 0, 2)
	for key := range d.matrices {
		if key.timePeriod == timePeriodId {
			modeIds = append(modeIds, key.mode)
		}
	}
	sort.Slice(modeIds, func(i, j int) bool {
		return modeIds[i] < modeIds[j]
	})
	return modeIds
}
