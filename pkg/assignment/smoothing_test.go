package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSASmoothing(t *testing.T) {
	s := NewMSASmoothing()
	steps := []float64{1, 0.5, 1.0 / 3, 0.25}
	for i, want := range steps {
		s.UpdateStep(i+1, 0)
		assert.InDelta(t, want, s.GetStepSize(), 1e-12)
	}

	s.UpdateStep(2, 0)
	assert.Equal(t, []float64{5, 5}, s.Smooth([]float64{0, 10}, []float64{10, 0}))
}

func TestMSASmoothingConvergesToConstantLoad(t *testing.T) {
	s := NewMSASmoothing()
	loaded := []float64{42, 42}
	flows := []float64{0, 100} // iterate 1, off the constant load

	prevResidual := residual(flows, loaded)
	for k := 2; k <= 1000; k++ {
		s.UpdateStep(k, prevResidual)
		flows = s.Smooth(flows, loaded)
		r := residual(flows, loaded)
		assert.LessOrEqual(t, r, prevResidual, "iteration %d", k)
		// the distance to the load after k iterations is the initial distance / k
		assert.InDelta(t, residual([]float64{0, 100}, loaded)/float64(k), r, 1e-9, "iteration %d", k)
		prevResidual = r
	}
	assert.InDeltaSlice(t, loaded, flows, 0.1)
}

func TestFixedStepSmoothing(t *testing.T) {
	for _, step := range []float64{0, -0.1, 1.5} {
		_, err := NewFixedStepSmoothing(step)
		assert.Error(t, err, "step %v", step)
	}

	s, err := NewFixedStepSmoothing(0.2)
	require.NoError(t, err)
	s.UpdateStep(1, 0)
	assert.Equal(t, 1.0, s.GetStepSize(), "first iteration takes the loaded flows")
	s.UpdateStep(2, 0)
	assert.Equal(t, 0.2, s.GetStepSize())
	s.UpdateStep(7, 0)
	assert.Equal(t, 0.2, s.GetStepSize())
	assert.InDeltaSlice(t, []float64{2, 8}, s.Smooth([]float64{0, 10}, []float64{10, 0}), 1e-12)
}

func TestSRASmoothing(t *testing.T) {
	_, err := NewSRASmoothing(1, 0.5)
	assert.Error(t, err)
	_, err = NewSRASmoothing(1.5, 1)
	assert.Error(t, err)

	s, err := NewSRASmoothing(DEFAULT_SRA_GAMMA_HIGH, DEFAULT_SRA_GAMMA_LOW)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		iteration int
		residual  float64
		wantStep  float64
	}{
		{name: "first iteration", iteration: 1, residual: 10, wantStep: 1},
		{name: "residual decreased", iteration: 2, residual: 5, wantStep: 1 / 1.5},
		{name: "residual increased", iteration: 3, residual: 8, wantStep: 1 / 3.0},
		{name: "residual unchanged", iteration: 4, residual: 8, wantStep: 1 / 4.5},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			s.UpdateStep(tt.iteration, tt.residual)
			assert.InDelta(t, tt.wantStep, s.GetStepSize(), 1e-12)
		})
	}
}

func TestNewSmoothing(t *testing.T) {
	testCases := []struct {
		name      string
		smoothing string
		wantName  string
		wantErr   bool
	}{
		{name: "default", smoothing: "", wantName: MSA},
		{name: "msa", smoothing: MSA, wantName: MSA},
		{name: "fixed", smoothing: FIXED_STEP, wantName: FIXED_STEP},
		{name: "sra", smoothing: SRA, wantName: SRA},
		{name: "unknown", smoothing: "frank-wolfe", wantErr: true},
	}
	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSmoothing(tt.smoothing, 0.1)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}

func TestResidual(t *testing.T) {
	assert.Equal(t, 5.0, residual([]float64{0, 0}, []float64{3, 4}))
	assert.Equal(t, 0.0, residual([]float64{1, 2}, []float64{1, 2}))
}
