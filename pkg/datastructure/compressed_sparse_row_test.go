package datastructure

import (
	"bufio"
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatEq(a, b float64) bool {
	return a == b
}

func TestSparseMatrix(t *testing.T) {
	sm := NewSparseMatrix[float64](3, 4, 0, floatEq)

	sm.Set(5, 0, 2)
	sm.Set(1, 0, 0)
	sm.Set(7, 2, 3)
	sm.Add(2, 2, 3)
	sm.Add(3, 1, 1)

	assert.Equal(t, 4, sm.NumberOfNonZeros())
	assert.Equal(t, 5.0, sm.Get(0, 2))
	assert.Equal(t, 9.0, sm.Get(2, 3))
	assert.Equal(t, 0.0, sm.Get(1, 3))
	assert.Equal(t, 18.0, sm.Sum())

	cols := make([]int, 0)
	sm.ForEachInRow(0, func(col int, val float64) {
		cols = append(cols, col)
	})
	assert.Equal(t, []int{0, 2}, cols, "row entries are sorted by column")

	sm.Set(0, 0, 2)
	assert.Equal(t, 3, sm.NumberOfNonZeros(), "setting zero removes the entry")
	sm.Add(-3, 1, 1)
	assert.Equal(t, 2, sm.NumberOfNonZeros())

	count := 0
	sm.ForEachNonZero(func(row, col int, val float64) {
		count++
		assert.NotEqual(t, 0.0, val)
	})
	assert.Equal(t, 2, count)

	assert.Panics(t, func() { sm.Get(3, 0) })
}

func TestSparseMatrixReadWrite(t *testing.T) {
	testCases := []struct {
		name    string
		entries [][3]float64
	}{
		{name: "entries", entries: [][3]float64{{0, 1, 2.5}, {1, 0, 100}, {1, 2, 0.125}}},
		{name: "empty", entries: nil},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewSparseMatrix[float64](2, 3, 0, floatEq)
			for _, e := range tt.entries {
				sm.Set(e[2], int(e[0]), int(e[1]))
			}

			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			require.NoError(t, sm.Write(w))
			require.NoError(t, w.Flush())

			got, err := ReadSparseMatrix[float64](bufio.NewReader(&buf), 0, floatEq, func(s string) (float64, error) {
				return strconv.ParseFloat(s, 64)
			})
			require.NoError(t, err)
			assert.Equal(t, sm.NumberOfRows(), got.NumberOfRows())
			assert.Equal(t, sm.NumberOfCols(), got.NumberOfCols())
			assert.Equal(t, len(tt.entries), got.NumberOfNonZeros())
			for _, e := range tt.entries {
				assert.Equal(t, e[2], got.Get(int(e[0]), int(e[1])))
			}
		})
	}
}
