package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeap(t *testing.T) {
	testCases := []struct {
		name  string
		heap  *MinHeap[Index]
		ranks []float64
	}{
		{name: "binary", heap: NewBinaryHeap[Index](), ranks: []float64{5, 3, 8, 1, 9, 2, 7}},
		{name: "four-ary", heap: NewFourAryHeap[Index](), ranks: []float64{5, 3, 8, 1, 9, 2, 7, 0.5, 4, 4}},
		{name: "single", heap: NewdAryHeap[Index](3), ranks: []float64{42}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.heap
			for i, r := range tt.ranks {
				h.Insert(NewPriorityQueueNode(r, Index(i)))
			}
			require.Equal(t, len(tt.ranks), h.Size())

			prev := -1.0
			for !h.IsEmpty() {
				n, err := h.ExtractMin()
				require.NoError(t, err)
				assert.GreaterOrEqual(t, n.GetRank(), prev)
				assert.False(t, n.InHeap())
				prev = n.GetRank()
			}
			_, err := h.ExtractMin()
			assert.ErrorIs(t, err, ErrEmptyHeap)
		})
	}
}

func TestMinHeapDecreaseKey(t *testing.T) {
	h := NewFourAryHeap[Index]()
	nodes := make([]*PriorityQueueNode[Index], 6)
	for i := range nodes {
		nodes[i] = NewPriorityQueueNode(float64(10+i), Index(i))
		h.Insert(nodes[i])
	}

	require.NoError(t, h.DecreaseKey(nodes[5], 1))
	assert.Equal(t, 1.0, h.GetMinRank())
	minNode, err := h.GetMin()
	require.NoError(t, err)
	assert.Equal(t, Index(5), minNode.GetItem())

	assert.Error(t, h.DecreaseKey(nodes[2], 50), "increasing a key is rejected")

	h.Reset()
	assert.True(t, h.IsEmpty())
	assert.False(t, nodes[0].InHeap())
	assert.Error(t, h.DecreaseKey(nodes[0], 0))
}
