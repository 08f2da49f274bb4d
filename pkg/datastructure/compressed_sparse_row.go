package datastructure

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/TrafficPLANit/PLANit-sub005/pkg/util"
	"golang.org/x/exp/constraints"
)

/*
The Compressed Row Storage (CRS) format puts the subsequent nonzeros of the matrix rows in contiguous memory locations.
vals stores the nonzero elements row by row, cols the column index of each of them and
rows[i]..rows[i+1] the range of vals belonging to row i (0-based, rows[m] = nnz).
Instead of storing O(m*n) elements, we need only O(2nnz+m+1) space.
*/

type SparseMatrix[T constraints.Integer | constraints.Float] struct {
	m, n int
	vals []T
	cols []int
	rows []int
	zero T
	eq   func(a, b T) bool
}

func NewSparseMatrix[T constraints.Integer | constraints.Float](m, n int, zero T, eq func(a, b T) bool) *SparseMatrix[T] {
	return &SparseMatrix[T]{
		m:    m,
		n:    n,
		rows: make([]int, m+1),
		zero: zero,
		eq:   eq,
	}
}

func (sm *SparseMatrix[T]) NumberOfRows() int {
	return sm.m
}

func (sm *SparseMatrix[T]) NumberOfCols() int {
	return sm.n
}

func (sm *SparseMatrix[T]) NumberOfNonZeros() int {
	return len(sm.vals)
}

func (sm *SparseMatrix[T]) checkBounds(row, col int) {
	if row < 0 || row >= sm.m || col < 0 || col >= sm.n {
		panic(fmt.Sprintf("sparse matrix index (%d,%d) out of range %dx%d", row, col, sm.m, sm.n))
	}
}

// find returns the position of (row, col) in vals, or the position where it would be inserted.
func (sm *SparseMatrix[T]) find(row, col int) (int, bool) {
	pos := sm.rows[row]
	for ; pos < sm.rows[row+1]; pos++ {
		if sm.cols[pos] >= col {
			return pos, sm.cols[pos] == col
		}
	}
	return pos, false
}

// Set stores val at (row, col); storing the zero value removes the entry.
func (sm *SparseMatrix[T]) Set(val T, row, col int) {
	sm.checkBounds(row, col)
	pos, found := sm.find(row, col)

	switch {
	case !found && !sm.eq(val, sm.zero):
		sm.insert(pos, row, col, val)
	case found && sm.eq(val, sm.zero):
		sm.remove(pos, row)
	case found:
		sm.vals[pos] = val
	}
}

// Add adds delta to the value at (row, col).
func (sm *SparseMatrix[T]) Add(delta T, row, col int) {
	sm.Set(sm.Get(row, col)+delta, row, col)
}

func (sm *SparseMatrix[T]) Get(row, col int) T {
	sm.checkBounds(row, col)
	if pos, found := sm.find(row, col); found {
		return sm.vals[pos]
	}
	return sm.zero
}

// ForEachInRow calls handle for each nonzero of row in ascending column order.
func (sm *SparseMatrix[T]) ForEachInRow(row int, handle func(col int, val T)) {
	for pos := sm.rows[row]; pos < sm.rows[row+1]; pos++ {
		handle(sm.cols[pos], sm.vals[pos])
	}
}

// ForEachNonZero visits all nonzeros row-major.
func (sm *SparseMatrix[T]) ForEachNonZero(handle func(row, col int, val T)) {
	for row := 0; row < sm.m; row++ {
		for pos := sm.rows[row]; pos < sm.rows[row+1]; pos++ {
			handle(row, sm.cols[pos], sm.vals[pos])
		}
	}
}

// Sum returns the total of all stored values.
func (sm *SparseMatrix[T]) Sum() T {
	var total T
	for _, v := range sm.vals {
		total += v
	}
	return total
}

func (sm *SparseMatrix[T]) insert(index, row, col int, val T) {
	sm.vals = append(sm.vals, sm.zero)
	copy(sm.vals[index+1:], sm.vals[index:])
	sm.vals[index] = val

	sm.cols = append(sm.cols, 0)
	copy(sm.cols[index+1:], sm.cols[index:])
	sm.cols[index] = col

	for i := row + 1; i <= sm.m; i++ {
		sm.rows[i]++
	}
}

func (sm *SparseMatrix[T]) remove(index, row int) {
	sm.vals = append(sm.vals[:index], sm.vals[index+1:]...)
	sm.cols = append(sm.cols[:index], sm.cols[index+1:]...)

	for i := row + 1; i <= sm.m; i++ {
		sm.rows[i]--
	}
}

// Write serializes the matrix as four text lines: header, vals, cols, rows.
func (sm *SparseMatrix[T]) Write(w *bufio.Writer) error {
	fmt.Fprintf(w, "%d %d %d\n", sm.m, sm.n, len(sm.vals))

	for i := 0; i < len(sm.vals); i++ {
		fmt.Fprintf(w, "%v", sm.vals[i])
		if i < len(sm.vals)-1 {
			fmt.Fprintf(w, " ")
		}
	}
	fmt.Fprintf(w, "\n")

	for i := 0; i < len(sm.cols); i++ {
		fmt.Fprintf(w, "%d", sm.cols[i])
		if i < len(sm.cols)-1 {
			fmt.Fprintf(w, " ")
		}
	}
	fmt.Fprintf(w, "\n")

	for i := 0; i < len(sm.rows); i++ {
		fmt.Fprintf(w, "%d", sm.rows[i])
		if i < len(sm.rows)-1 {
			fmt.Fprintf(w, " ")
		}
	}
	_, err := fmt.Fprintf(w, "\n")
	return err
}

// ReadSparseMatrix reads a matrix written by Write. parse converts one value token.
func ReadSparseMatrix[T constraints.Integer | constraints.Float](br *bufio.Reader, zero T, eq func(a, b T) bool,
	parse func(string) (T, error)) (*SparseMatrix[T], error) {

	line, err := util.ReadLine(br)
	if err != nil {
		return nil, err
	}
	tokens := fields(line)
	if len(tokens) != 3 {
		return nil, fmt.Errorf("sparse matrix header: expected 3 fields, got %d", len(tokens))
	}
	m, err := strconv.Atoi(tokens[0])
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(tokens[1])
	if err != nil {
		return nil, err
	}
	nnz, err := strconv.Atoi(tokens[2])
	if err != nil {
		return nil, err
	}

	sm := NewSparseMatrix[T](m, n, zero, eq)
	sm.vals = make([]T, nnz)
	sm.cols = make([]int, nnz)

	// vals
	tokens, err = readTokens(br, nnz)
	if err != nil {
		return nil, fmt.Errorf("sparse matrix values: %w", err)
	}
	for i, token := range tokens {
		if sm.vals[i], err = parse(token); err != nil {
			return nil, err
		}
	}

	// cols
	tokens, err = readTokens(br, nnz)
	if err != nil {
		return nil, fmt.Errorf("sparse matrix columns: %w", err)
	}
	for i, token := range tokens {
		if sm.cols[i], err = strconv.Atoi(token); err != nil {
			return nil, err
		}
		if sm.cols[i] < 0 || sm.cols[i] >= n {
			return nil, fmt.Errorf("sparse matrix column %d out of range", sm.cols[i])
		}
	}

	// rows
	tokens, err = readTokens(br, m+1)
	if err != nil {
		return nil, fmt.Errorf("sparse matrix row offsets: %w", err)
	}
	for i, token := range tokens {
		if sm.rows[i], err = strconv.Atoi(token); err != nil {
			return nil, err
		}
	}
	if sm.rows[m] != nnz {
		return nil, fmt.Errorf("sparse matrix row offsets end at %d, expected %d", sm.rows[m], nnz)
	}

	return sm, nil
}

// readTokens reads one line of expected fields. Empty lines are skipped by util.ReadLine, so
// a line for zero fields is never read.
func readTokens(br *bufio.Reader, expected int) ([]string, error) {
	if expected == 0 {
		return nil, nil
	}
	line, err := util.ReadLine(br)
	if err != nil {
		return nil, err
	}
	tokens := fields(line)
	if len(tokens) != expected {
		return nil, fmt.Errorf("expected %d fields, got %d", expected, len(tokens))
	}
	return tokens, nil
}
