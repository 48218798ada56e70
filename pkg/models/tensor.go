package models

import (
	"encoding/json"
	"fmt"
)

// RewardTensor is a dense (rows, cols) float32 matrix
type RewardTensor struct {
	rows int
	cols int
	data []float32
}

// NewRewardTensor allocates a zero-filled tensor
func NewRewardTensor(rows, cols int) *RewardTensor {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &RewardTensor{
		rows: rows,
		cols: cols,
		data: make([]float32, rows*cols),
	}
}

// Shape returns (rows, cols)
func (t *RewardTensor) Shape() (int, int) {
	return t.rows, t.cols
}

// At returns the value at (row, col)
func (t *RewardTensor) At(row, col int) float32 {
	return t.data[row*t.cols+col]
}

// Set writes v at (row, col)
func (t *RewardTensor) Set(row, col int, v float32) error {
	if row < 0 || row >= t.rows || col < 0 || col >= t.cols {
		return fmt.Errorf("index (%d, %d) out of range for shape (%d, %d)", row, col, t.rows, t.cols)
	}
	t.data[row*t.cols+col] = v
	return nil
}

// Row returns a copy of one row
func (t *RewardTensor) Row(row int) []float32 {
	out := make([]float32, t.cols)
	copy(out, t.data[row*t.cols:(row+1)*t.cols])
	return out
}

// NonZeroCount counts non-zero cells in a row
func (t *RewardTensor) NonZeroCount(row int) int {
	n := 0
	for _, v := range t.data[row*t.cols : (row+1)*t.cols] {
		if v != 0 {
			n++
		}
	}
	return n
}

// Equal reports whether two tensors have the same shape and values
func (t *RewardTensor) Equal(other *RewardTensor) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.rows != other.rows || t.cols != other.cols {
		return false
	}
	for i := range t.data {
		if t.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the tensor as nested arrays
func (t *RewardTensor) MarshalJSON() ([]byte, error) {
	nested := make([][]float32, t.rows)
	for r := 0; r < t.rows; r++ {
		nested[r] = t.data[r*t.cols : (r+1)*t.cols]
	}
	return json.Marshal(nested)
}

// UnmarshalJSON decodes nested arrays; rows must share one width
func (t *RewardTensor) UnmarshalJSON(data []byte) error {
	var nested [][]float32
	if err := json.Unmarshal(data, &nested); err != nil {
		return fmt.Errorf("tensor must be a nested numeric array: %w", err)
	}
	cols := 0
	if len(nested) > 0 {
		cols = len(nested[0])
	}
	flat := make([]float32, 0, len(nested)*cols)
	for i, row := range nested {
		if len(row) != cols {
			return fmt.Errorf("ragged tensor: row %d has %d columns, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	t.rows, t.cols, t.data = len(nested), cols, flat
	return nil
}
