package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMatrix(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want [][]float64
	}{
		{"float64", 2.5, [][]float64{{2.5}}},
		{"int", 3, [][]float64{{3}}},
		{"int8", int8(-4), [][]float64{{-4}}},
		{"uint64", uint64(9), [][]float64{{9}}},
		{"float32", float32(0.5), [][]float64{{0.5}}},
		{"bool", true, [][]float64{{1}}},
		{"row of float64", []float64{1, 2, 3}, [][]float64{{1, 2, 3}}},
		{"row of int", []int{1, 2}, [][]float64{{1, 2}}},
		{"array", [3]uint16{4, 5, 6}, [][]float64{{4, 5, 6}}},
		{"matrix", [][]float64{{1, 2}, {3, 4}}, [][]float64{{1, 2}, {3, 4}}},
		{"matrix of int32", [][]int32{{1}, {2}}, [][]float64{{1}, {2}}},
		{"any rows", []any{[]int{1, 2}, []float64{3, 4}}, [][]float64{{1, 2}, {3, 4}}},
		{"mixed numbers", []any{1, 2.5, uint8(3)}, [][]float64{{1, 2.5, 3}}},
		{"value scalar", Value{Tag: Long, Int: 6}, [][]float64{{6}}},
		{"value matrix", Value{Tag: Double, IsArray: true, Matrix: [][]float64{{1, 2}}}, [][]float64{{1, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMatrix(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMatrixUnsupported(t *testing.T) {
	for _, in := range []any{
		nil,
		"text",
		map[string]int{"a": 1},
		[]string{"a"},
		[][]string{{"a"}},
		[]any{[]int{1}, "b"},
		struct{}{},
		NullValue(),
	} {
		_, err := ToMatrix(in)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "%#v", in)
	}
}
