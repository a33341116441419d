package backend

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestSum(t *testing.T) {
	for name, b := range engines(t) {
		t.Run(name, func(t *testing.T) {
			x := mustTensor(t, b, [][]float64{{1, 2, 3}, {4, 5, 6}})

			total, err := b.Sum(x)
			require.NoError(t, err)
			assert.Equal(t, 0, total.Dims())
			assertValues(t, []float64{21}, total, 1e-12)

			cols, err := b.Sum(x, Along(0))
			require.NoError(t, err)
			assert.Equal(t, []int{3}, []int(cols.Shape()))
			assertValues(t, []float64{5, 7, 9}, cols, 1e-12)

			rows, err := b.Sum(x, Along(-1))
			require.NoError(t, err)
			assertValues(t, []float64{6, 15}, rows, 1e-12)

			kept, err := b.Sum(x, Along(1), KeepDims())
			require.NoError(t, err)
			assert.Equal(t, []int{2, 1}, []int(kept.Shape()))

			all, err := b.Sum(x, KeepDims())
			require.NoError(t, err)
			assert.Equal(t, []int{1, 1}, []int(all.Shape()))
		})
	}
}

func TestSumAcrossSeveralAxes(t *testing.T) {
	b := newTestBackend(t)
	x := mustReshape(t, b, mustTensor(t, b, seq(24)), 2, 3, 4)

	s, err := b.Sum(x, Along(0, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, []int(s.Shape()))
	// x[i, j, k] = 12i + 4j + k summed over i and k.
	want := make([]float64, 3)
	for j := range want {
		for i := 0; i < 2; i++ {
			for k := 0; k < 4; k++ {
				want[j] += float64(12*i + 4*j + k)
			}
		}
	}
	assertValues(t, want, s, 1e-12)

	_, err = b.Sum(x, Along(3))
	assert.True(t, errors.Is(err, ErrAxis))
	_, err = b.Sum(x, Along(1, -2))
	assert.True(t, errors.Is(err, ErrAxis))
}

func TestSumDtypes(t *testing.T) {
	b := newTestBackend(t)

	bools, err := b.Sum(mustTensor(t, b, []bool{true, false, true}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Int, bools.Dtype())
	assertValues(t, []float64{2}, bools, 0)

	f32, err := b.Sum(mustTensor(t, b, []int{1, 2}), WithDtype(tensor.Float32))
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, f32.Dtype())
	assertValues(t, []float64{3}, f32, 0)
}

func TestMean(t *testing.T) {
	b := newTestBackend(t)

	m, err := b.Mean(mustTensor(t, b, []int{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, m.Dtype())
	assert.Equal(t, 0, m.Dims())
	assertValues(t, []float64{2.5}, m, 1e-12)

	x := mustTensor(t, b, [][]float64{{1, 2, 3}, {4, 5, 6}})
	cols, err := b.Mean(x, Along(0))
	require.NoError(t, err)
	assertValues(t, []float64{2.5, 3.5, 4.5}, cols, 1e-12)

	rows, err := b.Mean(x, Along(1), KeepDims())
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, []int(rows.Shape()))
	assertValues(t, []float64{2, 5}, rows, 1e-12)

	f32, err := b.Mean(mustTensor(t, b, []float32{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, f32.Dtype())
}

func TestProd(t *testing.T) {
	b := newTestBackend(t)

	p, err := b.Prod(mustTensor(t, b, []int{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Int, p.Dtype())
	assertValues(t, []float64{24}, p, 0)

	rows, err := b.Prod(mustTensor(t, b, [][]float64{{1, 2}, {3, 4}}), Along(1))
	require.NoError(t, err)
	assertValues(t, []float64{2, 12}, rows, 1e-12)
}

func TestMaxMin(t *testing.T) {
	for name, b := range engines(t) {
		t.Run(name, func(t *testing.T) {
			x := mustTensor(t, b, [][]float64{{1, 9, 2}, {7, 0, 3}})

			mx, err := b.Max(x)
			require.NoError(t, err)
			assertValues(t, []float64{9}, mx, 0)

			mn, err := b.Min(x, Along(0))
			require.NoError(t, err)
			assertValues(t, []float64{1, 0, 2}, mn, 0)

			rows, err := b.Max(x, Along(1), KeepDims())
			require.NoError(t, err)
			assert.Equal(t, []int{2, 1}, []int(rows.Shape()))
			assertValues(t, []float64{9, 7}, rows, 0)
		})
	}
}

func TestAllAny(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, [][]bool{{true, false}, {true, true}})

	all, err := b.All(x, Along(1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Bool, all.Dtype())
	assert.Equal(t, []bool{false, true}, all.Data())

	some, err := b.Any(x, Along(0))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, some.Data())

	everything, err := b.All(mustTensor(t, b, []float64{1, 2, 0.5}))
	require.NoError(t, err)
	assert.Equal(t, true, everything.Data())
}

func TestArgmaxArgmin(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, [][]float64{{1, 5, 2}, {7, 0, 3}})

	rows, err := b.Argmax(x, Along(1))
	require.NoError(t, err)
	assert.Equal(t, tensor.Int, rows.Dtype())
	assertValues(t, []float64{1, 0}, rows, 0)

	cols, err := b.Argmin(x, Along(0))
	require.NoError(t, err)
	assertValues(t, []float64{0, 1, 0}, cols, 0)

	flat, err := b.Argmax(x)
	require.NoError(t, err)
	assert.Equal(t, 0, flat.Dims())
	assertValues(t, []float64{3}, flat, 0)

	kept, err := b.Argmin(x, KeepDims())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, []int(kept.Shape()))
	assertValues(t, []float64{4}, kept, 0)

	_, err = b.Argmax(x, Along(0, 1))
	assert.True(t, errors.Is(err, ErrAxis))
}
