package backend

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestTransposeReversesAxes(t *testing.T) {
	for name, b := range engines(t) {
		t.Run(name, func(t *testing.T) {
			x := mustReshape(t, b, mustTensor(t, b, seq(24)), 2, 3, 4)

			xt, err := b.Transpose(x)
			require.NoError(t, err)
			assert.Equal(t, []int{4, 3, 2}, []int(xt.Shape()))

			got := values(t, xt)
			for k := 0; k < 4; k++ {
				for j := 0; j < 3; j++ {
					for i := 0; i < 2; i++ {
						assert.Equal(t, float64(i*12+j*4+k), got[k*6+j*2+i])
					}
				}
			}

			back, err := b.Transpose(xt)
			require.NoError(t, err)
			assert.Equal(t, []int{2, 3, 4}, []int(back.Shape()))
			assert.Equal(t, values(t, x), values(t, back))
		})
	}
}

func TestTransposeWithAxes(t *testing.T) {
	b := newTestBackend(t)
	x := mustReshape(t, b, mustTensor(t, b, seq(6)), 1, 2, 3)

	xt, err := b.Transpose(x, 0, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, []int(xt.Shape()))
	assertValues(t, []float64{0, 3, 1, 4, 2, 5}, xt, 0)

	neg, err := b.Transpose(x, 0, -1, -2)
	require.NoError(t, err)
	assert.Equal(t, values(t, xt), values(t, neg))

	_, err = b.Transpose(x, 0, 1)
	assert.True(t, errors.Is(err, ErrAxis))
	_, err = b.Transpose(x, 0, 1, 1)
	assert.True(t, errors.Is(err, ErrAxis))

	v := mustTensor(t, b, []float64{1, 2, 3})
	vt, err := b.Transpose(v)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, []int(vt.Shape()))
}

func TestReshape(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, seq(24))

	r, err := b.Reshape(x, 4, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 6}, []int(r.Shape()))
	assert.Equal(t, 2, b.Ndim(r))
	assert.Equal(t, tensor.Shape{4, 6}, b.Shape(r))

	_, err = b.Reshape(x, 5, -1)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = b.Reshape(x, -1, -1)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = b.Reshape(x, 2, 3)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestReshapeColumnMajor(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, []float64{1, 2, 3, 4, 5, 6})

	f, err := b.ReshapeOrder(x, OrderF, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, []int(f.Shape()))
	assertValues(t, []float64{1, 3, 5, 2, 4, 6}, f, 0)

	// Reading back in F order restores the input sequence.
	flat, err := b.ReshapeOrder(f, OrderF, 6)
	require.NoError(t, err)
	assertValues(t, []float64{1, 2, 3, 4, 5, 6}, flat, 0)
}

func TestMoveaxis(t *testing.T) {
	b := newTestBackend(t)
	x := mustReshape(t, b, mustTensor(t, b, seq(24)), 2, 3, 4)

	m, err := b.Moveaxis(x, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 2}, []int(m.Shape()))

	back, err := b.Moveaxis(m, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, values(t, x), values(t, back))

	_, err = b.Moveaxis(x, 3, 0)
	assert.True(t, errors.Is(err, ErrAxis))
}

func TestConcatenate(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, [][]float64{{1, 2}, {3, 4}})
	y := mustTensor(t, b, [][]float64{{5, 6}, {7, 8}})

	rows, err := b.Concatenate([]tensor.Tensor{x, y}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, []int(rows.Shape()))
	assertValues(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, rows, 0)

	cols, err := b.Concatenate([]tensor.Tensor{x, y}, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, []int(cols.Shape()))
	assertValues(t, []float64{1, 2, 5, 6, 3, 4, 7, 8}, cols, 0)

	mixed, err := b.Concatenate([]tensor.Tensor{mustTensor(t, b, []int{1}), mustTensor(t, b, []float64{2.5})}, 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, mixed.Dtype())
	assertValues(t, []float64{1, 2.5}, mixed, 0)

	// Inputs are left untouched.
	assert.Equal(t, []int{2, 2}, []int(x.Shape()))

	_, err = b.Concatenate([]tensor.Tensor{x, mustTensor(t, b, []float64{1, 2})}, 0)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = b.Concatenate(nil, 0)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestStack(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, []float64{1, 2})
	y := mustTensor(t, b, []float64{3, 4})

	s0, err := b.Stack([]tensor.Tensor{x, y}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, []int(s0.Shape()))
	assertValues(t, []float64{1, 2, 3, 4}, s0, 0)

	s1, err := b.Stack([]tensor.Tensor{x, y}, 1)
	require.NoError(t, err)
	assertValues(t, []float64{1, 3, 2, 4}, s1, 0)

	single, err := b.Stack([]tensor.Tensor{x}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, []int(single.Shape()))

	_, err = b.Stack([]tensor.Tensor{x, mustTensor(t, b, []float64{1, 2, 3})}, 0)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestFlip(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, [][]int{{1, 2}, {3, 4}})

	all, err := b.Flip(x)
	require.NoError(t, err)
	assertValues(t, []float64{4, 3, 2, 1}, all, 0)

	cols, err := b.Flip(x, 1)
	require.NoError(t, err)
	assertValues(t, []float64{2, 1, 4, 3}, cols, 0)

	y := mustReshape(t, b, mustTensor(t, b, seq(24)), 2, 3, 4)
	for _, axes := range [][]int{nil, {0}, {1, 2}, {-1}} {
		once, err := b.Flip(y, axes...)
		require.NoError(t, err)
		twice, err := b.Flip(once, axes...)
		require.NoError(t, err)
		assert.Equal(t, values(t, y), values(t, twice), "axes %v", axes)
	}

	_, err = b.Flip(x, 2)
	assert.True(t, errors.Is(err, ErrAxis))
}

func TestClip(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, []float64{-2, 0.5, 3})

	both, err := b.Clip(x, Bound(-1), Bound(1))
	require.NoError(t, err)
	assertValues(t, []float64{-1, 0.5, 1}, both, 0)

	low, err := b.Clip(x, Bound(-1), nil)
	require.NoError(t, err)
	assertValues(t, []float64{-1, 0.5, 3}, low, 0)
	assertValues(t, []float64{-2, 0.5, 3}, x, 0)

	ints, err := b.Clip(mustTensor(t, b, []int{-5, 5}), Bound(0), nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int, ints.Dtype())
	assertValues(t, []float64{0, 5}, ints, 0)

	_, err = b.Clip(mustTensor(t, b, []complex128{1}), nil, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedDtype))
}

func TestWhere(t *testing.T) {
	b := newTestBackend(t)
	cond := mustTensor(t, b, []bool{true, false, true})
	x := mustTensor(t, b, []float64{1, 2, 3})

	w, err := b.Where(cond, x, 0.0)
	require.NoError(t, err)
	assertValues(t, []float64{1, 0, 3}, w, 0)

	col := mustTensor(t, b, [][]bool{{true}, {false}})
	y := mustTensor(t, b, []float64{-1, -2, -3})
	grid, err := b.Where(col, x, y)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, []int(grid.Shape()))
	assertValues(t, []float64{1, 2, 3, -1, -2, -3}, grid, 0)

	_, err = b.Where(cond, x, mustTensor(t, b, []float64{1, 2}))
	assert.True(t, errors.Is(err, ErrShape))
}
