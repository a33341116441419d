package backend

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestTensorFromNestedSlices(t *testing.T) {
	b := newTestBackend(t)

	x := mustTensor(t, b, [][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, tensor.Float64, x.Dtype())
	assert.Equal(t, []int{2, 3}, []int(x.Shape()))
	assertValues(t, []float64{1, 2, 3, 4, 5, 6}, x, 0)

	y := mustTensor(t, b, [2][2]int{{1, 2}, {3, 4}})
	assert.Equal(t, tensor.Int, y.Dtype())
	assert.Equal(t, []int{2, 2}, []int(y.Shape()))
}

func TestTensorPromotesMixedLeaves(t *testing.T) {
	b := newTestBackend(t)
	cases := []struct {
		name string
		data interface{}
		want tensor.Dtype
	}{
		{"int and float", []interface{}{1, 2.5, true}, tensor.Float64},
		{"bool and int", []interface{}{true, 3}, tensor.Int},
		{"complex", []interface{}{1, complex(1, 2)}, tensor.Complex128},
		{"bools", []interface{}{true, false}, tensor.Bool},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := mustTensor(t, b, tc.data)
			assert.Equal(t, tc.want, x.Dtype())
		})
	}

	x := mustTensor(t, b, []interface{}{1, 2.5, true})
	assertValues(t, []float64{1, 2.5, 1}, x, 0)
}

func TestTensorRejectsRaggedAndEmptyData(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Tensor([][]int{{1, 2}, {3}})
	assert.True(t, errors.Is(err, ErrRaggedData), "got %v", err)

	_, err = b.Tensor([]interface{}{1, []int{2}})
	assert.True(t, errors.Is(err, ErrRaggedData), "got %v", err)

	_, err = b.Tensor([]float64{})
	assert.True(t, errors.Is(err, ErrShape), "got %v", err)

	_, err = b.Tensor([]string{"a"})
	assert.True(t, errors.Is(err, ErrUnsupportedDtype), "got %v", err)

	_, err = b.Tensor(nil)
	assert.True(t, errors.Is(err, ErrNotTensor), "got %v", err)
}

func TestTensorScalarAndCoercion(t *testing.T) {
	b := newTestBackend(t)

	s := mustTensor(t, b, 3.5)
	assert.Equal(t, 0, s.Dims())
	assertValues(t, []float64{3.5}, s, 0)

	f := mustTensor(t, b, []int{1, 2}, tensor.Float32)
	assert.Equal(t, tensor.Float32, f.Dtype())
	assertValues(t, []float64{1, 2}, f, 0)
}

func TestTensorCopiesInput(t *testing.T) {
	b := newTestBackend(t)
	src := []float64{1, 2, 3}
	x := mustTensor(t, b, src)
	src[0] = 100
	assertValues(t, []float64{1, 2, 3}, x, 0)

	y := mustTensor(t, b, x, tensor.Int)
	assert.Equal(t, tensor.Int, y.Dtype())
	assert.Equal(t, tensor.Float64, x.Dtype())

	c, err := b.Copy(x)
	require.NoError(t, err)
	c.Data().([]float64)[1] = -1
	assertValues(t, []float64{1, 2, 3}, x, 0)
}

func TestZerosOnes(t *testing.T) {
	b := newTestBackend(t)

	z, err := b.Zeros(tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float64, z.Dtype())
	assertValues(t, make([]float64, 6), z, 0)

	o, err := b.Ones(tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, o.Dtype())
	assertValues(t, []float64{1, 1, 1, 1}, o, 0)

	o0, err := b.Ones(tensor.Shape{}, tensor.Int)
	require.NoError(t, err)
	assert.Equal(t, 0, o0.Dims())
	assertValues(t, []float64{1}, o0, 0)

	zl, err := b.ZerosLike(mustTensor(t, b, []int32{4, 5}))
	require.NoError(t, err)
	assert.Equal(t, tensor.Int32, zl.Dtype())
	assert.Equal(t, []int{2}, []int(zl.Shape()))

	_, err = b.Zeros(tensor.Shape{2, 0})
	assert.True(t, errors.Is(err, ErrShape))
}

func TestEye(t *testing.T) {
	b := newTestBackend(t)

	i3, err := b.Eye(3, 3, 0)
	require.NoError(t, err)
	assertValues(t, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, i3, 0)

	up, err := b.Eye(2, 3, 1, tensor.Int)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int, up.Dtype())
	assertValues(t, []float64{0, 1, 0, 0, 0, 1}, up, 0)

	down, err := b.Eye(3, 2, -1)
	require.NoError(t, err)
	assertValues(t, []float64{0, 0, 1, 0, 0, 1}, down, 0)
}

func TestDiag(t *testing.T) {
	b := newTestBackend(t)

	m, err := b.Diag(mustTensor(t, b, []float64{1, 2}), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, []int(m.Shape()))
	assertValues(t, []float64{0, 1, 0, 0, 0, 2, 0, 0, 0}, m, 0)

	sq := mustTensor(t, b, [][]int{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})
	d, err := b.Diag(sq, 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int, d.Dtype())
	assertValues(t, []float64{1, 5, 9}, d, 0)

	lower, err := b.Diag(sq, -1)
	require.NoError(t, err)
	assertValues(t, []float64{4, 8}, lower, 0)

	_, err = b.Diag(sq, 3)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestArange(t *testing.T) {
	b := newTestBackend(t)

	up, err := b.Arange(0, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int, up.Dtype())
	assertValues(t, []float64{0, 2, 4}, up, 0)

	down, err := b.Arange(5, 0, -2, tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, down.Dtype())
	assertValues(t, []float64{5, 3, 1}, down, 0)

	_, err = b.Arange(0, 5, 0)
	assert.True(t, errors.Is(err, ErrShape))
	_, err = b.Arange(5, 0, 1)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestIsTensorAndToSlice(t *testing.T) {
	b := newTestBackend(t)
	x := mustTensor(t, b, [][]int64{{1, 2}, {3, 4}})

	assert.True(t, b.IsTensor(x))
	assert.False(t, b.IsTensor([]int64{1}))
	assert.False(t, b.IsTensor(nil))

	s, err := b.ToSlice(x)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, s)

	s.([]int64)[0] = 9
	assertValues(t, []float64{1, 2, 3, 4}, x, 0)
}
