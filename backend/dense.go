package backend

import (
	"reflect"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// asDense asserts t is a *tensor.Dense and materializes views and lazy
// transposes so that Data() is laid out in row-major order.
func asDense(t tensor.Tensor) (*tensor.Dense, error) {
	if t == nil {
		return nil, errors.Wrap(ErrNotTensor, "nil tensor")
	}
	d, ok := t.(*tensor.Dense)
	if !ok {
		return nil, errors.Wrapf(ErrNotTensor, "%T", t)
	}
	if d.IsMaterializable() {
		if m, ok := d.Materialize().(*tensor.Dense); ok {
			d = m
		}
	}
	return d, nil
}

// backing returns a fresh row-major copy of d's elements. Scalars come
// back as a one-element slice.
func backing(d *tensor.Dense) interface{} {
	if d.IsScalar() {
		s := reflect.MakeSlice(reflect.SliceOf(d.Dtype().Type), 1, 1)
		s.Index(0).Set(reflect.ValueOf(d.Data()))
		return s.Interface()
	}
	src := reflect.ValueOf(d.Data())
	n := d.Shape().TotalSize()
	out := reflect.MakeSlice(src.Type(), n, n)
	reflect.Copy(out, src)
	return out.Interface()
}

// float64s returns d's elements as float64s.
func float64s(d *tensor.Dense) ([]float64, error) {
	return toFloat64s(backing(d))
}

// wrap builds a tensor on the backend's engine from a flat backing slice.
// An empty shape yields a 0-d tensor.
func (b *Backend) wrap(data interface{}, shape tensor.Shape) (*tensor.Dense, error) {
	n := reflect.ValueOf(data).Len()
	if len(shape) == 0 {
		if n != 1 {
			return nil, errors.Wrapf(ErrShape, "scalar from %d elements", n)
		}
		return tensor.New(tensor.WithEngine(b.eng), tensor.FromScalar(reflect.ValueOf(data).Index(0).Interface())), nil
	}
	for _, d := range shape {
		if d <= 0 {
			return nil, errors.Wrapf(ErrShape, "zero-size shape %v", shape)
		}
	}
	if n != shape.TotalSize() {
		return nil, errors.Wrapf(ErrShape, "%d elements into shape %v", n, shape)
	}
	return tensor.New(
		tensor.WithEngine(b.eng),
		tensor.WithShape(shape.Clone()...),
		tensor.WithBacking(data),
	), nil
}

// wrapFloats is wrap for float64 data converted to dtype dt.
func (b *Backend) wrapFloats(vals []float64, shape tensor.Shape, dt tensor.Dtype) (*tensor.Dense, error) {
	data, err := fromFloat64s(vals, dt)
	if err != nil {
		return nil, err
	}
	return b.wrap(data, shape)
}

// reshaped copies t's elements into a new tensor of the given shape.
// Engine results are passed through here so that callers always see the
// shape the toolkit expects (gorgonia collapses some reductions to 0-d
// or keeps row vectors as matrices).
func (b *Backend) reshaped(t tensor.Tensor, shape tensor.Shape) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	return b.wrap(backing(d), shape)
}

// cast returns a copy of d converted to dtype dt.
func (b *Backend) cast(d *tensor.Dense, dt tensor.Dtype) (*tensor.Dense, error) {
	data := backing(d)
	if d.Dtype() != dt {
		var err error
		if data, err = convertBacking(data, d.Dtype(), dt); err != nil {
			return nil, err
		}
	}
	return b.wrap(data, d.Shape())
}

// sameShape compares shapes dimension by dimension. tensor.Shape.Eq
// treats (n) and (1, n) as equal, which is wrong for broadcasting.
func sameShape(a, b tensor.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// resolveAxis maps a possibly negative axis into [0, ndim).
func resolveAxis(axis, ndim int) (int, error) {
	if axis < -ndim || axis >= ndim {
		return 0, errors.Wrapf(ErrAxis, "axis %d for %d dims", axis, ndim)
	}
	if axis < 0 {
		axis += ndim
	}
	return axis, nil
}

// resolveAxes resolves every axis and rejects duplicates.
func resolveAxes(axes []int, ndim int) ([]int, error) {
	out := make([]int, len(axes))
	seen := make(map[int]bool, len(axes))
	for i, a := range axes {
		r, err := resolveAxis(a, ndim)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			return nil, errors.Wrapf(ErrAxis, "repeated axis %d", a)
		}
		seen[r] = true
		out[i] = r
	}
	return out, nil
}

// rowMajorStrides returns element strides for a row-major layout.
func rowMajorStrides(shape tensor.Shape) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// unravel writes the coordinates of flat index i into coord.
func unravel(i int, shape tensor.Shape, coord []int) {
	for k := len(shape) - 1; k >= 0; k-- {
		coord[k] = i % shape[k]
		i /= shape[k]
	}
}

func gatherSlice[T any](src []T, n int, idx func(int) int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = src[idx(i)]
	}
	return out
}

// gather builds a new backing of length n where element i is
// data[idx(i)]. Index arithmetic for flips, permutations and broadcasts
// is expressed through it.
func gather(data interface{}, n int, idx func(int) int) (interface{}, error) {
	switch s := data.(type) {
	case []float64:
		return gatherSlice(s, n, idx), nil
	case []float32:
		return gatherSlice(s, n, idx), nil
	case []int:
		return gatherSlice(s, n, idx), nil
	case []int64:
		return gatherSlice(s, n, idx), nil
	case []int32:
		return gatherSlice(s, n, idx), nil
	case []uint8:
		return gatherSlice(s, n, idx), nil
	case []bool:
		return gatherSlice(s, n, idx), nil
	case []complex128:
		return gatherSlice(s, n, idx), nil
	case []complex64:
		return gatherSlice(s, n, idx), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedDtype, "%T", data)
}
