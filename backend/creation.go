package backend

import (
	"math"
	"reflect"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Tensor builds a new tensor from data, optionally coerced to dtype.
//
// data may be an existing tensor (copied), a Go scalar, a flat typed
// slice or arbitrarily nested slices/arrays. Nested data must be
// rectangular. When leaves mix kinds they are promoted
// bool < int < float < complex.
func (b *Backend) Tensor(data interface{}, dtype ...tensor.Dtype) (*tensor.Dense, error) {
	if t, ok := data.(tensor.Tensor); ok {
		d, err := asDense(t)
		if err != nil {
			return nil, err
		}
		return b.cast(d, dtypeOr(dtype, d.Dtype()))
	}
	if data == nil {
		return nil, errors.Wrap(ErrNotTensor, "nil data")
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		if dt := (tensor.Dtype{Type: v.Type().Elem()}); isSupported(dt) {
			if v.Len() == 0 {
				return nil, errors.Wrap(ErrShape, "empty data")
			}
			out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
			reflect.Copy(out, v)
			d, err := b.wrap(out.Interface(), tensor.Shape{v.Len()})
			if err != nil || len(dtype) == 0 || dtype[0] == dt {
				return d, err
			}
			return b.cast(d, dtype[0])
		}
	}

	f := &flattener{}
	if err := f.walk(v, 0); err != nil {
		return nil, err
	}
	dt := dtypeOr(dtype, f.dtype())
	var out interface{}
	var err error
	if isComplex(dt) {
		out, err = fromComplex128s(f.vals, dt)
	} else {
		re := make([]float64, len(f.vals))
		for i, c := range f.vals {
			re[i] = real(c)
		}
		out, err = fromFloat64s(re, dt)
	}
	if err != nil {
		return nil, err
	}
	return b.wrap(out, f.shape)
}

// flattener walks nested slices in row-major order, recording the shape
// on first visit of each depth and checking every later visit against it.
type flattener struct {
	shape    tensor.Shape
	leafDims int
	leafType reflect.Type
	mixed    bool
	maxKind  int
	vals     []complex128
}

func (f *flattener) walk(v reflect.Value, depth int) error {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return errors.Wrap(ErrRaggedData, "nil element")
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if f.leafDims > 0 && depth >= f.leafDims {
			return errors.Wrapf(ErrRaggedData, "unexpected nesting at depth %d", depth)
		}
		n := v.Len()
		if n == 0 {
			return errors.Wrap(ErrShape, "empty data")
		}
		if depth == len(f.shape) {
			f.shape = append(f.shape, n)
		} else if f.shape[depth] != n {
			return errors.Wrapf(ErrRaggedData, "length %d at depth %d, want %d", n, depth, f.shape[depth])
		}
		for i := 0; i < n; i++ {
			if err := f.walk(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if f.leafDims == 0 && len(f.vals) == 0 {
		f.leafDims = depth
	} else if depth != f.leafDims {
		return errors.Wrapf(ErrRaggedData, "scalar at depth %d, want %d", depth, f.leafDims)
	}
	c, kind, err := leafValue(v)
	if err != nil {
		return err
	}
	if f.leafType == nil && !f.mixed {
		f.leafType = v.Type()
	} else if f.leafType != v.Type() {
		f.mixed = true
		f.leafType = nil
	}
	if kind > f.maxKind {
		f.maxKind = kind
	}
	f.vals = append(f.vals, c)
	return nil
}

// dtype picks the dtype of the flattened data: the leaf type itself when
// it is uniform and supported, otherwise the widest kind seen.
func (f *flattener) dtype() tensor.Dtype {
	if f.leafType != nil {
		if dt := (tensor.Dtype{Type: f.leafType}); isSupported(dt) {
			return dt
		}
	}
	switch f.maxKind {
	case 0:
		return tensor.Bool
	case 1:
		return tensor.Int
	case 2:
		return tensor.Float64
	}
	return tensor.Complex128
}

func leafValue(v reflect.Value) (complex128, int, error) {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1, 0, nil
		}
		return 0, 0, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return complex(float64(v.Int()), 0), 1, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return complex(float64(v.Uint()), 0), 1, nil
	case reflect.Float32, reflect.Float64:
		return complex(v.Float(), 0), 2, nil
	case reflect.Complex64, reflect.Complex128:
		return v.Complex(), 3, nil
	}
	return 0, 0, errors.Wrapf(ErrUnsupportedDtype, "element of type %v", v.Type())
}

func zeroBacking(dt tensor.Dtype, n int) interface{} {
	return reflect.MakeSlice(reflect.SliceOf(dt.Type), n, n).Interface()
}

// Zeros returns a zero-filled tensor. The dtype defaults to the backend's.
func (b *Backend) Zeros(shape tensor.Shape, dtype ...tensor.Dtype) (*tensor.Dense, error) {
	dt := dtypeOr(dtype, b.dtype)
	if !isSupported(dt) {
		return nil, errors.Wrapf(ErrUnsupportedDtype, "%v", dt)
	}
	return b.wrap(zeroBacking(dt, shape.TotalSize()), shape)
}

// Ones returns a tensor filled with ones.
func (b *Backend) Ones(shape tensor.Shape, dtype ...tensor.Dtype) (_ *tensor.Dense, err error) {
	defer guard("Ones", &err)
	dt := dtypeOr(dtype, b.dtype)
	if !isSupported(dt) {
		return nil, errors.Wrapf(ErrUnsupportedDtype, "%v", dt)
	}
	if len(shape) == 0 {
		return b.wrapFloats([]float64{1}, shape, dt)
	}
	return b.reshaped(tensor.Ones(dt, shape.Clone()...), shape)
}

// ZerosLike returns zeros with t's shape and, unless overridden, dtype.
func (b *Backend) ZerosLike(t tensor.Tensor, dtype ...tensor.Dtype) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	return b.Zeros(d.Shape().Clone(), dtypeOr(dtype, d.Dtype()))
}

// Eye returns an n x m matrix with ones on the k-th diagonal.
func (b *Backend) Eye(n, m, k int, dtype ...tensor.Dtype) (*tensor.Dense, error) {
	if n <= 0 || m <= 0 {
		return nil, errors.Wrapf(ErrShape, "eye(%d, %d)", n, m)
	}
	vals := make([]float64, n*m)
	for i := 0; i < n; i++ {
		if j := i + k; j >= 0 && j < m {
			vals[i*m+j] = 1
		}
	}
	return b.wrapFloats(vals, tensor.Shape{n, m}, dtypeOr(dtype, b.dtype))
}

// Diag builds a square matrix with a 1-d input on its k-th diagonal, or
// extracts the k-th diagonal of a 2-d input.
func (b *Backend) Diag(t tensor.Tensor, k int) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	src := backing(d)
	switch d.Dims() {
	case 1:
		n := d.Shape()[0]
		size := n + absInt(k)
		out := reflect.MakeSlice(reflect.ValueOf(src).Type(), size*size, size*size)
		sv := reflect.ValueOf(src)
		for i := 0; i < n; i++ {
			r, c := i, i+k
			if k < 0 {
				r, c = i-k, i
			}
			out.Index(r*size + c).Set(sv.Index(i))
		}
		return b.wrap(out.Interface(), tensor.Shape{size, size})
	case 2:
		rows, cols := d.Shape()[0], d.Shape()[1]
		r0, c0 := 0, k
		if k < 0 {
			r0, c0 = -k, 0
		}
		n := minInt(rows-r0, cols-c0)
		if n <= 0 {
			return nil, errors.Wrapf(ErrShape, "diagonal %d of %v is empty", k, d.Shape())
		}
		data, err := gather(src, n, func(i int) int { return (r0+i)*cols + c0 + i })
		if err != nil {
			return nil, err
		}
		return b.wrap(data, tensor.Shape{n})
	}
	return nil, errors.Wrapf(ErrShape, "diag of %d-d input", d.Dims())
}

// Arange returns evenly spaced integers in [start, stop).
func (b *Backend) Arange(start, stop, step int, dtype ...tensor.Dtype) (*tensor.Dense, error) {
	if step == 0 {
		return nil, errors.Wrap(ErrShape, "arange step is zero")
	}
	n := int(math.Ceil(float64(stop-start) / float64(step)))
	if n <= 0 {
		return nil, errors.Wrapf(ErrShape, "arange(%d, %d, %d) is empty", start, stop, step)
	}
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(start + i*step)
	}
	return b.wrapFloats(vals, tensor.Shape{n}, dtypeOr(dtype, tensor.Int))
}

// Copy returns a deep copy of t.
func (b *Backend) Copy(t tensor.Tensor) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	return b.wrap(backing(d), d.Shape())
}

// IsTensor reports whether x is a tensor the backend can operate on.
func (b *Backend) IsTensor(x interface{}) bool {
	_, ok := x.(*tensor.Dense)
	return ok
}

// ToSlice returns a flat row-major copy of t's elements as a typed slice
// ([]float64, []int, ...).
func (b *Backend) ToSlice(t tensor.Tensor) (interface{}, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	return backing(d), nil
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
