package backend

import (
	"math"
	"reflect"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Order selects how elements are read and written by ReshapeOrder.
type Order int

const (
	// OrderC is row-major order, the default for Reshape.
	OrderC Order = iota
	// OrderF is column-major order.
	OrderF
)

// Shape returns a copy of t's shape.
func (b *Backend) Shape(t tensor.Tensor) tensor.Shape {
	return t.Shape().Clone()
}

// Ndim returns the number of dimensions of t.
func (b *Backend) Ndim(t tensor.Tensor) int {
	return t.Dims()
}

// inferShape resolves a single -1 entry against size elements.
func inferShape(shape []int, size int) (tensor.Shape, error) {
	out := make(tensor.Shape, len(shape))
	infer := -1
	known := 1
	for i, s := range shape {
		switch {
		case s == -1 && infer < 0:
			infer = i
		case s <= 0:
			return nil, errors.Wrapf(ErrShape, "invalid dimension %d in %v", s, shape)
		default:
			known *= s
		}
		out[i] = s
	}
	if infer >= 0 {
		if size%known != 0 {
			return nil, errors.Wrapf(ErrShape, "cannot infer %v for %d elements", shape, size)
		}
		out[infer] = size / known
	}
	if out.TotalSize() != size {
		return nil, errors.Wrapf(ErrShape, "cannot reshape %d elements into %v", size, shape)
	}
	return out, nil
}

// Reshape returns t's elements in a new row-major shape. One dimension
// may be -1 and is inferred.
func (b *Backend) Reshape(t tensor.Tensor, shape ...int) (*tensor.Dense, error) {
	return b.ReshapeOrder(t, OrderC, shape...)
}

// ReshapeOrder is Reshape with an explicit element order.
func (b *Backend) ReshapeOrder(t tensor.Tensor, order Order, shape ...int) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	out, err := inferShape(shape, d.Shape().TotalSize())
	if err != nil {
		return nil, err
	}
	if order == OrderC {
		return b.wrap(backing(d), out)
	}

	// Column-major: read t in F order (the C order of its full transpose),
	// lay the data out in the reversed target shape and transpose back.
	td, err := b.Transpose(d)
	if err != nil {
		return nil, err
	}
	rev := make(tensor.Shape, len(out))
	for i, s := range out {
		rev[len(out)-1-i] = s
	}
	r, err := b.wrap(backing(td), rev)
	if err != nil {
		return nil, err
	}
	return b.Transpose(r)
}

// Transpose permutes the axes of t. Without axes the order of all axes
// is reversed.
func (b *Backend) Transpose(t tensor.Tensor, axes ...int) (_ *tensor.Dense, err error) {
	defer guard("Transpose", &err)
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	nd := d.Dims()
	perm := make([]int, nd)
	if len(axes) == 0 {
		for i := range perm {
			perm[i] = nd - 1 - i
		}
	} else {
		if len(axes) != nd {
			return nil, errors.Wrapf(ErrAxis, "transpose axes %v for %d dims", axes, nd)
		}
		if perm, err = resolveAxes(axes, nd); err != nil {
			return nil, err
		}
	}

	shape := d.Shape()
	outShape := make(tensor.Shape, nd)
	identity := true
	for i, p := range perm {
		outShape[i] = shape[p]
		identity = identity && p == i
	}
	if nd < 2 || identity {
		return b.wrap(backing(d), outShape)
	}

	out, err := tensor.Transpose(d, perm...)
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, outShape)
}

// Moveaxis moves axis src of t to position dst, keeping the order of the
// remaining axes.
func (b *Backend) Moveaxis(t tensor.Tensor, src, dst int) (*tensor.Dense, error) {
	nd := t.Dims()
	s, err := resolveAxis(src, nd)
	if err != nil {
		return nil, err
	}
	dd, err := resolveAxis(dst, nd)
	if err != nil {
		return nil, err
	}
	return b.Transpose(t, moveaxisPerm(nd, s, dd)...)
}

func moveaxisPerm(nd, src, dst int) []int {
	rest := make([]int, 0, nd)
	for i := 0; i < nd; i++ {
		if i != src {
			rest = append(rest, i)
		}
	}
	perm := make([]int, 0, nd)
	perm = append(perm, rest[:dst]...)
	perm = append(perm, src)
	return append(perm, rest[dst:]...)
}

// Concatenate joins tensors along an existing axis. Dtypes are promoted
// to a common dtype.
func (b *Backend) Concatenate(ts []tensor.Tensor, axis int) (*tensor.Dense, error) {
	if len(ts) == 0 {
		return nil, errors.Wrap(ErrShape, "concatenate of no tensors")
	}
	ds := make([]*tensor.Dense, len(ts))
	var dt tensor.Dtype
	for i, t := range ts {
		d, err := asDense(t)
		if err != nil {
			return nil, err
		}
		ds[i] = d
		if i == 0 {
			dt = d.Dtype()
		} else {
			dt = promote(dt, d.Dtype())
		}
	}
	first := ds[0].Shape()
	nd := len(first)
	if nd == 0 {
		return nil, errors.Wrap(ErrShape, "zero-dimensional tensors cannot be concatenated")
	}
	ax, err := resolveAxis(axis, nd)
	if err != nil {
		return nil, err
	}

	outShape := first.Clone()
	outShape[ax] = 0
	var joined reflect.Value
	for _, d := range ds {
		s := d.Shape()
		if len(s) != nd {
			return nil, errors.Wrapf(ErrShape, "concatenate %v with %v", first, s)
		}
		for k := range s {
			if k != ax && s[k] != first[k] {
				return nil, errors.Wrapf(ErrShape, "concatenate %v with %v along %d", first, s, ax)
			}
		}
		outShape[ax] += s[ax]

		if d.Dtype() != dt {
			if d, err = b.cast(d, dt); err != nil {
				return nil, err
			}
		}
		// Bring the joined axis to the front so every part is a
		// contiguous block of the output.
		if ax != 0 {
			if d, err = b.Transpose(d, moveaxisPerm(nd, ax, 0)...); err != nil {
				return nil, err
			}
		}
		part := reflect.ValueOf(backing(d))
		if !joined.IsValid() {
			joined = part
		} else {
			joined = reflect.AppendSlice(joined, part)
		}
	}

	front := make(tensor.Shape, 0, nd)
	front = append(front, outShape[ax])
	for k := range outShape {
		if k != ax {
			front = append(front, outShape[k])
		}
	}
	out, err := b.wrap(joined.Interface(), front)
	if err != nil {
		return nil, err
	}
	if ax == 0 {
		return out, nil
	}
	return b.Transpose(out, moveaxisPerm(nd, 0, ax)...)
}

// Stack joins tensors of identical shape along a new axis.
func (b *Backend) Stack(ts []tensor.Tensor, axis int) (*tensor.Dense, error) {
	if len(ts) == 0 {
		return nil, errors.Wrap(ErrShape, "stack of no tensors")
	}
	if ts[0] == nil {
		return nil, errors.Wrap(ErrNotTensor, "nil tensor")
	}
	first := ts[0].Shape()
	ax, err := resolveAxis(axis, len(first)+1)
	if err != nil {
		return nil, err
	}
	expanded := make([]tensor.Tensor, len(ts))
	for i, t := range ts {
		d, err := asDense(t)
		if err != nil {
			return nil, err
		}
		if !sameShape(d.Shape(), first) {
			return nil, errors.Wrapf(ErrShape, "stack %v with %v", first, d.Shape())
		}
		shape := make(tensor.Shape, 0, len(first)+1)
		shape = append(shape, first[:ax]...)
		shape = append(shape, 1)
		shape = append(shape, first[ax:]...)
		if expanded[i], err = b.wrap(backing(d), shape); err != nil {
			return nil, err
		}
	}
	return b.Concatenate(expanded, ax)
}

// Flip reverses the order of elements along the given axes, or along
// every axis when none are given.
func (b *Backend) Flip(t tensor.Tensor, axes ...int) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	shape := d.Shape()
	nd := len(shape)
	flip := make([]bool, nd)
	if len(axes) == 0 {
		for i := range flip {
			flip[i] = true
		}
	} else {
		resolved, err := resolveAxes(axes, nd)
		if err != nil {
			return nil, err
		}
		for _, a := range resolved {
			flip[a] = true
		}
	}
	if nd == 0 {
		return b.wrap(backing(d), shape)
	}

	strides := rowMajorStrides(shape)
	coord := make([]int, nd)
	data, err := gather(backing(d), shape.TotalSize(), func(i int) int {
		unravel(i, shape, coord)
		at := 0
		for k, c := range coord {
			if flip[k] {
				c = shape[k] - 1 - c
			}
			at += c * strides[k]
		}
		return at
	})
	if err != nil {
		return nil, err
	}
	return b.wrap(data, shape)
}

// Bound returns a pointer to v for use as a Clip bound.
func Bound(v float64) *float64 { return &v }

// Clip limits the values of t to [lo, hi]. A nil bound leaves that side
// unbounded.
func (b *Backend) Clip(t tensor.Tensor, lo, hi *float64) (_ *tensor.Dense, err error) {
	defer guard("Clip", &err)
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	dt := d.Dtype()
	if isComplex(dt) || dt == tensor.Bool {
		return nil, errors.Wrapf(ErrUnsupportedDtype, "clip over %v", dt)
	}
	low, err := boundValue(lo, math.Inf(-1), dt)
	if err != nil {
		return nil, err
	}
	high, err := boundValue(hi, math.Inf(1), dt)
	if err != nil {
		return nil, err
	}
	out, err := tensor.Clamp(d, low, high)
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, d.Shape())
}

// boundValue converts a clip bound to a scalar of dtype dt. Infinite
// bounds saturate to the limits of integer dtypes.
func boundValue(v *float64, unbounded float64, dt tensor.Dtype) (interface{}, error) {
	x := unbounded
	if v != nil {
		x = *v
	}
	if !isFloat(dt) {
		lo, hi := intLimits(dt)
		x = math.Max(lo, math.Min(hi, x))
	}
	data, err := fromFloat64s([]float64{x}, dt)
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(data).Index(0).Interface(), nil
}

func intLimits(dt tensor.Dtype) (float64, float64) {
	switch dt {
	case tensor.Uint8:
		return 0, math.MaxUint8
	case tensor.Int32:
		return math.MinInt32, math.MaxInt32
	}
	// float64 cannot hold MaxInt64 exactly; stay one ulp inside it.
	return math.MinInt64, math.Nextafter(math.MaxInt64, 0)
}

// Where picks elements from x where cond is true (non-zero) and from y
// elsewhere. All three are broadcast against each other.
func (b *Backend) Where(cond tensor.Tensor, x, y interface{}) (_ *tensor.Dense, err error) {
	defer guard("Where", &err)
	cd, err := asDense(cond)
	if err != nil {
		return nil, err
	}
	xd, yd, err := b.operands(x, y)
	if err != nil {
		return nil, err
	}
	shape, err := broadcastShape(xd.Shape(), yd.Shape())
	if err != nil {
		return nil, err
	}
	if shape, err = broadcastShape(shape, cd.Shape()); err != nil {
		return nil, err
	}
	if cd, err = b.broadcastTo(cd, shape); err != nil {
		return nil, err
	}
	if xd, err = b.broadcastTo(xd, shape); err != nil {
		return nil, err
	}
	if yd, err = b.broadcastTo(yd, shape); err != nil {
		return nil, err
	}
	mask, err := float64s(cd)
	if err != nil {
		return nil, err
	}
	n := shape.TotalSize()
	both := reflect.AppendSlice(reflect.ValueOf(backing(xd)), reflect.ValueOf(backing(yd))).Interface()
	data, err := gather(both, n, func(i int) int {
		if mask[i] != 0 {
			return i
		}
		return n + i
	})
	if err != nil {
		return nil, err
	}
	return b.wrap(data, shape)
}
