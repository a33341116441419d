package backend

import (
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

type reduceOpts struct {
	axes     []int
	keepDims bool
	dtype    *tensor.Dtype
}

// ReduceOpt configures a reduction.
type ReduceOpt func(*reduceOpts)

// Along restricts a reduction to the given axes. Without it every axis is
// reduced.
func Along(axes ...int) ReduceOpt {
	return func(o *reduceOpts) { o.axes = append(o.axes, axes...) }
}

// KeepDims keeps reduced axes as size-1 dimensions.
func KeepDims() ReduceOpt {
	return func(o *reduceOpts) { o.keepDims = true }
}

// WithDtype converts the input to dt before accumulating. Max, Min and
// the arg-reductions ignore it.
func WithDtype(dt tensor.Dtype) ReduceOpt {
	return func(o *reduceOpts) { o.dtype = &dt }
}

// reduction is a reduction normalized to a single last-axis reduction of
// a 2-d (outer, inner) matrix.
type reduction struct {
	lanes    *tensor.Dense
	outShape tensor.Shape
	inner    int
}

// prepare moves the reduced axes of d to the end and folds the tensor
// into (outer, inner). Engines only ever see last-axis reductions of
// contiguous matrices, which is the pattern the dispatch engine
// accelerates.
func (b *Backend) prepare(d *tensor.Dense, o reduceOpts) (*reduction, error) {
	shape := d.Shape()
	nd := len(shape)
	var axes []int
	if len(o.axes) == 0 {
		axes = make([]int, nd)
		for i := range axes {
			axes[i] = i
		}
	} else {
		var err error
		if axes, err = resolveAxes(o.axes, nd); err != nil {
			return nil, err
		}
		sort.Ints(axes)
	}
	reduced := make([]bool, nd)
	for _, a := range axes {
		reduced[a] = true
	}

	perm := make([]int, 0, nd)
	outShape := make(tensor.Shape, 0, nd)
	outer, inner := 1, 1
	for i, s := range shape {
		switch {
		case !reduced[i]:
			perm = append(perm, i)
			outShape = append(outShape, s)
			outer *= s
		case o.keepDims:
			outShape = append(outShape, 1)
		}
	}
	for _, a := range axes {
		perm = append(perm, a)
		inner *= shape[a]
	}

	moved, err := b.Transpose(d, perm...)
	if err != nil {
		return nil, err
	}
	lanes, err := b.wrap(backing(moved), tensor.Shape{outer, inner})
	if err != nil {
		return nil, err
	}
	return &reduction{lanes: lanes, outShape: outShape, inner: inner}, nil
}

func (b *Backend) reduceInput(t tensor.Tensor, o reduceOpts, fallback func(tensor.Dtype) tensor.Dtype) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	dt := fallback(d.Dtype())
	if o.dtype != nil {
		dt = *o.dtype
	}
	if dt != d.Dtype() {
		return b.cast(d, dt)
	}
	return d, nil
}

func parseReduceOpts(opts []ReduceOpt) reduceOpts {
	var o reduceOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sameDtype(dt tensor.Dtype) tensor.Dtype { return dt }

// sumDtype accumulates booleans as integers.
func sumDtype(dt tensor.Dtype) tensor.Dtype {
	if dt == tensor.Bool {
		return tensor.Int
	}
	return dt
}

// meanDtype promotes integers and booleans to float64.
func meanDtype(dt tensor.Dtype) tensor.Dtype {
	if isFloat(dt) || isComplex(dt) {
		return dt
	}
	return tensor.Float64
}

// Sum adds elements over the selected axes.
func (b *Backend) Sum(t tensor.Tensor, opts ...ReduceOpt) (_ *tensor.Dense, err error) {
	defer guard("Sum", &err)
	o := parseReduceOpts(opts)
	d, err := b.reduceInput(t, o, sumDtype)
	if err != nil {
		return nil, err
	}
	return b.sum(d, o)
}

func (b *Backend) sum(d *tensor.Dense, o reduceOpts) (*tensor.Dense, error) {
	r, err := b.prepare(d, o)
	if err != nil {
		return nil, err
	}
	var out tensor.Tensor
	if s, ok := b.eng.(tensor.Sumer); ok {
		out, err = s.Sum(r.lanes, 1)
	} else {
		out, err = r.lanes.Sum(1)
	}
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, r.outShape)
}

// Mean averages elements over the selected axes. Integer and boolean
// input is promoted to float64.
func (b *Backend) Mean(t tensor.Tensor, opts ...ReduceOpt) (_ *tensor.Dense, err error) {
	defer guard("Mean", &err)
	o := parseReduceOpts(opts)
	d, err := b.reduceInput(t, o, meanDtype)
	if err != nil {
		return nil, err
	}
	s, err := b.sum(d, o)
	if err != nil {
		return nil, err
	}
	count := d.Shape().TotalSize() / s.Shape().TotalSize()
	return b.Combine("divide", s, float64(count))
}

// Max returns the largest element over the selected axes.
func (b *Backend) Max(t tensor.Tensor, opts ...ReduceOpt) (_ *tensor.Dense, err error) {
	defer guard("Max", &err)
	o := parseReduceOpts(opts)
	o.dtype = nil
	d, err := b.reduceInput(t, o, sameDtype)
	if err != nil {
		return nil, err
	}
	r, err := b.prepare(d, o)
	if err != nil {
		return nil, err
	}
	var out tensor.Tensor
	if m, ok := b.eng.(tensor.Maxer); ok {
		out, err = m.Max(r.lanes, 1)
	} else {
		out, err = r.lanes.Max(1)
	}
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, r.outShape)
}

// Min returns the smallest element over the selected axes.
func (b *Backend) Min(t tensor.Tensor, opts ...ReduceOpt) (_ *tensor.Dense, err error) {
	defer guard("Min", &err)
	o := parseReduceOpts(opts)
	o.dtype = nil
	d, err := b.reduceInput(t, o, sameDtype)
	if err != nil {
		return nil, err
	}
	r, err := b.prepare(d, o)
	if err != nil {
		return nil, err
	}
	var out tensor.Tensor
	if m, ok := b.eng.(tensor.Miner); ok {
		out, err = m.Min(r.lanes, 1)
	} else {
		out, err = r.lanes.Min(1)
	}
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, r.outShape)
}

// Prod multiplies elements over the selected axes.
func (b *Backend) Prod(t tensor.Tensor, opts ...ReduceOpt) (_ *tensor.Dense, err error) {
	defer guard("Prod", &err)
	o := parseReduceOpts(opts)
	d, err := b.reduceInput(t, o, sumDtype)
	if err != nil {
		return nil, err
	}
	fn, one, err := mulFunc(d.Dtype())
	if err != nil {
		return nil, err
	}
	r, err := b.prepare(d, o)
	if err != nil {
		return nil, err
	}
	out, err := r.lanes.Reduce(fn, 1, one)
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, r.outShape)
}

// mulFunc returns a typed multiplication for Dense.Reduce and its
// identity.
func mulFunc(dt tensor.Dtype) (interface{}, interface{}, error) {
	switch dt {
	case tensor.Float64:
		return func(a, b float64) float64 { return a * b }, float64(1), nil
	case tensor.Float32:
		return func(a, b float32) float32 { return a * b }, float32(1), nil
	case tensor.Int:
		return func(a, b int) int { return a * b }, int(1), nil
	case tensor.Int64:
		return func(a, b int64) int64 { return a * b }, int64(1), nil
	case tensor.Int32:
		return func(a, b int32) int32 { return a * b }, int32(1), nil
	case tensor.Uint8:
		return func(a, b uint8) uint8 { return a * b }, uint8(1), nil
	case tensor.Complex128:
		return func(a, b complex128) complex128 { return a * b }, complex128(1), nil
	case tensor.Complex64:
		return func(a, b complex64) complex64 { return a * b }, complex64(1), nil
	}
	return nil, nil, errors.Wrapf(ErrUnsupportedDtype, "prod over %v", dt)
}

// All reports whether every element over the selected axes is non-zero.
func (b *Backend) All(t tensor.Tensor, opts ...ReduceOpt) (*tensor.Dense, error) {
	return b.truth(t, b.Min, opts)
}

// Any reports whether some element over the selected axes is non-zero.
func (b *Backend) Any(t tensor.Tensor, opts ...ReduceOpt) (*tensor.Dense, error) {
	return b.truth(t, b.Max, opts)
}

func (b *Backend) truth(t tensor.Tensor, reduce func(tensor.Tensor, ...ReduceOpt) (*tensor.Dense, error), opts []ReduceOpt) (*tensor.Dense, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	if d, err = b.cast(d, tensor.Bool); err != nil {
		return nil, err
	}
	if d, err = b.cast(d, tensor.Int); err != nil {
		return nil, err
	}
	out, err := reduce(d, opts...)
	if err != nil {
		return nil, err
	}
	return b.cast(out, tensor.Bool)
}

// Argmax returns the index of the largest element along the single axis
// given with Along, or into the flattened tensor when no axis is given.
func (b *Backend) Argmax(t tensor.Tensor, opts ...ReduceOpt) (*tensor.Dense, error) {
	return b.argReduce("Argmax", t, opts, func(d *tensor.Dense, axis int) (tensor.Tensor, error) {
		return tensor.Argmax(d, axis)
	})
}

// Argmin is Argmax for the smallest element.
func (b *Backend) Argmin(t tensor.Tensor, opts ...ReduceOpt) (*tensor.Dense, error) {
	return b.argReduce("Argmin", t, opts, func(d *tensor.Dense, axis int) (tensor.Tensor, error) {
		return tensor.Argmin(d, axis)
	})
}

func (b *Backend) argReduce(op string, t tensor.Tensor, opts []ReduceOpt, fn func(*tensor.Dense, int) (tensor.Tensor, error)) (_ *tensor.Dense, err error) {
	defer guard(op, &err)
	o := parseReduceOpts(opts)
	if len(o.axes) > 1 {
		return nil, errors.Wrapf(ErrAxis, "%s takes one axis, got %v", op, o.axes)
	}
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	if len(o.axes) == 0 {
		flat, err := b.wrap(backing(d), tensor.Shape{d.Shape().TotalSize()})
		if err != nil {
			return nil, err
		}
		out, err := fn(flat, tensor.AllAxes)
		if err != nil {
			return nil, err
		}
		shape := tensor.Shape{}
		if o.keepDims {
			shape = make(tensor.Shape, d.Dims())
			for i := range shape {
				shape[i] = 1
			}
		}
		return b.reshaped(out, shape)
	}
	r, err := b.prepare(d, o)
	if err != nil {
		return nil, err
	}
	out, err := fn(r.lanes, 1)
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, r.outShape)
}
