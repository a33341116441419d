package backend

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// UnaryFunc is an elementwise operation with the signature of the
// gorgonia.org/tensor unary API (tensor.Exp, tensor.Sqrt, ...).
type UnaryFunc func(a tensor.Tensor, opts ...tensor.FuncOpt) (tensor.Tensor, error)

// BinaryFunc is an elementwise operation with the signature of the
// gorgonia.org/tensor binary API (tensor.Add, tensor.Lt, ...).
type BinaryFunc func(a, b interface{}, opts ...tensor.FuncOpt) (tensor.Tensor, error)

// floatMap lifts a pair of scalar functions into a UnaryFunc that runs
// through the engine's Map. Non-float input is promoted to float64.
func floatMap(f64 func(float64) float64, f32 func(float32) float32) UnaryFunc {
	return func(a tensor.Tensor, opts ...tensor.FuncOpt) (tensor.Tensor, error) {
		d, err := asDense(a)
		if err != nil {
			return nil, err
		}
		switch d.Dtype() {
		case tensor.Float64:
			return d.Apply(f64, opts...)
		case tensor.Float32:
			return d.Apply(f32, opts...)
		case tensor.Complex64, tensor.Complex128:
			return nil, errors.Wrapf(ErrUnsupportedDtype, "real map over %v", d.Dtype())
		}
		vals, err := float64s(d)
		if err != nil {
			return nil, err
		}
		f := tensor.New(tensor.WithEngine(d.Engine()), tensor.WithShape(d.Shape().Clone()...), tensor.WithBacking(vals))
		if d.IsScalar() {
			f = tensor.New(tensor.WithEngine(d.Engine()), tensor.FromScalar(vals[0]))
		}
		return f.Apply(f64, opts...)
	}
}

func conj(a tensor.Tensor, opts ...tensor.FuncOpt) (tensor.Tensor, error) {
	d, err := asDense(a)
	if err != nil {
		return nil, err
	}
	switch d.Dtype() {
	case tensor.Complex128:
		return d.Apply(cmplx.Conj, opts...)
	case tensor.Complex64:
		return d.Apply(func(c complex64) complex64 { return complex64(cmplx.Conj(complex128(c))) }, opts...)
	}
	return d.Clone().(*tensor.Dense), nil
}

func buildUnary() map[string]UnaryFunc {
	return map[string]UnaryFunc{
		"exp":        tensor.Exp,
		"log":        tensor.Log,
		"log2":       tensor.Log2,
		"log10":      tensor.Log10,
		"sqrt":       tensor.Sqrt,
		"cbrt":       tensor.Cbrt,
		"rsqrt":      tensor.InvSqrt,
		"abs":        tensor.Abs,
		"sign":       tensor.Sign,
		"tanh":       tensor.Tanh,
		"negative":   tensor.Neg,
		"square":     tensor.Square,
		"reciprocal": tensor.Inv,
		"sin":        floatMap(math.Sin, math32.Sin),
		"cos":        floatMap(math.Cos, math32.Cos),
		"tan":        floatMap(math.Tan, math32.Tan),
		"sinh":       floatMap(math.Sinh, math32.Sinh),
		"cosh":       floatMap(math.Cosh, math32.Cosh),
		"arcsin":     floatMap(math.Asin, math32.Asin),
		"arccos":     floatMap(math.Acos, math32.Acos),
		"arctan":     floatMap(math.Atan, math32.Atan),
		"arcsinh":    floatMap(math.Asinh, math32.Asinh),
		"arccosh":    floatMap(math.Acosh, math32.Acosh),
		"arctanh":    floatMap(math.Atanh, math32.Atanh),
		"floor":      floatMap(math.Floor, math32.Floor),
		"ceil":       floatMap(math.Ceil, math32.Ceil),
		"conj":       conj,
	}
}

func buildBinary() map[string]BinaryFunc {
	return map[string]BinaryFunc{
		"add":           tensor.Add,
		"subtract":      tensor.Sub,
		"multiply":      tensor.Mul,
		"divide":        tensor.Div,
		"power":         tensor.Pow,
		"mod":           tensor.Mod,
		"minimum":       tensor.MinBetween,
		"maximum":       tensor.MaxBetween,
		"less":          tensor.Lt,
		"less_equal":    tensor.Lte,
		"greater":       tensor.Gt,
		"greater_equal": tensor.Gte,
		"equal":         tensor.ElEq,
		"not_equal":     tensor.ElNe,
	}
}

func buildConstants() map[string]float64 {
	return map[string]float64{
		"pi":  math.Pi,
		"e":   math.E,
		"inf": math.Inf(1),
		"nan": math.NaN(),
	}
}

// Unary looks up an elementwise operation by name.
func (b *Backend) Unary(name string) (UnaryFunc, error) {
	fn, ok := b.unary[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOp, "unary %q", name)
	}
	return fn, nil
}

// Binary looks up an elementwise binary operation by name.
func (b *Backend) Binary(name string) (BinaryFunc, error) {
	fn, ok := b.binary[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOp, "binary %q", name)
	}
	return fn, nil
}

// Dtype looks up a dtype by its toolkit name (float32, int64, ...).
func (b *Backend) Dtype(name string) (tensor.Dtype, error) {
	dt, ok := dtypeNames[name]
	if !ok {
		return tensor.Dtype{}, errors.Wrapf(ErrUnsupportedDtype, "%q", name)
	}
	return dt, nil
}

// Constant looks up a named constant (pi, e, inf, nan).
func (b *Backend) Constant(name string) (float64, error) {
	v, ok := b.consts[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownOp, "constant %q", name)
	}
	return v, nil
}

// Names returns the sorted names of every registered unary and binary
// operation.
func (b *Backend) Names() []string {
	names := make([]string, 0, len(b.unary)+len(b.binary))
	for n := range b.unary {
		names = append(names, n)
	}
	for n := range b.binary {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply runs the named unary operation on t.
func (b *Backend) Apply(name string, t tensor.Tensor) (_ *tensor.Dense, err error) {
	defer guard(name, &err)
	fn, err := b.Unary(name)
	if err != nil {
		return nil, err
	}
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	shape := d.Shape().Clone()
	in := d
	if len(shape) == 0 {
		if in, err = b.wrap(backing(d), tensor.Shape{1}); err != nil {
			return nil, err
		}
	}
	out, err := fn(in)
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, shape)
}

// Combine runs the named binary operation. Operands may be tensors or Go
// scalars; mixed dtypes are promoted and differing shapes are broadcast
// the way the toolkit expects before the engine sees them.
func (b *Backend) Combine(name string, x, y interface{}) (_ *tensor.Dense, err error) {
	defer guard(name, &err)
	fn, err := b.Binary(name)
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
	// 0-d operands take gorgonia's scalar paths, which expect Go scalars;
	// run them as one-element vectors instead.
	engineShape := shape
	if len(shape) == 0 {
		engineShape = tensor.Shape{1}
	}
	if xd, err = b.broadcastTo(xd, engineShape); err != nil {
		return nil, err
	}
	if yd, err = b.broadcastTo(yd, engineShape); err != nil {
		return nil, err
	}
	out, err := fn(xd, yd)
	if err != nil {
		return nil, err
	}
	return b.reshaped(out, shape)
}

// operands converts both sides of a binary operation to tensors of a
// common dtype.
func (b *Backend) operands(x, y interface{}) (*tensor.Dense, *tensor.Dense, error) {
	xt, xok := x.(tensor.Tensor)
	yt, yok := y.(tensor.Tensor)
	var xd, yd *tensor.Dense
	var err error
	switch {
	case xok && yok:
		if xd, err = asDense(xt); err != nil {
			return nil, nil, err
		}
		if yd, err = asDense(yt); err != nil {
			return nil, nil, err
		}
	case xok:
		if xd, err = asDense(xt); err != nil {
			return nil, nil, err
		}
		if yd, err = b.scalarTensor(y, xd.Dtype()); err != nil {
			return nil, nil, err
		}
	case yok:
		if yd, err = asDense(yt); err != nil {
			return nil, nil, err
		}
		if xd, err = b.scalarTensor(x, yd.Dtype()); err != nil {
			return nil, nil, err
		}
	default:
		if xd, err = b.Tensor(x); err != nil {
			return nil, nil, err
		}
		if yd, err = b.Tensor(y); err != nil {
			return nil, nil, err
		}
	}
	dt := promote(xd.Dtype(), yd.Dtype())
	if xd.Dtype() != dt {
		if xd, err = b.cast(xd, dt); err != nil {
			return nil, nil, err
		}
	}
	if yd.Dtype() != dt {
		if yd, err = b.cast(yd, dt); err != nil {
			return nil, nil, err
		}
	}
	return xd, yd, nil
}

// scalarTensor builds a 0-d tensor from a Go scalar. The tensor's dtype
// follows like unless the scalar needs a wider kind (a float against an
// int tensor).
func (b *Backend) scalarTensor(v interface{}, like tensor.Dtype) (*tensor.Dense, error) {
	d, err := b.Tensor(v)
	if err != nil {
		return nil, err
	}
	if d.Dims() != 0 {
		return d, nil
	}
	if kindRank(d.Dtype()) <= kindRank(like) {
		return b.cast(d, like)
	}
	return d, nil
}

// dtypeOrder ranks dtypes for promotion; the larger rank wins.
var dtypeOrder = map[tensor.Dtype]int{
	tensor.Bool:       0,
	tensor.Uint8:      1,
	tensor.Int32:      2,
	tensor.Int:        3,
	tensor.Int64:      4,
	tensor.Float32:    5,
	tensor.Float64:    6,
	tensor.Complex64:  7,
	tensor.Complex128: 8,
}

func promote(a, b tensor.Dtype) tensor.Dtype {
	if a == b {
		return a
	}
	if dtypeOrder[a] >= dtypeOrder[b] {
		return a
	}
	return b
}

// kindRank groups dtypes into bool < integer < float < complex.
func kindRank(dt tensor.Dtype) int {
	switch {
	case dt == tensor.Bool:
		return 0
	case isFloat(dt):
		return 2
	case isComplex(dt):
		return 3
	}
	return 1
}

// broadcastShape returns the shape produced by broadcasting a against b.
func broadcastShape(a, b tensor.Shape) (tensor.Shape, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(tensor.Shape, n)
	for i := 1; i <= n; i++ {
		da, db := 1, 1
		if i <= len(a) {
			da = a[len(a)-i]
		}
		if i <= len(b) {
			db = b[len(b)-i]
		}
		switch {
		case da == db, db == 1:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
		default:
			return nil, errors.Wrapf(ErrShape, "cannot broadcast %v with %v", a, b)
		}
	}
	return out, nil
}

// broadcastTo expands d to shape by repeating size-1 and missing leading
// axes.
func (b *Backend) broadcastTo(d *tensor.Dense, shape tensor.Shape) (*tensor.Dense, error) {
	src := d.Shape()
	if sameShape(src, shape) {
		return d, nil
	}
	offset := len(shape) - len(src)
	if offset < 0 {
		return nil, errors.Wrapf(ErrShape, "cannot broadcast %v to %v", src, shape)
	}
	srcStrides := rowMajorStrides(src)
	coord := make([]int, len(shape))
	data, err := gather(backing(d), shape.TotalSize(), func(i int) int {
		unravel(i, shape, coord)
		at := 0
		for k := range src {
			if src[k] != 1 {
				at += coord[k+offset] * srcStrides[k]
			}
		}
		return at
	})
	if err != nil {
		return nil, err
	}
	return b.wrap(data, shape)
}
