package backend

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Logsumexp computes log(sum(exp(t))) along dim without overflowing: the
// maximum along dim is subtracted before exponentiating and added back
// afterwards. Infinite maxima are replaced by 0 so that all -inf or +inf
// lanes produce -inf or +inf instead of NaN. Integer input is promoted to
// float64.
func (b *Backend) Logsumexp(t tensor.Tensor, dim int, keepdim bool) (_ *tensor.Dense, err error) {
	defer guard("Logsumexp", &err)
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	if isComplex(d.Dtype()) {
		return nil, errors.Wrapf(ErrUnsupportedDtype, "logsumexp over %v", d.Dtype())
	}
	if !isFloat(d.Dtype()) {
		if d, err = b.cast(d, tensor.Float64); err != nil {
			return nil, err
		}
	}

	if d.Dims() == 0 {
		vals, err := float64s(d)
		if err != nil {
			return nil, err
		}
		c := vals[0]
		if math.IsInf(c, 0) {
			c = 0
		}
		return b.wrapFloats([]float64{math.Log(math.Exp(vals[0]-c)) + c}, tensor.Shape{}, d.Dtype())
	}

	axis, err := resolveAxis(dim, d.Dims())
	if err != nil {
		return nil, err
	}
	c, err := b.Max(d, Along(axis), KeepDims())
	if err != nil {
		return nil, err
	}
	cv, err := float64s(c)
	if err != nil {
		return nil, err
	}
	for i, v := range cv {
		if math.IsInf(v, 0) {
			cv[i] = 0
		}
	}
	if c, err = b.wrapFloats(cv, c.Shape(), d.Dtype()); err != nil {
		return nil, err
	}

	shifted, err := b.Combine("subtract", d, c)
	if err != nil {
		return nil, err
	}
	e, err := b.Apply("exp", shifted)
	if err != nil {
		return nil, err
	}
	s, err := b.Sum(e, Along(axis), KeepDims())
	if err != nil {
		return nil, err
	}
	l, err := b.Apply("log", s)
	if err != nil {
		return nil, err
	}
	out, err := b.Combine("add", l, c)
	if err != nil || keepdim {
		return out, err
	}

	squeezed := make(tensor.Shape, 0, out.Dims()-1)
	for i, n := range out.Shape() {
		if i != axis {
			squeezed = append(squeezed, n)
		}
	}
	return b.reshaped(out, squeezed)
}

// Exp is Apply("exp", t).
func (b *Backend) Exp(t tensor.Tensor) (*tensor.Dense, error) { return b.Apply("exp", t) }

// Log is Apply("log", t).
func (b *Backend) Log(t tensor.Tensor) (*tensor.Dense, error) { return b.Apply("log", t) }

// Log2 is Apply("log2", t).
func (b *Backend) Log2(t tensor.Tensor) (*tensor.Dense, error) { return b.Apply("log2", t) }

// Sqrt is Apply("sqrt", t).
func (b *Backend) Sqrt(t tensor.Tensor) (*tensor.Dense, error) { return b.Apply("sqrt", t) }

// Abs is Apply("abs", t).
func (b *Backend) Abs(t tensor.Tensor) (*tensor.Dense, error) { return b.Apply("abs", t) }

// Sign is Apply("sign", t).
func (b *Backend) Sign(t tensor.Tensor) (*tensor.Dense, error) { return b.Apply("sign", t) }

// Conj returns the complex conjugate of t; real tensors are copied.
func (b *Backend) Conj(t tensor.Tensor) (*tensor.Dense, error) { return b.Apply("conj", t) }

// Add is Combine("add", x, y).
func (b *Backend) Add(x, y interface{}) (*tensor.Dense, error) { return b.Combine("add", x, y) }

// Sub is Combine("subtract", x, y).
func (b *Backend) Sub(x, y interface{}) (*tensor.Dense, error) { return b.Combine("subtract", x, y) }

// Mul is Combine("multiply", x, y).
func (b *Backend) Mul(x, y interface{}) (*tensor.Dense, error) { return b.Combine("multiply", x, y) }

// Div is Combine("divide", x, y).
func (b *Backend) Div(x, y interface{}) (*tensor.Dense, error) { return b.Combine("divide", x, y) }

// Nan returns a 0-d NaN in the default dtype, or float64 when the default
// dtype cannot hold one.
func (b *Backend) Nan() *tensor.Dense {
	if b.dtype == tensor.Float32 {
		return tensor.New(tensor.WithEngine(b.eng), tensor.FromScalar(float32(math.NaN())))
	}
	return tensor.New(tensor.WithEngine(b.eng), tensor.FromScalar(math.NaN()))
}
