package dispatch

import (
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
	"gorgonia.org/vecf64"
)

// Sum accelerates the pattern:
//   - a is *tensor.Dense with dtype Float64 or Float32
//   - a has rank 2 and is not a view
//   - along has exactly one axis, which is the last dimension
//
// In that case each row is reduced with vecf64.Sum / vecf32.Sum into a
// new 1D tensor of length rows. For all other inputs it defers to
// StdEng.Sum.
func (e *Eng) Sum(a tensor.Tensor, along ...int) (tensor.Tensor, error) {
	if len(along) != 1 {
		return e.StdEng.Sum(a, along...)
	}

	ad, ok := a.(*tensor.Dense)
	if !ok || !isRowMajorContiguous2D(ad) {
		return e.StdEng.Sum(a, along...)
	}

	axis := resolveAxis(along[0], ad.Dims())
	if axis != ad.Dims()-1 {
		return e.StdEng.Sum(a, axis)
	}

	shape := ad.Shape()
	rows, cols := shape[0], shape[1]

	var backing interface{}
	switch data := ad.Data().(type) {
	case []float64:
		if len(data) < rows*cols {
			return e.StdEng.Sum(a, axis)
		}
		out := make([]float64, rows)
		for i := range out {
			out[i] = vecf64.Sum(data[i*cols : (i+1)*cols])
		}
		backing = out
	case []float32:
		if len(data) < rows*cols {
			return e.StdEng.Sum(a, axis)
		}
		out := make([]float32, rows)
		for i := range out {
			out[i] = vecf32.Sum(data[i*cols : (i+1)*cols])
		}
		backing = out
	default:
		return e.StdEng.Sum(a, axis)
	}

	e.log.Trace().Str("op", "Sum").Stringer("dtype", ad.Dtype()).Ints("shape", []int{rows, cols}).Msg("row-sum fast path")
	return tensor.New(
		tensor.WithEngine(e),
		tensor.WithShape(rows),
		tensor.WithBacking(backing),
	), nil
}
