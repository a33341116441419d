package backend

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// dtypeNames maps the toolkit's dtype vocabulary onto gorgonia dtypes.
var dtypeNames = map[string]tensor.Dtype{
	"bool":       tensor.Bool,
	"int":        tensor.Int,
	"int32":      tensor.Int32,
	"int64":      tensor.Int64,
	"uint8":      tensor.Uint8,
	"float32":    tensor.Float32,
	"float64":    tensor.Float64,
	"complex64":  tensor.Complex64,
	"complex128": tensor.Complex128,
}

type realNumber interface {
	~int | ~int32 | ~int64 | ~uint8 | ~float32 | ~float64
}

func widen[T realNumber](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}

func narrow[T realNumber](vals []float64) []T {
	out := make([]T, len(vals))
	for i, v := range vals {
		out[i] = T(v)
	}
	return out
}

func isFloat(dt tensor.Dtype) bool   { return dt == tensor.Float64 || dt == tensor.Float32 }
func isComplex(dt tensor.Dtype) bool { return dt == tensor.Complex128 || dt == tensor.Complex64 }

func isSupported(dt tensor.Dtype) bool {
	for _, known := range dtypeNames {
		if known == dt {
			return true
		}
	}
	return false
}

// toFloat64s copies a typed backing slice into float64s. Complex values
// keep their real part; booleans become 0 or 1.
func toFloat64s(data interface{}) ([]float64, error) {
	switch s := data.(type) {
	case []float64:
		out := make([]float64, len(s))
		copy(out, s)
		return out, nil
	case []float32:
		return widen(s), nil
	case []int:
		return widen(s), nil
	case []int64:
		return widen(s), nil
	case []int32:
		return widen(s), nil
	case []uint8:
		return widen(s), nil
	case []bool:
		out := make([]float64, len(s))
		for i, v := range s {
			if v {
				out[i] = 1
			}
		}
		return out, nil
	case []complex128:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = real(v)
		}
		return out, nil
	case []complex64:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(real(v))
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedDtype, "%T", data)
}

// fromFloat64s builds a backing slice of dtype dt from float64 values.
// Integer targets truncate toward zero.
func fromFloat64s(vals []float64, dt tensor.Dtype) (interface{}, error) {
	switch dt {
	case tensor.Float64:
		return vals, nil
	case tensor.Float32:
		return narrow[float32](vals), nil
	case tensor.Int:
		return narrow[int](vals), nil
	case tensor.Int64:
		return narrow[int64](vals), nil
	case tensor.Int32:
		return narrow[int32](vals), nil
	case tensor.Uint8:
		return narrow[uint8](vals), nil
	case tensor.Bool:
		out := make([]bool, len(vals))
		for i, v := range vals {
			out[i] = v != 0
		}
		return out, nil
	case tensor.Complex128:
		out := make([]complex128, len(vals))
		for i, v := range vals {
			out[i] = complex(v, 0)
		}
		return out, nil
	case tensor.Complex64:
		out := make([]complex64, len(vals))
		for i, v := range vals {
			out[i] = complex(float32(v), 0)
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedDtype, "%v", dt)
}

func toComplex128s(data interface{}) ([]complex128, error) {
	switch s := data.(type) {
	case []complex128:
		out := make([]complex128, len(s))
		copy(out, s)
		return out, nil
	case []complex64:
		out := make([]complex128, len(s))
		for i, v := range s {
			out[i] = complex128(v)
		}
		return out, nil
	}
	re, err := toFloat64s(data)
	if err != nil {
		return nil, err
	}
	out := make([]complex128, len(re))
	for i, v := range re {
		out[i] = complex(v, 0)
	}
	return out, nil
}

func fromComplex128s(vals []complex128, dt tensor.Dtype) (interface{}, error) {
	switch dt {
	case tensor.Complex128:
		return vals, nil
	case tensor.Complex64:
		out := make([]complex64, len(vals))
		for i, v := range vals {
			out[i] = complex64(v)
		}
		return out, nil
	}
	re := make([]float64, len(vals))
	for i, v := range vals {
		re[i] = real(v)
	}
	return fromFloat64s(re, dt)
}

// convertBacking converts a flat backing slice to dtype dt, pivoting
// through complex128 when either side is complex and float64 otherwise.
func convertBacking(data interface{}, from, to tensor.Dtype) (interface{}, error) {
	if isComplex(from) || isComplex(to) {
		c, err := toComplex128s(data)
		if err != nil {
			return nil, err
		}
		return fromComplex128s(c, to)
	}
	f, err := toFloat64s(data)
	if err != nil {
		return nil, err
	}
	return fromFloat64s(f, to)
}

// FloatInfo describes the machine limits of a floating point dtype.
type FloatInfo struct {
	Bits int
	Eps  float64
	Max  float64
	Min  float64
	Tiny float64
}

// Finfo returns machine limits for float and complex dtypes. Complex
// dtypes report the limits of their component type.
func Finfo(dt tensor.Dtype) (FloatInfo, error) {
	switch dt {
	case tensor.Float32, tensor.Complex64:
		return FloatInfo{
			Bits: 32,
			Eps:  float64(math32.Nextafter(1, 2) - 1),
			Max:  math32.MaxFloat32,
			Min:  -math32.MaxFloat32,
			Tiny: float64(math32.Float32frombits(0x00800000)),
		}, nil
	case tensor.Float64, tensor.Complex128:
		return FloatInfo{
			Bits: 64,
			Eps:  math.Nextafter(1, 2) - 1,
			Max:  math.MaxFloat64,
			Min:  -math.MaxFloat64,
			Tiny: math.Float64frombits(0x0010000000000000),
		}, nil
	}
	return FloatInfo{}, errors.Wrapf(ErrUnsupportedDtype, "finfo %v", dt)
}
