// Package dispatch provides a tensor.Engine that routes the hot paths of
// the backend adapter (2D matrix products and last-axis sums) to gonum's
// BLAS routines and the vecf64/vecf32 kernels, and defers everything else
// to tensor.StdEng.
package dispatch

import (
	"github.com/rs/zerolog"
	"gorgonia.org/tensor"
)

// defaultMinBLASSize is the smallest m*n*k for which MatMul takes the
// gonum path. Below it the StdEng call overhead is comparable anyway.
const defaultMinBLASSize = 1

// Eng is a tensor.Engine implementation that embeds tensor.StdEng and
// overrides MatMul and Sum. Tensors built with tensor.WithEngine(eng)
// pick up the overrides through gorgonia's engine interfaces.
type Eng struct {
	tensor.StdEng

	log         zerolog.Logger
	minBLASSize int
}

// Option configures an Eng.
type Option func(*Eng)

// WithLogger sets the logger used for fast-path tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Eng) { e.log = l }
}

// WithMinBLASSize sets the minimum m*n*k for which MatMul leaves StdEng.
func WithMinBLASSize(n int) Option {
	return func(e *Eng) {
		if n > 0 {
			e.minBLASSize = n
		}
	}
}

// New constructs a new Eng.
func New(opts ...Option) *Eng {
	e := &Eng{
		StdEng:      tensor.StdEng{},
		log:         zerolog.Nop(),
		minBLASSize: defaultMinBLASSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log.Debug().Int("min_blas_size", e.minBLASSize).Msg("dispatch engine ready")
	return e
}

// Compile-time check that *Eng satisfies tensor.Engine.
var _ tensor.Engine = (*Eng)(nil)

// isRowMajorContiguous2D reports whether d is a 2D dense tensor with the
// standard row-major layout that the gonum kernels expect:
//
//	shape = [rows, cols]
//	strides = [cols, 1]
func isRowMajorContiguous2D(d *tensor.Dense) bool {
	if d.Dims() != 2 || d.IsMaterializable() {
		return false
	}
	shape := d.Shape()
	strides := d.Strides()
	if len(shape) != 2 || len(strides) != 2 {
		return false
	}
	rows, cols := shape[0], shape[1]
	return strides[1] == 1 && strides[0] == cols && rows > 0 && cols > 0
}

// resolveAxis mirrors tensor.resolveAxis (which is unexported) so that
// negative axes are handled the same way StdEng handles them.
//
// For example, for dims=2 and axis=-1 this returns 1 (the last dim).
func resolveAxis(axis, dims int) int {
	res := axis % dims
	if (res < 0 && dims > 0) || (res > 0 && dims < 0) {
		return res + dims
	}
	return res
}
