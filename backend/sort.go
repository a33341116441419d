package backend

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// NoAxis asks Sort and Argsort to work on the flattened tensor.
const NoAxis = math.MinInt32

// Sort returns t sorted ascending along axis. With NoAxis the tensor is
// flattened first. The sort is stable.
func (b *Backend) Sort(t tensor.Tensor, axis int) (*tensor.Dense, error) {
	d, order, err := b.argsort(t, axis)
	if err != nil {
		return nil, err
	}
	data, err := gather(backing(d), len(order), func(i int) int { return order[i] })
	if err != nil {
		return nil, err
	}
	sorted, err := b.wrap(data, d.Shape())
	if err != nil {
		return nil, err
	}
	return b.restoreAxis(sorted, t.Dims(), axis)
}

// Argsort returns the indices that would sort t along axis.
func (b *Backend) Argsort(t tensor.Tensor, axis int) (*tensor.Dense, error) {
	d, order, err := b.argsort(t, axis)
	if err != nil {
		return nil, err
	}
	inner := 1
	if d.Dims() > 0 {
		inner = d.Shape()[d.Dims()-1]
	}
	idx := make([]int, len(order))
	for i, o := range order {
		idx[i] = o % inner
	}
	out, err := b.wrap(idx, d.Shape())
	if err != nil {
		return nil, err
	}
	return b.restoreAxis(out, t.Dims(), axis)
}

// argsort moves axis to the end (or flattens) and returns the moved
// tensor with, for every output position, the flat index of its source
// element in that tensor.
func (b *Backend) argsort(t tensor.Tensor, axis int) (*tensor.Dense, []int, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, nil, err
	}
	if isComplex(d.Dtype()) {
		return nil, nil, errors.Wrapf(ErrUnsupportedDtype, "sort over %v", d.Dtype())
	}
	if axis == NoAxis || d.Dims() == 0 {
		if d, err = b.wrap(backing(d), tensor.Shape{d.Shape().TotalSize()}); err != nil {
			return nil, nil, err
		}
	} else {
		ax, err := resolveAxis(axis, d.Dims())
		if err != nil {
			return nil, nil, err
		}
		if d, err = b.Moveaxis(d, ax, -1); err != nil {
			return nil, nil, err
		}
	}

	vals, err := float64s(d)
	if err != nil {
		return nil, nil, err
	}
	inner := d.Shape()[d.Dims()-1]
	order := make([]int, len(vals))
	inds := make([]int, inner)
	for start := 0; start < len(vals); start += inner {
		floats.ArgsortStable(vals[start:start+inner], inds)
		for i, j := range inds {
			order[start+i] = start + j
		}
	}
	return d, order, nil
}

// restoreAxis undoes the move done by argsort.
func (b *Backend) restoreAxis(d *tensor.Dense, ndim, axis int) (*tensor.Dense, error) {
	if axis == NoAxis || ndim == 0 {
		return d, nil
	}
	ax, err := resolveAxis(axis, ndim)
	if err != nil {
		return nil, err
	}
	return b.Moveaxis(d, -1, ax)
}
