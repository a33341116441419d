package dispatch

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// MatMul sends 2D row-major float64 products to gonum's mat.Dense.Mul and
// float32 products to blas32.Gemm. Non-dense tensors, other dtypes, views
// and products smaller than the configured BLAS threshold fall back to the
// embedded StdEng implementation.
func (e *Eng) MatMul(a, b, prealloc tensor.Tensor) error {
	da, okA := a.(*tensor.Dense)
	db, okB := b.(*tensor.Dense)
	dc, okC := prealloc.(*tensor.Dense)
	if !okA || !okB || !okC {
		return e.StdEng.MatMul(a, b, prealloc)
	}

	dt := da.Dtype()
	if (dt != tensor.Float64 && dt != tensor.Float32) || db.Dtype() != dt || dc.Dtype() != dt {
		return e.StdEng.MatMul(a, b, prealloc)
	}

	if !isRowMajorContiguous2D(da) || !isRowMajorContiguous2D(db) || !isRowMajorContiguous2D(dc) {
		return e.StdEng.MatMul(a, b, prealloc)
	}

	shapeA := da.Shape()
	shapeB := db.Shape()
	shapeC := dc.Shape()

	m, kA := shapeA[0], shapeA[1]
	kB, n := shapeB[0], shapeB[1]

	if kA != kB {
		return fmt.Errorf("dispatch: MatMul shape mismatch: a=%v, b=%v (inner dims %d vs %d)", shapeA, shapeB, kA, kB)
	}
	if shapeC[0] != m || shapeC[1] != n {
		return fmt.Errorf("dispatch: MatMul prealloc shape mismatch: expected [%d %d], got %v", m, n, shapeC)
	}
	if m*n*kA < e.minBLASSize {
		return e.StdEng.MatMul(a, b, prealloc)
	}

	switch dt {
	case tensor.Float64:
		adata, ok1 := da.Data().([]float64)
		bdata, ok2 := db.Data().([]float64)
		cdata, ok3 := dc.Data().([]float64)
		if !ok1 || !ok2 || !ok3 || len(adata) < m*kA || len(bdata) < kB*n || len(cdata) < m*n {
			return e.StdEng.MatMul(a, b, prealloc)
		}
		ma := mat.NewDense(m, kA, adata[:m*kA])
		mb := mat.NewDense(kB, n, bdata[:kB*n])
		mc := mat.NewDense(m, n, cdata[:m*n])
		mc.Mul(ma, mb)
	case tensor.Float32:
		adata, ok1 := da.Data().([]float32)
		bdata, ok2 := db.Data().([]float32)
		cdata, ok3 := dc.Data().([]float32)
		if !ok1 || !ok2 || !ok3 || len(adata) < m*kA || len(bdata) < kB*n || len(cdata) < m*n {
			return e.StdEng.MatMul(a, b, prealloc)
		}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas32.General{Rows: m, Cols: kA, Stride: kA, Data: adata[:m*kA]},
			blas32.General{Rows: kB, Cols: n, Stride: n, Data: bdata[:kB*n]},
			0,
			blas32.General{Rows: m, Cols: n, Stride: n, Data: cdata[:m*n]},
		)
	}

	e.log.Trace().Str("op", "MatMul").Stringer("dtype", dt).Ints("shape", []int{m, kA, n}).Msg("gonum fast path")
	return nil
}
