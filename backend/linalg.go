package backend

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// linalgDtype is the dtype results of gonum-backed routines are returned
// in: float inputs keep their width, everything else becomes float64.
func linalgDtype(dt tensor.Dtype) (tensor.Dtype, error) {
	if isComplex(dt) {
		return tensor.Dtype{}, errors.Wrapf(ErrUnsupportedDtype, "linear algebra over %v", dt)
	}
	if isFloat(dt) {
		return dt, nil
	}
	return tensor.Float64, nil
}

// matrix converts a 2-d tensor to a gonum matrix.
func matrix(d *tensor.Dense) (*mat.Dense, error) {
	if d.Dims() != 2 {
		return nil, errors.Wrapf(ErrShape, "expected a matrix, got shape %v", d.Shape())
	}
	vals, err := float64s(d)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(d.Shape()[0], d.Shape()[1], vals), nil
}

// fromMatrix copies a gonum matrix into a tensor of dtype dt.
func (b *Backend) fromMatrix(m mat.Matrix, dt tensor.Dtype) (*tensor.Dense, error) {
	r, c := m.Dims()
	vals := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			vals[i*c+j] = m.At(i, j)
		}
	}
	return b.wrapFloats(vals, tensor.Shape{r, c}, dt)
}

// square asserts t is a square matrix.
func square(d *tensor.Dense) error {
	s := d.Shape()
	if len(s) != 2 || s[0] != s[1] {
		return errors.Wrapf(ErrShape, "expected a square matrix, got shape %v", s)
	}
	return nil
}

// matmul2D multiplies two matrices of the same dtype on the backend's
// engine.
func (b *Backend) matmul2D(x, y *tensor.Dense) (*tensor.Dense, error) {
	m, n := x.Shape()[0], y.Shape()[1]
	out, err := b.Zeros(tensor.Shape{m, n}, x.Dtype())
	if err != nil {
		return nil, err
	}
	if mm, ok := b.eng.(tensor.MatMuler); ok {
		if err := mm.MatMul(x, y, out); err != nil {
			return nil, err
		}
		return out, nil
	}
	res, err := tensor.MatMul(x, y)
	if err != nil {
		return nil, err
	}
	return b.reshaped(res, tensor.Shape{m, n})
}

// Matmul is the matrix product with the toolkit's conventions: 1-d
// operands are promoted to a row (left) or column (right) and the added
// dimension is removed again, and leading dimensions of operands with
// more than two dims are broadcast batch dimensions.
func (b *Backend) Matmul(x, y tensor.Tensor) (_ *tensor.Dense, err error) {
	defer guard("Matmul", &err)
	xd, yd, err := b.operands(x, y)
	if err != nil {
		return nil, err
	}
	if xd.Dims() == 0 || yd.Dims() == 0 {
		return nil, errors.Wrap(ErrShape, "matmul of a zero-dimensional operand")
	}

	dt := xd.Dtype()
	work := dt
	if !isFloat(dt) && !isComplex(dt) {
		work = tensor.Float64
	}
	if work != dt {
		if xd, err = b.cast(xd, work); err != nil {
			return nil, err
		}
		if yd, err = b.cast(yd, work); err != nil {
			return nil, err
		}
	}

	xs, ys := xd.Shape().Clone(), yd.Shape().Clone()
	xVec, yVec := len(xs) == 1, len(ys) == 1
	if xVec {
		xs = tensor.Shape{1, xs[0]}
	}
	if yVec {
		ys = tensor.Shape{ys[0], 1}
	}
	mx, k := xs[len(xs)-2], xs[len(xs)-1]
	k2, ny := ys[len(ys)-2], ys[len(ys)-1]
	if k != k2 {
		return nil, errors.Wrapf(ErrShape, "matmul %v with %v", xd.Shape(), yd.Shape())
	}
	batch, err := broadcastShape(xs[:len(xs)-2], ys[:len(ys)-2])
	if err != nil {
		return nil, err
	}
	if xd, err = b.broadcastTo(b.relabel(xd, xs), append(batch.Clone(), mx, k)); err != nil {
		return nil, err
	}
	if yd, err = b.broadcastTo(b.relabel(yd, ys), append(batch.Clone(), k, ny)); err != nil {
		return nil, err
	}

	xData, yData := backing(xd), backing(yd)
	batches := batch.TotalSize()
	var parts []tensor.Tensor
	for i := 0; i < batches; i++ {
		xi, err := b.wrap(sliceBacking(xData, i*mx*k, (i+1)*mx*k), tensor.Shape{mx, k})
		if err != nil {
			return nil, err
		}
		yi, err := b.wrap(sliceBacking(yData, i*k*ny, (i+1)*k*ny), tensor.Shape{k, ny})
		if err != nil {
			return nil, err
		}
		p, err := b.matmul2D(xi, yi)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}

	outShape := batch.Clone()
	if !xVec {
		outShape = append(outShape, mx)
	}
	if !yVec {
		outShape = append(outShape, ny)
	}
	var out *tensor.Dense
	if len(parts) == 1 {
		out, err = b.reshaped(parts[0], outShape)
	} else {
		var joined *tensor.Dense
		if joined, err = b.Concatenate(parts, 0); err != nil {
			return nil, err
		}
		out, err = b.reshaped(joined, outShape)
	}
	if err != nil || work == dt {
		return out, err
	}
	return b.cast(out, dt)
}

// relabel re-labels d with shape, which callers guarantee has the
// same number of elements.
func (b *Backend) relabel(d *tensor.Dense, shape tensor.Shape) *tensor.Dense {
	if sameShape(d.Shape(), shape) {
		return d
	}
	out, err := b.wrap(backing(d), shape)
	if err != nil {
		panic(err)
	}
	return out
}

// Dot follows the toolkit's dot: a scalar product when either operand is
// 0-d, a batched contraction of the last axis of x with the
// second-to-last axis of y when both have more than two dims, and a
// matrix product otherwise.
func (b *Backend) Dot(x, y tensor.Tensor) (*tensor.Dense, error) {
	if x == nil || y == nil {
		return nil, errors.Wrap(ErrNotTensor, "nil tensor")
	}
	if x.Dims() == 0 || y.Dims() == 0 {
		return b.Combine("multiply", x, y)
	}
	if x.Dims() > 2 && y.Dims() > 2 {
		xs, ys := x.Shape(), y.Shape()
		if !sameShape(xs[:len(xs)-2], ys[:len(ys)-2]) {
			return nil, errors.Wrapf(ErrShape, "batched dot %v with %v", xs, ys)
		}
	}
	return b.Matmul(x, y)
}

// Tensordot contracts the last n axes of x with the first n axes of y.
func (b *Backend) Tensordot(x, y tensor.Tensor, n int) (*tensor.Dense, error) {
	if x == nil || y == nil {
		return nil, errors.Wrap(ErrNotTensor, "nil tensor")
	}
	if n < 0 || n > x.Dims() || n > y.Dims() {
		return nil, errors.Wrapf(ErrAxis, "tensordot over %d axes of %v and %v", n, x.Shape(), y.Shape())
	}
	xAxes := make([]int, n)
	yAxes := make([]int, n)
	for i := 0; i < n; i++ {
		xAxes[i] = x.Dims() - n + i
		yAxes[i] = i
	}
	return b.TensordotAxes(x, y, xAxes, yAxes)
}

// TensordotAxes contracts xAxes of x with yAxes of y pairwise. The free
// axes of x come first in the result, followed by the free axes of y.
func (b *Backend) TensordotAxes(x, y tensor.Tensor, xAxes, yAxes []int) (_ *tensor.Dense, err error) {
	defer guard("TensordotAxes", &err)
	xd, yd, err := b.operands(x, y)
	if err != nil {
		return nil, err
	}
	if len(xAxes) != len(yAxes) {
		return nil, errors.Wrapf(ErrAxis, "tensordot axes %v and %v differ in length", xAxes, yAxes)
	}
	xa, err := resolveAxes(xAxes, xd.Dims())
	if err != nil {
		return nil, err
	}
	ya, err := resolveAxes(yAxes, yd.Dims())
	if err != nil {
		return nil, err
	}
	xs, ys := xd.Shape(), yd.Shape()
	contracted := 1
	for i := range xa {
		if xs[xa[i]] != ys[ya[i]] {
			return nil, errors.Wrapf(ErrShape, "tensordot axis %d of %v against axis %d of %v", xa[i], xs, ya[i], ys)
		}
		contracted *= xs[xa[i]]
	}

	xFree, xFreeShape := freeAxes(xs, xa)
	yFree, yFreeShape := freeAxes(ys, ya)
	xPerm := append(xFree, xa...)
	yPerm := append(ya, yFree...)

	xt, err := b.Transpose(xd, xPerm...)
	if err != nil {
		return nil, err
	}
	yt, err := b.Transpose(yd, yPerm...)
	if err != nil {
		return nil, err
	}
	x2, err := b.wrap(backing(xt), tensor.Shape{xFreeShape.TotalSize(), contracted})
	if err != nil {
		return nil, err
	}
	y2, err := b.wrap(backing(yt), tensor.Shape{contracted, yFreeShape.TotalSize()})
	if err != nil {
		return nil, err
	}
	prod, err := b.Matmul(x2, y2)
	if err != nil {
		return nil, err
	}
	return b.reshaped(prod, append(xFreeShape, yFreeShape...))
}

func freeAxes(shape tensor.Shape, contracted []int) ([]int, tensor.Shape) {
	used := make(map[int]bool, len(contracted))
	for _, a := range contracted {
		used[a] = true
	}
	var axes []int
	free := tensor.Shape{}
	for i, s := range shape {
		if !used[i] {
			axes = append(axes, i)
			free = append(free, s)
		}
	}
	return axes, free
}

// Kron is the Kronecker product of two vectors or two matrices. The
// result keeps the promoted input dtype.
func (b *Backend) Kron(x, y tensor.Tensor) (_ *tensor.Dense, err error) {
	defer guard("Kron", &err)
	xd, yd, err := b.operands(x, y)
	if err != nil {
		return nil, err
	}
	dt := xd.Dtype()
	if isComplex(dt) {
		return nil, errors.Wrapf(ErrUnsupportedDtype, "kron over %v", dt)
	}
	vec := xd.Dims() == 1 && yd.Dims() == 1
	if vec {
		xd = b.relabel(xd, tensor.Shape{1, xd.Shape()[0]})
		yd = b.relabel(yd, tensor.Shape{1, yd.Shape()[0]})
	}
	xm, err := matrix(xd)
	if err != nil {
		return nil, err
	}
	ym, err := matrix(yd)
	if err != nil {
		return nil, err
	}
	var k mat.Dense
	k.Kronecker(xm, ym)
	out, err := b.fromMatrix(&k, dt)
	if err != nil || !vec {
		return out, err
	}
	return b.reshaped(out, tensor.Shape{out.Shape()[1]})
}

// Solve solves a x = y for a square, full-rank a. y may be a vector or a
// matrix of right-hand sides.
func (b *Backend) Solve(a, y tensor.Tensor) (_ *tensor.Dense, err error) {
	defer guard("Solve", &err)
	ad, yd, err := b.operands(a, y)
	if err != nil {
		return nil, err
	}
	if err := square(ad); err != nil {
		return nil, err
	}
	dt, err := linalgDtype(ad.Dtype())
	if err != nil {
		return nil, err
	}
	vec := yd.Dims() == 1
	if vec {
		yd = b.relabel(yd, tensor.Shape{yd.Shape()[0], 1})
	}
	am, err := matrix(ad)
	if err != nil {
		return nil, err
	}
	ym, err := matrix(yd)
	if err != nil {
		return nil, err
	}
	var x mat.Dense
	if err := x.Solve(am, ym); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, errors.Wrap(err, "solve")
		}
		b.log.Debug().Float64("cond", float64(cond)).Msg("solve: ill-conditioned system")
	}
	out, err := b.fromMatrix(&x, dt)
	if err != nil || !vec {
		return out, err
	}
	return b.reshaped(out, tensor.Shape{out.Shape()[0]})
}

// QR modes.
const (
	QRReduced  = "reduced"
	QRComplete = "complete"
	QRROnly    = "r"
)

// QR factors t = q r. In "reduced" mode q is m x k and r is k x n with
// k = min(m, n); "complete" returns the square q; "r" returns only the
// reduced r and a nil q.
func (b *Backend) QR(t tensor.Tensor, mode string) (q, r *tensor.Dense, err error) {
	defer guard("QR", &err)
	d, err := asDense(t)
	if err != nil {
		return nil, nil, err
	}
	dt, err := linalgDtype(d.Dtype())
	if err != nil {
		return nil, nil, err
	}
	am, err := matrix(d)
	if err != nil {
		return nil, nil, err
	}
	rows, cols := am.Dims()
	k := minInt(rows, cols)

	var qm, rm mat.Dense
	var qr mat.QR
	if rows >= cols {
		qr.Factorize(am)
		qr.QTo(&qm)
		qr.RTo(&rm)
	} else {
		// gonum only factors tall matrices: factor the leading square
		// block and recover r = qᵀ a.
		qr.Factorize(am.Slice(0, rows, 0, rows))
		qr.QTo(&qm)
		rm.Mul(qm.T(), am)
	}

	var qOut, rOut mat.Matrix = &qm, &rm
	switch mode {
	case QRComplete:
	case QRReduced, QRROnly:
		qOut = qm.Slice(0, rows, 0, k)
		rOut = rm.Slice(0, k, 0, cols)
	default:
		return nil, nil, errors.Wrapf(ErrUnknownOp, "qr mode %q", mode)
	}

	if r, err = b.fromMatrix(rOut, dt); err != nil {
		return nil, nil, err
	}
	if mode == QRROnly {
		return nil, r, nil
	}
	if q, err = b.fromMatrix(qOut, dt); err != nil {
		return nil, nil, err
	}
	return q, r, nil
}

// Eigh returns the eigenvalues (ascending) and eigenvectors (columns) of
// a symmetric matrix. Only the lower triangle of t is read.
func (b *Backend) Eigh(t tensor.Tensor) (w, v *tensor.Dense, err error) {
	defer guard("Eigh", &err)
	d, err := asDense(t)
	if err != nil {
		return nil, nil, err
	}
	if err := square(d); err != nil {
		return nil, nil, err
	}
	dt, err := linalgDtype(d.Dtype())
	if err != nil {
		return nil, nil, err
	}
	vals, err := float64s(d)
	if err != nil {
		return nil, nil, err
	}
	n := d.Shape()[0]
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sym.SetSym(i, j, vals[i*n+j])
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, errors.New("eigh: eigendecomposition did not converge")
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	if w, err = b.wrapFloats(es.Values(nil), tensor.Shape{n}, dt); err != nil {
		return nil, nil, err
	}
	if v, err = b.fromMatrix(&vecs, dt); err != nil {
		return nil, nil, err
	}
	return w, v, nil
}

// SVD factors t = u diag(s) vh. With full the square u and vh are
// returned, otherwise the thin factors. Singular values are descending.
func (b *Backend) SVD(t tensor.Tensor, full bool) (u, s, vh *tensor.Dense, err error) {
	defer guard("SVD", &err)
	d, dt, err := b.svdInput(t)
	if err != nil {
		return nil, nil, nil, err
	}
	sd, ud, vd, err := d.SVD(true, full)
	if err != nil {
		return nil, nil, nil, err
	}
	if u, err = b.reshaped(ud, ud.Shape()); err != nil {
		return nil, nil, nil, err
	}
	if u, err = b.cast(u, dt); err != nil {
		return nil, nil, nil, err
	}
	if s, err = b.svdValues(sd, dt); err != nil {
		return nil, nil, nil, err
	}
	if vh, err = b.Transpose(vd); err != nil {
		return nil, nil, nil, err
	}
	if vh, err = b.cast(vh, dt); err != nil {
		return nil, nil, nil, err
	}
	return u, s, vh, nil
}

// SingularValues returns the singular values of t in descending order.
func (b *Backend) SingularValues(t tensor.Tensor) (_ *tensor.Dense, err error) {
	defer guard("SingularValues", &err)
	d, dt, err := b.svdInput(t)
	if err != nil {
		return nil, err
	}
	sd, _, _, err := d.SVD(false, false)
	if err != nil {
		return nil, err
	}
	return b.svdValues(sd, dt)
}

func (b *Backend) svdInput(t tensor.Tensor) (*tensor.Dense, tensor.Dtype, error) {
	d, err := asDense(t)
	if err != nil {
		return nil, tensor.Dtype{}, err
	}
	dt, err := linalgDtype(d.Dtype())
	if err != nil {
		return nil, tensor.Dtype{}, err
	}
	if d.Dims() != 2 {
		return nil, tensor.Dtype{}, errors.Wrapf(ErrShape, "svd of shape %v", d.Shape())
	}
	if !isFloat(d.Dtype()) {
		if d, err = b.cast(d, tensor.Float64); err != nil {
			return nil, tensor.Dtype{}, err
		}
	}
	return d, dt, nil
}

func (b *Backend) svdValues(sd *tensor.Dense, dt tensor.Dtype) (*tensor.Dense, error) {
	vals, err := float64s(sd)
	if err != nil {
		return nil, err
	}
	return b.wrapFloats(vals, tensor.Shape{len(vals)}, dt)
}

// Pinv returns the Moore-Penrose pseudo-inverse of t. Singular values at
// or below rtol times the largest are treated as zero.
func (b *Backend) Pinv(t tensor.Tensor, rtol float64) (_ *tensor.Dense, err error) {
	defer guard("Pinv", &err)
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	dt, err := linalgDtype(d.Dtype())
	if err != nil {
		return nil, err
	}
	p, err := pinv(d, rtol)
	if err != nil {
		return nil, err
	}
	return b.fromMatrix(p, dt)
}

func pinv(d *tensor.Dense, rtol float64) (*mat.Dense, error) {
	am, err := matrix(d)
	if err != nil {
		return nil, err
	}
	var svd mat.SVD
	if ok := svd.Factorize(am, mat.SVDThin); !ok {
		return nil, errors.New("pinv: svd did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	cutoff := 0.0
	if len(s) > 0 {
		cutoff = rtol * s[0]
	}
	inv := make([]float64, len(s))
	for i, sv := range s {
		if sv > cutoff {
			inv[i] = 1 / sv
		}
	}
	// pinv = v diag(1/s) uᵀ
	var vs mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))
	var p mat.Dense
	p.Mul(&vs, u.T())
	return &p, nil
}

// MatrixRank counts the singular values of t above
// max(s) * max(m, n) * eps.
func (b *Backend) MatrixRank(t tensor.Tensor) (_ int, err error) {
	defer guard("MatrixRank", &err)
	d, err := asDense(t)
	if err != nil {
		return 0, err
	}
	if _, err = linalgDtype(d.Dtype()); err != nil {
		return 0, err
	}
	am, err := matrix(d)
	if err != nil {
		return 0, err
	}
	return matrixRank(am, d.Dtype())
}

func matrixRank(am *mat.Dense, dt tensor.Dtype) (int, error) {
	var svd mat.SVD
	if ok := svd.Factorize(am, mat.SVDNone); !ok {
		return 0, errors.New("matrix rank: svd did not converge")
	}
	info, err := Finfo(dt)
	if err != nil {
		info, _ = Finfo(tensor.Float64)
	}
	r, c := am.Dims()
	return svd.Rank(float64(maxInt(r, c)) * info.Eps), nil
}

// Trace sums the main diagonal of a matrix.
func (b *Backend) Trace(t tensor.Tensor) (_ *tensor.Dense, err error) {
	defer guard("Trace", &err)
	d, err := asDense(t)
	if err != nil {
		return nil, err
	}
	if d.Dims() != 2 {
		return nil, errors.Wrapf(ErrShape, "trace of shape %v", d.Shape())
	}
	v, err := d.Trace()
	if err != nil {
		return nil, err
	}
	return tensor.New(tensor.WithEngine(b.eng), tensor.FromScalar(v)), nil
}

// LstsqResult is the full least-squares solution of a x = y.
type LstsqResult struct {
	Solution *tensor.Dense
	Residual *tensor.Dense
	Rank     int
	Singular *tensor.Dense
}

// Lstsq returns the least-squares solution of a x = y, computed as
// pinv(a) y in float64, and the sum of squared residuals of that
// solution as a 0-d float64 tensor.
func (b *Backend) Lstsq(a, y tensor.Tensor) (solution, residual *tensor.Dense, err error) {
	defer guard("Lstsq", &err)
	ad, err := asDense(a)
	if err != nil {
		return nil, nil, err
	}
	yd, err := asDense(y)
	if err != nil {
		return nil, nil, err
	}
	if isComplex(ad.Dtype()) || isComplex(yd.Dtype()) {
		return nil, nil, errors.Wrap(ErrUnsupportedDtype, "lstsq over complex input")
	}
	if ad, err = b.cast(ad, tensor.Float64); err != nil {
		return nil, nil, err
	}
	if yd, err = b.cast(yd, tensor.Float64); err != nil {
		return nil, nil, err
	}

	p, err := pinv(ad, b.cfg.PinvRtol)
	if err != nil {
		return nil, nil, err
	}
	pd, err := b.fromMatrix(p, tensor.Float64)
	if err != nil {
		return nil, nil, err
	}
	if solution, err = b.Matmul(pd, yd); err != nil {
		return nil, nil, err
	}

	fitted, err := b.Matmul(ad, solution)
	if err != nil {
		return nil, nil, err
	}
	want, err := float64s(yd)
	if err != nil {
		return nil, nil, err
	}
	got, err := float64s(fitted)
	if err != nil {
		return nil, nil, err
	}
	var ss float64
	for i := range want {
		diff := want[i] - got[i]
		ss += diff * diff
	}
	if residual, err = b.wrap([]float64{ss}, tensor.Shape{}); err != nil {
		return nil, nil, err
	}
	return solution, residual, nil
}

// LstsqFull is Lstsq that also reports the numeric rank and singular
// values of a.
func (b *Backend) LstsqFull(a, y tensor.Tensor) (*LstsqResult, error) {
	solution, residual, err := b.Lstsq(a, y)
	if err != nil {
		return nil, err
	}
	ad, err := asDense(a)
	if err != nil {
		return nil, err
	}
	if ad, err = b.cast(ad, tensor.Float64); err != nil {
		return nil, err
	}
	rank, err := b.MatrixRank(ad)
	if err != nil {
		return nil, err
	}
	s, err := b.SingularValues(ad)
	if err != nil {
		return nil, err
	}
	if full := minInt(ad.Shape()[0], ad.Shape()[1]); rank < full {
		b.log.Debug().Int("rank", rank).Int("full_rank", full).Msg("lstsq: rank-deficient system")
	}
	return &LstsqResult{Solution: solution, Residual: residual, Rank: rank, Singular: s}, nil
}

func sliceBacking(data interface{}, start, end int) interface{} {
	switch s := data.(type) {
	case []float64:
		return s[start:end]
	case []float32:
		return s[start:end]
	case []complex128:
		return s[start:end]
	case []complex64:
		return s[start:end]
	}
	return data
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
