// Package backend adapts gorgonia.org/tensor and gonum to the operation
// vocabulary of a multi-backend tensor toolkit. A Backend is built once
// with New and then forwards every call to the engine attached to the
// tensors it creates, converting shapes, dtypes and argument conventions
// on the way in and out.
//
// Most operations are thin: they validate arguments, normalize the input
// into a contiguous *tensor.Dense and call the engine. A handful (Lstsq,
// Logsumexp, Dot on batched operands, Sort along an axis) are composed
// from several engine calls.
//
// Elementwise operations are looked up by name from static tables built
// in New:
//
//	exp, _ := b.Unary("exp")
//	out, err := b.Apply("exp", t)
//	sum, err := b.Combine("add", t, 1.5)
package backend
