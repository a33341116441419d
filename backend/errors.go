package backend

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors for argument validation done on the adapter side.
// Errors coming from the wrapped engines are returned unchanged, so
// callers that need to tell the two apart should use errors.Is against
// these values.
var (
	ErrNotTensor        = errors.New("not a *tensor.Dense")
	ErrAxis             = errors.New("axis out of range")
	ErrShape            = errors.New("incompatible shape")
	ErrUnsupportedDtype = errors.New("unsupported dtype")
	ErrUnknownOp        = errors.New("unknown operation")
	ErrUnknownEngine    = errors.New("unknown engine")
	ErrRaggedData       = errors.New("ragged nested data")
)

// EnginePanic carries a panic raised inside a wrapped engine. gonum
// reports dimension mismatches and singular factorizations by panicking;
// the adapter converts those into ordinary errors at its boundary.
type EnginePanic struct {
	Op    string
	Value interface{}
}

func (e *EnginePanic) Error() string {
	return fmt.Sprintf("%s: engine panic: %v", e.Op, e.Value)
}

// guard recovers a panic raised while running op and stores it in *err.
// Use it as: defer guard("Solve", &err).
func guard(op string, err *error) {
	if r := recover(); r != nil {
		*err = &EnginePanic{Op: op, Value: r}
	}
}
