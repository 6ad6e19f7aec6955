// Package ann roots the nearest-neighbor module: the shared error taxonomy
// used by the vector, hash, lsh and hypercube subpackages. The indexes
// themselves live one level down.
package ann

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per surface error code in the specification.
var (
	ErrInvalidParameters  = errors.New("invalid parameters")
	ErrInvalidDim         = errors.New("invalid dimension")
	ErrInvalidRadius      = errors.New("invalid radius")
	ErrInvalidIndex       = errors.New("invalid index")
	ErrInvalidPoints      = errors.New("invalid points")
	ErrInvalidHashFunc    = errors.New("invalid hash function")
	ErrInvalidCompare     = errors.New("invalid compare")
	ErrMethodUnfitted     = errors.New("method unfitted")
	ErrMethodAlreadyUsed  = errors.New("method already used")
	ErrMethodNotImpl      = errors.New("method not implemented")
	ErrArithOverflow      = errors.New("arithmetic overflow")
	ErrAllocationFailed   = errors.New("allocation failed")
	ErrConstructionFailed = errors.New("construction failed")
)

// IndexError wraps an error with the operation that produced it.
type IndexError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("ann: %v", e.Err)
	}
	return fmt.Sprintf("ann: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *IndexError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *IndexError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapError wraps an error with operation context. Returns nil if err is nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IndexError{Op: op, Err: err}
}
