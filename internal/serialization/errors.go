package serialization

import (
	"errors"
	"fmt"
)

// Errors returned while reading or validating .born files.
var (
	ErrInvalidMagic       = errors.New("not a .born file")
	ErrUnsupportedVersion = errors.New("unsupported .born format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrDataTooLarge       = errors.New("data section exceeds the input")
	ErrChecksumMismatch   = errors.New("checksum mismatch, file is corrupted")

	ErrInvalidTensorName = errors.New("invalid tensor name")
	ErrUnsupportedDType  = errors.New("unsupported dtype")
	ErrShapeMismatch     = errors.New("tensor shape does not match its size")
	ErrTooManyTensors    = errors.New("too many tensors")
	ErrOffsetOverlap     = errors.New("tensor regions overlap")
	ErrOutOfBounds       = errors.New("tensor extends past the data section")
)

// ValidationError names the tensor a validation failure refers to.
type ValidationError struct {
	Err     error // sentinel
	Tensor  string
	Tensor2 string // other tensor of an overlap
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%v: tensors %q and %q: %s", e.Err, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap lets errors.Is match the sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
