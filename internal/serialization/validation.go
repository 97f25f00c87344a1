package serialization

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validation limits.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 || t.Offset > dataSize || t.Size > dataSize-t.Offset {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d, data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects names that could be used as paths.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Err: ErrInvalidTensorName, Details: "empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\\x00"):
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains path separator or null byte"}
	}
	return nil
}

// ValidateHeader checks names, dtypes, shapes and offsets of every tensor.
func ValidateHeader(h *Header, dataSize int64) error {
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if t.DType != DTypeFloat64 {
			return &ValidationError{Err: ErrUnsupportedDType, Tensor: t.Name, Details: t.DType}
		}
		n := int64(8)
		for _, d := range t.Shape {
			if d <= 0 || int64(d) > math.MaxInt64/n {
				return &ValidationError{Err: ErrShapeMismatch, Tensor: t.Name, Details: fmt.Sprintf("invalid shape %v", t.Shape)}
			}
			n *= int64(d)
		}
		if n != t.Size {
			return &ValidationError{Err: ErrShapeMismatch, Tensor: t.Name, Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, n, t.Size)}
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
