// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 NCHW tensors used by graspnet
// networks.
package tensor

import (
	"math/rand"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Tensor is a dense row-major float64 array.
type Tensor = tensor.Tensor

// Shape lists the size of each dimension.
type Shape = tensor.Shape

// New wraps data in a tensor of the given shape without copying.
func New(shape Shape, data []float64) *Tensor {
	return tensor.New(shape, data)
}

// FromSlice copies data into a new tensor, checking the element count.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// Zeros returns a zero-filled tensor.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Randn returns a tensor of standard normal samples drawn from rng.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	return tensor.Randn(shape, rng)
}

// Stack joins equally shaped tensors along a new batch axis.
func Stack(items []*Tensor) (*Tensor, error) {
	return tensor.Stack(items)
}
