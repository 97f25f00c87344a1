// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the layers used to build grasp network backbones.
//
// Layers cache their activations only in training mode; call SetTraining
// before Forward when gradients are needed.
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	backbone := nn.NewSequential(
//	    nn.NewConv2D(1, 16, 3, 3, 1, 1, true, rng),
//	    nn.NewReLU(),
//	    nn.NewMaxPool2D(2, 2),
//	    nn.NewUpsample2D(2),
//	)
package nn

import (
	"math/rand"

	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Module is a layer with parameters and a backward pass.
type Module = nn.Module

// Parameter is a named trainable tensor with its gradient.
type Parameter = nn.Parameter

// Sequential chains modules.
type Sequential = nn.Sequential

// Conv2D is a 2D convolution.
type Conv2D = nn.Conv2D

// ReLU activation.
type ReLU = nn.ReLU

// Tanh activation.
type Tanh = nn.Tanh

// MaxPool2D is 2D max pooling.
type MaxPool2D = nn.MaxPool2D

// Upsample2D is nearest-neighbour upsampling.
type Upsample2D = nn.Upsample2D

// NewSequential chains layers; parameter names are prefixed with the layer index.
func NewSequential(layers ...Module) *Sequential {
	return nn.NewSequential(layers...)
}

// NewConv2D creates a convolution with Xavier-initialised weights drawn from rng.
func NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding int, useBias bool, rng *rand.Rand) *Conv2D {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, rng)
}

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU { return nn.NewReLU() }

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh { return nn.NewTanh() }

// NewMaxPool2D creates a max pooling layer.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	return nn.NewMaxPool2D(kernelSize, stride)
}

// NewUpsample2D creates an upsampling layer with an integer scale.
func NewUpsample2D(scale int) *Upsample2D {
	return nn.NewUpsample2D(scale)
}

// MSELoss returns the mean squared error and its gradient with respect to
// predictions.
func MSELoss(predictions, targets *tensor.Tensor) (float64, *tensor.Tensor) {
	return nn.MSELoss(predictions, targets)
}

// CountParameters returns the total number of scalar parameters.
func CountParameters(params []*Parameter) int {
	return nn.CountParameters(params)
}
