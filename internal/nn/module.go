// Package nn implements the neural network modules used by the grasp networks.
//
// This package provides building blocks for constructing convolutional networks:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient storage
//   - Conv2D, MaxPool2D, Upsample2D: Spatial layers
//   - ReLU, Tanh: Activations
//   - MSELoss: Regression loss
//   - Sequential: Container for stacking layers
//
// Gradients are computed by explicit back-propagation: every module caches
// what it needs during a training Forward call and Backward consumes it.
package nn

import (
	"github.com/born-ml/graspnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewConv2D(1, 16, 3, 3, 1, 1, true, rng),
//	    nn.NewReLU(),
//	    nn.NewMaxPool2D(2, 2),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor.
	//
	// In training mode the module caches the activations Backward needs.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Backward propagates gradOutput (same shape as the last Forward output)
	// back to the input, accumulating parameter gradients on the way.
	//
	// Panics if the preceding Forward ran outside training mode.
	Backward(gradOutput *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter

	// SetTraining switches activation caching on or off.
	SetTraining(training bool)

	// String describes the module configuration.
	String() string
}

// Layered is implemented by containers that expose their children, which
// lets model summaries walk a network layer by layer.
type Layered interface {
	Layers() []Module
}

func missingCache(layer string) string {
	return layer + ": Backward called without a training-mode Forward"
}
