// Package optim implements optimization algorithms for training the grasp networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers read the gradients accumulated on each nn.Parameter by the
// model's Backward pass.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//
//	for _, batch := range batches {
//	    optimizer.ZeroGrad()
//	    result := model.ComputeLoss(batch.X, batch.Y)
//	    model.Backward(result)
//	    optimizer.Step()
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	// Parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64

	// SetLR updates the learning rate.
	SetLR(lr float64)

	// Name identifies the algorithm in checkpoints ("Adam", "SGD").
	Name() string

	// StateDict returns the optimizer buffers keyed by parameter name.
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict restores buffers produced by StateDict.
	LoadStateDict(state map[string]*tensor.Tensor) error
}

// buffers holds one state tensor per parameter, created lazily.
type buffers map[*nn.Parameter]*tensor.Tensor

func (b buffers) get(p *nn.Parameter) *tensor.Tensor {
	t, ok := b[p]
	if !ok {
		t = tensor.Zeros(p.Tensor().Shape())
		b[p] = t
	}
	return t
}

func (b buffers) export(prefix string, params []*nn.Parameter, dst map[string]*tensor.Tensor) {
	for _, p := range params {
		if t, ok := b[p]; ok {
			dst[prefix+"."+p.Name()] = t
		}
	}
}

func (b buffers) restore(prefix string, params []*nn.Parameter, src map[string]*tensor.Tensor) error {
	for _, p := range params {
		t, ok := src[prefix+"."+p.Name()]
		if !ok {
			continue
		}
		if !t.Shape().Equal(p.Tensor().Shape()) {
			return fmt.Errorf("optimizer state %s.%s: shape %v, parameter has %v",
				prefix, p.Name(), t.Shape(), p.Tensor().Shape())
		}
		b[p] = t.Clone()
	}
	return nil
}

func zeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
