package nn

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
//	grad := weight.Grad() // after Backward
type Parameter struct {
	name   string         // Parameter name (e.g., "backbone.0.weight")
	tensor *tensor.Tensor // The parameter tensor
	grad   *tensor.Tensor // Accumulated gradient, nil until the first Backward
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// SetName renames the parameter. Containers use it to build hierarchical names.
func (p *Parameter) SetName(name string) {
	p.name = name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been computed yet (before backward pass).
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// AccumulateGrad adds g to the stored gradient, allocating it on first use.
func (p *Parameter) AccumulateGrad(g []float64) {
	if len(g) != p.tensor.NumElements() {
		panic(fmt.Sprintf("parameter %s: gradient has %d elements, want %d", p.name, len(g), p.tensor.NumElements()))
	}
	if p.grad == nil {
		p.grad = tensor.Zeros(p.tensor.Shape())
	}
	dst := p.grad.Data()
	for i, v := range g {
		dst[i] += v
	}
}

// ZeroGrad clears the gradient tensor.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}

// Prefix renames every parameter to prefix + "." + current name.
func Prefix(prefix string, params []*Parameter) {
	for _, p := range params {
		p.SetName(prefix + "." + p.Name())
	}
}

// CountParameters returns the number of scalar weights in params.
func CountParameters(params []*Parameter) int {
	total := 0
	for _, p := range params {
		total += p.Tensor().NumElements()
	}
	return total
}
