package nn

import (
	"math"

	"github.com/born-ml/graspnet/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
type ReLU struct {
	training bool
	mask     []bool
}

// NewReLU creates a new ReLU activation layer.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies the activation.
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := input.Clone()
	data := out.Data()
	var mask []bool
	if r.training {
		mask = make([]bool, len(data))
	}
	for i, v := range data {
		if v > 0 {
			if mask != nil {
				mask[i] = true
			}
			continue
		}
		data[i] = 0
	}
	r.mask = mask
	return out
}

// Backward passes gradient through positive activations only.
func (r *ReLU) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if r.mask == nil {
		panic(missingCache("relu"))
	}
	grad := gradOutput.Clone()
	data := grad.Data()
	for i, keep := range r.mask {
		if !keep {
			data[i] = 0
		}
	}
	r.mask = nil
	return grad
}

// Parameters returns nil (ReLU has no trainable parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// SetTraining toggles caching of the activation mask.
func (r *ReLU) SetTraining(training bool) {
	r.training = training
}

// String returns "ReLU()".
func (r *ReLU) String() string {
	return "ReLU()"
}

// Tanh applies the hyperbolic tangent element-wise.
type Tanh struct {
	training bool
	output   *tensor.Tensor
}

// NewTanh creates a new Tanh activation layer.
func NewTanh() *Tanh {
	return &Tanh{}
}

// Forward applies the activation.
func (t *Tanh) Forward(input *tensor.Tensor) *tensor.Tensor {
	out := input.Clone()
	data := out.Data()
	for i, v := range data {
		data[i] = math.Tanh(v)
	}
	if t.training {
		t.output = out
	}
	return out
}

// Backward computes grad * (1 - tanh²).
func (t *Tanh) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if t.output == nil {
		panic(missingCache("tanh"))
	}
	grad := gradOutput.Clone()
	data := grad.Data()
	y := t.output.Data()
	for i := range data {
		data[i] *= 1 - y[i]*y[i]
	}
	t.output = nil
	return grad
}

// Parameters returns nil (Tanh has no trainable parameters).
func (t *Tanh) Parameters() []*Parameter {
	return nil
}

// SetTraining toggles caching of the activation output.
func (t *Tanh) SetTraining(training bool) {
	t.training = training
}

// String returns "Tanh()".
func (t *Tanh) String() string {
	return "Tanh()"
}
