package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Sequential chains modules; Forward runs them in order and Backward in reverse.
//
// Parameters of child i are renamed "<i>.<name>" on construction.
type Sequential struct {
	layers []Module
}

// NewSequential creates a container over the given layers.
func NewSequential(layers ...Module) *Sequential {
	for i, l := range layers {
		Prefix(fmt.Sprint(i), l.Parameters())
	}
	return &Sequential{layers: layers}
}

// Forward runs every layer in order.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	x := input
	for _, l := range s.layers {
		x = l.Forward(x)
	}
	return x
}

// Backward runs every layer's Backward in reverse order.
func (s *Sequential) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	g := gradOutput
	for i := len(s.layers) - 1; i >= 0; i-- {
		g = s.layers[i].Backward(g)
	}
	return g
}

// Parameters returns the parameters of all layers.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range s.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

// SetTraining propagates the mode to every layer.
func (s *Sequential) SetTraining(training bool) {
	for _, l := range s.layers {
		l.SetTraining(training)
	}
}

// Layers returns the child modules.
func (s *Sequential) Layers() []Module {
	return s.layers
}

// String lists the layers one per line.
func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, l := range s.layers {
		fmt.Fprintf(&b, "  (%d): %s\n", i, l)
	}
	b.WriteString(")")
	return b.String()
}
