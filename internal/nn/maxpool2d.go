package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/graspnet/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_h, out_w]
//
// Where out_h = (height - kernel) / stride + 1.
type MaxPool2D struct {
	kernelSize int
	stride     int

	training   bool
	inputShape tensor.Shape
	argmax     []int // flat input index of every output element
}

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel=%d stride=%d", kernelSize, stride))
	}
	return &MaxPool2D{kernelSize: kernelSize, stride: stride}
}

// Forward performs max pooling.
func (m *MaxPool2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	outH := (h-m.kernelSize)/m.stride + 1
	outW := (w-m.kernelSize)/m.stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("maxpool2d: input %v too small for kernel %d", shape, m.kernelSize))
	}

	out := tensor.Zeros(tensor.Shape{n, c, outH, outW})
	src := input.Data()
	dst := out.Data()
	argmax := make([]int, len(dst))

	for plane := 0; plane < n*c; plane++ {
		base := plane * h * w
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				best := math.Inf(-1)
				bestIdx := -1
				for ky := 0; ky < m.kernelSize; ky++ {
					row := base + (oy*m.stride+ky)*w + ox*m.stride
					for kx := 0; kx < m.kernelSize; kx++ {
						if v := src[row+kx]; v > best {
							best = v
							bestIdx = row + kx
						}
					}
				}
				o := (plane*outH+oy)*outW + ox
				dst[o] = best
				argmax[o] = bestIdx
			}
		}
	}

	if m.training {
		m.inputShape = shape.Clone()
		m.argmax = argmax
	}
	return out
}

// Backward routes each output gradient to the input element that won the max.
func (m *MaxPool2D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if m.argmax == nil {
		panic(missingCache("maxpool2d"))
	}
	grad := tensor.Zeros(m.inputShape)
	dst := grad.Data()
	for o, g := range gradOutput.Data() {
		dst[m.argmax[o]] += g
	}
	m.argmax = nil
	return grad
}

// Parameters returns nil (pooling has no trainable parameters).
func (m *MaxPool2D) Parameters() []*Parameter {
	return nil
}

// SetTraining toggles caching of the argmax indices.
func (m *MaxPool2D) SetTraining(training bool) {
	m.training = training
}

// String returns a string representation of the layer.
func (m *MaxPool2D) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernelSize, m.stride)
}
